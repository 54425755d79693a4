package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ChangeMessage announces that a household partition was written by a hub replica.
// It carries no records; receivers re-read the partition.
type ChangeMessage struct {
	Household string    `json:"household"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

var errEmptyHousehold = errors.New("change message has no household")

// NewChangeMessage creates a change message stamped with the publishing replica.
func NewChangeMessage(household, source string) *ChangeMessage {
	return &ChangeMessage{
		Household: household,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and rejects one without a household.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Household == "" {
		return nil, errEmptyHousehold
	}
	return &msg, nil
}
