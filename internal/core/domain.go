package core

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type (
	// Expense is one ledger entry. It is only ever replaced as a whole.
	Expense struct {
		ID       string          `json:"id"`
		Date     string          `json:"date"` // ISO calendar date, no time component
		From     string          `json:"from"`
		To       string          `json:"to"`
		Category string          `json:"category"`
		Amount   decimal.Decimal `json:"amount"`
		Spender  string          `json:"spender"`
		Note     string          `json:"note"`
	}

	// Draft is raw user input for an expense, before trimming and parsing.
	Draft struct {
		Date     string
		From     string
		To       string
		Category string
		Amount   string
		Spender  string
		Note     string
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptySpender  = errors.New("empty spender")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrZeroAmount    = errors.New("amount must not be zero")
	ErrEmptyID       = errors.New("empty id")
)

// NewID returns a fresh client-side identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the constraints a record must satisfy before it enters the store.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	if _, err := ParseDate(e.Date); err != nil {
		return ErrInvalidDate
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.Spender) == "" {
		return ErrEmptySpender
	}
	if e.Amount.IsZero() {
		return ErrZeroAmount
	}
	return nil
}

// Equal reports field equality. Amounts compare by value, so 10 and 10.00 are equal.
func (e Expense) Equal(o Expense) bool {
	return e.ID == o.ID &&
		e.Date == o.Date &&
		e.From == o.From &&
		e.To == o.To &&
		e.Category == o.Category &&
		e.Amount.Equal(o.Amount) &&
		e.Spender == o.Spender &&
		e.Note == o.Note
}

// Build turns a draft into a validated expense carrying the given id.
// Text fields are trimmed; the date is kept as entered.
func (d Draft) Build(id string) (Expense, error) {
	if strings.TrimSpace(d.Date) == "" {
		return Expense{}, ErrInvalidDate
	}
	amount, err := ParseAmount(d.Amount)
	if err != nil {
		return Expense{}, err
	}
	e := Expense{
		ID:       id,
		Date:     strings.TrimSpace(d.Date),
		From:     strings.TrimSpace(d.From),
		To:       strings.TrimSpace(d.To),
		Category: strings.TrimSpace(d.Category),
		Amount:   amount,
		Spender:  strings.TrimSpace(d.Spender),
		Note:     strings.TrimSpace(d.Note),
	}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// DraftFrom returns the editable form of an existing record.
func DraftFrom(e Expense) Draft {
	return Draft{
		Date:     e.Date,
		From:     e.From,
		To:       e.To,
		Category: e.Category,
		Amount:   e.Amount.String(),
		Spender:  e.Spender,
		Note:     e.Note,
	}
}
