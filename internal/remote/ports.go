// Package remote defines the shared record store that households replicate to.
//
// A remote store is partitioned by household. Every read, write and
// subscription is scoped to exactly one household. Change notifications carry
// no diff: subscribers are expected to re-read the partition.
package remote

import (
	"context"
	"errors"
	"time"

	"ledger/internal/core"
)

var (
	ErrEmptyHousehold = errors.New("empty household")
	ErrUnauthorized   = errors.New("unauthorized")
)

type (
	// Change signals that something in a household partition changed.
	Change struct {
		Household string    `json:"household"`
		At        time.Time `json:"at"`
	}

	// Subscription delivers change signals until closed. Signals may be
	// coalesced; a closed Changes channel means the feed ended.
	Subscription interface {
		Changes() <-chan Change
		Close() error
	}

	// Store is the partitioned key-value interface of a shared remote.
	Store interface {
		// List returns every record of household ordered by date descending.
		List(ctx context.Context, household string) ([]core.Expense, error)
		// Upsert inserts or replaces records by id.
		Upsert(ctx context.Context, household string, records ...core.Expense) error
		// Delete removes the record with id. Deleting an absent id succeeds.
		Delete(ctx context.Context, household, id string) error
		// Subscribe opens a change feed for household.
		Subscribe(ctx context.Context, household string) (Subscription, error)
	}
)

// Notify performs a non-blocking send. A pending signal already covers the new one.
func Notify(ch chan Change, c Change) {
	select {
	case ch <- c:
	default:
	}
}
