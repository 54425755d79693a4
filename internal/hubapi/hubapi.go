// Package hubapi holds the wire types and paths shared by ledger-hub and its client.
package hubapi

import (
	"net/url"

	"ledger/internal/core"
)

const (
	// BasePath prefixes every versioned route.
	BasePath = "/api/v1"

	// EventChanged is the only change feed event type.
	EventChanged = "changed"
)

// HouseholdPath is the route prefix of one household partition.
func HouseholdPath(household string) string {
	return BasePath + "/households/" + url.PathEscape(household)
}

// ExpensesPath lists or upserts the records of household.
func ExpensesPath(household string) string {
	return HouseholdPath(household) + "/expenses"
}

// ExpensePath addresses a single record of household.
func ExpensePath(household, id string) string {
	return ExpensesPath(household) + "/" + url.PathEscape(id)
}

// ChangesPath is the websocket change feed of household.
func ChangesPath(household string) string {
	return HouseholdPath(household) + "/changes"
}

type (
	// ExpensesResponse is the body of a partition listing, ordered by date descending.
	ExpensesResponse struct {
		Household string         `json:"household"`
		Expenses  []core.Expense `json:"expenses"`
	}

	// UpsertRequest is the body of a batch upsert.
	UpsertRequest struct {
		Expenses []core.Expense `json:"expenses"`
	}

	// ChangeEvent is pushed to change feed sessions. It carries no data.
	ChangeEvent struct {
		Type      string `json:"type"`
		Household string `json:"household"`
	}

	// ErrorResponse is the body of every non-2xx API response.
	ErrorResponse struct {
		Error string `json:"error"`
	}
)
