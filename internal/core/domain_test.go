package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDraftBuild(t *testing.T) {
	good := Draft{
		Date:     "2025-03-04",
		From:     "  card ",
		To:       " shop",
		Category: " Food ",
		Amount:   "12,50",
		Spender:  " Anna ",
		Note:     " weekly ",
	}
	e, err := good.Build("x1")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if e.ID != "x1" || e.From != "card" || e.To != "shop" || e.Category != "Food" || e.Spender != "Anna" || e.Note != "weekly" {
		t.Fatalf("fields not trimmed: %+v", e)
	}
	if !e.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("amount = %s, want 12.5", e.Amount)
	}

	tests := []struct {
		name  string
		draft Draft
		want  error
	}{
		{"missing date", Draft{Category: "a", Spender: "b", Amount: "1"}, ErrInvalidDate},
		{"bad date", Draft{Date: "yesterday", Category: "a", Spender: "b", Amount: "1"}, ErrInvalidDate},
		{"blank category", Draft{Date: "2025-01-01", Category: "  ", Spender: "b", Amount: "1"}, ErrEmptyCategory},
		{"blank spender", Draft{Date: "2025-01-01", Category: "a", Spender: "", Amount: "1"}, ErrEmptySpender},
		{"non-numeric amount", Draft{Date: "2025-01-01", Category: "a", Spender: "b", Amount: "abc"}, ErrInvalidAmount},
		{"zero amount", Draft{Date: "2025-01-01", Category: "a", Spender: "b", Amount: "0,00"}, ErrZeroAmount},
		{"empty amount", Draft{Date: "2025-01-01", Category: "a", Spender: "b"}, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.draft.Build("id")
			if !errors.Is(err, tt.want) {
				t.Fatalf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDraftBuildAllowsNegativeAmount(t *testing.T) {
	e, err := Draft{Date: "2025-01-01", Category: "refund", Spender: "b", Amount: "-4.20"}.Build("id")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if !e.Amount.Equal(decimal.RequireFromString("-4.2")) {
		t.Fatalf("amount = %s", e.Amount)
	}
}

func TestDraftFromRebuildsSameRecord(t *testing.T) {
	e := Expense{ID: "1", Date: "2025-01-01", From: "card", To: "shop", Category: "Food", Amount: decimal.RequireFromString("3.50"), Spender: "A", Note: "n"}
	got, err := DraftFrom(e).Build(e.ID)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !got.Equal(e) {
		t.Fatalf("rebuilt %+v, want %+v", got, e)
	}
}

func TestExpenseEqual(t *testing.T) {
	a := Expense{ID: "1", Date: "2025-01-01", Amount: decimal.RequireFromString("10")}
	b := Expense{ID: "1", Date: "2025-01-01", Amount: decimal.RequireFromString("10.00")}
	if !a.Equal(b) {
		t.Fatalf("expected equal amounts by value")
	}
	b.Note = "x"
	if a.Equal(b) {
		t.Fatalf("expected note difference to matter")
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		seen[id] = true
	}
}
