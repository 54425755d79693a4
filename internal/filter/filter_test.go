package filter

import (
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

var sample = []core.Expense{
	{ID: "1", Date: "2025-01-05", From: "Card", To: "Lidl", Category: "Food", Amount: decimal.NewFromInt(10), Spender: "Anna", Note: "weekly shop"},
	{ID: "2", Date: "2025-02-10", From: "Cash", To: "Landlord", Category: "Rent", Amount: decimal.NewFromInt(500), Spender: "Boris"},
	{ID: "3", Date: "2025-02-28", Category: "Food", Amount: decimal.NewFromInt(7), Spender: "Boris", Note: "Pizza night"},
	{ID: "4", Date: "2025-03-01", Category: "Fuel", Amount: decimal.NewFromInt(40), Spender: "Anna"},
}

func ids(records []core.Expense) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"no criteria", Criteria{}, []string{"1", "2", "3", "4"}},
		{"lower bound inclusive", Criteria{From: "2025-02-28"}, []string{"3", "4"}},
		{"upper bound inclusive", Criteria{To: "2025-02-10"}, []string{"1", "2"}},
		{"date range", Criteria{From: "2025-02-01", To: "2025-02-28"}, []string{"2", "3"}},
		{"spender exact", Criteria{Spender: "Anna"}, []string{"1", "4"}},
		{"spender is not substring", Criteria{Spender: "Ann"}, []string{}},
		{"category exact", Criteria{Category: "Food"}, []string{"1", "3"}},
		{"query case-insensitive on note", Criteria{Query: "PIZZA"}, []string{"3"}},
		{"query on to", Criteria{Query: "land"}, []string{"2"}},
		{"query on spender", Criteria{Query: "bor"}, []string{"2", "3"}},
		{"combined", Criteria{Category: "Food", Spender: "Boris", From: "2025-01-01"}, []string{"3"}},
		{"nothing matches", Criteria{Query: "zzz"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(sample, tt.criteria))
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Apply() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	before := ids(sample)
	_ = Apply(sample, Criteria{Spender: "Anna"})
	after := ids(sample)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("input mutated: %v -> %v", before, after)
		}
	}
}

func TestApplyIsSubset(t *testing.T) {
	all := map[string]bool{}
	for _, e := range sample {
		all[e.ID] = true
	}
	for _, c := range []Criteria{{Spender: "Anna"}, {Query: "o"}, {From: "2025-02-01", Category: "Rent"}} {
		for _, e := range Apply(sample, c) {
			if !all[e.ID] {
				t.Fatalf("record %s not in input", e.ID)
			}
			if !c.Match(e) {
				t.Fatalf("record %s does not match %+v", e.ID, c)
			}
		}
	}
}

func TestIsZero(t *testing.T) {
	if !(Criteria{}).IsZero() {
		t.Fatal("empty criteria should be zero")
	}
	if (Criteria{Query: "x"}).IsZero() {
		t.Fatal("criteria with query should not be zero")
	}
}

func TestApplyZeroCriteriaCopies(t *testing.T) {
	in := []core.Expense{{ID: "a"}, {ID: "b"}}
	out := Apply(in, Criteria{})
	if len(out) != 2 {
		t.Fatalf("Apply() = %d records, want 2", len(out))
	}
	out[0].ID = "changed"
	if in[0].ID != "a" {
		t.Fatal("Apply() result aliases the input")
	}
}
