package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/storage"
)

// failingSlots fails every operation.
type failingSlots struct{}

func (failingSlots) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func (failingSlots) Put(context.Context, string, []byte) error {
	return errors.New("disk on fire")
}

func rec(id, date string, amount int64) core.Expense {
	return core.Expense{ID: id, Date: date, Category: "c", Spender: "s", Amount: decimal.NewFromInt(amount)}
}

func ids(records []core.Expense) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equalIDs(t *testing.T, got []core.Expense, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("ids = %v, want %v", g, want)
	}
	for i := range g {
		if g[i] != want[i] {
			t.Fatalf("ids = %v, want %v", g, want)
		}
	}
}

func TestLoadDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		slots storage.Slots
	}{
		{"missing slot", storage.NewMemorySlots()},
		{"read failure", failingSlots{}},
		{"corrupt json", func() storage.Slots {
			s := storage.NewMemorySlots()
			_ = s.Put(ctx, storage.ExpensesKey, []byte(`{not json`))
			return s
		}()},
		{"not an array", func() storage.Slots {
			s := storage.NewMemorySlots()
			_ = s.Put(ctx, storage.ExpensesKey, []byte(`{"id":"x"}`))
			return s
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStore(tt.slots, "", nil)
			if got := st.Load(ctx); len(got) != 0 {
				t.Fatalf("Load() = %v, want empty", got)
			}
		})
	}
}

func TestLoadRestoresPersistedSet(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemorySlots()

	first := NewStore(slots, "", nil)
	first.Load(ctx)
	first.Upsert(ctx, rec("a", "2025-01-01", 1))
	first.Upsert(ctx, rec("b", "2025-03-01", 2))

	second := NewStore(slots, "", nil)
	got := second.Load(ctx)
	equalIDs(t, got, "b", "a")
	if !got[0].Amount.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("amount = %s", got[0].Amount)
	}
}

func TestLoadAcceptsNumericAmounts(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemorySlots()
	_ = slots.Put(ctx, storage.ExpensesKey, []byte(`[{"id":"x","date":"2025-01-01","amount":12.5,"category":"c","spender":"s"}]`))
	got := NewStore(slots, "", nil).Load(ctx)
	if len(got) != 1 || !got[0].Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("Load() = %+v", got)
	}
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	st := NewStore(storage.NewMemorySlots(), "", nil)
	st.Load(ctx)

	st.Upsert(ctx, rec("a", "2025-01-10", 1))
	st.Upsert(ctx, rec("b", "2025-02-01", 1))
	st.Upsert(ctx, rec("c", "2025-01-10", 1))
	// Same date: the newer insert comes first.
	equalIDs(t, st.Records(), "b", "c", "a")

	edited := rec("a", "2025-03-01", 9)
	got := st.Upsert(ctx, edited)
	equalIDs(t, got, "a", "b", "c")
	if r, _ := st.Get("a"); !r.Equal(edited) {
		t.Fatalf("record not replaced: %+v", r)
	}
}

func TestUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	st := NewStore(storage.NewMemorySlots(), "", nil)
	st.Load(ctx)
	st.Upsert(ctx, rec("a", "2025-01-10", 1))
	st.Upsert(ctx, rec("b", "2025-01-10", 2))
	before := st.Records()

	for i := 0; i < 3; i++ {
		st.Upsert(ctx, rec("a", "2025-01-10", 1))
	}
	after := st.Records()
	if len(after) != len(before) {
		t.Fatalf("size changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if !before[i].Equal(after[i]) {
			t.Fatalf("content changed at %d: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestUpsertManyMergesByID(t *testing.T) {
	ctx := context.Background()
	st := NewStore(storage.NewMemorySlots(), "", nil)
	st.Load(ctx)
	st.Upsert(ctx, rec("a", "2025-01-01", 1))
	st.Upsert(ctx, rec("b", "2025-01-01", 1))

	replacement := rec("a", "2025-01-01", 50)
	replacement.Note = "imported"
	got := st.UpsertMany(ctx, []core.Expense{
		replacement,
		rec("n", "2025-01-01", 2),
		rec("n", "2025-01-01", 3),
	})

	if len(got) != 3 {
		t.Fatalf("size = %d, want 3", len(got))
	}
	// Existing ids keep their place, new ids are appended.
	equalIDs(t, got, "b", "a", "n")
	if r, _ := st.Get("a"); !r.Equal(replacement) {
		t.Fatalf("a = %+v, want full replacement", r)
	}
	if r, _ := st.Get("n"); !r.Amount.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("later duplicate should win, got %s", r.Amount)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	st := NewStore(storage.NewMemorySlots(), "", nil)
	st.Load(ctx)
	st.Upsert(ctx, rec("a", "2025-01-01", 1))
	st.Upsert(ctx, rec("b", "2025-01-02", 1))

	events := 0
	cancel := st.Subscribe(func(Event) { events++ })
	defer cancel()

	if st.Delete(ctx, "missing") {
		t.Fatal("Delete(missing) reported a removal")
	}
	if st.Len() != 2 || events != 0 {
		t.Fatalf("absent delete changed state: len=%d events=%d", st.Len(), events)
	}

	if !st.Delete(ctx, "a") {
		t.Fatal("Delete(a) reported nothing removed")
	}
	equalIDs(t, st.Records(), "b")
	if events != 1 {
		t.Fatalf("events = %d, want 1", events)
	}
}

func TestReplaceAll(t *testing.T) {
	ctx := context.Background()
	slots := storage.NewMemorySlots()
	st := NewStore(slots, "", nil)
	st.Load(ctx)
	st.Upsert(ctx, rec("local", "2025-01-01", 1))

	got := st.ReplaceAll(ctx, []core.Expense{rec("r1", "2024-01-01", 1), rec("r2", "2025-05-01", 1)})
	equalIDs(t, got, "r2", "r1")

	reloaded := NewStore(slots, "", nil).Load(ctx)
	equalIDs(t, reloaded, "r2", "r1")
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	st := NewStore(failingSlots{}, "", nil)
	st.Load(ctx)
	st.Upsert(ctx, rec("a", "2025-01-01", 1))
	if st.Len() != 1 {
		t.Fatalf("in-memory copy lost after persist failure")
	}
}

func TestRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	st := NewStore(storage.NewMemorySlots(), "", nil)
	st.Load(ctx)
	st.Upsert(ctx, rec("a", "2025-01-01", 1))

	view := st.Records()
	view[0].Note = "tampered"
	if r, _ := st.Get("a"); r.Note != "" {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestEventsInMutationOrder(t *testing.T) {
	ctx := context.Background()
	st := NewStore(storage.NewMemorySlots(), "", nil)
	st.Load(ctx)

	var (
		mu    sync.Mutex
		kinds []EventKind
	)
	cancel := st.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
		// Reads are allowed from inside a listener.
		if len(ev.Snapshot) != st.Len() {
			t.Errorf("snapshot size %d != store size %d", len(ev.Snapshot), st.Len())
		}
	})

	st.Upsert(ctx, rec("a", "2025-01-01", 1))
	st.Delete(ctx, "a")
	st.ReplaceAll(ctx, nil)
	cancel()
	st.Upsert(ctx, rec("b", "2025-01-01", 1))

	want := []EventKind{EventUpserted, EventDeleted, EventReplaced}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}
}

func TestConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	st := NewStore(storage.NewMemorySlots(), "", nil)
	st.Load(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.Upsert(ctx, rec(core.NewID(), "2025-01-01", int64(i+1)))
		}(i)
	}
	wg.Wait()
	if st.Len() != 50 {
		t.Fatalf("Len() = %d, want 50", st.Len())
	}
}
