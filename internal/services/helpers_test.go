package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/remote/memory"
	"ledger/internal/storage"
)

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

func sameIDs(got []core.Expense, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitReady(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial pull")
	}
}

func newStore(t *testing.T) *ledger.Store {
	t.Helper()
	st := ledger.NewStore(storage.NewMemorySlots(), "", nil)
	st.Load(context.Background())
	return st
}

func startReconciler(t *testing.T, st *ledger.Store, rs *memory.Store, cfg ReconcilerConfig) *Reconciler {
	t.Helper()
	r := NewReconciler(st, rs, cfg, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	})
	return r
}

// gatedRemote holds every Upsert until the gate is opened.
type gatedRemote struct {
	*memory.Store
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newGatedRemote() *gatedRemote {
	return &gatedRemote{Store: memory.New(), gate: make(chan struct{}), entered: make(chan struct{}, 16)}
}

func (g *gatedRemote) Upsert(ctx context.Context, household string, records ...core.Expense) error {
	g.entered <- struct{}{}
	<-g.gate
	return g.Store.Upsert(ctx, household, records...)
}

func (g *gatedRemote) release() {
	g.once.Do(func() { close(g.gate) })
}

// replaceCounter counts EventReplaced events of a store.
type replaceCounter struct {
	mu sync.Mutex
	n  int
}

func countReplaces(st *ledger.Store) *replaceCounter {
	c := &replaceCounter{}
	st.Subscribe(func(ev ledger.Event) {
		if ev.Kind == ledger.EventReplaced {
			c.mu.Lock()
			c.n++
			c.mu.Unlock()
		}
	})
	return c
}

func (c *replaceCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
