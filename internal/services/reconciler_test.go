package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/remote/memory"
)

func TestDefaultReconcilerConfig(t *testing.T) {
	config := DefaultReconcilerConfig()

	if config.QueueSize != 64 {
		t.Errorf("expected QueueSize 64, got %d", config.QueueSize)
	}
	if config.Timeout != 10*time.Second {
		t.Errorf("expected Timeout 10s, got %v", config.Timeout)
	}
	if config.Policy != FullReplace {
		t.Errorf("expected FullReplace policy, got %v", config.Policy)
	}
}

func TestReconciler_StartTwice(t *testing.T) {
	r := startReconciler(t, newStore(t), memory.New(), DefaultReconcilerConfig())
	if !r.isRunning() {
		t.Fatal("reconciler should be running")
	}
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
}

func TestReconciler_ActivateRequiresStart(t *testing.T) {
	r := NewReconciler(newStore(t), memory.New(), DefaultReconcilerConfig(), nil)
	if err := r.Activate(context.Background(), "h"); !errors.Is(err, errNotRunning) {
		t.Fatalf("Activate() error = %v, want errNotRunning", err)
	}
}

func TestReconciler_ActivationReplacesLocalSet(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	st.Upsert(ctx, rec("local", "2025-01-01", 1))

	rs := memory.New()
	rs.Seed("h", rec("r1", "2025-01-01", 1), rec("r2", "2025-02-01", 2))

	r := startReconciler(t, st, rs, DefaultReconcilerConfig())
	if err := r.Activate(ctx, "h"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	waitReady(t, r.Ready())

	if !sameIDs(st.Records(), "r2", "r1") {
		t.Fatalf("store = %v, want [r2 r1]", ids(st.Records()))
	}
	if r.Household() != "h" {
		t.Fatalf("Household() = %q", r.Household())
	}
}

func TestReconciler_FailedInitialPullKeepsLocal(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	st.Upsert(ctx, rec("local", "2025-01-01", 1))

	rs := memory.New()
	rs.Seed("h", rec("r1", "2025-01-01", 1))
	rs.FailNext(memory.OpList, errors.New("offline"))

	r := startReconciler(t, st, rs, DefaultReconcilerConfig())
	_ = r.Activate(ctx, "h")
	waitReady(t, r.Ready())

	if !sameIDs(st.Records(), "local") {
		t.Fatalf("store = %v, want [local]", ids(st.Records()))
	}
}

func TestReconciler_NotificationTriggersFullReplace(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := memory.New()
	rs.Seed("h", rec("r1", "2025-01-01", 1))

	r := startReconciler(t, st, rs, DefaultReconcilerConfig())
	_ = r.Activate(ctx, "h")
	waitReady(t, r.Ready())

	// Local-only content that the remote does not know about is discarded.
	st.ReplaceAll(ctx, []core.Expense{rec("stray", "2030-01-01", 1)})

	rs.Seed("h", rec("r3", "2025-03-01", 3), rec("r4", "2025-04-01", 4))
	rs.Touch("h")

	waitFor(t, "store to mirror remote", func() bool {
		return sameIDs(st.Records(), "r4", "r3")
	})
}

func TestReconciler_PushesLocalMutations(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := memory.New()
	rs.Seed("h", rec("r1", "2025-01-01", 1))

	r := startReconciler(t, st, rs, DefaultReconcilerConfig())
	_ = r.Activate(ctx, "h")
	waitReady(t, r.Ready())

	st.Upsert(ctx, rec("n1", "2025-05-01", 5))
	st.Delete(ctx, "r1")
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	got, _ := rs.List(ctx, "h")
	if !sameIDs(got, "n1") {
		t.Fatalf("remote = %v, want [n1]", ids(got))
	}
	waitFor(t, "echo pull to settle", func() bool { return sameIDs(st.Records(), "n1") })
}

func TestReconciler_UpsertManyPushesOneBatch(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := memory.New()

	r := startReconciler(t, st, rs, DefaultReconcilerConfig())
	_ = r.Activate(ctx, "h")
	waitReady(t, r.Ready())

	before := rs.Calls(memory.OpUpsert)
	st.UpsertMany(ctx, []core.Expense{rec("a", "2025-01-01", 1), rec("b", "2025-01-02", 1)})
	_ = r.Flush(ctx)

	if got := rs.Calls(memory.OpUpsert) - before; got != 1 {
		t.Fatalf("upsert calls = %d, want 1", got)
	}
	if got, _ := rs.List(ctx, "h"); len(got) != 2 {
		t.Fatalf("remote = %v", ids(got))
	}
}

func TestReconciler_FailedPushIsNotRetried(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := memory.New()

	r := startReconciler(t, st, rs, DefaultReconcilerConfig())
	_ = r.Activate(ctx, "h")
	waitReady(t, r.Ready())

	rs.FailNext(memory.OpUpsert, errors.New("503"))
	st.Upsert(ctx, rec("n1", "2025-05-01", 5))
	_ = r.Flush(ctx)

	if st.Len() != 1 {
		t.Fatalf("local mutation rolled back")
	}
	if got, _ := rs.List(ctx, "h"); len(got) != 0 {
		t.Fatalf("remote = %v, want empty", ids(got))
	}
	if rs.Calls(memory.OpUpsert) != 1 {
		t.Fatalf("upsert calls = %d, want exactly one attempt", rs.Calls(memory.OpUpsert))
	}
}

func TestReconciler_DeactivateStopsReplication(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := memory.New()

	r := startReconciler(t, st, rs, DefaultReconcilerConfig())
	_ = r.Activate(ctx, "h")
	waitReady(t, r.Ready())
	if rs.Subscribers("h") != 1 {
		t.Fatalf("subscribers = %d, want 1", rs.Subscribers("h"))
	}

	if err := r.Deactivate(ctx); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if rs.Subscribers("h") != 0 {
		t.Fatalf("subscription not cancelled")
	}
	if r.Household() != "" {
		t.Fatalf("Household() = %q, want empty", r.Household())
	}

	pushes := rs.Calls(memory.OpUpsert)
	st.Upsert(ctx, rec("offline", "2025-01-01", 1))
	_ = r.Flush(ctx)
	if rs.Calls(memory.OpUpsert) != pushes {
		t.Fatalf("mutation pushed after deactivation")
	}

	_ = rs.Upsert(ctx, "h", rec("remote-only", "2025-01-01", 1))
	time.Sleep(20 * time.Millisecond)
	if !sameIDs(st.Records(), "offline") {
		t.Fatalf("store changed after deactivation: %v", ids(st.Records()))
	}
}

func TestReconciler_StalePullIsDiscarded(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := memory.New()
	rs.Seed("old", rec("x", "2025-01-01", 1))
	rs.Seed("new", rec("y", "2025-01-01", 1))

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	rs.BeforeList(func(household string) {
		if household == "old" {
			once.Do(func() { close(entered) })
			<-release
		}
	})

	var (
		mu      sync.Mutex
		sawOldX bool
	)
	st.Subscribe(func(ev ledger.Event) {
		for _, e := range ev.Snapshot {
			if e.ID == "x" {
				mu.Lock()
				sawOldX = true
				mu.Unlock()
			}
		}
	})

	r := startReconciler(t, st, rs, DefaultReconcilerConfig())
	_ = r.Activate(ctx, "old")
	<-entered

	errCh := make(chan error, 1)
	go func() { errCh <- r.Activate(ctx, "new") }()
	waitFor(t, "old activation to be swapped out", func() bool { return r.Household() != "old" })
	close(release)

	if err := <-errCh; err != nil {
		t.Fatalf("Activate(new) error = %v", err)
	}
	waitReady(t, r.Ready())

	if !sameIDs(st.Records(), "y") {
		t.Fatalf("store = %v, want [y]", ids(st.Records()))
	}
	mu.Lock()
	defer mu.Unlock()
	if sawOldX {
		t.Fatal("result of the old household's pull reached the store")
	}
}

func TestReconciler_FullReplaceClobbersUnpushedWrite(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := newGatedRemote()
	replaces := countReplaces(st)

	r := NewReconciler(st, rs, DefaultReconcilerConfig(), nil)
	_ = r.Start(ctx)
	defer func() { rs.release(); _ = r.Stop(ctx) }()
	_ = r.Activate(ctx, "h")
	waitReady(t, r.Ready())

	st.Upsert(ctx, rec("fresh", "2025-06-01", 1))
	<-rs.entered // push is in flight and held

	rs.Touch("h")
	waitFor(t, "notification pull", func() bool { return replaces.get() == 2 })
	if st.Len() != 0 {
		t.Fatalf("store = %v; full replace should drop the unpushed write", ids(st.Records()))
	}

	rs.release()
	waitFor(t, "echo of the delivered push", func() bool { return sameIDs(st.Records(), "fresh") })
}

func TestReconciler_MergePendingKeepsUnpushedWrite(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := newGatedRemote()
	rs.Seed("h", rec("other", "2025-01-01", 1))
	replaces := countReplaces(st)

	cfg := DefaultReconcilerConfig()
	cfg.Policy = MergePending
	r := NewReconciler(st, rs, cfg, nil)
	_ = r.Start(ctx)
	defer func() { rs.release(); _ = r.Stop(ctx) }()
	_ = r.Activate(ctx, "h")
	waitReady(t, r.Ready())

	st.Upsert(ctx, rec("fresh", "2025-06-01", 1))
	<-rs.entered

	rs.Touch("h")
	waitFor(t, "notification pull", func() bool { return replaces.get() == 2 })
	if !sameIDs(st.Records(), "fresh", "other") {
		t.Fatalf("store = %v, want [fresh other]", ids(st.Records()))
	}
}

func TestReconciler_MergePendingKeepsPendingDelete(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := &gatedDeleteRemote{Store: memory.New(), gate: make(chan struct{}), entered: make(chan struct{}, 4)}
	rs.Seed("h", rec("a", "2025-01-01", 1), rec("b", "2025-01-02", 1))
	replaces := countReplaces(st)

	cfg := DefaultReconcilerConfig()
	cfg.Policy = MergePending
	r := NewReconciler(st, rs, cfg, nil)
	_ = r.Start(ctx)
	defer func() { rs.release(); _ = r.Stop(ctx) }()
	_ = r.Activate(ctx, "h")
	waitReady(t, r.Ready())

	st.Delete(ctx, "a")
	<-rs.entered
	rs.Touch("h")
	waitFor(t, "notification pull", func() bool { return replaces.get() == 2 })
	if !sameIDs(st.Records(), "b") {
		t.Fatalf("store = %v, want [b]", ids(st.Records()))
	}
}

type gatedDeleteRemote struct {
	*memory.Store
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (g *gatedDeleteRemote) release() {
	g.once.Do(func() { close(g.gate) })
}

func (g *gatedDeleteRemote) Delete(ctx context.Context, household, id string) error {
	g.entered <- struct{}{}
	<-g.gate
	return g.Store.Delete(ctx, household, id)
}

func TestReconciler_FullQueueDropsPush(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := newGatedRemote()

	cfg := DefaultReconcilerConfig()
	cfg.QueueSize = 1
	r := NewReconciler(st, rs, cfg, nil)
	_ = r.Start(ctx)
	defer func() { rs.release(); _ = r.Stop(ctx) }()
	_ = r.Activate(ctx, "h")
	waitReady(t, r.Ready())

	st.Upsert(ctx, rec("1", "2025-01-01", 1))
	<-rs.entered // worker is busy with the first push
	st.Upsert(ctx, rec("2", "2025-01-02", 1))
	st.Upsert(ctx, rec("3", "2025-01-03", 1))

	rs.release()
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	got, _ := rs.Store.List(ctx, "h")
	if !sameIDs(got, "2", "1") {
		t.Fatalf("remote = %v, want [2 1]", ids(got))
	}
}

func TestReconciler_StopDeliversQueuedPushes(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	rs := memory.New()

	r := NewReconciler(st, rs, DefaultReconcilerConfig(), nil)
	_ = r.Start(ctx)
	_ = r.Activate(ctx, "h")
	waitReady(t, r.Ready())

	for i := 0; i < 10; i++ {
		st.Upsert(ctx, rec(core.NewID(), "2025-01-01", int64(i+1)))
	}
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got, _ := rs.List(ctx, "h"); len(got) != 10 {
		t.Fatalf("remote has %d records, want 10", len(got))
	}
	if r.isRunning() {
		t.Fatal("reconciler still running")
	}
}
