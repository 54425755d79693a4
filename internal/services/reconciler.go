package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/remote"
)

// PullPolicy decides how a pulled remote snapshot is applied to the store.
type PullPolicy int

const (
	// FullReplace installs the remote snapshot as is. A local mutation whose
	// push has not reached the remote yet is overwritten by a pull that lands
	// in between; it reappears only if its push succeeds and triggers another pull.
	FullReplace PullPolicy = iota
	// MergePending re-applies local mutations still waiting in the push queue
	// on top of the remote snapshot, keyed by id.
	MergePending
)

// ReconcilerConfig holds configuration for the reconciler
type ReconcilerConfig struct {
	// QueueSize bounds the push queue; mutations beyond it are dropped (default: 64)
	QueueSize int

	// Timeout bounds every remote call (default: 10s)
	Timeout time.Duration

	// Policy selects how pulls are applied (default: FullReplace)
	Policy PullPolicy
}

// DefaultReconcilerConfig returns sensible defaults
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		QueueSize: 64,
		Timeout:   10 * time.Second,
		Policy:    FullReplace,
	}
}

// Reconciler keeps a Store eventually consistent with one household partition
// of a remote store. Local mutations are pushed fire-and-forget, in order, by a
// single worker. Any change notification triggers a full pull that replaces
// the store contents. Results of pulls started under an earlier activation are
// discarded.
type Reconciler struct {
	store  *ledger.Store
	remote remote.Store
	config ReconcilerConfig
	logger *log.Logger

	// active is read from the store listener, which runs while the store
	// holds its write lock, so it must not go through mu.
	active atomic.Pointer[activation]
	gen    uint64

	// Lifecycle management. mu is held while a pull is applied to the
	// store, so nothing reached from a store listener may take it.
	mu          sync.Mutex
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	unsubscribe func()

	// qmu guards the push queue; a nil queue means mutations are not pushed.
	qmu    sync.RWMutex
	pushCh chan pushJob

	inflight atomic.Int64
	seq      atomic.Uint64

	pendingMu sync.Mutex
	pending   map[string]pendingOp
}

type activation struct {
	household string
	gen       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

func (a *activation) markReady() {
	a.readyOnce.Do(func() { close(a.ready) })
}

type pushJob struct {
	household string
	seq       uint64
	records   []core.Expense
	deleteID  string
}

type pendingOp struct {
	seq       uint64
	household string
	record    *core.Expense // nil for a delete
}

var errNotRunning = errors.New("reconciler is not running")

// NewReconciler creates a reconciler between store and remoteStore
func NewReconciler(store *ledger.Store, remoteStore remote.Store, config ReconcilerConfig, logger *log.Logger) *Reconciler {
	def := DefaultReconcilerConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Reconciler{
		store:   store,
		remote:  remoteStore,
		config:  config,
		logger:  logger.WithComponent(log.ComponentReconciler),
		pending: map[string]pendingOp{},
	}
}

// Start begins the push worker and starts observing the store. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	ch := make(chan pushJob, r.config.QueueSize)

	r.qmu.Lock()
	r.pushCh = ch
	r.qmu.Unlock()

	r.unsubscribe = r.store.Subscribe(r.onStoreEvent)
	go r.pushLoop(ch, r.stopCh, r.doneCh)

	r.logger.InfoContext(ctx, "Reconciler started",
		"queue_size", r.config.QueueSize,
		"timeout", r.config.Timeout)
	return nil
}

// Stop deactivates the current household, drains queued pushes and waits for the worker.
func (r *Reconciler) Stop(ctx context.Context) error {
	if err := r.Deactivate(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.unsubscribe()
	r.qmu.Lock()
	r.pushCh = nil
	r.qmu.Unlock()
	close(r.stopCh)
	done := r.doneCh
	r.running = false
	r.mu.Unlock()

	select {
	case <-done:
		r.logger.InfoContext(ctx, "Reconciler stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Reconciler stop timed out", log.FieldCount, r.inflight.Load())
		return ctx.Err()
	}
}

func (r *Reconciler) isRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Household returns the active household, "" when local-only.
func (r *Reconciler) Household() string {
	if a := r.active.Load(); a != nil {
		return a.household
	}
	return ""
}

// Ready is closed once the first pull of the current activation has finished,
// successfully or not. With no active household it is already closed.
func (r *Reconciler) Ready() <-chan struct{} {
	if a := r.active.Load(); a != nil {
		return a.ready
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Activate switches replication to household. The previous activation, if any,
// is torn down first. An empty household only deactivates.
func (r *Reconciler) Activate(ctx context.Context, household string) error {
	if err := r.Deactivate(ctx); err != nil {
		return err
	}
	if household == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return errNotRunning
	}
	r.gen++
	actx, cancel := context.WithCancel(context.Background())
	a := &activation{
		household: household,
		gen:       r.gen,
		ctx:       actx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	r.active.Store(a)
	go r.watch(a)

	r.logger.InfoContext(ctx, "Household activated",
		log.FieldHousehold, household,
		log.FieldGeneration, a.gen)
	return nil
}

// Deactivate cancels the subscription of the current household and waits for
// its watcher to exit. Queued pushes are still delivered.
func (r *Reconciler) Deactivate(ctx context.Context) error {
	r.mu.Lock()
	a := r.active.Swap(nil)
	r.mu.Unlock()
	if a == nil {
		return nil
	}
	a.cancel()

	select {
	case <-a.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.logger.InfoContext(ctx, "Household deactivated", log.FieldHousehold, a.household)
	return nil
}

// Flush waits until every queued push has been attempted.
func (r *Reconciler) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for r.inflight.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Sync forces a full pull of the active household. Queued pushes are
// delivered first so the pull includes them.
func (r *Reconciler) Sync(ctx context.Context) error {
	a := r.active.Load()
	if a == nil {
		return nil
	}
	if err := r.Flush(ctx); err != nil {
		return err
	}
	return r.pull(ctx, a)
}

// onStoreEvent queues local mutations for the active household. Pulls land
// as EventReplaced and are never pushed back.
func (r *Reconciler) onStoreEvent(ev ledger.Event) {
	a := r.active.Load()
	if a == nil {
		return
	}
	switch ev.Kind {
	case ledger.EventUpserted:
		if len(ev.Records) > 0 {
			r.enqueue(pushJob{household: a.household, records: ev.Records})
		}
	case ledger.EventDeleted:
		for _, id := range ev.IDs {
			r.enqueue(pushJob{household: a.household, deleteID: id})
		}
	}
}

func (r *Reconciler) enqueue(job pushJob) {
	job.seq = r.seq.Add(1)
	r.trackPending(job)
	r.inflight.Add(1)

	r.qmu.RLock()
	if r.pushCh != nil {
		select {
		case r.pushCh <- job:
			r.qmu.RUnlock()
			return
		default:
		}
	}
	r.qmu.RUnlock()

	r.inflight.Add(-1)
	r.clearPending(job)
	metrics.Pushes.WithLabelValues(job.op(), metrics.ResultDropped).Inc()
	r.logger.Warn("Push queue full, mutation will not be replicated",
		log.FieldHousehold, job.household,
		log.FieldOperation, job.op())
}

func (j pushJob) op() string {
	if j.deleteID != "" {
		return log.OpDelete
	}
	return log.OpUpsert
}

func (r *Reconciler) pushLoop(ch <-chan pushJob, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case job := <-ch:
			r.push(job)
		case <-stop:
			for {
				select {
				case job := <-ch:
					r.push(job)
				default:
					return
				}
			}
		}
	}
}

// push makes a single delivery attempt. Failures are logged and not retried.
func (r *Reconciler) push(job pushJob) {
	defer r.inflight.Add(-1)
	defer r.clearPending(job)

	ctx, cancel := context.WithTimeout(context.Background(), r.config.Timeout)
	defer cancel()

	var err error
	if job.deleteID != "" {
		err = r.remote.Delete(ctx, job.household, job.deleteID)
	} else {
		err = r.remote.Upsert(ctx, job.household, job.records...)
	}
	if err != nil {
		metrics.Pushes.WithLabelValues(job.op(), metrics.ResultError).Inc()
		r.logger.WarnContext(ctx, "Push failed, local change kept but not replicated",
			log.FieldHousehold, job.household,
			log.FieldOperation, job.op(),
			log.FieldCount, len(job.records),
			log.FieldError, err)
		return
	}
	metrics.Pushes.WithLabelValues(job.op(), metrics.ResultOK).Inc()
	r.logger.DebugContext(ctx, "Pushed local change",
		log.FieldHousehold, job.household,
		log.FieldOperation, job.op(),
		log.FieldCount, len(job.records))
}

// watch owns one activation: it subscribes, pulls once, then pulls again on
// every change signal until the activation is cancelled.
func (r *Reconciler) watch(a *activation) {
	defer close(a.done)
	defer a.markReady()

	// Subscribing before the first read means a change landing between the
	// two still triggers a pull.
	sub, err := r.remote.Subscribe(a.ctx, a.household)
	if err != nil {
		if a.ctx.Err() == nil {
			r.logger.WarnContext(a.ctx, "Subscribe failed, household stays local-only until reactivated",
				log.FieldHousehold, a.household,
				log.FieldOperation, log.OpSubscribe,
				log.FieldError, err)
		}
		sub = nil
	}

	_ = r.pull(a.ctx, a)
	a.markReady()

	if sub == nil {
		return
	}
	defer sub.Close()

	for {
		select {
		case <-a.ctx.Done():
			return
		case _, ok := <-sub.Changes():
			if !ok {
				if a.ctx.Err() == nil {
					r.logger.WarnContext(a.ctx, "Change feed closed",
						log.FieldHousehold, a.household)
				}
				return
			}
			_ = r.pull(a.ctx, a)
		}
	}
}

// pull reads the whole partition and applies it if a is still the active activation.
func (r *Reconciler) pull(ctx context.Context, a *activation) error {
	callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	records, err := r.remote.List(callCtx, a.household)
	cancel()
	if err != nil {
		if a.ctx.Err() != nil {
			return a.ctx.Err()
		}
		metrics.Pulls.WithLabelValues(metrics.ResultError).Inc()
		r.logger.WarnContext(ctx, "Pull failed, keeping local state",
			log.FieldHousehold, a.household,
			log.FieldOperation, log.OpPull,
			log.FieldError, err)
		return fmt.Errorf("pull %s: %w", a.household, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur := r.active.Load(); cur != a {
		metrics.Pulls.WithLabelValues(metrics.ResultStale).Inc()
		r.logger.DebugContext(ctx, "Discarding stale pull result",
			log.FieldHousehold, a.household,
			log.FieldGeneration, a.gen)
		return nil
	}

	if r.config.Policy == MergePending {
		records = r.overlayPending(a.household, records)
	}
	r.store.ReplaceAll(context.Background(), records)
	metrics.Pulls.WithLabelValues(metrics.ResultOK).Inc()
	r.logger.DebugContext(ctx, "Pulled household",
		log.FieldHousehold, a.household,
		log.FieldCount, len(records))
	return nil
}

func (r *Reconciler) trackPending(job pushJob) {
	if r.config.Policy != MergePending {
		return
	}
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	if job.deleteID != "" {
		r.pending[job.deleteID] = pendingOp{seq: job.seq, household: job.household}
		return
	}
	for i := range job.records {
		rec := job.records[i]
		r.pending[rec.ID] = pendingOp{seq: job.seq, household: job.household, record: &rec}
	}
}

func (r *Reconciler) clearPending(job pushJob) {
	if r.config.Policy != MergePending {
		return
	}
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	drop := func(id string) {
		if op, ok := r.pending[id]; ok && op.seq == job.seq {
			delete(r.pending, id)
		}
	}
	if job.deleteID != "" {
		drop(job.deleteID)
		return
	}
	for _, rec := range job.records {
		drop(rec.ID)
	}
}

// overlayPending applies queued local mutations of household on top of a pulled snapshot.
func (r *Reconciler) overlayPending(household string, records []core.Expense) []core.Expense {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	if len(r.pending) == 0 {
		return records
	}

	out := make([]core.Expense, 0, len(records))
	seen := map[string]bool{}
	for _, rec := range records {
		op, ok := r.pending[rec.ID]
		if !ok || op.household != household {
			out = append(out, rec)
			continue
		}
		seen[rec.ID] = true
		if op.record != nil {
			out = append(out, *op.record)
		}
	}
	ids := make([]string, 0, len(r.pending))
	for id, op := range r.pending {
		if op.household == household && op.record != nil && !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, *r.pending[id].record)
	}
	return out
}
