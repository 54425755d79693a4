// Package memory is an in-process remote store. It backs tests and the hub's
// development mode, and notifies every subscriber of a household on every
// write, including the writer's own.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/remote"
)

// Operation names accepted by FailNext.
const (
	OpList      = "list"
	OpUpsert    = "upsert"
	OpDelete    = "delete"
	OpSubscribe = "subscribe"
)

var _ remote.Store = (*Store)(nil)

type Store struct {
	mu         sync.Mutex
	partitions map[string][]core.Expense
	subs       map[string]map[*subscription]struct{}
	failures   map[string][]error
	calls      map[string]int
	// beforeList runs before each List reads the partition, outside the lock.
	beforeList func(household string)
}

func New() *Store {
	return &Store{
		partitions: map[string][]core.Expense{},
		subs:       map[string]map[*subscription]struct{}{},
		failures:   map[string][]error{},
		calls:      map[string]int{},
	}
}

// FailNext makes the next call of op return err. Calls queue in order.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// BeforeList installs a hook run at the start of every List call.
func (s *Store) BeforeList(fn func(household string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeList = fn
}

// Seed replaces a partition without notifying subscribers.
func (s *Store) Seed(household string, records ...core.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions[household] = append([]core.Expense(nil), records...)
}

// Touch notifies subscribers of household without changing data.
func (s *Store) Touch(household string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyLocked(household)
}

// Subscribers returns the number of open subscriptions for household.
func (s *Store) Subscribers(household string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[household])
}

func (s *Store) List(_ context.Context, household string) ([]core.Expense, error) {
	s.mu.Lock()
	hook := s.beforeList
	s.mu.Unlock()
	if hook != nil {
		hook(household)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// An in-flight read completes even if its caller has moved on.
	if err := s.enter(OpList, household); err != nil {
		return nil, err
	}
	out := append([]core.Expense(nil), s.partitions[household]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (s *Store) Upsert(_ context.Context, household string, records ...core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpsert, household); err != nil {
		return err
	}
	part := s.partitions[household]
	for _, r := range records {
		replaced := false
		for i := range part {
			if part[i].ID == r.ID {
				part[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			part = append(part, r)
		}
	}
	s.partitions[household] = part
	s.notifyLocked(household)
	return nil
}

func (s *Store) Delete(_ context.Context, household, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDelete, household); err != nil {
		return err
	}
	part := s.partitions[household]
	for i := range part {
		if part[i].ID == id {
			s.partitions[household] = append(part[:i:i], part[i+1:]...)
			break
		}
	}
	s.notifyLocked(household)
	return nil
}

func (s *Store) Subscribe(_ context.Context, household string) (remote.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpSubscribe, household); err != nil {
		return nil, err
	}
	sub := &subscription{store: s, household: household, ch: make(chan remote.Change, 1)}
	if s.subs[household] == nil {
		s.subs[household] = map[*subscription]struct{}{}
	}
	s.subs[household][sub] = struct{}{}
	return sub, nil
}

// enter records a call and pops a queued failure. Caller holds s.mu.
func (s *Store) enter(op, household string) error {
	s.calls[op]++
	if household == "" {
		return remote.ErrEmptyHousehold
	}
	if q := s.failures[op]; len(q) > 0 {
		s.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func (s *Store) notifyLocked(household string) {
	c := remote.Change{Household: household, At: time.Now()}
	for sub := range s.subs[household] {
		remote.Notify(sub.ch, c)
	}
}

type subscription struct {
	store     *Store
	household string
	ch        chan remote.Change
	once      sync.Once
}

func (s *subscription) Changes() <-chan remote.Change { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.store.mu.Lock()
		defer s.store.mu.Unlock()
		delete(s.store.subs[s.household], s)
		close(s.ch)
	})
	return nil
}
