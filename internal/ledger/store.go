// Package ledger owns the authoritative in-memory record set.
//
// The Store keeps records sorted by date descending, persists the full set to
// a local slot after every mutation and notifies listeners in mutation order.
// Persist failures are logged only: the in-memory copy stays authoritative for
// the session.
package ledger

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

type Store struct {
	slots  storage.Slots
	key    string
	logger *log.Logger

	// writeMu serializes mutations end to end, including persist and emit.
	writeMu sync.Mutex

	mu      sync.RWMutex
	records []core.Expense

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// NewStore builds a store persisting to slots under key. An empty key uses storage.ExpensesKey.
func NewStore(slots storage.Slots, key string, logger *log.Logger) *Store {
	if key == "" {
		key = storage.ExpensesKey
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		slots:     slots,
		key:       key,
		logger:    logger.WithComponent(log.ComponentLedger),
		listeners: map[int]Listener{},
	}
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (cancel func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

// Load restores the last persisted set. A missing, unreadable or corrupt slot
// yields an empty set; Load never fails.
func (s *Store) Load(ctx context.Context) []core.Expense {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var loaded []core.Expense
	data, ok, err := s.slots.Get(ctx, s.key)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "Failed to read local cache, starting empty",
			log.FieldOperation, log.OpLoad, log.FieldError, err)
	case !ok || len(data) == 0:
	default:
		if err := json.Unmarshal(data, &loaded); err != nil {
			s.logger.WarnContext(ctx, "Local cache is corrupt, starting empty",
				log.FieldOperation, log.OpLoad, log.FieldError, err)
			loaded = nil
		}
	}

	sortByDateDesc(loaded)
	snapshot := s.commit(loaded)
	s.logger.DebugContext(ctx, "Local cache loaded", log.FieldCount, len(snapshot))
	s.emit(Event{Kind: EventLoaded, Snapshot: snapshot})
	return clone(snapshot)
}

// Upsert inserts e, or replaces the record with the same id in place.
// New records go to the front before the set is re-sorted, so among equal
// dates the newest entry comes first. Returns the updated set.
func (s *Store) Upsert(ctx context.Context, e core.Expense) []core.Expense {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	next := make([]core.Expense, 0, len(s.records)+1)
	replaced := false
	for _, r := range s.records {
		if r.ID == e.ID {
			next = append(next, e)
			replaced = true
			continue
		}
		next = append(next, r)
	}
	s.mu.RUnlock()
	if !replaced {
		next = append([]core.Expense{e}, next...)
	}
	sortByDateDesc(next)

	snapshot := s.commit(next)
	s.persist(ctx, snapshot)
	s.emit(Event{Kind: EventUpserted, Records: []core.Expense{e}, Snapshot: snapshot})
	return clone(snapshot)
}

// UpsertMany merges batch by id: existing records are overwritten in place,
// new ids are appended in batch order, and a later duplicate within the batch
// wins. Returns the updated set.
func (s *Store) UpsertMany(ctx context.Context, batch []core.Expense) []core.Expense {
	if len(batch) == 0 {
		return s.Records()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	next := clone(s.records)
	s.mu.RUnlock()

	pos := make(map[string]int, len(next))
	for i, r := range next {
		pos[r.ID] = i
	}
	applied := make([]core.Expense, 0, len(batch))
	appliedPos := map[string]int{}
	for _, e := range batch {
		if i, ok := pos[e.ID]; ok {
			next[i] = e
		} else {
			pos[e.ID] = len(next)
			next = append(next, e)
		}
		if i, ok := appliedPos[e.ID]; ok {
			applied[i] = e
		} else {
			appliedPos[e.ID] = len(applied)
			applied = append(applied, e)
		}
	}
	sortByDateDesc(next)

	snapshot := s.commit(next)
	s.persist(ctx, snapshot)
	s.emit(Event{Kind: EventUpserted, Records: applied, Snapshot: snapshot})
	return clone(snapshot)
}

// Delete removes the record with id. Deleting an absent id is a no-op and
// reports false; nothing is persisted or emitted in that case.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	next := make([]core.Expense, 0, len(s.records))
	found := false
	for _, r := range s.records {
		if r.ID == id {
			found = true
			continue
		}
		next = append(next, r)
	}
	s.mu.RUnlock()
	if !found {
		return false
	}

	snapshot := s.commit(next)
	s.persist(ctx, snapshot)
	s.emit(Event{Kind: EventDeleted, IDs: []string{id}, Snapshot: snapshot})
	return true
}

// ReplaceAll atomically swaps the whole working set.
func (s *Store) ReplaceAll(ctx context.Context, records []core.Expense) []core.Expense {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := clone(records)
	sortByDateDesc(next)

	snapshot := s.commit(next)
	s.persist(ctx, snapshot)
	s.emit(Event{Kind: EventReplaced, Snapshot: snapshot})
	return clone(snapshot)
}

// Records returns a copy of the working set.
func (s *Store) Records() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.records)
}

// Get returns the record with id.
func (s *Store) Get(id string) (core.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return core.Expense{}, false
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// commit installs next as the working set and returns a snapshot copy for observers.
func (s *Store) commit(next []core.Expense) []core.Expense {
	if next == nil {
		next = []core.Expense{}
	}
	s.mu.Lock()
	s.records = next
	s.mu.Unlock()
	return clone(next)
}

func (s *Store) persist(ctx context.Context, records []core.Expense) {
	data, err := json.Marshal(records)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode records for local cache",
			log.FieldOperation, log.OpPersist, log.FieldError, err)
		return
	}
	if err := s.slots.Put(ctx, s.key, data); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist local cache",
			log.FieldOperation, log.OpPersist, log.FieldCount, len(records), log.FieldError, err)
	}
}

func (s *Store) emit(ev Event) {
	s.lmu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ls := make([]Listener, len(ids))
	for i, id := range ids {
		ls[i] = s.listeners[id]
	}
	s.lmu.Unlock()

	for i, l := range ls {
		if i > 0 {
			ev.Snapshot = clone(ev.Snapshot)
		}
		l(ev)
	}
}

func sortByDateDesc(records []core.Expense) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date > records[j].Date
	})
}

func clone(records []core.Expense) []core.Expense {
	if records == nil {
		return []core.Expense{}
	}
	out := make([]core.Expense, len(records))
	copy(out, records)
	return out
}
