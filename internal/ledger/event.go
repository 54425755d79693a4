package ledger

import "ledger/internal/core"

// EventKind tells observers which mutation produced an event.
type EventKind int

const (
	EventLoaded EventKind = iota
	EventUpserted
	EventDeleted
	EventReplaced
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventUpserted:
		return "upserted"
	case EventDeleted:
		return "deleted"
	case EventReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Event is emitted after a mutation has been committed and persisted.
type Event struct {
	Kind EventKind
	// Records holds the upserted records, in the order they were applied.
	Records []core.Expense
	// IDs holds the deleted ids.
	IDs []string
	// Snapshot is the full working set after the mutation. Observers own it.
	Snapshot []core.Expense
}

// Listener observes store events. It runs synchronously on the mutating
// goroutine and must not call mutating Store methods.
type Listener func(Event)
