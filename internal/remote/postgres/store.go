// Package postgres is a remote store on a shared PostgreSQL database. Change
// notifications come from a row trigger calling pg_notify and are received
// with a pq.Listener.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/remote"
)

var _ remote.Store = (*Store)(nil)

const (
	channel        = "ledger_changes"
	minReconnect   = time.Second
	maxReconnect   = 30 * time.Second
	listenerPingBy = 90 * time.Second
)

type Store struct {
	db     *sql.DB
	dsn    string
	logger *log.Logger
}

// Open connects to dsn and applies pending migrations.
func Open(ctx context.Context, dsn string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentRemote)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	version, err := migrateUp(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.InfoContext(ctx, "Postgres remote ready", "schema_version", version)

	return &Store{db: db, dsn: dsn, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context, household string) ([]core.Expense, error) {
	if household == "" {
		return nil, remote.ErrEmptyHousehold
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, from_label, to_label, category, amount, spender, note
		FROM expenses
		WHERE household = $1
		ORDER BY date DESC, updated_at DESC`, household)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", household, err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.ID, &e.Date, &e.From, &e.To, &e.Category, &e.Amount, &e.Spender, &e.Note); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", household, err)
	}
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, household string, records ...core.Expense) error {
	if household == "" {
		return remote.ErrEmptyHousehold
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO expenses (household, id, date, from_label, to_label, category, amount, spender, note, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (household, id) DO UPDATE SET
			date = excluded.date,
			from_label = excluded.from_label,
			to_label = excluded.to_label,
			category = excluded.category,
			amount = excluded.amount,
			spender = excluded.spender,
			note = excluded.note,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range records {
		if _, err := stmt.ExecContext(ctx, household, e.ID, e.Date, e.From, e.To, e.Category, e.Amount, e.Spender, e.Note); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", household, e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, household, id string) error {
	if household == "" {
		return remote.ErrEmptyHousehold
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE household = $1 AND id = $2`, household, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", household, id, err)
	}
	return nil
}

// Subscribe listens for trigger notifications of household. A listener
// reconnect is reported as a change because notifications sent while
// disconnected are lost.
func (s *Store) Subscribe(ctx context.Context, household string) (remote.Subscription, error) {
	if household == "" {
		return nil, remote.ErrEmptyHousehold
	}

	logger := s.logger.With(log.FieldHousehold, household)
	listener := pq.NewListener(s.dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("Change listener event", "event", listenerEventName(ev), log.FieldError, err)
		}
	})
	if err := listener.Listen(channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	sctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		listener: listener,
		ch:       make(chan remote.Change, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go sub.run(sctx, household)
	return sub, nil
}

type subscription struct {
	listener *pq.Listener
	ch       chan remote.Change
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

func (s *subscription) Changes() <-chan remote.Change { return s.ch }

func (s *subscription) Close() error {
	s.cancel()
	<-s.done
	var err error
	s.once.Do(func() { err = s.listener.Close() })
	return err
}

func (s *subscription) run(ctx context.Context, household string) {
	defer close(s.done)
	defer close(s.ch)

	ping := time.NewTicker(listenerPingBy)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			s.once.Do(func() { _ = s.listener.Close() })
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			// nil follows a reconnect.
			if n == nil || n.Extra == household {
				remote.Notify(s.ch, remote.Change{Household: household, At: time.Now()})
			}
		case <-ping.C:
			go s.listener.Ping()
		}
	}
}

func listenerEventName(ev pq.ListenerEventType) string {
	switch ev {
	case pq.ListenerEventConnected:
		return "connected"
	case pq.ListenerEventDisconnected:
		return "disconnected"
	case pq.ListenerEventReconnected:
		return "reconnected"
	case pq.ListenerEventConnectionAttemptFailed:
		return "connection_attempt_failed"
	default:
		return "unknown"
	}
}
