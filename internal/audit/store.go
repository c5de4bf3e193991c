package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	// SQLite driver, referenced only through the connection string.
	_ "github.com/mattn/go-sqlite3"
)

// Store journals signaling lifecycle events to SQLite. Room state itself is
// ephemeral and never persisted; the journal exists so operators can
// reconstruct what a connection did after the fact. Writes funnel through a
// single goroutine, which is the only way SQLite stays contention-free under
// concurrent recorders.
type Store struct {
	db           *sql.DB
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex // protects closed
}

// writeOperation represents one queued journal write.
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// Event is one journaled signaling event.
type Event struct {
	ID           string    `json:"id"`
	ConnectionID string    `json:"connection_id"`
	Event        string    `json:"event"`
	Detail       string    `json:"detail"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewStore opens (and if needed creates) the journal database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply audit schema: %w", err)
	}

	s := &Store{
		db:           db,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// writeLoop processes all journal writes in a single goroutine.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			err := op.operation(s.db)
			if err != nil {
				// One retry; the journal is advisory, so a second
				// failure is logged and dropped rather than blocking
				// the signaling path.
				err = op.operation(s.db)
				if err != nil {
					log.Printf("Audit write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-s.shutdown:
			return
		}
	}
}

// Record journals one event for a connection.
func (s *Store) Record(ctx context.Context, connectionID, event, detail string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	entry := Event{
		ID:           uuid.New().String(),
		ConnectionID: connectionID,
		Event:        event,
		Detail:       detail,
		Timestamp:    time.Now().UTC(),
	}

	result := make(chan error, 1)
	op := writeOperation{
		operation: func(db *sql.DB) error {
			_, err := db.Exec(
				`INSERT INTO signaling_events (id, connection_id, event, detail, timestamp) VALUES (?, ?, ?, ?, ?)`,
				entry.ID, entry.ConnectionID, entry.Event, entry.Detail, entry.Timestamp,
			)
			return err
		},
		result: result,
	}

	select {
	case s.writeChannel <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.shutdown:
		return ErrStoreClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectionHistory returns a connection's journaled events in order.
func (s *Store) ConnectionHistory(ctx context.Context, connectionID string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, connection_id, event, detail, timestamp FROM signaling_events WHERE connection_id = ? ORDER BY timestamp ASC`,
		connectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.ConnectionID, &e.Event, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close drains the writer and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	return s.db.Close()
}
