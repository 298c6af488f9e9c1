// Package userdata persists the attendee's own schedule: which sessions are
// starred into "My Schedule" and the reservation status of each.
package userdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"confsched/internal/model"
)

// ErrNotFound indicates no record exists for a session.
var ErrNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS my_sessions (
	session_id         TEXT PRIMARY KEY,
	in_schedule        INTEGER NOT NULL DEFAULT 0,
	reservation_status INTEGER NOT NULL DEFAULT -1,
	updated_at         INTEGER NOT NULL
);`

// Record is the stored state of one session.
type Record struct {
	SessionID         string
	InSchedule        bool
	ReservationStatus model.ReservationStatus
	UpdatedAt         time.Time
}

// Store wraps the sqlite database holding user records.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("userdata path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create userdata directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open userdata database: %w", err)
	}

	// One connection: sqlite has a single writer, and every :memory:
	// connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the record for one session.
func (s *Store) Get(ctx context.Context, sessionID string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, in_schedule, reservation_status, updated_at
		   FROM my_sessions WHERE session_id = ?`, sessionID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s: %w", sessionID, ErrNotFound)
	}
	return rec, err
}

// All returns every stored record keyed by session id.
func (s *Store) All(ctx context.Context) (map[string]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, in_schedule, reservation_status, updated_at FROM my_sessions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Record)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.SessionID] = rec
	}
	return out, rows.Err()
}

// SetInSchedule stars or unstars a session.
func (s *Store) SetInSchedule(ctx context.Context, sessionID string, in bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO my_sessions (session_id, in_schedule, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET in_schedule = excluded.in_schedule,
		                                       updated_at = excluded.updated_at`,
		sessionID, boolToInt(in), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to update schedule for %s: %w", sessionID, err)
	}
	return nil
}

// SetReservationStatus stores a reservation status. Reserving or
// waitlisting a session also adds it to the schedule.
func (s *Store) SetReservationStatus(ctx context.Context, sessionID string, status model.ReservationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid reservation status %d", int(status))
	}
	star := status == model.ReservationReserved || status == model.ReservationWaitlisted
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO my_sessions (session_id, in_schedule, reservation_status, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET reservation_status = excluded.reservation_status,
		                                       in_schedule = MAX(in_schedule, excluded.in_schedule),
		                                       updated_at = excluded.updated_at`,
		sessionID, boolToInt(star), int(status), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to update reservation for %s: %w", sessionID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec     Record
		in      int
		status  int
		updated int64
	)
	if err := sc.Scan(&rec.SessionID, &in, &status, &updated); err != nil {
		return Record{}, err
	}
	rec.InSchedule = in != 0
	rec.ReservationStatus = model.ReservationStatus(status)
	rec.UpdatedAt = time.UnixMilli(updated)
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
