package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a session id does not exist.
var ErrNotFound = errors.New("session not found")

// Store manages the PostgreSQL connection used for workout history.
type Store struct {
	conn *pgx.Conn
}

// Session is one analyzed workout as it is persisted.
type Session struct {
	ID         uuid.UUID
	Exercise   string
	SourceID   string
	SourcePath string
	Reps       int
	AvgScore   float64
	MinScore   int
	Calories   int
	Samples    int
	OutOfFrame int
	DurationMS int64
	CreatedAt  time.Time
	// Issues is the per-kind issue histogram.
	Issues map[string]int
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS workout_sessions (
			id UUID PRIMARY KEY,
			exercise TEXT NOT NULL,
			source_id TEXT NOT NULL,
			source_path TEXT NOT NULL,
			reps INT NOT NULL,
			avg_score DOUBLE PRECISION NOT NULL,
			min_score INT NOT NULL,
			calories INT NOT NULL,
			samples INT NOT NULL,
			out_of_frame INT NOT NULL,
			duration_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS session_issues (
			session_id UUID REFERENCES workout_sessions(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			count INT NOT NULL,
			PRIMARY KEY (session_id, kind)
		);
		CREATE INDEX IF NOT EXISTS workout_sessions_created_at_idx ON workout_sessions (created_at DESC);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// SaveSession inserts a session and its issue histogram in one transaction.
// A zero ID is replaced with a fresh one; the stored ID is returned.
func (s *Store) SaveSession(ctx context.Context, sess Session) (uuid.UUID, error) {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO workout_sessions (id, exercise, source_id, source_path, reps, avg_score, min_score, calories, samples, out_of_frame, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, sess.ID, sess.Exercise, sess.SourceID, sess.SourcePath, sess.Reps, sess.AvgScore, sess.MinScore,
		sess.Calories, sess.Samples, sess.OutOfFrame, sess.DurationMS)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert session: %w", err)
	}

	for kind, count := range sess.Issues {
		if _, err := tx.Exec(ctx, "INSERT INTO session_issues (session_id, kind, count) VALUES ($1, $2, $3)", sess.ID, kind, count); err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert issue %s: %w", kind, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit session: %w", err)
	}
	return sess.ID, nil
}

const sessionColumns = `id, exercise, source_id, source_path, reps, avg_score, min_score, calories, samples, out_of_frame, duration_ms, created_at`

func scanSession(row pgx.Row) (Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.Exercise, &sess.SourceID, &sess.SourcePath, &sess.Reps, &sess.AvgScore,
		&sess.MinScore, &sess.Calories, &sess.Samples, &sess.OutOfFrame, &sess.DurationMS, &sess.CreatedAt)
	return sess, err
}

// ListSessions returns the most recent sessions, newest first. Issue
// histograms are not loaded; use GetSession for the full record.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(ctx, "SELECT "+sessionColumns+" FROM workout_sessions ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// GetSession loads a single session with its issue histogram.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	sess, err := scanSession(s.conn.QueryRow(ctx, "SELECT "+sessionColumns+" FROM workout_sessions WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}

	rows, err := s.conn.Query(ctx, "SELECT kind, count FROM session_issues WHERE session_id = $1", id)
	if err != nil {
		return Session{}, err
	}
	defer rows.Close()

	sess.Issues = make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return Session{}, err
		}
		sess.Issues[kind] = count
	}
	return sess, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS session_issues CASCADE;
		DROP TABLE IF EXISTS workout_sessions CASCADE;
	`)
	return err
}
