package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kanoonai/kanoon/internal/log"
)

// ErrThreadNotFound indicates the requested thread does not exist.
var ErrThreadNotFound = errors.New("thread not found")

// Thread is a persisted conversation container (application-level type).
type Thread struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	StepCount int       `json:"step_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DB is the subset of pgx operations Store needs.
// Interfaces are defined by the consumer; *pgxpool.Pool satisfies this.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists threads and their steps in PostgreSQL.
// It is the persistence boundary for session resume: the reconstruction
// rules themselves live in ReconstructTurns, not here.
//
// Safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger log.Logger
}

// NewStore creates a Store over the given database handle.
func NewStore(db DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// CreateThread creates a new persisted thread.
func (s *Store) CreateThread(ctx context.Context, title string) (*Thread, error) {
	t := &Thread{ID: uuid.New(), Title: title}
	err := s.db.QueryRow(ctx,
		`INSERT INTO threads (id, title) VALUES ($1, $2) RETURNING created_at, updated_at`,
		t.ID, t.Title,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}
	s.logger.Debug("created thread", "thread_id", t.ID, "title", t.Title)
	return t, nil
}

// Thread retrieves a thread by ID.
func (s *Store) Thread(ctx context.Context, id uuid.UUID) (*Thread, error) {
	t := &Thread{ID: id}
	err := s.db.QueryRow(ctx,
		`SELECT title, step_count, created_at, updated_at FROM threads WHERE id = $1`,
		id,
	).Scan(&t.Title, &t.StepCount, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, ErrThreadNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread %s: %w", id, err)
	}
	return t, nil
}

// ListThreads lists threads ordered by updated_at descending.
func (s *Store) ListThreads(ctx context.Context, limit, offset int32) ([]*Thread, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, title, step_count, created_at, updated_at
		 FROM threads ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	threads := make([]*Thread, 0)
	for rows.Next() {
		t := &Thread{}
		if err := rows.Scan(&t.ID, &t.Title, &t.StepCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	return threads, nil
}

// DeleteThread deletes a thread and all its steps (CASCADE).
func (s *Store) DeleteThread(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM threads WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting thread %s: %w", id, err)
	}
	s.logger.Debug("deleted thread", "thread_id", id)
	return nil
}

// Steps returns the persisted steps of a thread in sequence order.
// Implements the StepLoader interface consumed by Lifecycle.
func (s *Store) Steps(ctx context.Context, threadID uuid.UUID) ([]PersistedStep, error) {
	rows, err := s.db.Query(ctx,
		`SELECT type, output FROM steps WHERE thread_id = $1 ORDER BY sequence_number ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading steps for thread %s: %w", threadID, err)
	}
	defer rows.Close()

	steps := make([]PersistedStep, 0)
	for rows.Next() {
		var step PersistedStep
		if err := rows.Scan(&step.Type, &step.Output); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading steps for thread %s: %w", threadID, err)
	}
	return steps, nil
}

// AppendTurns persists committed turns as steps, in order.
//
// Sequence numbers are computed inside the INSERT; turns for one
// session are processed sequentially by construction, so there is no
// concurrent writer racing on the same thread's sequence.
func (s *Store) AppendTurns(ctx context.Context, threadID uuid.UUID, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}

	for i, turn := range turns {
		stepType := StepTypeUser
		if turn.Role == RoleAssistant {
			stepType = StepTypeAssistant
		}
		_, err := s.db.Exec(ctx,
			`INSERT INTO steps (thread_id, type, output, sequence_number)
			 VALUES ($1, $2, $3,
			     (SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM steps WHERE thread_id = $1))`,
			threadID, stepType, turn.Content,
		)
		if err != nil {
			return fmt.Errorf("inserting step %d: %w", i, err)
		}
	}

	_, err := s.db.Exec(ctx,
		`UPDATE threads SET step_count = step_count + $2, updated_at = now() WHERE id = $1`,
		threadID, len(turns),
	)
	if err != nil {
		return fmt.Errorf("updating thread metadata: %w", err)
	}

	s.logger.Debug("appended steps", "thread_id", threadID, "count", len(turns))
	return nil
}
