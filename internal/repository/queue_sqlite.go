package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"aquora-hydration-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteQueueRepository implements QueueRepository using SQLite. It is the
// durable half of offline tolerance: events that could not reach the remote
// store live here until a confirmed bulk insert succeeds for them.
// Thread-safe with WAL mode.
type SQLiteQueueRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteQueueRepository opens (or creates) the local queue database.
// dbPath is the path to the SQLite file (e.g. "./data/queue.db").
func NewSQLiteQueueRepository(dbPath string) (*SQLiteQueueRepository, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createQueueTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteQueueRepository] Initialized with database: %s", dbPath)
	return &SQLiteQueueRepository{db: db}, nil
}

func createQueueTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS intake_queue (
		local_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount_ml INTEGER NOT NULL,
		logged_at DATETIME NOT NULL,
		day TEXT NOT NULL,
		source TEXT NOT NULL,
		client_token TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_queue_user ON intake_queue(user_id);
	CREATE TABLE IF NOT EXISTS pending_goals (
		user_id TEXT PRIMARY KEY,
		goal_ml INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(query)
	return err
}

// Enqueue appends one event. LocalIDs are freshly generated per event, so
// an append can never overwrite an existing entry.
func (r *SQLiteQueueRepository) Enqueue(ctx context.Context, event model.QueuedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO intake_queue (local_id, user_id, amount_ml, logged_at, day, source, client_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		event.LocalID, event.UserID, event.AmountMl, event.LoggedAt.UTC(),
		event.Day, string(event.Source), event.ClientToken, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

// LoadQueue returns all queued events for a user. Order is not significant
// for correctness but is kept stable (insertion order) for display.
func (r *SQLiteQueueRepository) LoadQueue(ctx context.Context, userID string) ([]model.QueuedEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT local_id, user_id, amount_ml, logged_at, day, source, client_token
		FROM intake_queue
		WHERE user_id = ?
		ORDER BY created_at, local_id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	defer rows.Close()

	var events []model.QueuedEvent
	for rows.Next() {
		var (
			ev     model.QueuedEvent
			source string
		)
		if err := rows.Scan(&ev.LocalID, &ev.UserID, &ev.AmountMl, &ev.LoggedAt, &ev.Day, &source, &ev.ClientToken); err != nil {
			return nil, fmt.Errorf("failed to scan queued event: %w", err)
		}
		ev.Source = model.Source(source)
		ev.Pending = true
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	return events, nil
}

// RemoveQueued deletes exactly one entry. Removing an id that is already
// gone is a no-op, so a flush raced by another tab stays safe.
func (r *SQLiteQueueRepository) RemoveQueued(ctx context.Context, localID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM intake_queue WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("failed to remove queued event: %w", err)
	}
	return nil
}

// SaveQueue replaces a user's queue wholesale in one transaction.
func (r *SQLiteQueueRepository) SaveQueue(ctx context.Context, userID string, events []model.QueuedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM intake_queue WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO intake_queue (local_id, user_id, amount_ml, logged_at, day, source, client_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, ev := range events {
		// created_at offsets keep insertion order stable across the rewrite.
		_, err := stmt.ExecContext(ctx,
			ev.LocalID, userID, ev.AmountMl, ev.LoggedAt.UTC(),
			ev.Day, string(ev.Source), ev.ClientToken, now.Add(time.Duration(i)*time.Microsecond))
		if err != nil {
			return fmt.Errorf("failed to save queued event %s: %w", ev.LocalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit queue: %w", err)
	}
	return nil
}

// Users returns every user id with queued events or a pending goal.
func (r *SQLiteQueueRepository) Users(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT user_id FROM intake_queue
		UNION
		SELECT user_id FROM pending_goals`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queue users: %w", err)
	}
	sort.Strings(users)
	return users, nil
}

// SetPendingGoal stashes the latest unsynced goal edit. Only the newest
// value matters, so the slot is a plain last-write-wins upsert.
func (r *SQLiteQueueRepository) SetPendingGoal(ctx context.Context, userID string, goalMl int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO pending_goals (user_id, goal_ml, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			goal_ml = excluded.goal_ml,
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, userID, goalMl, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set pending goal: %w", err)
	}
	return nil
}

// PendingGoal returns the stashed goal and whether one exists. Absence is
// "empty", not an error.
func (r *SQLiteQueueRepository) PendingGoal(ctx context.Context, userID string) (int, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var goal int
	err := r.db.QueryRowContext(ctx, `SELECT goal_ml FROM pending_goals WHERE user_id = ?`, userID).Scan(&goal)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get pending goal: %w", err)
	}
	return goal, true, nil
}

// ClearPendingGoal drops the stashed goal. Idempotent.
func (r *SQLiteQueueRepository) ClearPendingGoal(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_goals WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear pending goal: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteQueueRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLiteQueueRepository implements QueueRepository
var _ QueueRepository = (*SQLiteQueueRepository)(nil)
