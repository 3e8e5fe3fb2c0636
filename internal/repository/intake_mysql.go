package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"aquora-hydration-api/internal/model"
)

// MySQLEntryStore implements EntryStore against the hosted MySQL store.
// The intake table's schema is owned by the backend platform; this store
// only tolerates the two known amount-column layouts via the Shape
// parameter and leaves everything else to the platform.
type MySQLEntryStore struct {
	db *sql.DB
}

// NewMySQLEntryStore creates a new MySQL entry store.
func NewMySQLEntryStore(db *sql.DB) *MySQLEntryStore {
	return &MySQLEntryStore{db: db}
}

// InsertEntries writes a batch of events in one transaction. The client
// token column carries a uniqueness constraint; ON DUPLICATE KEY UPDATE
// id = id turns a re-inserted row into a no-op, so retrying a bulk flush
// that partially committed never duplicates rows.
func (s *MySQLEntryStore) InsertEntries(ctx context.Context, shape Shape, events []model.IntakeEvent) ([]model.IntakeEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO intake_events (user_id, %s, logged_at, day, source, client_token)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id`, shape.AmountColumn())

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	confirmed := make([]model.IntakeEvent, 0, len(events))
	for _, ev := range events {
		res, err := stmt.ExecContext(ctx, ev.UserID, ev.AmountMl, ev.LoggedAt.UTC(), ev.Day, string(ev.Source), ev.ClientToken)
		if err != nil {
			return nil, fmt.Errorf("failed to insert entry %s: %w", ev.ClientToken, err)
		}

		out := ev
		out.Pending = false
		// LastInsertId is 0 when the token already existed; the row is
		// confirmed either way and the next refresh carries its real id.
		if id, err := res.LastInsertId(); err == nil && id > 0 {
			out.ID = id
		}
		confirmed = append(confirmed, out)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit entries: %w", err)
	}
	return confirmed, nil
}

// EntriesSince returns one user's events logged at or after since.
func (s *MySQLEntryStore) EntriesSince(ctx context.Context, shape Shape, userID string, since time.Time) ([]model.IntakeEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, %s, logged_at, day, source, client_token
		FROM intake_events
		WHERE user_id = ? AND logged_at >= ?
		ORDER BY logged_at`, shape.AmountColumn())

	rows, err := s.db.QueryContext(ctx, query, userID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// EntriesSinceByUsers returns events for all listed users in a single
// query, grouped by user id. The dispatch job depends on this being one
// round trip regardless of subscriber count.
func (s *MySQLEntryStore) EntriesSinceByUsers(ctx context.Context, shape Shape, userIDs []string, since time.Time) (map[string][]model.IntakeEvent, error) {
	grouped := make(map[string][]model.IntakeEvent, len(userIDs))
	if len(userIDs) == 0 {
		return grouped, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]any, 0, len(userIDs)+1)
	for i, id := range userIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, since.UTC())

	query := fmt.Sprintf(`
		SELECT id, user_id, %s, logged_at, day, source, client_token
		FROM intake_events
		WHERE user_id IN (%s) AND logged_at >= ?
		ORDER BY user_id, logged_at`, shape.AmountColumn(), strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries by users: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		grouped[e.UserID] = append(grouped[e.UserID], e)
	}
	return grouped, nil
}

func scanEntries(rows *sql.Rows) ([]model.IntakeEvent, error) {
	var entries []model.IntakeEvent
	for rows.Next() {
		var (
			e      model.IntakeEvent
			source string
			token  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.AmountMl, &e.LoggedAt, &e.Day, &source, &token); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Source = model.Source(source)
		e.ClientToken = token.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	return entries, nil
}

// Ensure MySQLEntryStore implements EntryStore
var _ EntryStore = (*MySQLEntryStore)(nil)
