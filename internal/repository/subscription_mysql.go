package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"aquora-hydration-api/internal/model"
)

// MySQLSubscriptionRepository implements SubscriptionRepository using MySQL.
// Subscription rows are owned by the push-registration flow; this engine
// only lists them and prunes the ones the push service reports as gone.
type MySQLSubscriptionRepository struct {
	db *sql.DB
}

// NewMySQLSubscriptionRepository creates a new MySQL subscription repository.
func NewMySQLSubscriptionRepository(db *sql.DB) *MySQLSubscriptionRepository {
	return &MySQLSubscriptionRepository{db: db}
}

// ListAll returns every stored subscription in one query, grouped-friendly
// order (by user, then id).
func (r *MySQLSubscriptionRepository) ListAll(ctx context.Context) ([]model.PushSubscription, error) {
	query := `
		SELECT id, user_id, endpoint, p256dh_key, auth_key, created_at
		FROM push_subscriptions
		ORDER BY user_id, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		var s model.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}
	return subs, nil
}

// Delete prunes one subscription. Deleting a missing id is a no-op so
// concurrent runs pruning the same dead endpoint never conflict.
func (r *MySQLSubscriptionRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Printf("[SubscriptionRepository] Pruned dead subscription %d", id)
	}
	return nil
}

// Ensure MySQLSubscriptionRepository implements SubscriptionRepository
var _ SubscriptionRepository = (*MySQLSubscriptionRepository)(nil)
