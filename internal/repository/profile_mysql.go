package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"aquora-hydration-api/internal/model"
)

// MySQLProfileRepository implements ProfileRepository using MySQL.
type MySQLProfileRepository struct {
	db *sql.DB
}

// NewMySQLProfileRepository creates a new MySQL profile repository.
func NewMySQLProfileRepository(db *sql.DB) *MySQLProfileRepository {
	return &MySQLProfileRepository{db: db}
}

// GetProfile returns a user's profile, or nil if none exists.
func (r *MySQLProfileRepository) GetProfile(ctx context.Context, userID string) (*model.HydrationProfile, error) {
	query := `SELECT user_id, goal_ml, COALESCE(time_zone, '') FROM hydration_profiles WHERE user_id = ?`

	var p model.HydrationProfile
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.GoalMl, &p.TimeZone)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// GetProfiles loads all listed users' profiles in one query. Users without
// a profile row are simply absent from the result.
func (r *MySQLProfileRepository) GetProfiles(ctx context.Context, userIDs []string) (map[string]*model.HydrationProfile, error) {
	profiles := make(map[string]*model.HydrationProfile, len(userIDs))
	if len(userIDs) == 0 {
		return profiles, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(
		`SELECT user_id, goal_ml, COALESCE(time_zone, '') FROM hydration_profiles WHERE user_id IN (%s)`,
		strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.HydrationProfile
		if err := rows.Scan(&p.UserID, &p.GoalMl, &p.TimeZone); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles[p.UserID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	return profiles, nil
}

// UpsertGoal sets a user's daily goal, creating the profile row if needed.
func (r *MySQLProfileRepository) UpsertGoal(ctx context.Context, userID string, goalMl int) error {
	query := `
		INSERT INTO hydration_profiles (user_id, goal_ml)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE goal_ml = VALUES(goal_ml)`

	if _, err := r.db.ExecContext(ctx, query, userID, goalMl); err != nil {
		return fmt.Errorf("failed to upsert goal: %w", err)
	}
	return nil
}

// Ensure MySQLProfileRepository implements ProfileRepository
var _ ProfileRepository = (*MySQLProfileRepository)(nil)
