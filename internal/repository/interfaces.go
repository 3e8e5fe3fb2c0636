package repository

import (
	"context"
	"time"

	"aquora-hydration-api/internal/model"
)

// EntryStore is the raw, shape-aware store for intake rows. The amount
// column name depends on the Shape because the hosted table may still carry
// the legacy layout; callers go through the SchemaAdapter, which picks the
// shape and normalizes results.
type EntryStore interface {
	// InsertEntries writes a batch of events in one transaction. Rows whose
	// client token already exists are left untouched, so retrying a batch
	// that partially committed is safe.
	InsertEntries(ctx context.Context, shape Shape, events []model.IntakeEvent) ([]model.IntakeEvent, error)

	// EntriesSince returns one user's events logged at or after since.
	EntriesSince(ctx context.Context, shape Shape, userID string, since time.Time) ([]model.IntakeEvent, error)

	// EntriesSinceByUsers returns events for all listed users in a single
	// query, grouped by user id.
	EntriesSinceByUsers(ctx context.Context, shape Shape, userIDs []string, since time.Time) (map[string][]model.IntakeEvent, error)
}

// IntakeStore is the canonical intake API the services consume. The schema
// adapter implements it over an EntryStore, hiding the column-layout skew.
type IntakeStore interface {
	WriteEntry(ctx context.Context, event model.IntakeEvent) (model.IntakeEvent, error)
	WriteEntries(ctx context.Context, events []model.IntakeEvent) ([]model.IntakeEvent, error)
	ReadEntries(ctx context.Context, userID string, since time.Time) ([]model.IntakeEvent, error)
	ReadEntriesByUsers(ctx context.Context, userIDs []string, since time.Time) (map[string][]model.IntakeEvent, error)
}

// ProfileRepository defines hydration profile data access.
type ProfileRepository interface {
	// GetProfile returns a user's profile, or nil if none exists.
	GetProfile(ctx context.Context, userID string) (*model.HydrationProfile, error)

	// GetProfiles loads all listed users' profiles in one query.
	GetProfiles(ctx context.Context, userIDs []string) (map[string]*model.HydrationProfile, error)

	// UpsertGoal sets a user's daily goal, creating the profile row if
	// needed. Idempotent.
	UpsertGoal(ctx context.Context, userID string, goalMl int) error
}

// SubscriptionRepository defines push subscription data access.
type SubscriptionRepository interface {
	// ListAll returns every stored subscription in one query.
	ListAll(ctx context.Context) ([]model.PushSubscription, error)

	// Delete prunes one subscription. Deleting a missing id is a no-op.
	Delete(ctx context.Context, id int64) error
}

// QueueRepository is the local durable queue of not-yet-confirmed intake
// events, plus the single pending-goal slot per user.
type QueueRepository interface {
	// Enqueue appends one event; existing entries are never overwritten.
	Enqueue(ctx context.Context, event model.QueuedEvent) error

	// LoadQueue returns all queued events for a user in stable order.
	LoadQueue(ctx context.Context, userID string) ([]model.QueuedEvent, error)

	// RemoveQueued deletes exactly one entry; removing a missing id is a
	// no-op, not an error.
	RemoveQueued(ctx context.Context, localID string) error

	// SaveQueue replaces a user's queue wholesale, used when editing a
	// queued entry's amount in place.
	SaveQueue(ctx context.Context, userID string, events []model.QueuedEvent) error

	// Users returns every user id with queued events or a pending goal.
	Users(ctx context.Context) ([]string, error)

	// SetPendingGoal stashes the latest unsynced goal edit (last-write-wins).
	SetPendingGoal(ctx context.Context, userID string, goalMl int) error

	// PendingGoal returns the stashed goal and whether one exists.
	PendingGoal(ctx context.Context, userID string) (int, bool, error)

	// ClearPendingGoal drops the stashed goal. Idempotent.
	ClearPendingGoal(ctx context.Context, userID string) error

	// Close closes the underlying storage.
	Close() error
}
