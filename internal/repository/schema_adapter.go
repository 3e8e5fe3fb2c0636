package repository

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"

	"aquora-hydration-api/internal/model"
)

// Shape identifies which column layout the remote intake table carries.
type Shape int32

const (
	// ShapePrimary is the current layout storing the amount in amount_ml.
	ShapePrimary Shape = iota
	// ShapeLegacy is the pre-migration layout storing it in intake_ml.
	ShapeLegacy
)

// AmountColumn returns the amount column name for the shape.
func (s Shape) AmountColumn() string {
	if s == ShapeLegacy {
		return "intake_ml"
	}
	return "amount_ml"
}

func (s Shape) String() string {
	if s == ShapeLegacy {
		return "legacy"
	}
	return "primary"
}

func (s Shape) other() Shape {
	if s == ShapeLegacy {
		return ShapePrimary
	}
	return ShapeLegacy
}

// mysqlErrUnknownColumn is MySQL errno 1054 ("Unknown column ... in ...").
const mysqlErrUnknownColumn = 1054

// isUnknownColumn reports whether err is the store rejecting exactly the
// amount column of the attempted shape. Anything else (constraint, auth,
// connectivity) must propagate to the caller unmasked.
func isUnknownColumn(err error, col string) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) || myErr.Number != mysqlErrUnknownColumn {
		return false
	}
	return strings.Contains(myErr.Message, col)
}

// SchemaAdapter implements IntakeStore over a shape-aware EntryStore.
// Operations run against the shape that last worked; when the store rejects
// that shape's amount column the adapter retries exactly once with the
// other layout and remembers the result. This rides out a live column
// rename without an atomic cutover between client and server deployments.
type SchemaAdapter struct {
	store EntryStore
	shape atomic.Int32
}

// NewSchemaAdapter creates a schema adapter starting on the primary layout.
func NewSchemaAdapter(store EntryStore) *SchemaAdapter {
	return &SchemaAdapter{store: store}
}

// ActiveShape returns the layout the adapter currently believes is live.
func (a *SchemaAdapter) ActiveShape() Shape {
	return Shape(a.shape.Load())
}

func (a *SchemaAdapter) withFallback(op func(Shape) error) error {
	shape := a.ActiveShape()
	err := op(shape)
	if err == nil {
		return nil
	}
	if !isUnknownColumn(err, shape.AmountColumn()) {
		return err
	}

	fallback := shape.other()
	log.Printf("[SchemaAdapter] %s column %q rejected, retrying with %s layout",
		shape, shape.AmountColumn(), fallback)

	if err := op(fallback); err != nil {
		return err
	}
	a.shape.Store(int32(fallback))
	return nil
}

// WriteEntry persists one event and returns it with the server-assigned id,
// amount normalized to the canonical field regardless of the live layout.
func (a *SchemaAdapter) WriteEntry(ctx context.Context, event model.IntakeEvent) (model.IntakeEvent, error) {
	confirmed, err := a.WriteEntries(ctx, []model.IntakeEvent{event})
	if err != nil {
		return model.IntakeEvent{}, err
	}
	return confirmed[0], nil
}

// WriteEntries persists a batch of events all-or-nothing.
func (a *SchemaAdapter) WriteEntries(ctx context.Context, events []model.IntakeEvent) ([]model.IntakeEvent, error) {
	var confirmed []model.IntakeEvent
	err := a.withFallback(func(shape Shape) error {
		result, err := a.store.InsertEntries(ctx, shape, events)
		if err != nil {
			return err
		}
		confirmed = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// ReadEntries returns one user's events logged at or after since.
func (a *SchemaAdapter) ReadEntries(ctx context.Context, userID string, since time.Time) ([]model.IntakeEvent, error) {
	var entries []model.IntakeEvent
	err := a.withFallback(func(shape Shape) error {
		result, err := a.store.EntriesSince(ctx, shape, userID, since)
		if err != nil {
			return err
		}
		entries = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadEntriesByUsers returns events for all listed users in one query,
// grouped by user id.
func (a *SchemaAdapter) ReadEntriesByUsers(ctx context.Context, userIDs []string, since time.Time) (map[string][]model.IntakeEvent, error) {
	var grouped map[string][]model.IntakeEvent
	err := a.withFallback(func(shape Shape) error {
		result, err := a.store.EntriesSinceByUsers(ctx, shape, userIDs, since)
		if err != nil {
			return err
		}
		grouped = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grouped, nil
}

// Ensure SchemaAdapter implements IntakeStore
var _ IntakeStore = (*SchemaAdapter)(nil)
