package model

import "time"

// Source identifies how an intake event was logged.
type Source string

const (
	SourceManual   Source = "manual"
	SourceQuickAdd Source = "quick-add"
	SourceCustom   Source = "custom"
	SourceQueued   Source = "queued"
)

// ParseSource maps raw input to a Source, defaulting to manual.
func ParseSource(s string) Source {
	switch Source(s) {
	case SourceQuickAdd, SourceCustom, SourceQueued:
		return Source(s)
	default:
		return SourceManual
	}
}

// IntakeEvent is one logged pour. ID is assigned by the remote store once
// the event is confirmed; until then Pending is true and ID is zero.
// ClientToken is a client-generated idempotency token the remote store
// enforces uniqueness on, so retrying a bulk flush that partially succeeded
// never duplicates committed rows.
type IntakeEvent struct {
	ID          int64     `json:"id,omitempty"`
	UserID      string    `json:"user_id"`
	AmountMl    int       `json:"amount_ml"`
	LoggedAt    time.Time `json:"logged_at"`
	Day         string    `json:"day"`
	Source      Source    `json:"source"`
	Pending     bool      `json:"pending"`
	ClientToken string    `json:"client_token,omitempty"`
}

// QueuedEvent is an IntakeEvent that failed to persist remotely or was
// created while offline. LocalID identifies the entry in local storage only
// and is never sent to the server as a primary key.
type QueuedEvent struct {
	LocalID string `json:"local_id"`
	IntakeEvent
}

// HistoryDay is one aggregated entry of the rolling history window.
type HistoryDay struct {
	Day     string `json:"day"`
	TotalMl int    `json:"total_ml"`
}
