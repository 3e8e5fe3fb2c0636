package model

import "time"

// HydrationProfile holds per-user hydration settings. A GoalMl of 0 means
// the user has not set a daily target yet. Profiles are created and updated
// via idempotent upsert keyed by UserID and never deleted by this engine.
type HydrationProfile struct {
	UserID   string `json:"user_id"`
	GoalMl   int    `json:"goal_ml"`
	TimeZone string `json:"time_zone,omitempty"` // IANA name; empty falls back to the configured default
}

// Location resolves the profile's time zone, falling back to def when the
// zone is unset or unknown. A nil receiver resolves to def as well.
func (p *HydrationProfile) Location(def *time.Location) *time.Location {
	if def == nil {
		def = time.UTC
	}
	if p == nil || p.TimeZone == "" {
		return def
	}
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return def
	}
	return loc
}
