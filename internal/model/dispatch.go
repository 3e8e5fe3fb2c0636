package model

import "strings"

// Intent selects which reminder a dispatch run evaluates.
type Intent string

const (
	IntentGoal   Intent = "goal"
	IntentStreak Intent = "streak"
)

// ParseIntent maps raw input to an Intent. Unknown or empty input defaults
// to the goal reminder.
func ParseIntent(s string) Intent {
	if Intent(strings.ToLower(strings.TrimSpace(s))) == IntentStreak {
		return IntentStreak
	}
	return IntentGoal
}

// DispatchResult aggregates the counters of one dispatch run.
type DispatchResult struct {
	Intent  Intent `json:"intent"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
	Removed int    `json:"removed"`
	Errors  int    `json:"errors"`
}

// ReminderMessage is the composed push payload.
type ReminderMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}
