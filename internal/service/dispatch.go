package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"aquora-hydration-api/internal/model"
	"aquora-hydration-api/internal/push"
	"aquora-hydration-api/internal/repository"
	"aquora-hydration-api/internal/stats"
)

// DispatcherConfig holds the dispatch run settings and dependencies.
type DispatcherConfig struct {
	Subscriptions repository.SubscriptionRepository
	Profiles      repository.ProfileRepository
	Store         repository.IntakeStore
	Sender        push.Sender

	GoalHour    int
	StreakHour  int
	Fallback    *time.Location
	SendTimeout time.Duration
	Clock       func() time.Time // nil means time.Now
}

// Dispatcher runs the scheduled reminder batch. One run evaluates a single
// intent for every user with a push subscription and sends at most one
// composed message per subscription.
type Dispatcher struct {
	subs     repository.SubscriptionRepository
	profiles repository.ProfileRepository
	store    repository.IntakeStore
	sender   push.Sender

	goalHour    int
	streakHour  int
	fallback    *time.Location
	sendTimeout time.Duration
	clock       func() time.Time
}

// NewDispatcher creates a dispatcher. Returns nil if any required
// dependency is missing.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Subscriptions == nil || cfg.Profiles == nil || cfg.Store == nil || cfg.Sender == nil {
		return nil
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = time.UTC
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		subs:        cfg.Subscriptions,
		profiles:    cfg.Profiles,
		store:       cfg.Store,
		sender:      cfg.Sender,
		goalHour:    cfg.GoalHour,
		streakHour:  cfg.StreakHour,
		fallback:    fallback,
		sendTimeout: timeout,
		clock:       clock,
	}
}

// Run executes one dispatch run for the given intent and returns the
// aggregate counters. Users are processed sequentially; all store reads
// happen up front in three bulk queries so the run's round trips do not
// scale with subscriber count.
func (d *Dispatcher) Run(ctx context.Context, intent model.Intent) (*model.DispatchResult, error) {
	result := &model.DispatchResult{Intent: intent}

	subs, err := d.subs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return result, nil
	}

	byUser := make(map[string][]model.PushSubscription)
	for _, s := range subs {
		byUser[s.UserID] = append(byUser[s.UserID], s)
	}
	userIDs := make([]string, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	profiles, err := d.profiles.GetProfiles(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	now := d.clock()
	// 8 days safely covers local midnight 6 days back in every zone
	// (7 days plus the widest UTC offset); exact windowing happens per
	// user when the entries are grouped by day key.
	entries, err := d.store.ReadEntriesByUsers(ctx, userIDs, now.Add(-8*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load intake history: %w", err)
	}

	for _, userID := range userIDs {
		profile := profiles[userID]
		if profile == nil || profile.GoalMl <= 0 {
			// No goal means no target to evaluate.
			result.Skipped++
			continue
		}

		loc := profile.Location(d.fallback)
		if now.In(loc).Hour() != d.targetHour(intent) {
			result.Skipped++
			continue
		}

		window := stats.BuildWindow(entries[userID], now, loc)
		todayTotal := window[len(window)-1].TotalMl
		// The streak at risk is the run of met days ending yesterday; today
		// is still in progress when the reminder fires.
		streak := stats.Streak(window[:len(window)-1], profile.GoalMl)

		msg := d.compose(intent, profile.GoalMl, todayTotal, streak)
		if msg == nil {
			result.Skipped++
			continue
		}

		for _, sub := range byUser[userID] {
			d.deliver(ctx, sub, msg, result)
		}
	}

	log.Printf("[Dispatcher] Run complete: intent=%s sent=%d skipped=%d removed=%d errors=%d",
		result.Intent, result.Sent, result.Skipped, result.Removed, result.Errors)
	return result, nil
}

func (d *Dispatcher) targetHour(intent model.Intent) int {
	if intent == model.IntentStreak {
		return d.streakHour
	}
	return d.goalHour
}

// compose builds the reminder, or returns nil when there is nothing to
// remind about (goal already met, or no streak to protect).
func (d *Dispatcher) compose(intent model.Intent, goalMl, todayTotal, streak int) *model.ReminderMessage {
	if todayTotal >= goalMl {
		return nil
	}
	remaining := goalMl - todayTotal

	switch intent {
	case model.IntentStreak:
		if streak == 0 {
			return nil
		}
		return &model.ReminderMessage{
			Title: "Keep your streak alive",
			Body:  fmt.Sprintf("Your %d-day streak is on the line. %d ml to go before midnight.", streak, remaining),
			Tag:   "streak-reminder",
		}
	default:
		if todayTotal == 0 {
			return &model.ReminderMessage{
				Title: "Time to hydrate",
				Body:  fmt.Sprintf("Nothing logged today yet. Your %d ml goal is waiting.", goalMl),
				Tag:   "goal-reminder",
			}
		}
		return &model.ReminderMessage{
			Title: "Almost there",
			Body:  fmt.Sprintf("Just %d ml left to reach today's goal.", remaining),
			Tag:   "goal-reminder",
		}
	}
}

// deliver attempts one push. Each attempt is independently bounded by the
// send timeout so a broken endpoint cannot stall the batch. A gone
// subscription is pruned, not retried; every other failure is counted and
// left for the next scheduled run.
func (d *Dispatcher) deliver(ctx context.Context, sub model.PushSubscription, msg *model.ReminderMessage, result *model.DispatchResult) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	err := d.sender.Send(sendCtx, sub, msg)
	cancel()

	switch {
	case err == nil:
		result.Sent++
	case errors.Is(err, push.ErrSubscriptionGone):
		if delErr := d.subs.Delete(ctx, sub.ID); delErr != nil {
			log.Printf("[Dispatcher] Failed to prune subscription %d: %v", sub.ID, delErr)
		}
		result.Removed++
	default:
		log.Printf("[Dispatcher] Delivery to user %s (subscription %d) failed: %v", sub.UserID, sub.ID, err)
		result.Errors++
	}
}
