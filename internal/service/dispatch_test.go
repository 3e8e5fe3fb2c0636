package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aquora-hydration-api/internal/model"
	"aquora-hydration-api/internal/push"
	"aquora-hydration-api/internal/repository"
)

type fakeSubscriptions struct {
	mu      sync.Mutex
	subs    []model.PushSubscription
	deleted []int64
}

func (f *fakeSubscriptions) ListAll(_ context.Context) ([]model.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PushSubscription(nil), f.subs...), nil
}

func (f *fakeSubscriptions) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	kept := f.subs[:0]
	for _, s := range f.subs {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	f.subs = kept
	return nil
}

var _ repository.SubscriptionRepository = (*fakeSubscriptions)(nil)

type sentPush struct {
	sub model.PushSubscription
	msg model.ReminderMessage
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentPush
	// errs maps subscription id to the error Send should return.
	errs map[int64]error
}

func (f *fakeSender) Send(_ context.Context, sub model.PushSubscription, msg *model.ReminderMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[sub.ID]; ok {
		return err
	}
	f.sent = append(f.sent, sentPush{sub: sub, msg: *msg})
	return nil
}

var _ push.Sender = (*fakeSender)(nil)

// dispatchFixture wires a dispatcher around in-memory fakes with the clock
// pinned to the given UTC hour.
type dispatchFixture struct {
	subs     *fakeSubscriptions
	profiles *fakeProfiles
	store    *fakeIntakeStore
	sender   *fakeSender
	d        *Dispatcher
}

func newDispatchFixture(t *testing.T, hour int) *dispatchFixture {
	t.Helper()
	f := &dispatchFixture{
		subs:     &fakeSubscriptions{},
		profiles: newFakeProfiles(),
		store:    &fakeIntakeStore{},
		sender:   &fakeSender{},
	}
	f.d = NewDispatcher(DispatcherConfig{
		Subscriptions: f.subs,
		Profiles:      f.profiles,
		Store:         f.store,
		Sender:        f.sender,
		GoalHour:      18,
		StreakHour:    23,
		Fallback:      time.UTC,
		Clock: func() time.Time {
			return time.Date(2026, 2, 7, hour, 5, 0, 0, time.UTC)
		},
	})
	require.NotNil(t, f.d)
	return f
}

func (f *dispatchFixture) addUser(userID string, goalMl int, subIDs ...int64) {
	f.profiles.profiles[userID] = &model.HydrationProfile{UserID: userID, GoalMl: goalMl}
	for _, id := range subIDs {
		f.subs.subs = append(f.subs.subs, model.PushSubscription{
			ID:       id,
			UserID:   userID,
			Endpoint: "https://push.example/" + userID,
		})
	}
}

func (f *dispatchFixture) logIntake(userID string, day string, amountMl int) {
	loggedAt, _ := time.Parse("2006-01-02", day)
	f.store.events = append(f.store.events, model.IntakeEvent{
		UserID:   userID,
		AmountMl: amountMl,
		LoggedAt: loggedAt.Add(10 * time.Hour),
		Day:      day,
	})
}

func TestDispatcher_GoalReminderPartialProgress(t *testing.T) {
	f := newDispatchFixture(t, 18)
	f.addUser("u1", 2000, 1)
	f.logIntake("u1", "2026-02-07", 500)

	result, err := f.d.Run(context.Background(), model.IntentGoal)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Almost there", f.sender.sent[0].msg.Title)
	assert.Contains(t, f.sender.sent[0].msg.Body, "1500 ml")
	assert.Equal(t, "goal-reminder", f.sender.sent[0].msg.Tag)
}

func TestDispatcher_GoalReminderNothingLogged(t *testing.T) {
	f := newDispatchFixture(t, 18)
	f.addUser("u1", 2000, 1)

	result, err := f.d.Run(context.Background(), model.IntentGoal)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Time to hydrate", f.sender.sent[0].msg.Title)
	assert.Contains(t, f.sender.sent[0].msg.Body, "2000 ml goal")
}

func TestDispatcher_GoalMetSkips(t *testing.T) {
	f := newDispatchFixture(t, 18)
	f.addUser("u1", 2000, 1)
	f.logIntake("u1", "2026-02-07", 2000)

	result, err := f.d.Run(context.Background(), model.IntentGoal)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, f.sender.sent)
}

func TestDispatcher_StreakReminder(t *testing.T) {
	f := newDispatchFixture(t, 23)
	f.addUser("u1", 2000, 1)
	for _, day := range []string{"2026-02-04", "2026-02-05", "2026-02-06"} {
		f.logIntake("u1", day, 2000)
	}
	f.logIntake("u1", "2026-02-07", 1200)

	result, err := f.d.Run(context.Background(), model.IntentStreak)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].msg.Body, "3-day streak")
	assert.Contains(t, f.sender.sent[0].msg.Body, "800 ml")
	assert.Equal(t, "streak-reminder", f.sender.sent[0].msg.Tag)
}

func TestDispatcher_StreakReminderNoStreakSkips(t *testing.T) {
	f := newDispatchFixture(t, 23)
	f.addUser("u1", 2000, 1)
	// Yesterday missed, so there is no streak to protect.
	f.logIntake("u1", "2026-02-06", 300)
	f.logIntake("u1", "2026-02-07", 1200)

	result, err := f.d.Run(context.Background(), model.IntentStreak)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Skipped)
}

func TestDispatcher_WrongHourSkips(t *testing.T) {
	f := newDispatchFixture(t, 12)
	f.addUser("u1", 2000, 1)

	result, err := f.d.Run(context.Background(), model.IntentGoal)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Skipped)
}

func TestDispatcher_NoGoalSkips(t *testing.T) {
	f := newDispatchFixture(t, 18)
	f.addUser("no-goal", 0, 1)
	f.subs.subs = append(f.subs.subs, model.PushSubscription{ID: 2, UserID: "no-profile"})

	result, err := f.d.Run(context.Background(), model.IntentGoal)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 2, result.Skipped)
}

func TestDispatcher_GoneSubscriptionPruned(t *testing.T) {
	f := newDispatchFixture(t, 18)
	f.addUser("u1", 2000, 1, 2)
	f.sender.errs = map[int64]error{1: push.ErrSubscriptionGone}

	result, err := f.d.Run(context.Background(), model.IntentGoal)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent, "healthy subscription still served")
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, []int64{1}, f.subs.deleted)
}

func TestDispatcher_DeliveryErrorCounted(t *testing.T) {
	f := newDispatchFixture(t, 18)
	f.addUser("u1", 2000, 1)
	f.sender.errs = map[int64]error{1: errors.New("push service 500")}

	result, err := f.d.Run(context.Background(), model.IntentGoal)
	require.NoError(t, err, "delivery failures never fail the run")

	assert.Equal(t, 1, result.Errors)
	assert.Empty(t, f.subs.deleted, "transient failures are not pruned")
}

func TestDispatcher_NoSubscriptions(t *testing.T) {
	f := newDispatchFixture(t, 18)

	result, err := f.d.Run(context.Background(), model.IntentGoal)
	require.NoError(t, err)

	assert.Equal(t, model.IntentGoal, result.Intent)
	assert.Zero(t, result.Sent)
	assert.Zero(t, result.Skipped)
}

func TestDispatcher_ProfileZoneDecidesHour(t *testing.T) {
	// Run fires at 18:05 UTC; Berlin (UTC+1) is already past 18 local.
	f := newDispatchFixture(t, 18)
	f.addUser("utc-user", 2000, 1)
	f.addUser("berlin-user", 2000, 2)
	f.profiles.profiles["berlin-user"].TimeZone = "Europe/Berlin"

	result, err := f.d.Run(context.Background(), model.IntentGoal)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "utc-user", f.sender.sent[0].sub.UserID)
}

func TestNewDispatcher_MissingDependency(t *testing.T) {
	assert.Nil(t, NewDispatcher(DispatcherConfig{}))
	assert.Nil(t, NewDispatcher(DispatcherConfig{
		Subscriptions: &fakeSubscriptions{},
		Profiles:      newFakeProfiles(),
		Store:         &fakeIntakeStore{},
	}))
}
