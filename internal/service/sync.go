package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"aquora-hydration-api/internal/cache"
	"aquora-hydration-api/internal/model"
	"aquora-hydration-api/internal/notify"
	"aquora-hydration-api/internal/repository"
	"aquora-hydration-api/internal/stats"
	"aquora-hydration-api/pkg/daykey"
	"aquora-hydration-api/pkg/uid"
)

// Validation failures are rejected before any I/O and never queued.
var (
	ErrInvalidAmount = errors.New("amount must be a positive number of millilitres")
	ErrInvalidGoal   = errors.New("goal must not be negative")
)

// SyncState is the per-user session state of the reconciler.
type SyncState string

const (
	StateIdle    SyncState = "idle"
	StateLoading SyncState = "loading"
	StateMerged  SyncState = "merged"
)

// View is the merged per-user state handed to the presentation layer. The
// engine always produces some view, even when every backend is down.
type View struct {
	State      SyncState           `json:"state"`
	Degraded   bool                `json:"degraded"`
	Flushing   bool                `json:"flushing"`
	Notice     string              `json:"notice,omitempty"`
	Events     []model.IntakeEvent `json:"events"`
	Window     []model.HistoryDay  `json:"window"`
	Today      string              `json:"today"`
	TodayTotal int                 `json:"today_total_ml"`
	GoalMl     int                 `json:"goal_ml"`
	Percent    int                 `json:"percent"`
	Streak     int                 `json:"streak"`
}

// ReconcilerConfig holds the reconciler's dependencies.
type ReconcilerConfig struct {
	Store    repository.IntakeStore   // nil starts the engine offline
	Queue    repository.QueueRepository
	Profiles repository.ProfileRepository
	Cache    cache.Cache // optional profile cache
	Bus      *notify.Bus // optional; connectivity + change signals
	Fallback *time.Location
	CacheTTL time.Duration
	Clock    func() time.Time // nil means time.Now
}

// Reconciler merges local queue state with remote-confirmed state. Writes
// go to the remote store when it is reachable and divert to the durable
// queue otherwise; the queue is flushed opportunistically when connectivity
// returns and never double-submits thanks to per-event idempotency tokens.
type Reconciler struct {
	store    repository.IntakeStore
	queue    repository.QueueRepository
	profiles repository.ProfileRepository
	cache    cache.Cache
	bus      *notify.Bus
	fallback *time.Location
	cacheTTL time.Duration
	clock    func() time.Time

	mu       sync.Mutex
	online   bool
	sessions map[string]*session
}

// session tracks one user's reconciliation state.
type session struct {
	state    SyncState
	degraded bool
	flushing bool
	notice   string
	merged   []model.IntakeEvent
	// overflow holds events that could not even reach local storage. They
	// exist only in memory, so the user still sees them until the process
	// restarts or a flush drains them.
	overflow []model.QueuedEvent
}

// NewReconciler creates a reconciler. It starts online when a remote store
// is available and subscribes to connectivity events on the bus.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = time.UTC
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	r := &Reconciler{
		store:    cfg.Store,
		queue:    cfg.Queue,
		profiles: cfg.Profiles,
		cache:    cfg.Cache,
		bus:      cfg.Bus,
		fallback: fallback,
		cacheTTL: ttl,
		clock:    clock,
		online:   cfg.Store != nil,
		sessions: make(map[string]*session),
	}

	if cfg.Bus != nil {
		cfg.Bus.Subscribe(notify.TopicConnectivity, func(ev notify.Event) {
			r.handleConnectivity(ev.Online)
		})
	}

	return r
}

// SetOnline flips the connectivity flag. Transitioning to online drains
// the queue for every user with pending state.
func (r *Reconciler) SetOnline(online bool) {
	r.handleConnectivity(online)
}

// Online reports the current connectivity flag.
func (r *Reconciler) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

func (r *Reconciler) handleConnectivity(online bool) {
	r.mu.Lock()
	wasOnline := r.online
	r.online = online && r.store != nil
	becameOnline := !wasOnline && r.online
	r.mu.Unlock()

	if becameOnline {
		log.Printf("[Reconciler] Connectivity restored, flushing queued state")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		r.FlushAll(ctx)
	}
}

func (r *Reconciler) session(userID string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		s = &session{state: StateIdle}
		r.sessions[userID] = s
	}
	return s
}

// Refresh produces the merged view for one user: remote-confirmed events
// for the 7-day window plus everything still queued locally. Offline (or
// on remote failure) it degrades to queue-only rather than erroring.
func (r *Reconciler) Refresh(ctx context.Context, userID string) (*View, error) {
	sess := r.session(userID)

	r.mu.Lock()
	sess.state = StateLoading
	sess.notice = ""
	r.mu.Unlock()

	profile := r.profile(ctx, userID)
	loc := profile.Location(r.fallback)
	now := r.clock()
	queued := r.loadQueued(ctx, sess, userID)

	var (
		merged   []model.IntakeEvent
		degraded bool
		notice   string
	)

	if r.Online() {
		since := daykey.WindowStart(now, loc)
		remote, err := r.store.ReadEntries(ctx, userID, since)
		if err != nil {
			log.Printf("[Reconciler] Remote read failed for user %s: %v", userID, err)
			degraded = true
			notice = "Couldn't reach the server. Showing locally saved entries."
		} else {
			merged = append(merged, remote...)
		}
	} else {
		degraded = true
		notice = "You're offline. Showing locally saved entries."
	}

	for _, q := range queued {
		ev := q.IntakeEvent
		ev.Pending = true
		merged = append(merged, ev)
	}

	r.mu.Lock()
	sess.state = StateMerged
	sess.degraded = degraded
	sess.notice = notice
	sess.merged = merged
	view := r.buildViewLocked(sess, profile, now, loc)
	r.mu.Unlock()

	return view, nil
}

// AddEntry records one pour. Non-positive amounts are rejected before any
// I/O. Online it writes straight through the schema adapter; on any write
// failure the event is queued instead of lost. Offline it queues directly.
func (r *Reconciler) AddEntry(ctx context.Context, userID string, amountMl int, source model.Source) (*View, error) {
	if amountMl <= 0 {
		return nil, ErrInvalidAmount
	}

	sess := r.session(userID)
	profile := r.profile(ctx, userID)
	loc := profile.Location(r.fallback)
	now := r.clock()

	event := model.IntakeEvent{
		UserID:      userID,
		AmountMl:    amountMl,
		LoggedAt:    now,
		Day:         daykey.Key(now, loc),
		Source:      source,
		ClientToken: uid.New(),
	}

	var notice string
	if r.Online() {
		confirmed, err := r.store.WriteEntry(ctx, event)
		if err == nil {
			r.mu.Lock()
			sess.merged = append(sess.merged, confirmed)
			view := r.buildViewLocked(sess, profile, now, loc)
			r.mu.Unlock()
			r.publish(notify.Event{Topic: notify.TopicIntakeLogged, UserID: userID})
			return view, nil
		}
		log.Printf("[Reconciler] Direct write failed for user %s, queueing: %v", userID, err)
		notice = "Couldn't reach the server. Saved locally, will sync automatically."
	} else {
		notice = "You're offline. Saved locally, will sync automatically."
	}

	queued := model.QueuedEvent{LocalID: uid.New(), IntakeEvent: event}
	queued.Source = model.SourceQueued
	queued.Pending = true

	// Local storage is best-effort: on failure keep the entry in memory
	// and warn instead of failing the request.
	localErr := fmt.Errorf("local queue unavailable")
	if r.queue != nil {
		localErr = r.queue.Enqueue(ctx, queued)
	}
	if localErr != nil {
		log.Printf("[Reconciler] Enqueue failed for user %s: %v", userID, localErr)
		notice = "Local storage unavailable. Entry kept in memory only."
		r.mu.Lock()
		sess.overflow = append(sess.overflow, queued)
		sess.degraded = true
		r.mu.Unlock()
	}

	r.mu.Lock()
	sess.merged = append(sess.merged, queued.IntakeEvent)
	sess.notice = notice
	view := r.buildViewLocked(sess, profile, now, loc)
	r.mu.Unlock()

	r.publish(notify.Event{Topic: notify.TopicIntakeLogged, UserID: userID})
	return view, nil
}

// UpdateQueuedAmount edits a queued entry's amount in place via a bulk
// queue rewrite. Unknown local ids are a no-op.
func (r *Reconciler) UpdateQueuedAmount(ctx context.Context, userID, localID string, amountMl int) error {
	if amountMl <= 0 {
		return ErrInvalidAmount
	}
	if r.queue == nil {
		return fmt.Errorf("local queue unavailable")
	}

	queued, err := r.queue.LoadQueue(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load queue: %w", err)
	}
	changed := false
	for i := range queued {
		if queued[i].LocalID == localID {
			queued[i].AmountMl = amountMl
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.queue.SaveQueue(ctx, userID, queued)
}

// FlushQueue pushes one user's queued state to the remote store as a
// single all-or-nothing bulk insert. On success every flushed item leaves
// the local queue; on failure the queue is untouched and the caller gets a
// retry-later error. Retries are duplicate-safe via the client tokens.
func (r *Reconciler) FlushQueue(ctx context.Context, userID string) error {
	if !r.Online() {
		return fmt.Errorf("cannot flush while offline")
	}

	sess := r.session(userID)

	r.mu.Lock()
	sess.flushing = true
	overflow := append([]model.QueuedEvent(nil), sess.overflow...)
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		sess.flushing = false
		r.mu.Unlock()
	}()

	queued := r.loadDurable(ctx, userID)
	batch := make([]model.IntakeEvent, 0, len(queued)+len(overflow))
	for _, q := range queued {
		batch = append(batch, q.IntakeEvent)
	}
	for _, q := range overflow {
		batch = append(batch, q.IntakeEvent)
	}

	if len(batch) > 0 {
		if _, err := r.store.WriteEntries(ctx, batch); err != nil {
			log.Printf("[Reconciler] Flush failed for user %s, queue left intact: %v", userID, err)
			r.mu.Lock()
			sess.notice = "Sync failed. Your entries are safe and will retry later."
			r.mu.Unlock()
			return fmt.Errorf("failed to flush queue: %w", err)
		}

		for _, q := range queued {
			if err := r.queue.RemoveQueued(ctx, q.LocalID); err != nil {
				log.Printf("[Reconciler] Failed to remove flushed item %s: %v", q.LocalID, err)
			}
		}
		r.mu.Lock()
		sess.overflow = nil
		r.mu.Unlock()
		log.Printf("[Reconciler] Flushed %d queued entries for user %s", len(batch), userID)
	}

	if err := r.flushPendingGoal(ctx, userID); err != nil {
		log.Printf("[Reconciler] Pending goal flush failed for user %s: %v", userID, err)
	}

	_, err := r.Refresh(ctx, userID)
	return err
}

// FlushAll drains every user with queued state. Used on the offline→online
// transition.
func (r *Reconciler) FlushAll(ctx context.Context) {
	var users []string
	if r.queue != nil {
		var err error
		users, err = r.queue.Users(ctx)
		if err != nil {
			log.Printf("[Reconciler] Failed to list queued users: %v", err)
		}
	}

	seen := make(map[string]bool, len(users))
	for _, u := range users {
		seen[u] = true
	}
	r.mu.Lock()
	for u, s := range r.sessions {
		if len(s.overflow) > 0 && !seen[u] {
			users = append(users, u)
			seen[u] = true
		}
	}
	r.mu.Unlock()

	for _, u := range users {
		if err := r.FlushQueue(ctx, u); err != nil {
			log.Printf("[Reconciler] Flush for user %s failed: %v", u, err)
		}
	}
}

// SetGoal upserts the user's daily goal. Offline (or when the upsert
// fails) the value is stashed under the single pending-goal slot and
// synced on reconnect; only the latest pending value matters.
func (r *Reconciler) SetGoal(ctx context.Context, userID string, goalMl int) (notice string, err error) {
	if goalMl < 0 {
		return "", ErrInvalidGoal
	}

	if r.Online() {
		if err := r.profiles.UpsertGoal(ctx, userID, goalMl); err == nil {
			r.invalidateProfile(ctx, userID)
			r.publish(notify.Event{Topic: notify.TopicGoalUpdated, UserID: userID})
			return "", nil
		} else {
			log.Printf("[Reconciler] Goal upsert failed for user %s, stashing: %v", userID, err)
		}
	}

	if r.queue == nil {
		return "", fmt.Errorf("cannot save goal: offline and local storage unavailable")
	}
	if err := r.queue.SetPendingGoal(ctx, userID, goalMl); err != nil {
		return "", fmt.Errorf("failed to stash goal: %w", err)
	}
	return "Goal saved locally, will sync automatically.", nil
}

func (r *Reconciler) flushPendingGoal(ctx context.Context, userID string) error {
	if r.queue == nil {
		return nil
	}
	goal, ok, err := r.queue.PendingGoal(ctx, userID)
	if err != nil || !ok {
		return err
	}
	if err := r.profiles.UpsertGoal(ctx, userID, goal); err != nil {
		return fmt.Errorf("failed to sync pending goal: %w", err)
	}
	r.invalidateProfile(ctx, userID)
	r.publish(notify.Event{Topic: notify.TopicGoalUpdated, UserID: userID})
	return r.queue.ClearPendingGoal(ctx, userID)
}

// profile loads the user's profile through the cache. Every failure mode
// collapses to a zero profile: the engine still renders, just without a
// goal.
func (r *Reconciler) profile(ctx context.Context, userID string) *model.HydrationProfile {
	if r.profiles == nil {
		return nil
	}

	load := func() ([]byte, error) {
		p, err := r.profiles.GetProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			p = &model.HydrationProfile{UserID: userID}
		}
		return json.Marshal(p)
	}

	var data []byte
	var err error
	if r.cache != nil {
		data, err = r.cache.GetOrSet(ctx, profileCacheKey(userID), r.cacheTTL, load)
	} else {
		data, err = load()
	}
	if err != nil {
		log.Printf("[Reconciler] Profile load failed for user %s: %v", userID, err)
		return nil
	}

	var p model.HydrationProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	return &p
}

func (r *Reconciler) invalidateProfile(ctx context.Context, userID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, profileCacheKey(userID)); err != nil {
		log.Printf("[Reconciler] Profile cache invalidation failed for user %s: %v", userID, err)
	}
}

func profileCacheKey(userID string) string {
	return "profile:" + userID
}

func (r *Reconciler) loadDurable(ctx context.Context, userID string) []model.QueuedEvent {
	if r.queue == nil {
		return nil
	}
	queued, err := r.queue.LoadQueue(ctx, userID)
	if err != nil {
		log.Printf("[Reconciler] Queue load failed for user %s: %v", userID, err)
		return nil
	}
	return queued
}

func (r *Reconciler) loadQueued(ctx context.Context, sess *session, userID string) []model.QueuedEvent {
	queued := r.loadDurable(ctx, userID)
	r.mu.Lock()
	queued = append(queued, sess.overflow...)
	r.mu.Unlock()
	return queued
}

// buildViewLocked derives the presentation state from the merged events.
// Callers hold r.mu.
func (r *Reconciler) buildViewLocked(sess *session, profile *model.HydrationProfile, now time.Time, loc *time.Location) *View {
	goal := 0
	if profile != nil {
		goal = profile.GoalMl
	}

	window := stats.BuildWindow(sess.merged, now, loc)
	today := daykey.Key(now, loc)
	total := stats.DailyTotal(sess.merged, today)

	events := append([]model.IntakeEvent(nil), sess.merged...)
	return &View{
		State:      sess.state,
		Degraded:   sess.degraded,
		Flushing:   sess.flushing,
		Notice:     sess.notice,
		Events:     events,
		Window:     window,
		Today:      today,
		TodayTotal: total,
		GoalMl:     goal,
		Percent:    stats.PercentToGoal(total, goal),
		Streak:     stats.Streak(window, goal),
	}
}

func (r *Reconciler) publish(ev notify.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}
