// Package inbox assembles the synchronization core for one authenticated
// user: the cache, the refresh scheduler, the push router, and the
// mutation engine. UI consumers read through its snapshot selectors and
// act through its mutation methods; everything else is internal wiring.
package inbox

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hirelight/hirelight/internal/activity"
	"github.com/hirelight/hirelight/internal/backend"
	"github.com/hirelight/hirelight/internal/cache"
	"github.com/hirelight/hirelight/internal/engine"
	"github.com/hirelight/hirelight/internal/events"
	"github.com/hirelight/hirelight/internal/logging"
	"github.com/hirelight/hirelight/internal/models"
	"github.com/hirelight/hirelight/internal/push"
	"github.com/hirelight/hirelight/internal/scheduler"
	"github.com/hirelight/hirelight/internal/views"
)

// View is what UI consumers render from. Threads are pre-filtered and
// sorted newest first; Messages holds every cached message for drill-in
// sorting by the views package.
type View struct {
	Threads        []models.Thread
	Messages       []models.Message
	Counts         views.Counts
	Loading        bool
	Err            error
	LastRefresh    time.Time
	AutoRefreshing bool
	Cadence        scheduler.Cadence
}

// Controller owns the per-user sync core. Acquire and Release pair the
// lifetime of the push subscription and scheduler to the signed-in user;
// neither outlives a user switch.
type Controller struct {
	store     backend.Store
	identity  backend.Identity
	monitor   *activity.Monitor
	router    *push.Router
	publisher *events.InMemoryPublisher
	logger    zerolog.Logger

	schedConfig scheduler.Config
	toastFn     engine.ToastFunc
	notifyFn    push.Notifier

	mu          sync.Mutex
	generation  int
	userID      string
	cacheStore  *cache.Store
	sched       *scheduler.Scheduler
	mutations   *engine.Engine
	filter      models.ThreadFilter
	autoRefresh bool
	loading     bool
	lastErr     error
	lastRefresh time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithSchedulerConfig overrides the polling intervals.
func WithSchedulerConfig(config scheduler.Config) Option {
	return func(c *Controller) { c.schedConfig = config }
}

// WithToastFunc receives mutation outcomes for display.
func WithToastFunc(fn engine.ToastFunc) Option {
	return func(c *Controller) { c.toastFn = fn }
}

// WithMessageNotifier receives newly pushed inbound messages.
func WithMessageNotifier(fn push.Notifier) Option {
	return func(c *Controller) { c.notifyFn = fn }
}

// New builds a Controller over the backend store, push transport, and
// activity monitor. Call Acquire once a user is signed in.
func New(store backend.Store, transport backend.PushTransport, identity backend.Identity, monitor *activity.Monitor, opts ...Option) *Controller {
	c := &Controller{
		store:       store,
		identity:    identity,
		monitor:     monitor,
		publisher:   events.NewInMemoryPublisher(),
		logger:      logging.Component("inbox"),
		schedConfig: scheduler.DefaultConfig(),
		filter:      models.FilterActive,
		autoRefresh: true,
		toastFn:     func(engine.Toast) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	userToast := c.toastFn
	c.toastFn = func(toast engine.Toast) {
		if toast.Level != engine.ToastInfo {
			c.publisher.Publish(events.Event{Type: events.TypeMutationFailed})
		}
		userToast(toast)
	}
	userNotify := c.notifyFn
	notify := func(msg models.Message) {
		c.publisher.Publish(events.Event{
			Type:      events.TypeMessageInserted,
			ThreadID:  msg.ThreadID,
			MessageID: msg.ID,
		})
		if userNotify != nil {
			userNotify(msg)
		}
	}
	c.router = push.NewRouter(transport, push.WithNotifier(notify))
	return c
}

// Events exposes the controller's state-change feed. Subscribers learn
// about refresh outcomes, pushed messages, and failed mutations without
// polling Snapshot.
func (c *Controller) Events() events.Publisher {
	return c.publisher
}

// Acquire binds the core to the currently signed-in user: it creates the
// per-user cache, subscribes to the push feed, starts the scheduler, and
// performs an initial fetch. Acquiring for the same user twice is a
// no-op; a different user releases the previous binding first.
func (c *Controller) Acquire(ctx context.Context) error {
	userID := c.identity.UserID()
	if userID == "" {
		return models.NewOpError("acquire", "", models.ErrAuth)
	}

	c.mu.Lock()
	if c.userID == userID && c.cacheStore != nil {
		c.mu.Unlock()
		return nil
	}
	previous := c.detachLocked()

	c.generation++
	gen := c.generation
	c.userID = userID
	c.cacheStore = cache.New(userID)
	c.mutations = engine.New(c.cacheStore, c.store, c.identity, engine.WithToastFunc(c.toastFn))
	c.sched = scheduler.New(c.schedConfig, c.monitor, c.fetchFunc(gen), c.autoRefresh)
	store := c.cacheStore
	sched := c.sched
	c.mu.Unlock()

	// The superseded scheduler may be mid-fetch; its generation is stale
	// so the result is discarded either way.
	if previous != nil {
		previous.Stop()
	}

	// Push failing to establish is not fatal; polling still works.
	if err := c.router.Subscribe(ctx, userID, store); err != nil {
		c.logger.Warn().Err(err).Str("user_id", userID).Msg("push subscription unavailable, relying on polling")
	}
	if err := sched.Start(ctx); err != nil {
		return models.NewOpError("acquire", userID, err)
	}
	if err := sched.RefreshNow(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("initial fetch failed")
	}
	return nil
}

// Release tears the per-user binding down. In-flight fetches that
// resolve afterwards are discarded rather than applied.
func (c *Controller) Release() {
	c.mu.Lock()
	sched := c.detachLocked()
	c.mu.Unlock()
	if sched != nil {
		sched.Stop()
	}
	c.router.Close()
}

// detachLocked clears the per-user state and returns the scheduler for
// the caller to stop outside the lock, since Stop waits on a fetch that
// may itself need the lock.
func (c *Controller) detachLocked() *scheduler.Scheduler {
	sched := c.sched
	c.sched = nil
	c.generation++
	c.userID = ""
	c.cacheStore = nil
	c.mutations = nil
	c.loading = false
	c.lastErr = nil
	return sched
}

// fetchFunc builds the scheduler's fetch bound to one acquire
// generation. Results arriving after Release or a user switch are
// dropped.
func (c *Controller) fetchFunc(gen int) scheduler.FetchFunc {
	return func(ctx context.Context) error {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return nil
		}
		store := c.cacheStore
		userID := c.userID
		c.loading = true
		c.mu.Unlock()

		threads, err := c.store.ListThreads(ctx, userID, models.FilterAll)
		var messages []models.Message
		if err == nil {
			messages, err = c.store.ListMessages(ctx, userID)
		}

		c.mu.Lock()
		if c.generation != gen {
			// Superseded while in flight.
			c.mu.Unlock()
			return nil
		}
		c.loading = false
		if err != nil {
			c.lastErr = err
			c.mu.Unlock()
			c.publisher.Publish(events.Event{Type: events.TypeRefreshFailed, Err: err})
			return err
		}
		store.Update(func(tx *cache.Tx) {
			tx.UpsertThreads(threads)
			tx.UpsertMessages(messages)
		})
		c.lastErr = nil
		c.lastRefresh = time.Now()
		c.mu.Unlock()
		c.publisher.Publish(events.Event{Type: events.TypeRefreshCompleted})
		return nil
	}
}

// Snapshot returns the current view for UI rendering.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := View{
		Loading:        c.loading,
		Err:            c.lastErr,
		LastRefresh:    c.lastRefresh,
		AutoRefreshing: c.autoRefresh,
	}
	if c.sched != nil {
		view.Cadence = c.sched.Cadence()
	}
	if c.cacheStore == nil {
		return view
	}
	snap := c.cacheStore.Snapshot()
	view.Threads = views.Threads(snap, c.filter)
	view.Messages = snap.Messages
	view.Counts = views.Summarize(snap)
	return view
}

// ThreadMessages returns the thread's messages sorted oldest first.
func (c *Controller) ThreadMessages(threadID string) []models.Message {
	c.mu.Lock()
	store := c.cacheStore
	c.mu.Unlock()
	if store == nil {
		return nil
	}
	return views.ThreadMessages(store.Snapshot(), threadID)
}

// SetFilter switches the thread projection bucket.
func (c *Controller) SetFilter(filter models.ThreadFilter) {
	c.mu.Lock()
	c.filter = filter
	c.mu.Unlock()
}

// Filter returns the current projection bucket.
func (c *Controller) Filter() models.ThreadFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// ToggleAutoRefresh flips scheduled polling and returns the new setting.
// Manual refresh keeps working either way.
func (c *Controller) ToggleAutoRefresh() bool {
	c.mu.Lock()
	c.autoRefresh = !c.autoRefresh
	enabled := c.autoRefresh
	sched := c.sched
	c.mu.Unlock()
	if sched != nil {
		sched.SetEnabled(enabled)
	}
	return enabled
}

// RefreshNow fetches immediately, bypassing cadence, and surfaces the
// result to the caller.
func (c *Controller) RefreshNow(ctx context.Context) error {
	c.mu.Lock()
	sched := c.sched
	c.mu.Unlock()
	if sched == nil {
		return models.NewOpError("refresh", "", models.ErrAuth)
	}
	return sched.RefreshNow(ctx)
}

// Touch records user interaction for idle tracking.
func (c *Controller) Touch() {
	c.monitor.Touch()
}

// SetVisible records foreground or background state.
func (c *Controller) SetVisible(visible bool) {
	c.monitor.SetVisible(visible)
}

// mutationEngine returns the engine for the acquired user or an auth
// error when signed out.
func (c *Controller) mutationEngine(op string) (*engine.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mutations == nil {
		return nil, models.NewOpError(op, "", models.ErrAuth)
	}
	return c.mutations, nil
}

// MarkRead marks a thread and its inbound messages as read.
func (c *Controller) MarkRead(ctx context.Context, threadID string) error {
	eng, err := c.mutationEngine("mark_read")
	if err != nil {
		return err
	}
	return eng.MarkRead(ctx, threadID)
}

// SendReply sends an outbound message on the thread.
func (c *Controller) SendReply(ctx context.Context, threadID, content string, attachments []string) (string, error) {
	eng, err := c.mutationEngine("send_reply")
	if err != nil {
		return "", err
	}
	return eng.SendReply(ctx, threadID, content, attachments)
}

// RetryReply re-attempts a failed outbound message.
func (c *Controller) RetryReply(ctx context.Context, messageID string) (string, error) {
	eng, err := c.mutationEngine("retry_reply")
	if err != nil {
		return "", err
	}
	return eng.RetryReply(ctx, messageID)
}

// DiscardReply drops a failed outbound message.
func (c *Controller) DiscardReply(messageID string) error {
	eng, err := c.mutationEngine("discard_reply")
	if err != nil {
		return err
	}
	return eng.DiscardReply(messageID)
}

// Archive moves a thread to the archived bucket.
func (c *Controller) Archive(ctx context.Context, threadID string) error {
	eng, err := c.mutationEngine("archive")
	if err != nil {
		return err
	}
	return eng.Archive(ctx, threadID)
}

// Unarchive restores a thread to the active bucket.
func (c *Controller) Unarchive(ctx context.Context, threadID string) error {
	eng, err := c.mutationEngine("unarchive")
	if err != nil {
		return err
	}
	return eng.Unarchive(ctx, threadID)
}

// Delete removes a thread permanently.
func (c *Controller) Delete(ctx context.Context, threadID string) error {
	eng, err := c.mutationEngine("delete")
	if err != nil {
		return err
	}
	return eng.Delete(ctx, threadID)
}

// ArchiveAll archives a batch of threads all-or-nothing.
func (c *Controller) ArchiveAll(ctx context.Context, threadIDs []string) error {
	eng, err := c.mutationEngine("archive_all")
	if err != nil {
		return err
	}
	return eng.ArchiveAll(ctx, threadIDs)
}

// UnarchiveAll restores a batch of threads all-or-nothing.
func (c *Controller) UnarchiveAll(ctx context.Context, threadIDs []string) error {
	eng, err := c.mutationEngine("unarchive_all")
	if err != nil {
		return err
	}
	return eng.UnarchiveAll(ctx, threadIDs)
}

// DeleteAll removes a batch of threads all-or-nothing.
func (c *Controller) DeleteAll(ctx context.Context, threadIDs []string) error {
	eng, err := c.mutationEngine("delete_all")
	if err != nil {
		return err
	}
	return eng.DeleteAll(ctx, threadIDs)
}
