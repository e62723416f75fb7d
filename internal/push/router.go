// Package push routes server-originated change events into the cache. It
// owns exactly one change feed subscription per authenticated user, scoped
// as an acquire/release resource: created when a user id becomes
// available, destroyed on user change or teardown, never left dangling.
package push

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hirelight/hirelight/internal/backend"
	"github.com/hirelight/hirelight/internal/cache"
	"github.com/hirelight/hirelight/internal/logging"
	"github.com/hirelight/hirelight/internal/models"
)

// Notifier receives inbound messages that arrived over the push feed, for
// user-visible notification. It runs on the transport's goroutine.
type Notifier func(models.Message)

// Router translates change feed entries into cache writes.
type Router struct {
	transport backend.PushTransport
	logger    zerolog.Logger
	notify    Notifier

	mu     sync.Mutex
	userID string
	store  *cache.Store
	sub    backend.Subscription
}

// Option configures a Router.
type Option func(*Router)

// WithNotifier wires the inbound-message notification hook.
func WithNotifier(notify Notifier) Option {
	return func(r *Router) {
		r.notify = notify
	}
}

// NewRouter creates a Router over the given transport.
func NewRouter(transport backend.PushTransport, opts ...Option) *Router {
	r := &Router{
		transport: transport,
		logger:    logging.Component("push-router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe acquires the subscription for the user, tearing down any
// previous user's subscription first. Calling it again for the same user
// id is a no-op.
func (r *Router) Subscribe(ctx context.Context, userID string, store *cache.Store) error {
	if userID == "" {
		return models.ErrAuth
	}

	r.mu.Lock()
	if r.userID == userID && r.sub != nil {
		r.mu.Unlock()
		return nil
	}
	r.closeLocked()
	r.userID = userID
	r.store = store
	r.mu.Unlock()

	handlers := backend.Handlers{
		OnThreadChange:  func(ev models.ThreadChanged) { r.handleThreadChange(userID, ev) },
		OnMessageInsert: func(ev models.MessageInserted) { r.handleMessageInsert(userID, ev) },
	}

	sub, err := r.transport.Subscribe(ctx, userID, handlers)
	if err != nil {
		r.mu.Lock()
		r.userID = ""
		r.store = nil
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", models.ErrSubscription, err)
	}

	r.mu.Lock()
	// A concurrent Close or user change may have raced the dial.
	if r.userID != userID {
		r.mu.Unlock()
		_ = sub.Close()
		return nil
	}
	r.sub = sub
	r.mu.Unlock()

	r.logger.Info().Str("user_id", userID).Msg("push subscription established")
	return nil
}

// Close releases the current subscription. Idempotent.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
	return nil
}

func (r *Router) closeLocked() {
	if r.sub != nil {
		_ = r.sub.Close()
		r.sub = nil
	}
	r.userID = ""
	r.store = nil
}

// currentStore returns the store only while userID is still the active
// subscription's user. Events resolving after a user change are discarded
// rather than applied.
func (r *Router) currentStore(userID string) *cache.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userID != userID {
		return nil
	}
	return r.store
}

// handleThreadChange patches the cached thread. Push reflects the
// server's write-ahead of a poll's snapshot read; the cache's freshness
// rule keeps the later LastMessageAt on a race.
func (r *Router) handleThreadChange(userID string, ev models.ThreadChanged) {
	store := r.currentStore(userID)
	if store == nil {
		return
	}
	if !store.PatchThread(ev.ThreadID, ev.Patch) {
		// Thread discovery happens only through the query interface.
		r.logger.Debug().Str("thread_id", ev.ThreadID).Msg("thread change for unknown thread dropped")
	}
}

// handleMessageInsert appends the message if its thread is cached, i.e.
// belongs to this user. The message insert and the thread's unread/
// last-activity bump are one cache transaction.
func (r *Router) handleMessageInsert(userID string, ev models.MessageInserted) {
	store := r.currentStore(userID)
	if store == nil {
		return
	}

	msg := ev.Message
	var inserted bool
	store.Update(func(tx *cache.Tx) {
		thread, ok := tx.Thread(msg.ThreadID)
		if !ok {
			return
		}
		if len(tx.UpsertMessages([]models.Message{msg})) == 0 {
			return
		}
		inserted = true

		patch := models.ThreadPatch{LastMessageAt: &msg.CreatedAt}
		if msg.Unread() {
			unread := thread.UnreadCount + 1
			patch.UnreadCount = &unread
		}
		tx.PatchThread(msg.ThreadID, patch)
	})

	if !inserted {
		r.logger.Debug().
			Str("message_id", msg.ID).
			Str("thread_id", msg.ThreadID).
			Msg("pushed message dropped (unknown thread or duplicate)")
		return
	}

	if msg.Direction == models.DirectionInbound && r.notify != nil {
		r.notify(msg.Clone())
	}
}
