// Package engine executes user-initiated inbox mutations with an
// optimistic-apply, confirm-or-rollback protocol: the cache is patched
// first so the UI reacts instantly, then the backend call confirms the
// change or the patch is reverted.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hirelight/hirelight/internal/backend"
	"github.com/hirelight/hirelight/internal/cache"
	"github.com/hirelight/hirelight/internal/logging"
	"github.com/hirelight/hirelight/internal/models"
)

// ToastLevel grades user-visible outcome notices.
type ToastLevel string

const (
	ToastInfo  ToastLevel = "info"
	ToastWarn  ToastLevel = "warn"
	ToastError ToastLevel = "error"
)

// Toast is a user-visible outcome of a mutation.
type Toast struct {
	Level ToastLevel
	Text  string
}

// ToastFunc receives mutation outcomes for display.
type ToastFunc func(Toast)

// Engine runs the mutation protocol against one user's cache.
type Engine struct {
	store    *cache.Store
	mutator  backend.Mutator
	identity backend.Identity
	logger   zerolog.Logger

	now   func() time.Time
	newID func() string
	toast ToastFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithToastFunc sets the outcome callback.
func WithToastFunc(fn ToastFunc) Option {
	return func(e *Engine) { e.toast = fn }
}

// WithClock overrides the tentative-message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDFunc overrides tentative message id generation.
func WithIDFunc(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// New builds an Engine over the store and backend mutator.
func New(store *cache.Store, mutator backend.Mutator, identity backend.Identity, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		mutator:  mutator,
		identity: identity,
		logger:   logging.Component("engine"),
		now:      time.Now,
		newID:    uuid.NewString,
		toast:    func(Toast) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// requireUser rejects mutations when no user is signed in, before the
// cache is touched.
func (e *Engine) requireUser(op, entityID string) error {
	if e.identity.UserID() == "" {
		return models.NewOpError(op, entityID, models.ErrAuth)
	}
	return nil
}

// MarkRead zeroes the thread's unread count and flags its unread inbound
// messages as read, then confirms with the backend. Already-read threads
// are a no-op locally and remotely. A failed backend call is surfaced as
// a toast but the local state is deliberately kept: read-state is low
// risk and the next poll reconverges it.
func (e *Engine) MarkRead(ctx context.Context, threadID string) error {
	const op = "mark_read"
	if err := e.requireUser(op, threadID); err != nil {
		return err
	}

	found := false
	dirty := false
	e.store.Update(func(tx *cache.Tx) {
		if _, ok := tx.Thread(threadID); !ok {
			return
		}
		found = true
		read := true
		for _, msg := range tx.ThreadMessages(threadID) {
			if msg.Unread() {
				tx.PatchMessage(msg.ID, models.MessagePatch{IsRead: &read})
				dirty = true
			}
		}
		zero := 0
		if thread, _ := tx.Thread(threadID); thread.UnreadCount != 0 {
			tx.PatchThread(threadID, models.ThreadPatch{UnreadCount: &zero})
			dirty = true
		}
	})
	if !found {
		return models.NewOpError(op, threadID, models.ErrNotFound)
	}
	if !dirty {
		return nil
	}

	if err := e.mutator.SetRead(ctx, threadID); err != nil {
		e.logger.Warn().Err(err).Str("thread_id", threadID).Msg("mark read failed, keeping local state")
		e.toast(Toast{Level: ToastWarn, Text: "Could not sync read state, will retry on next refresh"})
		return models.NewOpError(op, threadID, err)
	}
	return nil
}

// SendReply appends a tentative outbound message to the thread and asks
// the backend to deliver it. The message id is returned immediately; on
// delivery failure the message stays visible in the failed state and can
// be retried or discarded.
func (e *Engine) SendReply(ctx context.Context, threadID, content string, attachments []string) (string, error) {
	const op = "send_reply"
	if err := e.requireUser(op, threadID); err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return "", models.NewOpError(op, threadID, fmt.Errorf("%w: reply needs content or an attachment", models.ErrValidation))
	}

	thread, ok := e.store.Thread(threadID)
	if !ok {
		return "", models.NewOpError(op, threadID, models.ErrNotFound)
	}

	self := e.identity.Address()
	msg := models.Message{
		ID:          e.newID(),
		ThreadID:    threadID,
		Sender:      self,
		Recipient:   strings.Join(thread.DisplayParticipants(self), ", "),
		Content:     content,
		Attachments: append([]string(nil), attachments...),
		Direction:   models.DirectionOutbound,
		IsRead:      true,
		SendState:   models.SendStatePending,
		CreatedAt:   e.now().UTC(),
	}

	e.store.Update(func(tx *cache.Tx) {
		tx.UpsertMessages([]models.Message{msg})
		tx.PatchThread(threadID, models.ThreadPatch{LastMessageAt: &msg.CreatedAt})
	})

	return e.deliver(ctx, op, msg)
}

// RetryReply re-attempts delivery of a failed outbound message.
func (e *Engine) RetryReply(ctx context.Context, messageID string) (string, error) {
	const op = "retry_reply"
	if err := e.requireUser(op, messageID); err != nil {
		return "", err
	}
	msg, ok := e.store.Message(messageID)
	if !ok {
		return "", models.NewOpError(op, messageID, models.ErrNotFound)
	}
	if msg.SendState != models.SendStateFailed {
		return "", models.NewOpError(op, messageID, fmt.Errorf("%w: message is not awaiting retry", models.ErrValidation))
	}

	pending := models.SendStatePending
	e.store.PatchMessage(messageID, models.MessagePatch{SendState: &pending})
	msg.SendState = models.SendStatePending
	return e.deliver(ctx, op, msg)
}

// DiscardReply drops a failed outbound message from the cache and
// corrects the thread's last-message timestamp if the discarded message
// was the newest.
func (e *Engine) DiscardReply(messageID string) error {
	const op = "discard_reply"
	msg, ok := e.store.Message(messageID)
	if !ok {
		return models.NewOpError(op, messageID, models.ErrNotFound)
	}
	if msg.SendState != models.SendStateFailed {
		return models.NewOpError(op, messageID, fmt.Errorf("%w: only failed messages can be discarded", models.ErrValidation))
	}
	e.store.Update(func(tx *cache.Tx) {
		tx.RemoveMessage(messageID)
		tx.RecomputeLastMessage(msg.ThreadID)
	})
	return nil
}

// deliver runs the backend send for an optimistic message already in the
// cache and reconciles the result. On success a differing server id
// replaces the tentative entry rather than duplicating it.
func (e *Engine) deliver(ctx context.Context, op string, msg models.Message) (string, error) {
	serverID, err := e.mutator.SendReply(ctx, msg)
	if err != nil {
		failed := models.SendStateFailed
		e.store.PatchMessage(msg.ID, models.MessagePatch{SendState: &failed})
		e.logger.Error().Err(err).Str("op", op).Str("thread_id", msg.ThreadID).Str("message_id", msg.ID).Msg("reply delivery failed")
		e.toast(Toast{Level: ToastError, Text: "Reply could not be sent"})
		return msg.ID, models.NewOpError(op, msg.ThreadID, err)
	}

	finalID := msg.ID
	e.store.Update(func(tx *cache.Tx) {
		if serverID != "" && serverID != msg.ID {
			confirmed := msg.Clone()
			confirmed.ID = serverID
			confirmed.SendState = models.SendStateSent
			tx.RemoveMessage(msg.ID)
			tx.UpsertMessages([]models.Message{confirmed})
			finalID = serverID
			return
		}
		sent := models.SendStateSent
		tx.PatchMessage(msg.ID, models.MessagePatch{SendState: &sent})
	})
	return finalID, nil
}

// Archive moves the thread to the archived bucket, reverting on failure.
func (e *Engine) Archive(ctx context.Context, threadID string) error {
	return e.setStatus(ctx, "archive", threadID, models.ThreadStatusArchived, e.mutator.Archive)
}

// Unarchive moves the thread back to the active bucket, reverting on
// failure.
func (e *Engine) Unarchive(ctx context.Context, threadID string) error {
	return e.setStatus(ctx, "unarchive", threadID, models.ThreadStatusActive, e.mutator.Unarchive)
}

func (e *Engine) setStatus(ctx context.Context, op, threadID string, target models.ThreadStatus, confirm func(context.Context, string) error) error {
	if err := e.requireUser(op, threadID); err != nil {
		return err
	}
	thread, ok := e.store.Thread(threadID)
	if !ok {
		return models.NewOpError(op, threadID, models.ErrNotFound)
	}
	if thread.Status == target {
		return nil
	}

	prev := thread.Status
	e.store.PatchThread(threadID, models.ThreadPatch{Status: &target})

	if err := confirm(ctx, threadID); err != nil {
		e.store.PatchThread(threadID, models.ThreadPatch{Status: &prev})
		e.logger.Error().Err(err).Str("thread_id", threadID).Str("op", op).Msg("status change rejected, reverted")
		e.toast(Toast{Level: ToastError, Text: fmt.Sprintf("Could not %s conversation", op)})
		return models.NewOpError(op, threadID, err)
	}
	return nil
}

// Delete removes the thread and its messages for good. The optimistic
// removal is not restored on failure; deletion is rare and high intent,
// so a failed confirm only surfaces an error.
func (e *Engine) Delete(ctx context.Context, threadID string) error {
	const op = "delete"
	if err := e.requireUser(op, threadID); err != nil {
		return err
	}
	if _, ok := e.store.Thread(threadID); !ok {
		return models.NewOpError(op, threadID, models.ErrNotFound)
	}

	e.store.RemoveThread(threadID)

	if err := e.mutator.DeletePermanently(ctx, threadID); err != nil {
		e.logger.Error().Err(err).Str("thread_id", threadID).Msg("delete confirmation failed")
		e.toast(Toast{Level: ToastError, Text: "Conversation could not be deleted"})
		return models.NewOpError(op, threadID, err)
	}
	return nil
}

// ArchiveAll archives a set of threads as one all-or-nothing batch.
func (e *Engine) ArchiveAll(ctx context.Context, threadIDs []string) error {
	target := models.ThreadStatusArchived
	return e.bulkStatus(ctx, "archive_all", threadIDs, target, e.mutator.ArchiveAll)
}

// UnarchiveAll restores a set of threads as one all-or-nothing batch.
func (e *Engine) UnarchiveAll(ctx context.Context, threadIDs []string) error {
	target := models.ThreadStatusActive
	return e.bulkStatus(ctx, "unarchive_all", threadIDs, target, e.mutator.UnarchiveAll)
}

// bulkStatus confirms with the backend first and commits the cache only
// on success: on failure none of the threads change and one aggregate
// error is surfaced.
func (e *Engine) bulkStatus(ctx context.Context, op string, threadIDs []string, target models.ThreadStatus, confirm func(context.Context, []string) error) error {
	if err := e.requireUser(op, ""); err != nil {
		return err
	}
	if len(threadIDs) == 0 {
		return nil
	}

	if err := confirm(ctx, threadIDs); err != nil {
		e.logger.Error().Err(err).Str("op", op).Int("count", len(threadIDs)).Msg("bulk status change rejected")
		e.toast(Toast{Level: ToastError, Text: fmt.Sprintf("Could not update %d conversations", len(threadIDs))})
		return models.NewOpError(op, "", err)
	}

	e.store.Update(func(tx *cache.Tx) {
		for _, id := range threadIDs {
			tx.PatchThread(id, models.ThreadPatch{Status: &target})
		}
	})
	return nil
}

// DeleteAll removes a set of threads as one all-or-nothing batch.
func (e *Engine) DeleteAll(ctx context.Context, threadIDs []string) error {
	const op = "delete_all"
	if err := e.requireUser(op, ""); err != nil {
		return err
	}
	if len(threadIDs) == 0 {
		return nil
	}

	if err := e.mutator.DeleteAllPermanently(ctx, threadIDs); err != nil {
		e.logger.Error().Err(err).Str("op", op).Int("count", len(threadIDs)).Msg("bulk delete rejected")
		e.toast(Toast{Level: ToastError, Text: fmt.Sprintf("Could not delete %d conversations", len(threadIDs))})
		return models.NewOpError(op, "", err)
	}

	e.store.Update(func(tx *cache.Tx) {
		for _, id := range threadIDs {
			tx.RemoveThread(id)
		}
	})
	return nil
}
