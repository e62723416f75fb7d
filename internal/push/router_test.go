package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hirelight/hirelight/internal/backend"
	"github.com/hirelight/hirelight/internal/cache"
	"github.com/hirelight/hirelight/internal/models"
)

type fakeSubscription struct {
	mu     sync.Mutex
	closed int
}

func (f *fakeSubscription) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type fakeTransport struct {
	mu       sync.Mutex
	dialErr  error
	handlers backend.Handlers
	subs     []*fakeSubscription
}

func (f *fakeTransport) Subscribe(_ context.Context, _ string, handlers backend.Handlers) (backend.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	f.handlers = handlers
	sub := &fakeSubscription{}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeTransport) emitThread(ev models.ThreadChanged) {
	f.mu.Lock()
	h := f.handlers.OnThreadChange
	f.mu.Unlock()
	h(ev)
}

func (f *fakeTransport) emitMessage(ev models.MessageInserted) {
	f.mu.Lock()
	h := f.handlers.OnMessageInsert
	f.mu.Unlock()
	h(ev)
}

func seededStore(t *testing.T) *cache.Store {
	t.Helper()
	s := cache.New("u1")
	s.UpsertThreads([]models.Thread{{
		ID:            "t1",
		Status:        models.ThreadStatusActive,
		UnreadCount:   1,
		LastMessageAt: time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
	}})
	return s
}

func TestRouter_SubscribeIdempotentPerUser(t *testing.T) {
	transport := &fakeTransport{}
	r := NewRouter(transport)
	store := seededStore(t)

	require.NoError(t, r.Subscribe(context.Background(), "u1", store))
	require.NoError(t, r.Subscribe(context.Background(), "u1", store))
	require.Len(t, transport.subs, 1)

	// User change tears the old subscription down first.
	require.NoError(t, r.Subscribe(context.Background(), "u2", cache.New("u2")))
	require.Len(t, transport.subs, 2)
	require.Equal(t, 1, transport.subs[0].closed)

	require.NoError(t, r.Close())
	require.Equal(t, 1, transport.subs[1].closed)
	require.NoError(t, r.Close())
	require.Equal(t, 1, transport.subs[1].closed)
}

func TestRouter_SubscribeRequiresUser(t *testing.T) {
	r := NewRouter(&fakeTransport{})
	require.ErrorIs(t, r.Subscribe(context.Background(), "", cache.New("")), models.ErrAuth)
}

func TestRouter_SubscribeWrapsTransportError(t *testing.T) {
	transport := &fakeTransport{dialErr: errors.New("dial tcp: refused")}
	r := NewRouter(transport)
	err := r.Subscribe(context.Background(), "u1", seededStore(t))
	require.ErrorIs(t, err, models.ErrSubscription)
}

func TestRouter_ThreadChangePatchesCache(t *testing.T) {
	transport := &fakeTransport{}
	r := NewRouter(transport)
	store := seededStore(t)
	require.NoError(t, r.Subscribe(context.Background(), "u1", store))

	zero := 0
	transport.emitThread(models.ThreadChanged{
		ThreadID: "t1",
		Patch:    models.ThreadPatch{UnreadCount: &zero},
	})

	thread, _ := store.Thread("t1")
	require.Zero(t, thread.UnreadCount)
}

func TestRouter_UnknownThreadEventsDropped(t *testing.T) {
	transport := &fakeTransport{}
	r := NewRouter(transport)
	store := seededStore(t)
	require.NoError(t, r.Subscribe(context.Background(), "u1", store))

	zero := 0
	transport.emitThread(models.ThreadChanged{ThreadID: "ghost", Patch: models.ThreadPatch{UnreadCount: &zero}})
	transport.emitMessage(models.MessageInserted{Message: models.Message{
		ID: "m9", ThreadID: "ghost", Direction: models.DirectionInbound, CreatedAt: time.Now(),
	}})

	snap := store.Snapshot()
	require.Len(t, snap.Threads, 1)
	require.Empty(t, snap.Messages)
}

func TestRouter_MessageInsertBumpsThreadAtomically(t *testing.T) {
	transport := &fakeTransport{}
	var notified []models.Message
	r := NewRouter(transport, WithNotifier(func(m models.Message) { notified = append(notified, m) }))
	store := seededStore(t)
	require.NoError(t, r.Subscribe(context.Background(), "u1", store))

	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	msg := models.Message{
		ID: "m1", ThreadID: "t1",
		Sender: "carol@candidates.io", Recipient: "me@hirelight.io",
		Direction: models.DirectionInbound, CreatedAt: at,
	}
	transport.emitMessage(models.MessageInserted{Message: msg})

	thread, _ := store.Thread("t1")
	require.Equal(t, 2, thread.UnreadCount)
	require.Equal(t, at, thread.LastMessageAt)
	require.Len(t, notified, 1)
	require.Equal(t, "m1", notified[0].ID)

	// Duplicate delivery is a no-op and does not notify again.
	transport.emitMessage(models.MessageInserted{Message: msg})
	thread, _ = store.Thread("t1")
	require.Equal(t, 2, thread.UnreadCount)
	require.Len(t, notified, 1)
}

func TestRouter_OutboundInsertDoesNotNotify(t *testing.T) {
	transport := &fakeTransport{}
	var notified []models.Message
	r := NewRouter(transport, WithNotifier(func(m models.Message) { notified = append(notified, m) }))
	store := seededStore(t)
	require.NoError(t, r.Subscribe(context.Background(), "u1", store))

	transport.emitMessage(models.MessageInserted{Message: models.Message{
		ID: "m2", ThreadID: "t1",
		Direction: models.DirectionOutbound, IsRead: true,
		CreatedAt: time.Now().UTC(),
	}})
	require.Empty(t, notified)

	thread, _ := store.Thread("t1")
	require.Equal(t, 1, thread.UnreadCount)
}

func TestRouter_EventsAfterUserChangeDiscarded(t *testing.T) {
	transport := &fakeTransport{}
	r := NewRouter(transport)
	store := seededStore(t)
	require.NoError(t, r.Subscribe(context.Background(), "u1", store))

	// Keep u1's handlers, then switch users.
	oldEmit := transport.handlers.OnThreadChange
	require.NoError(t, r.Subscribe(context.Background(), "u2", cache.New("u2")))

	zero := 0
	oldEmit(models.ThreadChanged{ThreadID: "t1", Patch: models.ThreadPatch{UnreadCount: &zero}})

	thread, _ := store.Thread("t1")
	require.Equal(t, 1, thread.UnreadCount)
}
