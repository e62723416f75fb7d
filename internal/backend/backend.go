// Package backend declares the narrow interfaces the sync core consumes
// from its collaborators: the query/mutation API of the persistent store,
// the realtime change feed, and the authenticated identity. The core never
// reaches past these contracts.
package backend

import (
	"context"

	"github.com/hirelight/hirelight/internal/models"
)

// Query is the read side of the persistent store.
type Query interface {
	// ListThreads returns the user's threads in the given filter bucket.
	ListThreads(ctx context.Context, userID string, filter models.ThreadFilter) ([]models.Thread, error)

	// ListMessages returns all of the user's messages across threads.
	ListMessages(ctx context.Context, userID string) ([]models.Message, error)
}

// Mutator is the write side of the persistent store. Bulk forms are
// all-or-nothing at this boundary; the client does no partial-success
// bookkeeping on top of them.
type Mutator interface {
	// SetRead marks every inbound message of the thread as read.
	SetRead(ctx context.Context, threadID string) error

	// SendReply persists an outbound message and triggers delivery.
	// The returned id is the server-assigned message id, which may differ
	// from the id the client generated for its optimistic copy.
	SendReply(ctx context.Context, reply models.Message) (string, error)

	// Archive moves the thread to the archived bucket.
	Archive(ctx context.Context, threadID string) error

	// Unarchive moves the thread back to the active bucket.
	Unarchive(ctx context.Context, threadID string) error

	// DeletePermanently removes the thread and its messages.
	DeletePermanently(ctx context.Context, threadID string) error

	// Bulk forms over a set of thread ids.
	ArchiveAll(ctx context.Context, threadIDs []string) error
	UnarchiveAll(ctx context.Context, threadIDs []string) error
	DeleteAllPermanently(ctx context.Context, threadIDs []string) error
}

// Store combines both sides of the persistent store.
type Store interface {
	Query
	Mutator
}

// Handlers receives decoded change feed entries. Both callbacks may be
// invoked from the transport's goroutine; implementations must be safe for
// that.
type Handlers struct {
	// OnThreadChange is invoked for thread.changed entries.
	OnThreadChange func(models.ThreadChanged)

	// OnMessageInsert is invoked for message.inserted entries.
	OnMessageInsert func(models.MessageInserted)
}

// Subscription is a live change feed registration. Close is idempotent.
type Subscription interface {
	// Close tears the subscription down and releases its resources.
	Close() error
}

// PushTransport delivers server-originated change events. Reconnection
// after a transport drop is the transport's own responsibility.
type PushTransport interface {
	// Subscribe registers handlers for the user's change feed.
	Subscribe(ctx context.Context, userID string, handlers Handlers) (Subscription, error)
}

// Identity exposes who the client is acting as.
type Identity interface {
	// UserID returns the authenticated user id, empty when signed out.
	UserID() string

	// Address returns the user's own outbound email address.
	Address() string
}

// StaticIdentity is an Identity with fixed values.
type StaticIdentity struct {
	ID   string
	Addr string
}

func (s StaticIdentity) UserID() string  { return s.ID }
func (s StaticIdentity) Address() string { return s.Addr }
