// Package cache holds the client's authoritative in-memory copy of threads
// and messages for one authenticated user. It is the only shared mutable
// resource in the sync core: the refresh scheduler, the push router, and
// the mutation engine all write here through keyed upserts and patches,
// and the merge rules make the end state independent of their
// interleaving.
package cache

import (
	"sync"
	"time"

	"github.com/hirelight/hirelight/internal/models"
)

// Store is the per-user thread/message cache. All writes go through Update
// so that related field changes land in one critical section and no
// intermediate snapshot is observable.
type Store struct {
	mu       sync.Mutex
	userID   string
	threads  map[string]models.Thread
	messages map[string]models.Message
}

// New creates an empty store scoped to a user.
func New(userID string) *Store {
	return &Store{
		userID:   userID,
		threads:  make(map[string]models.Thread),
		messages: make(map[string]models.Message),
	}
}

// UserID returns the user this store is scoped to.
func (s *Store) UserID() string {
	return s.userID
}

// Tx is a handle valid only inside one Update call. Everything done with
// it commits atomically with respect to readers.
type Tx struct {
	s *Store
}

// Update runs fn under the store lock. Every mutation inside fn is one
// cache transaction: readers see all of it or none of it.
func (s *Store) Update(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Tx{s: s})
}

// UpsertThreads merges threads by id. An incoming thread replaces the
// cached entry unless the cached copy is fresher, i.e. its LastMessageAt
// is strictly later. Push events reflect the server's write-ahead of a
// poll's snapshot read, so on a race the later timestamp wins; with equal
// or absent timestamps the last applied wins.
func (tx *Tx) UpsertThreads(threads []models.Thread) {
	for i := range threads {
		incoming := threads[i]
		if incoming.ID == "" {
			continue
		}
		existing, ok := tx.s.threads[incoming.ID]
		if ok && existing.LastMessageAt.After(incoming.LastMessageAt) {
			// Incoming copy is known stale.
			continue
		}
		tx.s.threads[incoming.ID] = incoming.Clone()
	}
}

// UpsertMessages appends messages by id, ignoring ids already present.
// Reapplying the same message is a no-op; message bodies are never
// replaced in place. Returns the messages that were actually inserted.
func (tx *Tx) UpsertMessages(messages []models.Message) []models.Message {
	var inserted []models.Message
	for i := range messages {
		incoming := messages[i]
		if incoming.ID == "" {
			continue
		}
		if _, ok := tx.s.messages[incoming.ID]; ok {
			continue
		}
		tx.s.messages[incoming.ID] = incoming.Clone()
		inserted = append(inserted, incoming.Clone())
	}
	return inserted
}

// PatchThread applies a partial update to a cached thread. Unknown ids are
// ignored (the client never invents threads) and reported as false.
// LastMessageAt only moves forward; a patch carrying an older timestamp
// keeps the fresher cached value.
func (tx *Tx) PatchThread(id string, patch models.ThreadPatch) bool {
	thread, ok := tx.s.threads[id]
	if !ok {
		return false
	}
	if patch.LastMessageAt != nil && patch.LastMessageAt.Before(thread.LastMessageAt) {
		patch.LastMessageAt = nil
	}
	patch.Apply(&thread)
	tx.s.threads[id] = thread
	return true
}

// PatchMessage applies a partial update to a cached message.
func (tx *Tx) PatchMessage(id string, patch models.MessagePatch) bool {
	msg, ok := tx.s.messages[id]
	if !ok {
		return false
	}
	patch.Apply(&msg)
	tx.s.messages[id] = msg
	return true
}

// RemoveThread evicts the thread and every message belonging to it.
func (tx *Tx) RemoveThread(id string) {
	delete(tx.s.threads, id)
	for msgID, msg := range tx.s.messages {
		if msg.ThreadID == id {
			delete(tx.s.messages, msgID)
		}
	}
}

// RemoveMessage evicts a single message. Used when a tentative outbound
// message is replaced by its server-assigned copy or discarded.
func (tx *Tx) RemoveMessage(id string) {
	delete(tx.s.messages, id)
}

// RecomputeLastMessage resets the thread's LastMessageAt to the newest
// CreatedAt among its remaining messages. PatchThread only moves the
// timestamp forward, so discarding a tentative message that was the
// newest needs this explicit backward correction.
func (tx *Tx) RecomputeLastMessage(threadID string) {
	thread, ok := tx.s.threads[threadID]
	if !ok {
		return
	}
	var latest time.Time
	found := false
	for _, msg := range tx.s.messages {
		if msg.ThreadID == threadID && msg.CreatedAt.After(latest) {
			latest = msg.CreatedAt
			found = true
		}
	}
	if found {
		thread.LastMessageAt = latest
		tx.s.threads[threadID] = thread
	}
}

// Thread returns a copy of the cached thread.
func (tx *Tx) Thread(id string) (models.Thread, bool) {
	thread, ok := tx.s.threads[id]
	if !ok {
		return models.Thread{}, false
	}
	return thread.Clone(), true
}

// Message returns a copy of the cached message.
func (tx *Tx) Message(id string) (models.Message, bool) {
	msg, ok := tx.s.messages[id]
	if !ok {
		return models.Message{}, false
	}
	return msg.Clone(), true
}

// ThreadMessages returns copies of the thread's messages in map order.
// Ordering is a projection concern; see the views package.
func (tx *Tx) ThreadMessages(threadID string) []models.Message {
	var out []models.Message
	for _, msg := range tx.s.messages {
		if msg.ThreadID == threadID {
			out = append(out, msg.Clone())
		}
	}
	return out
}

// Convenience wrappers for single-step writes.

// UpsertThreads merges threads by id (see Tx.UpsertThreads).
func (s *Store) UpsertThreads(threads []models.Thread) {
	s.Update(func(tx *Tx) { tx.UpsertThreads(threads) })
}

// UpsertMessages appends messages by id (see Tx.UpsertMessages).
func (s *Store) UpsertMessages(messages []models.Message) {
	s.Update(func(tx *Tx) { tx.UpsertMessages(messages) })
}

// PatchThread applies a partial thread update.
func (s *Store) PatchThread(id string, patch models.ThreadPatch) bool {
	var ok bool
	s.Update(func(tx *Tx) { ok = tx.PatchThread(id, patch) })
	return ok
}

// PatchMessage applies a partial message update.
func (s *Store) PatchMessage(id string, patch models.MessagePatch) bool {
	var ok bool
	s.Update(func(tx *Tx) { ok = tx.PatchMessage(id, patch) })
	return ok
}

// RemoveThread evicts a thread and its messages.
func (s *Store) RemoveThread(id string) {
	s.Update(func(tx *Tx) { tx.RemoveThread(id) })
}

// Thread returns a copy of the cached thread.
func (s *Store) Thread(id string) (models.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[id]
	if !ok {
		return models.Thread{}, false
	}
	return thread.Clone(), true
}

// Message returns a copy of the cached message.
func (s *Store) Message(id string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return models.Message{}, false
	}
	return msg.Clone(), true
}

// Snapshot is a deep copy of the store contents at one instant.
type Snapshot struct {
	UserID   string
	Threads  []models.Thread
	Messages []models.Message
}

// Snapshot returns a deep copy of everything cached. Callers never alias
// store internals.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		UserID:   s.userID,
		Threads:  make([]models.Thread, 0, len(s.threads)),
		Messages: make([]models.Message, 0, len(s.messages)),
	}
	for _, thread := range s.threads {
		snap.Threads = append(snap.Threads, thread.Clone())
	}
	for _, msg := range s.messages {
		snap.Messages = append(snap.Messages, msg.Clone())
	}
	return snap
}
