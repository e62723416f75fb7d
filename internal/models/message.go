package models

import (
	"strings"
	"time"
)

// Direction tells whether a message arrived from a candidate or was sent by
// the recruiter's own account.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// SendState tracks delivery of locally originated outbound messages.
// Messages that were not created by this client are always "sent".
type SendState string

const (
	// SendStateSent is the zero-value state: confirmed or server-originated.
	SendStateSent SendState = ""

	// SendStatePending marks an optimistic message awaiting confirmation.
	SendStatePending SendState = "pending"

	// SendStateFailed marks an optimistic message whose delivery call
	// failed. The message stays visible until retried or discarded.
	SendStateFailed SendState = "failed"
)

// Message is a single directional unit of conversation content. It belongs
// to exactly one thread for its whole life and is immutable once created,
// except for the IsRead flag and the local SendState transitions.
type Message struct {
	// ID is the unique identifier for the message.
	ID string `json:"id"`

	// ThreadID is the owning thread.
	ThreadID string `json:"thread_id"`

	// Sender and Recipient are address strings.
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`

	// Content is the rich-text payload.
	Content string `json:"content"`

	// Attachments holds opaque attachment references.
	Attachments []string `json:"attachments,omitempty"`

	// Direction is inbound or outbound.
	Direction Direction `json:"direction"`

	// IsRead is true once the recruiter has seen the message. Outbound
	// messages are read at creation.
	IsRead bool `json:"is_read"`

	// SendState is the local delivery state (see SendState).
	SendState SendState `json:"send_state,omitempty"`

	// CreatedAt is when the message was created.
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Attachments != nil {
		out.Attachments = append([]string(nil), m.Attachments...)
	}
	return out
}

// Unread reports whether the message counts toward its thread's unread
// count: inbound and not yet read.
func (m Message) Unread() bool {
	return m.Direction == DirectionInbound && !m.IsRead
}

// Validate checks message fields.
func (m *Message) Validate() error {
	errs := &ValidationErrors{}
	if strings.TrimSpace(m.ID) == "" {
		errs.AddMessage("id", "message id is required")
	}
	if strings.TrimSpace(m.ThreadID) == "" {
		errs.AddMessage("thread_id", "thread id is required")
	}
	switch m.Direction {
	case DirectionInbound, DirectionOutbound:
	default:
		errs.AddMessage("direction", "direction must be inbound or outbound")
	}
	if m.Direction == DirectionOutbound && !m.IsRead {
		errs.AddMessage("is_read", "outbound messages are read at creation")
	}
	if m.CreatedAt.IsZero() {
		errs.AddMessage("created_at", "created_at is required")
	}
	return errs.Err()
}

// MessagePatch is a partial message update. Only IsRead and SendState are
// patchable; everything else is immutable after creation.
type MessagePatch struct {
	IsRead    *bool      `json:"is_read,omitempty"`
	SendState *SendState `json:"send_state,omitempty"`
}

// Apply copies the patch's set fields onto the message.
func (p MessagePatch) Apply(m *Message) {
	if m == nil {
		return
	}
	if p.IsRead != nil {
		m.IsRead = *p.IsRead
	}
	if p.SendState != nil {
		m.SendState = *p.SendState
	}
}
