package models

import (
	"sort"
	"strings"
	"time"
)

// ThreadStatus is the lifecycle bucket a thread lives in. Deletion removes
// the thread entirely rather than introducing a third status.
type ThreadStatus string

const (
	ThreadStatusActive   ThreadStatus = "active"
	ThreadStatusArchived ThreadStatus = "archived"
)

// ThreadFilter selects which status bucket a thread listing covers.
type ThreadFilter string

const (
	FilterActive   ThreadFilter = "active"
	FilterArchived ThreadFilter = "archived"
	FilterAll      ThreadFilter = "all"
)

// ParseThreadFilter converts a user-supplied string into a ThreadFilter.
func ParseThreadFilter(s string) (ThreadFilter, error) {
	switch ThreadFilter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterActive:
		return FilterActive, nil
	case FilterArchived:
		return FilterArchived, nil
	case FilterAll, "":
		return FilterAll, nil
	}
	return "", ErrUnknownFilter
}

// Matches reports whether a status belongs to the filter's bucket.
func (f ThreadFilter) Matches(status ThreadStatus) bool {
	switch f {
	case FilterActive:
		return status == ThreadStatusActive
	case FilterArchived:
		return status == ThreadStatusArchived
	default:
		return true
	}
}

// Thread is a conversation grouping of messages with shared participants.
// Message sets are never held on the thread; they live in the flat message
// collection and are joined by ThreadID at read time.
type Thread struct {
	// ID is the unique identifier for the thread.
	ID string `json:"id"`

	// Subject is the display subject line.
	Subject string `json:"subject"`

	// Participants is the set of address strings. Order is not identity;
	// DisplayParticipants derives a stable order for rendering.
	Participants []string `json:"participants"`

	// Status is active or archived.
	Status ThreadStatus `json:"status"`

	// UnreadCount is the number of unread inbound messages.
	UnreadCount int `json:"unread_count"`

	// LastMessageAt is the creation time of the newest known message.
	LastMessageAt time.Time `json:"last_message_at"`

	// JobID optionally links the thread to a job posting.
	JobID string `json:"job_id,omitempty"`

	// ApplicationID optionally links the thread to an application.
	ApplicationID string `json:"application_id,omitempty"`

	// JobTitle and ApplicantName are display-only denormalized projections.
	JobTitle      string `json:"job_title,omitempty"`
	ApplicantName string `json:"applicant_name,omitempty"`
}

// Clone returns a deep copy of the thread.
func (t Thread) Clone() Thread {
	out := t
	if t.Participants != nil {
		out.Participants = append([]string(nil), t.Participants...)
	}
	return out
}

// DisplayParticipants returns the participant list excluding self, in a
// stable case-insensitive order.
func (t Thread) DisplayParticipants(self string) []string {
	out := make([]string, 0, len(t.Participants))
	seen := make(map[string]struct{}, len(t.Participants))
	for _, p := range t.Participants {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if key == strings.ToLower(strings.TrimSpace(self)) {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// Validate checks thread fields.
func (t *Thread) Validate() error {
	errs := &ValidationErrors{}
	if strings.TrimSpace(t.ID) == "" {
		errs.AddMessage("id", "thread id is required")
	}
	switch t.Status {
	case ThreadStatusActive, ThreadStatusArchived:
	default:
		errs.AddMessage("status", "status must be active or archived")
	}
	if t.UnreadCount < 0 {
		errs.AddMessage("unread_count", "unread count cannot be negative")
	}
	return errs.Err()
}

// ThreadPatch is a partial thread update. Nil fields are untouched.
type ThreadPatch struct {
	Subject       *string       `json:"subject,omitempty"`
	Status        *ThreadStatus `json:"status,omitempty"`
	UnreadCount   *int          `json:"unread_count,omitempty"`
	LastMessageAt *time.Time    `json:"last_message_at,omitempty"`
}

// Apply copies the patch's set fields onto the thread.
func (p ThreadPatch) Apply(t *Thread) {
	if t == nil {
		return
	}
	if p.Subject != nil {
		t.Subject = *p.Subject
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.UnreadCount != nil {
		t.UnreadCount = *p.UnreadCount
	}
	if p.LastMessageAt != nil {
		t.LastMessageAt = *p.LastMessageAt
	}
}
