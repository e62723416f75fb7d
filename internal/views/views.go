// Package views derives read-only projections from a cache snapshot:
// filter buckets, unread totals, and per-thread message order. Nothing
// here mutates the cache; display order is computed at read time and never
// relies on insertion order.
package views

import (
	"sort"
	"strings"

	"github.com/hirelight/hirelight/internal/cache"
	"github.com/hirelight/hirelight/internal/models"
)

// Threads returns the snapshot's threads in the given filter bucket,
// newest activity first. Ties break on id so the order is stable.
func Threads(snap cache.Snapshot, filter models.ThreadFilter) []models.Thread {
	out := make([]models.Thread, 0, len(snap.Threads))
	for i := range snap.Threads {
		if filter.Matches(snap.Threads[i].Status) {
			out = append(out, snap.Threads[i])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ThreadMessages returns the thread's messages sorted by CreatedAt
// ascending, regardless of the interleaving that inserted them. Ties break
// on id.
func ThreadMessages(snap cache.Snapshot, threadID string) []models.Message {
	var out []models.Message
	for i := range snap.Messages {
		if snap.Messages[i].ThreadID == threadID {
			out = append(out, snap.Messages[i])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UnreadMessages counts the thread's unread inbound messages directly from
// the message collection. Used to cross-check the denormalized
// Thread.UnreadCount.
func UnreadMessages(snap cache.Snapshot, threadID string) int {
	count := 0
	for i := range snap.Messages {
		if snap.Messages[i].ThreadID == threadID && snap.Messages[i].Unread() {
			count++
		}
	}
	return count
}

// Counts summarizes the snapshot for dashboard badges.
type Counts struct {
	Active   int
	Archived int
	Unread   int
}

// Summarize computes bucket sizes and the unread total.
func Summarize(snap cache.Snapshot) Counts {
	var c Counts
	for i := range snap.Threads {
		switch snap.Threads[i].Status {
		case models.ThreadStatusArchived:
			c.Archived++
		default:
			c.Active++
		}
		c.Unread += snap.Threads[i].UnreadCount
	}
	return c
}

// MatchesSearch reports whether a thread matches a free-text needle over
// subject, participant addresses, and denormalized display fields.
func MatchesSearch(thread models.Thread, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(thread.Subject), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(thread.JobTitle), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(thread.ApplicantName), needle) {
		return true
	}
	for _, p := range thread.Participants {
		if strings.Contains(strings.ToLower(p), needle) {
			return true
		}
	}
	return false
}
