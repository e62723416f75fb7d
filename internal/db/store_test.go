package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hirelight/hirelight/internal/models"
)

var baseTime = time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	handle, err := Open(context.Background(), filepath.Join(t.TempDir(), "inbox.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, handle.Close()) })
	return NewStore(handle)
}

func seedStore(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SeedThread(ctx, "u1", models.Thread{
		ID:            "t1",
		Subject:       "Backend Engineer role",
		Participants:  []string{"me@hirelight.io", "carol@candidates.io"},
		Status:        models.ThreadStatusActive,
		LastMessageAt: baseTime,
		JobTitle:      "Backend Engineer",
		ApplicantName: "Carol",
	}))
	require.NoError(t, s.SeedThread(ctx, "u1", models.Thread{
		ID:            "t2",
		Subject:       "Designer role",
		Participants:  []string{"me@hirelight.io", "dave@candidates.io"},
		Status:        models.ThreadStatusArchived,
		LastMessageAt: baseTime.Add(time.Hour),
	}))
	require.NoError(t, s.SeedMessage(ctx, "u1", models.Message{
		ID: "m1", ThreadID: "t1",
		Sender: "carol@candidates.io", Recipient: "me@hirelight.io",
		Content: "Hello", Direction: models.DirectionInbound,
		CreatedAt: baseTime,
	}))
	require.NoError(t, s.SeedMessage(ctx, "u1", models.Message{
		ID: "m2", ThreadID: "t1",
		Sender: "carol@candidates.io", Recipient: "me@hirelight.io",
		Content: "Following up", Direction: models.DirectionInbound,
		CreatedAt: baseTime.Add(time.Minute),
	}))
}

func TestListThreadsByFilter(t *testing.T) {
	s := openTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	active, err := s.ListThreads(ctx, "u1", models.FilterActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "t1", active[0].ID)
	require.Equal(t, 2, active[0].UnreadCount)
	require.Equal(t, []string{"me@hirelight.io", "carol@candidates.io"}, active[0].Participants)
	require.Equal(t, "Carol", active[0].ApplicantName)

	all, err := s.ListThreads(ctx, "u1", models.FilterAll)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first.
	require.Equal(t, "t2", all[0].ID)

	_, err = s.ListThreads(ctx, "u1", models.ThreadFilter("starred"))
	require.ErrorIs(t, err, models.ErrUnknownFilter)

	other, err := s.ListThreads(ctx, "u2", models.FilterAll)
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestSeedMessageMaintainsThreadCounters(t *testing.T) {
	s := openTestStore(t)
	seedStore(t, s)

	threads, err := s.ListThreads(context.Background(), "u1", models.FilterActive)
	require.NoError(t, err)
	require.Equal(t, 2, threads[0].UnreadCount)
	require.Equal(t, baseTime.Add(time.Minute), threads[0].LastMessageAt)
}

func TestSetRead(t *testing.T) {
	s := openTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.SetRead(ctx, "t1"))

	threads, err := s.ListThreads(ctx, "u1", models.FilterActive)
	require.NoError(t, err)
	require.Zero(t, threads[0].UnreadCount)

	messages, err := s.ListMessages(ctx, "u1")
	require.NoError(t, err)
	for _, msg := range messages {
		require.True(t, msg.IsRead, msg.ID)
	}

	require.ErrorIs(t, s.SetRead(ctx, "missing"), models.ErrNotFound)
}

func TestSendReplyAssignsServerID(t *testing.T) {
	s := openTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	clientID := "local-1"
	serverID, err := s.SendReply(ctx, models.Message{
		ID:        clientID,
		ThreadID:  "t1",
		Sender:    "me@hirelight.io",
		Recipient: "carol@candidates.io",
		Content:   "Thanks, scheduling now.",
		Direction: models.DirectionOutbound,
		IsRead:    true,
		CreatedAt: baseTime.Add(2 * time.Minute),
	})
	require.NoError(t, err)
	require.NotEmpty(t, serverID)
	require.NotEqual(t, clientID, serverID)

	messages, err := s.ListMessages(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	last := messages[len(messages)-1]
	require.Equal(t, serverID, last.ID)
	require.Equal(t, models.DirectionOutbound, last.Direction)
	require.True(t, last.IsRead)

	threads, err := s.ListThreads(ctx, "u1", models.FilterActive)
	require.NoError(t, err)
	require.Equal(t, baseTime.Add(2*time.Minute), threads[0].LastMessageAt)
}

func TestFractionalTimestampsCompareChronologically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// A fractional last_message_at followed by a whole-second reply in the
	// same second. Stored as bare RFC3339Nano text, "...05Z" sorts after
	// "...05.5Z" and the MAX() bump would move the thread backwards.
	fractional := baseTime.Add(5*time.Second + 500*time.Millisecond)
	whole := baseTime.Add(5 * time.Second)
	require.NoError(t, s.SeedThread(ctx, "u1", models.Thread{
		ID:            "t1",
		Subject:       "Backend Engineer role",
		Participants:  []string{"me@hirelight.io", "carol@candidates.io"},
		Status:        models.ThreadStatusActive,
		LastMessageAt: fractional,
	}))

	_, err := s.SendReply(ctx, models.Message{
		ThreadID:  "t1",
		Sender:    "me@hirelight.io",
		Recipient: "carol@candidates.io",
		Content:   "Thanks!",
		Direction: models.DirectionOutbound,
		CreatedAt: whole,
	})
	require.NoError(t, err)

	threads, err := s.ListThreads(ctx, "u1", models.FilterActive)
	require.NoError(t, err)
	require.Equal(t, fractional, threads[0].LastMessageAt)

	// Same anomaly through the ingestion path.
	require.NoError(t, s.SeedMessage(ctx, "u1", models.Message{
		ID: "m-old", ThreadID: "t1",
		Sender: "carol@candidates.io", Recipient: "me@hirelight.io",
		Content: "Hello", Direction: models.DirectionInbound,
		CreatedAt: whole,
	}))
	threads, err = s.ListThreads(ctx, "u1", models.FilterActive)
	require.NoError(t, err)
	require.Equal(t, fractional, threads[0].LastMessageAt)

	// And ORDER BY ranks a fractional-newer thread first.
	require.NoError(t, s.SeedThread(ctx, "u1", models.Thread{
		ID:            "t2",
		Subject:       "Designer role",
		Participants:  []string{"me@hirelight.io", "dave@candidates.io"},
		Status:        models.ThreadStatusActive,
		LastMessageAt: whole,
	}))
	threads, err = s.ListThreads(ctx, "u1", models.FilterActive)
	require.NoError(t, err)
	require.Equal(t, "t1", threads[0].ID)
}

func TestSendReplyValidation(t *testing.T) {
	s := openTestStore(t)
	seedStore(t, s)

	_, err := s.SendReply(context.Background(), models.Message{ThreadID: "t1", Content: "  "})
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = s.SendReply(context.Background(), models.Message{ThreadID: "missing", Content: "hi"})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestArchiveUnarchive(t *testing.T) {
	s := openTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.Archive(ctx, "t1"))
	archived, err := s.ListThreads(ctx, "u1", models.FilterArchived)
	require.NoError(t, err)
	require.Len(t, archived, 2)

	require.NoError(t, s.Unarchive(ctx, "t1"))
	active, err := s.ListThreads(ctx, "u1", models.FilterActive)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.ErrorIs(t, s.Archive(ctx, "missing"), models.ErrNotFound)
}

func TestDeletePermanentlyRemovesMessages(t *testing.T) {
	s := openTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.DeletePermanently(ctx, "t1"))

	threads, err := s.ListThreads(ctx, "u1", models.FilterAll)
	require.NoError(t, err)
	require.Len(t, threads, 1)

	messages, err := s.ListMessages(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestBulkStatusAllOrNothing(t *testing.T) {
	s := openTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	// One unknown id rolls the whole batch back.
	err := s.ArchiveAll(ctx, []string{"t1", "missing"})
	require.ErrorIs(t, err, models.ErrNotFound)

	active, err := s.ListThreads(ctx, "u1", models.FilterActive)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, s.ArchiveAll(ctx, []string{"t1", "t2"}))
	archived, err := s.ListThreads(ctx, "u1", models.FilterArchived)
	require.NoError(t, err)
	require.Len(t, archived, 2)

	require.NoError(t, s.UnarchiveAll(ctx, []string{"t1", "t2"}))
	require.NoError(t, s.DeleteAllPermanently(ctx, []string{"t1", "t2"}))
	all, err := s.ListThreads(ctx, "u1", models.FilterAll)
	require.NoError(t, err)
	require.Empty(t, all)
}
