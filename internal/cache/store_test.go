package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hirelight/hirelight/internal/models"
)

func msgAt(id, threadID string, at time.Time, dir models.Direction, read bool) models.Message {
	return models.Message{
		ID:        id,
		ThreadID:  threadID,
		Direction: dir,
		IsRead:    read,
		CreatedAt: at,
	}
}

func TestUpsertThreads_MergeByID(t *testing.T) {
	s := New("u1")
	s.UpsertThreads([]models.Thread{
		{ID: "t1", Subject: "Backend role", Status: models.ThreadStatusActive},
		{ID: "t2", Subject: "Design role", Status: models.ThreadStatusActive},
	})
	s.UpsertThreads([]models.Thread{
		{ID: "t1", Subject: "Backend role (updated)", Status: models.ThreadStatusActive},
	})

	thread, ok := s.Thread("t1")
	require.True(t, ok)
	require.Equal(t, "Backend role (updated)", thread.Subject)

	snap := s.Snapshot()
	require.Len(t, snap.Threads, 2)
}

func TestUpsertThreads_StalePollDoesNotClobberFresherPush(t *testing.T) {
	tOld := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	tNew := tOld.Add(5 * time.Minute)

	s := New("u1")
	// Push-applied state with the newer timestamp arrives first.
	s.UpsertThreads([]models.Thread{{ID: "t1", Status: models.ThreadStatusActive, LastMessageAt: tNew, UnreadCount: 3}})
	// A poll snapshot read from before the push then resolves.
	s.UpsertThreads([]models.Thread{{ID: "t1", Status: models.ThreadStatusActive, LastMessageAt: tOld, UnreadCount: 2}})

	thread, _ := s.Thread("t1")
	require.Equal(t, tNew, thread.LastMessageAt)
	require.Equal(t, 3, thread.UnreadCount)
}

func TestUpsertThreads_EqualTimestampsLastAppliedWins(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	s := New("u1")
	s.UpsertThreads([]models.Thread{{ID: "t1", Subject: "first", Status: models.ThreadStatusActive, LastMessageAt: at}})
	s.UpsertThreads([]models.Thread{{ID: "t1", Subject: "second", Status: models.ThreadStatusActive, LastMessageAt: at}})

	thread, _ := s.Thread("t1")
	require.Equal(t, "second", thread.Subject)
}

func TestUpsertMessages_Idempotent(t *testing.T) {
	at := time.Now().UTC()
	s := New("u1")

	msg := msgAt("m1", "t1", at, models.DirectionInbound, false)
	s.UpsertMessages([]models.Message{msg})

	changed := msg
	changed.Content = "mutated"
	s.UpsertMessages([]models.Message{changed})

	got, ok := s.Message("m1")
	require.True(t, ok)
	require.Empty(t, got.Content)
	require.Len(t, s.Snapshot().Messages, 1)
}

func TestPatchThread_UnknownIDIgnored(t *testing.T) {
	s := New("u1")
	zero := 0
	require.False(t, s.PatchThread("ghost", models.ThreadPatch{UnreadCount: &zero}))
	require.Empty(t, s.Snapshot().Threads)
}

func TestPatchThread_LastMessageAtOnlyAdvances(t *testing.T) {
	tNew := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	tOld := tNew.Add(-time.Hour)

	s := New("u1")
	s.UpsertThreads([]models.Thread{{ID: "t1", Status: models.ThreadStatusActive, LastMessageAt: tNew}})

	require.True(t, s.PatchThread("t1", models.ThreadPatch{LastMessageAt: &tOld}))
	thread, _ := s.Thread("t1")
	require.Equal(t, tNew, thread.LastMessageAt)

	later := tNew.Add(time.Minute)
	require.True(t, s.PatchThread("t1", models.ThreadPatch{LastMessageAt: &later}))
	thread, _ = s.Thread("t1")
	require.Equal(t, later, thread.LastMessageAt)
}

func TestRemoveThread_EvictsMessages(t *testing.T) {
	at := time.Now().UTC()
	s := New("u1")
	s.UpsertThreads([]models.Thread{
		{ID: "t1", Status: models.ThreadStatusActive},
		{ID: "t2", Status: models.ThreadStatusActive},
	})
	s.UpsertMessages([]models.Message{
		msgAt("m1", "t1", at, models.DirectionInbound, false),
		msgAt("m2", "t1", at, models.DirectionOutbound, true),
		msgAt("m3", "t2", at, models.DirectionInbound, false),
	})

	s.RemoveThread("t1")

	snap := s.Snapshot()
	require.Len(t, snap.Threads, 1)
	require.Len(t, snap.Messages, 1)
	require.Equal(t, "m3", snap.Messages[0].ID)
}

func TestUpdate_MultiPatchIsOneTransaction(t *testing.T) {
	at := time.Now().UTC()
	s := New("u1")
	s.UpsertThreads([]models.Thread{{ID: "t1", Status: models.ThreadStatusActive, UnreadCount: 2}})
	s.UpsertMessages([]models.Message{
		msgAt("m1", "t1", at, models.DirectionInbound, false),
		msgAt("m2", "t1", at.Add(time.Second), models.DirectionInbound, false),
	})

	read := true
	zero := 0
	s.Update(func(tx *Tx) {
		for _, msg := range tx.ThreadMessages("t1") {
			if msg.Unread() {
				tx.PatchMessage(msg.ID, models.MessagePatch{IsRead: &read})
			}
		}
		tx.PatchThread("t1", models.ThreadPatch{UnreadCount: &zero})
	})

	thread, _ := s.Thread("t1")
	require.Zero(t, thread.UnreadCount)
	for _, msg := range s.Snapshot().Messages {
		require.True(t, msg.IsRead)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	s := New("u1")
	s.UpsertThreads([]models.Thread{{ID: "t1", Status: models.ThreadStatusActive, Participants: []string{"a@b.c"}}})

	snap := s.Snapshot()
	snap.Threads[0].Participants[0] = "mutated"
	snap.Threads[0].Subject = "mutated"

	thread, _ := s.Thread("t1")
	require.Equal(t, "a@b.c", thread.Participants[0])
	require.Empty(t, thread.Subject)
}
