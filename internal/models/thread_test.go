package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseThreadFilter(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ThreadFilter
		wantErr bool
	}{
		{name: "active", in: "active", want: FilterActive},
		{name: "archived upper", in: " ARCHIVED ", want: FilterArchived},
		{name: "all", in: "all", want: FilterAll},
		{name: "empty defaults to all", in: "", want: FilterAll},
		{name: "garbage", in: "trash", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseThreadFilter(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownFilter)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestThreadFilter_Matches(t *testing.T) {
	require.True(t, FilterActive.Matches(ThreadStatusActive))
	require.False(t, FilterActive.Matches(ThreadStatusArchived))
	require.True(t, FilterArchived.Matches(ThreadStatusArchived))
	require.False(t, FilterArchived.Matches(ThreadStatusActive))
	require.True(t, FilterAll.Matches(ThreadStatusActive))
	require.True(t, FilterAll.Matches(ThreadStatusArchived))
}

func TestThread_DisplayParticipants(t *testing.T) {
	thread := Thread{Participants: []string{
		"carol@candidates.io",
		"me@hirelight.io",
		"  alice@candidates.io ",
		"Carol@candidates.io", // dup by case
		"",
	}}

	got := thread.DisplayParticipants("ME@hirelight.io")
	require.Equal(t, []string{"alice@candidates.io", "carol@candidates.io"}, got)
}

func TestThread_Validate(t *testing.T) {
	thread := Thread{ID: "t1", Status: ThreadStatusActive}
	require.NoError(t, thread.Validate())

	bad := Thread{Status: "trash", UnreadCount: -1}
	err := bad.Validate()
	require.ErrorIs(t, err, ErrValidation)
	var verrs *ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs.Errors, 3)
}

func TestThreadPatch_Apply(t *testing.T) {
	now := time.Now().UTC()
	archived := ThreadStatusArchived
	zero := 0

	thread := Thread{ID: "t1", Status: ThreadStatusActive, UnreadCount: 4, Subject: "Re: Backend role"}
	ThreadPatch{Status: &archived, UnreadCount: &zero, LastMessageAt: &now}.Apply(&thread)

	require.Equal(t, ThreadStatusArchived, thread.Status)
	require.Zero(t, thread.UnreadCount)
	require.Equal(t, now, thread.LastMessageAt)
	require.Equal(t, "Re: Backend role", thread.Subject)
}

func TestThread_CloneIsDeep(t *testing.T) {
	thread := Thread{ID: "t1", Participants: []string{"a@b.c"}}
	clone := thread.Clone()
	clone.Participants[0] = "x@y.z"
	require.Equal(t, "a@b.c", thread.Participants[0])
}
