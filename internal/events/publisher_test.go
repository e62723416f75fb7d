package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  Event
		want   bool
	}{
		{"empty filter matches all", Filter{}, Event{Type: TypeRefreshCompleted}, true},
		{"type match", Filter{Types: []EventType{TypeMessageInserted}}, Event{Type: TypeMessageInserted}, true},
		{"type mismatch", Filter{Types: []EventType{TypeMessageInserted}}, Event{Type: TypeRefreshCompleted}, false},
		{"thread match", Filter{ThreadID: "t1"}, Event{Type: TypeMutationFailed, ThreadID: "t1"}, true},
		{"thread mismatch", Filter{ThreadID: "t1"}, Event{Type: TypeMutationFailed, ThreadID: "t2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.filter.Matches(tt.event))
		})
	}
}

func TestPublishDelivery(t *testing.T) {
	p := NewInMemoryPublisher()

	var got []Event
	require.NoError(t, p.Subscribe("inserts", Filter{Types: []EventType{TypeMessageInserted}}, func(e Event) {
		got = append(got, e)
	}))
	require.Equal(t, 1, p.SubscriberCount())

	p.Publish(Event{Type: TypeMessageInserted, ThreadID: "t1", MessageID: "m1"})
	p.Publish(Event{Type: TypeRefreshCompleted})

	require.Len(t, got, 1)
	require.Equal(t, "m1", got[0].MessageID)
	require.False(t, got[0].At.IsZero())
}

func TestSubscribeValidation(t *testing.T) {
	p := NewInMemoryPublisher()
	handler := func(Event) {}

	require.ErrorIs(t, p.Subscribe("", Filter{}, handler), ErrInvalidSubscriptionID)
	require.ErrorIs(t, p.Subscribe("a", Filter{}, nil), ErrNilHandler)
	require.NoError(t, p.Subscribe("a", Filter{}, handler))
	require.ErrorIs(t, p.Subscribe("a", Filter{}, handler), ErrSubscriptionExists)
}

func TestUnsubscribe(t *testing.T) {
	p := NewInMemoryPublisher()
	fired := false
	require.NoError(t, p.Subscribe("a", Filter{}, func(Event) { fired = true }))
	require.NoError(t, p.Unsubscribe("a"))
	require.NoError(t, p.Unsubscribe("missing"))

	p.Publish(Event{Type: TypeRefreshCompleted, Err: errors.New("ignored")})
	require.False(t, fired)
	require.Zero(t, p.SubscriberCount())
}
