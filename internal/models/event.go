package models

import (
	"encoding/json"
	"fmt"
)

// ChangeKind categorizes entries on the push change feed.
type ChangeKind string

const (
	// ChangeKindThread is a partial update to an existing thread.
	ChangeKindThread ChangeKind = "thread.changed"

	// ChangeKindMessage is an insert of a new message.
	ChangeKindMessage ChangeKind = "message.inserted"
)

// ChangeEvent is a tagged variant over the two change feed payloads.
// Exactly one of Thread or Message is set, matching Kind.
type ChangeEvent struct {
	// Kind selects the payload.
	Kind ChangeKind `json:"kind"`

	// Thread carries the payload for ChangeKindThread.
	Thread *ThreadChanged `json:"thread,omitempty"`

	// Message carries the payload for ChangeKindMessage.
	Message *MessageInserted `json:"message,omitempty"`
}

// ThreadChanged is the payload for thread.changed events.
type ThreadChanged struct {
	// ThreadID identifies the updated thread.
	ThreadID string `json:"thread_id"`

	// Patch holds the changed fields.
	Patch ThreadPatch `json:"patch"`
}

// MessageInserted is the payload for message.inserted events.
type MessageInserted struct {
	// Message is the newly created message.
	Message Message `json:"message"`
}

// Validate checks that the event's tag and payload agree.
func (e *ChangeEvent) Validate() error {
	switch e.Kind {
	case ChangeKindThread:
		if e.Thread == nil {
			return fmt.Errorf("%s event missing thread payload", e.Kind)
		}
		if e.Thread.ThreadID == "" {
			return fmt.Errorf("%s event missing thread id", e.Kind)
		}
	case ChangeKindMessage:
		if e.Message == nil {
			return fmt.Errorf("%s event missing message payload", e.Kind)
		}
		if err := e.Message.Message.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown change kind %q", e.Kind)
	}
	return nil
}

// DecodeChangeEvent parses a wire envelope into a ChangeEvent.
func DecodeChangeEvent(data []byte) (ChangeEvent, error) {
	var event ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return ChangeEvent{}, err
	}
	return event, nil
}
