package events

import "escrowsc/core/types"

// Buffer collects the events of a single call. The host publishes the buffered
// events only once the call has committed, so a failed call never leaks events
// for state that was rolled back.
type Buffer struct {
	events []Event
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.events)
}

// Flush forwards every buffered event to the target emitter and returns the
// payloads in emission order. The buffer is empty afterwards.
func (b *Buffer) Flush(target Emitter) []types.Event {
	if b == nil {
		return nil
	}
	out := make([]types.Event, 0, len(b.events))
	for _, evt := range b.events {
		if payload := evt.Event(); payload != nil {
			out = append(out, *payload)
		}
		if target != nil {
			target.Emit(evt)
		}
	}
	b.events = nil
	return out
}

// Discard drops every buffered event.
func (b *Buffer) Discard() {
	if b == nil {
		return
	}
	b.events = nil
}
