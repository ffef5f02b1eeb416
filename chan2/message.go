package chan2

import (
	"fmt"

	"github.com/holochain/lib3h-core/tracker"
)

// IncomingMessage wraps one inbound Request-shaped envelope: a payload of
// type In, an optional correlation id, and the means to reply on the same
// channel direction the request arrived from.
//
// An IncomingMessage that carried an id but was dropped without Respond
// being called will cause the requester's callback to eventually fire with
// Timeout -- there is no separate "nack" signal.
type IncomingMessage[In, InResp any] struct {
	id      *tracker.RequestID
	payload In
	taken   bool

	respond func(value InResp, err error) error
}

// ID returns the correlation id this message carried, or ("", false) if it
// was a one-way event.
func (m *IncomingMessage[In, InResp]) ID() (tracker.RequestID, bool) {
	if m.id == nil {
		return "", false
	}
	return *m.id, true
}

// TakePayload extracts the payload. It is a once-only ownership transfer:
// calling it a second time on the same message panics.
func (m *IncomingMessage[In, InResp]) TakePayload() In {
	if m.taken {
		panic(fmt.Errorf("chan2: TakePayload called twice on the same message"))
	}
	m.taken = true
	return m.payload
}

// Respond sends a response envelope carrying (value, err) back to the
// requester, if this message carried a correlation id. If this message was
// a one-way event (no id), Respond is a no-op and returns nil.
func (m *IncomingMessage[In, InResp]) Respond(value InResp, err error) error {
	if m.id == nil {
		return nil
	}
	return m.respond(value, err)
}
