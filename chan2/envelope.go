package chan2

import "github.com/holochain/lib3h-core/tracker"

// envelope is the discriminated union carried over one direction of a
// channel: either a Request (an event, if id is nil, or a request awaiting a
// response, if id is set) or a Response (always carries the request id it
// answers).
type envelope[Req, Resp any] struct {
	isResponse bool

	// Request fields.
	id      *tracker.RequestID
	payload Req

	// Response fields.
	responseID  tracker.RequestID
	responseVal Resp
	responseErr error
}
