// Package chan2 implements the channel: a pair of bidirectional typed
// message endpoints, crossed so that each endpoint's outbound queue is the
// other's inbound queue. Each inbound message closes over the endpoint it
// arrived on, so a response can find its way back without any sender handle
// being threaded through the message itself.
//
// An Endpoint is generic over five type parameters:
//
//	S       the user-state type threaded through Process and every callback
//	Out     the payload type this endpoint sends as a request/event
//	OutResp the response payload type this endpoint expects back for Out
//	In      the payload type this endpoint receives as a request/event
//	InResp  the response payload type this endpoint sends back for In
//
// The two endpoints of one channel are typed as mirror images of each other:
// Endpoint[S, ToChild, ToChildResp, ToParent, ToParentResp] on the parent
// side pairs with Endpoint[S, ToParent, ToParentResp, ToChild, ToChildResp]
// on the child side.
package chan2

import (
	"errors"
	"sync"

	"github.com/holochain/lib3h-core/corelog"
	"github.com/holochain/lib3h-core/tracker"
)

// Endpoint is one side of a Channel.
type Endpoint[S, Out, OutResp, In, InResp any] struct {
	out *queue[envelope[Out, InResp]]
	in  *queue[envelope[In, OutResp]]

	tr *tracker.Tracker[S]

	inboxMu sync.Mutex
	inbox   []*IncomingMessage[In, InResp]
}

// New creates one channel and returns its two crossed endpoints: parent and
// child. parentPrefix and childPrefix distinguish the two sides' generated
// request ids in logs (e.g. "parent_" / "child_").
func New[S, ToChild, ToChildResp, ToParent, ToParentResp any](
	parentPrefix, childPrefix string,
) (
	parent *Endpoint[S, ToChild, ToChildResp, ToParent, ToParentResp],
	child *Endpoint[S, ToParent, ToParentResp, ToChild, ToChildResp],
) {
	toChildQueue := newQueue[envelope[ToChild, ToParentResp]]()
	toParentQueue := newQueue[envelope[ToParent, ToChildResp]]()

	parent = &Endpoint[S, ToChild, ToChildResp, ToParent, ToParentResp]{
		out: toChildQueue,
		in:  toParentQueue,
		tr:  tracker.NewBuilder[S]().RequestIDPrefix(parentPrefix).Build(),
	}
	child = &Endpoint[S, ToParent, ToParentResp, ToChild, ToChildResp]{
		out: toParentQueue,
		in:  toChildQueue,
		tr:  tracker.NewBuilder[S]().RequestIDPrefix(childPrefix).Build(),
	}
	return parent, child
}

// Publish sends a one-way event to the peer. Returns *DisconnectedError if
// the peer has been Closed: a send on a dead channel fails loudly rather
// than silently dropping the event.
func (e *Endpoint[S, Out, OutResp, In, InResp]) Publish(payload Out) error {
	err := e.out.push(envelope[Out, InResp]{payload: payload})
	if err != nil {
		corelog.L().Debug().Log(`chan2: publish on disconnected endpoint`)
		return &DisconnectedError{Op: "publish"}
	}
	return nil
}

// Request sends payload as a request expecting a response, registering cb in
// this endpoint's tracker. Returns the assigned RequestID, or a
// *DisconnectedError if the send fails locally (in which case cb is never
// bookmarked).
func (e *Endpoint[S, Out, OutResp, In, InResp]) Request(
	payload Out,
	cb func(state *S, data tracker.CallbackData[OutResp]) error,
	opts ...tracker.Option,
) (tracker.RequestID, error) {
	if e.out.isClosed() {
		return "", &DisconnectedError{Op: "request"}
	}

	id := tracker.Bookmark(e.tr, cb, opts...)
	env := envelope[Out, InResp]{id: &id, payload: payload}
	if err := e.out.push(env); err != nil {
		return "", &DisconnectedError{Op: "request"}
	}
	return id, nil
}

// DrainMessages returns, and clears, every inbound request/event received
// since the last call (S3, S4). It does not itself pump the underlying
// queue; call Process first within the same tick.
func (e *Endpoint[S, Out, OutResp, In, InResp]) DrainMessages() []*IncomingMessage[In, InResp] {
	e.inboxMu.Lock()
	defer e.inboxMu.Unlock()
	if len(e.inbox) == 0 {
		return nil
	}
	out := e.inbox
	e.inbox = nil
	return out
}

// Process pumps inbound envelopes: requests are appended to the inbox (for
// DrainMessages), responses are matched against this endpoint's tracker and
// fire their callback with state. It also sweeps the tracker for timed-out
// requests. It returns whether any work was done.
func (e *Endpoint[S, Out, OutResp, In, InResp]) Process(state *S) (workDone bool, err error) {
	envs := e.in.drain()

	var errs []error
	for _, env := range envs {
		workDone = true
		if env.isResponse {
			if hErr := e.tr.Handle(env.responseID, state, env.responseVal, env.responseErr); hErr != nil {
				// A response for an id the tracker no longer recognises (already
				// answered, or swept as timed out) is discarded by design, not a
				// failure this endpoint's caller should see or retire an actor
				// over.
				var notFound *tracker.RequestIDNotFoundError
				if !errors.As(hErr, &notFound) {
					errs = append(errs, hErr)
				}
			}
			continue
		}

		msg := &IncomingMessage[In, InResp]{
			id:      env.id,
			payload: env.payload,
			respond: e.makeResponder(env.id),
		}
		e.inboxMu.Lock()
		e.inbox = append(e.inbox, msg)
		e.inboxMu.Unlock()
	}

	sweptWork, sweepErr := e.tr.Process(state)
	if sweptWork {
		workDone = true
	}
	if sweepErr != nil {
		errs = append(errs, sweepErr)
	}

	return workDone, joinErrors(errs)
}

func (e *Endpoint[S, Out, OutResp, In, InResp]) makeResponder(id *tracker.RequestID) func(InResp, error) error {
	return func(value InResp, err error) error {
		if id == nil {
			return nil
		}
		respErr := e.out.push(envelope[Out, InResp]{
			isResponse:  true,
			responseID:  *id,
			responseVal: value,
			responseErr: err,
		})
		if respErr != nil {
			return &DisconnectedError{Op: "respond"}
		}
		return nil
	}
}

// Close marks this endpoint's queues disconnected: further sends from this
// side, and further sends from the peer into this side's inbound queue,
// fail with *DisconnectedError. Requests already in flight at close time
// time out normally, through the owning tracker's Process sweep.
func (e *Endpoint[S, Out, OutResp, In, InResp]) Close() {
	e.out.close()
	e.in.close()
}

// PendingRequests returns the ids this endpoint is still awaiting responses
// for.
func (e *Endpoint[S, Out, OutResp, In, InResp]) PendingRequests() []tracker.RequestID {
	return e.tr.Pending()
}
