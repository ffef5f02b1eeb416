// Package actor defines the uniform contract every component in the system
// satisfies, and the generic helpers actors use to implement it: driving a
// privately-held child endpoint through a detach cell, and the parent-side
// wrapper that embeds one actor inside another.
package actor

import (
	"github.com/holochain/lib3h-core/chan2"
	"github.com/holochain/lib3h-core/detach"
)

// Actor is the contract every component in the system implements so the
// framework can drive arbitrary actors polymorphically.
//
// S is the state threaded through every Process call and every tracker
// callback across the whole actor tree. ToChild/ToChildResp/ToParent/
// ToParentResp describe the channel the actor was constructed with, from the
// parent's point of view.
type Actor[S, ToChild, ToChildResp, ToParent, ToParentResp any] interface {
	// TakeParentEndpoint hands out the parent side of this actor's channel.
	// It may be called at most once; a second call must return ok=false.
	TakeParentEndpoint() (ep *chan2.Endpoint[S, ToChild, ToChildResp, ToParent, ToParentResp], ok bool)

	// Process performs one non-blocking step of work and reports whether it
	// did anything observable.
	Process(state *S) (workDone bool, err error)
}

// ChildEndpoint is the type of endpoint an actor implementation privately
// holds: the child side of the same channel whose parent side it hands out
// via TakeParentEndpoint.
type ChildEndpoint[S, ToChild, ToChildResp, ToParent, ToParentResp any] = *chan2.Endpoint[S, ToParent, ToParentResp, ToChild, ToChildResp]

// DriveChild pumps the child endpoint (delivering responses to the actor's
// own outbound-request callbacks), drains its inbound messages -- the
// parent's ToChild requests/events -- and dispatches each to handle. cell
// holds the actor's child endpoint behind a detach.Cell so the calling actor
// can pass both itself (captured by handle) and its endpoint (extracted from
// cell) into this one call without an aliasing violation.
func DriveChild[S, ToChild, ToChildResp, ToParent, ToParentResp any](
	cell *detach.Cell[ChildEndpoint[S, ToChild, ToChildResp, ToParent, ToParentResp]],
	state *S,
	handle func(state *S, msg *chan2.IncomingMessage[ToChild, ToChildResp]) error,
) (workDone bool, err error) {
	var errs []error

	detachErr := detach.With(cell, func(epp *ChildEndpoint[S, ToChild, ToChildResp, ToParent, ToParentResp]) error {
		ep := *epp

		pumped, pErr := ep.Process(state)
		if pErr != nil {
			errs = append(errs, pErr)
		}
		workDone = workDone || pumped

		for _, msg := range ep.DrainMessages() {
			workDone = true
			if hErr := handle(state, msg); hErr != nil {
				errs = append(errs, hErr)
			}
		}
		return nil
	})
	if detachErr != nil {
		errs = append(errs, detachErr)
	}

	return workDone, joinErrors(errs)
}
