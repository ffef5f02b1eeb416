package actor

import (
	"errors"
	"fmt"

	"github.com/holochain/lib3h-core/chan2"
	"github.com/holochain/lib3h-core/tracker"
)

// ErrAlreadyTaken is returned by NewParentWrapper when the wrapped actor has
// already handed out its parent endpoint (e.g. to an earlier wrapper).
var ErrAlreadyTaken = errors.New("actor: parent endpoint already taken")

// ParentWrapper bundles an owned Actor together with the parent-side
// endpoint extracted from it: the standard way one actor embeds another as
// a child. It forwards Request/Publish/DrainMessages to that endpoint and
// drives both the endpoint and the wrapped actor on Process.
type ParentWrapper[S, ToChild, ToChildResp, ToParent, ToParentResp any] struct {
	actor Actor[S, ToChild, ToChildResp, ToParent, ToParentResp]
	ep    *chan2.Endpoint[S, ToChild, ToChildResp, ToParent, ToParentResp]
}

// NewParentWrapper takes ownership of a, extracting its parent endpoint.
// Returns ErrAlreadyTaken if a's parent endpoint was already taken.
func NewParentWrapper[S, ToChild, ToChildResp, ToParent, ToParentResp any](
	a Actor[S, ToChild, ToChildResp, ToParent, ToParentResp],
) (*ParentWrapper[S, ToChild, ToChildResp, ToParent, ToParentResp], error) {
	ep, ok := a.TakeParentEndpoint()
	if !ok {
		return nil, ErrAlreadyTaken
	}
	return &ParentWrapper[S, ToChild, ToChildResp, ToParent, ToParentResp]{actor: a, ep: ep}, nil
}

// Publish forwards to the wrapped endpoint.
func (w *ParentWrapper[S, ToChild, ToChildResp, ToParent, ToParentResp]) Publish(payload ToChild) error {
	return w.ep.Publish(payload)
}

// Request forwards to the wrapped endpoint.
func (w *ParentWrapper[S, ToChild, ToChildResp, ToParent, ToParentResp]) Request(
	payload ToChild,
	cb func(state *S, data tracker.CallbackData[ToChildResp]) error,
	opts ...tracker.Option,
) (tracker.RequestID, error) {
	return w.ep.Request(payload, cb, opts...)
}

// DrainMessages forwards to the wrapped endpoint.
func (w *ParentWrapper[S, ToChild, ToChildResp, ToParent, ToParentResp]) DrainMessages() []*chan2.IncomingMessage[ToParent, ToParentResp] {
	return w.ep.DrainMessages()
}

// PendingRequests forwards to the wrapped endpoint.
func (w *ParentWrapper[S, ToChild, ToChildResp, ToParent, ToParentResp]) PendingRequests() []tracker.RequestID {
	return w.ep.PendingRequests()
}

// Process drives the wrapped actor (which in turn drives its own privately
// held child endpoint, typically via DriveChild), then pumps this wrapper's
// parent-side endpoint so responses the actor just sent are matched against
// outstanding parent-initiated requests and any newly arrived child-
// initiated requests surface for DrainMessages.
func (w *ParentWrapper[S, ToChild, ToChildResp, ToParent, ToParentResp]) Process(state *S) (workDone bool, err error) {
	var errs []error

	actorWork, actorErr := w.actor.Process(state)
	if actorErr != nil {
		errs = append(errs, fmt.Errorf("actor: wrapped actor process: %w", actorErr))
	}

	epWork, epErr := w.ep.Process(state)
	if epErr != nil {
		errs = append(errs, fmt.Errorf("actor: parent endpoint process: %w", epErr))
	}

	return actorWork || epWork, joinErrors(errs)
}

// Unwrap returns the wrapped actor, e.g. for application code that needs to
// reach fields or methods beyond the Actor contract.
func (w *ParentWrapper[S, ToChild, ToChildResp, ToParent, ToParentResp]) Unwrap() Actor[S, ToChild, ToChildResp, ToParent, ToParentResp] {
	return w.actor
}
