// Package encodingactor adapts a typed actor to a wire-bytes boundary,
// translating its request/response payloads to and from
// google.golang.org/protobuf wire messages. It stands in for the
// "components that send envelopes over a transport are responsible for
// serialization" responsibility: the channel's own envelope format stays
// internal and untouched, only the payload carried inside it is encoded.
package encodingactor

import (
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/holochain/lib3h-core/actor"
	"github.com/holochain/lib3h-core/chan2"
	"github.com/holochain/lib3h-core/corelog"
	"github.com/holochain/lib3h-core/detach"
	"github.com/holochain/lib3h-core/tracker"
)

// ChildEndpoint is the wire-facing channel type an Actor privately holds.
type ChildEndpoint[S any] = actor.ChildEndpoint[S, []byte, []byte, struct{}, struct{}]

// Actor wraps an inner typed actor, exposing a []byte-in/[]byte-out parent
// endpoint. Req and Resp are the inner actor's proto-message payload types;
// newReq supplies a fresh zero-value Req message for each Unmarshal, since
// generic code cannot call new(T) for an interface-constrained T.
type Actor[S any, Req proto.Message, Resp proto.Message] struct {
	inner   *actor.ParentWrapper[S, Req, Resp, struct{}, struct{}]
	newReq  func() Req

	parentEP    *chan2.Endpoint[S, []byte, []byte, struct{}, struct{}]
	parentTaken bool
	child       detach.Cell[ChildEndpoint[S]]
}

// New wraps innerActor, whose payload types are Req (what its parent sends)
// and Resp (what it replies with). newReq must return a fresh, zero-value
// Req message for each inbound wire payload; it exists because Go generics
// offer no way to construct a zero value of an interface-constrained type
// parameter directly.
func New[S any, Req proto.Message, Resp proto.Message](
	innerActor actor.Actor[S, Req, Resp, struct{}, struct{}],
	newReq func() Req,
) (*Actor[S, Req, Resp], error) {
	inner, err := actor.NewParentWrapper[S, Req, Resp, struct{}, struct{}](innerActor)
	if err != nil {
		return nil, fmt.Errorf("encodingactor: wrap inner actor: %w", err)
	}

	parent, child := chan2.New[S, []byte, []byte, struct{}, struct{}]("encoding_parent_", "encoding_child_")
	return &Actor[S, Req, Resp]{
		inner:    inner,
		newReq:   newReq,
		parentEP: parent,
		child:    detach.New[ChildEndpoint[S]](child),
	}, nil
}

// TakeParentEndpoint implements actor.Actor, handing out the wire-bytes
// facing endpoint.
func (a *Actor[S, Req, Resp]) TakeParentEndpoint() (*chan2.Endpoint[S, []byte, []byte, struct{}, struct{}], bool) {
	if a.parentTaken {
		return nil, false
	}
	a.parentTaken = true
	return a.parentEP, true
}

// Process drives the inner typed actor (so its own responses are ready to
// encode), then drives the wire-facing endpoint: each inbound request is
// unmarshaled into Req, forwarded to the inner actor, and the eventual
// response is marshaled back to wire bytes.
func (a *Actor[S, Req, Resp]) Process(state *S) (bool, error) {
	innerWork, innerErr := a.inner.Process(state)
	wireWork, wireErr := actor.DriveChild(&a.child, state, a.decodeAndForward)
	if innerErr != nil || wireErr != nil {
		return innerWork || wireWork, joinTwo(innerErr, wireErr)
	}
	return innerWork || wireWork, nil
}

func (a *Actor[S, Req, Resp]) decodeAndForward(state *S, msg *chan2.IncomingMessage[[]byte, []byte]) error {
	wire := msg.TakePayload()

	req := a.newReq()
	if err := proto.Unmarshal(wire, req); err != nil {
		corelog.L().Err().Err(err).Log(`encodingactor: failed to unmarshal request payload`)
		return msg.Respond(nil, fmt.Errorf("encodingactor: unmarshal request: %w", err))
	}

	_, err := a.inner.Request(req, func(state *S, data tracker.CallbackData[Resp]) error {
		if data.IsTimeout() {
			return msg.Respond(nil, fmt.Errorf("encodingactor: inner actor request timed out"))
		}
		respVal, respErr, _ := data.Response()
		if respErr != nil {
			return msg.Respond(nil, respErr)
		}
		wireResp, marshalErr := proto.Marshal(respVal)
		if marshalErr != nil {
			return msg.Respond(nil, fmt.Errorf("encodingactor: marshal response: %w", marshalErr))
		}
		return msg.Respond(wireResp, nil)
	})
	return err
}

func joinTwo(a, b error) error {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return fmt.Errorf("%w; %v", a, b)
}
