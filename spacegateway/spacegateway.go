// Package spacegateway is a per-space actor: it owns one dhtactor and one
// keystoreactor as nested parent-wrapped children, gossips content-
// addressed entries one-way via Publish, and answers get_entry requests --
// falling back to a DHT peer query, through a separate ParentWrapper, when
// an entry isn't held locally.
package spacegateway

import (
	"errors"
	"fmt"

	"github.com/holochain/lib3h-core/actor"
	"github.com/holochain/lib3h-core/chan2"
	"github.com/holochain/lib3h-core/corelog"
	"github.com/holochain/lib3h-core/detach"
	"github.com/holochain/lib3h-core/dhtactor"
	"github.com/holochain/lib3h-core/keystoreactor"
	"github.com/holochain/lib3h-core/tracker"
)

// Entry is a content-addressed value gossiped into the space.
type Entry struct {
	Key   string
	Value []byte
}

// Message is the discriminated union spacegateway's parent sends it: either
// a one-way Publish of a new Entry, or a GetKey lookup expecting a
// Response. Exactly one of Publish/GetKey should be set.
type Message struct {
	Publish *Entry
	GetKey  string
}

// Response answers a GetKey lookup.
type Response struct {
	Found     bool
	Value     []byte
	Signature []byte
}

// ErrNotFound is returned when neither the local store nor the fallback DHT
// query located the requested key.
var ErrNotFound = errors.New("spacegateway: entry not found")

type storedEntry struct {
	value     []byte
	signature []byte
}

// ChildEndpoint is the channel type between a spacegateway and its parent,
// from the child's own point of view.
type ChildEndpoint[S any] = actor.ChildEndpoint[S, Message, Response, struct{}, struct{}]

// Actor is a spacegateway instance.
type Actor[S any] struct {
	peerID string

	entries  map[string]storedEntry
	dht      *actor.ParentWrapper[S, dhtactor.Request, dhtactor.Response, struct{}, struct{}]
	keystore *actor.ParentWrapper[S, keystoreactor.Request, keystoreactor.Response, struct{}, struct{}]

	parentEP    *chan2.Endpoint[S, Message, Response, struct{}, struct{}]
	parentTaken bool
	child       detach.Cell[ChildEndpoint[S]]
}

// New constructs a spacegateway for one space, owning a fresh dhtactor and a
// keystoreactor seeded with signingKey. peerID identifies this node when
// falling back to a DHT query for an entry it doesn't hold locally.
func New[S any](peerID string, signingKey []byte, dhtOpts ...dhtactor.Option) (*Actor[S], error) {
	ks, err := keystoreactor.New[S](signingKey)
	if err != nil {
		return nil, fmt.Errorf("spacegateway: construct keystore: %w", err)
	}
	ksWrapper, err := actor.NewParentWrapper[S, keystoreactor.Request, keystoreactor.Response, struct{}, struct{}](ks)
	if err != nil {
		return nil, fmt.Errorf("spacegateway: wrap keystore: %w", err)
	}

	dhtWrapper, err := actor.NewParentWrapper[S, dhtactor.Request, dhtactor.Response, struct{}, struct{}](dhtactor.New[S](dhtOpts...))
	if err != nil {
		return nil, fmt.Errorf("spacegateway: wrap dht: %w", err)
	}

	parent, child := chan2.New[S, Message, Response, struct{}, struct{}]("space_parent_", "space_child_")
	return &Actor[S]{
		peerID:   peerID,
		entries:  make(map[string]storedEntry),
		dht:      dhtWrapper,
		keystore: ksWrapper,
		parentEP: parent,
		child:    detach.New[ChildEndpoint[S]](child),
	}, nil
}

// TakeParentEndpoint implements actor.Actor.
func (a *Actor[S]) TakeParentEndpoint() (*chan2.Endpoint[S, Message, Response, struct{}, struct{}], bool) {
	if a.parentTaken {
		return nil, false
	}
	a.parentTaken = true
	return a.parentEP, true
}

// Process implements actor.Actor: drives the nested dht and keystore
// children first, then this gateway's own channel.
func (a *Actor[S]) Process(state *S) (bool, error) {
	dhtWork, dhtErr := a.dht.Process(state)
	ksWork, ksErr := a.keystore.Process(state)
	chanWork, chanErr := actor.DriveChild(&a.child, state, a.handle)
	return dhtWork || ksWork || chanWork, errors.Join(dhtErr, ksErr, chanErr)
}

func (a *Actor[S]) handle(state *S, msg *chan2.IncomingMessage[Message, Response]) error {
	m := msg.TakePayload()

	switch {
	case m.Publish != nil:
		return a.handlePublish(state, m.Publish, msg)
	case m.GetKey != "":
		return a.handleGetEntry(state, m.GetKey, msg)
	default:
		return msg.Respond(Response{}, fmt.Errorf("spacegateway: empty message"))
	}
}

func (a *Actor[S]) handlePublish(state *S, entry *Entry, msg *chan2.IncomingMessage[Message, Response]) error {
	_, err := a.keystore.Request(keystoreactor.Request{Op: keystoreactor.OpSign, Data: entry.Value}, func(state *S, data tracker.CallbackData[keystoreactor.Response]) error {
		if data.IsTimeout() {
			corelog.L().Err().Str(`key`, entry.Key).Log(`spacegateway: signing timed out during publish`)
			return nil
		}
		resp, err := mustResponse(data)
		if err != nil {
			corelog.L().Err().Err(err).Str(`key`, entry.Key).Log(`spacegateway: failed to sign published entry`)
			return nil
		}
		a.entries[entry.Key] = storedEntry{value: entry.Value, signature: resp.Data}
		return nil
	})
	// Publish itself is one-way: there is nothing to respond to the
	// original caller with. The signature is attached asynchronously once
	// the keystore answers.
	return err
}

func (a *Actor[S]) handleGetEntry(state *S, key string, msg *chan2.IncomingMessage[Message, Response]) error {
	if e, ok := a.entries[key]; ok {
		return msg.Respond(Response{Found: true, Value: e.value, Signature: e.signature}, nil)
	}

	_, err := a.dht.Request(dhtactor.Request{PeerID: a.peerID, Key: key}, func(state *S, data tracker.CallbackData[dhtactor.Response]) error {
		if data.IsTimeout() {
			return msg.Respond(Response{}, ErrNotFound)
		}
		resp, respErr, _ := data.Response()
		if errors.Is(respErr, dhtactor.ErrPeerUnreachable) {
			return msg.Respond(Response{}, ErrNotFound)
		}
		if respErr != nil {
			return msg.Respond(Response{}, respErr)
		}
		if !resp.Found {
			return msg.Respond(Response{}, ErrNotFound)
		}
		return msg.Respond(Response{Found: true, Value: resp.Value}, nil)
	})
	return err
}

func mustResponse(data tracker.CallbackData[keystoreactor.Response]) (keystoreactor.Response, error) {
	v, err, _ := data.Response()
	return v, err
}
