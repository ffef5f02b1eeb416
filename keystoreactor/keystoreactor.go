// Package keystoreactor is a leaf actor that holds key material behind a
// securebuf.Buffer and answers Sign/Seal requests over its channel. It
// exercises securebuf end to end from outside the core package, and gives
// the detach-cell idiom a second, independent caller.
package keystoreactor

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/holochain/lib3h-core/actor"
	"github.com/holochain/lib3h-core/chan2"
	"github.com/holochain/lib3h-core/corelog"
	"github.com/holochain/lib3h-core/detach"
	"github.com/holochain/lib3h-core/securebuf"
)

// Operation identifies which keyed operation a Request asks for.
type Operation int

const (
	// OpSign computes an HMAC-SHA256 tag over Data, keyed by the actor's
	// held secret. Standard library crypto/hmac is used deliberately:
	// designing a signature scheme is explicitly out of scope, and there's
	// no third-party signing primitive wired into this module to reuse.
	OpSign Operation = iota
	// OpSeal XORs Data with a keystream derived from the held secret. A
	// placeholder "sealing" operation standing in for real AEAD sealing,
	// which is out of scope for the same reason as OpSign.
	OpSeal
)

func (o Operation) String() string {
	switch o {
	case OpSign:
		return "sign"
	case OpSeal:
		return "seal"
	default:
		return fmt.Sprintf("keystoreactor.Operation(%d)", int(o))
	}
}

// Request asks the keystore to perform Op over Data.
type Request struct {
	Op   Operation
	Data []byte
}

// Response carries the result of a Request.
type Response struct {
	Data []byte
}

// ChildEndpoint is the channel type between a keystoreactor and its parent,
// from the child's own point of view.
type ChildEndpoint[S any] = actor.ChildEndpoint[S, Request, Response, struct{}, struct{}]

// Actor is a keystoreactor instance. It implements actor.Actor[S, Request,
// Response, struct{}, struct{}]: ToParent/ToParentResp are struct{} because
// a keystore never initiates messages to its parent.
type Actor[S any] struct {
	key         *securebuf.Buffer
	parentEP    *chan2.Endpoint[S, Request, Response, struct{}, struct{}]
	parentTaken bool
	child       detach.Cell[ChildEndpoint[S]]
}

// New constructs a keystoreactor holding a copy of secret in a locked
// securebuf.Buffer. secret is not retained by the caller's slice; New copies
// it into the buffer's own storage.
func New[S any](secret []byte) (*Actor[S], error) {
	buf, err := securebuf.New(len(secret))
	if err != nil {
		return nil, fmt.Errorf("keystoreactor: allocate key buffer: %w", err)
	}
	if err := buf.CopyFrom(secret); err != nil {
		buf.Release()
		return nil, fmt.Errorf("keystoreactor: seed key buffer: %w", err)
	}

	parent, child := chan2.New[S, Request, Response, struct{}, struct{}]("keystore_parent_", "keystore_child_")
	return &Actor[S]{
		key:      buf,
		parentEP: parent,
		child:    detach.New[ChildEndpoint[S]](child),
	}, nil
}

// TakeParentEndpoint implements actor.Actor.
func (a *Actor[S]) TakeParentEndpoint() (*chan2.Endpoint[S, Request, Response, struct{}, struct{}], bool) {
	if a.parentTaken {
		return nil, false
	}
	a.parentTaken = true
	return a.parentEP, true
}

// Process implements actor.Actor.
func (a *Actor[S]) Process(state *S) (bool, error) {
	return actor.DriveChild(&a.child, state, a.handle)
}

func (a *Actor[S]) handle(state *S, msg *chan2.IncomingMessage[Request, Response]) error {
	req := msg.TakePayload()

	var (
		out []byte
		err error
	)
	switch req.Op {
	case OpSign:
		out, err = a.sign(req.Data)
	case OpSeal:
		out, err = a.seal(req.Data)
	default:
		err = fmt.Errorf("keystoreactor: unknown operation %v", req.Op)
	}

	if err != nil {
		corelog.L().Err().Err(err).Str(`op`, req.Op.String()).Log(`keystoreactor: request failed`)
		return msg.Respond(Response{}, err)
	}
	return msg.Respond(Response{Data: out}, nil)
}

func (a *Actor[S]) sign(data []byte) ([]byte, error) {
	var tag []byte
	err := a.key.View(func(key []byte) error {
		mac := hmac.New(sha256.New, key)
		mac.Write(data)
		tag = mac.Sum(nil)
		return nil
	})
	return tag, err
}

func (a *Actor[S]) seal(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	err := a.key.View(func(key []byte) error {
		if len(key) == 0 {
			copy(out, data)
			return nil
		}
		for i, b := range data {
			out[i] = b ^ key[i%len(key)]
		}
		return nil
	})
	return out, err
}

// Release releases the underlying key buffer. The actor must not be used
// afterward.
func (a *Actor[S]) Release() {
	a.key.Release()
}
