// Package dhtactor is a placeholder DHT peer-discovery actor: the gossip
// algorithm itself is out of scope, but the shape of "rate-limit outbound
// peer queries, time them out if nobody answers" is real and exercises both
// go-catrate and a second, independent tracker.Tracker instance.
package dhtactor

import (
	"errors"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/holochain/lib3h-core/actor"
	"github.com/holochain/lib3h-core/chan2"
	"github.com/holochain/lib3h-core/corelog"
	"github.com/holochain/lib3h-core/detach"
	"github.com/holochain/lib3h-core/tracker"
)

// ErrRateLimited is returned (as the response error) when a peer query is
// rejected locally because it would exceed the configured query rate.
var ErrRateLimited = errors.New("dhtactor: peer query rate limit exceeded")

// ErrPeerUnreachable is returned (as the response error) when a peer query
// goes unanswered until its tracked timeout elapses.
var ErrPeerUnreachable = errors.New("dhtactor: peer query timed out")

// Request asks the DHT actor to look up Key on the peer identified by
// PeerID.
type Request struct {
	PeerID string
	Key    string
}

// Response carries the looked-up value, if found.
type Response struct {
	Found bool
	Value []byte
}

// ChildEndpoint is the channel type between a dhtactor and its parent, from
// the child's own point of view.
type ChildEndpoint[S any] = actor.ChildEndpoint[S, Request, Response, struct{}, struct{}]

// Option configures an Actor at construction time.
type Option func(*options)

type options struct {
	rates       map[time.Duration]int
	queryTimeout time.Duration
}

// WithRates sets the sliding-window rate limits applied per peer id, in the
// shape go-catrate's NewLimiter expects. Defaults to 5 queries/second and
// 60/minute if unset.
func WithRates(rates map[time.Duration]int) Option {
	return func(o *options) { o.rates = rates }
}

// WithQueryTimeout overrides how long an outbound query waits for a
// response before the actor reports ErrPeerUnreachable. Defaults to 10s.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) { o.queryTimeout = d }
}

// Actor is a dhtactor instance. ToParent/ToParentResp are struct{} because
// this placeholder never initiates messages toward its own parent; a real
// implementation would use them to surface gossip events.
type Actor[S any] struct {
	limiter     *catrate.Limiter
	queryTracker *tracker.Tracker[S]

	parentEP    *chan2.Endpoint[S, Request, Response, struct{}, struct{}]
	parentTaken bool
	child       detach.Cell[ChildEndpoint[S]]
}

// New constructs a dhtactor.
func New[S any](opts ...Option) *Actor[S] {
	o := options{
		rates: map[time.Duration]int{
			time.Second: 5,
			time.Minute: 60,
		},
		queryTimeout: 10 * time.Second,
	}
	for _, apply := range opts {
		apply(&o)
	}

	parent, child := chan2.New[S, Request, Response, struct{}, struct{}]("dht_parent_", "dht_child_")
	return &Actor[S]{
		limiter: catrate.NewLimiter(o.rates),
		queryTracker: tracker.NewBuilder[S]().
			RequestIDPrefix("dht_query_").
			DefaultTimeout(o.queryTimeout).
			Build(),
		parentEP: parent,
		child:    detach.New[ChildEndpoint[S]](child),
	}
}

// TakeParentEndpoint implements actor.Actor.
func (a *Actor[S]) TakeParentEndpoint() (*chan2.Endpoint[S, Request, Response, struct{}, struct{}], bool) {
	if a.parentTaken {
		return nil, false
	}
	a.parentTaken = true
	return a.parentEP, true
}

// Process implements actor.Actor: drives the channel (dispatching each
// inbound Request to issueQuery), then sweeps the internal query tracker so
// unanswered queries time out.
func (a *Actor[S]) Process(state *S) (bool, error) {
	chanWork, chanErr := actor.DriveChild(&a.child, state, a.issueQuery)
	sweepWork, sweepErr := a.queryTracker.Process(state)
	return chanWork || sweepWork, errors.Join(chanErr, sweepErr)
}

func (a *Actor[S]) issueQuery(state *S, msg *chan2.IncomingMessage[Request, Response]) error {
	req := msg.TakePayload()

	if _, ok := a.limiter.Allow(req.PeerID); !ok {
		corelog.L().Debug().Str(`peer`, req.PeerID).Log(`dhtactor: query rejected by rate limiter`)
		return msg.Respond(Response{}, ErrRateLimited)
	}

	tracker.Bookmark(a.queryTracker, func(state *S, data tracker.CallbackData[Response]) error {
		if data.IsTimeout() {
			corelog.L().Debug().Str(`peer`, req.PeerID).Str(`key`, req.Key).Log(`dhtactor: peer query timed out`)
			return msg.Respond(Response{}, ErrPeerUnreachable)
		}
		v, e, _ := data.Response()
		return msg.Respond(v, e)
	})
	return nil
}

// PendingQueries returns the ids of peer queries still awaiting a response
// (or timeout). Exposed for tests and diagnostics.
func (a *Actor[S]) PendingQueries() []tracker.RequestID {
	return a.queryTracker.Pending()
}
