// Package networkgateway implements the top-level actor: it owns one
// spacegateway per joined space plus a dhtactor for the top-level network
// DHT, and is itself driven by a scheduler.Scheduler. This is the
// integration-glue component tying the core framework (actor, scheduler,
// chan2, tracker) to the domain actors built on top of it.
package networkgateway

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holochain/lib3h-core/actor"
	"github.com/holochain/lib3h-core/corelog"
	"github.com/holochain/lib3h-core/dhtactor"
	"github.com/holochain/lib3h-core/scheduler"
	"github.com/holochain/lib3h-core/spacegateway"
)

type spaceWrapper[S any] = actor.ParentWrapper[S, spacegateway.Message, spacegateway.Response, struct{}, struct{}]

// Engine owns the top-level network DHT and every joined space, and drives
// them all from a single scheduler.Scheduler.
type Engine[S any] struct {
	mu     sync.Mutex
	netDHT *actor.ParentWrapper[S, dhtactor.Request, dhtactor.Response, struct{}, struct{}]
	spaces map[string]*spaceWrapper[S]

	sched      *scheduler.Scheduler
	enq        scheduler.Enqueuer
	registered bool
}

// New constructs an Engine with a fresh top-level network dhtactor and no
// joined spaces.
func New[S any](dhtOpts ...dhtactor.Option) (*Engine[S], error) {
	netDHT, err := actor.NewParentWrapper[S, dhtactor.Request, dhtactor.Response, struct{}, struct{}](dhtactor.New[S](dhtOpts...))
	if err != nil {
		return nil, fmt.Errorf("networkgateway: construct network dht: %w", err)
	}

	sched, enq := scheduler.New()
	return &Engine[S]{
		netDHT: netDHT,
		spaces: make(map[string]*spaceWrapper[S]),
		sched:  sched,
		enq:    enq,
	}, nil
}

// JoinSpace constructs a new spacegateway for spaceID and registers it with
// this engine. Returns an error if spaceID is already joined.
func (e *Engine[S]) JoinSpace(spaceID, peerID string, signingKey []byte, dhtOpts ...dhtactor.Option) error {
	sg, err := spacegateway.New[S](peerID, signingKey, dhtOpts...)
	if err != nil {
		return fmt.Errorf("networkgateway: construct space %q: %w", spaceID, err)
	}
	w, err := actor.NewParentWrapper[S, spacegateway.Message, spacegateway.Response, struct{}, struct{}](sg)
	if err != nil {
		return fmt.Errorf("networkgateway: wrap space %q: %w", spaceID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.spaces[spaceID]; exists {
		return fmt.Errorf("networkgateway: space %q already joined", spaceID)
	}
	e.spaces[spaceID] = w
	corelog.L().Info().Str(`space`, spaceID).Str(`peer`, peerID).Log(`networkgateway: joined space`)
	return nil
}

// LeaveSpace retires a previously joined space. A no-op if spaceID was
// never joined.
func (e *Engine[S]) LeaveSpace(spaceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.spaces, spaceID)
}

// Space returns the wrapper for a joined space, for sending it requests
// directly.
func (e *Engine[S]) Space(spaceID string) (*spaceWrapper[S], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.spaces[spaceID]
	return w, ok
}

// Process drives the top-level network dht and every joined space once.
func (e *Engine[S]) Process(state *S) (bool, error) {
	e.mu.Lock()
	spaces := make([]*spaceWrapper[S], 0, len(e.spaces))
	for _, w := range e.spaces {
		spaces = append(spaces, w)
	}
	e.mu.Unlock()

	workDone, netErr := e.netDHT.Process(state)

	var errs []error
	if netErr != nil {
		errs = append(errs, netErr)
	}
	for _, w := range spaces {
		work, err := w.Process(state)
		workDone = workDone || work
		if err != nil {
			errs = append(errs, err)
		}
	}
	return workDone, errors.Join(errs...)
}

// Run registers this engine's Process with its scheduler.Scheduler (once,
// on the first call), and sweeps that scheduler until stop reports true.
// Run must not be called concurrently with itself, matching the
// scheduler's single-threaded cooperative contract.
func (e *Engine[S]) Run(state *S, stop func() bool) (sweeps int) {
	if !e.registered {
		e.registered = true
		e.enq.Enqueue(func() bool {
			if _, err := e.Process(state); err != nil {
				corelog.L().Err().Err(err).Log(`networkgateway: process error`)
			}
			return true
		})
	}
	return e.sched.Run(stop)
}

// Scheduler returns the engine's scheduler, e.g. so callers can enqueue
// additional top-level process functions alongside the engine's own.
func (e *Engine[S]) Scheduler() *scheduler.Scheduler {
	return e.sched
}
