package actor_test

import (
	"testing"

	"github.com/holochain/lib3h-core/actor"
	"github.com/holochain/lib3h-core/chan2"
	"github.com/holochain/lib3h-core/detach"
	"github.com/holochain/lib3h-core/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appState struct {
	echoed []string
}

// echoActor is a minimal Actor: every request it receives from its parent
// is echoed back as the response payload.
type echoActor struct {
	parentTaken bool
	parentEP    *chan2.Endpoint[appState, string, string, string, string]
	child       detach.Cell[actor.ChildEndpoint[appState, string, string, string, string]]
}

func newEchoActor() *echoActor {
	parent, child := chan2.New[appState, string, string, string, string]("parent_", "child_")
	a := &echoActor{parentEP: parent}
	a.child = detach.New(child)
	return a
}

func (a *echoActor) TakeParentEndpoint() (*chan2.Endpoint[appState, string, string, string, string], bool) {
	if a.parentTaken {
		return nil, false
	}
	a.parentTaken = true
	return a.parentEP, true
}

func (a *echoActor) Process(state *appState) (bool, error) {
	return actor.DriveChild(&a.child, state, func(state *appState, msg *chan2.IncomingMessage[string, string]) error {
		payload := msg.TakePayload()
		state.echoed = append(state.echoed, payload)
		return msg.Respond(payload, nil)
	})
}

func TestParentWrapperRoundTrip(t *testing.T) {
	w, err := actor.NewParentWrapper[appState, string, string, string, string](newEchoActor())
	require.NoError(t, err)

	var got string
	_, err = w.Request("hello", func(s *appState, data tracker.CallbackData[string]) error {
		v, _, _ := data.Response()
		got = v
		return nil
	})
	require.NoError(t, err)

	state := &appState{}
	workDone, err := w.Process(state)
	require.NoError(t, err)
	assert.True(t, workDone)
	assert.Equal(t, "hello", got)
	assert.Equal(t, []string{"hello"}, state.echoed)
}

func TestTakeParentEndpointOnlyOnce(t *testing.T) {
	a := newEchoActor()
	_, ok := a.TakeParentEndpoint()
	require.True(t, ok)
	_, ok = a.TakeParentEndpoint()
	require.False(t, ok)

	_, err := actor.NewParentWrapper[appState, string, string, string, string](a)
	assert.ErrorIs(t, err, actor.ErrAlreadyTaken)
}

func TestPublishToChildLeavesNothingForParentToDrain(t *testing.T) {
	a := newEchoActor()
	w, err := actor.NewParentWrapper[appState, string, string, string, string](a)
	require.NoError(t, err)

	require.NoError(t, w.Publish("ignored-direction-check"))

	state := &appState{}
	_, err = w.Process(state)
	require.NoError(t, err)

	// The publish above went parent -> child as a one-way event; the child
	// actor drained it, and its Respond on an event is a no-op, so nothing
	// travels back. Nothing should be waiting here.
	assert.Empty(t, w.DrainMessages())
}
