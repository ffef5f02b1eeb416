package spacegateway_test

import (
	"testing"
	"time"

	"github.com/holochain/lib3h-core/actor"
	"github.com/holochain/lib3h-core/dhtactor"
	"github.com/holochain/lib3h-core/spacegateway"
	"github.com/holochain/lib3h-core/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appState struct{}

func newWrapper(t *testing.T) (*actor.ParentWrapper[appState, spacegateway.Message, spacegateway.Response, struct{}, struct{}], *appState) {
	t.Helper()
	a, err := spacegateway.New[appState]("node1", []byte("space-key"), dhtactor.WithQueryTimeout(20*time.Millisecond))
	require.NoError(t, err)
	w, err := actor.NewParentWrapper[appState, spacegateway.Message, spacegateway.Response, struct{}, struct{}](a)
	require.NoError(t, err)
	return w, &appState{}
}

func pump(t *testing.T, w *actor.ParentWrapper[appState, spacegateway.Message, spacegateway.Response, struct{}, struct{}], state *appState, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := w.Process(state)
		require.NoError(t, err)
	}
}

func TestPublishThenGetEntryReturnsSignedValue(t *testing.T) {
	w, state := newWrapper(t)

	require.NoError(t, w.Publish(spacegateway.Message{Publish: &spacegateway.Entry{Key: "k1", Value: []byte("v1")}}))
	pump(t, w, state, 3) // publish -> keystore sign -> stored

	var got spacegateway.Response
	var gotErr error
	_, err := w.Request(spacegateway.Message{GetKey: "k1"}, func(s *appState, data tracker.CallbackData[spacegateway.Response]) error {
		got, gotErr, _ = data.Response()
		return nil
	})
	require.NoError(t, err)
	pump(t, w, state, 2)

	require.NoError(t, gotErr)
	assert.True(t, got.Found)
	assert.Equal(t, []byte("v1"), got.Value)
	assert.NotEmpty(t, got.Signature)
}

func TestGetEntryFallsBackToDHTAndTimesOut(t *testing.T) {
	w, state := newWrapper(t)

	var gotErr error
	_, err := w.Request(spacegateway.Message{GetKey: "missing"}, func(s *appState, data tracker.CallbackData[spacegateway.Response]) error {
		_, gotErr, _ = data.Response()
		return nil
	})
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for gotErr == nil && time.Now().Before(deadline) {
		pump(t, w, state, 1)
		time.Sleep(10 * time.Millisecond)
	}

	assert.ErrorIs(t, gotErr, spacegateway.ErrNotFound)
}
