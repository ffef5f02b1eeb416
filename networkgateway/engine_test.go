package networkgateway_test

import (
	"testing"
	"time"

	"github.com/holochain/lib3h-core/networkgateway"
	"github.com/holochain/lib3h-core/spacegateway"
	"github.com/holochain/lib3h-core/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appState struct{}

func TestJoinSpacePublishAndGet(t *testing.T) {
	e, err := networkgateway.New[appState]()
	require.NoError(t, err)

	require.NoError(t, e.JoinSpace("space1", "node1", []byte("key")))
	assert.Error(t, e.JoinSpace("space1", "node1", []byte("key")))

	w, ok := e.Space("space1")
	require.True(t, ok)

	require.NoError(t, w.Publish(spacegateway.Message{Publish: &spacegateway.Entry{Key: "k", Value: []byte("v")}}))

	state := &appState{}
	stopAfter := 4
	calls := 0
	e.Run(state, func() bool {
		calls++
		return calls > stopAfter
	})

	var got spacegateway.Response
	var gotErr error
	_, err = w.Request(spacegateway.Message{GetKey: "k"}, func(s *appState, data tracker.CallbackData[spacegateway.Response]) error {
		got, gotErr, _ = data.Response()
		return nil
	})
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for gotErr == nil && !got.Found && time.Now().Before(deadline) {
		_, err := e.Process(state)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	require.NoError(t, gotErr)
	assert.True(t, got.Found)
	assert.Equal(t, []byte("v"), got.Value)
}

func TestLeaveSpaceRemovesIt(t *testing.T) {
	e, err := networkgateway.New[appState]()
	require.NoError(t, err)
	require.NoError(t, e.JoinSpace("space1", "node1", []byte("key")))

	e.LeaveSpace("space1")
	_, ok := e.Space("space1")
	assert.False(t, ok)
}
