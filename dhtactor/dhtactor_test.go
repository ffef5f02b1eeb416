package dhtactor_test

import (
	"testing"
	"time"

	"github.com/holochain/lib3h-core/actor"
	"github.com/holochain/lib3h-core/dhtactor"
	"github.com/holochain/lib3h-core/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appState struct{}

func newWrapper(t *testing.T, opts ...dhtactor.Option) *actor.ParentWrapper[appState, dhtactor.Request, dhtactor.Response, struct{}, struct{}] {
	t.Helper()
	w, err := actor.NewParentWrapper[appState, dhtactor.Request, dhtactor.Response, struct{}, struct{}](dhtactor.New[appState](opts...))
	require.NoError(t, err)
	return w
}

func TestQueryTimesOutWhenUnanswered(t *testing.T) {
	w := newWrapper(t, dhtactor.WithQueryTimeout(10*time.Millisecond))

	var gotErr error
	_, err := w.Request(dhtactor.Request{PeerID: "peer1", Key: "k"}, func(s *appState, data tracker.CallbackData[dhtactor.Response]) error {
		_, gotErr, _ = data.Response()
		return nil
	})
	require.NoError(t, err)

	state := &appState{}
	deadline := time.Now().Add(time.Second)
	for gotErr == nil && time.Now().Before(deadline) {
		_, err := w.Process(state)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	assert.ErrorIs(t, gotErr, dhtactor.ErrPeerUnreachable)
}

func TestRateLimiterRejectsExcessQueries(t *testing.T) {
	w := newWrapper(t, dhtactor.WithRates(map[time.Duration]int{time.Second: 1}), dhtactor.WithQueryTimeout(time.Hour))

	fired := make([]bool, 3)
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		i := i
		_, err := w.Request(dhtactor.Request{PeerID: "peer1", Key: "k"}, func(s *appState, data tracker.CallbackData[dhtactor.Response]) error {
			fired[i] = true
			_, errs[i], _ = data.Response()
			return nil
		})
		require.NoError(t, err)
	}

	state := &appState{}
	_, err := w.Process(state)
	require.NoError(t, err)

	// The first query is allowed by the limiter and, with a one-hour
	// timeout, never fires its callback within this test. The second and
	// third are rejected locally and respond immediately.
	assert.False(t, fired[0])
	assert.True(t, fired[1])
	assert.True(t, fired[2])
	assert.ErrorIs(t, errs[1], dhtactor.ErrRateLimited)
	assert.ErrorIs(t, errs[2], dhtactor.ErrRateLimited)
}
