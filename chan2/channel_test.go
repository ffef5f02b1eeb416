package chan2_test

import (
	"errors"
	"testing"

	"github.com/holochain/lib3h-core/chan2"
	"github.com/holochain/lib3h-core/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appState struct {
	received []string
}

func newTestChannel() (
	a *chan2.Endpoint[appState, string, string, string, string],
	b *chan2.Endpoint[appState, string, string, string, string],
) {
	return chan2.New[appState, string, string, string, string]("a_", "b_")
}

func TestRoundTripRequestResponse(t *testing.T) {
	// S3: round-trip request/response.
	a, b := newTestChannel()

	var gotResponse string
	_, err := a.Request("ping", func(s *appState, data tracker.CallbackData[string]) error {
		v, _, _ := data.Response()
		gotResponse = v
		return nil
	})
	require.NoError(t, err)

	sb := &appState{}
	_, err = b.Process(sb)
	require.NoError(t, err)

	msgs := b.DrainMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ping", msgs[0].TakePayload())

	require.NoError(t, msgs[0].Respond("pong", nil))

	sa := &appState{}
	_, err = a.Process(sa)
	require.NoError(t, err)
	assert.Equal(t, "pong", gotResponse)
}

func TestOneWayEvent(t *testing.T) {
	// S4: one-way event.
	a, b := newTestChannel()

	require.NoError(t, a.Publish("note"))

	sb := &appState{}
	_, err := b.Process(sb)
	require.NoError(t, err)

	msgs := b.DrainMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "note", msgs[0].TakePayload())

	// Respond on an event is a no-op, and fires no callback on a.
	require.NoError(t, msgs[0].Respond("ignored", nil))

	sa := &appState{}
	workDone, err := a.Process(sa)
	require.NoError(t, err)
	assert.False(t, workDone)
}

func TestFIFOOrderingOneDirection(t *testing.T) {
	// P3: publish order is preserved in one direction.
	a, b := newTestChannel()
	for i := 0; i < 10; i++ {
		require.NoError(t, a.Publish(string(rune('a'+i))))
	}

	sb := &appState{}
	_, err := b.Process(sb)
	require.NoError(t, err)
	msgs := b.DrainMessages()
	require.Len(t, msgs, 10)
	for i, m := range msgs {
		assert.Equal(t, string(rune('a'+i)), m.TakePayload())
	}
}

func TestOnlyMatchingCallbackFires(t *testing.T) {
	// P4: the callback for request x fires with the matching response, and
	// no other callback fires for x.
	a, b := newTestChannel()

	var firedFor1, firedFor2 string
	id1, err := a.Request("one", func(s *appState, data tracker.CallbackData[string]) error {
		v, _, _ := data.Response()
		firedFor1 = v
		return nil
	})
	require.NoError(t, err)
	_, err = a.Request("two", func(s *appState, data tracker.CallbackData[string]) error {
		v, _, _ := data.Response()
		firedFor2 = v
		return nil
	})
	require.NoError(t, err)

	sb := &appState{}
	_, err = b.Process(sb)
	require.NoError(t, err)
	msgs := b.DrainMessages()
	require.Len(t, msgs, 2)

	for _, m := range msgs {
		if p := m.TakePayload(); p == "one" {
			require.NoError(t, m.Respond("resp-one", nil))
		}
	}
	_ = id1

	sa := &appState{}
	_, err = a.Process(sa)
	require.NoError(t, err)
	assert.Equal(t, "resp-one", firedFor1)
	assert.Equal(t, "", firedFor2)
}

func TestDisconnectAfterCloseFailsSend(t *testing.T) {
	a, b := newTestChannel()
	b.Close()

	err := a.Publish("hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chan2.ErrDisconnected))

	_, err = a.Request("hi", func(*appState, tracker.CallbackData[string]) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, chan2.ErrDisconnected))
}

func TestResponseErrorIsDeliveredToCallback(t *testing.T) {
	a, b := newTestChannel()

	var gotErr error
	_, err := a.Request("q", func(s *appState, data tracker.CallbackData[string]) error {
		_, e, _ := data.Response()
		gotErr = e
		return nil
	})
	require.NoError(t, err)

	sb := &appState{}
	_, err = b.Process(sb)
	require.NoError(t, err)
	msgs := b.DrainMessages()
	require.Len(t, msgs, 1)
	require.NoError(t, msgs[0].Respond("", errors.New("denied")))

	sa := &appState{}
	_, err = a.Process(sa)
	require.NoError(t, err)
	require.EqualError(t, gotErr, "denied")
}
