package keystoreactor_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"testing"

	"github.com/holochain/lib3h-core/actor"
	"github.com/holochain/lib3h-core/keystoreactor"
	"github.com/holochain/lib3h-core/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appState struct{}

func TestSignRoundTrip(t *testing.T) {
	a, err := keystoreactor.New[appState]([]byte("super-secret-key"))
	require.NoError(t, err)
	defer a.Release()

	w, err := actor.NewParentWrapper[appState, keystoreactor.Request, keystoreactor.Response, struct{}, struct{}](a)
	require.NoError(t, err)

	var got keystoreactor.Response
	var gotErr error
	_, err = w.Request(keystoreactor.Request{Op: keystoreactor.OpSign, Data: []byte("hello")}, func(s *appState, data tracker.CallbackData[keystoreactor.Response]) error {
		got, gotErr, _ = data.Response()
		return nil
	})
	require.NoError(t, err)

	state := &appState{}
	_, err = w.Process(state)
	require.NoError(t, err)
	require.NoError(t, gotErr)

	mac := hmac.New(sha256.New, []byte("super-secret-key"))
	mac.Write([]byte("hello"))
	assert.Equal(t, mac.Sum(nil), got.Data)
}

func TestSealIsInvolution(t *testing.T) {
	a, err := keystoreactor.New[appState]([]byte("k"))
	require.NoError(t, err)
	defer a.Release()

	w, err := actor.NewParentWrapper[appState, keystoreactor.Request, keystoreactor.Response, struct{}, struct{}](a)
	require.NoError(t, err)

	var sealed keystoreactor.Response
	_, err = w.Request(keystoreactor.Request{Op: keystoreactor.OpSeal, Data: []byte("plaintext")}, func(s *appState, data tracker.CallbackData[keystoreactor.Response]) error {
		sealed, _, _ = data.Response()
		return nil
	})
	require.NoError(t, err)
	state := &appState{}
	_, err = w.Process(state)
	require.NoError(t, err)
	assert.NotEqual(t, []byte("plaintext"), sealed.Data)

	var unsealed keystoreactor.Response
	_, err = w.Request(keystoreactor.Request{Op: keystoreactor.OpSeal, Data: sealed.Data}, func(s *appState, data tracker.CallbackData[keystoreactor.Response]) error {
		unsealed, _, _ = data.Response()
		return nil
	})
	require.NoError(t, err)
	_, err = w.Process(state)
	require.NoError(t, err)
	assert.Equal(t, []byte("plaintext"), unsealed.Data)
}

func TestUnknownOperationErrors(t *testing.T) {
	a, err := keystoreactor.New[appState]([]byte("k"))
	require.NoError(t, err)
	defer a.Release()

	w, err := actor.NewParentWrapper[appState, keystoreactor.Request, keystoreactor.Response, struct{}, struct{}](a)
	require.NoError(t, err)

	var gotErr error
	_, err = w.Request(keystoreactor.Request{Op: keystoreactor.Operation(99)}, func(s *appState, data tracker.CallbackData[keystoreactor.Response]) error {
		_, gotErr, _ = data.Response()
		return nil
	})
	require.NoError(t, err)
	state := &appState{}
	_, err = w.Process(state)
	require.NoError(t, err)
	assert.Error(t, gotErr)
}
