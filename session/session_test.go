package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aronia-net/aronia/frame"
	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/transport/memswarm"
)

func testPair(t *testing.T) (*identity.KeyPair, *identity.KeyPair, *memswarm.Swarm, *memswarm.Swarm) {
	t.Helper()
	net := memswarm.NewNetwork()
	kpA, err := identity.Generate()
	require.NoError(t, err)
	kpB, err := identity.Generate()
	require.NoError(t, err)

	swA := memswarm.New(net, kpA)
	swB := memswarm.New(net, kpB)
	topic := [32]byte{42}
	require.NoError(t, swA.Join(context.Background(), topic, true, true))
	require.NoError(t, swB.Join(context.Background(), topic, true, true))
	return kpA, kpB, swA, swB
}

func TestSessionHandshakeAndCapabilities(t *testing.T) {
	kpA, kpB, swA, swB := testPair(t)

	connA := <-swA.Connections()
	connB := <-swB.Connections()

	var gotCapsA, gotCapsB frame.Capabilities
	doneA := make(chan struct{}, 1)
	doneB := make(chan struct{}, 1)

	sa := New(kpA, connA.Stream, DefaultConfig(), Handlers{
		OnCapabilities: func(_ identity.PublicKey, c frame.Capabilities) { gotCapsA = c; doneA <- struct{}{} },
	})
	sb := New(kpB, connB.Stream, DefaultConfig(), Handlers{
		OnCapabilities: func(_ identity.PublicKey, c frame.Capabilities) { gotCapsB = c; doneB <- struct{}{} },
	})

	require.NoError(t, sa.Start())
	require.NoError(t, sb.Start())

	select {
	case <-doneA:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for A's capabilities event")
	}
	select {
	case <-doneB:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for B's capabilities event")
	}

	assert.Equal(t, "aronia", gotCapsA.Agent)
	assert.Equal(t, "0.1.0", gotCapsA.Version)
	assert.Equal(t, "aronia", gotCapsB.Agent)
}

func TestSessionRequestResponse(t *testing.T) {
	kpA, kpB, swA, swB := testPair(t)
	connA := <-swA.Connections()
	connB := <-swB.Connections()

	sa := New(kpA, connA.Stream, DefaultConfig(), Handlers{})
	sb := New(kpB, connB.Stream, DefaultConfig(), Handlers{
		OnRequest: func(_ identity.PublicKey, method string, params []byte) (interface{}, *frame.ResponseError) {
			if method != "echo" {
				return nil, &frame.ResponseError{Code: frame.ErrCodeMethodNotFound, Message: method}
			}
			return map[string]int{"n": 7}, nil
		},
	})
	require.NoError(t, sa.Start())
	require.NoError(t, sb.Start())

	result, err := sa.Request("echo", map[string]int{"n": 7}, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":7}`, string(result))
}

func TestSessionRequestTimeout(t *testing.T) {
	kpA, kpB, swA, swB := testPair(t)
	connA := <-swA.Connections()
	connB := <-swB.Connections()

	sa := New(kpA, connA.Stream, DefaultConfig(), Handlers{})
	sb := New(kpB, connB.Stream, DefaultConfig(), Handlers{
		OnRequest: func(_ identity.PublicKey, method string, params []byte) (interface{}, *frame.ResponseError) {
			time.Sleep(500 * time.Millisecond)
			return map[string]bool{"ok": true}, nil
		},
	})
	require.NoError(t, sa.Start())
	require.NoError(t, sb.Start())

	_, err := sa.Request("sleep", nil, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestSessionDestroyFailsPendingRequests(t *testing.T) {
	kpA, _, swA, swB := testPair(t)
	connA := <-swA.Connections()
	_ = <-swB.Connections()

	sa := New(kpA, connA.Stream, DefaultConfig(), Handlers{})
	require.NoError(t, sa.Start())

	errCh := make(chan error, 1)
	go func() {
		_, err := sa.Request("never-answered", nil, 5*time.Second)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	sa.Destroy()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("request did not fail after session destroy")
	}
}

// A frame signed by a key other than the session's expected remote is
// dropped with a protocol error; the session itself stays up.
func TestSessionDropsFrameFromWrongSender(t *testing.T) {
	kpA, kpB, swA, swB := testPair(t)
	connA := <-swA.Connections()
	connB := <-swB.Connections()

	kpC, err := identity.Generate()
	require.NoError(t, err)

	protoErrs := make(chan error, 1)
	sa := New(kpA, connA.Stream, DefaultConfig(), Handlers{
		OnProtocolError: func(_ identity.PublicKey, err error) {
			select {
			case protoErrs <- err:
			default:
			}
		},
	})
	sb := New(kpB, connB.Stream, DefaultConfig(), Handlers{})
	require.NoError(t, sa.Start())
	require.NoError(t, sb.Start())

	// Inject a frame signed by a third party directly onto B's side of the
	// transport; A's session expects every frame to come from B's key.
	forged := frame.Sign(kpC, frame.TypeEvent, 0, []byte(`{"x":1}`))
	_, err = connB.Stream.Write(frame.Serialize(forged))
	require.NoError(t, err)

	select {
	case <-protoErrs:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a protocol error for the forged sender")
	}
	assert.Equal(t, StateActive, sa.State())
}
