package node

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aronia-net/aronia/config"
	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/internal/metrics"
	"github.com/aronia-net/aronia/transport/memswarm"
)

func testConfig() *config.NodeConfig {
	return &config.NodeConfig{
		Topic: "aronia-test",
		Timing: config.TimingConfig{
			HeartbeatInterval:     50 * time.Millisecond,
			HeartbeatTimeout:      200 * time.Millisecond,
			DefaultRequestTimeout: time.Second,
			IntroductionMaxAge:    24 * time.Hour,
			MaxTrustDepth:         3,
		},
	}
}

// newTestNode builds a Node whose swarm is a fresh memswarm.Swarm on net.
func newTestNode(t *testing.T, net *memswarm.Network, cfg *config.NodeConfig) (*Node, *identity.KeyPair) {
	t.Helper()
	kp, err := identity.Generate()
	require.NoError(t, err)
	sw := memswarm.New(net, kp)
	n := New(kp, sw, cfg, metrics.NewRegistry())
	return n, kp
}

func waitForEvent(t *testing.T, n *Node, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-n.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s", kind)
		}
	}
}

// Two mutually whitelisted nodes on one topic converge to peer:connected
// with matching capabilities on both sides.
func TestHandshakeAndCapabilities(t *testing.T) {
	net := memswarm.NewNetwork()
	cfg := testConfig()
	a, kpA := newTestNode(t, net, cfg)
	b, kpB := newTestNode(t, net, cfg)

	a.Whitelist(kpB.PublicKey())
	b.Whitelist(kpA.PublicKey())

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer a.Stop()
	defer b.Stop()

	waitForEvent(t, a, EventPeerConnected, 2*time.Second)
	waitForEvent(t, b, EventPeerConnected, 2*time.Second)

	capsA := waitForEvent(t, a, EventCapabilities, 2*time.Second)
	capsB := waitForEvent(t, b, EventCapabilities, 2*time.Second)

	assert.Equal(t, "aronia", capsA.Capabilities.Agent)
	assert.Equal(t, "0.1.0", capsA.Capabilities.Version)
	assert.Equal(t, "aronia", capsB.Capabilities.Agent)
	assert.Equal(t, "0.1.0", capsB.Capabilities.Version)
}

func TestRPCSuccess(t *testing.T) {
	net := memswarm.NewNetwork()
	cfg := testConfig()
	a, kpA := newTestNode(t, net, cfg)
	b, kpB := newTestNode(t, net, cfg)

	a.Whitelist(kpB.PublicKey())
	b.Whitelist(kpA.PublicKey())

	b.RegisterMethod("echo", func(_ identity.PublicKey, params []byte) (interface{}, error) {
		var m map[string]interface{}
		if err := json.Unmarshal(params, &m); err != nil {
			return nil, err
		}
		return m, nil
	})

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer a.Stop()
	defer b.Stop()

	waitForEvent(t, a, EventPeerConnected, 2*time.Second)

	result, err := a.Request(kpB.PublicKey(), "echo", map[string]interface{}{"n": 7}, time.Second)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(result, &got))
	assert.Equal(t, float64(7), got["n"])
}

// A slow handler fails the caller with RequestTimeout, and the late
// response is silently dropped when it eventually arrives.
func TestRPCTimeout(t *testing.T) {
	net := memswarm.NewNetwork()
	cfg := testConfig()
	a, kpA := newTestNode(t, net, cfg)
	b, kpB := newTestNode(t, net, cfg)

	a.Whitelist(kpB.PublicKey())
	b.Whitelist(kpA.PublicKey())

	b.RegisterMethod("sleep", func(_ identity.PublicKey, _ []byte) (interface{}, error) {
		time.Sleep(300 * time.Millisecond)
		return map[string]interface{}{"done": true}, nil
	})

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer a.Stop()
	defer b.Stop()

	waitForEvent(t, a, EventPeerConnected, 2*time.Second)

	_, err := a.Request(kpB.PublicKey(), "sleep", map[string]interface{}{}, 100*time.Millisecond)
	require.Error(t, err)

	time.Sleep(400 * time.Millisecond) // let the late response arrive and be dropped
}

func TestAutoAcceptIntroduction(t *testing.T) {
	net := memswarm.NewNetwork()
	cfg := testConfig()
	a, kpA := newTestNode(t, net, cfg)
	b, kpB := newTestNode(t, net, cfg)
	kpC, err := identity.Generate()
	require.NoError(t, err)

	a.Whitelist(kpB.PublicKey())
	b.Whitelist(kpA.PublicKey())
	a.SetTrust(kpB.PublicKey(), true)

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer a.Stop()
	defer b.Stop()

	waitForEvent(t, a, EventPeerConnected, 2*time.Second)
	waitForEvent(t, b, EventPeerConnected, 2*time.Second)

	require.NoError(t, b.Introduce(kpA.PublicKey(), kpC.PublicKey(), "carol", nil, "meet carol"))

	ev := waitForEvent(t, a, EventIntroductionAccepted, 2*time.Second)
	assert.Equal(t, kpC.PublicKey(), ev.IntroductionAccepted.Pubkey)
	assert.Equal(t, kpB.PublicKey(), ev.IntroductionAccepted.Introducer)

	assert.True(t, a.IsWhitelisted(kpC.PublicKey()))
}

// Destroying an active session (standing in for a severed transport)
// surfaces peer:disconnected on the node that owned it.
func TestSessionDestroySurfacesPeerDisconnected(t *testing.T) {
	net := memswarm.NewNetwork()
	cfg := testConfig()
	a, kpA := newTestNode(t, net, cfg)
	b, kpB := newTestNode(t, net, cfg)

	a.Whitelist(kpB.PublicKey())
	b.Whitelist(kpA.PublicKey())

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer a.Stop()
	defer b.Stop()

	waitForEvent(t, a, EventPeerConnected, 2*time.Second)
	waitForEvent(t, b, EventPeerConnected, 2*time.Second)

	sess, ok := a.activeSession(kpB.PublicKey())
	require.True(t, ok)
	sess.Destroy() // simulate a severed transport from A's perspective

	waitForEvent(t, a, EventPeerDisconnected, 2*time.Second)
}

// A non-whitelisted peer is rejected at admission and surfaced as
// peer:rejected rather than silently dropped.
func TestAdmissionRejectsUnknownPeer(t *testing.T) {
	net := memswarm.NewNetwork()
	cfg := testConfig()
	a, kpA := newTestNode(t, net, cfg)
	b, kpB := newTestNode(t, net, cfg)

	// Only B trusts A; A has an empty whitelist.
	b.Whitelist(kpA.PublicKey())

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer a.Stop()
	defer b.Stop()

	ev := waitForEvent(t, a, EventPeerRejected, 2*time.Second)
	assert.Equal(t, kpB.PublicKey(), ev.PeerRejected.Pubkey)
	assert.Equal(t, "not whitelisted", ev.PeerRejected.Reason)
}

// Without auto-accept trust, an introduction is held as pending and can be
// accepted manually.
func TestManualAcceptIntroduction(t *testing.T) {
	net := memswarm.NewNetwork()
	cfg := testConfig()
	a, kpA := newTestNode(t, net, cfg)
	b, kpB := newTestNode(t, net, cfg)
	kpC, err := identity.Generate()
	require.NoError(t, err)

	a.Whitelist(kpB.PublicKey())
	b.Whitelist(kpA.PublicKey())

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer a.Stop()
	defer b.Stop()

	waitForEvent(t, a, EventPeerConnected, 2*time.Second)
	waitForEvent(t, b, EventPeerConnected, 2*time.Second)

	require.NoError(t, b.Introduce(kpA.PublicKey(), kpC.PublicKey(), "carol", nil, ""))

	ev := waitForEvent(t, a, EventIntroductionReceived, 2*time.Second)
	assert.Equal(t, kpC.PublicKey().Hex(), ev.IntroductionReceived.Pubkey)
	assert.False(t, a.IsWhitelisted(kpC.PublicKey()))

	require.NoError(t, a.AcceptIntroduction(kpC.PublicKey()))
	acc := waitForEvent(t, a, EventIntroductionAccepted, 2*time.Second)
	assert.Equal(t, kpC.PublicKey(), acc.IntroductionAccepted.Pubkey)
	assert.Equal(t, kpB.PublicKey(), acc.IntroductionAccepted.Introducer)
	assert.True(t, a.IsWhitelisted(kpC.PublicKey()))
}

// A pending introduction only lives as long as its introducer's session:
// once the introducer disconnects, accepting it is no longer possible.
func TestPendingIntroductionDroppedOnIntroducerDisconnect(t *testing.T) {
	net := memswarm.NewNetwork()
	cfg := testConfig()
	a, kpA := newTestNode(t, net, cfg)
	b, kpB := newTestNode(t, net, cfg)
	kpC, err := identity.Generate()
	require.NoError(t, err)

	a.Whitelist(kpB.PublicKey())
	b.Whitelist(kpA.PublicKey())

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer a.Stop()
	defer b.Stop()

	waitForEvent(t, a, EventPeerConnected, 2*time.Second)

	require.NoError(t, b.Introduce(kpA.PublicKey(), kpC.PublicKey(), "", nil, ""))
	waitForEvent(t, a, EventIntroductionReceived, 2*time.Second)

	sess, ok := a.activeSession(kpB.PublicKey())
	require.True(t, ok)
	sess.Destroy()
	waitForEvent(t, a, EventPeerDisconnected, 2*time.Second)

	err = a.AcceptIntroduction(kpC.PublicKey())
	require.Error(t, err)
	assert.False(t, a.IsWhitelisted(kpC.PublicKey()))
}

// Revoking trust with cascade removes every peer whose trust chain runs
// through the revoked introducer.
func TestRevokeTrustCascade(t *testing.T) {
	net := memswarm.NewNetwork()
	cfg := testConfig()
	a, kpA := newTestNode(t, net, cfg)
	b, kpB := newTestNode(t, net, cfg)
	kpC, err := identity.Generate()
	require.NoError(t, err)

	a.Whitelist(kpB.PublicKey())
	b.Whitelist(kpA.PublicKey())
	a.SetTrust(kpB.PublicKey(), true)

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer a.Stop()
	defer b.Stop()

	waitForEvent(t, a, EventPeerConnected, 2*time.Second)

	require.NoError(t, b.Introduce(kpA.PublicKey(), kpC.PublicKey(), "", nil, ""))
	waitForEvent(t, a, EventIntroductionAccepted, 2*time.Second)
	require.True(t, a.IsWhitelisted(kpC.PublicKey()))

	a.RevokeTrust(kpB.PublicKey(), true)
	assert.False(t, a.IsWhitelisted(kpB.PublicKey()))
	assert.False(t, a.IsWhitelisted(kpC.PublicKey()))
}

func TestBroadcast(t *testing.T) {
	net := memswarm.NewNetwork()
	cfg := testConfig()
	a, kpA := newTestNode(t, net, cfg)
	b, kpB := newTestNode(t, net, cfg)

	a.Whitelist(kpB.PublicKey())
	b.Whitelist(kpA.PublicKey())

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer a.Stop()
	defer b.Stop()

	waitForEvent(t, a, EventPeerConnected, 2*time.Second)
	waitForEvent(t, b, EventPeerConnected, 2*time.Second)

	res := a.Broadcast(map[string]string{"hello": "everyone"})
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 0, res.Offline)

	ev := waitForEvent(t, b, EventMessage, 2*time.Second)
	assert.JSONEq(t, `{"hello":"everyone"}`, string(ev.Message))
}

// Stop is idempotent and leaves no active sessions behind.
func TestStopClearsState(t *testing.T) {
	net := memswarm.NewNetwork()
	cfg := testConfig()
	a, kpA := newTestNode(t, net, cfg)
	b, kpB := newTestNode(t, net, cfg)

	a.Whitelist(kpB.PublicKey())
	b.Whitelist(kpA.PublicKey())

	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	waitForEvent(t, a, EventPeerConnected, 2*time.Second)

	require.NoError(t, a.Stop())
	require.NoError(t, a.Stop())
	assert.Empty(t, a.Peers())

	_, err := a.Request(kpB.PublicKey(), "ping", nil, time.Second)
	assert.Error(t, err)
}
