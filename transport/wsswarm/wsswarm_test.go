package wsswarm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aronia-net/aronia/identity"
)

func TestDialAndAcceptHandshake(t *testing.T) {
	kpServer, err := identity.Generate()
	require.NoError(t, err)
	kpClient, err := identity.Generate()
	require.NoError(t, err)

	server := New(kpServer, Config{ListenAddr: "127.0.0.1:18881", Path: "/aronia"})
	client := New(kpClient, Config{PeerAddrs: []string{"ws://127.0.0.1:18881/aronia"}})

	topic := [32]byte{1}
	require.NoError(t, server.Join(context.Background(), topic, true, false))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.Join(context.Background(), topic, false, true))

	var serverConn, clientConn interface {
		RemoteStaticPublicKey() identity.PublicKey
	}

	select {
	case c := <-server.Connections():
		serverConn = c.Stream
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side connection")
	}
	select {
	case c := <-client.Connections():
		clientConn = c.Stream
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client-side connection")
	}

	assert.Equal(t, kpClient.PublicKey(), serverConn.RemoteStaticPublicKey())
	assert.Equal(t, kpServer.PublicKey(), clientConn.RemoteStaticPublicKey())

	defer server.Close()
	defer client.Close()
}

func TestEncryptedRoundTripOverWebSocket(t *testing.T) {
	kpServer, err := identity.Generate()
	require.NoError(t, err)
	kpClient, err := identity.Generate()
	require.NoError(t, err)

	server := New(kpServer, Config{ListenAddr: "127.0.0.1:18882", Path: "/aronia"})
	client := New(kpClient, Config{PeerAddrs: []string{"ws://127.0.0.1:18882/aronia"}})

	topic := [32]byte{2}
	require.NoError(t, server.Join(context.Background(), topic, true, false))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.Join(context.Background(), topic, false, true))

	serverConn := <-server.Connections()
	clientConn := <-client.Connections()
	defer server.Close()
	defer client.Close()

	ready, err := clientConn.Stream.Write([]byte("ping over websocket"))
	require.NoError(t, err)
	assert.True(t, ready)

	select {
	case got := <-serverConn.Stream.Frames():
		assert.Equal(t, "ping over websocket", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}
