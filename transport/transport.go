// ARONIA - Realtime Peer-to-Peer Agent Communication Fabric
// Copyright (C) 2025 ARONIA-project
//
// This file is part of ARONIA.
//
// ARONIA is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ARONIA is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with ARONIA. If not, see <https://www.gnu.org/licenses/>.

// Package transport defines the boundary ARONIA's core consumes and never
// implements the hard parts of itself: a Kademlia-style swarm that performs
// peer discovery, NAT traversal, and produces already-encrypted duplex
// streams whose remote endpoint has proven possession of a 32-byte static
// public key. The node package depends only on these interfaces; concrete
// swarms live in transport/memswarm (in-process, for tests) and
// transport/wsswarm (WebSocket-based, for a runnable reference node).
package transport

import (
	"context"

	"github.com/aronia-net/aronia/identity"
)

// Stream is one authenticated, ordered, duplex byte channel to a single
// remote peer whose static public key is already verified by the time the
// stream is handed to the node. The session layer does no delimiting of
// its own: it parses each item from Frames as one whole frame. Every
// concrete implementation here yields whole frames.
type Stream interface {
	// RemoteStaticPublicKey is the authenticated remote peer identity.
	RemoteStaticPublicKey() identity.PublicKey

	// Write enqueues p for transmission. ready reports whether the caller
	// may continue writing immediately; ready=false means the caller must
	// wait on Drain before writing again.
	Write(p []byte) (ready bool, err error)

	// Drain fires once each time a previously unwritable stream becomes
	// writable again. It is never closed; callers select on it with a
	// timeout rather than ranging over it.
	Drain() <-chan struct{}

	// Frames yields whole, already-delimited wire frames as they arrive in
	// order. It is closed when the stream closes.
	Frames() <-chan []byte

	// Closed is closed exactly once, whether Close was called locally or
	// the transport failed/was closed remotely.
	Closed() <-chan struct{}

	// Close tears down the stream. Idempotent.
	Close() error
}

// Connection is delivered by a Swarm each time a new authenticated stream
// is established, whether the local node dialed out or accepted inbound.
type Connection struct {
	Stream Stream
}

// Swarm is the external DHT/transport collaborator: topic join, NAT
// traversal, and authenticated encrypted streams. ARONIA's core never
// implements Kademlia itself.
type Swarm interface {
	// Join announces and/or searches topicHash, a 32-byte hash of the
	// node's rendezvous topic name.
	Join(ctx context.Context, topicHash [32]byte, announce, search bool) error

	// Connections yields a Connection for every new authenticated stream,
	// inbound or outbound. It is closed after Close.
	Connections() <-chan Connection

	// Close leaves the topic and stops delivering connections. Streams
	// already delivered on Connections are not closed by it. Idempotent.
	Close() error
}
