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

// Package memswarm is an in-process reference implementation of
// transport.Swarm, used by the test suite to run multi-node scenarios
// (handshake convergence, RPC, introductions, session teardown) without
// real sockets. It still performs a genuine X25519 Diffie-Hellman exchange
// and derives a ChaCha20-Poly1305 session key, so the "already-encrypted
// duplex stream" transport.Swarm promises is a real encrypted channel, not
// a stub.
package memswarm

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/transport"
)

// Network is a shared virtual medium. Every Swarm created with New joins
// the same Network discovers and pairwise-connects to every other member
// already on the same topic.
type Network struct {
	mu      sync.Mutex
	members map[[32]byte][]*Swarm
}

// NewNetwork creates an empty virtual network.
func NewNetwork() *Network {
	return &Network{members: make(map[[32]byte][]*Swarm)}
}

// Swarm is one node's membership in a Network.
type Swarm struct {
	net     *Network
	keyPair *identity.KeyPair

	mu          sync.Mutex
	closed      bool
	connections chan transport.Connection
	topics      map[[32]byte]bool
}

// New creates a Swarm for keyPair on net. Call Join to announce/search a
// topic; New alone performs no network activity.
func New(net *Network, keyPair *identity.KeyPair) *Swarm {
	return &Swarm{
		net:         net,
		keyPair:     keyPair,
		connections: make(chan transport.Connection, 16),
		topics:      make(map[[32]byte]bool),
	}
}

// Join registers s under topicHash and synchronously pairs it with every
// other swarm already announced/searching the same topic.
func (s *Swarm) Join(ctx context.Context, topicHash [32]byte, announce, search bool) error {
	if !announce && !search {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("memswarm: swarm closed")
	}
	s.topics[topicHash] = true
	s.mu.Unlock()

	s.net.mu.Lock()
	peers := append([]*Swarm(nil), s.net.members[topicHash]...)
	s.net.members[topicHash] = append(s.net.members[topicHash], s)
	s.net.mu.Unlock()

	for _, peer := range peers {
		if peer == s {
			continue
		}
		if err := connectPair(s, peer); err != nil {
			return err
		}
	}
	return nil
}

// Connections yields a Connection for every peer this swarm has paired
// with, in pairing order.
func (s *Swarm) Connections() <-chan transport.Connection { return s.connections }

// Close tears down the swarm's membership. It does not close already
// delivered Streams; close those individually via Stream.Close.
func (s *Swarm) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.connections)
	return nil
}

// connectPair performs an X25519 ECDH handshake between a and b and wires
// up a pair of encrypted in-memory Streams, delivering one Connection to
// each side.
func connectPair(a, b *Swarm) error {
	aPriv, aPub, err := newX25519KeyPair()
	if err != nil {
		return err
	}
	bPriv, bPub, err := newX25519KeyPair()
	if err != nil {
		return err
	}

	aShared, err := curve25519.X25519(aPriv, bPub)
	if err != nil {
		return fmt.Errorf("memswarm: ecdh (a): %w", err)
	}
	bShared, err := curve25519.X25519(bPriv, aPub)
	if err != nil {
		return fmt.Errorf("memswarm: ecdh (b): %w", err)
	}

	lo, hi := canonicalOrder(aPub, bPub)
	salt := sha256.Sum256(append(append([]byte{}, lo...), hi...))

	aead, err := deriveAEAD(aShared, salt[:])
	if err != nil {
		return err
	}
	// bShared == aShared for a correct X25519 exchange; deriving
	// independently on each side is what two real peers would do.
	_ = bShared

	toA := make(chan []byte, 64)
	toB := make(chan []byte, 64)

	sa := newStream(b.keyPair.PublicKey(), aead, 0x01, toB, toA)
	sb := newStream(a.keyPair.PublicKey(), aead, 0x02, toA, toB)

	if err := a.deliver(sa); err != nil {
		_ = sb.Close()
		return err
	}
	if err := b.deliver(sb); err != nil {
		_ = sa.Close()
		return err
	}
	return nil
}

// deliver hands a paired stream to the swarm's consumer. The check and
// send happen under the swarm lock so a concurrent Close cannot close the
// channel in between; a full backlog drops the pairing instead of blocking
// Join.
func (s *Swarm) deliver(st *stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = st.Close()
		return fmt.Errorf("memswarm: swarm closed")
	}
	select {
	case s.connections <- transport.Connection{Stream: st}:
		return nil
	default:
		_ = st.Close()
		return fmt.Errorf("memswarm: connection backlog full")
	}
}

func newX25519KeyPair() (priv, pub []byte, err error) {
	priv = make([]byte, curve25519.ScalarSize)
	if _, err = io.ReadFull(rand.Reader, priv); err != nil {
		return nil, nil, fmt.Errorf("memswarm: generate x25519 key: %w", err)
	}
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("memswarm: derive x25519 pubkey: %w", err)
	}
	return priv, pub, nil
}

func canonicalOrder(a, b []byte) (lo, hi []byte) {
	if bytes.Compare(a, b) <= 0 {
		return a, b
	}
	return b, a
}

func deriveAEAD(sharedSecret, salt []byte) (cipher.AEAD, error) {
	r := hkdf.New(sha256.New, sharedSecret, salt, []byte("aronia/memswarm v1"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("memswarm: derive session key: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("memswarm: build aead: %w", err)
	}
	return aead, nil
}

// seqNonce derives a 12-byte nonce from a monotonic counter so each side's
// independent nonce space never collides with the other's, without needing
// a shared counter.
func seqNonce(side byte, counter uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	nonce[0] = side
	binary.BigEndian.PutUint64(nonce[4:], counter)
	return nonce
}
