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

package memswarm

import (
	"crypto/cipher"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aronia-net/aronia/identity"
)

// stream is a transport.Stream backed by buffered Go channels, encrypting
// every outbound write and decrypting every inbound read with a shared
// ChaCha20-Poly1305 AEAD derived once at pairing time. The two directions
// use disjoint nonce spaces (tagged by side) so the same key is safe for
// both.
type stream struct {
	remote identity.PublicKey
	aead   cipher.AEAD
	side   byte

	out     chan<- []byte // ciphertext to the peer
	in      <-chan []byte // ciphertext from the peer
	frames  chan []byte   // decrypted plaintext frames, for Frames()
	drain   chan struct{}
	closed  chan struct{}
	closeMu sync.Once

	sendCounter uint64
	recvCounter uint64
}

func newStream(remote identity.PublicKey, aead cipher.AEAD, side byte, out chan<- []byte, in <-chan []byte) *stream {
	s := &stream{
		remote: remote,
		aead:   aead,
		side:   side,
		out:    out,
		in:     in,
		frames: make(chan []byte, 64),
		drain:  make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *stream) RemoteStaticPublicKey() identity.PublicKey { return s.remote }

func (s *stream) Write(p []byte) (bool, error) {
	select {
	case <-s.closed:
		return false, fmt.Errorf("memswarm: stream closed")
	default:
	}

	n := atomic.AddUint64(&s.sendCounter, 1) - 1
	nonce := seqNonce(s.side, n)
	ciphertext := s.aead.Seal(nil, nonce, p, nil)
	framed := append(nonce, ciphertext...)

	select {
	case s.out <- framed:
		return true, nil
	case <-s.closed:
		return false, fmt.Errorf("memswarm: stream closed")
	default:
		// Buffer full: block until there is room or the stream closes.
		// This stream never reports ready=false and never fires Drain;
		// the buffered channel depth (64) models a bounded-but-generous
		// socket buffer.
		select {
		case s.out <- framed:
			return true, nil
		case <-s.closed:
			return false, fmt.Errorf("memswarm: stream closed")
		}
	}
}

func (s *stream) Drain() <-chan struct{} { return s.drain }

func (s *stream) Frames() <-chan []byte { return s.frames }

func (s *stream) Closed() <-chan struct{} { return s.closed }

func (s *stream) Close() error {
	s.closeMu.Do(func() { close(s.closed) })
	return nil
}

func (s *stream) readLoop() {
	defer close(s.frames)
	for {
		select {
		case framed, ok := <-s.in:
			if !ok {
				return
			}
			if len(framed) < chacha20poly1305NonceSize {
				continue
			}
			nonce := framed[:chacha20poly1305NonceSize]
			ciphertext := framed[chacha20poly1305NonceSize:]
			plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
			if err != nil {
				continue
			}
			select {
			case s.frames <- plaintext:
			case <-s.closed:
				return
			}
		case <-s.closed:
			return
		}
	}
}

const chacha20poly1305NonceSize = 12
