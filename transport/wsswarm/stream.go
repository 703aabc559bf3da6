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

package wsswarm

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/aronia-net/aronia/identity"
)

// stream adapts a gorilla/websocket connection to transport.Stream,
// encrypting each outbound frame as one binary WebSocket message and
// decrypting each inbound message back into a plaintext frame.
type stream struct {
	conn   *websocket.Conn
	remote identity.PublicKey
	aead   cipher.AEAD
	side   byte

	writeMu sync.Mutex
	frames  chan []byte
	drain   chan struct{}
	closed  chan struct{}
	once    sync.Once

	sendCounter uint64
}

func newStream(conn *websocket.Conn, remote identity.PublicKey, aead cipher.AEAD, side byte) *stream {
	s := &stream{
		conn:   conn,
		remote: remote,
		aead:   aead,
		side:   side,
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
		return false, fmt.Errorf("wsswarm: stream closed")
	default:
	}

	n := atomic.AddUint64(&s.sendCounter, 1) - 1
	nonce := make([]byte, 12)
	nonce[0] = s.side
	binary.BigEndian.PutUint64(nonce[4:], n)

	ciphertext := s.aead.Seal(nil, nonce, p, nil)
	framed := append(nonce, ciphertext...)

	s.writeMu.Lock()
	err := s.conn.WriteMessage(websocket.BinaryMessage, framed)
	s.writeMu.Unlock()
	if err != nil {
		_ = s.Close()
		return false, err
	}
	// gorilla/websocket's WriteMessage blocks until the OS socket buffer
	// accepts the message, so there is no separate "not writable yet"
	// state to report here; the session write-queue layer still enforces
	// its own 30s parked-write timeout around this call.
	return true, nil
}

func (s *stream) Drain() <-chan struct{} { return s.drain }

func (s *stream) Frames() <-chan []byte { return s.frames }

func (s *stream) Closed() <-chan struct{} { return s.closed }

func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
	return nil
}

func (s *stream) readLoop() {
	defer close(s.frames)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			_ = s.Close()
			return
		}
		if len(data) < 12 {
			continue
		}
		nonce, ciphertext := data[:12], data[12:]
		plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			continue
		}
		select {
		case s.frames <- plaintext:
		case <-s.closed:
			return
		}
	}
}
