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
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/aronia-net/aronia/identity"
)

// hello is the one-shot identity+ephemeral-key message both sides exchange
// before any ARONIA frame is sent. EphPub is signed by the sender's
// long-term identity key so a man-in-the-middle cannot substitute their
// own ephemeral key without the exchange failing signature verification.
type hello struct {
	IdentityPub string `json:"identityPub"`
	EphPub      string `json:"ephPub"`
	Signature   string `json:"signature"`
}

// performHandshake exchanges hello messages over conn, verifies the peer's
// signature over their ephemeral key, and derives a shared ChaCha20-
// Poly1305 AEAD from the X25519 ECDH result. It returns the peer's
// verified static identity public key and the derived cipher.
func performHandshake(conn *websocket.Conn, kp *identity.KeyPair, initiator bool) (identity.PublicKey, cipher.AEAD, error) {
	var zero identity.PublicKey

	ephPriv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand.Reader, ephPriv); err != nil {
		return zero, nil, fmt.Errorf("wsswarm: generate ephemeral key: %w", err)
	}
	ephPub, err := curve25519.X25519(ephPriv, curve25519.Basepoint)
	if err != nil {
		return zero, nil, fmt.Errorf("wsswarm: derive ephemeral pubkey: %w", err)
	}

	sig := kp.Sign(ephPub)
	own := hello{
		IdentityPub: kp.PublicKey().Hex(),
		EphPub:      hex.EncodeToString(ephPub),
		Signature:   hex.EncodeToString(sig),
	}

	send := func() error { return conn.WriteJSON(own) }
	recv := func() (hello, error) {
		var h hello
		err := conn.ReadJSON(&h)
		return h, err
	}

	var peer hello
	if initiator {
		if err := send(); err != nil {
			return zero, nil, fmt.Errorf("wsswarm: send hello: %w", err)
		}
		peer, err = recv()
	} else {
		peer, err = recv()
		if err == nil {
			err = send()
		}
	}
	if err != nil {
		return zero, nil, fmt.Errorf("wsswarm: exchange hello: %w", err)
	}

	peerIdentity, err := identity.ParsePublicKeyHex(peer.IdentityPub)
	if err != nil {
		return zero, nil, fmt.Errorf("wsswarm: invalid peer identity: %w", err)
	}
	peerEphPub, err := hex.DecodeString(peer.EphPub)
	if err != nil || len(peerEphPub) != curve25519.PointSize {
		return zero, nil, fmt.Errorf("wsswarm: invalid peer ephemeral key")
	}
	peerSig, err := hex.DecodeString(peer.Signature)
	if err != nil {
		return zero, nil, fmt.Errorf("wsswarm: invalid peer signature encoding")
	}
	if !identity.Verify(peerIdentity, peerEphPub, peerSig) {
		return zero, nil, fmt.Errorf("wsswarm: peer ephemeral key signature invalid")
	}

	shared, err := curve25519.X25519(ephPriv, peerEphPub)
	if err != nil {
		return zero, nil, fmt.Errorf("wsswarm: ecdh: %w", err)
	}

	lo, hi := canonicalOrder(ephPub, peerEphPub)
	salt := sha256.Sum256(append(append([]byte{}, lo...), hi...))

	r := hkdf.New(sha256.New, shared, salt[:], []byte("aronia/wsswarm v1"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return zero, nil, fmt.Errorf("wsswarm: derive session key: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return zero, nil, fmt.Errorf("wsswarm: build aead: %w", err)
	}

	return peerIdentity, aead, nil
}

func canonicalOrder(a, b []byte) (lo, hi []byte) {
	if bytes.Compare(a, b) <= 0 {
		return a, b
	}
	return b, a
}
