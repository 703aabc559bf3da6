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

// Package identity implements the ARONIA node identity: an Ed25519 keypair
// whose 32-byte public key is a peer's stable address across the whole
// system. Pubkeys are compared and keyed by raw bytes everywhere in the
// rest of the module; hex and base58 are purely display/config forms.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeySize and SecretKeySize mirror the Ed25519 standard: a 32-byte
// public key and a 64-byte secret key (32-byte seed || 32-byte public key).
const (
	PublicKeySize = ed25519.PublicKeySize
	SecretKeySize = ed25519.PrivateKeySize
)

// PublicKey is a 32-byte Ed25519 public key, compared and mapped by value.
type PublicKey [PublicKeySize]byte

// Hex returns the lowercase hex display form of the key.
func (p PublicKey) Hex() string { return hex.EncodeToString(p[:]) }

// Base58 returns the base58 display form of the key, offered alongside hex
// as an alternate operator-facing encoding.
func (p PublicKey) Base58() string { return base58.Encode(p[:]) }

// String implements fmt.Stringer using the hex form, matching the wire
// protocol's choice of hex for introduction records.
func (p PublicKey) String() string { return p.Hex() }

// Bytes returns the raw 32 bytes of the key.
func (p PublicKey) Bytes() []byte { return p[:] }

// ParsePublicKeyHex decodes a hex-encoded public key.
func ParsePublicKeyHex(s string) (PublicKey, error) {
	var pk PublicKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("identity: invalid hex pubkey: %w", err)
	}
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("identity: pubkey must be %d bytes, got %d", PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// PublicKeyFromBytes copies raw bytes into a PublicKey value.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("identity: pubkey must be %d bytes, got %d", PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// KeyPair is the node's cryptographic identity: an Ed25519 keypair used to
// sign every outbound frame and introduction record, and to verify inbound
// ones against the claimed sender pubkey.
type KeyPair struct {
	public  PublicKey
	private ed25519.PrivateKey
}

// Generate creates a new random Ed25519 keypair.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate keypair: %w", err)
	}
	var pk PublicKey
	copy(pk[:], pub)
	return &KeyPair{public: pk, private: priv}, nil
}

// FromSecretKey reconstructs a KeyPair from a 64-byte Ed25519 secret key
// (seed || public key), the form returned by SecretKey.
func FromSecretKey(secret []byte) (*KeyPair, error) {
	if len(secret) != SecretKeySize {
		return nil, fmt.Errorf("identity: secret key must be %d bytes, got %d", SecretKeySize, len(secret))
	}
	priv := ed25519.PrivateKey(append([]byte(nil), secret...))
	pub := priv.Public().(ed25519.PublicKey)
	var pk PublicKey
	copy(pk[:], pub)
	return &KeyPair{public: pk, private: priv}, nil
}

// PublicKey returns the keypair's public identity.
func (k *KeyPair) PublicKey() PublicKey { return k.public }

// SecretKey returns the raw 64-byte secret key (seed || public key), for
// persistence by the caller; the core never persists keys itself.
func (k *KeyPair) SecretKey() []byte { return append([]byte(nil), k.private...) }

// Sign produces a raw Ed25519 signature over message. Frame signing
// builds the message to sign itself; this method has no framing opinion.
func (k *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(k.private, message)
}

// Verify checks sig against message for the given public key.
func Verify(pub PublicKey, message, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), message, sig)
}
