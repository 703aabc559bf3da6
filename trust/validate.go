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

package trust

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/internal/aerrors"
)

// Config bounds introduction acceptance: max age and max trust-path depth.
type Config struct {
	MaxAge        time.Duration
	MaxTrustDepth int
}

// DefaultConfig matches the documented defaults: 24h max age, depth 3.
func DefaultConfig() Config {
	return Config{MaxAge: 24 * time.Hour, MaxTrustDepth: 3}
}

// DetectCircularTrust reports whether trustPath contains selfPubkey or any
// duplicate entry. Entries are compared case-insensitively since hex
// encoding is display-only.
func DetectCircularTrust(trustPath []string, selfPubkey string) bool {
	seen := make(map[string]struct{}, len(trustPath))
	self := normalizeHex(selfPubkey)
	for _, entry := range trustPath {
		n := normalizeHex(entry)
		if n == self {
			return true
		}
		if _, dup := seen[n]; dup {
			return true
		}
		seen[n] = struct{}{}
	}
	return false
}

func normalizeHex(s string) string {
	b, err := hex.DecodeString(s)
	if err != nil {
		return s
	}
	return hex.EncodeToString(b)
}

// Validate checks a received introduction: age, signature,
// introducer-match, cycle-freedom, and depth. deliveredBy is the pubkey of
// the peer session that delivered the frame (not necessarily the original
// signer once forwarding is involved). selfPubkey is the validating node's
// own pubkey, used for the cycle check.
func Validate(in *Introduction, deliveredBy identity.PublicKey, selfPubkey identity.PublicKey, cfg Config) error {
	now := time.Now().UnixMilli()
	age := time.Duration(now-in.Timestamp) * time.Millisecond

	if age < 0 {
		return aerrors.New(aerrors.KindIntroduction, "introduction timestamp is in the future")
	}
	if age > cfg.MaxAge {
		return aerrors.New(aerrors.KindIntroduction, fmt.Sprintf("introduction expired: age %s exceeds max %s", age, cfg.MaxAge))
	}

	introducerKey, err := identity.ParsePublicKeyHex(in.IntroducerPubkey)
	if err != nil {
		return aerrors.Wrap(aerrors.KindIntroduction, "invalid introducerPubkey encoding", err)
	}

	body, err := in.canonicalBytes()
	if err != nil {
		return aerrors.Wrap(aerrors.KindIntroduction, "canonicalize introduction body", err)
	}
	sigBytes, err := hex.DecodeString(in.Signature)
	if err != nil {
		return aerrors.Wrap(aerrors.KindIntroduction, "invalid signature encoding", err)
	}
	if !identity.Verify(introducerKey, body, sigBytes) {
		return aerrors.New(aerrors.KindIntroduction, "invalid signature")
	}

	if normalizeHex(in.IntroducerPubkey) != normalizeHex(deliveredBy.Hex()) {
		return aerrors.New(aerrors.KindIntroduction, "introducer mismatch: record introducer does not match delivering peer")
	}

	if DetectCircularTrust(in.TrustPath, selfPubkey.Hex()) {
		return aerrors.New(aerrors.KindIntroduction, "circular trust path")
	}

	if len(in.TrustPath) > cfg.MaxTrustDepth {
		return aerrors.New(aerrors.KindIntroduction, fmt.Sprintf("trust path length %d exceeds max depth %d", len(in.TrustPath), cfg.MaxTrustDepth))
	}

	return nil
}
