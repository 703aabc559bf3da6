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

package frame

import (
	"time"

	"github.com/aronia-net/aronia/identity"
)

// Sign builds a ready-to-transmit frame: it stamps Sender/Timestamp/Type/
// Flags/Payload into a frame with a zero-filled signature placeholder,
// serializes that, signs the serialized bytes excluding the trailing
// 64-byte signature region with kp's secret key, and returns the frame with
// Signature populated. This mirrors the sign-with-placeholder-then-replace
// pattern: the signature covers the length, version, type, flags,
// timestamp, sender, and payload (everything an attacker could tamper
// with) and sits last so the signed prefix is one contiguous slice.
func Sign(kp *identity.KeyPair, typ Type, flags Flags, payload []byte) *Frame {
	f := &Frame{
		Type:      typ,
		Flags:     flags,
		Timestamp: time.Now(),
		Sender:    kp.PublicKey(),
		Payload:   payload,
	}

	serialized := Serialize(f)
	prefix := serialized[:len(serialized)-SignatureSize]
	sig := kp.Sign(prefix)
	copy(f.Signature[:], sig)

	return f
}

// Verify checks a frame's signature against its claimed Sender. It
// reserializes the frame with the signature zeroed, then verifies the
// stored signature against that prefix. Any mismatch, including a forged
// Sender, returns false; it never panics.
func Verify(f *Frame) bool {
	unsigned := *f
	unsigned.Signature = [SignatureSize]byte{}

	serialized := Serialize(&unsigned)
	prefix := serialized[:len(serialized)-SignatureSize]

	return identity.Verify(f.Sender, prefix, f.Signature[:])
}
