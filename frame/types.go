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

// Package frame implements the ARONIA wire frame: a signed, length-framed
// binary message format. It serializes, parses, signs, and verifies frames
// exactly as laid out in the protocol's data model, but has no opinion
// about transport, sessions, or dispatch; those live in the session and
// node packages.
package frame

import (
	"time"

	"github.com/aronia-net/aronia/identity"
)

// Type is the one-byte frame type discriminant.
type Type uint8

const (
	TypeControl    Type = 0x01
	TypeRequest    Type = 0x02
	TypeResponse   Type = 0x03
	TypeEvent      Type = 0x04
	TypeStreamData Type = 0x05
	TypeStreamEnd  Type = 0x06
	TypeIntroduce  Type = 0x07
)

// String names a frame type for logging; any type outside the known set
// prints as "UNKNOWN".
func (t Type) String() string {
	switch t {
	case TypeControl:
		return "CONTROL"
	case TypeRequest:
		return "REQUEST"
	case TypeResponse:
		return "RESPONSE"
	case TypeEvent:
		return "EVENT"
	case TypeStreamData:
		return "STREAM_DATA"
	case TypeStreamEnd:
		return "STREAM_END"
	case TypeIntroduce:
		return "INTRODUCE"
	default:
		return "UNKNOWN"
	}
}

// Flags is the two-byte bitset carried in every frame. The core never sets
// any bit; parsers and validators must accept and pass through bits they do
// not recognize rather than rejecting the frame.
type Flags uint16

const (
	FlagEncrypted  Flags = 0x01
	FlagCompressed Flags = 0x02
	FlagUrgent     Flags = 0x04
)

// Has reports whether f has every bit of other set.
func (f Flags) Has(other Flags) bool { return f&other == other }

// ProtocolVersion is the only wire version this package emits or accepts.
// A frame carrying an unknown version is dropped; the session survives.
const ProtocolVersion uint8 = 1

// headerSize is the fixed prefix before the variable-length JSON payload:
// length(4) + version(1) + type(1) + flags(2) + reserved(4) + timestamp(8) +
// sender pubkey(32) = 52 bytes. The 4-byte reserved field has no protocol
// meaning today; it exists purely to round the header to the wire size the
// rest of the system depends on (minimum frame = 116 = 52 + 64-byte
// signature with an empty payload) and is always zero on frames this
// package emits. Parse rejects a frame whose reserved bytes are not all zero.
const headerSize = 52

// SignatureSize is the trailing Ed25519 signature length.
const SignatureSize = 64

// MinFrameSize is the smallest legal serialized frame: header + signature,
// empty payload.
const MinFrameSize = headerSize + SignatureSize

// Frame is the parsed, structured form of a wire frame.
type Frame struct {
	Type      Type
	Flags     Flags
	Timestamp time.Time
	Sender    identity.PublicKey
	Payload   []byte
	Signature [SignatureSize]byte
}
