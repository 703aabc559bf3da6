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
	"encoding/binary"
	"fmt"
	"time"

	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/internal/aerrors"
)

// Serialize writes f to the wire layout described in types.go: the 52-byte
// fixed header, the payload, then the 64-byte signature. The leading
// length field is computed from f and written first, per the data model.
func Serialize(f *Frame) []byte {
	total := headerSize + len(f.Payload) + SignatureSize
	buf := make([]byte, total)

	binary.BigEndian.PutUint32(buf[0:4], uint32(total))
	buf[4] = ProtocolVersion
	buf[5] = byte(f.Type)
	binary.BigEndian.PutUint16(buf[6:8], uint16(f.Flags))
	// buf[8:12] reserved, left zero.
	binary.BigEndian.PutUint64(buf[12:20], uint64(f.Timestamp.UnixMilli()))
	copy(buf[20:52], f.Sender[:])

	copy(buf[headerSize:headerSize+len(f.Payload)], f.Payload)
	copy(buf[total-SignatureSize:total], f.Signature[:])

	return buf
}

// Parse decodes a wire frame, enforcing minimum length, the declared
// length matching the actual input length, the protocol version, and
// all-zero reserved header bytes. All
// failures are *aerrors.Error of kind Protocol.
func Parse(data []byte) (*Frame, error) {
	if len(data) < MinFrameSize {
		return nil, aerrors.New(aerrors.KindProtocol, fmt.Sprintf("frame too short: %d bytes, minimum %d", len(data), MinFrameSize))
	}

	declared := binary.BigEndian.Uint32(data[0:4])
	if int(declared) != len(data) {
		return nil, aerrors.New(aerrors.KindProtocol, fmt.Sprintf("declared length %d does not match input length %d", declared, len(data)))
	}

	version := data[4]
	if version != ProtocolVersion {
		return nil, aerrors.New(aerrors.KindProtocol, fmt.Sprintf("unsupported protocol version %d", version))
	}

	if binary.BigEndian.Uint32(data[8:12]) != 0 {
		return nil, aerrors.New(aerrors.KindProtocol, "reserved header bytes are not zero")
	}

	typ := Type(data[5])
	flags := Flags(binary.BigEndian.Uint16(data[6:8]))
	tsMillis := binary.BigEndian.Uint64(data[12:20])

	var sender identity.PublicKey
	copy(sender[:], data[20:52])

	payloadLen := len(data) - headerSize - SignatureSize
	if payloadLen < 0 {
		return nil, aerrors.New(aerrors.KindProtocol, "negative payload length")
	}

	f := &Frame{
		Type:      typ,
		Flags:     flags,
		Timestamp: time.UnixMilli(int64(tsMillis)).UTC(),
		Sender:    sender,
	}
	if payloadLen > 0 {
		f.Payload = append([]byte(nil), data[headerSize:headerSize+payloadLen]...)
	}
	copy(f.Signature[:], data[len(data)-SignatureSize:])

	return f, nil
}
