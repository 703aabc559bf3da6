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

import "encoding/json"

// Payload schemas, keyed by frame Type: the JSON payload shape is part of
// each type's contract. These are marshaled/unmarshaled by session/node
// code; the frame package itself treats Payload as opaque bytes.

// ControlKind distinguishes the two CONTROL payload shapes.
type ControlKind string

const (
	ControlHeartbeat    ControlKind = "heartbeat"
	ControlCapabilities ControlKind = "capabilities"
)

// ControlPayload is the body of a CONTROL frame.
type ControlPayload struct {
	Type ControlKind     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Capabilities is a peer's self-described tuple, sent in a CONTROL/
// capabilities payload's Data and replacing any previously-known
// capabilities for that peer on receipt.
type Capabilities struct {
	Agent   string   `json:"agent"`
	Version string   `json:"version"`
	Accepts []string `json:"accepts"`
}

// RequestPayload is the body of a REQUEST frame.
type RequestPayload struct {
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	Timeout int64           `json:"timeout,omitempty"` // milliseconds
}

// ResponseError is the {code, message} shape an error response carries.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponsePayload is the body of a RESPONSE frame. Exactly one of Result or
// Error is populated.
type ResponsePayload struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

// Common response error codes.
const (
	ErrCodeMethodNotFound = "method-not-found"
	ErrCodeHandlerError   = "handler-error"
)
