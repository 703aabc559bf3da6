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

// Package aerrors defines the ARONIA error taxonomy: a small set of kinds
// describing why a protocol or API call failed, independent of the Go type
// that happens to carry them.
package aerrors

import "fmt"

// Kind classifies an error by its place in the protocol, not by its cause.
type Kind string

const (
	// KindPeerOffline means there is no active session for the target pubkey.
	KindPeerOffline Kind = "peer_offline"
	// KindRequestTimeout means an RPC deadline elapsed before a response arrived.
	KindRequestTimeout Kind = "request_timeout"
	// KindAuthentication means a signature or whitelist check failed.
	KindAuthentication Kind = "authentication"
	// KindProtocol means a frame was malformed, mis-versioned, or unexpected.
	KindProtocol Kind = "protocol"
	// KindIntroduction means an introduction record failed validation.
	KindIntroduction Kind = "introduction"
	// KindBackpressure means a parked write exceeded its timeout.
	KindBackpressure Kind = "backpressure"
)

// Error is the concrete error type every ARONIA package returns.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Cause != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, aerrors.New(aerrors.KindProtocol, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error carrying cause as its Unwrap target.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Of returns a zero-value sentinel of the given kind, suitable for errors.Is
// comparisons: errors.Is(err, aerrors.Of(aerrors.KindPeerOffline)).
func Of(kind Kind) *Error {
	return &Error{Kind: kind}
}
