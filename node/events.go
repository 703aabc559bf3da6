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

package node

import (
	"time"

	"github.com/aronia-net/aronia/frame"
	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/trust"
)

// EventKind discriminates the events a Node surfaces: peer lifecycle,
// introduction outcomes, inbound application messages, capability updates,
// and non-fatal protocol errors.
type EventKind string

const (
	EventPeerConnected        EventKind = "peer:connected"
	EventPeerDisconnected     EventKind = "peer:disconnected"
	EventPeerRejected         EventKind = "peer:rejected"
	EventPeerPending          EventKind = "peer:pending"
	EventCapabilities         EventKind = "capabilities"
	EventMessage              EventKind = "message"
	EventIntroductionReceived EventKind = "introduction:received"
	EventIntroductionAccepted EventKind = "introduction:accepted"
	EventIntroductionRejected EventKind = "introduction:rejected"
	EventError                EventKind = "error"
)

// Event is the tagged union of everything a Node surfaces to its
// application layer. Exactly the fields relevant to Kind are populated;
// see the Event* data types below for the shape each kind carries.
type Event struct {
	Kind EventKind
	Peer identity.PublicKey

	PeerConnected        *PeerConnectedData
	PeerRejected         *ReasonData
	IntroductionReceived *trust.Introduction
	IntroductionAccepted *IntroductionAcceptedData
	IntroductionRejected *ReasonData
	Capabilities         *frame.Capabilities
	Message              []byte
	Err                  error
}

// PeerConnectedData is carried by EventPeerConnected.
type PeerConnectedData struct {
	Pubkey       identity.PublicKey
	Capabilities frame.Capabilities
	ConnectedAt  time.Time
	LastSeen     time.Time
	Online       bool
}

// ReasonData is carried by EventPeerRejected and EventIntroductionRejected,
// both of which are a {pubkey, reason} pair.
type ReasonData struct {
	Pubkey identity.PublicKey
	Reason string
}

// IntroductionAcceptedData is carried by EventIntroductionAccepted.
type IntroductionAcceptedData struct {
	Pubkey     identity.PublicKey
	Introducer identity.PublicKey
}

// PeerInfo is a point-in-time snapshot of one active peer session,
// returned by Node.Peers.
type PeerInfo struct {
	Pubkey       identity.PublicKey
	Capabilities frame.Capabilities
	ConnectedAt  time.Time
	LastSeen     time.Time
	Online       bool
}
