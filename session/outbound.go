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

package session

import (
	"github.com/aronia-net/aronia/frame"
	"github.com/aronia-net/aronia/internal/aerrors"
)

// Send builds, signs, and enqueues a fire-and-forget frame of the given
// type onto the session's write path. It is used for EVENT and INTRODUCE
// frames; REQUEST/RESPONSE have their own dedicated paths since they need
// correlation (see requests.go and dispatch.go).
func (s *PeerSession) Send(typ frame.Type, flags frame.Flags, payload []byte) error {
	s.mu.Lock()
	active := s.state == StateActive
	s.mu.Unlock()
	if !active {
		return aerrors.Of(aerrors.KindPeerOffline)
	}

	f := frame.Sign(s.self, typ, flags, payload)
	return s.writeQueue.enqueue(frame.Serialize(f))
}
