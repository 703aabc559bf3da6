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
	"encoding/json"
	"time"

	"github.com/aronia-net/aronia/frame"
)

// armHeartbeatLocked (re)arms the periodic heartbeat timer. Callers must
// hold s.mu.
func (s *PeerSession) armHeartbeatLocked() {
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
	}
	s.heartbeatTimer = time.AfterFunc(s.cfg.HeartbeatInterval, s.sendHeartbeat)
}

// sendHeartbeat fires on the heartbeat timer; send failures are swallowed
// since the liveness timer will detect a dead peer anyway.
func (s *PeerSession) sendHeartbeat() {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	payload, err := hbPayload()
	if err == nil {
		f := frame.Sign(s.self, frame.TypeControl, 0, payload)
		_ = s.writeQueue.enqueue(frame.Serialize(f))
	}

	s.mu.Lock()
	if s.state == StateActive {
		s.armHeartbeatLocked()
	}
	s.mu.Unlock()
}

func hbPayload() ([]byte, error) {
	return json.Marshal(frame.ControlPayload{Type: frame.ControlHeartbeat})
}

// armLivenessLocked (re)arms the liveness timer. Callers must hold s.mu.
func (s *PeerSession) armLivenessLocked() {
	if s.livenessTimer != nil {
		s.livenessTimer.Stop()
	}
	s.livenessTimer = time.AfterFunc(s.cfg.HeartbeatTimeout, func() {
		s.log.Warn("liveness timeout, destroying session")
		s.Destroy()
	})
}
