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
	"github.com/aronia-net/aronia/internal/aerrors"
)

// Request sends a REQUEST frame for method with the given params and
// resolves when the matching RESPONSE arrives, the deadline elapses, or
// the session is destroyed first, whichever happens soonest. A zero
// timeout uses the session's configured default.
func (s *PeerSession) Request(method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = s.cfg.DefaultRequestTimeout
	}

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return nil, aerrors.Of(aerrors.KindPeerOffline)
	}
	id := s.nextReqID
	s.nextReqID++
	s.mu.Unlock()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	resultCh := make(chan json.RawMessage, 1)
	errCh := make(chan error, 1)

	pr := &pendingRequest{
		resolve: func(r json.RawMessage) { resultCh <- r },
		reject:  func(e error) { errCh <- e },
	}

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return nil, aerrors.Of(aerrors.KindPeerOffline)
	}
	pr.timer = time.AfterFunc(timeout, func() { s.timeoutRequest(id) })
	s.pending[id] = pr
	s.mu.Unlock()

	payload, err := json.Marshal(frame.RequestPayload{
		ID:      id,
		Method:  method,
		Params:  paramsJSON,
		Timeout: timeout.Milliseconds(),
	})
	if err != nil {
		s.removePending(id)
		pr.timer.Stop()
		return nil, err
	}
	f := frame.Sign(s.self, frame.TypeRequest, 0, payload)

	if err := s.writeQueue.enqueue(frame.Serialize(f)); err != nil {
		s.removePending(id)
		pr.timer.Stop()
		return nil, err
	}

	select {
	case r := <-resultCh:
		return r, nil
	case err := <-errCh:
		return nil, err
	}
}

func (s *PeerSession) removePending(id uint64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *PeerSession) timeoutRequest(id uint64) {
	s.mu.Lock()
	p, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if ok {
		p.reject(aerrors.Of(aerrors.KindRequestTimeout))
	}
}
