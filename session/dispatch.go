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
	"fmt"

	"github.com/aronia-net/aronia/frame"
	"github.com/aronia-net/aronia/internal/aerrors"
)

// Dispatch routes one verified, sender-checked inbound frame to the
// handler appropriate for its type.
func (s *PeerSession) Dispatch(f *frame.Frame) {
	switch f.Type {
	case frame.TypeControl:
		s.dispatchControl(f)
	case frame.TypeRequest:
		s.dispatchRequest(f)
	case frame.TypeResponse:
		s.dispatchResponse(f)
	case frame.TypeEvent:
		if s.handlers.OnEvent != nil {
			s.handlers.OnEvent(s.remote, f.Payload)
		}
	case frame.TypeIntroduce:
		if s.handlers.OnIntroduce != nil {
			s.handlers.OnIntroduce(s.remote, f.Payload)
		}
	case frame.TypeStreamData, frame.TypeStreamEnd:
		if s.handlers.OnEvent != nil {
			s.handlers.OnEvent(s.remote, f.Payload)
		}
	default:
		s.surfaceProtocolError(aerrors.New(aerrors.KindProtocol, "unknown frame type"))
	}
}

func (s *PeerSession) dispatchControl(f *frame.Frame) {
	var cp frame.ControlPayload
	if err := json.Unmarshal(f.Payload, &cp); err != nil {
		s.surfaceProtocolError(aerrors.Wrap(aerrors.KindProtocol, "malformed control payload", err))
		return
	}
	switch cp.Type {
	case frame.ControlHeartbeat:
		// Liveness timer was already rearmed by handleInbound.
	case frame.ControlCapabilities:
		var caps frame.Capabilities
		if err := json.Unmarshal(cp.Data, &caps); err != nil {
			s.surfaceProtocolError(aerrors.Wrap(aerrors.KindProtocol, "malformed capabilities", err))
			return
		}
		s.mu.Lock()
		s.caps = caps
		s.mu.Unlock()
		if s.handlers.OnCapabilities != nil {
			s.handlers.OnCapabilities(s.remote, caps)
		}
	default:
		s.surfaceProtocolError(aerrors.New(aerrors.KindProtocol, "unknown control kind"))
	}
}

func (s *PeerSession) dispatchRequest(f *frame.Frame) {
	var rp frame.RequestPayload
	if err := json.Unmarshal(f.Payload, &rp); err != nil {
		s.surfaceProtocolError(aerrors.Wrap(aerrors.KindProtocol, "malformed request payload", err))
		return
	}

	resp := frame.ResponsePayload{ID: rp.ID}
	if s.handlers.OnRequest == nil {
		resp.Error = &frame.ResponseError{Code: frame.ErrCodeMethodNotFound, Message: "no method registry configured"}
	} else {
		result, rpcErr := s.handlers.OnRequest(s.remote, rp.Method, rp.Params)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			b, err := json.Marshal(result)
			if err != nil {
				resp.Error = &frame.ResponseError{Code: frame.ErrCodeHandlerError, Message: err.Error()}
			} else {
				resp.Result = b
			}
		}
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	out := frame.Sign(s.self, frame.TypeResponse, 0, payload)
	_ = s.writeQueue.enqueue(frame.Serialize(out))
}

func (s *PeerSession) dispatchResponse(f *frame.Frame) {
	var rp frame.ResponsePayload
	if err := json.Unmarshal(f.Payload, &rp); err != nil {
		s.surfaceProtocolError(aerrors.Wrap(aerrors.KindProtocol, "malformed response payload", err))
		return
	}

	s.mu.Lock()
	p, ok := s.pending[rp.ID]
	if ok {
		delete(s.pending, rp.ID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	p.timer.Stop()

	if rp.Error != nil {
		// The handler on the remote side failed; that's an application
		// error for the caller, not a protocol violation.
		p.reject(fmt.Errorf("remote error %s: %s", rp.Error.Code, rp.Error.Message))
		return
	}
	p.resolve(rp.Result)
}
