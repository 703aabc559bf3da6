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

// Package trust implements the ARONIA introduction (trust-delegation)
// protocol: building, canonically serializing, signing, and validating
// introduction records, plus the cycle detection that bounds trust
// propagation.
package trust

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aronia-net/aronia/frame"
	"github.com/aronia-net/aronia/identity"
)

// Introduction is the signed body carried in an INTRODUCE frame's payload.
// JSON field order here is the canonical serialization order used for both
// signing and verification; it must never change once peers depend on it.
type Introduction struct {
	Pubkey           string   `json:"pubkey"`
	Alias            string   `json:"alias,omitempty"`
	Capabilities     []string `json:"capabilities,omitempty"`
	Message          string   `json:"message,omitempty"`
	IntroducerPubkey string   `json:"introducerPubkey"`
	Timestamp        int64    `json:"timestamp"`
	TrustPath        []string `json:"trustPath"`
	Signature        string   `json:"signature,omitempty"`
}

// canonicalBody is Introduction without Signature, establishing the exact
// byte sequence Sign/Validate operate over. Keeping it a distinct type
// (rather than zeroing Signature in place) makes it impossible to
// accidentally include the signature field in what gets signed.
type canonicalBody struct {
	Pubkey           string   `json:"pubkey"`
	Alias            string   `json:"alias,omitempty"`
	Capabilities     []string `json:"capabilities,omitempty"`
	Message          string   `json:"message,omitempty"`
	IntroducerPubkey string   `json:"introducerPubkey"`
	Timestamp        int64    `json:"timestamp"`
	TrustPath        []string `json:"trustPath"`
}

func (in *Introduction) canonicalBytes() ([]byte, error) {
	body := canonicalBody{
		Pubkey:           in.Pubkey,
		Alias:            in.Alias,
		Capabilities:     in.Capabilities,
		Message:          in.Message,
		IntroducerPubkey: in.IntroducerPubkey,
		Timestamp:        in.Timestamp,
		TrustPath:        in.TrustPath,
	}
	return json.Marshal(body)
}

// Build constructs an unsigned introduction for targetPubkey, vouched for
// by introducer's keypair, with trustPath as supplied by the caller (the
// node layer decides how the chain is extended when forwarding; this
// function just carries whatever path it is given).
func Build(introducer *identity.KeyPair, target identity.PublicKey, alias string, capabilities []string, message string, trustPath []string) *Introduction {
	return &Introduction{
		Pubkey:           target.Hex(),
		Alias:            alias,
		Capabilities:     capabilities,
		Message:          message,
		IntroducerPubkey: introducer.PublicKey().Hex(),
		Timestamp:        time.Now().UnixMilli(),
		TrustPath:        trustPath,
	}
}

// Sign computes the canonical body bytes and signs them with introducer's
// key, base64-free hex signature stored on the record.
func Sign(introducer *identity.KeyPair, in *Introduction) error {
	body, err := in.canonicalBytes()
	if err != nil {
		return fmt.Errorf("trust: canonicalize introduction: %w", err)
	}
	sig := introducer.Sign(body)
	in.Signature = fmt.Sprintf("%x", sig)
	return nil
}

// ToFramePayload marshals the introduction for placement in an INTRODUCE
// frame's payload.
func (in *Introduction) ToFramePayload() ([]byte, error) {
	return json.Marshal(in)
}

// FromFramePayload parses an INTRODUCE frame's payload back into an
// Introduction. It performs no validation; call Validate separately.
func FromFramePayload(f *frame.Frame) (*Introduction, error) {
	if f.Type != frame.TypeIntroduce {
		return nil, fmt.Errorf("trust: frame type %s is not INTRODUCE", f.Type)
	}
	return FromPayload(f.Payload)
}

// FromPayload parses a raw INTRODUCE payload (as delivered by the session
// layer's Handlers.OnIntroduce, which has already stripped frame framing)
// back into an Introduction. It performs no validation; call Validate
// separately.
func FromPayload(payload []byte) (*Introduction, error) {
	var in Introduction
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("trust: decode introduction payload: %w", err)
	}
	return &in, nil
}
