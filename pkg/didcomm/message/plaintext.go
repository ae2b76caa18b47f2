/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

type plaintext struct {
	ID          string          `json:"id"`
	Typ         string          `json:"typ,omitempty"`
	Type        string          `json:"type"`
	From        string          `json:"from,omitempty"`
	To          []string        `json:"to,omitempty"`
	Thid        string          `json:"thid,omitempty"`
	Pthid       string          `json:"pthid,omitempty"`
	CreatedTime int64           `json:"created_time,omitempty"`
	ExpiresTime int64           `json:"expires_time,omitempty"`
	Body        json.RawMessage `json:"body"`
	Attachments []rawAttachment `json:"attachments,omitempty"`
}

var standardHeaders = map[string]bool{
	"id": true, "typ": true, "type": true, "from": true, "to": true, "thid": true, "pthid": true,
	"created_time": true, "expires_time": true, "body": true, "attachments": true,
}

// MarshalJSON renders the DIDComm v2 plaintext form. Direction is not part of the wire format.
func (m *Message) MarshalJSON() ([]byte, error) {
	p := plaintext{
		ID:    m.ID,
		Typ:   PlaintextMediaType,
		Type:  m.PIURI,
		Thid:  m.Thid,
		Pthid: m.Pthid,
		Body:  m.Body,
	}

	if len(p.Body) == 0 {
		p.Body = json.RawMessage("{}")
	}

	if m.From != nil {
		p.From = m.From.String()
	}

	if m.To != nil {
		p.To = []string{m.To.String()}
	}

	if !m.CreatedTime.IsZero() {
		p.CreatedTime = m.CreatedTime.Unix()
	}

	if !m.ExpiresTime.IsZero() {
		p.ExpiresTime = m.ExpiresTime.Unix()
	}

	for _, a := range m.Attachments {
		raw, err := a.toRaw()
		if err != nil {
			return nil, err
		}

		p.Attachments = append(p.Attachments, raw)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	if len(m.ExtraHeaders) == 0 {
		return data, nil
	}

	fields := make(map[string]json.RawMessage)

	if err = json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	for k, v := range m.ExtraHeaders {
		if standardHeaders[k] {
			continue
		}

		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}

		fields[k] = encoded
	}

	return json.Marshal(fields)
}

// UnmarshalJSON parses the DIDComm v2 plaintext form. The first entry of "to" is kept.
func (m *Message) UnmarshalJSON(data []byte) error {
	var p plaintext

	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode plaintext message: %w", err)
	}

	fields := make(map[string]json.RawMessage)

	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode plaintext message: %w", err)
	}

	out := Message{
		ID:    p.ID,
		PIURI: p.Type,
		Thid:  p.Thid,
		Pthid: p.Pthid,
		Body:  p.Body,
	}

	if p.From != "" {
		from, err := did.Parse(p.From)
		if err != nil {
			return fmt.Errorf("message from: %w", err)
		}

		out.From = from
	}

	if len(p.To) > 0 {
		to, err := did.Parse(p.To[0])
		if err != nil {
			return fmt.Errorf("message to: %w", err)
		}

		out.To = to
	}

	if p.CreatedTime != 0 {
		out.CreatedTime = time.Unix(p.CreatedTime, 0)
	}

	if p.ExpiresTime != 0 {
		out.ExpiresTime = time.Unix(p.ExpiresTime, 0)
	}

	for _, raw := range p.Attachments {
		a, err := raw.toDescriptor()
		if err != nil {
			return err
		}

		out.Attachments = append(out.Attachments, a)
	}

	for k, v := range fields {
		if standardHeaders[k] {
			continue
		}

		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}

		if out.ExtraHeaders == nil {
			out.ExtraHeaders = make(map[string]string)
		}

		out.ExtraHeaders[k] = s
	}

	*m = out

	return nil
}
