/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package message holds the domain DIDComm v2 message and its attachments.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

// Media types of DIDComm v2 envelopes.
const (
	PlaintextMediaType = "application/didcomm-plain+json"
	EncryptedMediaType = "application/didcomm-encrypted+json"
)

// ErrInvalidMessageType is wrapped by every InvalidTypeError.
var ErrInvalidMessageType = errors.New("invalid message type")

// InvalidTypeError is returned when a message is decoded as a protocol message it is not.
type InvalidTypeError struct {
	Expected string
	Actual   string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid message type: expected %q, got %q", e.Expected, e.Actual)
}

// Unwrap returns ErrInvalidMessageType.
func (e *InvalidTypeError) Unwrap() error {
	return ErrInvalidMessageType
}

// Direction tells whether a message was sent or received by this agent.
type Direction int

const (
	// Sent by this agent.
	Sent Direction = iota
	// Received by this agent.
	Received
)

func (d Direction) String() string {
	if d == Received {
		return "RECEIVED"
	}

	return "SENT"
}

// Message is a DIDComm v2 plaintext message.
type Message struct {
	ID           string
	PIURI        string
	From         *did.DID
	To           *did.DID
	Body         json.RawMessage
	Thid         string
	Pthid        string
	Attachments  []AttachmentDescriptor
	Direction    Direction
	CreatedTime  time.Time
	ExpiresTime  time.Time
	ExtraHeaders map[string]string
}

// Option configures a new Message.
type Option func(m *Message)

// WithID overrides the generated message id.
func WithID(id string) Option {
	return func(m *Message) {
		m.ID = id
	}
}

// WithThid sets the thread id.
func WithThid(thid string) Option {
	return func(m *Message) {
		m.Thid = thid
	}
}

// WithPthid sets the parent thread id.
func WithPthid(pthid string) Option {
	return func(m *Message) {
		m.Pthid = pthid
	}
}

// WithAttachments appends attachments.
func WithAttachments(attachments ...AttachmentDescriptor) Option {
	return func(m *Message) {
		m.Attachments = append(m.Attachments, attachments...)
	}
}

// WithExpiresTime sets the expiry.
func WithExpiresTime(t time.Time) Option {
	return func(m *Message) {
		m.ExpiresTime = time.Unix(t.Unix(), 0)
	}
}

// WithExtraHeader sets a top-level header outside the standard set.
func WithExtraHeader(name, value string) Option {
	return func(m *Message) {
		if m.ExtraHeaders == nil {
			m.ExtraHeaders = make(map[string]string)
		}

		m.ExtraHeaders[name] = value
	}
}

// New creates a message of type piuri with body marshalled to JSON. It gets a random id
// and a creation time with second precision.
func New(piuri string, from, to *did.DID, body interface{}, opts ...Option) (*Message, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", piuri, err)
	}

	if string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	m := &Message{
		ID:          uuid.New().String(),
		PIURI:       piuri,
		From:        from,
		To:          to,
		Body:        raw,
		CreatedTime: time.Unix(time.Now().Unix(), 0),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// CheckType returns an InvalidTypeError when the message is not of type piuri.
func (m *Message) CheckType(piuri string) error {
	if m.PIURI != piuri {
		return &InvalidTypeError{Expected: piuri, Actual: m.PIURI}
	}

	return nil
}

// DecodeBody unmarshals the body into v.
func (m *Message) DecodeBody(v interface{}) error {
	body := m.Body
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s body: %w", m.PIURI, err)
	}

	return nil
}

// ThreadID returns the thread id, which is the message id for the first message of a thread.
func (m *Message) ThreadID() string {
	if m.Thid != "" {
		return m.Thid
	}

	return m.ID
}
