/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package route holds the DIDComm v2 routing protocol forward message. A forward is addressed to
// a mediator and carries another encrypted envelope for the DID named in its `next` body field.
package route

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

// constants for the routing spec types.
const (
	// Routing protocol name.
	Routing = "routing"

	// RoutingSpec defines the routing spec.
	RoutingSpec = "https://didcomm.org/routing/2.0/"

	// ForwardMsgType defines the forward message type.
	ForwardMsgType = RoutingSpec + "forward"
)

// ErrNoForwardedMessage is returned for a forward without an attached envelope.
var ErrNoForwardedMessage = errors.New("forward message has no attached envelope")

// ForwardBody is the body of a forward message.
type ForwardBody struct {
	Next string `json:"next"`
}

// Forward is a decoded forward message.
type Forward struct {
	ID       string
	From     *did.DID
	To       *did.DID
	Next     did.DID
	Envelope []byte
}

// NewForward wraps the packed envelope for next into a forward message addressed to the mediator.
func NewForward(from, mediator *did.DID, next did.DID, packed string) (*message.Message, error) {
	attachment := message.AttachmentDescriptor{
		Data:      message.JSON{JSON: json.RawMessage(packed)},
		MediaType: transport.MediaTypeV2EncryptedEnvelope,
	}

	// compact serialized envelopes are not JSON
	if !json.Valid([]byte(packed)) {
		attachment.Data = message.Base64{Base64: base64.RawURLEncoding.EncodeToString([]byte(packed))}
	}

	msg, err := message.New(ForwardMsgType, from, mediator, ForwardBody{Next: next.String()})
	if err != nil {
		return nil, fmt.Errorf("new forward: %w", err)
	}

	attachment.ID = msg.ID
	msg.Attachments = []message.AttachmentDescriptor{attachment}

	return msg, nil
}

// ParseForward decodes a forward message.
func ParseForward(msg *message.Message) (*Forward, error) {
	if err := msg.CheckType(ForwardMsgType); err != nil {
		return nil, err
	}

	var body ForwardBody

	if err := msg.DecodeBody(&body); err != nil {
		return nil, err
	}

	next, err := did.Parse(body.Next)
	if err != nil {
		return nil, fmt.Errorf("forward next: %w", err)
	}

	if len(msg.Attachments) == 0 {
		return nil, ErrNoForwardedMessage
	}

	envelope, err := msg.Attachments[0].Bytes()
	if err != nil {
		return nil, fmt.Errorf("forward attachment: %w", err)
	}

	return &Forward{
		ID:       msg.ID,
		From:     msg.From,
		To:       msg.To,
		Next:     *next,
		Envelope: envelope,
	}, nil
}
