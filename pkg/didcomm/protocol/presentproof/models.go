/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package presentproof holds the present-proof 3.0 messages exchanged between a prover and a verifier.
package presentproof

import (
	"fmt"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

const (
	// Name defines the protocol name.
	Name = "present-proof"
	// SpecV3 defines the protocol spec.
	SpecV3 = "https://didcomm.org/present-proof/3.0/"
	// ProposePresentationMsgTypeV3 defines the protocol propose-presentation message type.
	ProposePresentationMsgTypeV3 = SpecV3 + "propose-presentation"
	// RequestPresentationMsgTypeV3 defines the protocol request-presentation message type.
	RequestPresentationMsgTypeV3 = SpecV3 + "request-presentation"
	// PresentationMsgTypeV3 defines the protocol presentation message type.
	PresentationMsgTypeV3 = SpecV3 + "presentation"
)

// ProposePresentationV3Body represents body for ProposePresentationV3.
type ProposePresentationV3Body struct {
	GoalCode string `json:"goal_code,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// RequestPresentationV3Body represents body for RequestPresentationV3.
type RequestPresentationV3Body struct {
	GoalCode    string `json:"goal_code,omitempty"`
	Comment     string `json:"comment,omitempty"`
	WillConfirm bool   `json:"will_confirm,omitempty"`
}

// PresentationV3Body represents body for PresentationV3.
type PresentationV3Body struct {
	GoalCode string `json:"goal_code,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// RequestPresentationV3 describes values that need to be revealed and predicates that need to be fulfilled.
type RequestPresentationV3 struct {
	ID          string
	Thid        string
	From        did.DID
	To          did.DID
	Body        RequestPresentationV3Body
	Attachments []message.AttachmentDescriptor
}

// ThreadID returns the thread of the request.
func (r *RequestPresentationV3) ThreadID() string {
	if r.Thid != "" {
		return r.Thid
	}

	return r.ID
}

// NewProposePresentation builds a propose-presentation from the prover to the verifier.
func NewProposePresentation(from, to *did.DID, body ProposePresentationV3Body,
	attachments ...message.AttachmentDescriptor) (*message.Message, error) {
	return message.New(ProposePresentationMsgTypeV3, from, to, body, message.WithAttachments(attachments...))
}

// NewRequestPresentation builds a request-presentation from the verifier to the prover.
func NewRequestPresentation(from, to *did.DID, body RequestPresentationV3Body,
	attachments ...message.AttachmentDescriptor) (*message.Message, error) {
	return message.New(RequestPresentationMsgTypeV3, from, to, body, message.WithAttachments(attachments...))
}

// ParseRequestPresentation decodes a request-presentation.
func ParseRequestPresentation(msg *message.Message) (*RequestPresentationV3, error) {
	if err := msg.CheckType(RequestPresentationMsgTypeV3); err != nil {
		return nil, err
	}

	if msg.From == nil || msg.To == nil {
		return nil, fmt.Errorf("%s: from and to are mandatory", msg.PIURI)
	}

	req := &RequestPresentationV3{
		ID:          msg.ID,
		Thid:        msg.Thid,
		From:        *msg.From,
		To:          *msg.To,
		Attachments: msg.Attachments,
	}

	if err := msg.DecodeBody(&req.Body); err != nil {
		return nil, err
	}

	return req, nil
}

// PresentationFromRequest answers a request with the presentations, on the request thread.
func PresentationFromRequest(req *RequestPresentationV3,
	presentations ...message.AttachmentDescriptor) (*message.Message, error) {
	return message.New(PresentationMsgTypeV3, &req.To, &req.From, PresentationV3Body{GoalCode: req.Body.GoalCode},
		message.WithThid(req.ThreadID()), message.WithAttachments(presentations...))
}
