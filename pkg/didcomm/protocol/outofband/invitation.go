/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package outofband parses and builds out-of-band 2.0 invitations, carried as raw JSON or in the
// `_oob` query parameter of a URL.
package outofband

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

const (
	// Name of this protocol.
	Name = "out-of-band/2.0"
	// PIURI is the Out-of-Band protocol's protocol instance URI.
	PIURI = "https://didcomm.org/" + Name
	// InvitationMsgType is the type of the invitation message.
	InvitationMsgType = PIURI + "/invitation"

	// QueryParameter carries the encoded invitation in invitation URLs.
	QueryParameter = "_oob"
)

// ErrInvalidInvitation is returned for input that is not an out-of-band invitation.
var ErrInvalidInvitation = errors.New("invalid out-of-band invitation")

// InvitationBody contains invitation's goal and accept headers.
type InvitationBody struct {
	Goal     string   `json:"goal,omitempty"`
	GoalCode string   `json:"goal_code,omitempty"`
	Accept   []string `json:"accept,omitempty"`
}

// Invitation is this protocol's `invitation` message.
type Invitation struct {
	ID          string
	From        did.DID
	Body        InvitationBody
	Attachments []message.AttachmentDescriptor
}

// NewInvitation builds an invitation from the inviter DID.
func NewInvitation(from *did.DID, body InvitationBody, attachments ...message.AttachmentDescriptor) (*message.Message, error) {
	if len(body.Accept) == 0 {
		body.Accept = []string{"didcomm/v2"}
	}

	return message.New(InvitationMsgType, from, nil, body, message.WithAttachments(attachments...))
}

// URL encodes the invitation into the `_oob` parameter of base.
func URL(base string, invitation *message.Message) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invitation url: %w", err)
	}

	raw, err := json.Marshal(invitation)
	if err != nil {
		return "", fmt.Errorf("invitation url: %w", err)
	}

	q := u.Query()
	q.Set(QueryParameter, base64.RawURLEncoding.EncodeToString(raw))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Parse accepts an invitation URL or the invitation JSON.
func Parse(invitation string) (*Invitation, error) {
	raw := []byte(strings.TrimSpace(invitation))

	if len(raw) > 0 && raw[0] != '{' {
		decoded, err := fromURL(string(raw))
		if err != nil {
			return nil, err
		}

		raw = decoded
	}

	msg := &message.Message{}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInvitation, err)
	}

	return ParseMessage(msg)
}

// ParseMessage decodes an invitation message. The inviter must be set and no recipient given.
func ParseMessage(msg *message.Message) (*Invitation, error) {
	if err := msg.CheckType(InvitationMsgType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInvitation, err)
	}

	if msg.From == nil {
		return nil, fmt.Errorf("%w: missing from", ErrInvalidInvitation)
	}

	if msg.To != nil {
		return nil, fmt.Errorf("%w: invitations have no recipient", ErrInvalidInvitation)
	}

	inv := &Invitation{ID: msg.ID, From: *msg.From, Attachments: msg.Attachments}

	if err := msg.DecodeBody(&inv.Body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInvitation, err)
	}

	return inv, nil
}

func fromURL(raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInvitation, err)
	}

	encoded := u.Query().Get(QueryParameter)
	if encoded == "" {
		return nil, fmt.Errorf("%w: no %s parameter", ErrInvalidInvitation, QueryParameter)
	}

	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding} {
		if decoded, e := enc.DecodeString(encoded); e == nil {
			return decoded, nil
		}
	}

	return nil, fmt.Errorf("%w: %s is not base64", ErrInvalidInvitation, QueryParameter)
}
