/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"fmt"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

// constants for coordinate mediation spec types.
const (
	// Coordination coordinate mediation protocol.
	Coordination = "coordinate-mediation"

	// CoordinationSpec defines the coordinate mediation spec.
	CoordinationSpec = "https://didcomm.org/coordinate-mediation/2.0/"

	// RequestMsgType defines the mediate request message type.
	RequestMsgType = CoordinationSpec + "mediate-request"

	// GrantMsgType defines the mediate grant message type.
	GrantMsgType = CoordinationSpec + "mediate-grant"

	// DenyMsgType defines the mediate deny message type.
	DenyMsgType = CoordinationSpec + "mediate-deny"

	// KeylistUpdateMsgType defines the key list update message type.
	KeylistUpdateMsgType = CoordinationSpec + "keylist-update"

	// KeylistUpdateResponseMsgType defines the key list update response message type.
	KeylistUpdateResponseMsgType = CoordinationSpec + "keylist-update-response"
)

// constants for key list update processing.
const (
	// ActionAdd adds a recipient DID.
	ActionAdd = "add"

	// ActionRemove removes a recipient DID.
	ActionRemove = "remove"

	// ResultSuccess key update success.
	ResultSuccess = "success"

	// ResultNoChange key already in the requested state.
	ResultNoChange = "no_change"
)

// GrantBody is the body of a mediate grant.
type GrantBody struct {
	RoutingDID string `json:"routing_did"`
}

// Grant is a decoded mediate grant.
type Grant struct {
	ID         string
	Thid       string
	From       *did.DID
	To         *did.DID
	RoutingDID did.DID
}

// Update is a key list update entry.
type Update struct {
	RecipientDID string `json:"recipient_did"`
	Action       string `json:"action"`
}

// KeylistUpdate is the body of a key list update.
type KeylistUpdate struct {
	Updates []Update `json:"updates"`
}

// UpdateResponse is a key list update response entry.
type UpdateResponse struct {
	RecipientDID string `json:"recipient_did"`
	Action       string `json:"action"`
	Result       string `json:"result"`
}

// KeylistUpdateResponse is the body of a key list update response.
type KeylistUpdateResponse struct {
	Updated []UpdateResponse `json:"updated"`
}

// NewRequest builds a mediate request from host to the mediator.
func NewRequest(host, mediatorDID *did.DID) (*message.Message, error) {
	return message.New(RequestMsgType, host, mediatorDID, struct{}{})
}

// ParseGrant decodes a mediate grant.
func ParseGrant(msg *message.Message) (*Grant, error) {
	if err := msg.CheckType(GrantMsgType); err != nil {
		return nil, err
	}

	var body GrantBody

	if err := msg.DecodeBody(&body); err != nil {
		return nil, err
	}

	routingDID, err := did.Parse(body.RoutingDID)
	if err != nil {
		return nil, fmt.Errorf("mediate grant routing_did: %w", err)
	}

	return &Grant{
		ID:         msg.ID,
		Thid:       msg.Thid,
		From:       msg.From,
		To:         msg.To,
		RoutingDID: *routingDID,
	}, nil
}

// NewKeylistUpdate builds a key list update applying action to every DID.
func NewKeylistUpdate(host, mediatorDID *did.DID, action string, dids []did.DID) (*message.Message, error) {
	body := KeylistUpdate{Updates: make([]Update, len(dids))}

	for i, d := range dids {
		body.Updates[i] = Update{RecipientDID: d.String(), Action: action}
	}

	return message.New(KeylistUpdateMsgType, host, mediatorDID, body)
}

// ParseKeylistUpdateResponse decodes a key list update response.
func ParseKeylistUpdateResponse(msg *message.Message) (*KeylistUpdateResponse, error) {
	if err := msg.CheckType(KeylistUpdateResponseMsgType); err != nil {
		return nil, err
	}

	resp := &KeylistUpdateResponse{}

	if err := msg.DecodeBody(resp); err != nil {
		return nil, err
	}

	return resp, nil
}
