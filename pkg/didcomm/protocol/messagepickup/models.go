/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

// constants for the pickup protocol types.
const (
	// MessagePickup protocol name.
	MessagePickup = "messagepickup"

	// Spec defines the message pickup 3.0 spec.
	Spec = "https://didcomm.org/messagepickup/3.0/"

	// StatusRequestMsgType defines the status request message type.
	StatusRequestMsgType = Spec + "status-request"

	// StatusMsgType defines the status message type.
	StatusMsgType = Spec + "status"

	// DeliveryRequestMsgType defines the delivery request message type.
	DeliveryRequestMsgType = Spec + "delivery-request"

	// DeliveryMsgType defines the delivery message type.
	DeliveryMsgType = Spec + "delivery"

	// MessagesReceivedMsgType defines the messages received message type.
	MessagesReceivedMsgType = Spec + "messages-received"
)

// StatusRequest sent by the recipient to the message holder to request a status message.
type StatusRequest struct {
	RecipientDID string `json:"recipient_did,omitempty"`
}

// Status details about pending messages.
type Status struct {
	RecipientDID         string `json:"recipient_did,omitempty"`
	MessageCount         int    `json:"message_count"`
	LongestWaitedSeconds int64  `json:"longest_waited_seconds,omitempty"`
	NewestReceivedTime   int64  `json:"newest_received_time,omitempty"`
	OldestReceivedTime   int64  `json:"oldest_received_time,omitempty"`
	TotalBytes           int64  `json:"total_bytes,omitempty"`
	LiveDelivery         bool   `json:"live_delivery,omitempty"`
}

// DeliveryRequest a request to have up to limit waiting messages delivered as attachments.
type DeliveryRequest struct {
	Limit        int    `json:"limit"`
	RecipientDID string `json:"recipient_did,omitempty"`
}

// Delivery carries waiting messages as attachments.
type Delivery struct {
	RecipientDID string `json:"recipient_did,omitempty"`
}

// MessagesReceived acknowledges delivered messages by attachment id.
type MessagesReceived struct {
	MessageIDList []string `json:"message_id_list"`
}

// NewStatusRequest builds a status-request.
func NewStatusRequest(from, to *did.DID) (*message.Message, error) {
	return message.New(StatusRequestMsgType, from, to, StatusRequest{})
}

// NewDeliveryRequest builds a delivery-request for up to limit messages.
func NewDeliveryRequest(from, to *did.DID, limit int) (*message.Message, error) {
	return message.New(DeliveryRequestMsgType, from, to, DeliveryRequest{Limit: limit})
}

// NewMessagesReceived builds a messages-received acknowledgement.
func NewMessagesReceived(from, to *did.DID, ids []string) (*message.Message, error) {
	if ids == nil {
		ids = []string{}
	}

	return message.New(MessagesReceivedMsgType, from, to, MessagesReceived{MessageIDList: ids})
}

// ParseStatus decodes a status message.
func ParseStatus(msg *message.Message) (*Status, error) {
	if err := msg.CheckType(StatusMsgType); err != nil {
		return nil, err
	}

	status := &Status{}

	if err := msg.DecodeBody(status); err != nil {
		return nil, err
	}

	return status, nil
}
