/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inbound

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/transport"
)

var logger = log.New("aries-edge-agent/dispatcher/inbound")

// MessageHandler handles inbound envelopes, unpacking them then dispatching the message to the
// registered handler.
type MessageHandler struct {
	packager dispatcher.Packager
	handle   dispatcher.MessageHandler
}

// NewInboundMessageHandler creates an inbound message handler.
func NewInboundMessageHandler(packager dispatcher.Packager, handle dispatcher.MessageHandler) (*MessageHandler, error) {
	if packager == nil || handle == nil {
		return nil, errors.New("inbound message handler: packager and handler are mandatory")
	}

	return &MessageHandler{packager: packager, handle: handle}, nil
}

// HandlerFunc returns the handler as a transport inbound callback.
func (h *MessageHandler) HandlerFunc() transport.InboundMessageHandler {
	return h.HandleInboundEnvelope
}

// HandleInboundEnvelope unpacks envelope and dispatches it. A reply from the handler is packed
// and returned for the return route.
func (h *MessageHandler) HandleInboundEnvelope(ctx context.Context, envelope []byte) ([]byte, error) {
	msg, err := h.packager.Unpack(ctx, string(envelope))
	if err != nil {
		return nil, fmt.Errorf("inbound: unpack: %w", err)
	}

	logger.Debugf("received %s %s", msg.PIURI, msg.ID)

	reply, err := h.handle(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("inbound: handle %s: %w", msg.PIURI, err)
	}

	if reply == nil {
		return nil, nil
	}

	packed, err := h.packager.Pack(ctx, reply)
	if err != nil {
		return nil, fmt.Errorf("inbound: pack reply: %w", err)
	}

	return []byte(packed), nil
}
