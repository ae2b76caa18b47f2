/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"fmt"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/dispatcher/inbound"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	transporthttp "github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/transport/http"
)

// StartInbound serves a direct DIDComm HTTP endpoint on address and path and returns its URL.
// Received messages are stored like picked up ones.
func (a *Agent) StartInbound(address, path string) (string, error) {
	if err := a.checkRunning(); err != nil {
		return "", err
	}

	handler, err := inbound.NewInboundMessageHandler(a.packager, a.receive)
	if err != nil {
		return "", fmt.Errorf("start inbound: %w", err)
	}

	endpoint, err := transporthttp.NewInbound(address, path, handler.HandlerFunc())
	if err != nil {
		return "", fmt.Errorf("start inbound: %w", err)
	}

	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if a.inbound != nil {
		return "", fmt.Errorf("start inbound: already serving %s", a.inbound.Endpoint())
	}

	if err = endpoint.Start(); err != nil {
		return "", fmt.Errorf("start inbound: %w", err)
	}

	a.inbound = endpoint

	return endpoint.Endpoint(), nil
}

func (a *Agent) receive(_ context.Context, msg *message.Message) (*message.Message, error) {
	msg.Direction = message.Received

	if err := a.store.StoreMessages(msg); err != nil {
		return nil, err
	}

	a.handleReceived(msg)

	return nil, nil
}
