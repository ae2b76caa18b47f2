/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import "context"

// OutboundTransport interface definition for transport layer
// This is the client side of the agent.
type OutboundTransport interface {
	// Send posts an encrypted envelope to destination and returns the response body, which
	// holds a return-route reply when the remote agent sends one.
	Send(ctx context.Context, data []byte, destination string) ([]byte, error)
}

// InboundMessageHandler handles a raw inbound envelope. A non-empty reply is written back
// on the same connection as a return-route response.
type InboundMessageHandler func(ctx context.Context, envelope []byte) ([]byte, error)
