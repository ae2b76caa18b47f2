/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dispatcher

import (
	"context"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
)

// Packager is the DIDComm codec consumed by the dispatchers.
type Packager interface {
	Pack(ctx context.Context, msg *message.Message) (string, error)
	Unpack(ctx context.Context, envelope string) (*message.Message, error)
}

// Outbound sends a message to its recipient and returns the return-route reply, if any.
type Outbound interface {
	Send(ctx context.Context, msg *message.Message) (*message.Message, error)
}

// MessageHandler handles an unpacked inbound message. A non nil reply is packed and returned
// to the sender on the same connection.
type MessageHandler func(ctx context.Context, msg *message.Message) (*message.Message, error)
