/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outbound

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/route"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/transport"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/api"
)

var logger = log.New("aries-edge-agent/dispatcher/outbound")

// ErrNoDIDCommService is returned when a recipient DID document has no DIDComm service.
var ErrNoDIDCommService = errors.New("no DIDComm messaging service in DID document")

// Dispatcher packs messages, wraps them in forwards for mediator-fronted recipients and posts
// them over the outbound transport. It never retries.
type Dispatcher struct {
	packager  dispatcher.Packager
	resolver  api.DIDResolver
	transport transport.OutboundTransport
}

var _ dispatcher.Outbound = (*Dispatcher)(nil)

// NewOutbound return new dispatcher outbound instance.
func NewOutbound(packager dispatcher.Packager, resolver api.DIDResolver,
	outboundTransport transport.OutboundTransport) *Dispatcher {
	return &Dispatcher{
		packager:  packager,
		resolver:  resolver,
		transport: outboundTransport,
	}
}

// Send packs msg for msg.To and delivers it to the recipient's DIDComm service. When the service
// endpoint is itself a DID, the packed message is forwarded through that mediator. A return-route
// reply in the response body is unpacked and returned.
func (o *Dispatcher) Send(ctx context.Context, msg *message.Message) (*message.Message, error) {
	packed, err := o.packager.Pack(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("outboundDispatcher.Send: %w", err)
	}

	uri, err := o.serviceURI(ctx, *msg.To)
	if err != nil {
		return nil, fmt.Errorf("outboundDispatcher.Send: %w", err)
	}

	if mediatorDID, ok := asDID(uri); ok {
		packed, err = o.createForwardMessage(ctx, msg, mediatorDID, packed)
		if err != nil {
			return nil, fmt.Errorf("outboundDispatcher.Send: failed to create forward msg: %w", err)
		}

		uri, err = o.serviceURI(ctx, *mediatorDID)
		if err != nil {
			return nil, fmt.Errorf("outboundDispatcher.Send: mediator: %w", err)
		}

		if _, nested := asDID(uri); nested {
			return nil, fmt.Errorf("outboundDispatcher.Send: mediator %s endpoint is a DID: %w",
				mediatorDID.String(), ErrNoDIDCommService)
		}
	}

	resp, err := o.transport.Send(ctx, []byte(packed), uri)
	if err != nil {
		return nil, fmt.Errorf("outboundDispatcher.Send: %w", err)
	}

	logger.Debugf("sent %s %s to %s", msg.PIURI, msg.ID, uri)

	if len(strings.TrimSpace(string(resp))) == 0 {
		return nil, nil
	}

	reply, err := o.packager.Unpack(ctx, string(resp))
	if err != nil {
		return nil, fmt.Errorf("outboundDispatcher.Send: return route reply: %w", err)
	}

	return reply, nil
}

func (o *Dispatcher) createForwardMessage(ctx context.Context, msg *message.Message, mediatorDID *did.DID,
	packed string) (string, error) {
	forward, err := route.NewForward(msg.From, mediatorDID, *msg.To, packed)
	if err != nil {
		return "", err
	}

	return o.packager.Pack(ctx, forward)
}

func (o *Dispatcher) serviceURI(ctx context.Context, d did.DID) (string, error) {
	doc, err := o.resolver.Resolve(ctx, d.String())
	if err != nil {
		return "", err
	}

	services := doc.DIDCommServices()
	if len(services) == 0 || services[0].ServiceEndpoint.URI == "" {
		return "", fmt.Errorf("%w: %s", ErrNoDIDCommService, d.String())
	}

	return services[0].ServiceEndpoint.URI, nil
}

func asDID(uri string) (*did.DID, bool) {
	if !strings.HasPrefix(uri, "did:") {
		return nil, false
	}

	d, err := did.Parse(uri)
	if err != nil {
		return nil, false
	}

	return d, true
}
