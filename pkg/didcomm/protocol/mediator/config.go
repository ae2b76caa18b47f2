/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/store"
)

// Config provides the router configuration a mediated DID publishes in its DIDComm service.
type Config struct {
	routerEndpoint string
	routingKeys    []string
}

// NewConfig creates new config instance.
func NewConfig(endpoint string, keys []string) *Config {
	return &Config{
		routerEndpoint: endpoint,
		routingKeys:    keys,
	}
}

// configFor returns the configuration granted by m: the endpoint is the routing DID.
func configFor(m *store.Mediator) *Config {
	return NewConfig(m.RoutingDID.String(), nil)
}

// Endpoint returns router endpoint.
func (c *Config) Endpoint() string {
	return c.routerEndpoint
}

// Service returns the DIDComm service a mediated DID publishes.
func (c *Config) Service() did.Service {
	return did.Service{
		Type: did.DIDCommMessagingServiceType,
		ServiceEndpoint: did.ServiceEndpoint{
			URI:         c.routerEndpoint,
			RoutingKeys: c.routingKeys,
			Accept:      []string{"didcomm/v2"},
		},
	}
}
