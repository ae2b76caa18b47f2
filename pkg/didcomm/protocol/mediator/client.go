/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mediator is the client side of DIDComm v2 coordinate mediation and message pickup. The
// client owns the mediator record granted to this agent; the record is loaded from the store,
// negotiated at most once at a time, and only replaced after a grant has been persisted.
package mediator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"
	"golang.org/x/sync/singleflight"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/dispatcher"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/messagepickup"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/store"
)

var logger = log.New("aries-edge-agent/mediator")

var (
	// ErrNoMediatorAvailable is returned by operations that need an active mediator.
	ErrNoMediatorAvailable = errors.New("no mediator available")
	// ErrMediationRequestFailed is returned when the mediator does not grant mediation.
	ErrMediationRequestFailed = errors.New("mediation request failed")
	// ErrKeylistUpdateFailed is returned when the mediator rejects a key list update.
	ErrKeylistUpdateFailed = errors.New("keylist update failed")
)

// Client negotiates mediation with one mediator DID and drives pickup through it.
type Client struct {
	mediatorDID did.DID
	outbound    dispatcher.Outbound
	unpacker    messagepickup.Unpacker
	store       store.MediatorStore

	negotiation singleflight.Group

	mu       sync.RWMutex
	mediator *store.Mediator
}

// NewClient returns a mediation client for mediatorDID.
func NewClient(mediatorDID did.DID, outbound dispatcher.Outbound, unpacker messagepickup.Unpacker,
	mediatorStore store.MediatorStore) *Client {
	return &Client{
		mediatorDID: mediatorDID,
		outbound:    outbound,
		unpacker:    unpacker,
		store:       mediatorStore,
	}
}

// MediatorDID returns the DID of the mediator this client talks to.
func (c *Client) MediatorDID() did.DID {
	return c.mediatorDID
}

// Mediator returns the active mediator record, nil before boot or mediation.
func (c *Client) Mediator() *store.Mediator {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.mediator == nil {
		return nil
	}

	m := *c.mediator

	return &m
}

// Config returns the routing configuration of the active mediator.
func (c *Client) Config() (*Config, error) {
	m := c.Mediator()
	if m == nil {
		return nil, ErrNoMediatorAvailable
	}

	return configFor(m), nil
}

func (c *Client) setMediator(m store.Mediator) {
	c.mu.Lock()
	c.mediator = &m
	c.mu.Unlock()
}

// BootRegisteredMediator loads the persisted mediator record for this mediator DID. It returns
// nil without error when none is stored. Once loaded the record is served from memory.
func (c *Client) BootRegisteredMediator(ctx context.Context) (*store.Mediator, error) {
	if m := c.Mediator(); m != nil {
		return m, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mediators, err := c.store.GetAllMediators()
	if err != nil {
		return nil, fmt.Errorf("boot registered mediator: %w", err)
	}

	for _, m := range mediators {
		if m.MediatorDID.Equal(c.mediatorDID) {
			c.setMediator(m)

			logger.Infof("booted mediator %s routing %s", m.MediatorDID.String(), m.RoutingDID.String())

			return c.Mediator(), nil
		}
	}

	return nil, nil
}

// AchieveMediation returns the active mediator, negotiating one for host when none is booted.
// Concurrent callers share a single negotiation.
func (c *Client) AchieveMediation(ctx context.Context, host did.DID) (*store.Mediator, error) {
	if m := c.Mediator(); m != nil {
		return m, nil
	}

	v, err, shared := c.negotiation.Do(c.mediatorDID.String(), func() (interface{}, error) {
		if m := c.Mediator(); m != nil {
			return m, nil
		}

		return c.requestMediation(ctx, host)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		logger.Debugf("joined in-flight mediation with %s", c.mediatorDID.String())
	}

	m := v.(*store.Mediator) //nolint:errcheck,forcetypeassert

	return m, nil
}

func (c *Client) requestMediation(ctx context.Context, host did.DID) (*store.Mediator, error) {
	req, err := NewRequest(&host, &c.mediatorDID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMediationRequestFailed, err)
	}

	reply, err := c.outbound.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMediationRequestFailed, err)
	}

	if reply == nil {
		return nil, fmt.Errorf("%w: no reply from %s", ErrMediationRequestFailed, c.mediatorDID.String())
	}

	grant, err := ParseGrant(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMediationRequestFailed, err)
	}

	m := store.Mediator{
		ID:          uuid.New().String(),
		MediatorDID: c.mediatorDID,
		HostDID:     host,
		RoutingDID:  grant.RoutingDID,
	}

	if err = c.store.StoreMediator(m); err != nil {
		return nil, fmt.Errorf("save mediator: %w", err)
	}

	c.setMediator(m)

	logger.Infof("mediation granted by %s, routing DID %s", c.mediatorDID.String(), m.RoutingDID.String())

	return c.Mediator(), nil
}

// UpdateKeyListWithDIDs registers dids as recipients at the mediator.
func (c *Client) UpdateKeyListWithDIDs(ctx context.Context, dids []did.DID) error {
	m := c.Mediator()
	if m == nil {
		return ErrNoMediatorAvailable
	}

	update, err := NewKeylistUpdate(&m.HostDID, &m.MediatorDID, ActionAdd, dids)
	if err != nil {
		return fmt.Errorf("keylist update: %w", err)
	}

	reply, err := c.outbound.Send(ctx, update)
	if err != nil {
		return fmt.Errorf("keylist update: %w", err)
	}

	if reply == nil {
		return nil
	}

	resp, err := ParseKeylistUpdateResponse(reply)
	if err != nil {
		return fmt.Errorf("keylist update: %w", err)
	}

	for _, u := range resp.Updated {
		if u.Result != ResultSuccess && u.Result != ResultNoChange {
			return fmt.Errorf("%w: %s %s: %s", ErrKeylistUpdateFailed, u.Action, u.RecipientDID, u.Result)
		}
	}

	return nil
}

// PickupUnreadMessages asks the mediator for up to limit queued messages and unpacks them. A
// problem report from the mediator is returned as a *reportproblem.ProblemReport error.
func (c *Client) PickupUnreadMessages(ctx context.Context, limit int) (*messagepickup.Pickup, error) {
	m := c.Mediator()
	if m == nil {
		return nil, ErrNoMediatorAvailable
	}

	req, err := messagepickup.NewDeliveryRequest(&m.HostDID, &m.MediatorDID, limit)
	if err != nil {
		return nil, fmt.Errorf("pickup: %w", err)
	}

	reply, err := c.outbound.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pickup: %w", err)
	}

	if reply == nil {
		return &messagepickup.Pickup{Messages: []messagepickup.PickedUp{}, Rejected: []string{}}, nil
	}

	picked, err := messagepickup.NewRunner(reply, c.unpacker).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("pickup: %w", err)
	}

	return picked, nil
}

// RegisterMessagesAsRead acknowledges delivered messages by attachment id. No reply is expected.
func (c *Client) RegisterMessagesAsRead(ctx context.Context, ids []string) error {
	m := c.Mediator()
	if m == nil {
		return ErrNoMediatorAvailable
	}

	ack, err := messagepickup.NewMessagesReceived(&m.HostDID, &m.MediatorDID, ids)
	if err != nil {
		return fmt.Errorf("messages received: %w", err)
	}

	reply, err := c.outbound.Send(ctx, ack)
	if err != nil {
		return fmt.Errorf("messages received: %w", err)
	}

	if reply != nil {
		logger.Debugf("ignoring %s reply to messages-received", reply.PIURI)
	}

	return nil
}

// StatusRequest asks the mediator how many messages are queued.
func (c *Client) StatusRequest(ctx context.Context) (*messagepickup.Status, error) {
	m := c.Mediator()
	if m == nil {
		return nil, ErrNoMediatorAvailable
	}

	req, err := messagepickup.NewStatusRequest(&m.HostDID, &m.MediatorDID)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}

	reply, err := c.outbound.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}

	if reply == nil {
		return nil, fmt.Errorf("status request: %w", messagepickup.ErrUnexpectedResponse)
	}

	return messagepickup.ParseStatus(reply)
}
