/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mediator provides an in-memory DIDComm v2 mediator served over HTTP for tests. It grants
// mediation with its own DID as routing DID, accepts forwards for registered recipients and serves
// them back through message pickup.
package mediator

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/dispatcher/inbound"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/packager"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/messagepickup"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/reportproblem"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/route"
	transporthttp "github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/internal/test/makemockdoc"
	"github.com/hyperledger/aries-edge-agent-go/pkg/kms"
	"github.com/hyperledger/aries-edge-agent-go/pkg/store"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/peer"
)

type queued struct {
	id       string
	envelope []byte
}

// Mediator is a test mediator.
type Mediator struct {
	DID *did.DID
	URL string

	server   *httptest.Server
	packager *packager.Packager

	mu            sync.Mutex
	deny          bool
	problemReport bool
	hosts         map[string]bool
	recipients    map[string]string
	queues        map[string][]queued
	requests      map[string]int
}

// New starts a mediator with a fresh peer DID whose DIDComm service is the server URL.
func New(t *testing.T) *Mediator {
	t.Helper()

	s, err := store.New(mem.NewProvider())
	require.NoError(t, err)

	keyManager := kms.New(s)

	m := &Mediator{
		packager:   packager.New(vdr.New(vdr.WithResolver(peer.NewResolver())), keyManager),
		hosts:      map[string]bool{},
		recipients: map[string]string{},
		queues:     map[string][]queued{},
		requests:   map[string]int{},
	}

	handler, err := inbound.NewInboundMessageHandler(m.packager, m.handle)
	require.NoError(t, err)

	httpHandler, err := transporthttp.NewInboundHandler(handler.HandlerFunc())
	require.NoError(t, err)

	m.server = httptest.NewUnstartedServer(httpHandler)
	m.URL = "http://" + m.server.Listener.Addr().String()
	m.DID = makemockdoc.MakePeerDID(t, keyManager, makemockdoc.DIDCommService(m.URL))

	m.server.Start()
	t.Cleanup(m.server.Close)

	return m
}

// SetDeny makes mediate requests answer with a deny.
func (m *Mediator) SetDeny(deny bool) {
	m.mu.Lock()
	m.deny = deny
	m.mu.Unlock()
}

// SetProblemReport makes delivery requests answer with a problem report.
func (m *Mediator) SetProblemReport(report bool) {
	m.mu.Lock()
	m.problemReport = report
	m.mu.Unlock()
}

// Requests returns how many messages of type piuri were received.
func (m *Mediator) Requests(piuri string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.requests[piuri]
}

// Queued returns the number of envelopes waiting for host.
func (m *Mediator) Queued(host did.DID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.queues[host.String()])
}

// Registered reports whether recipient was added to the key list.
func (m *Mediator) Registered(recipient did.DID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.recipients[recipient.String()]

	return ok
}

// Enqueue queues an envelope for host as if it had been forwarded.
func (m *Mediator) Enqueue(host did.DID, envelope []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.enqueue(host.String(), envelope)
}

func (m *Mediator) enqueue(owner string, envelope []byte) string {
	id := uuid.New().String()
	m.queues[owner] = append(m.queues[owner], queued{id: id, envelope: envelope})

	return id
}

func (m *Mediator) handle(_ context.Context, msg *message.Message) (*message.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests[msg.PIURI]++

	switch msg.PIURI {
	case mediator.RequestMsgType:
		return m.mediate(msg)
	case mediator.KeylistUpdateMsgType:
		return m.updateKeys(msg)
	case route.ForwardMsgType:
		return nil, m.forward(msg)
	case messagepickup.StatusRequestMsgType:
		return m.status(msg)
	case messagepickup.DeliveryRequestMsgType:
		return m.deliver(msg)
	case messagepickup.MessagesReceivedMsgType:
		return nil, m.received(msg)
	}

	return nil, fmt.Errorf("mock mediator: unsupported message type %s", msg.PIURI)
}

func (m *Mediator) mediate(msg *message.Message) (*message.Message, error) {
	if m.deny {
		return message.New(mediator.DenyMsgType, m.DID, msg.From, struct{}{}, message.WithThid(msg.ID))
	}

	m.hosts[msg.From.String()] = true

	return message.New(mediator.GrantMsgType, m.DID, msg.From,
		mediator.GrantBody{RoutingDID: m.DID.String()}, message.WithThid(msg.ID))
}

func (m *Mediator) updateKeys(msg *message.Message) (*message.Message, error) {
	var update mediator.KeylistUpdate

	if err := msg.DecodeBody(&update); err != nil {
		return nil, err
	}

	resp := mediator.KeylistUpdateResponse{Updated: []mediator.UpdateResponse{}}

	for _, u := range update.Updates {
		result := mediator.ResultSuccess

		switch {
		case !m.hosts[msg.From.String()]:
			result = "client_error"
		case u.Action == mediator.ActionAdd:
			if _, ok := m.recipients[u.RecipientDID]; ok {
				result = mediator.ResultNoChange
			}

			m.recipients[u.RecipientDID] = msg.From.String()
		case u.Action == mediator.ActionRemove:
			delete(m.recipients, u.RecipientDID)
		}

		resp.Updated = append(resp.Updated, mediator.UpdateResponse{
			RecipientDID: u.RecipientDID,
			Action:       u.Action,
			Result:       result,
		})
	}

	return message.New(mediator.KeylistUpdateResponseMsgType, m.DID, msg.From, resp, message.WithThid(msg.ID))
}

func (m *Mediator) forward(msg *message.Message) error {
	fwd, err := route.ParseForward(msg)
	if err != nil {
		return err
	}

	owner, ok := m.recipients[fwd.Next.String()]
	if !ok {
		owner = fwd.Next.String()
	}

	m.enqueue(owner, fwd.Envelope)

	return nil
}

func (m *Mediator) status(msg *message.Message) (*message.Message, error) {
	return message.New(messagepickup.StatusMsgType, m.DID, msg.From,
		messagepickup.Status{MessageCount: len(m.queues[msg.From.String()])}, message.WithThid(msg.ID))
}

func (m *Mediator) deliver(msg *message.Message) (*message.Message, error) {
	if m.problemReport {
		return reportproblem.New(m.DID, msg.From, msg.ID, reportproblem.Body{
			Code:    "e.p.xfer.cant-deliver",
			Comment: "delivery unavailable",
		})
	}

	var req messagepickup.DeliveryRequest

	if err := msg.DecodeBody(&req); err != nil {
		return nil, err
	}

	queue := m.queues[msg.From.String()]
	if len(queue) == 0 {
		return m.status(msg)
	}

	if req.Limit > 0 && len(queue) > req.Limit {
		queue = queue[:req.Limit]
	}

	attachments := make([]message.AttachmentDescriptor, len(queue))

	for i, q := range queue {
		attachments[i] = message.NewBase64Attachment(q.envelope, "")
		attachments[i].ID = q.id
	}

	return message.New(messagepickup.DeliveryMsgType, m.DID, msg.From, messagepickup.Delivery{},
		message.WithThid(msg.ID), message.WithAttachments(attachments...))
}

func (m *Mediator) received(msg *message.Message) error {
	var ack messagepickup.MessagesReceived

	if err := msg.DecodeBody(&ack); err != nil {
		return err
	}

	read := make(map[string]bool, len(ack.MessageIDList))
	for _, id := range ack.MessageIDList {
		read[id] = true
	}

	owner := msg.From.String()
	remaining := m.queues[owner][:0]

	for _, q := range m.queues[owner] {
		if !read[q.id] {
			remaining = append(remaining, q)
		}
	}

	m.queues[owner] = remaining

	return nil
}
