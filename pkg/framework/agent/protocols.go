/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/issuecredential"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/outofband"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/presentproof"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/store"
)

// ParseInvitation decodes an out-of-band invitation URL or JSON document.
func (a *Agent) ParseInvitation(invitation string) (*outofband.Invitation, error) {
	return outofband.Parse(invitation)
}

// AcceptInvitation answers an invitation with a trust ping from a new mediated peer DID and
// registers the resulting connection under alias.
func (a *Agent) AcceptInvitation(ctx context.Context, invitation *outofband.Invitation, alias string) (*did.DID, error) {
	if err := a.checkRunning(); err != nil {
		return nil, err
	}

	holder, err := a.CreateNewPeerDID(ctx, nil, a.mediator != nil)
	if err != nil {
		return nil, fmt.Errorf("accept invitation %s: %w", invitation.ID, err)
	}

	receiver := invitation.From

	ping, err := message.New(TrustPingMsgType, holder, &receiver, map[string]bool{"response_requested": true},
		message.WithPthid(invitation.ID))
	if err != nil {
		return nil, fmt.Errorf("accept invitation %s: %w", invitation.ID, err)
	}

	if err = a.SendMessage(ctx, ping); err != nil {
		return nil, fmt.Errorf("accept invitation %s: %w", invitation.ID, err)
	}

	if err = a.AddConnection(*holder, receiver, alias); err != nil {
		return nil, fmt.Errorf("accept invitation %s: %w", invitation.ID, err)
	}

	return holder, nil
}

// NewIssueCredentialProtocol starts an issue-credential exchange from msg, using the agent to
// send and await the exchange messages.
func (a *Agent) NewIssueCredentialProtocol(msg *message.Message) (*issuecredential.Protocol, error) {
	p, err := issuecredential.New(msg, a)
	if err != nil {
		return nil, err
	}

	a.markHandled(msg)

	return p, nil
}

// SaveIssuedCredentials stores the credentials of a completed exchange.
func (a *Agent) SaveIssuedCredentials(p *issuecredential.Protocol) ([]store.CredentialRecord, error) {
	issued := p.Issued()
	if p.Stage() != issuecredential.StageCompleted || issued == nil {
		return nil, fmt.Errorf("%w: exchange is %s", issuecredential.ErrInvalidStep, p.Stage())
	}

	records := make([]store.CredentialRecord, 0, len(issued.Attachments))

	for _, att := range issued.Attachments {
		data, err := att.Bytes()
		if err != nil {
			return nil, fmt.Errorf("save credentials of %s: %w", issued.ThreadID(), err)
		}

		id := att.ID
		if id == "" {
			id = uuid.New().String()
		}

		format := att.Format
		if format == "" {
			format = att.MediaType
		}

		rec := store.CredentialRecord{
			ID:     id,
			Thid:   issued.ThreadID(),
			Format: format,
			Data:   data,
			Metadata: map[string]string{
				"issuer": issued.From.String(),
				"holder": issued.To.String(),
			},
		}

		if err = a.store.StoreCredential(rec); err != nil {
			return nil, fmt.Errorf("save credentials of %s: %w", issued.ThreadID(), err)
		}

		records = append(records, rec)
	}

	return records, nil
}

// Credentials returns the stored credentials.
func (a *Agent) Credentials() ([]store.CredentialRecord, error) {
	return a.store.GetAllCredentials()
}

// PresentCredentials answers a request-presentation with the given presentations.
func (a *Agent) PresentCredentials(ctx context.Context, request *message.Message,
	presentations ...message.AttachmentDescriptor) error {
	req, err := presentproof.ParseRequestPresentation(request)
	if err != nil {
		return err
	}

	out, err := presentproof.PresentationFromRequest(req, presentations...)
	if err != nil {
		return err
	}

	a.markHandled(request)

	return a.SendMessage(ctx, out)
}
