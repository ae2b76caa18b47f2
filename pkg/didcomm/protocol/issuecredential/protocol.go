/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package issuecredential runs the issue-credential 3.0 exchange as a four stage state machine.
// Each call to NextStage sends at most one message and classifies the counterpart's reply by
// its type.
package issuecredential

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
)

var logger = log.New("aries-edge-agent/issuecredential")

// ErrInvalidStep is returned when a message cannot start or continue the exchange.
var ErrInvalidStep = errors.New("invalid issue credential step")

// Stage of the exchange.
type Stage int

// Stages. Completed and Refused are terminal.
const (
	StagePropose Stage = iota + 1
	StageOffer
	StageRequest
	StageCompleted
	StageRefused
)

const (
	stageNamePropose   = "propose"
	stageNameOffer     = "offer"
	stageNameRequest   = "request"
	stageNameCompleted = "completed"
	stageNameRefused   = "refused"
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StagePropose:
		return stageNamePropose
	case StageOffer:
		return stageNameOffer
	case StageRequest:
		return stageNameRequest
	case StageCompleted:
		return stageNameCompleted
	case StageRefused:
		return stageNameRefused
	}

	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageRefused
}

// CanTransitionTo reports whether next may follow s.
func (s Stage) CanTransitionTo(next Stage) bool {
	switch s {
	case StagePropose:
		return next != StagePropose
	case StageOffer:
		return next == StageOffer || next == StageRequest || next == StageCompleted || next == StageRefused
	case StageRequest:
		return next == StageCompleted || next == StageRefused
	case StageCompleted, StageRefused:
	}

	return false
}

// Connector sends protocol messages and waits for the reply on their thread.
type Connector interface {
	SendMessage(ctx context.Context, msg *message.Message) error
	AwaitMessageResponse(ctx context.Context, thid string) (*message.Message, error)
}

type decoded struct {
	stage   Stage
	propose *ProposeCredentialV3
	offer   *OfferCredentialV3
	request *RequestCredentialV3
	issue   *IssueCredentialV3
}

type decoder func(msg *message.Message) (decoded, error)

// decoders maps a message type to the stage it leads to.
var decoders = map[string]decoder{ //nolint:gochecknoglobals
	ProposeCredentialMsgTypeV3: func(msg *message.Message) (decoded, error) {
		p, err := ParseProposeCredential(msg)

		return decoded{stage: StagePropose, propose: p}, err
	},
	OfferCredentialMsgTypeV3: func(msg *message.Message) (decoded, error) {
		o, err := ParseOfferCredential(msg)

		return decoded{stage: StageOffer, offer: o}, err
	},
	RequestCredentialMsgTypeV3: func(msg *message.Message) (decoded, error) {
		r, err := ParseRequestCredential(msg)

		return decoded{stage: StageRequest, request: r}, err
	},
	IssueCredentialMsgTypeV3: func(msg *message.Message) (decoded, error) {
		i, err := ParseIssueCredential(msg)

		return decoded{stage: StageCompleted, issue: i}, err
	},
}

func decodeMessage(msg *message.Message) (decoded, error) {
	dec, ok := decoders[msg.PIURI]
	if !ok {
		return decoded{}, fmt.Errorf("%w: %s", ErrInvalidStep, msg.PIURI)
	}

	d, err := dec(msg)
	if err != nil {
		return decoded{}, fmt.Errorf("%w: %w", ErrInvalidStep, err)
	}

	return d, nil
}

// Protocol is one issue-credential exchange.
type Protocol struct {
	connector Connector

	mu      sync.Mutex
	stage   Stage
	propose *ProposeCredentialV3
	offer   *OfferCredentialV3
	request *RequestCredentialV3
	issue   *IssueCredentialV3
}

// New starts an exchange from a propose, offer or request message.
func New(msg *message.Message, connector Connector) (*Protocol, error) {
	d, err := decodeMessage(msg)
	if err != nil {
		return nil, err
	}

	if d.stage == StageCompleted {
		return nil, fmt.Errorf("%w: cannot start from %s", ErrInvalidStep, msg.PIURI)
	}

	p := &Protocol{connector: connector}
	p.apply(d)

	return p, nil
}

// Stage returns the current stage.
func (p *Protocol) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stage
}

// Issued returns the issue-credential message once completed.
func (p *Protocol) Issued() *IssueCredentialV3 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.issue
}

// Request returns the received or sent request-credential, if any.
func (p *Protocol) Request() *RequestCredentialV3 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.request
}

func (p *Protocol) apply(d decoded) {
	p.stage = d.stage

	switch d.stage {
	case StagePropose:
		p.propose = d.propose
	case StageOffer:
		p.offer = d.offer
	case StageRequest:
		p.request = d.request
	case StageCompleted:
		p.issue = d.issue
	case StageRefused:
	}
}

// NextStage advances the exchange by one step. From propose it sends an offer, from offer it
// sends a request, then classifies the reply. Request and the terminal stages send nothing.
// Missing data for the current stage refuses the exchange. A send or await failure leaves the
// stage unchanged.
func (p *Protocol) NextStage(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		out *message.Message
		err error
	)

	switch p.stage {
	case StagePropose:
		if p.propose == nil {
			p.refuse("no proposal")

			return nil
		}

		out, err = OfferFromProposal(p.propose)
	case StageOffer:
		if p.offer == nil {
			p.refuse("no offer")

			return nil
		}

		out, err = RequestFromOffer(p.offer)
	case StageRequest, StageCompleted, StageRefused:
		return nil
	}

	if err != nil {
		return fmt.Errorf("issue credential %s: %w", p.stage, err)
	}

	if err = p.connector.SendMessage(ctx, out); err != nil {
		return fmt.Errorf("issue credential %s: send: %w", p.stage, err)
	}

	reply, err := p.connector.AwaitMessageResponse(ctx, out.ThreadID())
	if err != nil {
		return fmt.Errorf("issue credential %s: await reply: %w", p.stage, err)
	}

	d, err := decodeMessage(reply)
	if err != nil || !p.stage.CanTransitionTo(d.stage) {
		logger.Warnf("issue credential %s: unexpected reply %s: %v", p.stage, reply.PIURI, err)
		p.refuse("unexpected reply " + reply.PIURI)

		return nil
	}

	logger.Debugf("issue credential thread %s: %s -> %s", out.ThreadID(), p.stage, d.stage)

	p.apply(d)

	return nil
}

// Issue sends the issued credentials for a received request and completes the exchange.
func (p *Protocol) Issue(ctx context.Context, credentials ...message.AttachmentDescriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stage != StageRequest || p.request == nil {
		return fmt.Errorf("%w: issue at stage %s", ErrInvalidStep, p.stage)
	}

	out, err := IssueFromRequest(p.request, credentials...)
	if err != nil {
		return fmt.Errorf("issue credential: %w", err)
	}

	if err = p.connector.SendMessage(ctx, out); err != nil {
		return fmt.Errorf("issue credential: send: %w", err)
	}

	issued, err := ParseIssueCredential(out)
	if err != nil {
		return fmt.Errorf("issue credential: %w", err)
	}

	p.apply(decoded{stage: StageCompleted, issue: issued})

	return nil
}

func (p *Protocol) refuse(reason string) {
	logger.Infof("issue credential refused at %s: %s", p.stage, reason)

	p.stage = StageRefused
}
