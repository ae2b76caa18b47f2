/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/reportproblem"
)

var logger = log.New("aries-edge-agent/messagepickup")

// ErrUnexpectedResponse is returned for a pickup reply of an unknown type.
var ErrUnexpectedResponse = errors.New("unexpected pickup response")

// ResponseType classifies a pickup reply.
type ResponseType int

// Pickup reply kinds.
const (
	StatusResponse ResponseType = iota + 1
	DeliveryResponse
	ProblemReportResponse
)

func (t ResponseType) String() string {
	switch t {
	case StatusResponse:
		return "STATUS"
	case DeliveryResponse:
		return "DELIVERY"
	case ProblemReportResponse:
		return "PROBLEM_REPORT"
	}

	return "UNKNOWN"
}

var responseTypes = map[string]ResponseType{
	StatusMsgType:                      StatusResponse,
	DeliveryMsgType:                    DeliveryResponse,
	reportproblem.ProblemReportMsgType: ProblemReportResponse,
}

// Classify reads the reply type.
func Classify(msg *message.Message) (ResponseType, error) {
	t, ok := responseTypes[msg.PIURI]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedResponse, msg.PIURI)
	}

	return t, nil
}

// Unpacker unpacks encrypted envelopes.
type Unpacker interface {
	Unpack(ctx context.Context, envelope string) (*message.Message, error)
}

// PickedUp is a delivered message with the attachment id used to acknowledge it.
type PickedUp struct {
	AttachmentID string
	Message      *message.Message
}

// Pickup is the content of a pickup reply.
type Pickup struct {
	Messages []PickedUp
	// Rejected holds the ids of delivered attachments that could not be decoded. They still
	// have to be acknowledged or the mediator delivers them again.
	Rejected []string
}

// Runner extracts the messages of a pickup reply.
type Runner struct {
	response *message.Message
	unpacker Unpacker
}

// NewRunner returns a Runner for a pickup reply.
func NewRunner(response *message.Message, unpacker Unpacker) *Runner {
	return &Runner{response: response, unpacker: unpacker}
}

// Run returns the unpacked attachments of a delivery. A status reply yields no messages and a
// problem report is returned as a *reportproblem.ProblemReport error. Attachments that cannot
// be unpacked are logged and listed in Rejected.
func (r *Runner) Run(ctx context.Context) (*Pickup, error) {
	kind, err := Classify(r.response)
	if err != nil {
		return nil, err
	}

	picked := &Pickup{Messages: []PickedUp{}, Rejected: []string{}}

	switch kind {
	case StatusResponse:
		return picked, nil
	case ProblemReportResponse:
		report, e := reportproblem.Parse(r.response)
		if e != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedResponse, e)
		}

		logger.Warnf("pickup answered with %s", report.Error())

		return nil, report
	case DeliveryResponse:
	}

	for _, attachment := range r.response.Attachments {
		envelope, err := attachment.Bytes()
		if err != nil {
			logger.Warnf("reject pickup attachment %s: %s", attachment.ID, err)
			picked.Rejected = append(picked.Rejected, attachment.ID)

			continue
		}

		msg, err := r.unpacker.Unpack(ctx, string(envelope))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			logger.Warnf("reject pickup attachment %s: %s", attachment.ID, err)
			picked.Rejected = append(picked.Rejected, attachment.ID)

			continue
		}

		picked.Messages = append(picked.Messages, PickedUp{AttachmentID: attachment.ID, Message: msg})
	}

	return picked, nil
}
