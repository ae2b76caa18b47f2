/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package reportproblem

import (
	"fmt"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

// ProblemReportMsgType defines the report-problem 2.0 problem report message type.
const ProblemReportMsgType = "https://didcomm.org/report-problem/2.0/problem-report"

// Body represents body for a problem report.
type Body struct {
	Code       string   `json:"code,omitempty"`
	Comment    string   `json:"comment,omitempty"`
	Args       []string `json:"args,omitempty"`
	EscalateTo string   `json:"escalate_to,omitempty"`
}

// ProblemReport is a decoded problem report.
type ProblemReport struct {
	ID    string
	Pthid string
	From  *did.DID
	To    *did.DID
	Body  Body
}

// Error renders the report as an error message.
func (p *ProblemReport) Error() string {
	if p.Body.Comment == "" {
		return fmt.Sprintf("problem report %s", p.Body.Code)
	}

	return fmt.Sprintf("problem report %s: %s", p.Body.Code, p.Body.Comment)
}

// New builds a problem report about the thread pthid.
func New(from, to *did.DID, pthid string, body Body) (*message.Message, error) {
	return message.New(ProblemReportMsgType, from, to, body, message.WithPthid(pthid))
}

// Parse decodes a problem report.
func Parse(msg *message.Message) (*ProblemReport, error) {
	if err := msg.CheckType(ProblemReportMsgType); err != nil {
		return nil, err
	}

	report := &ProblemReport{
		ID:    msg.ID,
		Pthid: msg.Pthid,
		From:  msg.From,
		To:    msg.To,
	}

	if err := msg.DecodeBody(&report.Body); err != nil {
		return nil, err
	}

	return report, nil
}
