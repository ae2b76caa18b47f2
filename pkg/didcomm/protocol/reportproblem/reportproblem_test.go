/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package reportproblem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

func TestProblemReport(t *testing.T) {
	from := did.MustParse("did:peer:mediator")
	to := did.MustParse("did:peer:alice")

	msg, err := New(from, to, "thread-1", Body{Code: "e.p.req.not-enrolled", Comment: "not enrolled"})
	require.NoError(t, err)
	require.Equal(t, "thread-1", msg.Pthid)

	report, err := Parse(msg)
	require.NoError(t, err)
	require.Equal(t, "e.p.req.not-enrolled", report.Body.Code)
	require.EqualError(t, report, "problem report e.p.req.not-enrolled: not enrolled")

	report.Body.Comment = ""
	require.EqualError(t, report, "problem report e.p.req.not-enrolled")

	other, err := message.New("https://didcomm.org/basicmessage/2.0/message", from, to, nil)
	require.NoError(t, err)

	_, err = Parse(other)
	require.ErrorIs(t, err, message.ErrInvalidMessageType)
}
