/*
Copyright Scoir Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package messagepickup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/reportproblem"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

type mockUnpacker struct {
	messages map[string]*message.Message
}

func (m *mockUnpacker) Unpack(_ context.Context, envelope string) (*message.Message, error) {
	msg, ok := m.messages[envelope]
	if !ok {
		return nil, errors.New("cannot decrypt")
	}

	return msg, nil
}

var (
	mediatorDID = did.MustParse("did:peer:mediator")
	aliceDID    = did.MustParse("did:peer:alice")
)

func newMessage(t *testing.T, piuri string, body interface{}, opts ...message.Option) *message.Message {
	t.Helper()

	msg, err := message.New(piuri, mediatorDID, aliceDID, body, opts...)
	require.NoError(t, err)

	return msg
}

func TestRunner(t *testing.T) {
	first := newMessage(t, "https://didcomm.org/basicmessage/2.0/message", map[string]string{"content": "1"})
	second := newMessage(t, "https://didcomm.org/basicmessage/2.0/message", map[string]string{"content": "2"})

	unpacker := &mockUnpacker{messages: map[string]*message.Message{"env-1": first, "env-2": second}}

	t.Run("status yields no messages", func(t *testing.T) {
		status := newMessage(t, StatusMsgType, Status{MessageCount: 0})

		picked, err := NewRunner(status, unpacker).Run(context.Background())
		require.NoError(t, err)
		require.Empty(t, picked.Messages)
		require.NotNil(t, picked.Messages)
		require.Empty(t, picked.Rejected)
	})

	t.Run("delivery with two attachments yields two pairs", func(t *testing.T) {
		a1 := message.NewBase64Attachment([]byte("env-1"), "")
		a2 := message.NewBase64Attachment([]byte("env-2"), "")

		delivery := newMessage(t, DeliveryMsgType, Delivery{}, message.WithAttachments(a1, a2))

		picked, err := NewRunner(delivery, unpacker).Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, []PickedUp{
			{AttachmentID: a1.ID, Message: first},
			{AttachmentID: a2.ID, Message: second},
		}, picked.Messages)
		require.Empty(t, picked.Rejected)
	})

	t.Run("undecodable attachments are rejected", func(t *testing.T) {
		good := message.NewBase64Attachment([]byte("env-1"), "")
		bad := message.NewBase64Attachment([]byte("garbage"), "")
		links := message.AttachmentDescriptor{ID: "links", Data: message.Links{Links: []string{"https://x"}}}

		delivery := newMessage(t, DeliveryMsgType, Delivery{}, message.WithAttachments(bad, links, good))

		picked, err := NewRunner(delivery, unpacker).Run(context.Background())
		require.NoError(t, err)
		require.Len(t, picked.Messages, 1)
		require.Equal(t, good.ID, picked.Messages[0].AttachmentID)
		require.Equal(t, []string{bad.ID, "links"}, picked.Rejected)
	})

	t.Run("error: cancelled while unpacking", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		delivery := newMessage(t, DeliveryMsgType, Delivery{},
			message.WithAttachments(message.NewBase64Attachment([]byte("garbage"), "")))

		_, err := NewRunner(delivery, unpacker).Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("error: problem report", func(t *testing.T) {
		report, err := reportproblem.New(mediatorDID, aliceDID, "", reportproblem.Body{Code: "e.p.xfer"})
		require.NoError(t, err)

		picked, err := NewRunner(report, unpacker).Run(context.Background())
		require.Nil(t, picked)

		var problem *reportproblem.ProblemReport
		require.ErrorAs(t, err, &problem)
		require.Equal(t, "e.p.xfer", problem.Body.Code)
	})

	t.Run("error: unexpected reply", func(t *testing.T) {
		other := newMessage(t, "https://didcomm.org/basicmessage/2.0/message", nil)

		_, err := NewRunner(other, unpacker).Run(context.Background())
		require.ErrorIs(t, err, ErrUnexpectedResponse)
	})
}

func TestClassify(t *testing.T) {
	for piuri, expected := range map[string]string{
		StatusMsgType:                      "STATUS",
		DeliveryMsgType:                    "DELIVERY",
		reportproblem.ProblemReportMsgType: "PROBLEM_REPORT",
	} {
		kind, err := Classify(&message.Message{PIURI: piuri})
		require.NoError(t, err)
		require.Equal(t, expected, kind.String())
	}
}

func TestModels(t *testing.T) {
	req, err := NewDeliveryRequest(aliceDID, mediatorDID, 10)
	require.NoError(t, err)
	require.JSONEq(t, `{"limit":10}`, string(req.Body))

	ack, err := NewMessagesReceived(aliceDID, mediatorDID, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"message_id_list":[]}`, string(ack.Body))

	statusReq, err := NewStatusRequest(aliceDID, mediatorDID)
	require.NoError(t, err)
	require.Equal(t, StatusRequestMsgType, statusReq.PIURI)

	status, err := ParseStatus(newMessage(t, StatusMsgType, Status{MessageCount: 3}))
	require.NoError(t, err)
	require.Equal(t, 3, status.MessageCount)

	_, err = ParseStatus(req)
	require.ErrorIs(t, err, message.ErrInvalidMessageType)
}
