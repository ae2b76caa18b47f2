/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package inbound

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

type mockPackager struct {
	inbox   map[string]*message.Message
	packErr error
	packed  []*message.Message
}

func (m *mockPackager) Pack(_ context.Context, msg *message.Message) (string, error) {
	if m.packErr != nil {
		return "", m.packErr
	}

	m.packed = append(m.packed, msg)

	return "packed:" + msg.ID, nil
}

func (m *mockPackager) Unpack(_ context.Context, envelope string) (*message.Message, error) {
	msg, ok := m.inbox[envelope]
	if !ok {
		return nil, errors.New("cannot decrypt")
	}

	return msg, nil
}

func TestHandleInboundEnvelope(t *testing.T) {
	alice := did.MustParse("did:peer:alice")
	bob := did.MustParse("did:peer:bob")

	ping, err := message.New("https://didcomm.org/trust-ping/2.0/ping", alice, bob, nil)
	require.NoError(t, err)

	t.Run("error: mandatory arguments", func(t *testing.T) {
		_, err := NewInboundMessageHandler(nil, nil)
		require.Error(t, err)
	})

	t.Run("reply is packed for the return route", func(t *testing.T) {
		pack := &mockPackager{inbox: map[string]*message.Message{"env": ping}}

		h, err := NewInboundMessageHandler(pack, func(_ context.Context, msg *message.Message) (*message.Message, error) {
			return message.New("https://didcomm.org/trust-ping/2.0/ping-response", msg.To, msg.From, nil,
				message.WithThid(msg.ID))
		})
		require.NoError(t, err)

		reply, err := h.HandlerFunc()(context.Background(), []byte("env"))
		require.NoError(t, err)
		require.Len(t, pack.packed, 1)
		require.Equal(t, "packed:"+pack.packed[0].ID, string(reply))
		require.Equal(t, ping.ID, pack.packed[0].Thid)
	})

	t.Run("no reply", func(t *testing.T) {
		pack := &mockPackager{inbox: map[string]*message.Message{"env": ping}}

		h, err := NewInboundMessageHandler(pack, func(context.Context, *message.Message) (*message.Message, error) {
			return nil, nil
		})
		require.NoError(t, err)

		reply, err := h.HandleInboundEnvelope(context.Background(), []byte("env"))
		require.NoError(t, err)
		require.Nil(t, reply)
		require.Empty(t, pack.packed)
	})

	t.Run("errors", func(t *testing.T) {
		pack := &mockPackager{inbox: map[string]*message.Message{"env": ping}}

		h, err := NewInboundMessageHandler(pack, func(context.Context, *message.Message) (*message.Message, error) {
			return nil, errors.New("handler failed")
		})
		require.NoError(t, err)

		_, err = h.HandleInboundEnvelope(context.Background(), []byte("garbage"))
		require.ErrorContains(t, err, "cannot decrypt")

		_, err = h.HandleInboundEnvelope(context.Background(), []byte("env"))
		require.ErrorContains(t, err, "handler failed")

		pack.packErr = errors.New("pack failed")
		h.handle = func(_ context.Context, msg *message.Message) (*message.Message, error) {
			return msg, nil
		}

		_, err = h.HandleInboundEnvelope(context.Background(), []byte("env"))
		require.ErrorContains(t, err, "pack failed")
	})
}
