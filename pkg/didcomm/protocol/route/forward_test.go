/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package route

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

func TestForward(t *testing.T) {
	alice := did.MustParse("did:peer:alice")
	mediator := did.MustParse("did:peer:mediator")
	bob := did.MustParse("did:peer:bob")

	t.Run("success: JSON envelope round trip", func(t *testing.T) {
		packed := `{"protected":"abc","recipients":[],"iv":"i","ciphertext":"c","tag":"t"}`

		msg, err := NewForward(alice, mediator, *bob, packed)
		require.NoError(t, err)
		require.Equal(t, ForwardMsgType, msg.PIURI)
		require.Equal(t, mediator, msg.To)
		require.JSONEq(t, `{"next":"did:peer:bob"}`, string(msg.Body))

		raw, err := json.Marshal(msg)
		require.NoError(t, err)

		decoded := &message.Message{}
		require.NoError(t, json.Unmarshal(raw, decoded))

		fwd, err := ParseForward(decoded)
		require.NoError(t, err)
		require.Equal(t, *bob, fwd.Next)
		require.JSONEq(t, packed, string(fwd.Envelope))
		require.Equal(t, msg.ID, fwd.ID)
	})

	t.Run("success: compact envelope is base64 encoded", func(t *testing.T) {
		msg, err := NewForward(alice, mediator, *bob, "a.b.c.d.e")
		require.NoError(t, err)
		require.IsType(t, message.Base64{}, msg.Attachments[0].Data)

		fwd, err := ParseForward(msg)
		require.NoError(t, err)
		require.Equal(t, "a.b.c.d.e", string(fwd.Envelope))
	})

	t.Run("error: wrong type", func(t *testing.T) {
		msg, err := message.New("https://didcomm.org/basicmessage/2.0/message", alice, bob, nil)
		require.NoError(t, err)

		_, err = ParseForward(msg)
		require.ErrorIs(t, err, message.ErrInvalidMessageType)
	})

	t.Run("error: no attachment", func(t *testing.T) {
		msg, err := message.New(ForwardMsgType, alice, mediator, ForwardBody{Next: bob.String()})
		require.NoError(t, err)

		_, err = ParseForward(msg)
		require.ErrorIs(t, err, ErrNoForwardedMessage)
	})

	t.Run("error: invalid next", func(t *testing.T) {
		msg, err := message.New(ForwardMsgType, alice, mediator, ForwardBody{Next: "bob"})
		require.NoError(t, err)

		_, err = ParseForward(msg)
		require.ErrorIs(t, err, did.ErrInvalidDIDString)
	})
}
