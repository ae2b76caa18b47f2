/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package message

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

const testPIURI = "https://didcomm.org/basicmessage/2.0/message"

func TestNew(t *testing.T) {
	from := did.MustParse("did:peer:alice")
	to := did.MustParse("did:peer:bob")

	m, err := New(testPIURI, from, to, map[string]string{"content": "hi"},
		WithThid("thread"), WithExtraHeader("return_route", "all"))
	require.NoError(t, err)
	require.NotEmpty(t, m.ID)
	require.Equal(t, "thread", m.ThreadID())
	require.JSONEq(t, `{"content":"hi"}`, string(m.Body))
	require.Equal(t, "all", m.ExtraHeaders["return_route"])
	require.False(t, m.CreatedTime.IsZero())

	var body struct {
		Content string `json:"content"`
	}

	require.NoError(t, m.DecodeBody(&body))
	require.Equal(t, "hi", body.Content)

	_, err = New(testPIURI, from, to, make(chan int))
	require.Error(t, err)
}

func TestCheckType(t *testing.T) {
	m := &Message{PIURI: testPIURI}
	require.NoError(t, m.CheckType(testPIURI))

	err := m.CheckType("https://didcomm.org/other/1.0/x")
	require.ErrorIs(t, err, ErrInvalidMessageType)

	var typeErr *InvalidTypeError
	require.True(t, errors.As(err, &typeErr))
	require.Equal(t, testPIURI, typeErr.Actual)
}

func TestPlaintextRoundTrip(t *testing.T) {
	jsonAttachment, err := NewJSONAttachment(map[string]int{"a": 1}, "application/json")
	require.NoError(t, err)

	m := &Message{
		ID:          "1234",
		PIURI:       testPIURI,
		From:        did.MustParse("did:peer:alice"),
		To:          did.MustParse("did:peer:bob"),
		Body:        json.RawMessage(`{"content":"hi"}`),
		Thid:        "t1",
		Pthid:       "p1",
		CreatedTime: time.Unix(1700000000, 0),
		ExpiresTime: time.Unix(1700003600, 0),
		Attachments: []AttachmentDescriptor{
			NewBase64Attachment([]byte("payload"), "text/plain"),
			jsonAttachment,
			{ID: "links", Data: Links{Links: []string{"https://example.com/a"}, Hash: "abc"}},
		},
		ExtraHeaders: map[string]string{"return_route": "all"},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	require.Equal(t, PlaintextMediaType, fields["typ"])
	require.Equal(t, []interface{}{"did:peer:bob"}, fields["to"])
	require.Equal(t, "all", fields["return_route"])

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, *m, decoded)

	payload, err := decoded.Attachments[0].Bytes()
	require.NoError(t, err)
	require.Equal(t, "payload", string(payload))

	payload, err = decoded.Attachments[1].Bytes()
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(payload))

	_, err = decoded.Attachments[2].Bytes()
	require.Error(t, err)
}

func TestEmptyAttachmentData(t *testing.T) {
	m := &Message{
		ID:    "1",
		PIURI: testPIURI,
		Body:  json.RawMessage(`{}`),
		Attachments: []AttachmentDescriptor{
			NewBase64Attachment([]byte{}, ""),
			{ID: "no-links", Data: Links{}},
			{ID: "empty-links", Data: Links{Links: []string{}, Hash: "abc"}},
		},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, m.Attachments, decoded.Attachments)

	payload, err := decoded.Attachments[0].Bytes()
	require.NoError(t, err)
	require.Empty(t, payload)

	t.Run("error: json attachment without value", func(t *testing.T) {
		_, err := json.Marshal(&Message{ID: "1", PIURI: testPIURI,
			Attachments: []AttachmentDescriptor{{ID: "x", Data: JSON{}}}})
		require.Error(t, err)
	})
}

type unknownData struct{}

func (unknownData) attachmentData() {}

func TestUnknownAttachmentData(t *testing.T) {
	m := &Message{ID: "1", PIURI: testPIURI, Attachments: []AttachmentDescriptor{{ID: "x", Data: unknownData{}}}}

	_, err := json.Marshal(m)
	require.ErrorIs(t, err, ErrUnknownAttachmentData)

	var decoded Message
	err = json.Unmarshal([]byte(`{"id":"1","type":"t","body":{},"attachments":[{"id":"x","data":{}}]}`), &decoded)
	require.ErrorIs(t, err, ErrUnknownAttachmentData)
}

func TestUnmarshalInvalid(t *testing.T) {
	var m Message

	require.Error(t, json.Unmarshal([]byte(`{"id":"1","type":"t","from":"not-a-did"}`), &m))
	require.Error(t, json.Unmarshal([]byte(`{"id":"1","type":"t","to":["did:x::y"]}`), &m))
	require.Error(t, json.Unmarshal([]byte(`[]`), &m))
}
