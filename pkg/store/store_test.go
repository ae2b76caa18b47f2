/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(mem.NewProvider())
	require.NoError(t, err)

	return s
}

func TestDIDs(t *testing.T) {
	s := newTestStore(t)

	alice := did.MustParse("did:peer:alice")
	bob := did.MustParse("did:peer:bob")

	require.NoError(t, s.StoreDID(DIDRecord{DID: *alice, KeyPathIndex: 0, Alias: "me"}))
	require.NoError(t, s.StoreDID(DIDRecord{DID: *bob, KeyPathIndex: 1}))

	rec, err := s.GetDID(*alice)
	require.NoError(t, err)
	require.Equal(t, "me", rec.Alias)

	byAlias, err := s.GetDIDsByAlias("me")
	require.NoError(t, err)
	require.Len(t, byAlias, 1)
	require.Equal(t, alice.String(), byAlias[0].DID.String())

	all, err := s.GetAllDIDs()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, bob.String(), all[1].DID.String())

	_, err = s.GetDID(*did.MustParse("did:peer:unknown"))
	require.True(t, IsNotFound(err))
}

func TestPrivateKeys(t *testing.T) {
	s := newTestStore(t)
	owner := did.MustParse("did:peer:alice")

	next, err := s.NextKeyPathIndex()
	require.NoError(t, err)
	require.Equal(t, 0, next)

	require.NoError(t, s.StorePrivateKey(PrivateKeyRecord{
		KeyID: "did:peer:alice#key-1", DID: *owner, Curve: crypto.X25519, Raw: []byte{1}, KeyPathIndex: 3,
	}))

	rec, err := s.GetPrivateKey("did:peer:alice#key-1")
	require.NoError(t, err)
	require.Equal(t, crypto.X25519, rec.Curve)
	require.Equal(t, []byte{1}, rec.Raw)

	recs, err := s.GetPrivateKeysByDID(*owner)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	next, err = s.NextKeyPathIndex()
	require.NoError(t, err)
	require.Equal(t, 4, next)
}

func TestDIDPairs(t *testing.T) {
	s := newTestStore(t)
	alice := did.MustParse("did:peer:alice")
	bob := did.MustParse("did:peer:bob")

	require.NoError(t, s.StoreDIDPair(DIDPair{Holder: *alice, Receiver: *bob, Alias: "bob"}))

	pair, err := s.GetDIDPair(*alice, *bob)
	require.NoError(t, err)
	require.Equal(t, "bob", pair.Alias)

	pair, err = s.GetDIDPairByAlias("bob")
	require.NoError(t, err)
	require.Equal(t, bob.String(), pair.Receiver.String())

	require.NoError(t, s.RemoveDIDPair(*alice, *bob))

	_, err = s.GetDIDPairByAlias("bob")
	require.True(t, IsNotFound(err))

	all, err := s.GetAllDIDPairs()
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestMessages(t *testing.T) {
	s := newTestStore(t)
	alice := did.MustParse("did:peer:alice")
	bob := did.MustParse("did:peer:bob")

	first := &message.Message{
		ID: "1", PIURI: "type-a", From: alice, To: bob, Body: json.RawMessage(`{}`),
		CreatedTime: time.Unix(100, 0), Direction: message.Sent,
	}
	second := &message.Message{
		ID: "2", PIURI: "type-b", From: bob, To: alice, Body: json.RawMessage(`{}`), Thid: "1",
		CreatedTime: time.Unix(200, 0), Direction: message.Received,
	}

	require.NoError(t, s.StoreMessages(second, first))
	require.NoError(t, s.StoreMessages())

	got, err := s.GetMessage("2")
	require.NoError(t, err)
	require.Equal(t, message.Received, got.Direction)
	require.Equal(t, "type-b", got.PIURI)

	all, err := s.GetAllMessages()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "1", all[0].ID)

	byDID, err := s.GetMessagesByDID(*alice)
	require.NoError(t, err)
	require.Len(t, byDID, 2)

	received, err := s.GetMessagesByDirection(message.Received)
	require.NoError(t, err)
	require.Len(t, received, 1)
	require.Equal(t, "2", received[0].ID)

	byType, err := s.GetMessagesByType("type-a")
	require.NoError(t, err)
	require.Len(t, byType, 1)

	thread, err := s.GetMessagesByThid("1")
	require.NoError(t, err)
	require.Len(t, thread, 2)

	_, err = s.GetMessage("missing")
	require.True(t, IsNotFound(err))
}

func TestMediatorsAndCredentials(t *testing.T) {
	s := newTestStore(t)

	m := Mediator{
		ID:          "m1",
		MediatorDID: *did.MustParse("did:peer:mediator"),
		HostDID:     *did.MustParse("did:peer:host"),
		RoutingDID:  *did.MustParse("did:peer:routing"),
	}
	require.NoError(t, s.StoreMediator(m))

	mediators, err := s.GetAllMediators()
	require.NoError(t, err)
	require.Equal(t, []Mediator{m}, mediators)

	require.NoError(t, s.StoreCredential(CredentialRecord{ID: "c1", Thid: "t", Format: "jwt", Data: []byte("x")}))

	cred, err := s.GetCredential("c1")
	require.NoError(t, err)
	require.Equal(t, "jwt", cred.Format)

	creds, err := s.GetAllCredentials()
	require.NoError(t, err)
	require.Len(t, creds, 1)
}

func TestMessageFeed(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Messages().Subscribe(ctx)

	require.Empty(t, <-ch)

	require.NoError(t, s.StoreMessages(&message.Message{ID: "1", PIURI: "t", Body: json.RawMessage(`{}`)}))

	select {
	case snapshot := <-ch:
		require.Len(t, snapshot, 1)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after store")
	}

	cancel()

	require.Eventually(t, func() bool {
		_, open := <-ch

		return !open
	}, time.Second, 10*time.Millisecond)
}
