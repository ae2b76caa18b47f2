/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/dispatcher/outbound"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/packager"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/messagepickup"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/reportproblem"
	transporthttp "github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	mockmediator "github.com/hyperledger/aries-edge-agent-go/pkg/internal/mock/mediator"
	"github.com/hyperledger/aries-edge-agent-go/pkg/internal/test/makemockdoc"
	"github.com/hyperledger/aries-edge-agent-go/pkg/kms"
	"github.com/hyperledger/aries-edge-agent-go/pkg/store"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/peer"
)

type agent struct {
	store    *store.Store
	kms      *kms.LocalKMS
	packager *packager.Packager
	outbound *outbound.Dispatcher
	host     *did.DID
}

func newAgent(t *testing.T) *agent {
	t.Helper()

	s, err := store.New(mem.NewProvider())
	require.NoError(t, err)

	keyManager := kms.New(s)
	registry := vdr.New(vdr.WithResolver(peer.NewResolver()))
	pack := packager.New(registry, keyManager)

	return &agent{
		store:    s,
		kms:      keyManager,
		packager: pack,
		outbound: outbound.NewOutbound(pack, registry, transporthttp.NewOutbound()),
		host:     makemockdoc.MakePeerDID(t, keyManager),
	}
}

func (a *agent) client(m *mockmediator.Mediator, mediatorStore store.MediatorStore) *mediator.Client {
	if mediatorStore == nil {
		mediatorStore = a.store
	}

	return mediator.NewClient(*m.DID, a.outbound, a.packager, mediatorStore)
}

type countingStore struct {
	store.MediatorStore

	mu    sync.Mutex
	loads int
	saves int
	err   error
}

func (s *countingStore) StoreMediator(m store.Mediator) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	return s.MediatorStore.StoreMediator(m)
}

func (s *countingStore) GetAllMediators() ([]store.Mediator, error) {
	s.mu.Lock()
	s.loads++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	return s.MediatorStore.GetAllMediators()
}

func TestAchieveMediation(t *testing.T) {
	ctx := context.Background()

	t.Run("grant is persisted and served from memory", func(t *testing.T) {
		m := mockmediator.New(t)
		a := newAgent(t)
		client := a.client(m, nil)

		require.Nil(t, client.Mediator())

		granted, err := client.AchieveMediation(ctx, *a.host)
		require.NoError(t, err)
		require.NotEmpty(t, granted.ID)
		require.True(t, granted.MediatorDID.Equal(*m.DID))
		require.True(t, granted.HostDID.Equal(*a.host))
		require.True(t, granted.RoutingDID.Equal(*m.DID))

		stored, err := a.store.GetAllMediators()
		require.NoError(t, err)
		require.Equal(t, []store.Mediator{*granted}, stored)

		again, err := client.AchieveMediation(ctx, *a.host)
		require.NoError(t, err)
		require.Equal(t, granted, again)
		require.Equal(t, 1, m.Requests(mediator.RequestMsgType))

		cfg, err := client.Config()
		require.NoError(t, err)
		require.Equal(t, m.DID.String(), cfg.Endpoint())
		require.Equal(t, m.DID.String(), cfg.Service().ServiceEndpoint.URI)
	})

	t.Run("concurrent callers share one negotiation", func(t *testing.T) {
		m := mockmediator.New(t)
		a := newAgent(t)
		client := a.client(m, nil)

		var wg sync.WaitGroup

		results := make([]*store.Mediator, 8)
		errs := make([]error, len(results))

		for i := range results {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()

				results[i], errs[i] = client.AchieveMediation(ctx, *a.host)
			}(i)
		}

		wg.Wait()

		for i, r := range results {
			require.NoError(t, errs[i])
			require.Equal(t, results[0].ID, r.ID)
		}

		stored, err := a.store.GetAllMediators()
		require.NoError(t, err)
		require.Len(t, stored, 1)
	})

	t.Run("error: deny", func(t *testing.T) {
		m := mockmediator.New(t)
		m.SetDeny(true)

		a := newAgent(t)
		client := a.client(m, nil)

		_, err := client.AchieveMediation(ctx, *a.host)
		require.ErrorIs(t, err, mediator.ErrMediationRequestFailed)
		require.ErrorIs(t, err, message.ErrInvalidMessageType)
		require.Nil(t, client.Mediator())
	})

	t.Run("error: store failure leaves no mediator", func(t *testing.T) {
		m := mockmediator.New(t)
		a := newAgent(t)
		failing := &countingStore{MediatorStore: a.store, err: errors.New("disk full")}
		client := a.client(m, failing)

		_, err := client.AchieveMediation(ctx, *a.host)
		require.ErrorContains(t, err, "disk full")
		require.Nil(t, client.Mediator())

		_, err = client.Config()
		require.ErrorIs(t, err, mediator.ErrNoMediatorAvailable)
	})
}

func TestBootRegisteredMediator(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		m := mockmediator.New(t)
		a := newAgent(t)

		booted, err := a.client(m, nil).BootRegisteredMediator(ctx)
		require.NoError(t, err)
		require.Nil(t, booted)
	})

	t.Run("boot is idempotent", func(t *testing.T) {
		m := mockmediator.New(t)
		a := newAgent(t)

		granted, err := a.client(m, nil).AchieveMediation(ctx, *a.host)
		require.NoError(t, err)

		counting := &countingStore{MediatorStore: a.store}
		client := a.client(m, counting)

		first, err := client.BootRegisteredMediator(ctx)
		require.NoError(t, err)
		require.Equal(t, granted, first)

		second, err := client.BootRegisteredMediator(ctx)
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Equal(t, 1, counting.loads)

		_, err = client.AchieveMediation(ctx, *a.host)
		require.NoError(t, err)
		require.Equal(t, 0, counting.saves)
		require.Equal(t, 1, m.Requests(mediator.RequestMsgType))
	})

	t.Run("records of other mediators are ignored", func(t *testing.T) {
		m := mockmediator.New(t)
		other := mockmediator.New(t)
		a := newAgent(t)

		require.NoError(t, a.store.StoreMediator(store.Mediator{
			ID: "other", MediatorDID: *other.DID, HostDID: *a.host, RoutingDID: *other.DID,
		}))

		booted, err := a.client(m, nil).BootRegisteredMediator(ctx)
		require.NoError(t, err)
		require.Nil(t, booted)
	})

	t.Run("error: cancelled context", func(t *testing.T) {
		m := mockmediator.New(t)
		a := newAgent(t)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := a.client(m, nil).BootRegisteredMediator(cancelled)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestKeylistAndPickup(t *testing.T) {
	ctx := context.Background()

	t.Run("error: no mediator", func(t *testing.T) {
		m := mockmediator.New(t)
		a := newAgent(t)
		client := a.client(m, nil)

		require.ErrorIs(t, client.UpdateKeyListWithDIDs(ctx, []did.DID{*a.host}), mediator.ErrNoMediatorAvailable)

		_, err := client.PickupUnreadMessages(ctx, 10)
		require.ErrorIs(t, err, mediator.ErrNoMediatorAvailable)

		require.ErrorIs(t, client.RegisterMessagesAsRead(ctx, []string{"x"}), mediator.ErrNoMediatorAvailable)

		_, err = client.StatusRequest(ctx)
		require.ErrorIs(t, err, mediator.ErrNoMediatorAvailable)
	})

	t.Run("forwarded messages are picked up and acknowledged", func(t *testing.T) {
		m := mockmediator.New(t)
		alice := newAgent(t)
		aliceClient := alice.client(m, nil)

		_, err := aliceClient.AchieveMediation(ctx, *alice.host)
		require.NoError(t, err)

		cfg, err := aliceClient.Config()
		require.NoError(t, err)

		routed := makemockdoc.MakePeerDID(t, alice.kms, cfg.Service())
		require.NoError(t, aliceClient.UpdateKeyListWithDIDs(ctx, []did.DID{*routed}))
		require.True(t, m.Registered(*routed))

		// registering twice is a no_change, not a failure
		require.NoError(t, aliceClient.UpdateKeyListWithDIDs(ctx, []did.DID{*routed}))

		bob := newAgent(t)

		for _, content := range []string{"one", "two"} {
			msg, e := message.New("https://didcomm.org/basicmessage/2.0/message", bob.host, routed,
				map[string]string{"content": content})
			require.NoError(t, e)

			reply, e := bob.outbound.Send(ctx, msg)
			require.NoError(t, e)
			require.Nil(t, reply)
		}

		require.Equal(t, 2, m.Queued(*alice.host))

		status, err := aliceClient.StatusRequest(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, status.MessageCount)

		picked, err := aliceClient.PickupUnreadMessages(ctx, 1)
		require.NoError(t, err)
		require.Len(t, picked.Messages, 1)
		first := picked.Messages[0]
		require.JSONEq(t, `{"content":"one"}`, string(first.Message.Body))
		require.Equal(t, message.Received, first.Message.Direction)
		require.True(t, first.Message.From.Equal(*bob.host))

		require.NoError(t, aliceClient.RegisterMessagesAsRead(ctx, []string{first.AttachmentID}))
		require.Equal(t, 1, m.Queued(*alice.host))

		picked, err = aliceClient.PickupUnreadMessages(ctx, 10)
		require.NoError(t, err)
		require.Len(t, picked.Messages, 1)
		require.JSONEq(t, `{"content":"two"}`, string(picked.Messages[0].Message.Body))

		require.NoError(t, aliceClient.RegisterMessagesAsRead(ctx, []string{picked.Messages[0].AttachmentID}))

		picked, err = aliceClient.PickupUnreadMessages(ctx, 10)
		require.NoError(t, err)
		require.Empty(t, picked.Messages)
		require.Empty(t, picked.Rejected)
	})

	t.Run("undecryptable envelopes are rejected", func(t *testing.T) {
		m := mockmediator.New(t)
		a := newAgent(t)
		client := a.client(m, nil)

		_, err := client.AchieveMediation(ctx, *a.host)
		require.NoError(t, err)

		id := m.Enqueue(*a.host, []byte(`{"protected":"e30"}`))

		picked, err := client.PickupUnreadMessages(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, []messagepickup.PickedUp{}, picked.Messages)
		require.Equal(t, []string{id}, picked.Rejected)
	})

	t.Run("error: problem report", func(t *testing.T) {
		m := mockmediator.New(t)
		a := newAgent(t)
		client := a.client(m, nil)

		_, err := client.AchieveMediation(ctx, *a.host)
		require.NoError(t, err)

		m.SetProblemReport(true)

		picked, err := client.PickupUnreadMessages(ctx, 10)
		require.Nil(t, picked)

		var problem *reportproblem.ProblemReport
		require.ErrorAs(t, err, &problem)
		require.Equal(t, "e.p.xfer.cant-deliver", problem.Body.Code)
	})

	t.Run("error: keylist rejected", func(t *testing.T) {
		m := mockmediator.New(t)
		a := newAgent(t)

		require.NoError(t, a.store.StoreMediator(store.Mediator{
			ID: "forged", MediatorDID: *m.DID, HostDID: *a.host, RoutingDID: *m.DID,
		}))

		client := a.client(m, nil)

		_, err := client.BootRegisteredMediator(ctx)
		require.NoError(t, err)

		err = client.UpdateKeyListWithDIDs(ctx, []did.DID{*a.host})
		require.ErrorIs(t, err, mediator.ErrKeylistUpdateFailed)
	})
}
