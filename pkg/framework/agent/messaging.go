/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-co-op/gocron"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/mediator"
	transporthttp "github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/transport/http"
)

// TrustPingMsgType is the trust-ping 2.0 ping message type.
const TrustPingMsgType = "https://didcomm.org/trust-ping/2.0/ping"

// SendMessage packs msg for its recipient and delivers it, through the recipient mediator when
// it has one. Only transport failures are retried, and only when WithSendRetry is set. The sent
// message and any return-route reply are stored.
func (a *Agent) SendMessage(ctx context.Context, msg *message.Message) error {
	var reply *message.Message

	op := func() error {
		var err error

		reply, err = a.outbound.Send(ctx, msg)
		if err == nil {
			return nil
		}

		if !retryable(err) {
			return backoff.Permanent(err)
		}

		logger.Debugf("send %s failed, retrying: %s", msg.ID, err)

		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(a.sendBackOff(), ctx)); err != nil {
		return fmt.Errorf("send message %s: %w", msg.ID, err)
	}

	msg.Direction = message.Sent

	msgs := []*message.Message{msg}

	if reply != nil {
		reply.Direction = message.Received
		msgs = append(msgs, reply)
	}

	if err := a.store.StoreMessages(msgs...); err != nil {
		return fmt.Errorf("send message %s: %w", msg.ID, err)
	}

	return nil
}

func (a *Agent) sendBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(a.retryInterval), a.sendRetries)
}

// retryable reports whether a send failure is a transport failure worth repeating. A 4xx
// answer means the recipient will reject the same envelope again.
func retryable(err error) bool {
	if !errors.Is(err, transporthttp.ErrTransport) {
		return false
	}

	var statusErr *transporthttp.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode < http.StatusBadRequest || statusErr.StatusCode >= http.StatusInternalServerError
	}

	return true
}

// FetchMessages picks up queued messages from the mediator, stores them and only then
// acknowledges them, so a failed store leaves them queued for the next pickup. Attachments
// that cannot be decoded are acknowledged without being stored.
func (a *Agent) FetchMessages(ctx context.Context) ([]*message.Message, error) {
	if err := a.checkRunning(); err != nil {
		return nil, err
	}

	if a.mediator == nil {
		return nil, mediator.ErrNoMediatorAvailable
	}

	picked, err := a.mediator.PickupUnreadMessages(ctx, a.pickupLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	msgs := make([]*message.Message, 0, len(picked.Messages))
	ids := make([]string, 0, len(picked.Messages)+len(picked.Rejected))

	for _, p := range picked.Messages {
		p.Message.Direction = message.Received
		msgs = append(msgs, p.Message)
		ids = append(ids, p.AttachmentID)
	}

	if len(msgs) > 0 {
		if err = a.store.StoreMessages(msgs...); err != nil {
			return nil, fmt.Errorf("fetch messages: %w", err)
		}
	}

	ids = append(ids, picked.Rejected...)

	if len(ids) == 0 {
		return msgs, nil
	}

	if len(picked.Rejected) > 0 {
		logger.Warnf("acknowledging %d undecodable messages", len(picked.Rejected))
	}

	if err = a.mediator.RegisterMessagesAsRead(ctx, ids); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	for _, m := range msgs {
		a.handleReceived(m)
	}

	logger.Debugf("fetched %d messages", len(msgs))

	return msgs, nil
}

// handleReceived reacts to inbound messages that change the agent state.
func (a *Agent) handleReceived(msg *message.Message) {
	if msg.PIURI != TrustPingMsgType || msg.From == nil || msg.To == nil {
		return
	}

	if err := a.AddConnection(*msg.To, *msg.From, ""); err != nil {
		logger.Warnf("add connection from trust ping %s: %s", msg.ID, err)
	}
}

// StartFetchingMessages polls the mediator every interval in the background. A poll still
// running when the next one is due is not overlapped.
func (a *Agent) StartFetchingMessages(interval time.Duration) error {
	if err := a.checkRunning(); err != nil {
		return err
	}

	if a.mediator == nil {
		return mediator.ErrNoMediatorAvailable
	}

	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if a.scheduler != nil {
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	_, err := s.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval+a.retryInterval)
		defer cancel()

		if _, err := a.FetchMessages(ctx); err != nil {
			logger.Warnf("periodic fetch: %s", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule fetch: %w", err)
	}

	s.StartAsync()
	a.scheduler = s

	return nil
}

// StopFetchingMessages stops the background polling.
func (a *Agent) StopFetchingMessages() {
	a.stateMu.Lock()
	s := a.scheduler
	a.scheduler = nil
	a.stateMu.Unlock()

	if s != nil {
		s.Stop()
	}
}

// AwaitMessageResponse blocks until a received message on thread thid that no previous call
// returned is stored, or ctx is done.
func (a *Agent) AwaitMessageResponse(ctx context.Context, thid string) (*message.Message, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots := a.store.Messages().Subscribe(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("await response on %s: %w", thid, ctx.Err())
		case msgs, ok := <-snapshots:
			if !ok {
				return nil, fmt.Errorf("await response on %s: %w", thid, ctx.Err())
			}

			if reply := a.claimReply(msgs, thid); reply != nil {
				return reply, nil
			}
		}
	}
}

func (a *Agent) claimReply(msgs []*message.Message, thid string) *message.Message {
	a.handledMu.Lock()
	defer a.handledMu.Unlock()

	for _, m := range msgs {
		if m.Direction != message.Received || m.ThreadID() != thid {
			continue
		}

		if _, done := a.handled[m.ID]; done {
			continue
		}

		a.handled[m.ID] = struct{}{}

		return m
	}

	return nil
}

// markHandled excludes msg from AwaitMessageResponse results.
func (a *Agent) markHandled(msg *message.Message) {
	a.handledMu.Lock()
	a.handled[msg.ID] = struct{}{}
	a.handledMu.Unlock()
}
