/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"fmt"
	"sort"

	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/store"
)

func connectionKey(holder, receiver did.DID) string {
	return holder.String() + "|" + receiver.String()
}

func (a *Agent) loadConnections() error {
	pairs, err := a.store.GetAllDIDPairs()
	if err != nil {
		return fmt.Errorf("load connections: %w", err)
	}

	a.connMu.Lock()
	defer a.connMu.Unlock()

	for _, p := range pairs {
		a.connections[connectionKey(p.Holder, p.Receiver)] = p
	}

	return nil
}

// AddConnection registers the pairing of our holder DID with a peer receiver DID. Adding an
// existing pair with an empty alias keeps its alias.
func (a *Agent) AddConnection(holder, receiver did.DID, alias string) error {
	a.connMu.Lock()
	defer a.connMu.Unlock()

	key := connectionKey(holder, receiver)

	pair := store.DIDPair{Holder: holder, Receiver: receiver, Alias: alias}
	if existing, ok := a.connections[key]; ok && alias == "" {
		pair.Alias = existing.Alias
	}

	if err := a.store.StoreDIDPair(pair); err != nil {
		return fmt.Errorf("add connection: %w", err)
	}

	a.connections[key] = pair

	logger.Debugf("connection %s -> %s added", holder, receiver)

	return nil
}

// RemoveConnection drops a pairing. Removing an unknown pair is a no-op.
func (a *Agent) RemoveConnection(holder, receiver did.DID) error {
	a.connMu.Lock()
	defer a.connMu.Unlock()

	key := connectionKey(holder, receiver)
	if _, ok := a.connections[key]; !ok {
		return nil
	}

	if err := a.store.RemoveDIDPair(holder, receiver); err != nil && !store.IsNotFound(err) {
		return fmt.Errorf("remove connection: %w", err)
	}

	delete(a.connections, key)

	return nil
}

// Connections returns the registered pairings ordered by holder then receiver.
func (a *Agent) Connections() []store.DIDPair {
	a.connMu.RLock()
	defer a.connMu.RUnlock()

	out := make([]store.DIDPair, 0, len(a.connections))
	for _, p := range a.connections {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		return connectionKey(out[i].Holder, out[i].Receiver) < connectionKey(out[j].Holder, out[j].Receiver)
	})

	return out
}

// ConnectionByAlias returns the pairing named alias.
func (a *Agent) ConnectionByAlias(alias string) (*store.DIDPair, bool) {
	a.connMu.RLock()
	defer a.connMu.RUnlock()

	for _, p := range a.connections {
		if p.Alias == alias {
			pair := p

			return &pair, true
		}
	}

	return nil, false
}
