/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"fmt"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/store"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/peer"
)

// CreateNewPeerDID creates a numalgo 2 peer DID with one agreement and one authentication key,
// stores its secrets and the DID record. With updateMediator the mediator service is added to
// the document and the DID is registered in the mediator keylist before anything is stored,
// so a rejected registration leaves no secrets behind.
func (a *Agent) CreateNewPeerDID(ctx context.Context, services []did.Service, updateMediator bool) (*did.DID, error) {
	if updateMediator {
		cfg, err := a.mediatorConfig()
		if err != nil {
			return nil, fmt.Errorf("create peer DID: %w", err)
		}

		services = append(append([]did.Service{}, services...), cfg.Service())
	}

	agreement, err := a.generator.GenerateKeyPair(crypto.X25519)
	if err != nil {
		return nil, fmt.Errorf("create peer DID: agreement key: %w", err)
	}

	authentication, err := a.generator.GenerateKeyPair(crypto.Ed25519)
	if err != nil {
		return nil, fmt.Errorf("create peer DID: authentication key: %w", err)
	}

	d, err := peer.Create([]crypto.PublicKey{agreement.Public}, []crypto.PublicKey{authentication.Public}, services)
	if err != nil {
		return nil, fmt.Errorf("create peer DID: %w", err)
	}

	doc, err := a.registry.Resolve(ctx, d.String())
	if err != nil {
		return nil, fmt.Errorf("create peer DID: resolve %s: %w", d, err)
	}

	if len(doc.KeyAgreement()) != 1 || len(doc.Authentication()) != 1 {
		return nil, fmt.Errorf("create peer DID: unexpected key set in %s", d)
	}

	if updateMediator {
		if err = a.mediator.UpdateKeyListWithDIDs(ctx, []did.DID{*d}); err != nil {
			return nil, fmt.Errorf("create peer DID: %w", err)
		}
	}

	index, err := a.store.NextKeyPathIndex()
	if err != nil {
		return nil, fmt.Errorf("create peer DID: %w", err)
	}

	if err = a.kms.AddSecret(*d, doc.KeyAgreement()[0].ID.String(), agreement.Private, index); err != nil {
		return nil, fmt.Errorf("create peer DID: %w", err)
	}

	if err = a.kms.AddSecret(*d, doc.Authentication()[0].ID.String(), authentication.Private, index); err != nil {
		return nil, fmt.Errorf("create peer DID: %w", err)
	}

	if err = a.store.StoreDID(store.DIDRecord{DID: *d, KeyPathIndex: index}); err != nil {
		return nil, fmt.Errorf("create peer DID: %w", err)
	}

	logger.Debugf("created peer DID %s", d)

	return d, nil
}

func (a *Agent) mediatorConfig() (*mediator.Config, error) {
	if a.mediator == nil {
		return nil, mediator.ErrNoMediatorAvailable
	}

	return a.mediator.Config()
}

// ResolveDID resolves a DID string through the resolver chain.
func (a *Agent) ResolveDID(ctx context.Context, didStr string) (*did.Doc, error) {
	return a.registry.Resolve(ctx, didStr)
}

// OwnsDID reports whether d was created by this agent.
func (a *Agent) OwnsDID(d did.DID) (bool, error) {
	_, err := a.store.GetDID(d)
	if err == nil {
		return true, nil
	}

	if store.IsNotFound(err) {
		return false, nil
	}

	return false, err
}
