/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package kms resolves the private keys of the agent DIDs by key id.
package kms

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/store"
)

var logger = log.New("aries-edge-agent/kms")

// ErrKeyNotFound is returned when no private key is held for a key id.
var ErrKeyNotFound = errors.New("key not found")

// SecretResolver finds private keys by key id.
type SecretResolver interface {
	FindSecret(ctx context.Context, kid string) (crypto.PrivateKey, error)
	FindSecrets(ctx context.Context, kids []string) []string
}

// LocalKMS keeps private keys in the key store and caches restored keys.
type LocalKMS struct {
	keys  store.KeyStore
	mu    sync.RWMutex
	cache map[string]crypto.PrivateKey
}

// New returns a LocalKMS persisting to keys.
func New(keys store.KeyStore) *LocalKMS {
	return &LocalKMS{
		keys:  keys,
		cache: make(map[string]crypto.PrivateKey),
	}
}

// AddSecret persists key under kid for the DID owner.
func (k *LocalKMS) AddSecret(owner did.DID, kid string, key crypto.PrivateKey, keyPathIndex int) error {
	err := k.keys.StorePrivateKey(store.PrivateKeyRecord{
		KeyID:        kid,
		DID:          owner,
		Curve:        key.Curve(),
		Raw:          key.Raw(),
		KeyPathIndex: keyPathIndex,
	})
	if err != nil {
		return fmt.Errorf("add secret %s: %w", kid, err)
	}

	k.mu.Lock()
	k.cache[kid] = key
	k.mu.Unlock()

	return nil
}

// FindSecret returns the private key of kid.
func (k *LocalKMS) FindSecret(ctx context.Context, kid string) (crypto.PrivateKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.RLock()
	key, ok := k.cache[kid]
	k.mu.RUnlock()

	if ok {
		return key, nil
	}

	rec, err := k.keys.GetPrivateKey(kid)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
		}

		return nil, fmt.Errorf("find secret %s: %w", kid, err)
	}

	key, err = crypto.NewPrivateKey(rec.Curve, rec.Raw)
	if err != nil {
		return nil, fmt.Errorf("restore secret %s: %w", kid, err)
	}

	k.mu.Lock()
	k.cache[kid] = key
	k.mu.Unlock()

	return key, nil
}

// FindSecrets returns the subset of kids this KMS holds, in the given order.
func (k *LocalKMS) FindSecrets(ctx context.Context, kids []string) []string {
	var held []string

	for _, kid := range kids {
		if _, err := k.FindSecret(ctx, kid); err != nil {
			if !errors.Is(err, ErrKeyNotFound) {
				logger.Warnf("lookup secret %s: %s", kid, err)
			}

			continue
		}

		held = append(held, kid)
	}

	return held
}
