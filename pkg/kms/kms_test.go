/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package kms

import (
	"context"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/store"
)

func TestLocalKMS(t *testing.T) {
	s, err := store.New(mem.NewProvider())
	require.NoError(t, err)

	owner := did.MustParse("did:peer:alice")
	kid := owner.String() + "#key-1"

	kp, err := crypto.NewGenerator().GenerateKeyPair(crypto.X25519)
	require.NoError(t, err)

	k := New(s)
	require.NoError(t, k.AddSecret(*owner, kid, kp.Private, 0))

	t.Run("cached", func(t *testing.T) {
		key, err := k.FindSecret(context.Background(), kid)
		require.NoError(t, err)
		require.Equal(t, kp.Private.Raw(), key.Raw())
	})

	t.Run("restored from store", func(t *testing.T) {
		key, err := New(s).FindSecret(context.Background(), kid)
		require.NoError(t, err)
		require.Equal(t, crypto.X25519, key.Curve())
		require.Equal(t, kp.Public.Raw(), key.PublicKey().Raw())
	})

	t.Run("not found", func(t *testing.T) {
		_, err := k.FindSecret(context.Background(), "did:peer:alice#key-9")
		require.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("find secrets", func(t *testing.T) {
		held := k.FindSecrets(context.Background(), []string{"did:peer:x#key-1", kid})
		require.Equal(t, []string{kid}, held)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := k.FindSecret(ctx, kid)
		require.ErrorIs(t, err, context.Canceled)
	})
}
