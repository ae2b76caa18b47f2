/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package makemockdoc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/kms"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/peer"
)

// MakePeerDID creates a fresh X25519/Ed25519 peer DID with the given services and adds both
// private keys to keyManager under the key ids of the resolved document.
func MakePeerDID(t *testing.T, keyManager *kms.LocalKMS, services ...did.Service) *did.DID {
	t.Helper()

	gen := crypto.NewGenerator()

	agreement, err := gen.GenerateKeyPair(crypto.X25519)
	require.NoError(t, err)

	authentication, err := gen.GenerateKeyPair(crypto.Ed25519)
	require.NoError(t, err)

	d, err := peer.Create([]crypto.PublicKey{agreement.Public}, []crypto.PublicKey{authentication.Public}, services)
	require.NoError(t, err)

	doc, err := peer.NewResolver().Resolve(context.Background(), *d)
	require.NoError(t, err)
	require.Len(t, doc.KeyAgreement(), 1)
	require.Len(t, doc.Authentication(), 1)

	require.NoError(t, keyManager.AddSecret(*d, doc.KeyAgreement()[0].ID.String(), agreement.Private, 0))
	require.NoError(t, keyManager.AddSecret(*d, doc.Authentication()[0].ID.String(), authentication.Private, 0))

	return d
}

// DIDCommService returns a DIDComm v2 service at uri.
func DIDCommService(uri string, routingKeys ...string) did.Service {
	return did.Service{
		Type: did.DIDCommMessagingServiceType,
		ServiceEndpoint: did.ServiceEndpoint{
			URI:         uri,
			RoutingKeys: routingKeys,
			Accept:      []string{"didcomm/v2"},
		},
	}
}
