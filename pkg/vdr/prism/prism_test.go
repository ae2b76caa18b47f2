/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prism

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/api"
)

func publicKey(t *testing.T, curve crypto.Curve) crypto.PublicKey {
	t.Helper()

	kp, err := crypto.NewGenerator().GenerateKeyPair(curve)
	require.NoError(t, err)

	return kp.Public
}

func longFormDID(t *testing.T) *did.DID {
	t.Helper()

	d, err := CreateLongFormDID([]PublicKey{
		{Usage: MasterKey, Key: publicKey(t, crypto.Secp256k1)},
		{ID: "auth-1", Usage: AuthenticationKey, Key: publicKey(t, crypto.Ed25519)},
		{Usage: IssuingKey, Key: publicKey(t, crypto.Secp256k1)},
		{Usage: KeyAgreementKey, Key: publicKey(t, crypto.X25519)},
		{Usage: RevocationKey, Key: publicKey(t, crypto.Secp256k1)},
	}, []Service{
		{ID: "didcomm-1", Type: did.DIDCommMessagingServiceType, ServiceEndpoint: "https://agent.example.com"},
	})
	require.NoError(t, err)

	return d
}

func TestResolver_Resolve(t *testing.T) {
	t.Run("long-form DID", func(t *testing.T) {
		d := longFormDID(t)

		doc, err := NewResolver().Resolve(context.Background(), *d)
		require.NoError(t, err)
		require.Equal(t, d.String(), doc.ID.String())

		require.Len(t, doc.VerificationMethods(), 5)
		require.Equal(t, d.String()+"#master0", doc.VerificationMethods()[0].ID.String())
		require.Equal(t, "secp256k1", doc.VerificationMethods()[0].PublicKeyJwk["crv"])

		require.Len(t, doc.Authentication(), 1)
		require.Equal(t, d.String()+"#auth-1", doc.Authentication()[0].ID.String())

		require.Len(t, doc.AssertionMethod(), 1)
		require.Equal(t, "issuing0", doc.AssertionMethod()[0].ID.Fragment)

		require.Len(t, doc.KeyAgreement(), 1)
		require.Equal(t, "X25519", doc.KeyAgreement()[0].PublicKeyJwk["crv"])

		require.Empty(t, doc.CapabilityInvocation())

		services := doc.DIDCommServices()
		require.Len(t, services, 1)
		require.Equal(t, d.String()+"#didcomm-1", services[0].ID)
		require.Equal(t, "https://agent.example.com", services[0].ServiceEndpoint.URI)
	})

	t.Run("tampered state", func(t *testing.T) {
		d := longFormDID(t)
		segments := d.Segments()

		encoded, err := base64.RawURLEncoding.DecodeString(segments[1])
		require.NoError(t, err)

		encoded[len(encoded)-1] ^= 0x01

		tampered, err := did.New(DIDMethod, segments[0]+":"+base64.RawURLEncoding.EncodeToString(encoded))
		require.NoError(t, err)

		doc, err := NewResolver().Resolve(context.Background(), *tampered)
		require.ErrorIs(t, err, ErrInitialStateOfDIDChanged)
		require.ErrorIs(t, err, api.ErrIntegrity)
		require.Nil(t, doc)
	})

	t.Run("short form", func(t *testing.T) {
		_, err := NewResolver().Resolve(context.Background(), *did.MustParse("did:prism:abc"))
		require.ErrorIs(t, err, ErrInvalidLongFormDID)
	})

	t.Run("three segments", func(t *testing.T) {
		_, err := NewResolver().Resolve(context.Background(), *did.MustParse("did:prism:a:b:c"))
		require.ErrorIs(t, err, ErrInvalidLongFormDID)
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := NewResolver().Resolve(context.Background(), *did.MustParse("did:prism:abc:%%%"))
		require.ErrorIs(t, err, ErrInvalidLongFormDID)
	})

	t.Run("valid hash over garbage", func(t *testing.T) {
		garbage := []byte{0xff, 0xff, 0xff}
		hash := sha256.Sum256(garbage)

		d, err := did.New(DIDMethod, hex.EncodeToString(hash[:])+":"+base64.RawURLEncoding.EncodeToString(garbage))
		require.NoError(t, err)

		_, err = NewResolver().Resolve(context.Background(), *d)
		require.ErrorIs(t, err, ErrInvalidLongFormDID)
	})

	t.Run("uncompressed EC key data", func(t *testing.T) {
		pub := publicKey(t, crypto.Secp256k1).(*crypto.Secp256k1PublicKey)
		x, y := pub.Coordinates()

		var ecData []byte
		ecData = appendString(ecData, ecKeyDataCurve, "secp256k1")
		ecData = appendMessage(ecData, ecKeyDataX, x)
		ecData = appendMessage(ecData, ecKeyDataY, y)

		var key []byte
		key = appendString(key, publicKeyID, "master0")
		key = protowire.AppendTag(key, publicKeyUsage, protowire.VarintType)
		key = protowire.AppendVarint(key, uint64(MasterKey))
		key = appendMessage(key, publicKeyECKeyData, ecData)

		op := appendMessage(nil, atalaOperationCreateDID,
			appendMessage(nil, createDIDOperationData, appendMessage(nil, creationDataPublicKeys, key)))

		decoded, err := UnmarshalCreateDIDOperation(op)
		require.NoError(t, err)
		require.Len(t, decoded.PublicKeys, 1)
		require.Equal(t, MasterKey, decoded.PublicKeys[0].Usage)
		require.Equal(t, pub.Raw(), decoded.PublicKeys[0].Key.Raw())
	})
}

func TestCreateLongFormDID(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		keys := []PublicKey{{Usage: MasterKey, Key: publicKey(t, crypto.Secp256k1)}}

		d1, err := CreateLongFormDID(keys, nil)
		require.NoError(t, err)

		d2, err := CreateLongFormDID(keys, nil)
		require.NoError(t, err)
		require.Equal(t, d1.String(), d2.String())
		require.Len(t, d1.Segments(), 2)
	})

	t.Run("master key required", func(t *testing.T) {
		_, err := CreateLongFormDID([]PublicKey{{Usage: IssuingKey, Key: publicKey(t, crypto.Secp256k1)}}, nil)
		require.ErrorIs(t, err, ErrMasterKeyRequired)
	})

	t.Run("operation round trip", func(t *testing.T) {
		op := &CreateDIDOperation{
			PublicKeys: []PublicKey{{ID: "m", Usage: MasterKey, Key: publicKey(t, crypto.Secp256k1)}},
			Services:   []Service{{ID: "s", Type: "LinkedDomains", ServiceEndpoint: "https://example.com"}},
			Context:    []string{"https://www.w3.org/ns/did/v1"},
		}

		decoded, err := UnmarshalCreateDIDOperation(op.Marshal())
		require.NoError(t, err)
		require.Equal(t, op.Services, decoded.Services)
		require.Equal(t, op.Context, decoded.Context)
		require.Equal(t, op.PublicKeys[0].Key.Raw(), decoded.PublicKeys[0].Key.Raw())
	})
}
