/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package key implements the did:key method. The method specific id is the multibase encoded
// public key and the document is derived from it.
package key

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"regexp"

	"github.com/agl/ed25519/extra25519"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

// DIDMethod did method.
const DIDMethod = "key"

const curve25519KeySize = 32

var logger = log.New("aries-edge-agent/vdr/key")

// ErrInvalidDIDKey is returned when the method specific id is not a supported multibase key.
var ErrInvalidDIDKey = errors.New("invalid did:key")

var methodID = regexp.MustCompile(`^z[1-9a-km-zA-HJ-NP-Z]{46,}$`)

// Create returns the did:key of pub.
func Create(pub crypto.PublicKey) (*did.DID, error) {
	encoded, err := crypto.EncodeMultibase(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDIDKey, err)
	}

	return did.New(DIDMethod, encoded)
}

// Resolver resolves did:key DIDs.
type Resolver struct{}

// NewResolver returns a did:key resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Method returns "key".
func (r *Resolver) Method() string {
	return DIDMethod
}

// Resolve expands d into its document. Ed25519 keys also get the converted X25519 key as key
// agreement, so that a did:key can receive DIDComm messages.
func (r *Resolver) Resolve(ctx context.Context, d did.DID) (*did.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.Method != DIDMethod || !methodID.MatchString(d.MethodID) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDIDKey, d.String())
	}

	pub, err := crypto.DecodeMultibase(d.MethodID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDIDKey, err)
	}

	vm := did.VerificationMethod{
		ID:                 did.NewDIDURL(d, d.MethodID),
		Controller:         d,
		PublicKeyMultibase: d.MethodID,
	}

	switch pub.Curve() {
	case crypto.Ed25519:
		vm.Type = did.Ed25519VerificationKey2020

		agreement, e := keyAgreementFromEd25519(d, pub)
		if e != nil {
			return nil, e
		}

		return did.BuildDoc(d,
			did.WithCoreProperty(did.VerificationMethods{vm, agreement}),
			did.WithCoreProperty(did.Authentication{vm}),
			did.WithCoreProperty(did.AssertionMethod{vm}),
			did.WithCoreProperty(did.KeyAgreement{agreement}),
		), nil
	case crypto.X25519:
		vm.Type = did.X25519KeyAgreementKey2020

		return did.BuildDoc(d,
			did.WithCoreProperty(did.VerificationMethods{vm}),
			did.WithCoreProperty(did.KeyAgreement{vm}),
		), nil
	case crypto.Secp256k1:
		exporter, ok := pub.(crypto.Exporter)
		if !ok {
			return nil, fmt.Errorf("%w: secp256k1 key has no JWK form", ErrInvalidDIDKey)
		}

		vm.Type = did.JSONWebKey2020
		vm.PublicKeyMultibase = ""
		vm.PublicKeyJwk = exporter.JWK()

		return did.BuildDoc(d,
			did.WithCoreProperty(did.VerificationMethods{vm}),
			did.WithCoreProperty(did.Authentication{vm}),
			did.WithCoreProperty(did.AssertionMethod{vm}),
		), nil
	}

	return nil, fmt.Errorf("%w: unsupported key type %s", ErrInvalidDIDKey, pub.Curve())
}

func keyAgreementFromEd25519(d did.DID, pub crypto.PublicKey) (did.VerificationMethod, error) {
	raw := pub.Raw()
	if len(raw) != ed25519.PublicKeySize {
		return did.VerificationMethod{}, fmt.Errorf("%w: %d-byte ed25519 key", ErrInvalidDIDKey, len(raw))
	}

	in := new([ed25519.PublicKeySize]byte)
	copy(in[:], raw)

	out := new([curve25519KeySize]byte)
	if !extra25519.PublicKeyToCurve25519(out, in) {
		return did.VerificationMethod{}, fmt.Errorf("%w: ed25519 key is not convertible", ErrInvalidDIDKey)
	}

	x25519, err := crypto.NewPublicKey(crypto.X25519, out[:])
	if err != nil {
		return did.VerificationMethod{}, err
	}

	encoded, err := crypto.EncodeMultibase(x25519)
	if err != nil {
		return did.VerificationMethod{}, err
	}

	logger.Debugf("derived key agreement of %s", d.String())

	return did.VerificationMethod{
		ID:                 did.NewDIDURL(d, encoded),
		Controller:         d,
		Type:               did.X25519KeyAgreementKey2020,
		PublicKeyMultibase: encoded,
	}, nil
}
