/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package prism resolves long-form did:prism DIDs, whose initial state is carried in the
// DID itself and checked against its SHA-256 state hash.
package prism

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/api"
)

// DIDMethod is the prism DID method name.
const DIDMethod = "prism"

var logger = log.New("aries-edge-agent/vdr/prism")

var (
	// ErrInvalidLongFormDID is returned when a DID is not a well formed long-form prism DID.
	ErrInvalidLongFormDID = errors.New("invalid long-form prism DID")
	// ErrInitialStateOfDIDChanged is returned when the encoded state does not match its hash.
	ErrInitialStateOfDIDChanged = fmt.Errorf("initial state of DID changed: %w", api.ErrIntegrity)
	// ErrMasterKeyRequired is returned when creating a DID without a master key.
	ErrMasterKeyRequired = errors.New("a master key is required")
)

// Resolver resolves long-form prism DIDs without network access.
type Resolver struct{}

// NewResolver returns a long-form prism resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Method returns "prism".
func (r *Resolver) Method() string {
	return DIDMethod
}

// Resolve verifies the state hash of d and builds the document from its create operation.
func (r *Resolver) Resolve(ctx context.Context, d did.DID) (*did.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	segments := d.Segments()
	if d.Method != DIDMethod || len(segments) != 2 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLongFormDID, d.String())
	}

	encoded, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return nil, fmt.Errorf("%w: encoded state: %w", ErrInvalidLongFormDID, err)
	}

	hash := sha256.Sum256(encoded)
	if !strings.EqualFold(hex.EncodeToString(hash[:]), segments[0]) {
		return nil, fmt.Errorf("%w: %s", ErrInitialStateOfDIDChanged, d.String())
	}

	op, err := UnmarshalCreateDIDOperation(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLongFormDID, err)
	}

	doc, err := buildDoc(d, op)
	if err != nil {
		return nil, err
	}

	logger.Debugf("resolved long-form %s with %d keys", segments[0], len(op.PublicKeys))

	return doc, nil
}

func buildDoc(d did.DID, op *CreateDIDOperation) (*did.Doc, error) {
	var (
		all        did.VerificationMethods
		auth       did.Authentication
		assertion  did.AssertionMethod
		agreement  did.KeyAgreement
		invocation did.CapabilityInvocation
		delegation did.CapabilityDelegation
		services   did.Services
	)

	counters := make(map[KeyUsage]int)

	for _, k := range op.PublicKeys {
		fragment := k.ID
		if fragment == "" {
			fragment = fmt.Sprintf("%s%d", k.Usage.Prefix(), counters[k.Usage])
		}

		counters[k.Usage]++

		exporter, ok := k.Key.(crypto.Exporter)
		if !ok {
			return nil, fmt.Errorf("%w: key %s cannot be exported", ErrInvalidLongFormDID, fragment)
		}

		vm := did.VerificationMethod{
			ID:           did.NewDIDURL(d, fragment),
			Controller:   d,
			Type:         did.JSONWebKey2020,
			PublicKeyJwk: exporter.JWK(),
		}

		all = append(all, vm)

		switch k.Usage {
		case AuthenticationKey:
			auth = append(auth, vm)
		case IssuingKey:
			assertion = append(assertion, vm)
		case KeyAgreementKey:
			agreement = append(agreement, vm)
		case CapabilityInvocationKey:
			invocation = append(invocation, vm)
		case CapabilityDelegationKey:
			delegation = append(delegation, vm)
		case UnknownKey, MasterKey, RevocationKey:
		}
	}

	for _, s := range op.Services {
		id := s.ID
		if !strings.HasPrefix(id, "did:") {
			id = d.String() + "#" + strings.TrimPrefix(id, "#")
		}

		services = append(services, did.Service{
			ID:              id,
			Type:            s.Type,
			ServiceEndpoint: did.ServiceEndpoint{URI: s.ServiceEndpoint},
		})
	}

	return did.BuildDoc(d,
		did.WithCoreProperty(all),
		did.WithCoreProperty(auth),
		did.WithCoreProperty(assertion),
		did.WithCoreProperty(agreement),
		did.WithCoreProperty(invocation),
		did.WithCoreProperty(delegation),
		did.WithCoreProperty(services),
	), nil
}

// CreateLongFormDID encodes keys and services as a long-form prism DID.
func CreateLongFormDID(keys []PublicKey, services []Service) (*did.DID, error) {
	hasMaster := false

	for _, k := range keys {
		if k.Key == nil {
			return nil, fmt.Errorf("key %q has no key material", k.ID)
		}

		if k.Usage == MasterKey {
			hasMaster = true
		}
	}

	if !hasMaster {
		return nil, ErrMasterKeyRequired
	}

	encoded := (&CreateDIDOperation{PublicKeys: keys, Services: services}).Marshal()
	hash := sha256.Sum256(encoded)

	return did.New(DIDMethod, hex.EncodeToString(hash[:])+":"+base64.RawURLEncoding.EncodeToString(encoded))
}
