/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

// Resolver rebuilds numalgo 2 peer DID documents from the DID alone.
type Resolver struct{}

// NewResolver returns a peer DID resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Method returns "peer".
func (r *Resolver) Method() string {
	return DIDMethod
}

// Resolve decodes the keys and services embedded in d.
func (r *Resolver) Resolve(ctx context.Context, d did.DID) (*did.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.Method != DIDMethod {
		return nil, fmt.Errorf("%w: method %q", ErrInvalidPeerDID, d.Method)
	}

	segments := strings.Split(d.MethodID, segmentSeparator)
	if segments[0] != numalgo2 || len(segments) < 2 {
		return nil, fmt.Errorf("%w: only numalgo 2 is supported", ErrInvalidPeerDID)
	}

	var (
		all          did.VerificationMethods
		agreement    did.KeyAgreement
		auth         did.Authentication
		services     did.Services
		keyIndex     int
		serviceIndex int
	)

	for _, segment := range segments[1:] {
		if segment == "" {
			return nil, fmt.Errorf("%w: empty segment", ErrInvalidPeerDID)
		}

		purpose, value := segment[0], segment[1:]

		switch purpose {
		case purposeAgreement, purposeAuthentication:
			keyIndex++

			vm, err := verificationMethod(d, purpose, value, keyIndex)
			if err != nil {
				return nil, err
			}

			all = append(all, vm)

			if purpose == purposeAgreement {
				agreement = append(agreement, vm)
			} else {
				auth = append(auth, vm)
			}
		case purposeService:
			svc, err := decodeService(value)
			if err != nil {
				return nil, err
			}

			svc.ID = serviceID(d, serviceIndex)
			serviceIndex++

			services = append(services, svc)
		default:
			return nil, fmt.Errorf("%w: unknown purpose %q", ErrInvalidPeerDID, purpose)
		}
	}

	logger.Debugf("resolved %s: %d keys, %d services", d.String(), keyIndex, serviceIndex)

	return did.BuildDoc(d,
		did.WithCoreProperty(all),
		did.WithCoreProperty(auth),
		did.WithCoreProperty(agreement),
		did.WithCoreProperty(services),
	), nil
}

func verificationMethod(d did.DID, purpose byte, value string, index int) (did.VerificationMethod, error) {
	key, err := crypto.DecodeMultibase(value)
	if err != nil {
		return did.VerificationMethod{}, fmt.Errorf("%w: key %d: %w", ErrInvalidPeerDID, index, err)
	}

	vm := did.VerificationMethod{
		ID:                 did.NewDIDURL(d, fmt.Sprintf("key-%d", index)),
		Controller:         d,
		PublicKeyMultibase: value,
	}

	switch {
	case purpose == purposeAgreement && key.Curve() == crypto.X25519:
		vm.Type = did.X25519KeyAgreementKey2020
	case purpose == purposeAuthentication && key.Curve() == crypto.Ed25519:
		vm.Type = did.Ed25519VerificationKey2020
	default:
		return did.VerificationMethod{}, fmt.Errorf("%w: purpose %c with %s key", ErrInvalidKey, purpose, key.Curve())
	}

	return vm, nil
}

func serviceID(d did.DID, index int) string {
	if index == 0 {
		return d.String() + "#service"
	}

	return fmt.Sprintf("%s#service-%d", d.String(), index)
}
