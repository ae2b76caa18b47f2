/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package api declares the DID resolver contracts shared by the registry and the method resolvers.
package api

import (
	"context"
	"errors"

	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

var (
	// ErrNotPossibleToResolveDID is returned when no resolver of the chain could resolve a DID.
	ErrNotPossibleToResolveDID = errors.New("not possible to resolve DID")
	// ErrIntegrity is wrapped by errors that prove a DID was tampered with. They stop the resolver chain.
	ErrIntegrity = errors.New("DID integrity check failed")
)

// Resolver resolves the DIDs of one method.
type Resolver interface {
	Method() string
	Resolve(ctx context.Context, d did.DID) (*did.Doc, error)
}

// DIDResolver resolves a DID string of any supported method.
type DIDResolver interface {
	Resolve(ctx context.Context, didStr string) (*did.Doc, error)
}
