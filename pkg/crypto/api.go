/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package crypto is the key-material adapter of the agent. Keys are a closed set of curve
// variants and capabilities (signing, verification, export) are separate interfaces that
// only the supporting variants implement, so a capability check is a type assertion on an
// interface rather than a query on the key.
package crypto

import (
	"errors"
)

// Curve identifies the curve family of a key.
type Curve string

// Supported curves.
const (
	Secp256k1 Curve = "secp256k1"
	Ed25519   Curve = "Ed25519"
	X25519    Curve = "X25519"
)

var (
	// ErrUnsupportedCurve is returned for a curve outside the supported set.
	ErrUnsupportedCurve = errors.New("unsupported curve")
	// ErrInvalidKeyBytes is returned when raw key bytes do not form a valid key for the curve.
	ErrInvalidKeyBytes = errors.New("invalid key bytes")
	// ErrCurveMismatch is returned when a key of one curve is used where another is required.
	ErrCurveMismatch = errors.New("key curve mismatch")
)

// Key is implemented by every key variant.
type Key interface {
	Curve() Curve
	// Raw returns the canonical raw encoding (compressed point for secp256k1 public keys).
	Raw() []byte
}

// PublicKey is a public key variant.
type PublicKey interface {
	Key
	isPublic()
}

// PrivateKey is a private key variant.
type PrivateKey interface {
	Key
	PublicKey() PublicKey
	isPrivate()
}

// Signer is implemented by private keys that can sign.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
}

// Verifier is implemented by public keys that can verify signatures.
type Verifier interface {
	Verify(msg, sig []byte) (bool, error)
}

// Exporter is implemented by keys that have a JWK representation.
type Exporter interface {
	JWK() map[string]string
}

// KeyAgreement is implemented by private keys that can derive a shared secret.
type KeyAgreement interface {
	SharedSecret(pub PublicKey) ([]byte, error)
}

// KeyPair couples a private key with its public key.
type KeyPair struct {
	Private PrivateKey
	Public  PublicKey
}

// KeyPairGenerator is the capability consumed from the crypto collaborator.
type KeyPairGenerator interface {
	GenerateKeyPair(curve Curve) (*KeyPair, error)
}
