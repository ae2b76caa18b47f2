/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/curve25519"
)

const (
	x25519KeySize    = curve25519.PointSize
	secp256k1Coord   = 32
	uncompressedSize = 1 + 2*secp256k1Coord
)

// NewPublicKey builds a public key of curve from its raw bytes.
func NewPublicKey(curve Curve, raw []byte) (PublicKey, error) {
	switch curve {
	case Ed25519:
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes", ErrInvalidKeyBytes, ed25519.PublicKeySize)
		}

		return &Ed25519PublicKey{key: append(ed25519.PublicKey(nil), raw...)}, nil
	case X25519:
		if len(raw) != x25519KeySize {
			return nil, fmt.Errorf("%w: x25519 public key must be %d bytes", ErrInvalidKeyBytes, x25519KeySize)
		}

		return &X25519PublicKey{key: append([]byte(nil), raw...)}, nil
	case Secp256k1:
		pub, err := btcec.ParsePubKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKeyBytes, err)
		}

		return &Secp256k1PublicKey{key: pub}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve)
}

// NewSecp256k1PublicKeyFromXY builds a secp256k1 public key from its affine coordinates.
func NewSecp256k1PublicKeyFromXY(x, y []byte) (*Secp256k1PublicKey, error) {
	if len(x) > secp256k1Coord || len(y) > secp256k1Coord {
		return nil, fmt.Errorf("%w: secp256k1 coordinates larger than %d bytes", ErrInvalidKeyBytes, secp256k1Coord)
	}

	buf := make([]byte, uncompressedSize)
	buf[0] = 0x04
	copy(buf[1+secp256k1Coord-len(x):1+secp256k1Coord], x)
	copy(buf[uncompressedSize-len(y):], y)

	pub, err := btcec.ParsePubKey(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyBytes, err)
	}

	return &Secp256k1PublicKey{key: pub}, nil
}

// NewPrivateKey builds a private key of curve from its raw bytes. Ed25519 accepts the
// 32 byte seed or the 64 byte expanded key.
func NewPrivateKey(curve Curve, raw []byte) (PrivateKey, error) {
	switch curve {
	case Ed25519:
		switch len(raw) {
		case ed25519.SeedSize:
			return &Ed25519PrivateKey{key: ed25519.NewKeyFromSeed(raw)}, nil
		case ed25519.PrivateKeySize:
			return &Ed25519PrivateKey{key: append(ed25519.PrivateKey(nil), raw...)}, nil
		}

		return nil, fmt.Errorf("%w: ed25519 private key must be %d or %d bytes",
			ErrInvalidKeyBytes, ed25519.SeedSize, ed25519.PrivateKeySize)
	case X25519:
		if len(raw) != x25519KeySize {
			return nil, fmt.Errorf("%w: x25519 private key must be %d bytes", ErrInvalidKeyBytes, x25519KeySize)
		}

		return newX25519PrivateKey(raw)
	case Secp256k1:
		if len(raw) != secp256k1Coord {
			return nil, fmt.Errorf("%w: secp256k1 private key must be %d bytes", ErrInvalidKeyBytes, secp256k1Coord)
		}

		priv, _ := btcec.PrivKeyFromBytes(raw)

		return &Secp256k1PrivateKey{key: priv}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve)
}

// Ed25519PublicKey is an Ed25519 public key.
type Ed25519PublicKey struct {
	key ed25519.PublicKey
}

func (k *Ed25519PublicKey) isPublic() {}

// Curve returns Ed25519.
func (k *Ed25519PublicKey) Curve() Curve { return Ed25519 }

// Raw returns the 32 byte public key.
func (k *Ed25519PublicKey) Raw() []byte { return append([]byte(nil), k.key...) }

// Verify checks an EdDSA signature.
func (k *Ed25519PublicKey) Verify(msg, sig []byte) (bool, error) {
	return ed25519.Verify(k.key, msg, sig), nil
}

// JWK returns the OKP JWK form.
func (k *Ed25519PublicKey) JWK() map[string]string {
	return okpJWK(Ed25519, k.key)
}

// Ed25519PrivateKey is an Ed25519 private key.
type Ed25519PrivateKey struct {
	key ed25519.PrivateKey
}

func (k *Ed25519PrivateKey) isPrivate() {}

// Curve returns Ed25519.
func (k *Ed25519PrivateKey) Curve() Curve { return Ed25519 }

// Raw returns the 32 byte seed.
func (k *Ed25519PrivateKey) Raw() []byte { return append([]byte(nil), k.key.Seed()...) }

// PublicKey returns the matching public key.
func (k *Ed25519PrivateKey) PublicKey() PublicKey {
	pub, _ := k.key.Public().(ed25519.PublicKey) //nolint:errcheck

	return &Ed25519PublicKey{key: pub}
}

// Sign produces an EdDSA signature.
func (k *Ed25519PrivateKey) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(k.key, msg), nil
}

// JWK returns the OKP JWK form including the private part.
func (k *Ed25519PrivateKey) JWK() map[string]string {
	jwk := okpJWK(Ed25519, k.key.Public().(ed25519.PublicKey)) //nolint:forcetypeassert
	jwk["d"] = base64.RawURLEncoding.EncodeToString(k.key.Seed())

	return jwk
}

// X25519PublicKey is an X25519 key agreement public key.
type X25519PublicKey struct {
	key []byte
}

func (k *X25519PublicKey) isPublic() {}

// Curve returns X25519.
func (k *X25519PublicKey) Curve() Curve { return X25519 }

// Raw returns the 32 byte u-coordinate.
func (k *X25519PublicKey) Raw() []byte { return append([]byte(nil), k.key...) }

// JWK returns the OKP JWK form.
func (k *X25519PublicKey) JWK() map[string]string {
	return okpJWK(X25519, k.key)
}

// X25519PrivateKey is an X25519 key agreement private key.
type X25519PrivateKey struct {
	key []byte
	pub []byte
}

func newX25519PrivateKey(raw []byte) (*X25519PrivateKey, error) {
	pub, err := curve25519.X25519(raw, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyBytes, err)
	}

	return &X25519PrivateKey{key: append([]byte(nil), raw...), pub: pub}, nil
}

func (k *X25519PrivateKey) isPrivate() {}

// Curve returns X25519.
func (k *X25519PrivateKey) Curve() Curve { return X25519 }

// Raw returns the 32 byte scalar.
func (k *X25519PrivateKey) Raw() []byte { return append([]byte(nil), k.key...) }

// PublicKey returns the matching public key.
func (k *X25519PrivateKey) PublicKey() PublicKey {
	return &X25519PublicKey{key: append([]byte(nil), k.pub...)}
}

// SharedSecret runs X25519 against an X25519 public key.
func (k *X25519PrivateKey) SharedSecret(pub PublicKey) ([]byte, error) {
	xPub, ok := pub.(*X25519PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s public key, got %s", ErrCurveMismatch, X25519, pub.Curve())
	}

	return curve25519.X25519(k.key, xPub.key)
}

// JWK returns the OKP JWK form including the private part.
func (k *X25519PrivateKey) JWK() map[string]string {
	jwk := okpJWK(X25519, k.pub)
	jwk["d"] = base64.RawURLEncoding.EncodeToString(k.key)

	return jwk
}

// Secp256k1PublicKey is a secp256k1 public key.
type Secp256k1PublicKey struct {
	key *btcec.PublicKey
}

func (k *Secp256k1PublicKey) isPublic() {}

// Curve returns Secp256k1.
func (k *Secp256k1PublicKey) Curve() Curve { return Secp256k1 }

// Raw returns the 33 byte compressed point.
func (k *Secp256k1PublicKey) Raw() []byte { return k.key.SerializeCompressed() }

// Verify checks a DER encoded ECDSA signature over sha256(msg).
func (k *Secp256k1PublicKey) Verify(msg, sig []byte) (bool, error) {
	signature, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, fmt.Errorf("parse secp256k1 signature: %w", err)
	}

	hash := sha256.Sum256(msg)

	return signature.Verify(hash[:], k.key), nil
}

// JWK returns the EC JWK form.
func (k *Secp256k1PublicKey) JWK() map[string]string {
	x, y := k.Coordinates()

	return map[string]string{
		"kty": "EC",
		"crv": string(Secp256k1),
		"x":   base64.RawURLEncoding.EncodeToString(x),
		"y":   base64.RawURLEncoding.EncodeToString(y),
	}
}

// Coordinates returns the 32 byte affine x and y coordinates.
func (k *Secp256k1PublicKey) Coordinates() ([]byte, []byte) {
	b := k.key.SerializeUncompressed()

	return b[1 : 1+secp256k1Coord], b[1+secp256k1Coord:]
}

// Equal reports whether both keys are the same point.
func (k *Secp256k1PublicKey) Equal(other *Secp256k1PublicKey) bool {
	return bytes.Equal(k.Raw(), other.Raw())
}

// Secp256k1PrivateKey is a secp256k1 private key.
type Secp256k1PrivateKey struct {
	key *btcec.PrivateKey
}

func (k *Secp256k1PrivateKey) isPrivate() {}

// Curve returns Secp256k1.
func (k *Secp256k1PrivateKey) Curve() Curve { return Secp256k1 }

// Raw returns the 32 byte scalar.
func (k *Secp256k1PrivateKey) Raw() []byte { return k.key.Serialize() }

// PublicKey returns the matching public key.
func (k *Secp256k1PrivateKey) PublicKey() PublicKey {
	return &Secp256k1PublicKey{key: k.key.PubKey()}
}

// Sign produces a DER encoded ECDSA signature over sha256(msg).
func (k *Secp256k1PrivateKey) Sign(msg []byte) ([]byte, error) {
	hash := sha256.Sum256(msg)

	return ecdsa.Sign(k.key, hash[:]).Serialize(), nil
}

// JWK returns the EC JWK form including the private part.
func (k *Secp256k1PrivateKey) JWK() map[string]string {
	jwk := (&Secp256k1PublicKey{key: k.key.PubKey()}).JWK()
	jwk["d"] = base64.RawURLEncoding.EncodeToString(k.key.Serialize())

	return jwk
}

func okpJWK(curve Curve, x []byte) map[string]string {
	return map[string]string{
		"kty": "OKP",
		"crv": string(curve),
		"x":   base64.RawURLEncoding.EncodeToString(x),
	}
}
