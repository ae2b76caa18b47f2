/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Generator creates key pairs from a random source.
type Generator struct {
	rand io.Reader
}

// GeneratorOption configures a Generator.
type GeneratorOption func(g *Generator)

// WithRandReader sets the entropy source, mostly for tests.
func WithRandReader(r io.Reader) GeneratorOption {
	return func(g *Generator) {
		g.rand = r
	}
}

// NewGenerator returns a Generator reading crypto/rand by default.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{rand: rand.Reader}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// GenerateKeyPair creates a fresh key pair on curve.
func (g *Generator) GenerateKeyPair(curve Curve) (*KeyPair, error) {
	var (
		priv PrivateKey
		err  error
	)

	switch curve {
	case Ed25519:
		var k ed25519.PrivateKey

		_, k, err = ed25519.GenerateKey(g.rand)
		if err == nil {
			priv = &Ed25519PrivateKey{key: k}
		}
	case X25519:
		seed := make([]byte, x25519KeySize)

		if _, err = io.ReadFull(g.rand, seed); err == nil {
			priv, err = newX25519PrivateKey(seed)
		}
	case Secp256k1:
		seed := make([]byte, secp256k1Coord)

		if _, err = io.ReadFull(g.rand, seed); err == nil {
			k, _ := btcec.PrivKeyFromBytes(seed)
			priv = &Secp256k1PrivateKey{key: k}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve)
	}

	if err != nil {
		return nil, fmt.Errorf("generate %s key pair: %w", curve, err)
	}

	return &KeyPair{Private: priv, Public: priv.PublicKey()}, nil
}
