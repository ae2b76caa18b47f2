/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/multiformats/go-multibase"
)

// Multicodec codes of the supported public keys.
const (
	MulticodecSecp256k1Pub uint64 = 0xe7
	MulticodecEd25519Pub   uint64 = 0xed
	MulticodecX25519Pub    uint64 = 0xec
)

// ErrUnknownMulticodec is returned when a multicodec prefix does not name a supported key type.
var ErrUnknownMulticodec = errors.New("unknown multicodec")

func multicodecOf(curve Curve) (uint64, error) {
	switch curve {
	case Secp256k1:
		return MulticodecSecp256k1Pub, nil
	case Ed25519:
		return MulticodecEd25519Pub, nil
	case X25519:
		return MulticodecX25519Pub, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrUnsupportedCurve, curve)
}

func curveOf(code uint64) (Curve, error) {
	switch code {
	case MulticodecSecp256k1Pub:
		return Secp256k1, nil
	case MulticodecEd25519Pub:
		return Ed25519, nil
	case MulticodecX25519Pub:
		return X25519, nil
	}

	return "", fmt.Errorf("%w: 0x%x", ErrUnknownMulticodec, code)
}

// EncodeMultibase returns the base58btc multibase of the multicodec prefixed raw public key.
func EncodeMultibase(pub PublicKey) (string, error) {
	code, err := multicodecOf(pub.Curve())
	if err != nil {
		return "", err
	}

	raw := pub.Raw()

	buf := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64+len(raw)), code)
	buf = append(buf, raw...)

	return multibase.Encode(multibase.Base58BTC, buf)
}

// DecodeMultibase parses a multibase multicodec encoded public key.
func DecodeMultibase(value string) (PublicKey, error) {
	_, data, err := multibase.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("decode multibase: %w", err)
	}

	code, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("%w: invalid multicodec varint", ErrInvalidKeyBytes)
	}

	curve, err := curveOf(code)
	if err != nil {
		return nil, err
	}

	return NewPublicKey(curve, data[n:])
}

// PublicKeyFromJWK parses an OKP or EC secp256k1 public JWK.
func PublicKeyFromJWK(jwk map[string]string) (PublicKey, error) {
	x, err := base64.RawURLEncoding.DecodeString(jwk["x"])
	if err != nil {
		return nil, fmt.Errorf("%w: jwk x: %w", ErrInvalidKeyBytes, err)
	}

	switch jwk["kty"] {
	case "OKP":
		return NewPublicKey(Curve(jwk["crv"]), x)
	case "EC":
		if Curve(jwk["crv"]) != Secp256k1 {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, jwk["crv"])
		}

		y, err := base64.RawURLEncoding.DecodeString(jwk["y"])
		if err != nil {
			return nil, fmt.Errorf("%w: jwk y: %w", ErrInvalidKeyBytes, err)
		}

		return NewSecp256k1PublicKeyFromXY(x, y)
	}

	return nil, fmt.Errorf("%w: unsupported jwk kty %q", ErrInvalidKeyBytes, jwk["kty"])
}
