/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prism

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
)

// Field numbers of the AtalaOperation protobuf schema.
const (
	atalaOperationCreateDID = 1

	createDIDOperationData = 1

	creationDataPublicKeys = 2
	creationDataServices   = 3
	creationDataContext    = 4

	publicKeyID                  = 1
	publicKeyUsage               = 2
	publicKeyECKeyData           = 8
	publicKeyCompressedECKeyData = 9

	ecKeyDataCurve = 1
	ecKeyDataX     = 2
	ecKeyDataY     = 3

	compressedKeyCurve = 1
	compressedKeyData  = 2

	serviceID       = 1
	serviceType     = 2
	serviceEndpoint = 3
)

var errWireType = errors.New("unexpected wire type")

// KeyUsage is the declared purpose of a prism public key.
type KeyUsage int32

// Key usages.
const (
	UnknownKey KeyUsage = iota
	MasterKey
	IssuingKey
	KeyAgreementKey
	AuthenticationKey
	RevocationKey
	CapabilityInvocationKey
	CapabilityDelegationKey
)

// Prefix is the verification method fragment prefix of the usage.
func (u KeyUsage) Prefix() string {
	switch u {
	case MasterKey:
		return "master"
	case IssuingKey:
		return "issuing"
	case KeyAgreementKey:
		return "agreement"
	case AuthenticationKey:
		return "authentication"
	case RevocationKey:
		return "revocation"
	case CapabilityInvocationKey:
		return "invocation"
	case CapabilityDelegationKey:
		return "delegation"
	case UnknownKey:
	}

	return "unknown"
}

// PublicKey is a key of a create operation.
type PublicKey struct {
	ID    string
	Usage KeyUsage
	Key   crypto.PublicKey
}

// Service is a service of a create operation.
type Service struct {
	ID              string
	Type            string
	ServiceEndpoint string
}

// CreateDIDOperation is the initial state embedded in a long-form DID.
type CreateDIDOperation struct {
	PublicKeys []PublicKey
	Services   []Service
	Context    []string
}

// Marshal encodes op as an AtalaOperation.
func (op *CreateDIDOperation) Marshal() []byte {
	var data []byte

	for _, k := range op.PublicKeys {
		data = appendMessage(data, creationDataPublicKeys, marshalPublicKey(k))
	}

	for _, s := range op.Services {
		var svc []byte
		svc = appendString(svc, serviceID, s.ID)
		svc = appendString(svc, serviceType, s.Type)
		svc = appendString(svc, serviceEndpoint, s.ServiceEndpoint)

		data = appendMessage(data, creationDataServices, svc)
	}

	for _, c := range op.Context {
		data = appendMessage(data, creationDataContext, []byte(c))
	}

	createOp := appendMessage(nil, createDIDOperationData, data)

	return appendMessage(nil, atalaOperationCreateDID, createOp)
}

func marshalPublicKey(k PublicKey) []byte {
	var b []byte

	b = appendString(b, publicKeyID, k.ID)

	if k.Usage != UnknownKey {
		b = protowire.AppendTag(b, publicKeyUsage, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(k.Usage))
	}

	var compressed []byte
	compressed = appendString(compressed, compressedKeyCurve, string(k.Key.Curve()))
	compressed = appendMessage(compressed, compressedKeyData, k.Key.Raw())

	return appendMessage(b, publicKeyCompressedECKeyData, compressed)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}

	return appendMessage(b, num, []byte(v))
}

func appendMessage(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendBytes(b, v)
}

// UnmarshalCreateDIDOperation decodes an AtalaOperation holding a create DID operation.
func UnmarshalCreateDIDOperation(b []byte) (*CreateDIDOperation, error) {
	var createOp []byte

	err := consumeFields(b, func(num protowire.Number, v []byte) error {
		if num == atalaOperationCreateDID {
			createOp = v
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("atala operation: %w", err)
	}

	if createOp == nil {
		return nil, errors.New("atala operation: not a create DID operation")
	}

	var data []byte

	err = consumeFields(createOp, func(num protowire.Number, v []byte) error {
		if num == createDIDOperationData {
			data = v
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create DID operation: %w", err)
	}

	op := &CreateDIDOperation{}

	err = consumeFields(data, func(num protowire.Number, v []byte) error {
		switch num {
		case creationDataPublicKeys:
			k, err := unmarshalPublicKey(v)
			if err != nil {
				return err
			}

			op.PublicKeys = append(op.PublicKeys, *k)
		case creationDataServices:
			s, err := unmarshalService(v)
			if err != nil {
				return err
			}

			op.Services = append(op.Services, *s)
		case creationDataContext:
			op.Context = append(op.Context, string(v))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("DID creation data: %w", err)
	}

	return op, nil
}

func unmarshalPublicKey(b []byte) (*PublicKey, error) {
	k := &PublicKey{}

	var (
		keyData     []byte
		compressed  bool
		haveKeyData bool
	)

	err := consumeRaw(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == publicKeyUsage && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			k.Usage = KeyUsage(v)

			return n, nil
		case num == publicKeyUsage:
			return 0, fmt.Errorf("key usage: %w", errWireType)
		}

		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}

		v, n := protowire.ConsumeBytes(b)

		switch num {
		case publicKeyID:
			k.ID = string(v)
		case publicKeyECKeyData:
			keyData, compressed, haveKeyData = v, false, true
		case publicKeyCompressedECKeyData:
			keyData, compressed, haveKeyData = v, true, true
		}

		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}

	if !haveKeyData {
		return nil, fmt.Errorf("public key %q: no key data", k.ID)
	}

	if compressed {
		k.Key, err = unmarshalCompressedKey(keyData)
	} else {
		k.Key, err = unmarshalECKey(keyData)
	}

	if err != nil {
		return nil, fmt.Errorf("public key %q: %w", k.ID, err)
	}

	return k, nil
}

func unmarshalECKey(b []byte) (crypto.PublicKey, error) {
	var curve, x, y []byte

	err := consumeFields(b, func(num protowire.Number, v []byte) error {
		switch num {
		case ecKeyDataCurve:
			curve = v
		case ecKeyDataX:
			x = v
		case ecKeyDataY:
			y = v
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	c, err := parseCurve(string(curve))
	if err != nil {
		return nil, err
	}

	if c == crypto.Secp256k1 {
		return crypto.NewSecp256k1PublicKeyFromXY(x, y)
	}

	return crypto.NewPublicKey(c, x)
}

func unmarshalCompressedKey(b []byte) (crypto.PublicKey, error) {
	var curve, data []byte

	err := consumeFields(b, func(num protowire.Number, v []byte) error {
		switch num {
		case compressedKeyCurve:
			curve = v
		case compressedKeyData:
			data = v
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	c, err := parseCurve(string(curve))
	if err != nil {
		return nil, err
	}

	return crypto.NewPublicKey(c, data)
}

func unmarshalService(b []byte) (*Service, error) {
	s := &Service{}

	err := consumeFields(b, func(num protowire.Number, v []byte) error {
		switch num {
		case serviceID:
			s.ID = string(v)
		case serviceType:
			s.Type = string(v)
		case serviceEndpoint:
			s.ServiceEndpoint = string(v)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	return s, nil
}

func parseCurve(name string) (crypto.Curve, error) {
	for _, c := range []crypto.Curve{crypto.Secp256k1, crypto.Ed25519, crypto.X25519} {
		if string(c) == name {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", crypto.ErrUnsupportedCurve, name)
}

// consumeFields walks length-delimited fields and skips the others.
func consumeFields(b []byte, fn func(num protowire.Number, v []byte) error) error {
	return consumeRaw(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}

		return n, fn(num, v)
	})
}

func consumeRaw(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}

		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}

		if m < 0 {
			return protowire.ParseError(m)
		}

		b = b[m:]
	}

	return nil
}
