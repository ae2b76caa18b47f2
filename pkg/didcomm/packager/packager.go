/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package packager turns domain messages into encrypted DIDComm envelopes and back. Recipient
// key agreement keys come from the DID resolver chain, local private keys from the secret resolver.
package packager

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/packer"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/packer/authcrypt"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/kms"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/api"
)

var logger = log.New("aries-edge-agent/packager")

var (
	// ErrNoDIDSenderSet is returned when packing a message without a sender DID.
	ErrNoDIDSenderSet = errors.New("no sender DID set on message")
	// ErrNoDIDReceiverSet is returned when packing a message without a recipient DID.
	ErrNoDIDReceiverSet = errors.New("no receiver DID set on message")
	// ErrNoKeyAgreement is returned when a DID document has no usable key agreement key.
	ErrNoKeyAgreement = errors.New("no X25519 key agreement key in DID document")
	// ErrNoSecret is returned when none of the candidate key ids is held locally.
	ErrNoSecret = errors.New("no local secret for any candidate key")
	// ErrSenderNotAuthenticated is returned when the envelope sender key is not a key
	// agreement key of the sender DID, or the plaintext names another sender.
	ErrSenderNotAuthenticated = errors.New("sender key not authenticated")
	// ErrUnknownEncoding is returned for envelopes no registered packer understands.
	ErrUnknownEncoding = errors.New("envelope encoding not recognized")
)

// Option configures a Packager.
type Option func(p *Packager)

// WithPacker registers an additional envelope packer, selected on unpack by its encoding type.
func WithPacker(pack packer.Packer) Option {
	return func(p *Packager) {
		p.addPacker(pack)
	}
}

// WithPrimaryPacker sets the packer used by Pack.
func WithPrimaryPacker(pack packer.Packer) Option {
	return func(p *Packager) {
		p.primaryPacker = pack
		p.addPacker(pack)
	}
}

// Packager is the DIDComm codec.
type Packager struct {
	primaryPacker packer.Packer
	packers       map[string]packer.Packer
	resolver      api.DIDResolver
	secrets       kms.SecretResolver
}

// New returns a Packager using authcrypt unless another primary packer is set.
func New(resolver api.DIDResolver, secrets kms.SecretResolver, opts ...Option) *Packager {
	p := &Packager{
		packers:  map[string]packer.Packer{},
		resolver: resolver,
		secrets:  secrets,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.primaryPacker == nil {
		p.primaryPacker = authcrypt.New()
		p.addPacker(p.primaryPacker)
	}

	return p
}

func (p *Packager) addPacker(pack packer.Packer) {
	if p.packers[pack.EncodingType()] == nil {
		p.packers[pack.EncodingType()] = pack
	}
}

// Pack encrypts msg from msg.From to every key agreement key of msg.To.
func (p *Packager) Pack(ctx context.Context, msg *message.Message) (string, error) {
	if msg.From == nil {
		return "", ErrNoDIDSenderSet
	}

	if msg.To == nil {
		return "", ErrNoDIDReceiverSet
	}

	recipients, err := p.recipientKeys(ctx, *msg.To)
	if err != nil {
		return "", fmt.Errorf("pack: %w", err)
	}

	senderKID, senderKey, err := p.senderSecret(ctx, *msg.From)
	if err != nil {
		return "", fmt.Errorf("pack: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("pack: %w", err)
	}

	envelope, err := p.primaryPacker.Pack(payload, senderKID, senderKey, recipients)
	if err != nil {
		return "", fmt.Errorf("pack: %w", err)
	}

	logger.Debugf("packed %s for %d recipient keys of %s", msg.ID, len(recipients), msg.To.String())

	return string(envelope), nil
}

// Unpack decrypts an envelope addressed to a locally held key and authenticates its sender.
func (p *Packager) Unpack(ctx context.Context, envelope string) (*message.Message, error) {
	encType, err := getEncodingType(envelope)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}

	pack, ok := p.packers[encType]
	if !ok {
		return nil, fmt.Errorf("unpack: %w: %q", ErrUnknownEncoding, encType)
	}

	env, err := pack.Parse([]byte(envelope))
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}

	held := p.secrets.FindSecrets(ctx, env.RecipientKIDs())
	if len(held) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("unpack: %w among %v", ErrNoSecret, env.RecipientKIDs())
	}

	recipientKey, err := p.secrets.FindSecret(ctx, held[0])
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}

	skid, err := did.ParseDIDURL(env.SenderKID())
	if err != nil {
		return nil, fmt.Errorf("unpack: skid: %w", err)
	}

	senderKey, err := p.senderKey(ctx, *skid)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}

	payload, err := env.Decrypt(held[0], recipientKey, senderKey)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}

	msg := &message.Message{}

	if err = json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}

	if msg.From != nil && !msg.From.Equal(skid.DID) {
		return nil, fmt.Errorf("unpack: %w: from %s signed by %s", ErrSenderNotAuthenticated,
			msg.From.String(), skid.DID.String())
	}

	msg.Direction = message.Received

	return msg, nil
}

func (p *Packager) recipientKeys(ctx context.Context, to did.DID) ([]packer.RecipientKey, error) {
	doc, err := p.resolver.Resolve(ctx, to.String())
	if err != nil {
		return nil, err
	}

	var recipients []packer.RecipientKey

	for _, vm := range doc.KeyAgreement() {
		key, err := PublicKey(vm)
		if err != nil {
			logger.Debugf("skip key agreement method %s: %s", vm.ID.String(), err)

			continue
		}

		if key.Curve() != crypto.X25519 {
			continue
		}

		recipients = append(recipients, packer.RecipientKey{KID: vm.ID.String(), Key: key})
	}

	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoKeyAgreement, to.String())
	}

	return recipients, nil
}

func (p *Packager) senderSecret(ctx context.Context, from did.DID) (string, crypto.PrivateKey, error) {
	doc, err := p.resolver.Resolve(ctx, from.String())
	if err != nil {
		return "", nil, err
	}

	var kids []string
	for _, vm := range doc.KeyAgreement() {
		kids = append(kids, vm.ID.String())
	}

	held := p.secrets.FindSecrets(ctx, kids)
	if len(held) == 0 {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}

		return "", nil, fmt.Errorf("%w: sender %s", ErrNoSecret, from.String())
	}

	key, err := p.secrets.FindSecret(ctx, held[0])
	if err != nil {
		return "", nil, err
	}

	return held[0], key, nil
}

func (p *Packager) senderKey(ctx context.Context, skid did.DIDURL) (crypto.PublicKey, error) {
	doc, err := p.resolver.Resolve(ctx, skid.DID.String())
	if err != nil {
		return nil, err
	}

	for _, vm := range doc.KeyAgreement() {
		if vm.ID.String() == skid.String() {
			return PublicKey(vm)
		}
	}

	return nil, fmt.Errorf("%w: %s is not a key agreement key of %s", ErrSenderNotAuthenticated,
		skid.String(), skid.DID.String())
}

// PublicKey decodes the key material of a verification method.
func PublicKey(vm did.VerificationMethod) (crypto.PublicKey, error) {
	if err := vm.Validate(); err != nil {
		return nil, err
	}

	if vm.PublicKeyMultibase != "" {
		return crypto.DecodeMultibase(vm.PublicKeyMultibase)
	}

	return crypto.PublicKeyFromJWK(vm.PublicKeyJwk)
}

type envelopeStub struct {
	Protected string `json:"protected,omitempty"`
}

type headerStub struct {
	Type string `json:"typ,omitempty"`
}

func getEncodingType(envelope string) (string, error) {
	env := &envelopeStub{}

	if strings.HasPrefix(strings.TrimSpace(envelope), "{") { // full serialized
		if err := json.Unmarshal([]byte(envelope), env); err != nil {
			return "", fmt.Errorf("parse envelope: %w", err)
		}
	} else { // compact serialized
		env.Protected = strings.Split(envelope, ".")[0]
	}

	var protBytes []byte

	protBytes1, err1 := base64.RawURLEncoding.DecodeString(env.Protected)
	protBytes2, err2 := base64.URLEncoding.DecodeString(env.Protected)

	switch {
	case err1 == nil:
		protBytes = protBytes1
	case err2 == nil:
		protBytes = protBytes2
	default:
		return "", fmt.Errorf("decode header: %w", err1)
	}

	prot := &headerStub{}

	if err := json.Unmarshal(protBytes, prot); err != nil {
		return "", fmt.Errorf("parse header: %w", err)
	}

	return prot.Type, nil
}
