/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package packer

import (
	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
)

// RecipientKey is a recipient key agreement key addressed by its key id.
type RecipientKey struct {
	KID string
	Key crypto.PublicKey
}

// Envelope is a parsed encrypted envelope whose sender and recipient key ids can be
// inspected before decryption.
type Envelope interface {
	// SenderKID returns the key id of the sender key agreement key.
	SenderKID() string
	// RecipientKIDs returns the recipient key ids in envelope order.
	RecipientKIDs() []string
	// Decrypt opens the envelope for the recipient kid.
	Decrypt(kid string, recipientKey crypto.PrivateKey, senderKey crypto.PublicKey) ([]byte, error)
}

// Packer is an envelope packer/unpacker to support secure DIDComm exchange of envelopes
// between agents.
type Packer interface {
	// Pack a payload for the recipient keys, authenticated with the sender key.
	Pack(payload []byte, senderKID string, senderKey crypto.PrivateKey, recipients []RecipientKey) ([]byte, error)
	// Parse reads the envelope headers without decrypting.
	Parse(envelope []byte) (Envelope, error)
	// EncodingType returns the media type found in the envelope `typ` header.
	EncodingType() string
}
