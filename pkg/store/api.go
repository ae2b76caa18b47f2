/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package store persists the agent state (DIDs, private keys, DID pairs, messages, the
// mediator record and credentials) on top of an spi/storage provider and exposes the
// query collections as feeds.
package store

import (
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

// ErrDataNotFound is returned when a lookup finds nothing.
var ErrDataNotFound = storage.ErrDataNotFound

// DIDRecord is a DID owned by this agent.
type DIDRecord struct {
	DID          did.DID `json:"did"`
	KeyPathIndex int     `json:"keyPathIndex"`
	Alias        string  `json:"alias,omitempty"`
}

// PrivateKeyRecord is a private key of one of the agent DIDs, indexed by its DID URL.
type PrivateKeyRecord struct {
	KeyID        string       `json:"keyId"`
	DID          did.DID      `json:"did"`
	Curve        crypto.Curve `json:"curve"`
	Raw          []byte       `json:"raw"`
	KeyPathIndex int          `json:"keyPathIndex"`
}

// DIDPair is a named directional connection between one of our DIDs and a peer.
type DIDPair struct {
	Holder   did.DID `json:"holder"`
	Receiver did.DID `json:"receiver"`
	Alias    string  `json:"alias,omitempty"`
}

// Mediator binds a host DID to the routing DID a mediator granted it.
type Mediator struct {
	ID          string  `json:"id"`
	MediatorDID did.DID `json:"mediatorDID"`
	HostDID     did.DID `json:"hostDID"`
	RoutingDID  did.DID `json:"routingDID"`
}

// CredentialRecord is an issued credential in its transport format.
type CredentialRecord struct {
	ID       string            `json:"id"`
	Thid     string            `json:"thid,omitempty"`
	Format   string            `json:"format,omitempty"`
	Data     []byte            `json:"data"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DIDStore keeps the agent DIDs.
type DIDStore interface {
	StoreDID(rec DIDRecord) error
	GetDID(d did.DID) (*DIDRecord, error)
	GetDIDsByAlias(alias string) ([]DIDRecord, error)
	GetAllDIDs() ([]DIDRecord, error)
	NextKeyPathIndex() (int, error)
}

// KeyStore keeps private keys by key id.
type KeyStore interface {
	StorePrivateKey(rec PrivateKeyRecord) error
	GetPrivateKey(keyID string) (*PrivateKeyRecord, error)
	GetPrivateKeysByDID(d did.DID) ([]PrivateKeyRecord, error)
}

// DIDPairStore keeps DID pairs.
type DIDPairStore interface {
	StoreDIDPair(pair DIDPair) error
	RemoveDIDPair(holder, receiver did.DID) error
	GetDIDPair(holder, receiver did.DID) (*DIDPair, error)
	GetDIDPairByAlias(alias string) (*DIDPair, error)
	GetAllDIDPairs() ([]DIDPair, error)
}

// MessageStore keeps sent and received messages.
type MessageStore interface {
	StoreMessages(msgs ...*message.Message) error
	GetMessage(id string) (*message.Message, error)
	GetAllMessages() ([]*message.Message, error)
	GetMessagesByDID(d did.DID) ([]*message.Message, error)
	GetMessagesByDirection(dir message.Direction) ([]*message.Message, error)
	GetMessagesByType(piuri string) ([]*message.Message, error)
	GetMessagesByThid(thid string) ([]*message.Message, error)
}

// MediatorStore keeps mediator records.
type MediatorStore interface {
	StoreMediator(m Mediator) error
	GetAllMediators() ([]Mediator, error)
}

// CredentialStore keeps issued credentials.
type CredentialStore interface {
	StoreCredential(rec CredentialRecord) error
	GetCredential(id string) (*CredentialRecord, error)
	GetAllCredentials() ([]CredentialRecord, error)
}
