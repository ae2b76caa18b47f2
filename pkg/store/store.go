/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

const (
	didNamespace        = "dids"
	keyNamespace        = "privatekeys"
	pairNamespace       = "didpairs"
	messageNamespace    = "messages"
	mediatorNamespace   = "mediators"
	credentialNamespace = "credentials"

	allTag       = "all"
	aliasTag     = "alias"
	didTag       = "did"
	holderTag    = "holder"
	receiverTag  = "receiver"
	fromTag      = "from"
	toTag        = "to"
	directionTag = "direction"
	typeTag      = "type"
	thidTag      = "thid"
)

var logger = log.New("aries-edge-agent/store")

// Store implements every persistence interface of the agent over a storage provider.
type Store struct {
	dids        storage.Store
	keys        storage.Store
	pairs       storage.Store
	messages    storage.Store
	mediators   storage.Store
	credentials storage.Store

	didFeed        *Feed[DIDRecord]
	pairFeed       *Feed[DIDPair]
	messageFeed    *Feed[*message.Message]
	credentialFeed *Feed[CredentialRecord]
}

type namespace struct {
	name string
	tags []string
	dst  *storage.Store
}

// New opens the agent stores on provider.
func New(provider storage.Provider) (*Store, error) {
	s := &Store{}

	for _, ns := range []namespace{
		{name: didNamespace, tags: []string{allTag, aliasTag}, dst: &s.dids},
		{name: keyNamespace, tags: []string{allTag, didTag}, dst: &s.keys},
		{name: pairNamespace, tags: []string{allTag, holderTag, receiverTag, aliasTag}, dst: &s.pairs},
		{name: messageNamespace, tags: []string{allTag, fromTag, toTag, directionTag, typeTag, thidTag}, dst: &s.messages},
		{name: mediatorNamespace, tags: []string{allTag}, dst: &s.mediators},
		{name: credentialNamespace, tags: []string{allTag, thidTag}, dst: &s.credentials},
	} {
		st, err := provider.OpenStore(ns.name)
		if err != nil {
			return nil, fmt.Errorf("open store %s: %w", ns.name, err)
		}

		err = provider.SetStoreConfig(ns.name, storage.StoreConfiguration{TagNames: ns.tags})
		if err != nil {
			return nil, fmt.Errorf("set store config %s: %w", ns.name, err)
		}

		*ns.dst = st
	}

	s.didFeed = NewFeed(DefaultFeedBuffer, s.GetAllDIDs)
	s.pairFeed = NewFeed(DefaultFeedBuffer, s.GetAllDIDPairs)
	s.messageFeed = NewFeed(DefaultFeedBuffer, s.GetAllMessages)
	s.credentialFeed = NewFeed(DefaultFeedBuffer, s.GetAllCredentials)

	return s, nil
}

// DIDs is the feed of agent DIDs.
func (s *Store) DIDs() *Feed[DIDRecord] { return s.didFeed }

// DIDPairs is the feed of DID pairs.
func (s *Store) DIDPairs() *Feed[DIDPair] { return s.pairFeed }

// Messages is the feed of stored messages.
func (s *Store) Messages() *Feed[*message.Message] { return s.messageFeed }

// Credentials is the feed of stored credentials.
func (s *Store) Credentials() *Feed[CredentialRecord] { return s.credentialFeed }

// StoreDID saves rec.
func (s *Store) StoreDID(rec DIDRecord) error {
	tags := []storage.Tag{{Name: allTag}}
	if rec.Alias != "" {
		tags = append(tags, storage.Tag{Name: aliasTag, Value: tagValue(rec.Alias)})
	}

	if err := putJSON(s.dids, rec.DID.String(), rec, tags...); err != nil {
		return fmt.Errorf("store did: %w", err)
	}

	s.didFeed.Notify()

	return nil
}

// GetDID returns the record of d.
func (s *Store) GetDID(d did.DID) (*DIDRecord, error) {
	var rec DIDRecord

	if err := getJSON(s.dids, d.String(), &rec); err != nil {
		return nil, fmt.Errorf("get did %s: %w", d, err)
	}

	return &rec, nil
}

// GetDIDsByAlias returns the DIDs stored under alias.
func (s *Store) GetDIDsByAlias(alias string) ([]DIDRecord, error) {
	return queryJSON[DIDRecord](s.dids, aliasTag+":"+tagValue(alias))
}

// GetAllDIDs returns every agent DID.
func (s *Store) GetAllDIDs() ([]DIDRecord, error) {
	recs, err := queryJSON[DIDRecord](s.dids, allTag)
	if err != nil {
		return nil, err
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].KeyPathIndex < recs[j].KeyPathIndex })

	return recs, nil
}

// NextKeyPathIndex returns one past the highest key path index in use.
func (s *Store) NextKeyPathIndex() (int, error) {
	recs, err := queryJSON[PrivateKeyRecord](s.keys, allTag)
	if err != nil {
		return 0, err
	}

	next := 0

	for _, rec := range recs {
		if rec.KeyPathIndex >= next {
			next = rec.KeyPathIndex + 1
		}
	}

	return next, nil
}

// StorePrivateKey saves rec under its key id.
func (s *Store) StorePrivateKey(rec PrivateKeyRecord) error {
	err := putJSON(s.keys, rec.KeyID, rec,
		storage.Tag{Name: allTag}, storage.Tag{Name: didTag, Value: tagValue(rec.DID.String())})
	if err != nil {
		return fmt.Errorf("store private key: %w", err)
	}

	return nil
}

// GetPrivateKey returns the key with id keyID.
func (s *Store) GetPrivateKey(keyID string) (*PrivateKeyRecord, error) {
	var rec PrivateKeyRecord

	if err := getJSON(s.keys, keyID, &rec); err != nil {
		return nil, fmt.Errorf("get private key %s: %w", keyID, err)
	}

	return &rec, nil
}

// GetPrivateKeysByDID returns the keys of d.
func (s *Store) GetPrivateKeysByDID(d did.DID) ([]PrivateKeyRecord, error) {
	return queryJSON[PrivateKeyRecord](s.keys, didTag+":"+tagValue(d.String()))
}

// StoreDIDPair saves pair, replacing a pair with the same holder and receiver.
func (s *Store) StoreDIDPair(pair DIDPair) error {
	tags := []storage.Tag{
		{Name: allTag},
		{Name: holderTag, Value: tagValue(pair.Holder.String())},
		{Name: receiverTag, Value: tagValue(pair.Receiver.String())},
	}

	if pair.Alias != "" {
		tags = append(tags, storage.Tag{Name: aliasTag, Value: tagValue(pair.Alias)})
	}

	if err := putJSON(s.pairs, pairKey(pair.Holder, pair.Receiver), pair, tags...); err != nil {
		return fmt.Errorf("store did pair: %w", err)
	}

	s.pairFeed.Notify()

	return nil
}

// RemoveDIDPair deletes the pair of holder and receiver.
func (s *Store) RemoveDIDPair(holder, receiver did.DID) error {
	if err := s.pairs.Delete(pairKey(holder, receiver)); err != nil {
		return fmt.Errorf("remove did pair: %w", err)
	}

	s.pairFeed.Notify()

	return nil
}

// GetDIDPair returns the pair of holder and receiver.
func (s *Store) GetDIDPair(holder, receiver did.DID) (*DIDPair, error) {
	var pair DIDPair

	if err := getJSON(s.pairs, pairKey(holder, receiver), &pair); err != nil {
		return nil, fmt.Errorf("get did pair: %w", err)
	}

	return &pair, nil
}

// GetDIDPairByAlias returns the first pair named alias.
func (s *Store) GetDIDPairByAlias(alias string) (*DIDPair, error) {
	pairs, err := queryJSON[DIDPair](s.pairs, aliasTag+":"+tagValue(alias))
	if err != nil {
		return nil, err
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("did pair %q: %w", alias, ErrDataNotFound)
	}

	return &pairs[0], nil
}

// GetAllDIDPairs returns every pair.
func (s *Store) GetAllDIDPairs() ([]DIDPair, error) {
	return queryJSON[DIDPair](s.pairs, allTag)
}

type messageRecord struct {
	Message   *message.Message  `json:"message"`
	Direction message.Direction `json:"direction"`
}

// StoreMessages saves msgs, keyed by message id.
func (s *Store) StoreMessages(msgs ...*message.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	ops := make([]storage.Operation, 0, len(msgs))

	for _, m := range msgs {
		value, err := json.Marshal(messageRecord{Message: m, Direction: m.Direction})
		if err != nil {
			return fmt.Errorf("marshal message %s: %w", m.ID, err)
		}

		tags := []storage.Tag{
			{Name: allTag},
			{Name: directionTag, Value: strconv.Itoa(int(m.Direction))},
			{Name: typeTag, Value: tagValue(m.PIURI)},
			{Name: thidTag, Value: tagValue(m.ThreadID())},
		}

		if m.From != nil {
			tags = append(tags, storage.Tag{Name: fromTag, Value: tagValue(m.From.String())})
		}

		if m.To != nil {
			tags = append(tags, storage.Tag{Name: toTag, Value: tagValue(m.To.String())})
		}

		ops = append(ops, storage.Operation{Key: m.ID, Value: value, Tags: tags})
	}

	if err := s.messages.Batch(ops); err != nil {
		return fmt.Errorf("store messages: %w", err)
	}

	s.messageFeed.Notify()

	return nil
}

// GetMessage returns the message with id.
func (s *Store) GetMessage(id string) (*message.Message, error) {
	var rec messageRecord

	if err := getJSON(s.messages, id, &rec); err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}

	return rec.toMessage(), nil
}

// GetAllMessages returns every message ordered by creation time.
func (s *Store) GetAllMessages() ([]*message.Message, error) {
	return s.queryMessages(allTag)
}

// GetMessagesByDID returns the messages sent from or to d.
func (s *Store) GetMessagesByDID(d did.DID) ([]*message.Message, error) {
	from, err := s.queryMessages(fromTag + ":" + tagValue(d.String()))
	if err != nil {
		return nil, err
	}

	to, err := s.queryMessages(toTag + ":" + tagValue(d.String()))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(from))
	out := make([]*message.Message, 0, len(from)+len(to))

	for _, m := range append(from, to...) {
		if !seen[m.ID] {
			seen[m.ID] = true

			out = append(out, m)
		}
	}

	sortMessages(out)

	return out, nil
}

// GetMessagesByDirection returns sent or received messages.
func (s *Store) GetMessagesByDirection(dir message.Direction) ([]*message.Message, error) {
	return s.queryMessages(directionTag + ":" + strconv.Itoa(int(dir)))
}

// GetMessagesByType returns the messages of protocol type piuri.
func (s *Store) GetMessagesByType(piuri string) ([]*message.Message, error) {
	return s.queryMessages(typeTag + ":" + tagValue(piuri))
}

// GetMessagesByThid returns the messages of a thread.
func (s *Store) GetMessagesByThid(thid string) ([]*message.Message, error) {
	return s.queryMessages(thidTag + ":" + tagValue(thid))
}

func (s *Store) queryMessages(expression string) ([]*message.Message, error) {
	recs, err := queryJSON[messageRecord](s.messages, expression)
	if err != nil {
		return nil, err
	}

	out := make([]*message.Message, 0, len(recs))

	for i := range recs {
		out = append(out, recs[i].toMessage())
	}

	sortMessages(out)

	return out, nil
}

func (r messageRecord) toMessage() *message.Message {
	m := r.Message
	if m == nil {
		m = &message.Message{}
	}

	m.Direction = r.Direction

	return m
}

func sortMessages(msgs []*message.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedTime.Equal(msgs[j].CreatedTime) {
			return msgs[i].ID < msgs[j].ID
		}

		return msgs[i].CreatedTime.Before(msgs[j].CreatedTime)
	})
}

// StoreMediator saves m.
func (s *Store) StoreMediator(m Mediator) error {
	if err := putJSON(s.mediators, m.ID, m, storage.Tag{Name: allTag}); err != nil {
		return fmt.Errorf("store mediator: %w", err)
	}

	return nil
}

// GetAllMediators returns the stored mediator records.
func (s *Store) GetAllMediators() ([]Mediator, error) {
	return queryJSON[Mediator](s.mediators, allTag)
}

// StoreCredential saves rec.
func (s *Store) StoreCredential(rec CredentialRecord) error {
	tags := []storage.Tag{{Name: allTag}}
	if rec.Thid != "" {
		tags = append(tags, storage.Tag{Name: thidTag, Value: tagValue(rec.Thid)})
	}

	if err := putJSON(s.credentials, rec.ID, rec, tags...); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	s.credentialFeed.Notify()

	return nil
}

// GetCredential returns the credential with id.
func (s *Store) GetCredential(id string) (*CredentialRecord, error) {
	var rec CredentialRecord

	if err := getJSON(s.credentials, id, &rec); err != nil {
		return nil, fmt.Errorf("get credential %s: %w", id, err)
	}

	return &rec, nil
}

// GetAllCredentials returns every credential.
func (s *Store) GetAllCredentials() ([]CredentialRecord, error) {
	return queryJSON[CredentialRecord](s.credentials, allTag)
}

// tagValue encodes v so it never contains the ':' query separator.
func tagValue(v string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(v))
}

func pairKey(holder, receiver did.DID) string {
	return holder.String() + "|" + receiver.String()
}

func putJSON(st storage.Store, key string, v interface{}, tags ...storage.Tag) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return st.Put(key, value, tags...)
}

func getJSON(st storage.Store, key string, v interface{}) error {
	value, err := st.Get(key)
	if err != nil {
		return err
	}

	return json.Unmarshal(value, v)
}

func queryJSON[T any](st storage.Store, expression string) ([]T, error) {
	iter, err := st.Query(expression)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", expression, err)
	}

	defer storage.Close(iter, logger)

	var out []T

	for {
		more, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", expression, err)
		}

		if !more {
			return out, nil
		}

		value, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", expression, err)
		}

		var item T
		if err = json.Unmarshal(value, &item); err != nil {
			return nil, fmt.Errorf("query %s: %w", expression, err)
		}

		out = append(out, item)
	}
}

// IsNotFound reports whether err means the data does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDataNotFound)
}
