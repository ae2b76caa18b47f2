/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package peer implements the did:peer method, numalgo 2: the method specific id is the list
// of purpose tagged multibase keys and base64url encoded services of the document.
package peer

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

// DIDMethod is the peer DID method name.
const DIDMethod = "peer"

const (
	numalgo2 = "2"

	purposeAgreement      = 'E'
	purposeAuthentication = 'V'
	purposeService        = 'S'

	segmentSeparator = "."

	abbreviatedDIDCommMessaging = "dm"
)

var logger = log.New("aries-edge-agent/vdr/peer")

var (
	// ErrInvalidKey is returned when a key has the wrong curve for its purpose.
	ErrInvalidKey = errors.New("invalid key for purpose")
	// ErrMalformedService is returned when a service segment cannot be decoded.
	ErrMalformedService = errors.New("malformed peer DID service")
	// ErrInvalidPeerDID is returned when the method specific id is not a numalgo 2 id.
	ErrInvalidPeerDID = errors.New("invalid peer DID")
)

type serviceEndpoint struct {
	URI         string   `json:"uri"`
	RoutingKeys []string `json:"r,omitempty"`
	Accept      []string `json:"a,omitempty"`
}

type service struct {
	Type        string          `json:"t"`
	Endpoint    json.RawMessage `json:"s"`
	RoutingKeys []string        `json:"r"`
	Accept      []string        `json:"a"`
}

// Create builds a numalgo 2 peer DID. agreementKeys must be X25519 and authenticationKeys
// Ed25519; there must be at least one of each. The output only depends on the inputs.
func Create(agreementKeys, authenticationKeys []crypto.PublicKey, services []did.Service) (*did.DID, error) {
	if len(agreementKeys) == 0 {
		return nil, fmt.Errorf("%w: at least one key agreement key is required", ErrInvalidKey)
	}

	if len(authenticationKeys) == 0 {
		return nil, fmt.Errorf("%w: at least one authentication key is required", ErrInvalidKey)
	}

	segments := []string{numalgo2}

	for _, k := range agreementKeys {
		s, err := encodeKey(purposeAgreement, crypto.X25519, k)
		if err != nil {
			return nil, err
		}

		segments = append(segments, s)
	}

	for _, k := range authenticationKeys {
		s, err := encodeKey(purposeAuthentication, crypto.Ed25519, k)
		if err != nil {
			return nil, err
		}

		segments = append(segments, s)
	}

	for _, svc := range services {
		s, err := encodeService(svc)
		if err != nil {
			return nil, err
		}

		segments = append(segments, s)
	}

	return did.New(DIDMethod, strings.Join(segments, segmentSeparator))
}

func encodeKey(purpose byte, curve crypto.Curve, k crypto.PublicKey) (string, error) {
	if k == nil || k.Curve() != curve {
		got := crypto.Curve("none")
		if k != nil {
			got = k.Curve()
		}

		return "", fmt.Errorf("%w: purpose %c needs %s, got %s", ErrInvalidKey, purpose, curve, got)
	}

	mb, err := crypto.EncodeMultibase(k)
	if err != nil {
		return "", fmt.Errorf("encode %s key: %w", curve, err)
	}

	return string(purpose) + mb, nil
}

func encodeService(svc did.Service) (string, error) {
	endpoint, err := json.Marshal(svc.ServiceEndpoint.URI)
	if err != nil {
		return "", err
	}

	s := service{
		Type:        svc.Type,
		Endpoint:    endpoint,
		RoutingKeys: svc.ServiceEndpoint.RoutingKeys,
		Accept:      svc.ServiceEndpoint.Accept,
	}

	if s.Type == did.DIDCommMessagingServiceType {
		s.Type = abbreviatedDIDCommMessaging
	}

	if s.RoutingKeys == nil {
		s.RoutingKeys = []string{}
	}

	if s.Accept == nil {
		s.Accept = []string{}
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedService, err)
	}

	return string(purposeService) + base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeService(encoded string) (did.Service, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return did.Service{}, fmt.Errorf("%w: %w", ErrMalformedService, err)
	}

	var s service

	if err = json.Unmarshal(raw, &s); err != nil {
		return did.Service{}, fmt.Errorf("%w: %w", ErrMalformedService, err)
	}

	out := did.Service{
		Type: s.Type,
		ServiceEndpoint: did.ServiceEndpoint{
			RoutingKeys: s.RoutingKeys,
			Accept:      s.Accept,
		},
	}

	if out.Type == abbreviatedDIDCommMessaging {
		out.Type = did.DIDCommMessagingServiceType
	}

	var uri string

	if err = json.Unmarshal(s.Endpoint, &uri); err == nil {
		out.ServiceEndpoint.URI = uri

		return out, nil
	}

	var endpoint serviceEndpoint

	if err = json.Unmarshal(s.Endpoint, &endpoint); err != nil || endpoint.URI == "" {
		return did.Service{}, fmt.Errorf("%w: endpoint must be a string or an object with uri", ErrMalformedService)
	}

	out.ServiceEndpoint = did.ServiceEndpoint{
		URI:         endpoint.URI,
		RoutingKeys: endpoint.RoutingKeys,
		Accept:      endpoint.Accept,
	}

	return out, nil
}
