/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package httpbinding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

const (
	didJSON   = "application/did+json"
	didLDJSON = "application/did+ld+json"
)

var (
	// ErrNullOrMissingRequiredField is returned when the registrar document lacks a required field.
	ErrNullOrMissingRequiredField = errors.New("null or missing required field")
	// ErrNotFound is returned when the registrar does not know the DID.
	ErrNotFound = errors.New("DID not found")
)

// Resolve fetches and maps the document of d.
func (v *VDR) Resolve(ctx context.Context, d did.DID) (*did.Doc, error) {
	reqURL, err := url.ParseRequestURI(v.endpointURL)
	if err != nil {
		return nil, fmt.Errorf("url parse request uri failed: %w", err)
	}

	reqURL.Path = path.Join(reqURL.Path, d.String())

	data, err := v.resolveDID(ctx, reqURL.String())
	if err != nil {
		return nil, err
	}

	return ParseDocument(data)
}

func (v *VDR) resolveDID(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTP create get request failed: %w", err)
	}

	req.Header.Add("Accept", didLDJSON+", "+didJSON+", application/json")

	authToken := v.resolveAuthToken

	if v.authTokenProvider != nil {
		token, tokenErr := v.authTokenProvider.AuthToken()
		if tokenErr != nil {
			return nil, fmt.Errorf("get auth token: %w", tokenErr)
		}

		authToken = "Bearer " + token
	}

	if authToken != "" {
		req.Header.Add("Authorization", authToken)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP Get request failed: %w", err)
	}

	defer closeResponseBody(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body failed: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unsupported response from DID resolver [%v] body [%s]", resp.StatusCode, body)
	case len(body) == 0:
		return nil, ErrNotFound
	}

	return body, nil
}

type rawService struct {
	ID              string      `mapstructure:"id"`
	Type            string      `mapstructure:"type"`
	ServiceEndpoint interface{} `mapstructure:"serviceEndpoint"`
}

var relationships = []string{
	"authentication", "assertionMethod", "keyAgreement", "capabilityInvocation", "capabilityDelegation",
}

// ParseDocument maps a registrar response, either a resolution result with a didDocument
// member or a bare document, to a DID document. Relationship entries are DID URL references
// to verificationMethod entries or embedded verification methods.
func ParseDocument(data []byte) (*did.Doc, error) {
	var raw map[string]interface{}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse DID document: %w", err)
	}

	if wrapped, ok := raw["didDocument"].(map[string]interface{}); ok {
		raw = wrapped
	}

	idStr, _ := raw["id"].(string) //nolint:errcheck
	if idStr == "" {
		return nil, fmt.Errorf("%w: id", ErrNullOrMissingRequiredField)
	}

	id, err := did.Parse(idStr)
	if err != nil {
		return nil, err
	}

	methods, err := decodeMethods(*id, raw["verificationMethod"], nil)
	if err != nil {
		return nil, fmt.Errorf("verificationMethod: %w", err)
	}

	byID := make(map[string]did.VerificationMethod, len(methods))
	for _, vm := range methods {
		byID[vm.ID.String()] = vm
	}

	opts := []did.DocOption{did.WithCoreProperty(did.VerificationMethods(methods))}

	for _, name := range relationships {
		vms, err := decodeMethods(*id, raw[name], byID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		opts = append(opts, did.WithCoreProperty(relationship(name, vms)))
	}

	services, err := decodeServices(*id, raw["service"])
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	opts = append(opts, did.WithCoreProperty(services))

	return did.BuildDoc(*id, opts...), nil
}

func relationship(name string, vms []did.VerificationMethod) did.CoreProperty {
	switch name {
	case "authentication":
		return did.Authentication(vms)
	case "assertionMethod":
		return did.AssertionMethod(vms)
	case "keyAgreement":
		return did.KeyAgreement(vms)
	case "capabilityInvocation":
		return did.CapabilityInvocation(vms)
	}

	return did.CapabilityDelegation(vms)
}

// decodeMethods decodes a list of embedded methods, and of references when byID is set.
func decodeMethods(docID did.DID, value interface{}, byID map[string]did.VerificationMethod) (
	[]did.VerificationMethod, error) {
	if value == nil {
		return nil, nil
	}

	entries, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected a list", ErrNullOrMissingRequiredField)
	}

	out := make([]did.VerificationMethod, 0, len(entries))

	for _, entry := range entries {
		switch e := entry.(type) {
		case string:
			if byID == nil {
				return nil, fmt.Errorf("%w: verification method must be an object", ErrNullOrMissingRequiredField)
			}

			ref, err := resolveURL(docID, e)
			if err != nil {
				return nil, err
			}

			vm, found := byID[ref.String()]
			if !found {
				return nil, fmt.Errorf("%w: verificationMethod %s", ErrNullOrMissingRequiredField, e)
			}

			out = append(out, vm)
		case map[string]interface{}:
			vm, err := decodeMethod(docID, e)
			if err != nil {
				return nil, err
			}

			out = append(out, *vm)
		default:
			return nil, fmt.Errorf("%w: unexpected entry %T", ErrNullOrMissingRequiredField, entry)
		}
	}

	return out, nil
}

func decodeMethod(docID did.DID, entry map[string]interface{}) (*did.VerificationMethod, error) {
	var raw did.RawVerificationMethod

	if err := decode(entry, &raw); err != nil {
		return nil, err
	}

	if raw.ID == "" {
		return nil, fmt.Errorf("%w: verification method id", ErrNullOrMissingRequiredField)
	}

	if raw.Type == "" {
		return nil, fmt.Errorf("%w: type of %s", ErrNullOrMissingRequiredField, raw.ID)
	}

	id, err := resolveURL(docID, raw.ID)
	if err != nil {
		return nil, err
	}

	controller := docID

	if raw.Controller != "" {
		c, err := did.Parse(raw.Controller)
		if err != nil {
			return nil, err
		}

		controller = *c
	}

	vm := &did.VerificationMethod{
		ID:                 *id,
		Controller:         controller,
		Type:               raw.Type,
		PublicKeyJwk:       raw.PublicKeyJwk,
		PublicKeyMultibase: raw.PublicKeyMultibase,
	}

	if err = vm.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNullOrMissingRequiredField, err)
	}

	return vm, nil
}

func decodeServices(docID did.DID, value interface{}) (did.Services, error) {
	if value == nil {
		return nil, nil
	}

	var raw []rawService

	if err := decode(value, &raw); err != nil {
		return nil, err
	}

	out := make(did.Services, 0, len(raw))

	for _, s := range raw {
		if s.ID == "" || s.Type == "" || s.ServiceEndpoint == nil {
			return nil, fmt.Errorf("%w: service id, type and serviceEndpoint", ErrNullOrMissingRequiredField)
		}

		endpoint, err := decodeEndpoint(s.ServiceEndpoint)
		if err != nil {
			return nil, err
		}

		id := s.ID
		if strings.HasPrefix(id, "#") {
			id = docID.String() + id
		}

		out = append(out, did.Service{ID: id, Type: s.Type, ServiceEndpoint: *endpoint})
	}

	return out, nil
}

func decodeEndpoint(value interface{}) (*did.ServiceEndpoint, error) {
	switch e := value.(type) {
	case string:
		return &did.ServiceEndpoint{URI: e}, nil
	case []interface{}:
		if len(e) == 0 {
			return nil, fmt.Errorf("%w: empty serviceEndpoint", ErrNullOrMissingRequiredField)
		}

		return decodeEndpoint(e[0])
	case map[string]interface{}:
		var raw did.RawServiceEndpoint

		if err := decode(e, &raw); err != nil {
			return nil, err
		}

		if raw.URI == "" {
			return nil, fmt.Errorf("%w: serviceEndpoint uri", ErrNullOrMissingRequiredField)
		}

		return &did.ServiceEndpoint{URI: raw.URI, RoutingKeys: raw.RoutingKeys, Accept: raw.Accept}, nil
	}

	return nil, fmt.Errorf("%w: serviceEndpoint", ErrNullOrMissingRequiredField)
}

func resolveURL(docID did.DID, ref string) (*did.DIDURL, error) {
	if strings.HasPrefix(ref, "#") {
		u := did.NewDIDURL(docID, strings.TrimPrefix(ref, "#"))

		return &u, nil
	}

	return did.ParseDIDURL(ref)
}

func decode(input, output interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  output,
	})
	if err != nil {
		return err
	}

	if err = decoder.Decode(input); err != nil {
		return fmt.Errorf("%w: %w", ErrNullOrMissingRequiredField, err)
	}

	return nil
}
