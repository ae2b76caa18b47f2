/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"errors"
	"fmt"
)

const (
	// DIDCommMessagingServiceType is the DIDComm v2 service type.
	DIDCommMessagingServiceType = "DIDCommMessaging"

	// JSONWebKey2020 verification method type for JWK key material.
	JSONWebKey2020 = "JsonWebKey2020"
	// Ed25519VerificationKey2020 verification method type for multibase Ed25519 keys.
	Ed25519VerificationKey2020 = "Ed25519VerificationKey2020"
	// X25519KeyAgreementKey2020 verification method type for multibase X25519 keys.
	X25519KeyAgreementKey2020 = "X25519KeyAgreementKey2020"
)

// ErrKeyMaterial is returned when a verification method carries none or both kinds of key material.
var ErrKeyMaterial = errors.New("verification method must carry exactly one of publicKeyJwk or publicKeyMultibase")

// VerificationMethod is a public key entry of a DID document.
type VerificationMethod struct {
	ID                 DIDURL
	Controller         DID
	Type               string
	PublicKeyJwk       map[string]string
	PublicKeyMultibase string
}

// Validate checks that exactly one kind of key material is present.
func (vm *VerificationMethod) Validate() error {
	hasJWK := len(vm.PublicKeyJwk) > 0
	hasMultibase := vm.PublicKeyMultibase != ""

	if hasJWK == hasMultibase {
		return fmt.Errorf("%s: %w", vm.ID.String(), ErrKeyMaterial)
	}

	return nil
}

// ServiceEndpoint of a DIDComm service.
type ServiceEndpoint struct {
	URI         string
	RoutingKeys []string
	Accept      []string
}

// Service DID doc service.
type Service struct {
	ID              string
	Type            string
	ServiceEndpoint ServiceEndpoint
}

// CoreProperty is one of the tagged properties of a DID document.
type CoreProperty interface {
	coreProperty()
}

// VerificationMethods lists every key declared by the document.
type VerificationMethods []VerificationMethod

// Authentication verification relationship.
type Authentication []VerificationMethod

// AssertionMethod verification relationship.
type AssertionMethod []VerificationMethod

// KeyAgreement verification relationship.
type KeyAgreement []VerificationMethod

// CapabilityInvocation verification relationship.
type CapabilityInvocation []VerificationMethod

// CapabilityDelegation verification relationship.
type CapabilityDelegation []VerificationMethod

// Services lists the document services.
type Services []Service

func (VerificationMethods) coreProperty()  {}
func (Authentication) coreProperty()       {}
func (AssertionMethod) coreProperty()      {}
func (KeyAgreement) coreProperty()         {}
func (CapabilityInvocation) coreProperty() {}
func (CapabilityDelegation) coreProperty() {}
func (Services) coreProperty()             {}

// Doc is a resolved DID document. Resolvers build a fresh Doc and never mutate it afterwards.
// Documents shared between callers, such as cached ones, are handed out through Copy.
type Doc struct {
	ID             DID
	CoreProperties []CoreProperty
}

// DocOption configures a Doc in BuildDoc.
type DocOption func(doc *Doc)

// WithCoreProperty appends a core property, skipping empty ones.
func WithCoreProperty(p CoreProperty) DocOption {
	return func(doc *Doc) {
		if !isEmpty(p) {
			doc.CoreProperties = append(doc.CoreProperties, p)
		}
	}
}

// BuildDoc creates a document for id.
func BuildDoc(id DID, opts ...DocOption) *Doc {
	doc := &Doc{ID: id}

	for _, opt := range opts {
		opt(doc)
	}

	return doc
}

// VerificationMethods returns all declared keys.
func (doc *Doc) VerificationMethods() []VerificationMethod {
	var out []VerificationMethod

	for _, p := range doc.CoreProperties {
		if v, ok := p.(VerificationMethods); ok {
			out = append(out, v...)
		}
	}

	return out
}

// Authentication returns the authentication relationship.
func (doc *Doc) Authentication() []VerificationMethod {
	var out []VerificationMethod

	for _, p := range doc.CoreProperties {
		if v, ok := p.(Authentication); ok {
			out = append(out, v...)
		}
	}

	return out
}

// AssertionMethod returns the assertionMethod relationship.
func (doc *Doc) AssertionMethod() []VerificationMethod {
	var out []VerificationMethod

	for _, p := range doc.CoreProperties {
		if v, ok := p.(AssertionMethod); ok {
			out = append(out, v...)
		}
	}

	return out
}

// KeyAgreement returns the keyAgreement relationship.
func (doc *Doc) KeyAgreement() []VerificationMethod {
	var out []VerificationMethod

	for _, p := range doc.CoreProperties {
		if v, ok := p.(KeyAgreement); ok {
			out = append(out, v...)
		}
	}

	return out
}

// CapabilityInvocation returns the capabilityInvocation relationship.
func (doc *Doc) CapabilityInvocation() []VerificationMethod {
	var out []VerificationMethod

	for _, p := range doc.CoreProperties {
		if v, ok := p.(CapabilityInvocation); ok {
			out = append(out, v...)
		}
	}

	return out
}

// CapabilityDelegation returns the capabilityDelegation relationship.
func (doc *Doc) CapabilityDelegation() []VerificationMethod {
	var out []VerificationMethod

	for _, p := range doc.CoreProperties {
		if v, ok := p.(CapabilityDelegation); ok {
			out = append(out, v...)
		}
	}

	return out
}

// Services returns the document services.
func (doc *Doc) Services() []Service {
	var out []Service

	for _, p := range doc.CoreProperties {
		if v, ok := p.(Services); ok {
			out = append(out, v...)
		}
	}

	return out
}

// DIDCommServices returns the services of type DIDCommMessaging.
func (doc *Doc) DIDCommServices() []Service {
	var out []Service

	for _, s := range doc.Services() {
		if s.Type == DIDCommMessagingServiceType {
			out = append(out, s)
		}
	}

	return out
}

// Copy returns a deep copy of the document.
func (doc *Doc) Copy() *Doc {
	out := &Doc{ID: doc.ID, CoreProperties: make([]CoreProperty, 0, len(doc.CoreProperties))}

	for _, p := range doc.CoreProperties {
		out.CoreProperties = append(out.CoreProperties, copyProperty(p))
	}

	return out
}

func copyProperty(p CoreProperty) CoreProperty {
	switch v := p.(type) {
	case VerificationMethods:
		return VerificationMethods(copyMethods(v))
	case Authentication:
		return Authentication(copyMethods(v))
	case AssertionMethod:
		return AssertionMethod(copyMethods(v))
	case KeyAgreement:
		return KeyAgreement(copyMethods(v))
	case CapabilityInvocation:
		return CapabilityInvocation(copyMethods(v))
	case CapabilityDelegation:
		return CapabilityDelegation(copyMethods(v))
	case Services:
		out := make(Services, len(v))

		for i, s := range v {
			s.ServiceEndpoint.RoutingKeys = copyStrings(s.ServiceEndpoint.RoutingKeys)
			s.ServiceEndpoint.Accept = copyStrings(s.ServiceEndpoint.Accept)
			out[i] = s
		}

		return out
	default:
		return p
	}
}

func copyMethods(in []VerificationMethod) []VerificationMethod {
	if in == nil {
		return nil
	}

	out := make([]VerificationMethod, len(in))

	for i, vm := range in {
		vm.ID = vm.ID.copy()

		if vm.PublicKeyJwk != nil {
			jwk := make(map[string]string, len(vm.PublicKeyJwk))
			for k, v := range vm.PublicKeyJwk {
				jwk[k] = v
			}

			vm.PublicKeyJwk = jwk
		}

		out[i] = vm
	}

	return out
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}

	return append([]string{}, in...)
}

// FindVerificationMethod looks a key up by its full DID URL across every relationship.
func (doc *Doc) FindVerificationMethod(id string) (*VerificationMethod, bool) {
	for _, vm := range doc.allMethods() {
		if vm.ID.String() == id {
			vm := vm

			return &vm, true
		}
	}

	return nil, false
}

func (doc *Doc) allMethods() []VerificationMethod {
	var out []VerificationMethod

	for _, p := range doc.CoreProperties {
		switch v := p.(type) {
		case VerificationMethods:
			out = append(out, v...)
		case Authentication:
			out = append(out, v...)
		case AssertionMethod:
			out = append(out, v...)
		case KeyAgreement:
			out = append(out, v...)
		case CapabilityInvocation:
			out = append(out, v...)
		case CapabilityDelegation:
			out = append(out, v...)
		}
	}

	return out
}

func isEmpty(p CoreProperty) bool {
	switch v := p.(type) {
	case VerificationMethods:
		return len(v) == 0
	case Authentication:
		return len(v) == 0
	case AssertionMethod:
		return len(v) == 0
	case KeyAgreement:
		return len(v) == 0
	case CapabilityInvocation:
		return len(v) == 0
	case CapabilityDelegation:
		return len(v) == 0
	case Services:
		return len(v) == 0
	}

	return p == nil
}
