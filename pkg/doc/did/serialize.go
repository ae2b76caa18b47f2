/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"encoding/json"
)

// ContextV1 is the DID core JSON-LD context.
const ContextV1 = "https://www.w3.org/ns/did/v1"

// RawVerificationMethod is the JSON form of a verification method.
type RawVerificationMethod struct {
	ID                 string            `json:"id" mapstructure:"id"`
	Type               string            `json:"type" mapstructure:"type"`
	Controller         string            `json:"controller" mapstructure:"controller"`
	PublicKeyJwk       map[string]string `json:"publicKeyJwk,omitempty" mapstructure:"publicKeyJwk"`
	PublicKeyMultibase string            `json:"publicKeyMultibase,omitempty" mapstructure:"publicKeyMultibase"`
}

// RawServiceEndpoint is the JSON form of a DIDComm v2 service endpoint.
type RawServiceEndpoint struct {
	URI         string   `json:"uri" mapstructure:"uri"`
	RoutingKeys []string `json:"routingKeys,omitempty" mapstructure:"routingKeys"`
	Accept      []string `json:"accept,omitempty" mapstructure:"accept"`
}

// RawService is the JSON form of a service.
type RawService struct {
	ID              string             `json:"id"`
	Type            string             `json:"type"`
	ServiceEndpoint RawServiceEndpoint `json:"serviceEndpoint"`
}

type rawDoc struct {
	Context              []string                `json:"@context"`
	ID                   string                  `json:"id"`
	VerificationMethod   []RawVerificationMethod `json:"verificationMethod,omitempty"`
	Authentication       []string                `json:"authentication,omitempty"`
	AssertionMethod      []string                `json:"assertionMethod,omitempty"`
	KeyAgreement         []string                `json:"keyAgreement,omitempty"`
	CapabilityInvocation []string                `json:"capabilityInvocation,omitempty"`
	CapabilityDelegation []string                `json:"capabilityDelegation,omitempty"`
	Service              []RawService            `json:"service,omitempty"`
}

// ToRaw converts a verification method to its JSON form.
func (vm *VerificationMethod) ToRaw() RawVerificationMethod {
	return RawVerificationMethod{
		ID:                 vm.ID.String(),
		Type:               vm.Type,
		Controller:         vm.Controller.String(),
		PublicKeyJwk:       vm.PublicKeyJwk,
		PublicKeyMultibase: vm.PublicKeyMultibase,
	}
}

// MarshalJSON renders the document in the W3C DID core JSON representation. Every key is
// listed once under verificationMethod and relationships reference it by id.
func (doc *Doc) MarshalJSON() ([]byte, error) {
	raw := rawDoc{
		Context: []string{ContextV1},
		ID:      doc.ID.String(),
	}

	seen := make(map[string]bool)

	for _, vm := range doc.allMethods() {
		id := vm.ID.String()
		if seen[id] {
			continue
		}

		seen[id] = true

		raw.VerificationMethod = append(raw.VerificationMethod, vm.ToRaw())
	}

	raw.Authentication = ids(doc.Authentication())
	raw.AssertionMethod = ids(doc.AssertionMethod())
	raw.KeyAgreement = ids(doc.KeyAgreement())
	raw.CapabilityInvocation = ids(doc.CapabilityInvocation())
	raw.CapabilityDelegation = ids(doc.CapabilityDelegation())

	for _, s := range doc.Services() {
		raw.Service = append(raw.Service, RawService{
			ID:   s.ID,
			Type: s.Type,
			ServiceEndpoint: RawServiceEndpoint{
				URI:         s.ServiceEndpoint.URI,
				RoutingKeys: s.ServiceEndpoint.RoutingKeys,
				Accept:      s.ServiceEndpoint.Accept,
			},
		})
	}

	return json.Marshal(raw)
}

func ids(vms []VerificationMethod) []string {
	out := make([]string, 0, len(vms))

	for _, vm := range vms {
		out = append(out, vm.ID.String())
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
