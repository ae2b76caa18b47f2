/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package issuecredential

import (
	"fmt"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/message"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

const (
	// Name defines the protocol name.
	Name = "issue-credential"
	// SpecV3 defines the protocol spec V3.
	SpecV3 = "https://didcomm.org/issue-credential/3.0/"
	// ProposeCredentialMsgTypeV3 defines the protocol propose-credential message type.
	ProposeCredentialMsgTypeV3 = SpecV3 + "propose-credential"
	// OfferCredentialMsgTypeV3 defines the protocol offer-credential message type.
	OfferCredentialMsgTypeV3 = SpecV3 + "offer-credential"
	// RequestCredentialMsgTypeV3 defines the protocol request-credential message type.
	RequestCredentialMsgTypeV3 = SpecV3 + "request-credential"
	// IssueCredentialMsgTypeV3 defines the protocol issue-credential message type.
	IssueCredentialMsgTypeV3 = SpecV3 + "issue-credential"
	// CredentialPreviewMsgTypeV3 defines the protocol credential-preview inner object type.
	CredentialPreviewMsgTypeV3 = SpecV3 + "credential-preview"
)

// Attachment formats.
const (
	FormatJWT       = "prism/jwt"
	FormatLDProof   = "aries/ld-proof-vc@v1.0"
	FormatAnonCreds = "anoncreds/credential@v1.0"
)

// Attribute describes an attribute for a Preview Credential.
type Attribute struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type,omitempty"`
	Value     string `json:"value"`
}

// PreviewCredentialBody holds the previewed attributes.
type PreviewCredentialBody struct {
	Attributes []Attribute `json:"attributes"`
}

// PreviewCredential is used to construct a preview of the data for the credential that is to be issued.
type PreviewCredential struct {
	Type     string                `json:"type"`
	SchemaID string                `json:"schema_id,omitempty"`
	Body     PreviewCredentialBody `json:"body"`
}

// NewPreviewCredential returns a preview over attributes.
func NewPreviewCredential(schemaID string, attributes ...Attribute) *PreviewCredential {
	return &PreviewCredential{
		Type:     CredentialPreviewMsgTypeV3,
		SchemaID: schemaID,
		Body:     PreviewCredentialBody{Attributes: attributes},
	}
}

// ProposeCredentialV3Body represents body for ProposeCredentialV3.
type ProposeCredentialV3Body struct {
	GoalCode          string             `json:"goal_code,omitempty"`
	Comment           string             `json:"comment,omitempty"`
	CredentialPreview *PreviewCredential `json:"credential_preview,omitempty"`
}

// OfferCredentialV3Body represents body for OfferCredentialV3.
type OfferCredentialV3Body struct {
	GoalCode          string             `json:"goal_code,omitempty"`
	Comment           string             `json:"comment,omitempty"`
	ReplacementID     string             `json:"replacement_id,omitempty"`
	MultipleAvailable string             `json:"multiple_available,omitempty"`
	CredentialPreview *PreviewCredential `json:"credential_preview,omitempty"`
}

// RequestCredentialV3Body represents body for RequestCredentialV3.
type RequestCredentialV3Body struct {
	GoalCode string `json:"goal_code,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// IssueCredentialV3Body represents body for IssueCredentialV3.
type IssueCredentialV3Body struct {
	GoalCode      string `json:"goal_code,omitempty"`
	Comment       string `json:"comment,omitempty"`
	ReplacementID string `json:"replacement_id,omitempty"`
	MoreAvailable string `json:"more_available,omitempty"`
}

// envelope carries the routing fields shared by all the protocol messages.
type envelope struct {
	ID          string
	Thid        string
	From        did.DID
	To          did.DID
	Attachments []message.AttachmentDescriptor
}

// ThreadID returns the thread of the message.
func (e envelope) ThreadID() string {
	if e.Thid != "" {
		return e.Thid
	}

	return e.ID
}

func newEnvelope(msg *message.Message) (envelope, error) {
	if msg.From == nil || msg.To == nil {
		return envelope{}, fmt.Errorf("%s: from and to are mandatory", msg.PIURI)
	}

	return envelope{
		ID:          msg.ID,
		Thid:        msg.Thid,
		From:        *msg.From,
		To:          *msg.To,
		Attachments: msg.Attachments,
	}, nil
}

// ProposeCredentialV3 is an optional message sent by the potential Holder to the Issuer
// to initiate the protocol or in response to a offer-credential message when the Holder
// wants some adjustments made to the credential data offered by Issuer.
type ProposeCredentialV3 struct {
	envelope
	Body ProposeCredentialV3Body
}

// OfferCredentialV3 is a message sent by the Issuer to the potential Holder,
// describing the credential they intend to offer.
type OfferCredentialV3 struct {
	envelope
	Body OfferCredentialV3Body
}

// RequestCredentialV3 is a message sent by the potential Holder to the Issuer,
// to request the issuance of a credential.
type RequestCredentialV3 struct {
	envelope
	Body RequestCredentialV3Body
}

// IssueCredentialV3 contains as attached payload the credentials being issued.
type IssueCredentialV3 struct { //nolint: golint
	envelope
	Body IssueCredentialV3Body
}

// Credentials returns the attached credential payloads.
func (m *IssueCredentialV3) Credentials() ([][]byte, error) {
	credentials := make([][]byte, 0, len(m.Attachments))

	for _, a := range m.Attachments {
		raw, err := a.Bytes()
		if err != nil {
			return nil, fmt.Errorf("issued credential: %w", err)
		}

		credentials = append(credentials, raw)
	}

	return credentials, nil
}

// NewProposeCredential builds a propose-credential from the holder to the issuer.
func NewProposeCredential(from, to *did.DID, body ProposeCredentialV3Body,
	attachments ...message.AttachmentDescriptor) (*message.Message, error) {
	return message.New(ProposeCredentialMsgTypeV3, from, to, body, message.WithAttachments(attachments...))
}

// NewOfferCredential builds an offer-credential from the issuer to the holder.
func NewOfferCredential(from, to *did.DID, body OfferCredentialV3Body,
	attachments ...message.AttachmentDescriptor) (*message.Message, error) {
	return message.New(OfferCredentialMsgTypeV3, from, to, body, message.WithAttachments(attachments...))
}

// OfferFromProposal answers a proposal with an offer previewing the proposed attributes.
func OfferFromProposal(propose *ProposeCredentialV3, attachments ...message.AttachmentDescriptor) (*message.Message, error) {
	if len(attachments) == 0 {
		attachments = propose.Attachments
	}

	return message.New(OfferCredentialMsgTypeV3, &propose.To, &propose.From, OfferCredentialV3Body{
		GoalCode:          propose.Body.GoalCode,
		Comment:           propose.Body.Comment,
		CredentialPreview: propose.Body.CredentialPreview,
	}, message.WithThid(propose.ThreadID()), message.WithAttachments(attachments...))
}

// RequestFromOffer answers an offer with a request. Without attachments the offered ones are
// requested as is.
func RequestFromOffer(offer *OfferCredentialV3, attachments ...message.AttachmentDescriptor) (*message.Message, error) {
	if len(attachments) == 0 {
		attachments = offer.Attachments
	}

	return message.New(RequestCredentialMsgTypeV3, &offer.To, &offer.From, RequestCredentialV3Body{
		GoalCode: offer.Body.GoalCode,
		Comment:  offer.Body.Comment,
	}, message.WithThid(offer.ThreadID()), message.WithAttachments(attachments...))
}

// IssueFromRequest answers a request with the issued credentials.
func IssueFromRequest(request *RequestCredentialV3, credentials ...message.AttachmentDescriptor) (*message.Message, error) {
	return message.New(IssueCredentialMsgTypeV3, &request.To, &request.From, IssueCredentialV3Body{
		GoalCode: request.Body.GoalCode,
	}, message.WithThid(request.ThreadID()), message.WithAttachments(credentials...))
}

// ParseProposeCredential decodes a propose-credential.
func ParseProposeCredential(msg *message.Message) (*ProposeCredentialV3, error) {
	out := &ProposeCredentialV3{}

	if err := decode(msg, ProposeCredentialMsgTypeV3, &out.envelope, &out.Body); err != nil {
		return nil, err
	}

	return out, nil
}

// ParseOfferCredential decodes an offer-credential.
func ParseOfferCredential(msg *message.Message) (*OfferCredentialV3, error) {
	out := &OfferCredentialV3{}

	if err := decode(msg, OfferCredentialMsgTypeV3, &out.envelope, &out.Body); err != nil {
		return nil, err
	}

	return out, nil
}

// ParseRequestCredential decodes a request-credential.
func ParseRequestCredential(msg *message.Message) (*RequestCredentialV3, error) {
	out := &RequestCredentialV3{}

	if err := decode(msg, RequestCredentialMsgTypeV3, &out.envelope, &out.Body); err != nil {
		return nil, err
	}

	return out, nil
}

// ParseIssueCredential decodes an issue-credential.
func ParseIssueCredential(msg *message.Message) (*IssueCredentialV3, error) {
	out := &IssueCredentialV3{}

	if err := decode(msg, IssueCredentialMsgTypeV3, &out.envelope, &out.Body); err != nil {
		return nil, err
	}

	return out, nil
}

func decode(msg *message.Message, piuri string, env *envelope, body interface{}) error {
	if err := msg.CheckType(piuri); err != nil {
		return err
	}

	e, err := newEnvelope(msg)
	if err != nil {
		return err
	}

	*env = e

	return msg.DecodeBody(body)
}
