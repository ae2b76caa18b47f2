/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package message

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrUnknownAttachmentData is returned for attachment data of an unrecognised kind.
var ErrUnknownAttachmentData = errors.New("unknown attachment data")

// AttachmentData is the payload of an attachment: Base64, JSON or Links.
type AttachmentData interface {
	attachmentData()
}

// Base64 is inline base64url payload.
type Base64 struct {
	Base64 string
}

// JSON is inline JSON payload.
type JSON struct {
	JSON json.RawMessage
}

// Links references the payload by URL with its hash.
type Links struct {
	Links []string
	Hash  string
}

func (Base64) attachmentData() {}
func (JSON) attachmentData()   {}
func (Links) attachmentData()  {}

// AttachmentDescriptor is a DIDComm v2 attachment.
type AttachmentDescriptor struct {
	ID          string
	Data        AttachmentData
	MediaType   string
	Format      string
	Filename    string
	Description string
	ByteCount   int64
}

// NewBase64Attachment wraps data as a base64 attachment with a random id.
func NewBase64Attachment(data []byte, mediaType string) AttachmentDescriptor {
	return AttachmentDescriptor{
		ID:        uuid.New().String(),
		Data:      Base64{Base64: base64.RawURLEncoding.EncodeToString(data)},
		MediaType: mediaType,
	}
}

// NewJSONAttachment wraps v as a JSON attachment with a random id.
func NewJSONAttachment(v interface{}, mediaType string) (AttachmentDescriptor, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return AttachmentDescriptor{}, fmt.Errorf("marshal attachment: %w", err)
	}

	return AttachmentDescriptor{
		ID:        uuid.New().String(),
		Data:      JSON{JSON: raw},
		MediaType: mediaType,
	}, nil
}

// Bytes returns the inline payload. Links attachments have no inline payload.
func (a AttachmentDescriptor) Bytes() ([]byte, error) {
	switch d := a.Data.(type) {
	case Base64:
		return decodeBase64(d.Base64)
	case JSON:
		return d.JSON, nil
	case Links:
		return nil, fmt.Errorf("attachment %s: links data has no inline payload", a.ID)
	}

	return nil, fmt.Errorf("attachment %s: %w", a.ID, ErrUnknownAttachmentData)
}

// rawAttachmentData keeps the payload kind by key presence, so an empty payload keeps its kind.
type rawAttachmentData struct {
	Base64 *string          `json:"base64,omitempty"`
	JSON   *json.RawMessage `json:"json,omitempty"`
	Links  *[]string        `json:"links,omitempty"`
	Hash   string           `json:"hash,omitempty"`
}

func (d *rawAttachmentData) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage

	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("attachment data: %w", err)
	}

	if v, ok := fields["base64"]; ok {
		var b64 string
		if err := json.Unmarshal(v, &b64); err != nil {
			return fmt.Errorf("attachment base64 data: %w", err)
		}

		d.Base64 = &b64
	}

	if v, ok := fields["json"]; ok {
		raw := append(json.RawMessage(nil), v...)
		d.JSON = &raw
	}

	if v, ok := fields["links"]; ok {
		var links []string
		if err := json.Unmarshal(v, &links); err != nil {
			return fmt.Errorf("attachment links data: %w", err)
		}

		d.Links = &links
	}

	if v, ok := fields["hash"]; ok {
		if err := json.Unmarshal(v, &d.Hash); err != nil {
			return fmt.Errorf("attachment hash: %w", err)
		}
	}

	return nil
}

type rawAttachment struct {
	ID          string            `json:"id,omitempty"`
	Description string            `json:"description,omitempty"`
	Filename    string            `json:"filename,omitempty"`
	MediaType   string            `json:"media_type,omitempty"`
	Format      string            `json:"format,omitempty"`
	ByteCount   int64             `json:"byte_count,omitempty"`
	Data        rawAttachmentData `json:"data"`
}

func (a AttachmentDescriptor) toRaw() (rawAttachment, error) {
	raw := rawAttachment{
		ID:          a.ID,
		Description: a.Description,
		Filename:    a.Filename,
		MediaType:   a.MediaType,
		Format:      a.Format,
		ByteCount:   a.ByteCount,
	}

	switch d := a.Data.(type) {
	case Base64:
		b64 := d.Base64
		raw.Data.Base64 = &b64
	case JSON:
		if len(d.JSON) == 0 {
			return rawAttachment{}, fmt.Errorf("attachment %s: empty json data", a.ID)
		}

		value := d.JSON
		raw.Data.JSON = &value
	case Links:
		links := d.Links
		raw.Data.Links = &links
		raw.Data.Hash = d.Hash
	default:
		return rawAttachment{}, fmt.Errorf("attachment %s: %w: %T", a.ID, ErrUnknownAttachmentData, a.Data)
	}

	return raw, nil
}

func (r rawAttachment) toDescriptor() (AttachmentDescriptor, error) {
	a := AttachmentDescriptor{
		ID:          r.ID,
		Description: r.Description,
		Filename:    r.Filename,
		MediaType:   r.MediaType,
		Format:      r.Format,
		ByteCount:   r.ByteCount,
	}

	switch {
	case r.Data.Base64 != nil:
		a.Data = Base64{Base64: *r.Data.Base64}
	case r.Data.JSON != nil:
		a.Data = JSON{JSON: *r.Data.JSON}
	case r.Data.Links != nil:
		a.Data = Links{Links: *r.Data.Links, Hash: r.Data.Hash}
	default:
		return AttachmentDescriptor{}, fmt.Errorf("attachment %s: %w", r.ID, ErrUnknownAttachmentData)
	}

	return a, nil
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding, base64.RawStdEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}

	return nil, errors.New("attachment data is not base64")
}
