/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import "mime"

const (
	// MediaTypeV2EncryptedEnvelope is the media type for DIDComm V2 encrypted envelopes as per the
	// DIF DIDComm spec.
	MediaTypeV2EncryptedEnvelope = "application/didcomm-encrypted+json"
	// MediaTypeV2PlaintextPayload is the media type of DIDComm V2 plaintext messages.
	MediaTypeV2PlaintextPayload = "application/didcomm-plain+json"
)

// IsEncryptedEnvelope reports whether a Content-Type header value names an encrypted envelope.
// Media type parameters are ignored.
func IsEncryptedEnvelope(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == MediaTypeV2EncryptedEnvelope
}
