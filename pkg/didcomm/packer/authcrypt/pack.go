/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package authcrypt builds and parses authenticated DIDComm JWE envelopes. The sender identity is
// revealed to the recipients through the skid header and bound into the key derivation with
// ECDH-1PU, so only a holder of the sender key agreement key could have produced the envelope.
// The content is encrypted once with XChacha20Poly1305 and the content key is wrapped per recipient
// with AES key wrap.
package authcrypt

import (
	stdcrypto "crypto"
	"crypto/aes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	josecipher "github.com/go-jose/go-jose/v3/cipher"
	"github.com/hyperledger/aries-framework-go/component/log"
	chacha "golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/poly1305"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/packer"
)

const (
	// EncodingType is the `typ` header of authcrypt envelopes.
	EncodingType = "application/didcomm-encrypted+json"
	// KeyAlgorithm is the key management algorithm.
	KeyAlgorithm = "ECDH-1PU+A256KW"
	// ContentEncryption is the content encryption algorithm.
	ContentEncryption = "XC20P"

	cekSize = chacha.KeySize
)

var logger = log.New("aries-edge-agent/authcrypt")

var (
	// ErrNoRecipients is returned when packing without recipient keys.
	ErrNoRecipients = errors.New("authcrypt: empty recipients")
	// ErrUnsupportedAlgorithm is returned for envelopes using other algorithms.
	ErrUnsupportedAlgorithm = errors.New("authcrypt: unsupported algorithm")
	// ErrRecipientNotFound is returned when the envelope has no entry for a kid.
	ErrRecipientNotFound = errors.New("authcrypt: recipient not found")
	// ErrDecrypt is returned when an envelope fails authentication.
	ErrDecrypt = errors.New("authcrypt: failed to decrypt")
)

// Envelope is the JWE JSON serialization produced by Pack.
type Envelope struct {
	Protected  string      `json:"protected"`
	Recipients []Recipient `json:"recipients"`
	IV         string      `json:"iv"`
	CipherText string      `json:"ciphertext"`
	Tag        string      `json:"tag"`
}

// Recipient is a recipient of an Envelope with its wrapped content key.
type Recipient struct {
	EncryptedKey string           `json:"encrypted_key"`
	Header       RecipientHeaders `json:"header"`
}

// RecipientHeaders are the per recipient unprotected headers.
type RecipientHeaders struct {
	KID string `json:"kid"`
}

// ProtectedHeaders are the headers shared by all recipients and authenticated as AAD.
type ProtectedHeaders struct {
	Typ  string            `json:"typ"`
	Alg  string            `json:"alg"`
	Enc  string            `json:"enc"`
	SKID string            `json:"skid"`
	APU  string            `json:"apu"`
	APV  string            `json:"apv"`
	EPK  map[string]string `json:"epk"`
}

// Packer packs and parses authcrypt envelopes.
type Packer struct {
	randReader io.Reader
}

// Opt configures a Packer.
type Opt func(*Packer)

// WithRandReader sets the entropy source of ephemeral keys, content keys and nonces.
func WithRandReader(r io.Reader) Opt {
	return func(p *Packer) {
		p.randReader = r
	}
}

// New returns an authcrypt Packer.
func New(opts ...Opt) *Packer {
	p := &Packer{randReader: rand.Reader}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// EncodingType returns the `typ` header of envelopes produced by Pack.
func (p *Packer) EncodingType() string {
	return EncodingType
}

// Pack encrypts payload for every recipient key. senderKey must be an X25519 key agreement key,
// senderKID is its key id as published in the sender DID document.
func (p *Packer) Pack(payload []byte, senderKID string, senderKey crypto.PrivateKey,
	recipients []packer.RecipientKey) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	sender, ok := senderKey.(crypto.KeyAgreement)
	if !ok || senderKey.Curve() != crypto.X25519 {
		return nil, fmt.Errorf("authcrypt Pack: sender key: %w", crypto.ErrCurveMismatch)
	}

	epk, err := crypto.NewGenerator(crypto.WithRandReader(p.randReader)).GenerateKeyPair(crypto.X25519)
	if err != nil {
		return nil, fmt.Errorf("authcrypt Pack: ephemeral key: %w", err)
	}

	kids := make([]string, len(recipients))
	for i, r := range recipients {
		kids[i] = r.KID
	}

	apv := hashKIDs(kids)

	headers := ProtectedHeaders{
		Typ:  EncodingType,
		Alg:  KeyAlgorithm,
		Enc:  ContentEncryption,
		SKID: senderKID,
		APU:  base64.RawURLEncoding.EncodeToString([]byte(senderKID)),
		APV:  base64.RawURLEncoding.EncodeToString(apv),
		EPK:  epk.Public.(crypto.Exporter).JWK(),
	}

	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("authcrypt Pack: %w", err)
	}

	protected := base64.RawURLEncoding.EncodeToString(headersJSON)

	cek := make([]byte, cekSize)
	if _, err = io.ReadFull(p.randReader, cek); err != nil {
		return nil, fmt.Errorf("authcrypt Pack: content key: %w", err)
	}

	aead, err := chacha.NewX(cek)
	if err != nil {
		return nil, fmt.Errorf("authcrypt Pack: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = io.ReadFull(p.randReader, nonce); err != nil {
		return nil, fmt.Errorf("authcrypt Pack: nonce: %w", err)
	}

	symOutput := aead.Seal(nil, nonce, payload, []byte(protected))
	cipherText := symOutput[:len(symOutput)-poly1305.TagSize]
	tag := symOutput[len(symOutput)-poly1305.TagSize:]

	ephemeral := epk.Private.(crypto.KeyAgreement)

	env := Envelope{
		Protected:  protected,
		IV:         base64.RawURLEncoding.EncodeToString(nonce),
		CipherText: base64.RawURLEncoding.EncodeToString(cipherText),
		Tag:        base64.RawURLEncoding.EncodeToString(tag),
	}

	for _, r := range recipients {
		ze, err := ephemeral.SharedSecret(r.Key)
		if err != nil {
			return nil, fmt.Errorf("authcrypt Pack: recipient %s: %w", r.KID, err)
		}

		zs, err := sender.SharedSecret(r.Key)
		if err != nil {
			return nil, fmt.Errorf("authcrypt Pack: recipient %s: %w", r.KID, err)
		}

		encryptedKey, err := wrapKey(append(ze, zs...), []byte(senderKID), apv, tag, cek)
		if err != nil {
			return nil, fmt.Errorf("authcrypt Pack: recipient %s: %w", r.KID, err)
		}

		env.Recipients = append(env.Recipients, Recipient{
			EncryptedKey: base64.RawURLEncoding.EncodeToString(encryptedKey),
			Header:       RecipientHeaders{KID: r.KID},
		})
	}

	return json.Marshal(env)
}

// Parse reads an authcrypt envelope without decrypting it.
func (p *Packer) Parse(envelope []byte) (packer.Envelope, error) {
	jwe, err := Parse(envelope)
	if err != nil {
		return nil, err
	}

	return jwe, nil
}

// JWE is a parsed authcrypt envelope.
type JWE struct {
	Envelope
	Headers ProtectedHeaders
}

// Parse decodes envelope and its protected headers.
func Parse(envelope []byte) (*JWE, error) {
	jwe := &JWE{}

	if err := json.Unmarshal(envelope, &jwe.Envelope); err != nil {
		return nil, fmt.Errorf("authcrypt Parse: %w", err)
	}

	headersJSON, err := base64.RawURLEncoding.DecodeString(jwe.Protected)
	if err != nil {
		return nil, fmt.Errorf("authcrypt Parse: protected headers: %w", err)
	}

	if err = json.Unmarshal(headersJSON, &jwe.Headers); err != nil {
		return nil, fmt.Errorf("authcrypt Parse: protected headers: %w", err)
	}

	if jwe.Headers.Alg != KeyAlgorithm || jwe.Headers.Enc != ContentEncryption {
		return nil, fmt.Errorf("%w: alg %q enc %q", ErrUnsupportedAlgorithm, jwe.Headers.Alg, jwe.Headers.Enc)
	}

	return jwe, nil
}

// SenderKID returns the skid header.
func (j *JWE) SenderKID() string {
	return j.Headers.SKID
}

// RecipientKIDs returns the recipient key ids in envelope order.
func (j *JWE) RecipientKIDs() []string {
	kids := make([]string, len(j.Recipients))
	for i, r := range j.Recipients {
		kids[i] = r.Header.KID
	}

	return kids
}

// Decrypt unwraps the content key of recipient kid and decrypts the payload.
func (j *JWE) Decrypt(kid string, recipientKey crypto.PrivateKey, senderKey crypto.PublicKey) ([]byte, error) {
	var recipient *Recipient

	for i := range j.Recipients {
		if j.Recipients[i].Header.KID == kid {
			recipient = &j.Recipients[i]

			break
		}
	}

	if recipient == nil {
		return nil, fmt.Errorf("%w: %s", ErrRecipientNotFound, kid)
	}

	agreement, ok := recipientKey.(crypto.KeyAgreement)
	if !ok {
		return nil, fmt.Errorf("authcrypt Decrypt: recipient key: %w", crypto.ErrCurveMismatch)
	}

	epk, err := crypto.PublicKeyFromJWK(j.Headers.EPK)
	if err != nil {
		return nil, fmt.Errorf("authcrypt Decrypt: epk: %w", err)
	}

	ze, err := agreement.SharedSecret(epk)
	if err != nil {
		return nil, fmt.Errorf("authcrypt Decrypt: %w", err)
	}

	zs, err := agreement.SharedSecret(senderKey)
	if err != nil {
		return nil, fmt.Errorf("authcrypt Decrypt: %w", err)
	}

	apu, err := base64.RawURLEncoding.DecodeString(j.Headers.APU)
	if err != nil {
		return nil, fmt.Errorf("authcrypt Decrypt: apu: %w", err)
	}

	apv, err := base64.RawURLEncoding.DecodeString(j.Headers.APV)
	if err != nil {
		return nil, fmt.Errorf("authcrypt Decrypt: apv: %w", err)
	}

	fields, err := decodeFields(recipient.EncryptedKey, j.Tag, j.IV, j.CipherText)
	if err != nil {
		return nil, fmt.Errorf("authcrypt Decrypt: %w", err)
	}

	encryptedKey, tag, nonce, cipherText := fields[0], fields[1], fields[2], fields[3]

	cek, err := unwrapKey(append(ze, zs...), apu, apv, tag, encryptedKey)
	if err != nil {
		logger.Debugf("key unwrap failed for %s: %v", kid, err)

		return nil, fmt.Errorf("%w: %s", ErrDecrypt, kid)
	}

	aead, err := chacha.NewX(cek)
	if err != nil {
		return nil, fmt.Errorf("authcrypt Decrypt: %w", err)
	}

	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: invalid iv", ErrDecrypt)
	}

	payload, err := aead.Open(nil, nonce, append(cipherText, tag...), []byte(j.Protected))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecrypt, err.Error())
	}

	return payload, nil
}

func decodeFields(values ...string) ([][]byte, error) {
	out := make([][]byte, len(values))

	for i, v := range values {
		b, err := base64.RawURLEncoding.DecodeString(v)
		if err != nil {
			return nil, err
		}

		out[i] = b
	}

	return out, nil
}

func wrapKey(z, apu, apv, tag, cek []byte) ([]byte, error) {
	block, err := aes.NewCipher(deriveKEK(z, apu, apv, tag))
	if err != nil {
		return nil, err
	}

	return josecipher.KeyWrap(block, cek)
}

func unwrapKey(z, apu, apv, tag, encryptedKey []byte) ([]byte, error) {
	block, err := aes.NewCipher(deriveKEK(z, apu, apv, tag))
	if err != nil {
		return nil, err
	}

	return josecipher.KeyUnwrap(block, encryptedKey)
}

// deriveKEK runs Concat KDF over Z = Ze || Zs. The content tag is bound into SuppPubInfo.
func deriveKEK(z, apu, apv, tag []byte) []byte {
	keySize := 32
	supPubInfo := append([]byte{0, 0, 1, 0}, lengthPrefix(tag)...)

	reader := josecipher.NewConcatKDF(stdcrypto.SHA256,
		z, lengthPrefix([]byte(KeyAlgorithm)), lengthPrefix(apu), lengthPrefix(apv), supPubInfo, []byte{})

	kek := make([]byte, keySize)
	// Concat KDF reads never fail.
	_, _ = io.ReadFull(reader, kek)

	return kek
}

func lengthPrefix(array []byte) []byte {
	arrInfo := make([]byte, 4+len(array))
	arrInfo[0] = byte(len(array) >> 24)
	arrInfo[1] = byte(len(array) >> 16)
	arrInfo[2] = byte(len(array) >> 8)
	arrInfo[3] = byte(len(array))
	copy(arrInfo[4:], array)

	return arrInfo
}

// hashKIDs returns sha256 of the sorted kids joined by '.'.
func hashKIDs(kids []string) []byte {
	sorted := append([]string(nil), kids...)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, ".")))

	return sum[:]
}
