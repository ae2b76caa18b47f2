/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package did

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid DIDs", func(t *testing.T) {
		d, err := Parse("did:example:123456789abcdefghi")
		require.NoError(t, err)
		require.Equal(t, "example", d.Method)
		require.Equal(t, "123456789abcdefghi", d.MethodID)
		require.Equal(t, "did:example:123456789abcdefghi", d.String())

		d, err = Parse("did:prism:abc:def_1.2-3%20")
		require.NoError(t, err)
		require.Equal(t, []string{"abc", "def_1.2-3%20"}, d.Segments())

		d, err = Parse("DID:PEER:2.Ez6LS")
		require.NoError(t, err)
		require.Equal(t, "peer", d.Method)
	})

	t.Run("invalid DIDs", func(t *testing.T) {
		for _, s := range []string{
			"",
			"example:123",
			"did:",
			"did::123",
			"did:ex-ample:123",
			"did:example",
			"did:example:",
			"did:x::y",
			"did:x:y:",
			"did:x:y z",
		} {
			_, err := Parse(s)
			require.ErrorIs(t, err, ErrInvalidDIDString, s)
		}
	})

	t.Run("text round trip", func(t *testing.T) {
		var d DID

		require.NoError(t, json.Unmarshal([]byte(`"did:peer:2.abc"`), &d))
		require.Equal(t, "peer", d.Method)

		b, err := json.Marshal(d)
		require.NoError(t, err)
		require.Equal(t, `"did:peer:2.abc"`, string(b))

		require.Error(t, json.Unmarshal([]byte(`"not-a-did"`), &d))
	})

	t.Run("must parse panics", func(t *testing.T) {
		require.Panics(t, func() { MustParse("did::") })
		require.True(t, MustParse("did:a:b").Equal(DID{Method: "a", MethodID: "b"}))
	})
}

func TestParseDIDURL(t *testing.T) {
	t.Run("all parts", func(t *testing.T) {
		u, err := ParseDIDURL("did:example:123/a/b?service=files&relativeRef=x#key-1")
		require.NoError(t, err)
		require.Equal(t, "did:example:123", u.DID.String())
		require.Equal(t, []string{"a", "b"}, u.Path)
		require.Equal(t, []string{"service", "relativeRef"}, u.Query.Keys())
		v, ok := u.Query.Get("service")
		require.True(t, ok)
		require.Equal(t, "files", v)
		require.Equal(t, "key-1", u.Fragment)
		require.Equal(t, "did:example:123/a/b?service=files&relativeRef=x#key-1", u.String())
	})

	t.Run("fragment only", func(t *testing.T) {
		u, err := ParseDIDURL("did:peer:2.abc#key-2")
		require.NoError(t, err)
		require.Empty(t, u.Path)
		require.Zero(t, u.Query.Len())
		require.Equal(t, "#key-2", u.RelativeFragment())
	})

	t.Run("duplicate query keys keep the last value", func(t *testing.T) {
		u, err := ParseDIDURL("did:example:1?a=1&b=2&a=3")
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, u.Query.Keys())
		v, _ := u.Query.Get("a")
		require.Equal(t, "3", v)
	})

	t.Run("errors", func(t *testing.T) {
		for _, s := range []string{"did:example:1#", "did:example:1?=x", "did:example:1?novalue", "nodid#a"} {
			_, err := ParseDIDURL(s)
			require.ErrorIs(t, err, ErrInvalidDIDURLString, s)
		}
	})
}

func TestDoc(t *testing.T) {
	id := *MustParse("did:example:123")
	auth := VerificationMethod{
		ID:                 NewDIDURL(id, "key-1"),
		Controller:         id,
		Type:               Ed25519VerificationKey2020,
		PublicKeyMultibase: "z6Mk",
	}
	agreement := VerificationMethod{
		ID:           NewDIDURL(id, "key-2"),
		Controller:   id,
		Type:         JSONWebKey2020,
		PublicKeyJwk: map[string]string{"kty": "OKP", "crv": "X25519", "x": "abc"},
	}

	doc := BuildDoc(id,
		WithCoreProperty(Authentication{auth}),
		WithCoreProperty(KeyAgreement{agreement}),
		WithCoreProperty(AssertionMethod{}),
		WithCoreProperty(Services{{
			ID:              "#service",
			Type:            DIDCommMessagingServiceType,
			ServiceEndpoint: ServiceEndpoint{URI: "https://mediator.example", Accept: []string{"didcomm/v2"}},
		}}),
	)

	require.Len(t, doc.CoreProperties, 3)
	require.Len(t, doc.Authentication(), 1)
	require.Len(t, doc.KeyAgreement(), 1)
	require.Empty(t, doc.AssertionMethod())
	require.Len(t, doc.DIDCommServices(), 1)

	vm, ok := doc.FindVerificationMethod("did:example:123#key-2")
	require.True(t, ok)
	require.Equal(t, "X25519", vm.PublicKeyJwk["crv"])

	_, ok = doc.FindVerificationMethod("did:example:123#key-9")
	require.False(t, ok)

	require.NoError(t, auth.Validate())

	bad := auth
	bad.PublicKeyJwk = map[string]string{"kty": "OKP"}
	require.ErrorIs(t, bad.Validate(), ErrKeyMaterial)

	b, err := json.Marshal(doc)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Equal(t, "did:example:123", raw["id"])
	require.Len(t, raw["verificationMethod"], 2)
	require.Equal(t, []interface{}{"did:example:123#key-1"}, raw["authentication"])
	require.NotContains(t, raw, "assertionMethod")
}

func TestDoc_Copy(t *testing.T) {
	id := *MustParse("did:example:123")
	keyID, err := ParseDIDURL("did:example:123/keys?v=1#key-1")
	require.NoError(t, err)

	doc := BuildDoc(id,
		WithCoreProperty(KeyAgreement{{
			ID:           *keyID,
			Controller:   id,
			Type:         JSONWebKey2020,
			PublicKeyJwk: map[string]string{"kty": "OKP", "crv": "X25519", "x": "abc"},
		}}),
		WithCoreProperty(Services{{
			ID:   "#service",
			Type: DIDCommMessagingServiceType,
			ServiceEndpoint: ServiceEndpoint{
				URI:         "https://mediator.example",
				RoutingKeys: []string{"did:example:mediator#key-1"},
				Accept:      []string{"didcomm/v2"},
			},
		}}),
	)

	cp := doc.Copy()
	require.Equal(t, doc, cp)

	cp.KeyAgreement()[0].PublicKeyJwk["x"] = "changed"
	cp.KeyAgreement()[0].ID.Path[0] = "changed"
	cp.KeyAgreement()[0].ID.Query.Set("v", "2")
	cp.Services()[0].ServiceEndpoint.RoutingKeys[0] = "changed"
	cp.Services()[0].ServiceEndpoint.Accept[0] = "changed"
	cp.CoreProperties = cp.CoreProperties[:1]

	require.Len(t, doc.CoreProperties, 2)
	require.Equal(t, "abc", doc.KeyAgreement()[0].PublicKeyJwk["x"])
	require.Equal(t, "did:example:123/keys?v=1#key-1", doc.KeyAgreement()[0].ID.String())
	require.Equal(t, []string{"did:example:mediator#key-1"}, doc.Services()[0].ServiceEndpoint.RoutingKeys)
	require.Equal(t, []string{"didcomm/v2"}, doc.Services()[0].ServiceEndpoint.Accept)
}
