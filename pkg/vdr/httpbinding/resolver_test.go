/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package httpbinding

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
)

const testDID = "did:prism:4a5b5cf0a513e83b598bbea25cd6196746747f361a73ef77068268bc9bd732ff"

const doc = `{
  "@context": ["https://www.w3.org/ns/did/v1"],
  "id": "` + testDID + `",
  "verificationMethod": [
    {
      "id": "` + testDID + `#master0",
      "type": "JsonWebKey2020",
      "controller": "` + testDID + `",
      "publicKeyJwk": {"kty": "EC", "crv": "secp256k1", "x": "AA", "y": "AA"}
    },
    {
      "id": "#authentication0",
      "type": "JsonWebKey2020",
      "publicKeyJwk": {"kty": "OKP", "crv": "Ed25519", "x": "AA"}
    }
  ],
  "authentication": ["#authentication0"],
  "assertionMethod": [
    {
      "id": "` + testDID + `#issuing0",
      "type": "JsonWebKey2020",
      "publicKeyMultibase": "z6MkqgCXHEGr2wJZANPZGC8WFmeVuS3abAD9uvh7mTXygCFv"
    }
  ],
  "service": [
    {"id": "#didcomm-1", "type": "DIDCommMessaging", "serviceEndpoint": {"uri": "https://agent.example.com", "accept": ["didcomm/v2"]}},
    {"id": "` + testDID + `#web", "type": "LinkedDomains", "serviceEndpoint": "https://example.com"}
  ]
}`

const resolutionResult = `{"@context": "https://w3id.org/did-resolution/v1", "didDocument": ` + doc + `}`

func TestNew(t *testing.T) {
	v, err := New("https://registrar.example.com/dids", "prism", WithTimeout(time.Second))
	require.NoError(t, err)
	require.Equal(t, "prism", v.Method())

	_, err = New("not a url", "prism")
	require.Error(t, err)
}

type tokenProvider struct{}

func (tokenProvider) AuthToken() (string, error) { return "provided", nil }

func TestVDR_Resolve(t *testing.T) {
	t.Run("resolution result", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/dids/"+testDID, r.URL.Path)
			require.Equal(t, "Bearer token", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", didLDJSON)
			fmt.Fprint(w, resolutionResult)
		}))
		defer srv.Close()

		v, err := New(srv.URL+"/dids", "prism", WithResolveAuthToken("token"))
		require.NoError(t, err)

		resolved, err := v.Resolve(context.Background(), *did.MustParse(testDID))
		require.NoError(t, err)
		require.Equal(t, testDID, resolved.ID.String())
		require.Len(t, resolved.VerificationMethods(), 2)
		require.Len(t, resolved.Authentication(), 1)
		require.Equal(t, testDID+"#authentication0", resolved.Authentication()[0].ID.String())
		require.Equal(t, testDID, resolved.Authentication()[0].Controller.String())
		require.Len(t, resolved.AssertionMethod(), 1)
		require.Equal(t, "issuing0", resolved.AssertionMethod()[0].ID.Fragment)

		services := resolved.DIDCommServices()
		require.Len(t, services, 1)
		require.Equal(t, testDID+"#didcomm-1", services[0].ID)
		require.Equal(t, "https://agent.example.com", services[0].ServiceEndpoint.URI)
		require.Len(t, resolved.Services(), 2)
	})

	t.Run("bare document with token provider", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "Bearer provided", r.Header.Get("Authorization"))
			fmt.Fprint(w, doc)
		}))
		defer srv.Close()

		v, err := New(srv.URL, "prism", WithResolveAuthTokenProvider(tokenProvider{}), WithHTTPClient(srv.Client()))
		require.NoError(t, err)

		resolved, err := v.Resolve(context.Background(), *did.MustParse(testDID))
		require.NoError(t, err)
		require.Equal(t, testDID, resolved.ID.String())
	})

	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		v, err := New(srv.URL, "prism")
		require.NoError(t, err)

		_, err = v.Resolve(context.Background(), *did.MustParse(testDID))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		v, err := New(srv.URL, "prism")
		require.NoError(t, err)

		_, err = v.Resolve(context.Background(), *did.MustParse(testDID))
		require.Error(t, err)
		require.Contains(t, err.Error(), "500")
	})
}

func TestParseDocument(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
	}{
		{name: "missing id", doc: `{"verificationMethod": []}`},
		{
			name: "dangling reference",
			doc:  `{"id": "` + testDID + `", "authentication": ["#missing"]}`,
		},
		{
			name: "method without id",
			doc:  `{"id": "` + testDID + `", "verificationMethod": [{"type": "JsonWebKey2020", "publicKeyMultibase": "z"}]}`,
		},
		{
			name: "method without key material",
			doc:  `{"id": "` + testDID + `", "verificationMethod": [{"id": "#k", "type": "JsonWebKey2020"}]}`,
		},
		{
			name: "service without endpoint",
			doc:  `{"id": "` + testDID + `", "service": [{"id": "#s", "type": "DIDCommMessaging"}]}`,
		},
		{
			name: "reference inside verificationMethod",
			doc:  `{"id": "` + testDID + `", "verificationMethod": ["#k"]}`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tc.doc))
			require.ErrorIs(t, err, ErrNullOrMissingRequiredField)
		})
	}

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseDocument([]byte("{"))
		require.Error(t, err)
		require.True(t, strings.Contains(err.Error(), "parse DID document"))
	})
}
