/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package resolvecmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/peer"
)

func TestResolveCmd(t *testing.T) {
	t.Run("peer DID", func(t *testing.T) {
		gen := crypto.NewGenerator()

		agreement, err := gen.GenerateKeyPair(crypto.X25519)
		require.NoError(t, err)

		authentication, err := gen.GenerateKeyPair(crypto.Ed25519)
		require.NoError(t, err)

		d, err := peer.Create([]crypto.PublicKey{agreement.Public}, []crypto.PublicKey{authentication.Public}, nil)
		require.NoError(t, err)

		cmd, err := Cmd(viper.New())
		require.NoError(t, err)

		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{d.String()})

		require.NoError(t, cmd.ExecuteContext(context.Background()))

		doc := map[string]interface{}{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
		require.Equal(t, d.String(), doc["id"])
	})

	t.Run("error: prism resolver failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		cmd, err := Cmd(viper.New())
		require.NoError(t, err)

		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"did:prism:abc", "--" + PrismResolverURLFlagName, server.URL})

		require.Error(t, cmd.ExecuteContext(context.Background()))
	})

	t.Run("error: missing argument", func(t *testing.T) {
		cmd, err := Cmd(viper.New())
		require.NoError(t, err)

		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{})

		require.Error(t, cmd.ExecuteContext(context.Background()))
	})
}
