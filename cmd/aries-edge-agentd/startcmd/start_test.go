/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	spilog "github.com/hyperledger/aries-framework-go/spi/log"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

type mockWaiter struct {
	waited bool
}

func (w *mockWaiter) Wait(context.Context) {
	w.waited = true
}

func TestStartCmdContents(t *testing.T) {
	startCmd, err := Cmd(&mockWaiter{}, NewViper())
	require.NoError(t, err)

	require.Equal(t, "start", startCmd.Use)
	require.Equal(t, "Start an edge agent", startCmd.Short)

	checkFlagPropertiesCorrect(t, startCmd, InboundHostFlagName, InboundHostFlagShorthand, InboundHostFlagUsage, "")
	checkFlagPropertiesCorrect(t, startCmd, MediatorDIDFlagName, MediatorDIDFlagShorthand, MediatorDIDFlagUsage, "")
	checkFlagPropertiesCorrect(t, startCmd, InboundPathFlagName, "", InboundPathFlagUsage, defaultInboundPath)
	checkFlagPropertiesCorrect(t, startCmd, PickupIntervalFlagName, "", PickupIntervalFlagUsage, "5s")
}

func checkFlagPropertiesCorrect(t *testing.T, cmd *cobra.Command, flagName, flagShorthand, flagUsage, value string) {
	t.Helper()

	flag := cmd.Flag(flagName)

	require.NotNil(t, flag)
	require.Equal(t, flagName, flag.Name)
	require.Equal(t, flagShorthand, flag.Shorthand)
	require.Equal(t, flagUsage, flag.Usage)
	require.Equal(t, value, flag.Value.String())
}

func TestGetAgentParameters(t *testing.T) {
	t.Run("flags", func(t *testing.T) {
		v := NewViper()

		startCmd, err := Cmd(&mockWaiter{}, v)
		require.NoError(t, err)

		require.NoError(t, startCmd.ParseFlags([]string{
			"-m", "did:peer:2.Ez6LSmediator", "--pickup-interval", "2s", "--send-retries", "3",
		}))

		parameters, err := getAgentParameters(v)
		require.NoError(t, err)
		require.Equal(t, "did:peer:2.Ez6LSmediator", parameters.mediatorDID)
		require.Equal(t, 2*time.Second, parameters.pickupInterval)
		require.Equal(t, uint64(3), parameters.sendRetries)
		require.Equal(t, defaultPickupLimit, parameters.pickupLimit)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("EDGE_AGENT_INBOUND_HOST", "localhost:9000")
		t.Setenv("EDGE_AGENT_RESOLVER_CACHE_SIZE", "50")

		v := NewViper()

		_, err := Cmd(&mockWaiter{}, v)
		require.NoError(t, err)

		parameters, err := getAgentParameters(v)
		require.NoError(t, err)
		require.Equal(t, "localhost:9000", parameters.inboundHost)
		require.Equal(t, 50, parameters.resolverCacheSize)
	})

	t.Run("config file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "agent.yaml")
		require.NoError(t, os.WriteFile(file, []byte("inbound-host: localhost:9100\npickup-limit: 3\n"), 0o600))

		v := NewViper()

		startCmd, err := Cmd(&mockWaiter{}, v)
		require.NoError(t, err)
		require.NoError(t, startCmd.ParseFlags([]string{"--config", file}))

		parameters, err := getAgentParameters(v)
		require.NoError(t, err)
		require.Equal(t, "localhost:9100", parameters.inboundHost)
		require.Equal(t, 3, parameters.pickupLimit)
	})

	t.Run("error: unreachable agent", func(t *testing.T) {
		v := NewViper()

		_, err := Cmd(&mockWaiter{}, v)
		require.NoError(t, err)

		_, err = getAgentParameters(v)
		require.ErrorContains(t, err, "unreachable")
	})

	t.Run("log level", func(t *testing.T) {
		v := NewViper()

		startCmd, err := Cmd(&mockWaiter{}, v)
		require.NoError(t, err)
		require.NoError(t, startCmd.ParseFlags([]string{"-i", "localhost:9000", "--log-level", "DEBUG"}))

		_, err = getAgentParameters(v)
		require.NoError(t, err)
		require.Equal(t, spilog.DEBUG, log.GetLevel(""))

		log.SetLevel("", spilog.INFO)
	})

	t.Run("error: invalid log level", func(t *testing.T) {
		v := NewViper()

		startCmd, err := Cmd(&mockWaiter{}, v)
		require.NoError(t, err)
		require.NoError(t, startCmd.ParseFlags([]string{"-i", "localhost:9000", "--log-level", "loud"}))

		_, err = getAgentParameters(v)
		require.ErrorContains(t, err, "failed to parse log level")
	})

	t.Run("error: missing config file", func(t *testing.T) {
		v := NewViper()

		startCmd, err := Cmd(&mockWaiter{}, v)
		require.NoError(t, err)
		require.NoError(t, startCmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}))

		_, err = getAgentParameters(v)
		require.ErrorContains(t, err, "read config file")
	})
}

func TestStartAgent(t *testing.T) {
	t.Run("inbound only", func(t *testing.T) {
		w := &mockWaiter{}

		err := startAgent(context.Background(), w, &agentParameters{
			inboundHost:    "127.0.0.1:0",
			inboundPath:    defaultInboundPath,
			pickupInterval: time.Second,
			pickupLimit:    defaultPickupLimit,
		})
		require.NoError(t, err)
		require.True(t, w.waited)
	})

	t.Run("error: invalid mediator DID", func(t *testing.T) {
		err := startAgent(context.Background(), &mockWaiter{}, &agentParameters{
			mediatorDID:    "not-a-did",
			pickupInterval: time.Second,
			pickupLimit:    defaultPickupLimit,
		})
		require.ErrorContains(t, err, MediatorDIDFlagName)
	})

	t.Run("error: invalid pickup limit", func(t *testing.T) {
		err := startAgent(context.Background(), &mockWaiter{}, &agentParameters{
			inboundHost:    "127.0.0.1:0",
			pickupInterval: time.Second,
		})
		require.ErrorContains(t, err, "invalid pickup limit")
	})

	t.Run("error: inbound address in use", func(t *testing.T) {
		err := startAgent(context.Background(), &mockWaiter{}, &agentParameters{
			inboundHost:    "256.0.0.1:1",
			pickupInterval: time.Second,
			pickupLimit:    defaultPickupLimit,
		})
		require.ErrorContains(t, err, "unable to start inbound endpoint")
	})
}
