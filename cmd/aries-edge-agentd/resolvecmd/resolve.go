/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package resolvecmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/httpbinding"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/key"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/peer"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/prism"
)

const (
	// PrismResolverURLFlagName is the flag name for the HTTP prism resolver.
	PrismResolverURLFlagName = "prism-resolver-url"
	// PrismResolverURLFlagUsage is the usage text for the HTTP prism resolver.
	PrismResolverURLFlagUsage = "Universal resolver endpoint used for published prism DIDs. Alternatively, this " +
		"can be set with the following environment variable: EDGE_AGENT_PRISM_RESOLVER_URL"

	resolverTimeout = 10 * time.Second
)

// Cmd returns the Cobra resolve command. It prints the DID document of its argument as JSON.
func Cmd(v *viper.Viper) (*cobra.Command, error) {
	resolveCmd := &cobra.Command{
		Use:   "resolve <did>",
		Short: "Resolve a DID",
		Long:  `Resolve a peer, prism or key DID and print its DID document`,
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []vdr.Option{}

			if url := v.GetString(PrismResolverURLFlagName); url != "" {
				resolver, err := httpbinding.New(url, "prism", httpbinding.WithTimeout(resolverTimeout))
				if err != nil {
					return fmt.Errorf("prism resolver: %w", err)
				}

				opts = append(opts, vdr.WithResolver(resolver))
			}

			opts = append(opts,
				vdr.WithResolver(peer.NewResolver()),
				vdr.WithResolver(prism.NewResolver()),
				vdr.WithResolver(key.NewResolver()),
			)

			doc, err := vdr.New(opts...).Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal DID document: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))

			return err
		},
	}

	resolveCmd.Flags().String(PrismResolverURLFlagName, "", PrismResolverURLFlagUsage)

	if err := v.BindPFlags(resolveCmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind resolve flags: %w", err)
	}

	return resolveCmd, nil
}
