/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main runs an edge agent daemon.
package main

import (
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/spf13/cobra"

	"github.com/hyperledger/aries-edge-agent-go/cmd/aries-edge-agentd/resolvecmd"
	"github.com/hyperledger/aries-edge-agent-go/cmd/aries-edge-agentd/startcmd"
)

var logger = log.New("aries-edge-agent/agentd")

func main() {
	rootCmd, err := newRootCmd()
	if err != nil {
		logger.Fatalf(err.Error())
	}

	if err := rootCmd.Execute(); err != nil {
		logger.Fatalf("Failed to run edge agent: %s", err)
	}
}

func newRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use: "aries-edge-agentd",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	startCmd, err := startcmd.Cmd(startcmd.SignalWaiter{}, startcmd.NewViper())
	if err != nil {
		return nil, err
	}

	resolveCmd, err := resolvecmd.Cmd(startcmd.NewViper())
	if err != nil {
		return nil, err
	}

	rootCmd.AddCommand(startCmd, resolveCmd)

	return rootCmd, nil
}
