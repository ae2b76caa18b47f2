/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	rootCmd, err := newRootCmd()
	require.NoError(t, err)

	names := []string{}
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	require.ElementsMatch(t, []string{"start", "resolve"}, names)
}
