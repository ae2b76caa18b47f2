/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package edgeagent is a DIDComm v2 edge agent SDK for wallets that are only intermittently
// online.
//
// Packages for end developer usage
//
// pkg/framework/agent: The edge agent. It creates peer DIDs routed through a mediator, sends
// and picks up DIDComm messages, keeps the DID pairings and runs the credential protocols.
//
// pkg/vdr: The resolver chain for peer, prism and key DIDs.
//
// pkg/didcomm/protocol/issuecredential: The issue-credential 3.0 state machine.
//
// Basic workflow
//
//  1. Create an agent with agent.New, passing the mediator DID.
//  2. Call Start to register with the mediator.
//  3. Create a peer DID with CreateNewPeerDID and share it, or accept an out-of-band invitation.
//  4. Send with SendMessage and receive with FetchMessages or StartFetchingMessages.
//  5. Call Stop to release resources.
package edgeagent
