/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/transport"
)

const (
	maxPayloadSize    = 4 << 20
	readHeaderTimeout = 10 * time.Second
)

// NewInboundHandler will create a new handler to enforce Did-Comm HTTP transport specs
// then routes processing to the mandatory 'msgHandler' argument.
//
// Arguments:
//   - 'msgHandler' is the handler function that will be executed with the inbound envelope.
//     A non empty reply is written back as a return-route response.
func NewInboundHandler(msgHandler transport.InboundMessageHandler) (http.Handler, error) {
	if msgHandler == nil {
		logger.Errorf("Error creating a new inbound handler: message handler function is nil")

		return nil, errors.New("failed to create NewInboundHandler")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processPOSTRequest(w, r, msgHandler)
	}), nil
}

func processPOSTRequest(w http.ResponseWriter, r *http.Request, messageHandler transport.InboundMessageHandler) {
	if valid := validateHTTPMethod(w, r); !valid {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize))
	if err != nil {
		logger.Errorf("Error reading request body: %s - returning Code: %d", err, http.StatusInternalServerError)
		http.Error(w, "Failed to read payload", http.StatusInternalServerError)

		return
	}

	if len(body) == 0 {
		http.Error(w, "Empty payload", http.StatusBadRequest)

		return
	}

	reply, err := messageHandler(r.Context(), body)
	if err != nil {
		logger.Errorf("Incoming msg processing failed: %v", err)
		http.Error(w, "Failed to process payload", http.StatusBadRequest)

		return
	}

	if len(reply) == 0 {
		w.WriteHeader(http.StatusAccepted)

		return
	}

	w.Header().Set("Content-Type", transport.MediaTypeV2EncryptedEnvelope)
	w.WriteHeader(http.StatusOK)

	if _, err = w.Write(reply); err != nil {
		logger.Errorf("Failed to write return-route reply: %v", err)
	}
}

// validateHTTPMethod validate HTTP method and content-type.
func validateHTTPMethod(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "HTTP Method not allowed", http.StatusMethodNotAllowed)

		return false
	}

	ct := r.Header.Get("Content-Type")
	if !transport.IsEncryptedEnvelope(ct) {
		http.Error(w, fmt.Sprintf("Unsupported Content-type \"%s\"", ct), http.StatusUnsupportedMediaType)

		return false
	}

	return true
}

// Inbound is an HTTP endpoint receiving DIDComm envelopes.
type Inbound struct {
	address  string
	path     string
	server   *http.Server
	listener net.Listener
}

// NewInbound creates an inbound endpoint listening on address (host:port) and serving path.
func NewInbound(address, path string, msgHandler transport.InboundMessageHandler) (*Inbound, error) {
	if address == "" {
		return nil, errors.New("http inbound: address is mandatory")
	}

	if path == "" {
		path = "/"
	}

	handler, err := NewInboundHandler(msgHandler)
	if err != nil {
		return nil, fmt.Errorf("http inbound: %w", err)
	}

	router := mux.NewRouter()
	router.Handle(path, handler)

	return &Inbound{
		address: address,
		path:    path,
		server:  &http.Server{Handler: router, ReadHeaderTimeout: readHeaderTimeout},
	}, nil
}

// Start binds the listener and serves in the background.
func (i *Inbound) Start() error {
	listener, err := net.Listen("tcp", i.address)
	if err != nil {
		return fmt.Errorf("http inbound: listen %s: %w", i.address, err)
	}

	i.listener = listener

	go func() {
		if err := i.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("HTTP server start with address [%s] failed, cause:  %s", i.address, err)
		}
	}()

	logger.Infof("http inbound listening on %s%s", listener.Addr().String(), i.path)

	return nil
}

// Endpoint returns the URL of the bound listener. Only valid after Start.
func (i *Inbound) Endpoint() string {
	if i.listener == nil {
		return ""
	}

	return "http://" + i.listener.Addr().String() + i.path
}

// Stop shuts the server down.
func (i *Inbound) Stop(ctx context.Context) error {
	if err := i.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http inbound: shutdown: %w", err)
	}

	return nil
}
