/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package httpbinding resolves DIDs through a registrar over HTTP(s).
package httpbinding

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
)

var logger = log.New("aries-edge-agent/vdr/httpbinding")

type authTokenProvider interface {
	AuthToken() (string, error)
}

// VDR resolves DIDs of one method with GET <endpoint>/<did>.
type VDR struct {
	endpointURL       string
	method            string
	client            *http.Client
	resolveAuthToken  string
	authTokenProvider authTokenProvider
}

// Option configures the VDR.
type Option func(opts *VDR)

// New creates a resolver for method backed by endpointURL.
func New(endpointURL, method string, opts ...Option) (*VDR, error) {
	v := &VDR{client: &http.Client{}, method: method}

	for _, opt := range opts {
		opt(v)
	}

	if _, err := url.ParseRequestURI(endpointURL); err != nil {
		return nil, fmt.Errorf("base URL invalid: %w", err)
	}

	v.endpointURL = endpointURL

	return v, nil
}

// Method returns the DID method this resolver serves.
func (v *VDR) Method() string {
	return v.method
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *VDR) {
		opts.client.Timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(opts *VDR) {
		opts.client = httpClient
	}
}

// WithResolveAuthToken adds a bearer token to resolve requests.
func WithResolveAuthToken(authToken string) Option {
	return func(opts *VDR) {
		opts.resolveAuthToken = "Bearer " + authToken
	}
}

// WithResolveAuthTokenProvider gets a bearer token per request.
func WithResolveAuthTokenProvider(p authTokenProvider) Option {
	return func(opts *VDR) {
		opts.authTokenProvider = p
	}
}

func closeResponseBody(respBody io.Closer) {
	if err := respBody.Close(); err != nil {
		logger.Errorf("failed to close response body: %v", err)
	}
}
