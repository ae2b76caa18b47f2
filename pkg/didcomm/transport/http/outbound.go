/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/transport"
)

var logger = log.New("aries-edge-agent/transport/http")

// ErrTransport is wrapped by every outbound failure.
var ErrTransport = errors.New("transport failure")

// StatusError is returned for a non success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received non success POST HTTP status from agent at [%s]: %d %s",
		e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap returns ErrTransport.
func (e *StatusError) Unwrap() error {
	return ErrTransport
}

// outboundCommHTTPOpts holds options for the HTTP transport implementation of CommTransport
// it has an http.Client instance.
type outboundCommHTTPOpts struct {
	client *http.Client
}

// OutboundHTTPOpt is an outbound HTTP transport option.
type OutboundHTTPOpt func(opts *outboundCommHTTPOpts)

// WithOutboundHTTPClient option is for creating an Outbound HTTP transport using an http.Client instance.
func WithOutboundHTTPClient(client *http.Client) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client = client
	}
}

// WithOutboundTimeout option is for creating an Outbound HTTP transport using a client timeout value.
func WithOutboundTimeout(timeout time.Duration) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client.Timeout = timeout
	}
}

// WithOutboundTLSConfig option is for creating an Outbound HTTP transport using a tls.Config instance.
func WithOutboundTLSConfig(tlsConfig *tls.Config) OutboundHTTPOpt {
	return func(opts *outboundCommHTTPOpts) {
		opts.client = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		}
	}
}

// OutboundHTTPClient represents the Outbound HTTP transport instance.
type OutboundHTTPClient struct {
	client *http.Client
}

var _ transport.OutboundTransport = (*OutboundHTTPClient)(nil)

// NewOutbound creates a new instance of Outbound HTTP transport to Post requests to other Agents.
func NewOutbound(opts ...OutboundHTTPOpt) *OutboundHTTPClient {
	clOpts := &outboundCommHTTPOpts{client: &http.Client{}}

	for _, opt := range opts {
		opt(clOpts)
	}

	if clOpts.client == nil {
		clOpts.client = &http.Client{}
	}

	return &OutboundHTTPClient{client: clOpts.client}
}

// Send posts an encrypted envelope to url. A 2xx status is success and the response body is
// returned; anything else fails with a *StatusError. The call is not retried.
func (cs *OutboundHTTPClient) Send(ctx context.Context, data []byte, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrTransport, err)
	}

	req.Header.Set("Content-Type", transport.MediaTypeV2EncryptedEnvelope)
	req.Header.Set("Accept", transport.MediaTypeV2EncryptedEnvelope)

	resp, err := cs.client.Do(req)
	if err != nil {
		logger.Errorf("HTTP Transport - Error posting did envelope to agent at [%s]: %v", url, err)

		return nil, fmt.Errorf("%w: post %s: %w", ErrTransport, url, err)
	}

	defer func() {
		if e := resp.Body.Close(); e != nil {
			logger.Errorf("HTTP Transport - Error closing response body: %v", e)
		}
	}()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: respData}
	}

	return respData, nil
}
