/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vdr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/api"
)

var logger = log.New("aries-edge-agent/vdr")

// Option is a registry option.
type Option func(r *Registry)

// Registry is an ordered chain of method resolvers. For a DID, the resolvers of its method
// are tried in order and the first success wins.
type Registry struct {
	mu        sync.RWMutex
	resolvers []api.Resolver
	cache     gcache.Cache
}

// New returns a registry.
func New(opts ...Option) *Registry {
	r := &Registry{}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// WithResolver appends a method resolver to the chain.
func WithResolver(resolver api.Resolver) Option {
	return func(r *Registry) {
		r.resolvers = append(r.resolvers, resolver)
	}
}

// WithCache keeps up to size resolved documents for ttl. A zero ttl never expires entries.
func WithCache(size int, ttl time.Duration) Option {
	return func(r *Registry) {
		builder := gcache.New(size).LRU()
		if ttl > 0 {
			builder = builder.Expiration(ttl)
		}

		r.cache = builder.Build()
	}
}

// AddResolver appends a resolver. It is safe to call while resolutions are in flight.
func (r *Registry) AddResolver(resolver api.Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolvers = append(r.resolvers, resolver)
}

// Resolvers returns a snapshot of the chain.
func (r *Registry) Resolvers() []api.Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]api.Resolver(nil), r.resolvers...)
}

// Resolve resolves didStr with the resolvers of its method. A resolver error moves on to the
// next resolver, except integrity failures and context cancellation which end the chain.
func (r *Registry) Resolve(ctx context.Context, didStr string) (*did.Doc, error) {
	d, err := did.Parse(didStr)
	if err != nil {
		return nil, err
	}

	key := d.String()

	if r.cache != nil {
		if cached, cacheErr := r.cache.Get(key); cacheErr == nil {
			if doc, ok := cached.(*did.Doc); ok {
				return doc.Copy(), nil
			}
		}
	}

	for _, resolver := range r.Resolvers() {
		if resolver.Method() != d.Method {
			continue
		}

		doc, err := resolver.Resolve(ctx, *d)
		if err == nil {
			r.remember(key, doc)

			return doc, nil
		}

		if errors.Is(err, api.ErrIntegrity) || ctx.Err() != nil {
			return nil, err
		}

		logger.Debugf("resolver %T could not resolve %s: %s", resolver, key, err)
	}

	return nil, fmt.Errorf("%w: %s", api.ErrNotPossibleToResolveDID, key)
}

func (r *Registry) remember(key string, doc *did.Doc) {
	if r.cache == nil {
		return
	}

	if err := r.cache.Set(key, doc.Copy()); err != nil {
		logger.Warnf("cache did document %s: %s", key, err)
	}
}
