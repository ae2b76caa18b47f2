/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package agent wires the edge agent together: storage, keys, DID resolution, the DIDComm
// codec, the outbound dispatcher and the mediator client. An Agent is the explicit context
// handed to every caller; nothing is kept in package globals.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-edge-agent-go/pkg/crypto"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/dispatcher/outbound"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/packager"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/protocol/mediator"
	"github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/transport"
	transporthttp "github.com/hyperledger/aries-edge-agent-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/kms"
	"github.com/hyperledger/aries-edge-agent-go/pkg/store"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/api"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/key"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/peer"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/prism"
)

var logger = log.New("aries-edge-agent/agent")

const defaultPickupLimit = 10

var (
	// ErrNotRunning is returned by operations that need a started agent.
	ErrNotRunning = errors.New("agent is not running")
	// ErrAlreadyRunning is returned when starting a running agent.
	ErrAlreadyRunning = errors.New("agent is already running")
)

// State of the agent lifecycle.
type State int

// Agent states. A new agent is initialized; a stopped agent may be started again.
const (
	StateInitialized State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}

	return "unknown"
}

// Agent is an edge agent instance.
type Agent struct {
	storeProvider     storage.Provider
	store             *store.Store
	kms               *kms.LocalKMS
	generator         crypto.KeyPairGenerator
	resolvers         []api.Resolver
	cacheSize         int
	cacheTTL          time.Duration
	registry          *vdr.Registry
	packager          *packager.Packager
	outboundTransport transport.OutboundTransport
	outbound          *outbound.Dispatcher
	mediatorDID       *did.DID
	mediator          *mediator.Client
	sendRetries       uint64
	retryInterval     time.Duration
	pickupLimit       int

	stateMu   sync.Mutex
	state     State
	scheduler *gocron.Scheduler
	inbound   *transporthttp.Inbound

	connMu      sync.RWMutex
	connections map[string]store.DIDPair

	handledMu sync.Mutex
	handled   map[string]struct{}
}

// Option configures the agent.
type Option func(opts *Agent) error

// WithStorageProvider persists the agent state in p instead of memory.
func WithStorageProvider(p storage.Provider) Option {
	return func(opts *Agent) error {
		opts.storeProvider = p

		return nil
	}
}

// WithResolvers appends method resolvers to the chain, before the built-in peer, prism and key ones.
func WithResolvers(resolvers ...api.Resolver) Option {
	return func(opts *Agent) error {
		opts.resolvers = append(opts.resolvers, resolvers...)

		return nil
	}
}

// WithResolverCache caches resolved documents.
func WithResolverCache(size int, ttl time.Duration) Option {
	return func(opts *Agent) error {
		if size < 0 {
			return fmt.Errorf("invalid resolver cache size %d", size)
		}

		opts.cacheSize = size
		opts.cacheTTL = ttl

		return nil
	}
}

// WithOutboundTransport overrides the HTTP outbound transport.
func WithOutboundTransport(t transport.OutboundTransport) Option {
	return func(opts *Agent) error {
		opts.outboundTransport = t

		return nil
	}
}

// WithMediatorDID sets the mediator the agent registers with.
func WithMediatorDID(d did.DID) Option {
	return func(opts *Agent) error {
		opts.mediatorDID = &d

		return nil
	}
}

// WithSendRetry retries transport failures of SendMessage up to maxRetries times.
func WithSendRetry(maxRetries uint64, interval time.Duration) Option {
	return func(opts *Agent) error {
		opts.sendRetries = maxRetries
		opts.retryInterval = interval

		return nil
	}
}

// WithPickupLimit sets how many messages one pickup asks for.
func WithPickupLimit(limit int) Option {
	return func(opts *Agent) error {
		if limit <= 0 {
			return fmt.Errorf("invalid pickup limit %d", limit)
		}

		opts.pickupLimit = limit

		return nil
	}
}

// WithKeyPairGenerator overrides the key generator.
func WithKeyPairGenerator(g crypto.KeyPairGenerator) Option {
	return func(opts *Agent) error {
		opts.generator = g

		return nil
	}
}

// New creates an agent. The agent must be started before messaging.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{
		pickupLimit:   defaultPickupLimit,
		retryInterval: time.Second,
		connections:   make(map[string]store.DIDPair),
		handled:       make(map[string]struct{}),
	}

	for _, option := range opts {
		if err := option(a); err != nil {
			return nil, fmt.Errorf("error in option passed to New: %w", err)
		}
	}

	if err := defAgentOpts(a); err != nil {
		return nil, fmt.Errorf("default option initialization failed: %w", err)
	}

	if err := a.loadConnections(); err != nil {
		return nil, err
	}

	return a, nil
}

func defAgentOpts(a *Agent) error {
	if a.storeProvider == nil {
		a.storeProvider = mem.NewProvider()
	}

	s, err := store.New(a.storeProvider)
	if err != nil {
		return err
	}

	a.store = s
	a.kms = kms.New(s)

	if a.generator == nil {
		a.generator = crypto.NewGenerator()
	}

	registryOpts := make([]vdr.Option, 0, len(a.resolvers)+4)
	for _, r := range a.resolvers {
		registryOpts = append(registryOpts, vdr.WithResolver(r))
	}

	registryOpts = append(registryOpts,
		vdr.WithResolver(peer.NewResolver()),
		vdr.WithResolver(prism.NewResolver()),
		vdr.WithResolver(key.NewResolver()),
	)

	if a.cacheSize > 0 {
		registryOpts = append(registryOpts, vdr.WithCache(a.cacheSize, a.cacheTTL))
	}

	a.registry = vdr.New(registryOpts...)
	a.packager = packager.New(a.registry, a.kms)

	if a.outboundTransport == nil {
		a.outboundTransport = transporthttp.NewOutbound()
	}

	a.outbound = outbound.NewOutbound(a.packager, a.registry, a.outboundTransport)

	if a.mediatorDID != nil {
		a.mediator = mediator.NewClient(*a.mediatorDID, a.outbound, a.packager, a.store)
	}

	return nil
}

// Store returns the agent storage.
func (a *Agent) Store() *store.Store {
	return a.store
}

// KMS returns the agent secrets.
func (a *Agent) KMS() *kms.LocalKMS {
	return a.kms
}

// VDRegistry returns the resolver chain.
func (a *Agent) VDRegistry() *vdr.Registry {
	return a.registry
}

// Packager returns the DIDComm codec.
func (a *Agent) Packager() *packager.Packager {
	return a.packager
}

// Mediator returns the mediator client, nil without a mediator DID.
func (a *Agent) Mediator() *mediator.Client {
	return a.mediator
}

// State returns the lifecycle state.
func (a *Agent) State() State {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	return a.state
}

func (a *Agent) setState(s State) {
	a.stateMu.Lock()
	a.state = s
	a.stateMu.Unlock()
}

// Start boots the registered mediator, negotiating mediation when none is stored.
func (a *Agent) Start(ctx context.Context) error {
	a.stateMu.Lock()
	previous := a.state

	if previous != StateInitialized && previous != StateStopped {
		a.stateMu.Unlock()

		return ErrAlreadyRunning
	}

	a.state = StateStarting
	a.stateMu.Unlock()

	if err := a.startMediation(ctx); err != nil {
		a.setState(previous)

		return fmt.Errorf("start agent: %w", err)
	}

	a.setState(StateRunning)

	logger.Infof("agent started")

	return nil
}

func (a *Agent) startMediation(ctx context.Context) error {
	if a.mediator == nil {
		return nil
	}

	booted, err := a.mediator.BootRegisteredMediator(ctx)
	if err != nil {
		return err
	}

	if booted != nil {
		return nil
	}

	host, err := a.CreateNewPeerDID(ctx, nil, false)
	if err != nil {
		return fmt.Errorf("create mediation host DID: %w", err)
	}

	_, err = a.mediator.AchieveMediation(ctx, *host)

	return err
}

// Stop stops background pickup and the inbound endpoint.
func (a *Agent) Stop(ctx context.Context) error {
	a.stateMu.Lock()
	if a.state != StateRunning {
		a.stateMu.Unlock()

		return ErrNotRunning
	}

	a.state = StateStopping
	scheduler := a.scheduler
	a.scheduler = nil
	inbound := a.inbound
	a.inbound = nil
	a.stateMu.Unlock()

	if scheduler != nil {
		scheduler.Stop()
	}

	var err error

	if inbound != nil {
		err = inbound.Stop(ctx)
	}

	a.setState(StateStopped)

	logger.Infof("agent stopped")

	return err
}

func (a *Agent) checkRunning() error {
	if a.State() != StateRunning {
		return ErrNotRunning
	}

	return nil
}
