/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hyperledger/aries-edge-agent-go/pkg/doc/did"
	"github.com/hyperledger/aries-edge-agent-go/pkg/framework/agent"
	"github.com/hyperledger/aries-edge-agent-go/pkg/vdr/httpbinding"
)

const (
	// EnvPrefix prefixes the environment variables bound to the flags.
	EnvPrefix = "EDGE_AGENT"

	// InboundHostFlagName is the flag name for the inbound DIDComm endpoint address.
	InboundHostFlagName = "inbound-host"
	// InboundHostFlagShorthand is the flag shorthand for the inbound host.
	InboundHostFlagShorthand = "i"
	// InboundHostFlagUsage is the usage text for the inbound host.
	InboundHostFlagUsage = "Inbound DIDComm HTTP Host Name:Port. Alternatively, this can be set with the " +
		"following environment variable: EDGE_AGENT_INBOUND_HOST"

	// InboundPathFlagName is the flag name for the inbound endpoint path.
	InboundPathFlagName = "inbound-path"
	// InboundPathFlagUsage is the usage text for the inbound path.
	InboundPathFlagUsage = "Inbound DIDComm HTTP path. Alternatively, this can be set with the " +
		"following environment variable: EDGE_AGENT_INBOUND_PATH"

	// MediatorDIDFlagName is the flag name for the mediator DID.
	MediatorDIDFlagName = "mediator-did"
	// MediatorDIDFlagShorthand is the flag shorthand for the mediator DID.
	MediatorDIDFlagShorthand = "m"
	// MediatorDIDFlagUsage is the usage text for the mediator DID.
	MediatorDIDFlagUsage = "DID of the mediator to register with. Alternatively, this can be set with the " +
		"following environment variable: EDGE_AGENT_MEDIATOR_DID"

	// PickupIntervalFlagName is the flag name for the pickup interval.
	PickupIntervalFlagName = "pickup-interval"
	// PickupIntervalFlagUsage is the usage text for the pickup interval.
	PickupIntervalFlagUsage = "Interval between two mediator pickups. Alternatively, this can be set with the " +
		"following environment variable: EDGE_AGENT_PICKUP_INTERVAL"

	// PickupLimitFlagName is the flag name for the pickup batch size.
	PickupLimitFlagName = "pickup-limit"
	// PickupLimitFlagUsage is the usage text for the pickup batch size.
	PickupLimitFlagUsage = "Maximum number of messages of one pickup. Alternatively, this can be set with the " +
		"following environment variable: EDGE_AGENT_PICKUP_LIMIT"

	// SendRetriesFlagName is the flag name for the send retry count.
	SendRetriesFlagName = "send-retries"
	// SendRetriesFlagUsage is the usage text for the send retry count.
	SendRetriesFlagUsage = "Retries of a send failing in transport. Alternatively, this can be set with the " +
		"following environment variable: EDGE_AGENT_SEND_RETRIES"

	// PrismResolverURLFlagName is the flag name for the HTTP prism resolver.
	PrismResolverURLFlagName = "prism-resolver-url"
	// PrismResolverURLFlagUsage is the usage text for the HTTP prism resolver.
	PrismResolverURLFlagUsage = "Universal resolver endpoint used for published prism DIDs. Alternatively, this " +
		"can be set with the following environment variable: EDGE_AGENT_PRISM_RESOLVER_URL"

	// ResolverCacheSizeFlagName is the flag name for the resolver cache size.
	ResolverCacheSizeFlagName = "resolver-cache-size"
	// ResolverCacheSizeFlagUsage is the usage text for the resolver cache size.
	ResolverCacheSizeFlagUsage = "Number of resolved DID documents kept in memory, 0 disables the cache. " +
		"Alternatively, this can be set with the following environment variable: EDGE_AGENT_RESOLVER_CACHE_SIZE"

	// LogLevelFlagName is the flag name for the log level of all modules.
	LogLevelFlagName = "log-level"
	// LogLevelFlagUsage is the usage text for the log level.
	LogLevelFlagUsage = "Log level (CRITICAL, ERROR, WARNING, INFO, DEBUG). Alternatively, this can be set with " +
		"the following environment variable: EDGE_AGENT_LOG_LEVEL"

	// ConfigFileFlagName is the flag name for an optional configuration file.
	ConfigFileFlagName = "config"
	// ConfigFileFlagUsage is the usage text for the configuration file.
	ConfigFileFlagUsage = "Configuration file (json, yaml or toml) with the same keys as the flags. " +
		"Alternatively, this can be set with the following environment variable: EDGE_AGENT_CONFIG"

	defaultInboundPath    = "/didcomm"
	defaultPickupInterval = 5 * time.Second
	defaultPickupLimit    = 10
	defaultCacheTTL       = 10 * time.Minute
	resolverTimeout       = 10 * time.Second
	shutdownTimeout       = 5 * time.Second
)

var logger = log.New("aries-edge-agent/agentd")

type waiter interface {
	Wait(ctx context.Context)
}

// SignalWaiter waits for SIGINT or SIGTERM.
type SignalWaiter struct{}

// Wait blocks until the process is asked to stop or ctx is done.
func (SignalWaiter) Wait(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
}

type agentParameters struct {
	inboundHost       string
	inboundPath       string
	mediatorDID       string
	pickupInterval    time.Duration
	pickupLimit       int
	sendRetries       uint64
	prismResolverURL  string
	resolverCacheSize int
}

// NewViper returns a viper instance reading EDGE_AGENT_ prefixed environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

// Cmd returns the Cobra start command.
func Cmd(w waiter, v *viper.Viper) (*cobra.Command, error) {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start an edge agent",
		Long:  `Start an edge agent registered with a mediator, serving an optional direct DIDComm endpoint`,

		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := getAgentParameters(v)
			if err != nil {
				return err
			}

			return startAgent(cmd.Context(), w, parameters)
		},
	}

	flags := startCmd.Flags()
	flags.StringP(InboundHostFlagName, InboundHostFlagShorthand, "", InboundHostFlagUsage)
	flags.String(InboundPathFlagName, defaultInboundPath, InboundPathFlagUsage)
	flags.StringP(MediatorDIDFlagName, MediatorDIDFlagShorthand, "", MediatorDIDFlagUsage)
	flags.Duration(PickupIntervalFlagName, defaultPickupInterval, PickupIntervalFlagUsage)
	flags.Int(PickupLimitFlagName, defaultPickupLimit, PickupLimitFlagUsage)
	flags.Uint64(SendRetriesFlagName, 0, SendRetriesFlagUsage)
	flags.String(PrismResolverURLFlagName, "", PrismResolverURLFlagUsage)
	flags.Int(ResolverCacheSizeFlagName, 0, ResolverCacheSizeFlagUsage)
	flags.String(LogLevelFlagName, "", LogLevelFlagUsage)
	flags.String(ConfigFileFlagName, "", ConfigFileFlagUsage)

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind start flags: %w", err)
	}

	return startCmd, nil
}

func getAgentParameters(v *viper.Viper) (*agentParameters, error) {
	if cfg := v.GetString(ConfigFileFlagName); cfg != "" {
		v.SetConfigFile(cfg)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfg, err)
		}
	}

	if err := setLogLevel(v.GetString(LogLevelFlagName)); err != nil {
		return nil, err
	}

	parameters := &agentParameters{
		inboundHost:       v.GetString(InboundHostFlagName),
		inboundPath:       v.GetString(InboundPathFlagName),
		mediatorDID:       v.GetString(MediatorDIDFlagName),
		pickupInterval:    v.GetDuration(PickupIntervalFlagName),
		pickupLimit:       v.GetInt(PickupLimitFlagName),
		sendRetries:       v.GetUint64(SendRetriesFlagName),
		prismResolverURL:  v.GetString(PrismResolverURLFlagName),
		resolverCacheSize: v.GetInt(ResolverCacheSizeFlagName),
	}

	if parameters.mediatorDID == "" && parameters.inboundHost == "" {
		return nil, fmt.Errorf("neither %s nor %s is set, the agent would be unreachable",
			MediatorDIDFlagName, InboundHostFlagName)
	}

	if parameters.pickupInterval <= 0 {
		return nil, fmt.Errorf("invalid %s %s", PickupIntervalFlagName, parameters.pickupInterval)
	}

	return parameters, nil
}

func setLogLevel(logLevel string) error {
	if logLevel == "" {
		return nil
	}

	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level '%s': %w", logLevel, err)
	}

	log.SetLevel("", level)

	logger.Infof("logger level set to %s", logLevel)

	return nil
}

func agentOptions(parameters *agentParameters) ([]agent.Option, error) {
	opts := []agent.Option{
		agent.WithPickupLimit(parameters.pickupLimit),
		agent.WithSendRetry(parameters.sendRetries, time.Second),
	}

	if parameters.mediatorDID != "" {
		mediatorDID, err := did.Parse(parameters.mediatorDID)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", MediatorDIDFlagName, err)
		}

		opts = append(opts, agent.WithMediatorDID(*mediatorDID))
	}

	if parameters.prismResolverURL != "" {
		resolver, err := httpbinding.New(parameters.prismResolverURL, "prism", httpbinding.WithTimeout(resolverTimeout))
		if err != nil {
			return nil, fmt.Errorf("prism resolver: %w", err)
		}

		opts = append(opts, agent.WithResolvers(resolver))
	}

	if parameters.resolverCacheSize > 0 {
		opts = append(opts, agent.WithResolverCache(parameters.resolverCacheSize, defaultCacheTTL))
	}

	return opts, nil
}

func startAgent(ctx context.Context, w waiter, parameters *agentParameters) error {
	if ctx == nil {
		ctx = context.Background()
	}

	opts, err := agentOptions(parameters)
	if err != nil {
		return err
	}

	a, err := agent.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	if err = a.Start(ctx); err != nil {
		return fmt.Errorf("unable to start agent: %w", err)
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if e := a.Stop(stopCtx); e != nil {
			logger.Warnf("stop agent: %s", e)
		}
	}()

	if parameters.inboundHost != "" {
		endpoint, e := a.StartInbound(parameters.inboundHost, parameters.inboundPath)
		if e != nil {
			return fmt.Errorf("unable to start inbound endpoint: %w", e)
		}

		logger.Infof("serving DIDComm at %s", endpoint)
	}

	if a.Mediator() != nil {
		if err = a.StartFetchingMessages(parameters.pickupInterval); err != nil {
			return fmt.Errorf("unable to start pickup: %w", err)
		}

		logger.Infof("picking up messages from %s every %s", a.Mediator().MediatorDID(), parameters.pickupInterval)
	}

	w.Wait(ctx)

	logger.Infof("shutting down")

	return nil
}
