package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/workoutbuddy/sessionkit/internal/config"
	"github.com/workoutbuddy/sessionkit/internal/session"
	"github.com/workoutbuddy/sessionkit/internal/token"
	"github.com/workoutbuddy/sessionkit/internal/transport"
	"github.com/workoutbuddy/sessionkit/pkg/observability"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Manage a Workout Buddy login session from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(
		newLoginCmd(),
		newMeCmd(),
		newStatusCmd(),
		newLogoutCmd(),
		newAgentCmd(),
	)

	return cmd
}

// kit wires the session engine the way the agent and every subcommand use it.
type kit struct {
	cfg            *config.Config
	log            *zap.Logger
	store          token.Store
	state          *session.State
	client         *transport.Client
	init           *session.Initializer
	metricsHandler http.Handler
	meterProvider  *sdkmetric.MeterProvider
	redisStore     *token.RedisStore
}

func newKit(ctx context.Context) (*kit, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := observability.InitLogger(cfg.Env)
	if err != nil {
		return nil, err
	}

	// Telemetry first: meters created below bind to the global provider.
	meterProvider, metricsHandler, err := observability.InitTelemetry("sessionkit")
	if err != nil {
		return nil, err
	}

	k := &kit{
		cfg:            cfg,
		log:            log,
		metricsHandler: metricsHandler,
		meterProvider:  meterProvider,
	}

	switch cfg.Token.Backend {
	case "memory":
		k.store = token.NewMemoryStore()
	case "redis":
		rs, rerr := token.NewRedisStore(ctx, cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key)
		if rerr != nil {
			return nil, rerr
		}
		k.store = rs
		k.redisStore = rs
	default:
		path := cfg.Token.StorePath
		if path == "" {
			path, err = token.DefaultTokenPath()
			if err != nil {
				return nil, err
			}
		}
		k.store = token.NewFileStore(path)
	}

	k.state = session.NewState(ctx, k.store, log)

	k.client, err = transport.NewClient(transport.Options{
		BaseURL:        cfg.API.BaseURL,
		RequestTimeout: cfg.API.RequestTimeout,
		RetryMax:       cfg.API.RetryMax,
		RetryBaseDelay: cfg.API.RetryBaseDelay,
		ClockSkew:      cfg.Token.ClockSkew,
		RefreshLeeway:  cfg.Token.RefreshLeeway,
		RefreshTimeout: cfg.Token.RefreshTimeout,
		OnAuthFailure: func(err error) {
			log.Info("session ended, log in again", zap.Error(err))
		},
	}, k.state, log)
	if err != nil {
		return nil, err
	}

	k.init = session.NewInitializer(k.state, k.store, k.client, cfg.Token.ClockSkew, log)

	return k, nil
}

func (k *kit) close(ctx context.Context) {
	if k.redisStore != nil {
		if err := k.redisStore.Close(); err != nil {
			k.log.Warn("failed to close redis store", zap.Error(err))
		}
	}
	_ = observability.Shutdown(ctx, k.meterProvider, k.log)
}
