package main

import (
	"context"
	"time"

	"github.com/gabapcia/ledgerwatch/internal/correlator"
	"github.com/gabapcia/ledgerwatch/internal/handlers/cli"
	"github.com/gabapcia/ledgerwatch/internal/health"
	"github.com/gabapcia/ledgerwatch/internal/infra/node"
	redisstorage "github.com/gabapcia/ledgerwatch/internal/infra/storage/redis"
	"github.com/gabapcia/ledgerwatch/internal/ledgerdata"
	"github.com/gabapcia/ledgerwatch/internal/pkg/logger"
	"github.com/gabapcia/ledgerwatch/internal/pkg/telemetry"
	transporthttp "github.com/gabapcia/ledgerwatch/internal/pkg/transport/http"
	"github.com/gabapcia/ledgerwatch/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/ledgerwatch/internal/submitter"
	"github.com/gabapcia/ledgerwatch/internal/tracker"

	"github.com/kelseyhightower/envconfig"
)

// appConfig is the environment-driven configuration, prefixed LEDGERWATCH.
type appConfig struct {
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	TelemetryEnabled bool   `envconfig:"TELEMETRY_ENABLED" default:"false"`

	NodeEndpoint   string        `envconfig:"NODE_ENDPOINT" required:"true"`
	HealthEndpoint string        `envconfig:"HEALTH_ENDPOINT"`
	HTTPTimeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`

	SubmitMaxAttempts    uint          `envconfig:"SUBMIT_MAX_ATTEMPTS" default:"3"`
	SubmitAttemptTimeout time.Duration `envconfig:"SUBMIT_ATTEMPT_TIMEOUT" default:"30s"`
	SubmitBackoffBase    time.Duration `envconfig:"SUBMIT_BACKOFF_BASE" default:"1s"`
	SubmitBackoffStep    time.Duration `envconfig:"SUBMIT_BACKOFF_STEP" default:"1s"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisUsername string `envconfig:"REDIS_USERNAME"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

func main() {
	ctx := context.Background()

	var cfg appConfig
	if err := envconfig.Process("ledgerwatch", &cfg); err != nil {
		logger.Fatal(ctx, "failed to load configuration", "error", err)
	}

	if cfg.TelemetryEnabled {
		shutdown, err := telemetry.Init(ctx, "ledgerwatch")
		if err != nil {
			logger.Fatal(ctx, "failed to initialize telemetry", "error", err)
		}
		defer shutdown(ctx)
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel)); err != nil {
		logger.Fatal(ctx, "failed to initialize logger", "error", err)
	}
	defer logger.Sync()

	httpClient := transporthttp.NewClient(transporthttp.WithTimeout(cfg.HTTPTimeout))

	nodeClient := node.NewClient(jsonrpc.NewClient(httpClient.StandardClient(), cfg.NodeEndpoint))

	statusTracker := tracker.New(nodeClient)
	engine := submitter.New(nodeClient, statusTracker,
		submitter.WithMaxAttempts(cfg.SubmitMaxAttempts),
		submitter.WithAttemptTimeout(cfg.SubmitAttemptTimeout),
		submitter.WithBackoff(cfg.SubmitBackoffBase, cfg.SubmitBackoffStep),
	)
	eventCorrelator := correlator.New(nodeClient)

	ledgerDataOpts := []ledgerdata.Option{}
	if cfg.RedisAddr != "" {
		journal, err := redisstorage.NewClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal(ctx, "failed to connect to redis", "error", err)
		}
		defer journal.Close()

		ledgerDataOpts = append(ledgerDataOpts, ledgerdata.WithOutcomeJournal(journal))
	}

	ledgerData := ledgerdata.New(nodeClient, engine, eventCorrelator, ledgerdata.DefaultSchemas(), ledgerDataOpts...)

	healthService := health.New(httpClient, cfg.HealthEndpoint)

	if err := cli.Run(ctx, ledgerData, healthService); err != nil {
		logger.Fatal(ctx, "ledgerwatch exited with error", "error", err)
	}
}
