package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/Borislavv/fd-metrics/internal/exporter"
	"github.com/Borislavv/fd-metrics/pkg/config"
	"github.com/Borislavv/fd-metrics/pkg/k8s/probe/liveness"
	"github.com/Borislavv/fd-metrics/pkg/mock"
	"github.com/Borislavv/fd-metrics/pkg/peer/registry"
	"github.com/Borislavv/fd-metrics/pkg/shutdown"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/automaxprocs/maxprocs"
)

const (
	configPath     = "fd_metrics.conf"
	configPathEnv  = "FD_METRICS_CONFIG"
	generatedPeers = 16
	probeTimeout   = 5 * time.Second
)

// defaultLimits are used for generated peers, fixtures carry their own.
var defaultLimits = registry.Limits{
	LocalDelivery: 1024,
	TotalReceived: 1024,
	TotalSending:  1024,
	PeerEvents:    64,
	PeerSending:   128,
}

// setMaxProcs automatically sets the optimal GOMAXPROCS value (CPU parallelism)
// based on the available CPUs and cgroup/docker CPU quotas (uses automaxprocs).
func setMaxProcs() {
	if _, err := maxprocs.Set(); err != nil {
		log.Warn().Err(err).Msg("[main] setting up GOMAXPROCS value failed")
		return
	}
	log.Info().Msgf("[main] optimized GOMAXPROCS=%d was set up", runtime.GOMAXPROCS(0))
}

// loadCfg reads the optional .env file and then the exporter config file.
func loadCfg() *config.Exporter {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("[config] failed to load .env file")
	}

	path := configPath
	if p := os.Getenv(configPathEnv); p != "" {
		path = p
	}

	cfg := config.Load(path)
	log.Info().Msgf("[config] using '%s' (listen=%s, lock_timeout=%s)", path, cfg.ListenAddr(), cfg.LockTimeout())
	return cfg
}

// buildRegistry stands in for the host peer table: a fixture if configured, generated peers otherwise.
func buildRegistry(cfg *config.Exporter) (*registry.Registry, error) {
	if path := cfg.MockFixture(); path != "" {
		fixture, err := mock.LoadFixture(path)
		if err != nil {
			return nil, err
		}
		log.Info().Msgf("[main] %d peers loaded from fixture '%s'", len(fixture.Peers), path)
		return fixture.NewRegistry()
	}

	reg := registry.New(defaultLimits)
	if err := mock.GeneratePeers(reg, generatedPeers); err != nil {
		return nil, err
	}
	log.Info().Msgf("[main] %d peers generated", generatedPeers)
	return reg, nil
}

// Main entrypoint: runs the exporter over an in-memory peer registry.
func main() {
	// Create a root context for graceful shutdown and cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setMaxProcs()

	cfg := loadCfg()
	zerolog.SetGlobalLevel(cfg.LogLevel())

	reg, err := buildRegistry(cfg)
	if err != nil {
		log.Err(err).Msg("[main] failed to build peer registry")
		return
	}

	// Setup graceful shutdown handler (SIGTERM, SIGINT, etc).
	gracefulShutdown := shutdown.NewGraceful(ctx, cancel)
	gracefulShutdown.SetGracefulTimeout(time.Second * 30)

	probe := liveness.NewProbe(probeTimeout)

	app := exporter.NewApp(cfg, reg, probe)
	if err = app.Start(); err != nil {
		log.Err(err).Msg("[main] failed to start exporter")
		return
	}

	gracefulShutdown.Add(1)
	go app.Run(ctx, gracefulShutdown)

	// Host activity: keeps the registry changing between scrapes.
	gracefulShutdown.Add(1)
	go func() {
		defer gracefulShutdown.Done()
		mock.NewSimulator(reg, cfg.MockRate(), uint64(time.Now().UnixNano())).Run(ctx)
	}()

	// Listen for OS signals or context cancellation and wait for graceful shutdown.
	if err = gracefulShutdown.ListenCancelAndAwait(); err != nil {
		log.Err(err).Msg("[main] failed to gracefully shut down service")
	}
}
