package exporter

import (
	"context"
	"net"
	"time"

	"github.com/Borislavv/fd-metrics/pkg/config"
	"github.com/Borislavv/fd-metrics/pkg/k8s/probe/liveness"
	"github.com/Borislavv/fd-metrics/pkg/peer"
	"github.com/Borislavv/fd-metrics/pkg/prometheus/metrics"
	metricsmiddleware "github.com/Borislavv/fd-metrics/pkg/prometheus/metrics/middleware"
	"github.com/Borislavv/fd-metrics/pkg/server"
	"github.com/Borislavv/fd-metrics/pkg/server/controller"
	"github.com/Borislavv/fd-metrics/pkg/server/middleware"
	"github.com/Borislavv/fd-metrics/pkg/shutdown"
	"github.com/Borislavv/fd-metrics/pkg/utils"
	"github.com/rs/zerolog/log"
)

const (
	stopTimeout   = 10 * time.Second
	livenessCheck = time.Second
)

// App is the exporter attached to a host registry: Start on host init, Stop on host fini.
type App struct {
	cfg    *config.Exporter
	probe  liveness.Prober
	server *server.HTTP
}

// NewApp wires the collector, renderer and scrape server over reg.
func NewApp(cfg *config.Exporter, reg peer.Registry, probe liveness.Prober) *App {
	meter := metrics.New()
	renderer := metrics.NewRenderer(
		metrics.NewCollector(cfg.LockTimeout(), meter),
		meter,
		metrics.WithSelfMetrics(cfg.SelfMetrics()),
	)

	controllers := []controller.HttpController{
		controller.NewProbeController(),                // GET / and /health
		controller.NewMetricsController(reg, renderer), // GET /metrics
	}

	// executed in the order of declaration
	middlewares := []middleware.HttpMiddleware{
		middleware.NewRecoverMiddleware(),
		middleware.NewServerNameMiddleware(server.Name),
		metricsmiddleware.NewPrometheusMetrics(meter, controller.IndexPath, controller.HealthPath, controller.MetricsPath),
		middleware.NewCompressMiddleware(0),
	}

	return &App{
		cfg:    cfg,
		probe:  probe,
		server: server.New(cfg, controllers, middlewares),
	}
}

// Start binds the listener. A bind failure is returned to the host, which keeps running without metrics.
func (a *App) Start() error {
	log.Info().Msgf("[app] starting exporter on %s", a.cfg.ListenAddr())

	if err := a.server.Start(); err != nil {
		log.Error().Err(err).Msg("[app] exporter failed to start")
		return err
	}
	if a.probe != nil {
		a.probe.Watch(a)
	}

	log.Info().Msg("[app] exporter has been started")
	return nil
}

// Stop closes the listener and waits for in-flight scrapes, bounded by ctx.
func (a *App) Stop(ctx context.Context) error {
	log.Info().Msg("[app] stopping exporter")

	if a.probe != nil {
		a.probe.Close()
	}
	if err := a.server.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("[app] exporter stop failed")
		return err
	}

	log.Info().Msg("[app] exporter has been stopped")
	return nil
}

// Run serves until ctx is done or the liveness probe reports the exporter dead,
// then stops it and reports completion to gc. Start must have succeeded.
// A dead exporter is stopped on its own, the host keeps running without metrics.
func (a *App) Run(ctx context.Context, gc shutdown.Gracefuller) {
	defer gc.Done()

	a.awaitDeath(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = a.Stop(stopCtx)
}

func (a *App) awaitDeath(ctx context.Context) {
	if a.probe == nil {
		<-ctx.Done()
		return
	}
	for range utils.NewTicker(ctx, livenessCheck) {
		if !a.probe.IsAlive() {
			log.Error().Msg("[app] liveness probe failed, exporter is going down")
			return
		}
	}
}

// Addr is the bound listener address, nil until started.
func (a *App) Addr() net.Addr {
	return a.server.Addr()
}

// IsAlive is called by liveness probes to check app health.
func (a *App) IsAlive(ctx context.Context) bool {
	if !a.server.IsAlive(ctx) {
		log.Info().Msg("[app] http server has gone away")
		return false
	}
	return true
}
