package exporter

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Borislavv/fd-metrics/pkg/config"
	"github.com/Borislavv/fd-metrics/pkg/k8s/probe/liveness"
	"github.com/Borislavv/fd-metrics/pkg/mock"
	"github.com/Borislavv/fd-metrics/pkg/peer/registry"
	"github.com/Borislavv/fd-metrics/pkg/server"
	"github.com/Borislavv/fd-metrics/pkg/shutdown"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func scrape(t *testing.T, app *App, path string) (int, []byte) {
	t.Helper()
	status, body, err := fasthttp.GetTimeout(nil, "http://"+app.Addr().String()+path, 2*time.Second)
	require.NoError(t, err)
	return status, body
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(registry.Limits{PeerEvents: 32, PeerSending: 32})
	require.NoError(t, mock.GeneratePeers(reg, 5))
	return reg
}

func TestApp_ServesScrapesUnderMutation(t *testing.T) {
	reg := newRegistry(t)
	probe := liveness.NewProbe(10 * time.Millisecond)

	app := NewApp(config.New(config.WithPort(0), config.WithSelfMetrics(true)), reg, probe)
	require.NoError(t, app.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, app.Stop(ctx))
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mock.NewSimulator(reg, 500, 7).Run(ctx)

	assert.Eventually(t, probe.IsAlive, time.Second, 5*time.Millisecond)

	for i := 0; i < 10; i++ {
		status, body := scrape(t, app, "/metrics")
		require.Equal(t, fasthttp.StatusOK, status)

		var parser expfmt.TextParser
		mfs, err := parser.TextToMetricFamilies(bytes.NewReader(body))
		require.NoError(t, err, string(body))
		assert.Len(t, mfs["fd_queue_current"].GetMetric(), 3)
		assert.Contains(t, mfs, "fd_exporter_scrapes_total")
	}

	status, body := scrape(t, app, "/health")
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Equal(t, "OK", string(body))
}

func TestApp_BindFailureIsReturned(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	app := NewApp(config.New(config.WithPort(port)), newRegistry(t), nil)

	err = app.Start()
	assert.ErrorIs(t, err, server.ErrBind)
	assert.False(t, app.IsAlive(context.Background()))
	assert.Nil(t, app.Addr())
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	app := NewApp(config.New(config.WithPort(0)), newRegistry(t), nil)
	require.NoError(t, app.Start())

	gc := shutdown.NewGraceful(ctx, cancel)
	gc.SetGracefulTimeout(time.Second)
	gc.Add(1)
	go app.Run(ctx, gc)

	cancel()
	require.NoError(t, gc.ListenCancelAndAwait())
	assert.False(t, app.IsAlive(context.Background()))
}

type switchProber struct {
	alive   atomic.Bool
	watched atomic.Int32
	closed  atomic.Bool
}

func (p *switchProber) Watch(services ...liveness.Service) { p.watched.Add(int32(len(services))) }
func (p *switchProber) IsAlive() bool                      { return p.alive.Load() }
func (p *switchProber) Close()                             { p.closed.Store(true) }

type doneGracefuller struct {
	done chan struct{}
}

func (g *doneGracefuller) Add(int) {}
func (g *doneGracefuller) Done()   { close(g.done) }

func TestApp_RunStopsWhenLivenessFails(t *testing.T) {
	prober := &switchProber{}
	prober.alive.Store(true)

	app := NewApp(config.New(config.WithPort(0)), newRegistry(t), prober)
	require.NoError(t, app.Start())
	assert.Equal(t, int32(1), prober.watched.Load())
	addr := app.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gc := &doneGracefuller{done: make(chan struct{})}
	go app.Run(ctx, gc)

	prober.alive.Store(false)

	select {
	case <-gc.done:
	case <-time.After(3 * time.Second):
		t.Fatal("exporter kept running after its liveness check failed")
	}

	assert.True(t, prober.closed.Load())
	assert.False(t, app.IsAlive(context.Background()))
	_, err := net.DialTimeout("tcp4", addr, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestApp_StartsOnDefaultPortWhenConfiguredPortIsOutOfRange(t *testing.T) {
	ln, err := net.Listen("tcp4", net.JoinHostPort(config.DefaultAddr, "9090"))
	if err != nil {
		t.Skipf("default port is busy: %v", err)
	}
	require.NoError(t, ln.Close())

	path := filepath.Join(t.TempDir(), "fd_metrics.conf")
	require.NoError(t, os.WriteFile(path, []byte("port = 70000\n"), 0o600))

	cfg := config.Load(path)
	require.Equal(t, config.DefaultPort, cfg.Port())

	app := NewApp(cfg, newRegistry(t), nil)
	require.NoError(t, app.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, app.Stop(ctx))
	}()

	assert.Equal(t, "127.0.0.1:9090", app.Addr().String())
	status, _ := scrape(t, app, "/health")
	assert.Equal(t, fasthttp.StatusOK, status)
}
