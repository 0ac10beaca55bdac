package server

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/Borislavv/fd-metrics/pkg/config"
	"github.com/Borislavv/fd-metrics/pkg/peer"
	"github.com/Borislavv/fd-metrics/pkg/peer/registry"
	"github.com/Borislavv/fd-metrics/pkg/prometheus/metrics"
	metricsmiddleware "github.com/Borislavv/fd-metrics/pkg/prometheus/metrics/middleware"
	"github.com/Borislavv/fd-metrics/pkg/server/controller"
	"github.com/Borislavv/fd-metrics/pkg/server/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type response struct {
	status int
	body   string
	header map[string]string
}

func newServer(t *testing.T, cfg *config.Exporter) *HTTP {
	t.Helper()

	reg := registry.New(registry.Limits{})
	_, err := reg.Add("nas1.example.com", peer.Application{ID: 16777238, Auth: true})
	require.NoError(t, err)
	require.NoError(t, reg.SetState("nas1.example.com", peer.StateOpen))

	meter := metrics.New()
	renderer := metrics.NewRenderer(metrics.NewCollector(cfg.LockTimeout(), meter), meter)

	return New(
		cfg,
		[]controller.HttpController{
			controller.NewProbeController(),
			controller.NewMetricsController(reg, renderer),
		},
		[]middleware.HttpMiddleware{
			middleware.NewRecoverMiddleware(),
			middleware.NewServerNameMiddleware(Name),
			metricsmiddleware.NewPrometheusMetrics(meter, controller.IndexPath, controller.HealthPath, controller.MetricsPath),
			middleware.NewCompressMiddleware(0),
		},
	)
}

func startServer(t *testing.T) *HTTP {
	t.Helper()

	s := newServer(t, config.New(config.WithAddr("127.0.0.1"), config.WithPort(0)))
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func do(t *testing.T, s *HTTP, method, path string, headers map[string]string) response {
	t.Helper()

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI("http://" + s.Addr().String() + path)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &fasthttp.Client{}
	require.NoError(t, client.DoTimeout(req, resp, 2*time.Second))

	out := response{status: resp.StatusCode(), body: string(resp.Body()), header: map[string]string{}}
	for _, k := range []string{fasthttp.HeaderContentType, fasthttp.HeaderETag, fasthttp.HeaderServer} {
		out.header[k] = string(resp.Header.Peek(k))
	}
	return out
}

func TestHTTP_ProbeRoutes(t *testing.T) {
	s := startServer(t)

	for _, path := range []string{"/", "/health"} {
		resp := do(t, s, fasthttp.MethodGet, path, nil)
		assert.Equal(t, fasthttp.StatusOK, resp.status, path)
		assert.Equal(t, "OK", resp.body, path)
		assert.Equal(t, Name, resp.header[fasthttp.HeaderServer], path)
	}
}

func TestHTTP_MetricsRoute(t *testing.T) {
	s := startServer(t)

	resp := do(t, s, fasthttp.MethodGet, "/metrics", nil)

	assert.Equal(t, fasthttp.StatusOK, resp.status)
	assert.Contains(t, resp.header[fasthttp.HeaderContentType], "text/plain; version=0.0.4")
	assert.Contains(t, resp.body, "# TYPE fd_peer_state gauge\n")
	assert.Contains(t, resp.body, `fd_peer_state{peer="nas1.example.com"} 1`)
	assert.Contains(t, resp.body, `fd_peer_application_support{peer="nas1.example.com",appid="16777238"} 1`)
	require.NotEmpty(t, resp.header[fasthttp.HeaderETag])

	// unchanged registry, same body
	again := do(t, s, fasthttp.MethodGet, "/metrics", map[string]string{
		fasthttp.HeaderIfNoneMatch: resp.header[fasthttp.HeaderETag],
	})
	assert.Equal(t, fasthttp.StatusNotModified, again.status)
	assert.Empty(t, again.body)
}

func TestHTTP_MetricsRouteCompressed(t *testing.T) {
	s := startServer(t)
	plain := do(t, s, fasthttp.MethodGet, "/metrics", nil)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://" + s.Addr().String() + "/metrics")
	req.Header.Set(fasthttp.HeaderAcceptEncoding, "gzip")
	require.NoError(t, (&fasthttp.Client{}).DoTimeout(req, resp, 2*time.Second))

	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.Equal(t, "gzip", string(resp.Header.Peek(fasthttp.HeaderContentEncoding)))
	assert.Equal(t, plain.header[fasthttp.HeaderETag], string(resp.Header.Peek(fasthttp.HeaderETag)))

	body, err := resp.BodyGunzip()
	require.NoError(t, err)
	assert.Equal(t, plain.body, string(body))
}

func TestHTTP_UnknownPathIsNotFound(t *testing.T) {
	s := startServer(t)

	resp := do(t, s, fasthttp.MethodGet, "/bogus", nil)

	assert.Equal(t, fasthttp.StatusNotFound, resp.status)
	assert.NotContains(t, resp.body, "fd_peer_state")
}

func TestHTTP_NonGetIsRejected(t *testing.T) {
	s := startServer(t)

	resp := do(t, s, fasthttp.MethodPost, "/metrics", nil)

	assert.Equal(t, fasthttp.StatusMethodNotAllowed, resp.status)
	assert.NotContains(t, resp.body, "fd_peer_state")
}

func TestHTTP_BindConflictIsReturned(t *testing.T) {
	first := startServer(t)
	port := first.Addr().(*net.TCPAddr).Port

	second := newServer(t, config.New(config.WithAddr("127.0.0.1"), config.WithPort(port)))
	err := second.Start()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBind)
	assert.Contains(t, err.Error(), "127.0.0.1:"+strconv.Itoa(port))
	assert.Equal(t, Stopped, second.State())
	assert.False(t, second.IsAlive(context.Background()))

	// the first listener keeps serving
	assert.Equal(t, fasthttp.StatusOK, do(t, first, fasthttp.MethodGet, "/health", nil).status)
}

func TestHTTP_Lifecycle(t *testing.T) {
	s := newServer(t, config.New(config.WithAddr("127.0.0.1"), config.WithPort(0)))
	assert.Equal(t, Stopped, s.State())
	assert.Nil(t, s.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.ErrorIs(t, s.Stop(ctx), ErrNotRunning)

	require.NoError(t, s.Start())
	assert.Equal(t, Listening, s.State())
	assert.True(t, s.IsAlive(ctx))
	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)

	addr := s.Addr().String()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, Stopped, s.State())
	assert.False(t, s.IsAlive(ctx))

	_, err := net.DialTimeout("tcp4", addr, 100*time.Millisecond)
	assert.Error(t, err)

	// a stopped server can be started again
	require.NoError(t, s.Start())
	assert.Equal(t, fasthttp.StatusOK, do(t, s, fasthttp.MethodGet, "/", nil).status)
	require.NoError(t, s.Stop(ctx))
}

func TestHTTP_StopRightAfterStartClosesListener(t *testing.T) {
	s := newServer(t, config.New(config.WithAddr("127.0.0.1"), config.WithPort(0)))

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Start())
		addr := s.Addr().String()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		require.NoError(t, s.Stop(ctx), "iteration %d", i)
		cancel()

		assert.Equal(t, Stopped, s.State())
		_, err := net.DialTimeout("tcp4", addr, 100*time.Millisecond)
		assert.Error(t, err, "iteration %d: %s still accepts connections", i, addr)
	}
}
