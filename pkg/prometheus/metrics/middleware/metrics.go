package middleware

import (
	"github.com/Borislavv/fd-metrics/pkg/prometheus/metrics"
	gotils "github.com/savsgio/gotils/strconv"
	"github.com/valyala/fasthttp"
)

const otherPath = "other"

// PrometheusMetrics counts served requests by path and status code.
// Paths outside the known set are folded into "other" to keep label cardinality bounded.
type PrometheusMetrics struct {
	metrics metrics.Meter
	known   map[string]struct{}
}

func NewPrometheusMetrics(meter metrics.Meter, knownPaths ...string) *PrometheusMetrics {
	known := make(map[string]struct{}, len(knownPaths))
	for _, p := range knownPaths {
		known[p] = struct{}{}
	}
	return &PrometheusMetrics{metrics: meter, known: known}
}

func (m *PrometheusMetrics) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		next(ctx)

		path := otherPath
		if _, ok := m.known[gotils.B2S(ctx.Path())]; ok {
			path = string(ctx.Path())
		}
		m.metrics.IncHttpRequest(path, ctx.Response.StatusCode())
	}
}
