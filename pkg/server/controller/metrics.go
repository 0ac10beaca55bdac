package controller

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/Borislavv/fd-metrics/pkg/peer"
	"github.com/Borislavv/fd-metrics/pkg/prometheus/metrics"
	"github.com/fasthttp/router"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
	"github.com/zeebo/xxh3"
)

const MetricsPath = "/metrics"

var (
	exposition = []byte("text/plain; version=0.0.4; charset=utf-8")
	hdrETag    = []byte("ETag")
	weakPrefix = []byte("W/")
)

// MetricsController renders a fresh snapshot of the registry on every scrape.
type MetricsController struct {
	registry peer.Registry
	renderer *metrics.Renderer
}

func NewMetricsController(registry peer.Registry, renderer *metrics.Renderer) *MetricsController {
	return &MetricsController{registry: registry, renderer: renderer}
}

func (c *MetricsController) Metrics(ctx *fasthttp.RequestCtx) {
	if _, err := c.renderer.RenderTo(ctx, c.registry, ctx); err != nil && !errors.Is(err, metrics.ErrTruncated) {
		log.Error().Err(err).Msg("[metrics] failed to write exposition body")
		ctx.Error(fasthttp.StatusMessage(fasthttp.StatusInternalServerError), fasthttp.StatusInternalServerError)
		return
	}

	// weak: identity and compressed bodies share the tag
	etag := make([]byte, 0, 20)
	etag = append(etag, 'W', '/', '"')
	etag = strconv.AppendUint(etag, xxh3.Hash(ctx.Response.Body()), 16)
	etag = append(etag, '"')

	ctx.Response.Header.SetBytesKV(hdrETag, etag)
	ctx.Response.Header.SetContentTypeBytes(exposition)

	if match := ctx.Request.Header.Peek(fasthttp.HeaderIfNoneMatch); len(match) > 0 && weakEqual(match, etag) {
		ctx.Response.ResetBody()
		ctx.SetStatusCode(fasthttp.StatusNotModified)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
}

func weakEqual(a, b []byte) bool {
	return bytes.Equal(bytes.TrimPrefix(a, weakPrefix), bytes.TrimPrefix(b, weakPrefix))
}

func (c *MetricsController) AddRoute(router *router.Router) {
	router.GET(MetricsPath, c.Metrics)
}
