package controller

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

const (
	IndexPath  = "/"
	HealthPath = "/health"
)

var (
	okBody         = []byte("OK")
	textPlainBytes = []byte("text/plain; charset=utf-8")
)

// ProbeController answers liveness checks with a constant body.
type ProbeController struct{}

func NewProbeController() *ProbeController {
	return &ProbeController{}
}

func (c *ProbeController) Probe(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.Header.SetContentTypeBytes(textPlainBytes)
	ctx.SetBody(okBody)
}

func (c *ProbeController) AddRoute(router *router.Router) {
	router.GET(IndexPath, c.Probe)
	router.GET(HealthPath, c.Probe)
}
