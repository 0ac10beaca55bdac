package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Borislavv/fd-metrics/pkg/config"
	"github.com/Borislavv/fd-metrics/pkg/server/controller"
	"github.com/Borislavv/fd-metrics/pkg/server/middleware"
	"github.com/fasthttp/router"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const Name = "fd-metrics"

// HTTP is the scrape listener. Start binds synchronously so that a bind failure
// reaches the caller, serving happens in the background until Stop.
type HTTP struct {
	cfg     *config.Exporter
	handler fasthttp.RequestHandler

	state atomic.Int32

	mu     sync.Mutex
	server *fasthttp.Server
	ln     net.Listener
	done   chan struct{}
}

func New(
	cfg *config.Exporter,
	controllers []controller.HttpController,
	middlewares []middleware.HttpMiddleware,
) *HTTP {
	s := &HTTP{cfg: cfg}
	s.handler = s.mergeMiddlewares(s.buildRouter(controllers).Handler, middlewares)
	return s
}

// Start binds cfg.ListenAddr() over IPv4 and starts serving. A failed bind is
// returned as is and leaves the server Stopped, no retry is attempted.
func (s *HTTP) Start() error {
	if !casState(&s.state, Stopped, Starting) {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, s.State())
	}

	addr := s.cfg.ListenAddr()
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		s.state.Store(int32(Stopped))
		log.Error().Err(err).Msgf("[server] %s failed to bind %s", Name, addr)
		return fmt.Errorf("%w %s: %w", ErrBind, addr, err)
	}

	server := s.initServer()
	done := make(chan struct{})

	s.mu.Lock()
	s.server, s.ln, s.done = server, ln, done
	s.mu.Unlock()

	s.state.Store(int32(Listening))
	go s.serve(server, ln, done)

	return nil
}

func (s *HTTP) serve(server *fasthttp.Server, ln net.Listener, done chan struct{}) {
	defer close(done)

	log.Info().Msgf("[server] %s was started on %s", Name, ln.Addr())
	defer log.Info().Msgf("[server] %s was stopped on %s", Name, ln.Addr())

	if err := server.Serve(ln); err != nil {
		log.Error().Err(err).Msgf("[server] %s failed to serve %s", Name, ln.Addr())
	}
	// serving ended without Stop
	casState(&s.state, Listening, Stopped)
}

// Stop closes the listener and waits for in-flight handlers, bounded by ctx.
func (s *HTTP) Stop(ctx context.Context) error {
	if !casState(&s.state, Listening, Stopping) {
		return fmt.Errorf("%w: %s", ErrNotRunning, s.State())
	}
	defer s.state.Store(int32(Stopped))

	s.mu.Lock()
	server, ln, done := s.server, s.ln, s.done
	s.mu.Unlock()

	// Serve may not have registered ln yet, in which case the shutdown below has nothing to close.
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Warn().Err(err).Msgf("[server] %s failed to close listener %s", Name, ln.Addr())
	}

	if err := server.ShutdownWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Msgf("[server] %s shutdown failed: %s", Name, err.Error())
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *HTTP) State() State {
	return State(s.state.Load())
}

// Addr is the bound address, nil unless the server is listening.
func (s *HTTP) Addr() net.Addr {
	if s.State() != Listening {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln.Addr()
}

// IsAlive implements the liveness probe service.
func (s *HTTP) IsAlive(_ context.Context) bool {
	return s.State() == Listening
}

func (s *HTTP) buildRouter(controllers []controller.HttpController) *router.Router {
	r := router.New()
	for _, contr := range controllers {
		contr.AddRoute(r)
	}
	return r
}

func (s *HTTP) mergeMiddlewares(
	handler fasthttp.RequestHandler,
	middlewares []middleware.HttpMiddleware,
) fasthttp.RequestHandler {
	// last middlewares must be applied at the end
	// in this case we must start the cycle from the end of slice
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i].Middleware(handler)
	}
	return handler
}

func (s *HTTP) initServer() *fasthttp.Server {
	return &fasthttp.Server{
		Name:                          Name,
		Handler:                       s.handler,
		ErrorHandler:                  errorHandler,
		GetOnly:                       true,
		ReduceMemoryUsage:             true,
		DisablePreParseMultipartForm:  true,
		DisableHeaderNamesNormalizing: true,
		CloseOnShutdown:               true,
		ReadTimeout:                   5 * time.Second,
		WriteTimeout:                  10 * time.Second,
		IdleTimeout:                   60 * time.Second,
		MaxRequestBodySize:            4 * 1024,
	}
}

// errorHandler answers requests fasthttp rejected before routing.
func errorHandler(ctx *fasthttp.RequestCtx, err error) {
	if errors.Is(err, fasthttp.ErrGetOnly) {
		ctx.Error(fasthttp.StatusMessage(fasthttp.StatusMethodNotAllowed), fasthttp.StatusMethodNotAllowed)
		return
	}
	ctx.Error(fasthttp.StatusMessage(fasthttp.StatusBadRequest), fasthttp.StatusBadRequest)
}
