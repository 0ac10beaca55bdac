package middleware

import (
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

// RecoverMiddleware keeps a panicking handler from taking the process down.
type RecoverMiddleware struct{}

func NewRecoverMiddleware() RecoverMiddleware {
	return RecoverMiddleware{}
}

func (RecoverMiddleware) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Msgf("[server] recovered from panic on %s: %v", ctx.Path(), err)
				ctx.ResetBody()
				ctx.Error(fasthttp.StatusMessage(fasthttp.StatusInternalServerError), fasthttp.StatusInternalServerError)
			}
		}()
		next(ctx)
	}
}
