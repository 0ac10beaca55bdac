package middleware

import (
	"github.com/Borislavv/fd-metrics/pkg/encoding"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const defaultMinCompressSize = 1024

// CompressMiddleware encodes successful bodies with the best encoding the client accepts.
type CompressMiddleware struct {
	minSize int
}

func NewCompressMiddleware(minSize int) CompressMiddleware {
	if minSize <= 0 {
		minSize = defaultMinCompressSize
	}
	return CompressMiddleware{minSize: minSize}
}

func (m CompressMiddleware) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		next(ctx)

		if ctx.Response.StatusCode() != fasthttp.StatusOK || len(ctx.Response.Body()) < m.minSize {
			return
		}
		if len(ctx.Response.Header.Peek(fasthttp.HeaderContentEncoding)) > 0 {
			return
		}

		ctx.Response.Header.AddBytesV(fasthttp.HeaderVary, []byte(fasthttp.HeaderAcceptEncoding))

		enc := encoding.Negotiate(ctx.Request.Header.Peek(fasthttp.HeaderAcceptEncoding))
		if enc == encoding.Identity {
			return
		}

		buf := encoding.AcquireBuffer()
		defer encoding.ReleaseBuffer(buf)

		if err := encoding.EncodeToWriter(enc, buf, ctx.Response.Body()); err != nil {
			log.Warn().Err(err).Msgf("[server] %s encoding failed, sending identity body", enc)
			return
		}
		ctx.Response.SetBody(buf.Bytes())
		ctx.Response.Header.Set(fasthttp.HeaderContentEncoding, string(enc))
	}
}
