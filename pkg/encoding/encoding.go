package encoding

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	abrotli "github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// Encoding is a Content-Encoding token.
type Encoding string

const (
	Identity Encoding = ""
	Gzip     Encoding = "gzip"
	Brotli   Encoding = "br"
)

const (
	gzipLevel     = gzip.BestSpeed
	brotliQuality = 1
)

var ErrUnsupported = errors.New("unsupported content encoding")

var (
	gzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(io.Discard, gzipLevel)
			return w
		},
	}
	brotliPool = sync.Pool{
		// quality is fixed at creation time and persists across Reset
		New: func() any { return abrotli.NewWriterLevel(io.Discard, brotliQuality) },
	}
	bufferPool = sync.Pool{
		New: func() any { return new(bytes.Buffer) },
	}
)

// Negotiate picks the encoding for an Accept-Encoding header value. Brotli wins
// over gzip, tokens with q=0 are refused.
func Negotiate(accept []byte) Encoding {
	var gz, br bool
	for len(accept) > 0 {
		var token []byte
		if i := bytes.IndexByte(accept, ','); i >= 0 {
			token, accept = accept[:i], accept[i+1:]
		} else {
			token, accept = accept, nil
		}

		name, params, _ := bytes.Cut(bytes.TrimSpace(token), []byte(";"))
		if refused(params) {
			continue
		}
		switch string(bytes.ToLower(bytes.TrimSpace(name))) {
		case string(Brotli):
			br = true
		case string(Gzip):
			gz = true
		}
	}

	switch {
	case br:
		return Brotli
	case gz:
		return Gzip
	default:
		return Identity
	}
}

func refused(params []byte) bool {
	for _, param := range bytes.Split(params, []byte(";")) {
		k, v, ok := bytes.Cut(bytes.TrimSpace(param), []byte("="))
		if ok && string(bytes.TrimSpace(k)) == "q" {
			q, err := strconv.ParseFloat(string(bytes.TrimSpace(v)), 64)
			return err == nil && q == 0
		}
	}
	return false
}

// EncodeToWriter compresses p into w using a pooled writer.
func EncodeToWriter(enc Encoding, w io.Writer, p []byte) error {
	switch enc {
	case Gzip:
		gw := gzipPool.Get().(*gzip.Writer)
		defer gzipPool.Put(gw)
		gw.Reset(w)
		// deterministic header: equal bodies compress to equal bytes
		gw.Header = gzip.Header{ModTime: time.Unix(0, 0)}
		if _, err := gw.Write(p); err != nil {
			_ = gw.Close()
			return err
		}
		return gw.Close()
	case Brotli:
		bw := brotliPool.Get().(*abrotli.Writer)
		defer brotliPool.Put(bw)
		bw.Reset(w)
		if _, err := bw.Write(p); err != nil {
			_ = bw.Close()
			return err
		}
		return bw.Close()
	default:
		return ErrUnsupported
	}
}

// AcquireBuffer returns a pooled *bytes.Buffer with length 0.
func AcquireBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// ReleaseBuffer returns the buffer to the pool.
func ReleaseBuffer(buf *bytes.Buffer) {
	bufferPool.Put(buf)
}
