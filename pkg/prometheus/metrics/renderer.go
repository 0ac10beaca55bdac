package metrics

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Borislavv/fd-metrics/pkg/buffer"
	"github.com/Borislavv/fd-metrics/pkg/peer"
	"github.com/rs/zerolog/log"
)

// scrapePool recycles response storage between scrapes, never their content.
var scrapePool = buffer.NewSizedPool()

// ErrTruncated is returned when the response buffer could not grow and the body is incomplete.
var ErrTruncated = errors.New("exposition body truncated")

// Renderer turns a collection into the text exposition format.
type Renderer struct {
	collector   *Collector
	meter       Meter
	selfMetrics bool
	bufOpts     []buffer.TextOption
}

type RendererOption func(r *Renderer)

// WithSelfMetrics appends the exporter's own metrics after the peer and queue families.
func WithSelfMetrics(enabled bool) RendererOption {
	return func(r *Renderer) { r.selfMetrics = enabled }
}

// WithBufferOptions tunes the per-scrape buffer.
func WithBufferOptions(opts ...buffer.TextOption) RendererOption {
	return func(r *Renderer) { r.bufOpts = append(r.bufOpts, opts...) }
}

func NewRenderer(collector *Collector, meter Meter, opts ...RendererOption) *Renderer {
	if meter == nil {
		meter = NopMeter{}
	}
	r := &Renderer{
		collector: collector,
		meter:     meter,
		bufOpts:   []buffer.TextOption{buffer.WithPool(scrapePool)},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderTo renders one full snapshot of reg into w. The body is written even when
// the buffer failed to grow, in which case ErrTruncated is returned as well.
func (r *Renderer) RenderTo(ctx context.Context, reg peer.Registry, w io.Writer) (int64, error) {
	from := time.Now()

	buf := buffer.NewText(r.bufOpts...)
	defer buf.Release()

	r.render(ctx, reg, buf)

	n, err := w.Write(buf.Bytes())
	r.meter.ObserveScrape(from, n)
	if err != nil {
		r.meter.IncScrapeError("write")
		return int64(n), err
	}
	if buf.Failed() {
		log.Warn().Msgf("[metrics] exposition body truncated at %d bytes", n)
		r.meter.IncScrapeError("alloc")
		return int64(n), ErrTruncated
	}
	return int64(n), nil
}

// Render returns a copy of the rendered body.
func (r *Renderer) Render(ctx context.Context, reg peer.Registry) []byte {
	var out bytesWriter
	_, _ = r.RenderTo(ctx, reg, &out)
	return out
}

func (r *Renderer) render(ctx context.Context, reg peer.Registry, buf *buffer.Text) {
	snapshot := r.collector.Collect(ctx, reg)
	for _, f := range snapshot.Families() {
		writeFamily(buf, f)
	}
	if r.selfMetrics {
		r.meter.WritePrometheus(buf)
	}
}

func writeFamily(buf *buffer.Text, f *Family) {
	buf.Appendf("# HELP %s %s\n", f.Name, f.Help)
	buf.Appendf("# TYPE %s %s\n", f.Name, f.Type)
	for _, msg := range f.Errors {
		buf.Appendf("# %s\n", msg)
	}
	for _, s := range f.Series {
		writeSeries(buf, f.Name, s)
	}
}

func writeSeries(buf *buffer.Text, name string, s Series) {
	buf.AppendString(name)
	if len(s.Labels) > 0 {
		buf.AppendString("{")
		for i, l := range s.Labels {
			if i > 0 {
				buf.AppendString(",")
			}
			buf.Appendf("%s=\"%s\"", l.Name, sanitize(l.Value))
		}
		buf.AppendString("}")
	}
	buf.Appendf(" %d\n", s.Value)
}

type bytesWriter []byte

func (b *bytesWriter) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}
