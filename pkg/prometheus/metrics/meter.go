package metrics

import (
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/Borislavv/fd-metrics/pkg/prometheus/metrics/keyword"
	"github.com/VictoriaMetrics/metrics"
)

// Meter records the exporter's own behaviour.
type Meter interface {
	IncScrapeError(reason string)
	ObserveScrape(from time.Time, bytes int)
	IncHttpRequest(path string, status int)
	WritePrometheus(w io.Writer)
}

// Metrics keeps self-metrics in a dedicated set so they never leak into the
// process-wide default set.
type Metrics struct {
	set      *metrics.Set
	scrapes  *metrics.Counter
	duration *metrics.Histogram
	bytes    *metrics.Gauge
}

func New() *Metrics {
	set := metrics.NewSet()
	return &Metrics{
		set:      set,
		scrapes:  set.NewCounter(keyword.Scrapes),
		duration: set.NewHistogram(keyword.ScrapeDuration),
		bytes:    set.NewGauge(keyword.ResponseBytes, nil),
	}
}

var statuses [600]string

func init() {
	for i := 100; i <= 599; i++ {
		statuses[i] = strconv.Itoa(i)
	}
}

func (m *Metrics) IncScrapeError(reason string) {
	buf := getBuf()
	defer putBuf(buf)

	*buf = append(*buf, keyword.ScrapeErrors...)
	*buf = append(*buf, `{`+keyword.LabelReason+`="`...)
	*buf = append(*buf, sanitize(reason)...)
	*buf = append(*buf, `"}`...)

	m.set.GetOrCreateCounter(string(*buf)).Inc()
}

func (m *Metrics) ObserveScrape(from time.Time, bytes int) {
	m.scrapes.Inc()
	m.duration.UpdateDuration(from)
	m.bytes.Set(float64(bytes))
}

// IncHttpRequest counts a served request. Callers must pass a bounded set of paths.
func (m *Metrics) IncHttpRequest(path string, status int) {
	if status < 100 || status >= len(statuses) {
		status = 599
	}

	buf := getBuf()
	defer putBuf(buf)

	*buf = append(*buf, keyword.HttpRequests...)
	*buf = append(*buf, `{`+keyword.LabelPath+`="`...)
	*buf = append(*buf, sanitize(path)...)
	*buf = append(*buf, `",`+keyword.LabelStatus+`="`...)
	*buf = append(*buf, statuses[status]...)
	*buf = append(*buf, `"}`...)

	m.set.GetOrCreateCounter(string(*buf)).Inc()
}

func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

// NopMeter discards everything.
type NopMeter struct{}

func (NopMeter) IncScrapeError(string)        {}
func (NopMeter) ObserveScrape(time.Time, int) {}
func (NopMeter) IncHttpRequest(string, int)   {}
func (NopMeter) WritePrometheus(io.Writer)    {}

// ===== buf []byte pooling =====

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 256)
		return &b
	},
}

func getBuf() *[]byte {
	return bufPool.Get().(*[]byte)
}

func putBuf(b *[]byte) {
	*b = (*b)[:0]
	bufPool.Put(b)
}
