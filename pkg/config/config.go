package config

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	DefaultAddr        = "127.0.0.1"
	DefaultPort        = 9090
	DefaultLockTimeout = time.Second
	DefaultLogLevel    = zerolog.InfoLevel
	DefaultMockRate    = 100.0

	EnvPrefix = "FD_METRICS"
)

// Keys recognized in the configuration file. Keys are case-insensitive.
const (
	KeyPort        = "port"
	KeyAddr        = "addr"
	KeyAddress     = "address"
	KeyLockTimeout = "lock_timeout"
	KeySelfMetrics = "self_metrics"
	KeyLogLevel    = "log_level"
	KeyMockFixture = "mock_fixture"
	KeyMockRate    = "mock_rate"
)

// Exporter is read-only once built; share it by pointer.
type Exporter struct {
	addr        string
	port        int
	lockTimeout time.Duration
	selfMetrics bool
	logLevel    zerolog.Level
	mockFixture string
	mockRate    float64
}

type Option func(*Exporter)

func WithAddr(addr string) Option {
	return func(c *Exporter) { c.addr = addr }
}

func WithPort(port int) Option {
	return func(c *Exporter) { c.port = port }
}

func WithLockTimeout(timeout time.Duration) Option {
	return func(c *Exporter) { c.lockTimeout = timeout }
}

func WithSelfMetrics(enabled bool) Option {
	return func(c *Exporter) { c.selfMetrics = enabled }
}

func WithLogLevel(level zerolog.Level) Option {
	return func(c *Exporter) { c.logLevel = level }
}

// WithMock makes the standalone binary populate its registry from fixture
// (or generated peers when empty) and mutate it at rate operations per second.
func WithMock(fixture string, rate float64) Option {
	return func(c *Exporter) {
		c.mockFixture = fixture
		c.mockRate = rate
	}
}

func Default() *Exporter {
	return New()
}

// New builds a configuration from defaults and opts. Options are applied as is,
// validation only happens for values read by Load.
func New(opts ...Option) *Exporter {
	c := &Exporter{
		addr:        DefaultAddr,
		port:        DefaultPort,
		lockTimeout: DefaultLockTimeout,
		logLevel:    DefaultLogLevel,
		mockRate:    DefaultMockRate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads a "key = value" file (blank lines and '#' comments are ignored)
// with FD_METRICS_* environment overrides on top. It never fails: a missing
// or unreadable file yields the defaults, a malformed line is logged and
// skipped, and every invalid value is logged and replaced by its default.
func Load(path string) *Exporter {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		if err := readFile(v, path); err != nil {
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) {
				log.Debug().Err(err).Msgf("[config] config file %s is not readable, using defaults", path)
			} else {
				log.Warn().Err(err).Msgf("[config] config file %s was not applied, using defaults", path)
			}
		}
	}

	// the alias must be registered after reading, so that an "address" key
	// found in the file is moved under "addr"
	v.RegisterAlias(KeyAddress, KeyAddr)

	return fromViper(v)
}

// readFile merges every well-formed line of the file into v.
func readFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	values := make(map[string]any)
	for i, line := range strings.Split(string(data), "\n") {
		env, err := gotenv.StrictParse(strings.NewReader(line))
		if err != nil {
			log.Warn().Err(err).Msgf("[config] %s:%d skipped malformed line %q", path, i+1, strings.TrimSpace(line))
			continue
		}
		for key, value := range env {
			values[key] = value
		}
	}

	return v.MergeConfigMap(values)
}

func fromViper(v *viper.Viper) *Exporter {
	c := Default()

	if v.IsSet(KeyPort) {
		raw := v.Get(KeyPort)
		if port, err := cast.ToIntE(raw); err != nil || port < 1 || port > 65535 {
			log.Warn().Msgf("[config] invalid port %q (must be 1-65535), keeping %d", cast.ToString(raw), c.port)
		} else {
			c.port = port
		}
	}

	if v.IsSet(KeyAddr) {
		raw := strings.TrimSpace(v.GetString(KeyAddr))
		if ip := net.ParseIP(raw); ip == nil || ip.To4() == nil || strings.Contains(raw, ":") {
			log.Warn().Msgf("[config] invalid IPv4 address %q, falling back to %s", raw, DefaultAddr)
		} else {
			c.addr = ip.To4().String()
		}
	}

	if v.IsSet(KeyLockTimeout) {
		raw := v.Get(KeyLockTimeout)
		if timeout, err := cast.ToDurationE(raw); err != nil || timeout <= 0 {
			log.Warn().Msgf("[config] invalid lock timeout %q, keeping %s", cast.ToString(raw), c.lockTimeout)
		} else {
			c.lockTimeout = timeout
		}
	}

	if v.IsSet(KeySelfMetrics) {
		raw := v.Get(KeySelfMetrics)
		if enabled, err := cast.ToBoolE(raw); err != nil {
			log.Warn().Msgf("[config] invalid self_metrics flag %q, keeping %t", cast.ToString(raw), c.selfMetrics)
		} else {
			c.selfMetrics = enabled
		}
	}

	if v.IsSet(KeyLogLevel) {
		raw := v.GetString(KeyLogLevel)
		if level, err := zerolog.ParseLevel(strings.ToLower(raw)); err != nil || level == zerolog.NoLevel {
			log.Warn().Msgf("[config] invalid log level %q, keeping %s", raw, c.logLevel)
		} else {
			c.logLevel = level
		}
	}

	c.mockFixture = v.GetString(KeyMockFixture)

	if v.IsSet(KeyMockRate) {
		raw := v.Get(KeyMockRate)
		if rate, err := cast.ToFloat64E(raw); err != nil || rate < 0 {
			log.Warn().Msgf("[config] invalid mock rate %q, keeping %v", cast.ToString(raw), c.mockRate)
		} else {
			c.mockRate = rate
		}
	}

	return c
}

func (c *Exporter) Addr() string {
	return c.addr
}

func (c *Exporter) Port() int {
	return c.port
}

// ListenAddr is the host:port pair passed to the listener.
func (c *Exporter) ListenAddr() string {
	return net.JoinHostPort(c.addr, strconv.Itoa(c.port))
}

func (c *Exporter) LockTimeout() time.Duration {
	return c.lockTimeout
}

func (c *Exporter) SelfMetrics() bool {
	return c.selfMetrics
}

func (c *Exporter) LogLevel() zerolog.Level {
	return c.logLevel
}

func (c *Exporter) MockFixture() string {
	return c.mockFixture
}

// MockRate is in operations per second, zero means unthrottled.
func (c *Exporter) MockRate() float64 {
	return c.mockRate
}
