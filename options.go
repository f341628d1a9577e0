package hsess

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Option configures a Connection at construction time. There is no file- or
// environment-based configuration layer: every tunable is set here, in the
// idiom the example corpus uses for constructor-time configuration.
type Option func(*config)

type config struct {
	handler     Handler
	mapCache    MapCache
	objectCache ObjectCache
	registerer  prometheus.Registerer
	logger      *logrus.Logger
	clock       Clock
	clientPver  int
}

func defaultConfig() *config {
	return &config{
		handler:     NopHandler{},
		mapCache:    NopMapCache{},
		objectCache: NopObjectCache{},
		registerer:  nil,
		logger:      logrus.StandardLogger(),
		clock:       newSystemClock(),
		clientPver:  protocolVersion,
	}
}

// WithHandler registers the reliable-message dispatcher. Until set, reliable
// deliveries are discarded by NopHandler.
func WithHandler(h Handler) Option {
	return func(c *config) { c.handler = h }
}

// WithMapCache registers the collaborator that consumes MAPDATA payloads.
func WithMapCache(m MapCache) Option {
	return func(c *config) { c.mapCache = m }
}

// WithObjectCache registers the collaborator that consumes OBJDATA records.
func WithObjectCache(o ObjectCache) Option {
	return func(c *config) { c.objectCache = o }
}

// WithRegisterer attaches a prometheus.Registerer that per-connection
// metrics are registered against. A nil (the default) disables metrics.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(c *config) { c.registerer = r }
}

// WithLogger overrides the logrus.Logger backing the connection's log
// entries. Defaults to logrus.StandardLogger().
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithClock overrides the monotonic clock source. Intended for tests.
func WithClock(clk Clock) Option {
	return func(c *config) { c.clock = clk }
}

// WithClientVersion overrides the client protocol version carried in the
// SESS connect request. Defaults to protocolVersion.
func WithClientVersion(v int) Option {
	return func(c *config) { c.clientPver = v }
}
