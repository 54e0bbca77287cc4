// Package api provides the REST and WebSocket formula evaluation service.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sxyu/cantus-chem/core/cache"
	"github.com/sxyu/cantus-chem/core/chemdata"
	"github.com/sxyu/cantus-chem/core/resolve"
	"github.com/sxyu/cantus-chem/internal/logging"
	"github.com/sxyu/cantus-chem/internal/server"
)

// Server evaluates formulas over HTTP. Every server carries its own
// result cache so concurrent instances stay independent.
type Server struct {
	cfg       Config
	registry  *chemdata.Registry
	resolver  *cache.CachedResolver
	startTime time.Time
	sessions  *sessionTracker
}

// New builds a Server from cfg. A nil Registry selects the embedded
// default tables.
func New(cfg Config) (*Server, error) {
	reg := cfg.Registry
	if reg == nil {
		var err error
		if reg, err = chemdata.Default(); err != nil {
			return nil, err
		}
	}

	var results *cache.ResultCache
	if cfg.CacheSize > 0 || cfg.CacheBytes > 0 {
		cacheCfg := cache.DefaultConfig()
		if cfg.CacheSize > 0 {
			cacheCfg.MaxSize = cfg.CacheSize
		}
		maxBytes := cfg.CacheBytes
		if maxBytes <= 0 {
			maxBytes = 8 << 20
		}
		results = cache.NewResultCache(cacheCfg, maxBytes)
	} else {
		results = cache.NewDefaultResultCache()
	}

	return &Server{
		cfg:       cfg,
		registry:  reg,
		resolver:  cache.NewCachedResolver(resolve.New(reg), results),
		startTime: time.Now(),
		sessions:  newSessionTracker(),
	}, nil
}

// Handler returns the full middleware-wrapped handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/v1/resolve", s.handleResolve)
	mux.HandleFunc("/v1/elements/", s.handleElement)
	mux.HandleFunc("/v1/ions/", s.handleIon)
	mux.HandleFunc("/v1/strength/", s.handleStrength)
	mux.HandleFunc("/v1/live", s.handleLive)

	var handler http.Handler = server.SecurityHeadersMiddleware(mux)

	if s.cfg.RateLimitRequests > 0 {
		limiterCfg := RateLimiterConfig{
			RequestsPerMinute: s.cfg.RateLimitRequests,
			BurstSize:         s.cfg.RateLimitBurst,
		}
		if limiterCfg.BurstSize == 0 {
			limiterCfg.BurstSize = 10
		}
		limiter := NewRateLimiter(limiterCfg)
		handler = limiter.Middleware(handler)
		logging.Info("rate limiting enabled",
			"requests_per_minute", limiterCfg.RequestsPerMinute,
			"burst_size", limiterCfg.BurstSize)
	}

	handler = server.CORSMiddleware(server.CORSConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
	}, handler)

	return logging.CombinedMiddleware(handler)
}

// Start runs the server until the listener fails.
func (s *Server) Start() error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = ":8793"
	}

	logging.ServerStartup("rest_api", "http", portOf(addr),
		"websocket_protocol", "ws",
		"tables", s.registry.Name(),
		"fingerprint", s.registry.Fingerprint())

	return http.ListenAndServe(addr, s.Handler())
}

// Resolver exposes the shared cached resolver, mainly for tests.
func (s *Server) Resolver() *cache.CachedResolver {
	return s.resolver
}

func portOf(addr string) int {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		if port, err := strconv.Atoi(addr[i+1:]); err == nil {
			return port
		}
	}
	return 0
}
