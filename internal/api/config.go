package api

import "github.com/sxyu/cantus-chem/core/chemdata"

// Config holds server configuration.
type Config struct {
	Addr              string              // Listen address, e.g. ":8793"
	Registry          *chemdata.Registry  // Reference tables; nil selects the embedded defaults
	CacheSize         int                 // Result cache entry cap (0 = default)
	CacheBytes        int64               // Result cache byte cap (0 = default)
	RateLimitRequests int                 // Requests per minute per client (0 = disabled)
	RateLimitBurst    int                 // Burst size for rate limiting
	AllowedOrigins    []string            // CORS and WebSocket origins (empty = allow all)
}
