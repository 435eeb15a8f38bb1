// Package auth guards the local HTTP surface: CORS allowlisting and
// per-client rate limiting. The engine itself trusts its caller; this
// is the only gate in front of it.
package auth

import (
	"net"
	"net/http"
	"strings"

	"chatsync/pkg/logger"
	"chatsync/pkg/utils"
)

// SecConfig configures the gateway middleware. An RPS of zero leaves
// rate limiting off.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
}

const defaultBurst = 10

// withDefaults fills the burst for an enabled limiter.
func (c SecConfig) withDefaults() SecConfig {
	if c.RPS > 0 && c.Burst <= 0 {
		c.Burst = defaultBurst
	}
	return c
}

// Middleware wraps next with origin checks and per-IP rate limiting.
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	var pool *limiterPool
	if cfg.RPS > 0 {
		pool = newLimiterPool(cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if !originAllowed(origin, cfg.AllowedOrigins) {
					utils.JSONError(w, http.StatusForbidden, "origin not allowed")
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if pool != nil && !pool.Allow(clientIP(r)) {
				logger.Warn("request_rate_limited", "ip", clientIP(r), "path", r.URL.Path)
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
