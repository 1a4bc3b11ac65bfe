package ratelimit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"weatherdesk/internal/auth"
	"weatherdesk/internal/logger"
	"weatherdesk/internal/metrics"
)

const (
	// UnlimitedKey is shared by privileged callers and is never counted
	UnlimitedKey = "unlimited"

	rejectionMessage = "too many requests, try again later"
)

type Config struct {
	MaxRequests    int
	Window         time.Duration
	PrivilegedUser string
}

// Decision is the outcome of one rate check
type Decision struct {
	Key       string
	Allowed   bool
	Count     int64
	Remaining int
}

// Limiter is a fixed-window request cap per caller
type Limiter struct {
	store  CounterStore
	config Config
}

func New(store CounterStore, config Config) *Limiter {
	return &Limiter{store: store, config: config}
}

// KeyFor derives the counter key for a caller. Authenticated callers are
// keyed by user id, anonymous ones by remote address.
func (l *Limiter) KeyFor(identity *auth.Identity, remoteAddr string) string {
	if identity != nil {
		if l.config.PrivilegedUser != "" && identity.Username == l.config.PrivilegedUser {
			return UnlimitedKey
		}
		return "user:" + strconv.FormatInt(identity.ID, 10)
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return "ip:" + host
}

// Allow counts one hit for key. Counter store failures fail open.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	if key == UnlimitedKey {
		return Decision{Key: key, Allowed: true, Remaining: -1}
	}

	count, err := l.store.Incr(ctx, key, l.config.Window)
	if err != nil {
		logger.FromContext(ctx).Warn("rate limiter store unavailable, allowing request",
			zap.String("key", key),
			zap.Error(err),
		)
		return Decision{Key: key, Allowed: true, Remaining: -1}
	}

	remaining := l.config.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Key:       key,
		Allowed:   count <= int64(l.config.MaxRequests),
		Count:     count,
		Remaining: remaining,
	}
}

// Middleware must run after authentication so the identity is in the context
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.KeyFor(auth.FromContext(r.Context()), r.RemoteAddr)
		decision := l.Allow(r.Context(), key)

		if decision.Remaining >= 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.config.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		}

		if !decision.Allowed {
			metrics.RateLimitRejectionsTotal.Inc()
			logger.FromContext(r.Context()).Info("rate limit exceeded",
				zap.String("key", key),
				zap.Int64("count", decision.Count),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": rejectionMessage})
			return
		}

		next.ServeHTTP(w, r)
	})
}
