package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/altsignal/tickersent/internal/clients"
)

type RateLimiter interface {
	// Allow reports whether the caller may proceed with another request.
	Allow(ctx context.Context, caller string) (bool, error)
}

// ValkeyRateLimiter counts requests per caller in a fixed hourly window
// backed by Valkey.
type ValkeyRateLimiter struct {
	Limit int64
}

func NewValkeyRateLimiter(limit int64) *ValkeyRateLimiter {
	if limit <= 0 {
		limit = 10
	}
	return &ValkeyRateLimiter{Limit: limit}
}

func (l *ValkeyRateLimiter) Allow(ctx context.Context, caller string) (bool, error) {
	count, err := clients.GetValkeyClient().CountSearchRequest(ctx, caller)
	if err != nil {
		return false, err
	}
	return count <= l.Limit, nil
}

// rateLimit wraps a handler with a per-IP request budget. A counter backend
// failure lets the request through; throttling is best effort and must not
// take the endpoint down with it.
func rateLimit(limiter RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter == nil {
			next(w, r)
			return
		}

		caller := clientIP(r)
		allowed, err := limiter.Allow(r.Context(), caller)
		if err != nil {
			slog.Warn("[API] Rate limit check failed, allowing request",
				slog.String("caller", caller),
				slog.String("error", err.Error()))
			next(w, r)
			return
		}
		if !allowed {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again later.")
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
