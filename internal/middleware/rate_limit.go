package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/services"

	"github.com/sirupsen/logrus"
)

// Limiter учитывает попытку подключения с адреса
type Limiter interface {
	CheckLimit(ctx context.Context, ip string) (*services.RateLimitResult, error)
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimit ограничивает частоту запросов с одного адреса.
// Ошибка лимитера пропускает запрос.
func RateLimit(limiter Limiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			result, err := limiter.CheckLimit(r.Context(), ip)
			if err != nil {
				log.WithError(err).WithField("ip", ip).Error("Rate limit check failed")
				next.ServeHTTP(w, r)
				return
			}

			if result.Limit > 0 && !result.ResetAt.IsZero() {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
				w.Header().Set("X-RateLimit-Reset", result.ResetAt.Format(time.RFC3339))
			}

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				response := map[string]interface{}{
					"error":       "rate_limit_exceeded",
					"message":     "Too many connection attempts, try again later",
					"limit":       result.Limit,
					"retry_after": result.RetryAfter,
				}

				if !result.BannedUntil.IsZero() {
					response["banned_until"] = result.BannedUntil.Format(time.RFC3339)
				}

				log.WithFields(logrus.Fields{
					"ip":          ip,
					"path":        r.URL.Path,
					"retry_after": result.RetryAfter,
				}).Warn("Request blocked by rate limiter")

				_ = json.NewEncoder(w).Encode(response)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
