package handlers

import (
	"context"
	"net"
	"net/http"

	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/logger"
)

// LimitResetter снимает ограничение подключений с адреса
type LimitResetter interface {
	ResetLimit(ctx context.Context, ip string) error
}

// RateLimitHandler управляет ограничением подключений к /ws
type RateLimitHandler struct {
	limiter LimitResetter
	log     *logger.Logger
}

// NewRateLimitHandler создает новый RateLimitHandler
func NewRateLimitHandler(limiter LimitResetter, log *logger.Logger) *RateLimitHandler {
	return &RateLimitHandler{
		limiter: limiter,
		log:     log,
	}
}

// Reset обрабатывает DELETE /api/rate-limit/{ip}: сбрасывает счетчик и бан
func (h *RateLimitHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ip, err := extractIDFromPath(r.URL.Path, "/api/rate-limit/")
	if err != nil || net.ParseIP(ip) == nil {
		writeDomainError(w, errs.NewValueIsInvalidError("ip"))
		return
	}

	if err := h.limiter.ResetLimit(r.Context(), ip); err != nil {
		h.log.WithError(err).WithField("ip", ip).Error("Failed to reset rate limit")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to reset rate limit")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
