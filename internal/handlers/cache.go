package handlers

import (
	"net/http"

	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/services"
)

// CacheHandler отдает метрики кеша позиций
type CacheHandler struct {
	locations *services.LocationCache
	log       *logger.Logger
}

// NewCacheHandler создает новый обработчик кеша
func NewCacheHandler(locations *services.LocationCache, log *logger.Logger) *CacheHandler {
	return &CacheHandler{
		locations: locations,
		log:       log,
	}
}

// GetMetrics возвращает счетчики попаданий кеша позиций
func (h *CacheHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSONResponse(w, http.StatusOK, h.locations.Metrics())
}
