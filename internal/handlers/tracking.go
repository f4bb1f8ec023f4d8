package handlers

import (
	"net/http"

	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/services"
)

// TrackingHandler отдает последнюю позицию курьера по заказу
type TrackingHandler struct {
	locations *services.LocationCache
	log       *logger.Logger
}

// NewTrackingHandler создает обработчик отслеживания
func NewTrackingHandler(locations *services.LocationCache, log *logger.Logger) *TrackingHandler {
	return &TrackingHandler{
		locations: locations,
		log:       log,
	}
}

// GetOrderLocation возвращает последнюю переданную позицию курьера
func (h *TrackingHandler) GetOrderLocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractIDFromPath(r.URL.Path, "/api/orders/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	point, found, err := h.locations.Last(r.Context(), orderID)
	if err != nil {
		h.log.WithError(err).WithField("order_id", orderID).Error("Failed to read order location")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to read order location")
		return
	}
	if !found {
		writeErrorResponse(w, http.StatusNotFound, "No location reported for this order")
		return
	}

	writeJSONResponse(w, http.StatusOK, point)
}
