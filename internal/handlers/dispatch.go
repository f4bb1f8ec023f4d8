package handlers

import (
	"net/http"

	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/services"
)

// DispatchHandler представляет обработчик назначения курьеров
type DispatchHandler struct {
	dispatch *services.DispatchService
	log      *logger.Logger
}

// NewDispatchHandler создает новый обработчик назначения
func NewDispatchHandler(dispatch *services.DispatchService, log *logger.Logger) *DispatchHandler {
	return &DispatchHandler{
		dispatch: dispatch,
		log:      log,
	}
}

// Assign назначает заказу ближайшего свободного курьера
func (h *DispatchHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.AssignRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	if req.OrderID == "" {
		writeDomainError(w, errs.NewValueIsRequiredError("order_id"))
		return
	}

	location, err := models.CoordinateFromPair(req.RestaurantLatitude, req.RestaurantLongitude)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := h.dispatch.Assign(r.Context(), req.OrderID, location, req.MaxDistanceKm)
	if err != nil {
		if !errs.IsValidation(err) && !errs.IsNotFound(err) {
			h.log.WithError(err).WithField("order_id", req.OrderID).Error("Failed to assign courier")
		}
		writeDomainError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// Release возвращает курьера в пул свободных
func (h *DispatchHandler) Release(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.ReleaseRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	if req.CourierID == "" {
		writeDomainError(w, errs.NewValueIsRequiredError("courier_id"))
		return
	}

	if err := h.dispatch.Release(r.Context(), req.CourierID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "released"})
}
