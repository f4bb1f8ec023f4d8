package handlers

import (
	"context"
	"net/http"

	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/registry"
)

// CourierStateStore сохраняет состояние курьеров между перезапусками
type CourierStateStore interface {
	SaveState(ctx context.Context, courier models.Courier) error
	Deactivate(ctx context.Context, courierID string) error
}

// CourierHandler представляет обработчик курьеров
type CourierHandler struct {
	registry registry.Registry
	store    CourierStateStore
	log      *logger.Logger
}

// NewCourierHandler создает новый обработчик курьеров. store может быть nil.
func NewCourierHandler(reg registry.Registry, store CourierStateStore, log *logger.Logger) *CourierHandler {
	return &CourierHandler{
		registry: reg,
		store:    store,
		log:      log,
	}
}

// GetCouriers возвращает курьеров реестра, опционально по статусу
func (h *CourierHandler) GetCouriers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var filter *models.CourierAvailability
	if s := r.URL.Query().Get("status"); s != "" {
		status := models.CourierAvailability(s)
		if !status.Valid() {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter = &status
	}

	writeJSONResponse(w, http.StatusOK, h.registry.List(filter))
}

// GetCourier возвращает курьера по ID
func (h *CourierHandler) GetCourier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	courierID, err := extractIDFromPath(r.URL.Path, "/api/couriers/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid courier ID")
		return
	}

	courier, ok := h.registry.Get(courierID)
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, "Courier not found")
		return
	}

	writeJSONResponse(w, http.StatusOK, courier)
}

// UpdateLocation обновляет местоположение курьера
func (h *CourierHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	courierID, err := extractIDFromPath(r.URL.Path, "/api/couriers/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid courier ID")
		return
	}

	var req models.UpdateLocationRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	coord, err := requireCoordinate(req.Latitude, req.Longitude)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	courier, err := h.registry.UpsertLocation(courierID, coord)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.persist(r.Context(), courier)
	writeJSONResponse(w, http.StatusOK, courier)
}

// UpdateStatus меняет доступность курьера
func (h *CourierHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	courierID, err := extractIDFromPath(r.URL.Path, "/api/couriers/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid courier ID")
		return
	}

	var req models.UpdateAvailabilityRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.registry.SetAvailability(courierID, req.Status); err != nil {
		writeDomainError(w, err)
		return
	}

	courier, ok := h.registry.Get(courierID)
	if !ok {
		writeDomainError(w, errs.NewObjectNotFoundError("courierId", courierID))
		return
	}

	h.persist(r.Context(), courier)
	h.log.WithField("courier_id", courierID).WithField("status", req.Status).Info("Courier availability updated")
	writeJSONResponse(w, http.StatusOK, courier)
}

// Deactivate удаляет курьера из реестра
func (h *CourierHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	courierID, err := extractIDFromPath(r.URL.Path, "/api/couriers/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid courier ID")
		return
	}

	if !h.registry.Remove(courierID) {
		writeErrorResponse(w, http.StatusNotFound, "Courier not found")
		return
	}

	if h.store != nil {
		if err := h.store.Deactivate(r.Context(), courierID); err != nil {
			h.log.WithError(err).WithField("courier_id", courierID).Error("Failed to persist courier deactivation")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CourierHandler) persist(ctx context.Context, courier models.Courier) {
	if h.store == nil {
		return
	}
	if err := h.store.SaveState(ctx, courier); err != nil {
		h.log.WithError(err).WithField("courier_id", courier.ID).Warn("Failed to persist courier state")
	}
}
