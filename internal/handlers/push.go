package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/services"
)

// PushHandler принимает события от внешнего бэкенда и рассылает их клиентам
type PushHandler struct {
	broadcast *services.BroadcastService
	log       *logger.Logger
}

// NewPushHandler создает обработчик push API
func NewPushHandler(broadcast *services.BroadcastService, log *logger.Logger) *PushHandler {
	return &PushHandler{
		broadcast: broadcast,
		log:       log,
	}
}

// NotifyRequest - тело POST /api/notify
type NotifyRequest struct {
	UserID       string          `json:"user_id"`
	Notification json.RawMessage `json:"notification"`
}

// LocationRequest - тело POST /api/location
type LocationRequest struct {
	OrderID   string   `json:"order_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Status    string   `json:"status,omitempty"`
}

// OrderStatusRequest - тело POST /api/order-status
type OrderStatusRequest struct {
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
	Message string             `json:"message,omitempty"`
}

// CustomerLocationRequest - тело POST /api/customer-location
type CustomerLocationRequest struct {
	OrderID   string   `json:"order_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Notify доставляет уже сохраненное уведомление пользователю
func (h *PushHandler) Notify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req NotifyRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	h.respond(w, func() (bool, error) {
		return h.broadcast.RelayNotification(req.UserID, req.Notification)
	})
}

// Location рассылает позицию курьера комнате заказа
func (h *PushHandler) Location(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req LocationRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	h.respond(w, func() (bool, error) {
		coord, err := requireCoordinate(req.Latitude, req.Longitude)
		if err != nil {
			return false, err
		}
		return h.broadcast.RelayLocation(r.Context(), "", models.TrackingPoint{
			OrderID:   req.OrderID,
			Latitude:  coord.Latitude,
			Longitude: coord.Longitude,
			Status:    req.Status,
			Timestamp: time.Now().UTC(),
		})
	})
}

// OrderStatus рассылает смену статуса комнате заказа
func (h *PushHandler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req OrderStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	h.respond(w, func() (bool, error) {
		return h.broadcast.OrderStatusUpdated(req.OrderID, req.Status, req.Message)
	})
}

// CustomerLocation рассылает позицию клиента комнате заказа
func (h *PushHandler) CustomerLocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req CustomerLocationRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	h.respond(w, func() (bool, error) {
		coord, err := requireCoordinate(req.Latitude, req.Longitude)
		if err != nil {
			return false, err
		}
		return h.broadcast.CustomerLocation("", req.OrderID, coord)
	})
}

// respond отвечает 200 {success, delivered}, даже если получатель не в сети
func (h *PushHandler) respond(w http.ResponseWriter, push func() (bool, error)) {
	delivered, err := push()
	if err != nil {
		h.log.WithError(err).Debug("Push request rejected")
		writeDomainError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, models.DeliveryResult{Success: true, Delivered: delivered})
}
