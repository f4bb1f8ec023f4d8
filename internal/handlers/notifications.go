package handlers

import (
	"net/http"
	"strconv"

	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/services"

	"github.com/google/uuid"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationHandler отдает непрочитанные уведомления клиентам без живого соединения
type NotificationHandler struct {
	store services.NotificationStore
	log   *logger.Logger
}

// NewNotificationHandler создает обработчик уведомлений
func NewNotificationHandler(store services.NotificationStore, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		store: store,
		log:   log,
	}
}

// ListUnread возвращает непрочитанные уведомления пользователя
func (h *NotificationHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	userID := query.Get("user_id")
	if userID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limit := defaultNotificationLimit
	if l := query.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		if parsed > maxNotificationLimit {
			parsed = maxNotificationLimit
		}
		limit = parsed
	}

	notifications, err := h.store.ListUnread(r.Context(), userID, limit)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("Failed to list notifications")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	writeJSONResponse(w, http.StatusOK, notifications)
}

// MarkAsRead отмечает уведомление прочитанным
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	idStr, err := extractIDFromPath(r.URL.Path, "/api/notifications/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.store.MarkAsRead(r.Context(), id, userID); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
