package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/hub"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"

	"github.com/sirupsen/logrus"
)

// BroadcastService переводит доменные события в события протокола реального
// времени. Ошибки доставки не возвращаются: результат - только признак delivered.
type BroadcastService struct {
	hub           RealtimeHub
	notifications NotificationStore
	locations     *LocationCache
	events        EventPublisher
	log           *logger.Logger
	now           func() time.Time
}

// OrderStatusPayload - полезная нагрузка order:status:updated
type OrderStatusPayload struct {
	OrderID   string             `json:"orderId"`
	Status    models.OrderStatus `json:"status"`
	Message   string             `json:"message,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// CustomerLocationPayload - полезная нагрузка customer:location:updated
type CustomerLocationPayload struct {
	OrderID   string    `json:"orderId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessagePayload - полезная нагрузка message:received
type ChatMessagePayload struct {
	OrderID   string    `json:"orderId"`
	From      string    `json:"from"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBroadcastService создает сервис рассылки. locations и events могут быть nil.
func NewBroadcastService(rt RealtimeHub, notifications NotificationStore, locations *LocationCache, events EventPublisher, log *logger.Logger) *BroadcastService {
	return &BroadcastService{
		hub:           rt,
		notifications: notifications,
		locations:     locations,
		events:        events,
		log:           log,
		now:           time.Now,
	}
}

// RelayLocation рассылает позицию курьера комнате заказа (кроме отправителя)
// и запоминает ее для отслеживания. Возвращает true, если хотя бы один
// участник комнаты получил событие.
func (s *BroadcastService) RelayLocation(ctx context.Context, senderSocketID string, point models.TrackingPoint) (bool, error) {
	if point.OrderID == "" {
		return false, errs.NewValueIsRequiredError("orderId")
	}
	if _, err := models.NewCoordinate(point.Latitude, point.Longitude); err != nil {
		return false, err
	}
	if point.Timestamp.IsZero() {
		point.Timestamp = s.now()
	}

	delivered := s.hub.SendToRoom(point.OrderID, hub.EventLocationUpdated, point, senderSocketID)

	if s.locations != nil {
		if err := s.locations.Save(ctx, point); err != nil {
			s.log.WithError(err).WithField("order_id", point.OrderID).Warn("Failed to cache courier location")
		}
	}
	if s.events != nil {
		if err := s.events.PublishLocationUpdated(point); err != nil {
			s.log.WithError(err).WithField("order_id", point.OrderID).Warn("Failed to publish location event")
		}
	}

	s.log.WithFields(logrus.Fields{
		"order_id":   point.OrderID,
		"recipients": delivered,
	}).Debug("Courier location relayed")

	return delivered > 0, nil
}

// OrderStatusUpdated сообщает всей комнате заказа о смене статуса
func (s *BroadcastService) OrderStatusUpdated(orderID string, status models.OrderStatus, message string) (bool, error) {
	if orderID == "" {
		return false, errs.NewValueIsRequiredError("orderId")
	}
	if !status.Valid() {
		return false, errs.NewValueIsInvalidError("status")
	}

	delivered := s.hub.SendToRoom(orderID, hub.EventOrderStatusUpdated, OrderStatusPayload{
		OrderID:   orderID,
		Status:    status,
		Message:   message,
		Timestamp: s.now(),
	}, "")

	s.log.WithFields(logrus.Fields{
		"order_id":   orderID,
		"status":     status,
		"recipients": delivered,
	}).Info("Order status broadcast")

	return delivered > 0, nil
}

// CustomerLocation рассылает позицию клиента комнате заказа
func (s *BroadcastService) CustomerLocation(senderSocketID, orderID string, coord models.Coordinate) (bool, error) {
	if orderID == "" {
		return false, errs.NewValueIsRequiredError("orderId")
	}
	if err := coord.Validate(); err != nil {
		return false, err
	}

	delivered := s.hub.SendToRoom(orderID, hub.EventCustomerLocation, CustomerLocationPayload{
		OrderID:   orderID,
		Latitude:  coord.Latitude,
		Longitude: coord.Longitude,
		Timestamp: s.now(),
	}, senderSocketID)

	return delivered > 0, nil
}

// ChatMessage пересылает сообщение чата остальным участникам комнаты
func (s *BroadcastService) ChatMessage(senderSocketID, orderID, from, message string) (bool, error) {
	if orderID == "" {
		return false, errs.NewValueIsRequiredError("orderId")
	}
	if message == "" {
		return false, errs.NewValueIsRequiredError("message")
	}

	delivered := s.hub.SendToRoom(orderID, hub.EventMessageReceived, ChatMessagePayload{
		OrderID:   orderID,
		From:      from,
		Message:   message,
		Timestamp: s.now(),
	}, senderSocketID)

	return delivered > 0, nil
}

// PushNotification доставляет уже сохраненное уведомление пользователю
func (s *BroadcastService) PushNotification(userID string, notification models.Notification) (bool, error) {
	if userID == "" {
		return false, errs.NewValueIsRequiredError("userId")
	}

	delivered := s.hub.SendToUser(userID, hub.EventNotificationNew, notification)
	if !delivered {
		s.log.WithField("user_id", userID).Debug("User offline, notification left for polling")
	}
	return delivered, nil
}

// RelayNotification доставляет уведомление, сохраненное внешним бэкендом.
// Объект уходит в notification:new без изменений: id и created_at остаются
// такими, какими их записал владелец уведомления.
func (s *BroadcastService) RelayNotification(userID string, notification json.RawMessage) (bool, error) {
	if userID == "" {
		return false, errs.NewValueIsRequiredError("userId")
	}
	trimmed := bytes.TrimSpace(notification)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, errs.NewValueIsRequiredError("notification")
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return false, errs.NewValueIsInvalidError("notification")
	}

	delivered := s.hub.SendToUser(userID, hub.EventNotificationNew, json.RawMessage(trimmed))
	if !delivered {
		s.log.WithField("user_id", userID).Debug("User offline, notification left for polling")
	}
	return delivered, nil
}

// Notify сохраняет уведомление и затем пытается доставить его в реальном времени.
// Ошибка сохранения возвращается вызывающему, неудачная доставка - нет.
func (s *BroadcastService) Notify(ctx context.Context, userID, notificationType, title, message string, data map[string]interface{}) (bool, error) {
	if userID == "" {
		return false, errs.NewValueIsRequiredError("userId")
	}

	notification, err := s.notifications.Record(ctx, userID, notificationType, title, message, data)
	if err != nil {
		return false, fmt.Errorf("failed to record notification: %w", err)
	}

	delivered, _ := s.PushNotification(userID, notification)

	s.log.WithFields(logrus.Fields{
		"user_id":   userID,
		"type":      notificationType,
		"delivered": delivered,
	}).Info("Notification sent")

	return delivered, nil
}

// ForgetOrder удаляет сохраненную позицию завершенного заказа
func (s *BroadcastService) ForgetOrder(ctx context.Context, orderID string) {
	if s.locations == nil {
		return
	}
	if err := s.locations.Forget(ctx, orderID); err != nil {
		s.log.WithError(err).WithField("order_id", orderID).Warn("Failed to drop cached location")
	}
}
