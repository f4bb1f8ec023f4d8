package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы уведомлений
const (
	NotificationTypeNewOrder = "NEW_ORDER"
)

// OrderNotificationType возвращает тип уведомления для смены статуса (ORDER_<STATUS>)
func OrderNotificationType(status OrderStatus) string {
	return "ORDER_" + string(status)
}

// Notification представляет сохраненное уведомление пользователя
type Notification struct {
	ID        uuid.UUID              `json:"id"`
	UserID    string                 `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"`
	ReadAt    *time.Time             `json:"read_at"`
}

// DeliveryResult представляет ответ push API
type DeliveryResult struct {
	Success   bool `json:"success"`
	Delivered bool `json:"delivered"`
}
