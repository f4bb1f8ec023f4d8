package services

import (
	"context"

	"delivery-dispatch/internal/models"

	"github.com/google/uuid"
)

// OrderStore - хранилище заказов, которым владеет внешняя система
type OrderStore interface {
	GetRestaurantLocation(ctx context.Context, orderID string) (*models.Coordinate, error)
	SetAssignedCourier(ctx context.Context, orderID, courierID string) error
	SetStatus(ctx context.Context, orderID string, status models.OrderStatus) error
	ListUnassigned(ctx context.Context, limit int) ([]models.Order, error)
}

// NotificationStore - долговременное хранилище уведомлений
type NotificationStore interface {
	Record(ctx context.Context, userID, notificationType, title, message string, data map[string]interface{}) (models.Notification, error)
	ListUnread(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID, userID string) error
}

// RealtimeHub - доставка событий подключенным клиентам
type RealtimeHub interface {
	SendToUser(userID, event string, payload interface{}) bool
	SendToRoom(orderID, event string, payload interface{}, excludeSocketID string) int
}

// EventPublisher публикует доменные события во внешнюю шину
type EventPublisher interface {
	PublishCourierAssigned(orderID, courierID string, distanceKm float64) error
	PublishCourierReleased(courierID string) error
	PublishLocationUpdated(point models.TrackingPoint) error
}
