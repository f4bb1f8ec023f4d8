package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType представляет тип события шины
type EventType string

const (
	EventTypeOrderCreated           EventType = "order.created"
	EventTypeOrderStatusChanged     EventType = "order.status_changed"
	EventTypeCourierAssigned        EventType = "courier.assigned"
	EventTypeCourierReleased        EventType = "courier.released"
	EventTypeCourierLocationUpdated EventType = "courier.location_updated"
)

// Event представляет базовое событие
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// OrderCreatedEvent представляет событие создания заказа
type OrderCreatedEvent struct {
	OrderID            string      `json:"order_id"`
	CustomerID         string      `json:"customer_id"`
	RestaurantOwnerID  string      `json:"restaurant_owner_id,omitempty"`
	RestaurantName     string      `json:"restaurant_name,omitempty"`
	RestaurantLocation *Coordinate `json:"restaurant_location,omitempty"`
	TotalAmount        float64     `json:"total_amount,omitempty"`
}

// OrderStatusChangedEvent представляет событие изменения статуса заказа
type OrderStatusChangedEvent struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	CourierID  *string     `json:"courier_id,omitempty"`
	OldStatus  OrderStatus `json:"old_status,omitempty"`
	NewStatus  OrderStatus `json:"new_status"`
	Message    string      `json:"message,omitempty"`
}

// CourierAssignedEvent представляет событие назначения курьера
type CourierAssignedEvent struct {
	OrderID    string    `json:"order_id"`
	CourierID  string    `json:"courier_id"`
	DistanceKm float64   `json:"distance_km"`
	Timestamp  time.Time `json:"timestamp"`
}

// CourierReleasedEvent представляет событие освобождения курьера
type CourierReleasedEvent struct {
	CourierID string    `json:"courier_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CourierLocationUpdatedEvent представляет событие обновления местоположения
type CourierLocationUpdatedEvent struct {
	OrderID   string    `json:"order_id"`
	CourierID string    `json:"courier_id,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
