package models

import (
	"time"
)

// OrderStatus представляет статус заказа
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusCooking    OrderStatus = "COOKING"
	OrderStatusPickingUp  OrderStatus = "PICKING_UP"
	OrderStatusDelivering OrderStatus = "DELIVERING"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// Valid проверяет, что статус известен
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCooking, OrderStatusPickingUp,
		OrderStatusDelivering, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal сообщает, что заказ завершен и курьер должен быть освобожден
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Order представляет заказ в том объеме, который нужен диспетчеризации
type Order struct {
	ID                 string      `json:"id"`
	RestaurantLocation *Coordinate `json:"restaurant_location,omitempty"`
	CourierID          *string     `json:"courier_id,omitempty"`
	Status             OrderStatus `json:"status"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// AssignmentResult представляет результат попытки назначения курьера
type AssignmentResult struct {
	Success    bool    `json:"success"`
	CourierID  *string `json:"courier_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	DistanceKm float64 `json:"distance_km,omitempty"`
}

// AssignRequest представляет запрос на назначение курьера
type AssignRequest struct {
	OrderID             string   `json:"order_id"`
	RestaurantLatitude  *float64 `json:"restaurant_latitude,omitempty"`
	RestaurantLongitude *float64 `json:"restaurant_longitude,omitempty"`
	MaxDistanceKm       float64  `json:"max_distance_km,omitempty"`
}

// ReleaseRequest представляет запрос на освобождение курьера
type ReleaseRequest struct {
	CourierID string `json:"courier_id"`
}
