package models

import (
	"time"

	"delivery-dispatch/internal/errs"
)

// Coordinate представляет географическую точку в градусах
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewCoordinate создает точку с проверкой диапазонов
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Latitude: lat, Longitude: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate проверяет, что широта в [-90, 90], а долгота в [-180, 180]
func (c Coordinate) Validate() error {
	// NaN не проходит ни одно из сравнений, поэтому проверяем "внутри", а не "снаружи"
	if !(c.Latitude >= -90 && c.Latitude <= 90) {
		return errs.NewValueIsOutOfRangeError("latitude", c.Latitude, -90, 90)
	}
	if !(c.Longitude >= -180 && c.Longitude <= 180) {
		return errs.NewValueIsOutOfRangeError("longitude", c.Longitude, -180, 180)
	}
	return nil
}

// CoordinateFromPair собирает необязательную точку: обе части заданы или обе отсутствуют
func CoordinateFromPair(lat, lon *float64) (*Coordinate, error) {
	switch {
	case lat == nil && lon == nil:
		return nil, nil
	case lat == nil:
		return nil, errs.NewValueIsRequiredError("latitude")
	case lon == nil:
		return nil, errs.NewValueIsRequiredError("longitude")
	}

	c, err := NewCoordinate(*lat, *lon)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// TrackingPoint представляет последнюю известную позицию курьера по заказу.
// В этом же виде она уходит участникам комнаты в событии location:updated.
type TrackingPoint struct {
	OrderID   string    `json:"orderId"`
	CourierID string    `json:"courierId,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
