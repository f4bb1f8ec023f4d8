package models

// CourierAvailability представляет доступность курьера для назначения
type CourierAvailability string

const (
	CourierOffline   CourierAvailability = "offline"   // Не на смене или отключен
	CourierAvailable CourierAvailability = "available" // Свободен, может взять заказ
	CourierBusy      CourierAvailability = "busy"      // Выполняет заказ
)

// Valid проверяет, что значение является известным состоянием
func (a CourierAvailability) Valid() bool {
	switch a {
	case CourierOffline, CourierAvailable, CourierBusy:
		return true
	}
	return false
}

// Courier представляет курьера в реестре диспетчеризации
type Courier struct {
	ID           string              `json:"id"`
	Location     *Coordinate         `json:"location,omitempty"`
	Availability CourierAvailability `json:"availability"`
}

// UpdateLocationRequest представляет запрос на обновление местоположения курьера
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// UpdateAvailabilityRequest представляет запрос на смену доступности курьера
type UpdateAvailabilityRequest struct {
	Status CourierAvailability `json:"status"`
}
