// Package registry хранит оперативное состояние курьеров: последнее известное
// местоположение и доступность. Поиск ближайшего курьера выполняется линейным
// проходом в порядке добавления; интерфейс Registry позволяет подменить
// реализацию пространственным индексом без изменения вызывающего кода.
package registry

import (
	"fmt"
	"sync"

	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/geo"
	"delivery-dispatch/internal/models"
)

// Registry описывает операции над реестром курьеров
type Registry interface {
	UpsertLocation(id string, coord models.Coordinate) (models.Courier, error)
	SetAvailability(id string, availability models.CourierAvailability) error
	MarkBusy(id string) error
	MarkAvailable(id string) error
	ReleaseIfBusy(id string) (bool, error)
	FindNearestAvailable(origin models.Coordinate, maxKm float64) (models.Courier, bool)
	ClaimNearestAvailable(origin models.Coordinate, maxKm float64) (models.Courier, float64, bool)
	Get(id string) (models.Courier, bool)
	List(filter *models.CourierAvailability) []models.Courier
	Put(courier models.Courier) error
	Remove(id string) bool
	Len() int
}

// MemoryRegistry - потокобезопасная реализация Registry в памяти процесса
type MemoryRegistry struct {
	mu       sync.RWMutex
	couriers map[string]*models.Courier
	order    []string // порядок добавления, определяет победителя при равных расстояниях
}

var _ Registry = (*MemoryRegistry)(nil)

// New создает пустой реестр
func New() *MemoryRegistry {
	return &MemoryRegistry{
		couriers: make(map[string]*models.Courier),
	}
}

// UpsertLocation обновляет местоположение курьера. Неизвестный курьер
// создается в состоянии offline.
func (r *MemoryRegistry) UpsertLocation(id string, coord models.Coordinate) (models.Courier, error) {
	if id == "" {
		return models.Courier{}, errs.NewValueIsRequiredError("courierId")
	}
	if err := coord.Validate(); err != nil {
		return models.Courier{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.couriers[id]
	if !ok {
		c = &models.Courier{ID: id, Availability: models.CourierOffline}
		r.couriers[id] = c
		r.order = append(r.order, id)
	}
	loc := coord
	c.Location = &loc

	return clone(c), nil
}

// SetAvailability переводит курьера в новое состояние доступности
func (r *MemoryRegistry) SetAvailability(id string, availability models.CourierAvailability) error {
	if !availability.Valid() {
		return errs.NewValueIsInvalidError("availability")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.couriers[id]
	if !ok {
		return errs.NewObjectNotFoundError("courierId", id)
	}

	if !canTransition(c.Availability, availability) {
		return errs.NewValueIsInvalidErrorWithCause("availability",
			fmt.Errorf("transition %s -> %s is not allowed", c.Availability, availability))
	}

	c.Availability = availability
	return nil
}

// MarkBusy переводит курьера в busy; местоположение не меняется
func (r *MemoryRegistry) MarkBusy(id string) error {
	return r.SetAvailability(id, models.CourierBusy)
}

// MarkAvailable переводит курьера в available; местоположение не меняется
func (r *MemoryRegistry) MarkAvailable(id string) error {
	return r.SetAvailability(id, models.CourierAvailable)
}

// ReleaseIfBusy атомарно переводит busy -> available. Курьер в любом другом
// состоянии не меняется, released=false.
func (r *MemoryRegistry) ReleaseIfBusy(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.couriers[id]
	if !ok {
		return false, errs.NewObjectNotFoundError("courierId", id)
	}
	if c.Availability != models.CourierBusy {
		return false, nil
	}

	c.Availability = models.CourierAvailable
	return true, nil
}

// FindNearestAvailable возвращает ближайшего свободного курьера в радиусе maxKm
func (r *MemoryRegistry) FindNearestAvailable(origin models.Coordinate, maxKm float64) (models.Courier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, _, ok := r.nearestLocked(origin, maxKm)
	if !ok {
		return models.Courier{}, false
	}
	return clone(c), true
}

// ClaimNearestAvailable находит ближайшего свободного курьера и переводит его
// в busy под одной блокировкой. За один период доступности курьер может быть
// захвачен не более одного раза.
func (r *MemoryRegistry) ClaimNearestAvailable(origin models.Coordinate, maxKm float64) (models.Courier, float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, distance, ok := r.nearestLocked(origin, maxKm)
	if !ok {
		return models.Courier{}, 0, false
	}
	c.Availability = models.CourierBusy

	return clone(c), distance, true
}

func (r *MemoryRegistry) nearestLocked(origin models.Coordinate, maxKm float64) (*models.Courier, float64, bool) {
	var (
		best     *models.Courier
		bestDist float64
	)

	for _, id := range r.order {
		c := r.couriers[id]
		if c.Availability != models.CourierAvailable || c.Location == nil {
			continue
		}

		d := geo.DistanceKm(origin, *c.Location)
		if d > maxKm {
			continue
		}
		// строгое сравнение: при равенстве остается курьер, добавленный раньше
		if best == nil || d < bestDist {
			best = c
			bestDist = d
		}
	}

	return best, bestDist, best != nil
}

// Get возвращает копию записи курьера
func (r *MemoryRegistry) Get(id string) (models.Courier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.couriers[id]
	if !ok {
		return models.Courier{}, false
	}
	return clone(c), true
}

// List возвращает курьеров в порядке добавления, опционально фильтруя по доступности
func (r *MemoryRegistry) List(filter *models.CourierAvailability) []models.Courier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.Courier, 0, len(r.order))
	for _, id := range r.order {
		c := r.couriers[id]
		if filter != nil && c.Availability != *filter {
			continue
		}
		result = append(result, clone(c))
	}
	return result
}

// Put восстанавливает запись целиком, минуя правила переходов.
// Используется при загрузке состояния из хранилища на старте.
func (r *MemoryRegistry) Put(courier models.Courier) error {
	if courier.ID == "" {
		return errs.NewValueIsRequiredError("courierId")
	}
	if !courier.Availability.Valid() {
		return errs.NewValueIsInvalidError("availability")
	}
	if courier.Location != nil {
		if err := courier.Location.Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.couriers[courier.ID]; !ok {
		r.order = append(r.order, courier.ID)
	}
	stored := clone(&courier)
	r.couriers[courier.ID] = &stored
	return nil
}

// Remove удаляет курьера из реестра (деактивация)
func (r *MemoryRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.couriers[id]; !ok {
		return false
	}
	delete(r.couriers, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Len возвращает количество курьеров в реестре
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.couriers)
}

func canTransition(from, to models.CourierAvailability) bool {
	if from == to || to == models.CourierOffline {
		return true
	}
	switch from {
	case models.CourierOffline:
		return to == models.CourierAvailable
	case models.CourierAvailable:
		return to == models.CourierBusy
	case models.CourierBusy:
		return to == models.CourierAvailable
	}
	return false
}

func clone(c *models.Courier) models.Courier {
	out := *c
	if c.Location != nil {
		loc := *c.Location
		out.Location = &loc
	}
	return out
}
