package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/models"

	"github.com/google/uuid"
)

type fakeOrderStore struct {
	mu        sync.Mutex
	locations map[string]*models.Coordinate
	assigned  map[string]string
	statuses  map[string]models.OrderStatus
	pending   []models.Order
	failWrite error
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		locations: make(map[string]*models.Coordinate),
		assigned:  make(map[string]string),
		statuses:  make(map[string]models.OrderStatus),
	}
}

func (f *fakeOrderStore) GetRestaurantLocation(_ context.Context, orderID string) (*models.Coordinate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.locations[orderID]
	if !ok {
		return nil, errs.NewObjectNotFoundError("orderId", orderID)
	}
	return loc, nil
}

func (f *fakeOrderStore) SetAssignedCourier(_ context.Context, orderID, courierID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	f.assigned[orderID] = courierID
	return nil
}

func (f *fakeOrderStore) SetStatus(_ context.Context, orderID string, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	f.statuses[orderID] = status
	return nil
}

func (f *fakeOrderStore) ListUnassigned(_ context.Context, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.pending {
		if _, done := f.assigned[o.ID]; done {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOrderStore) assignedTo(orderID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.assigned[orderID]
	return id, ok
}

type fakeNotificationStore struct {
	mu       sync.Mutex
	records  []models.Notification
	failWith error
}

func (f *fakeNotificationStore) Record(_ context.Context, userID, notificationType, title, message string, data map[string]interface{}) (models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return models.Notification{}, f.failWith
	}
	n := models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notificationType,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now(),
	}
	f.records = append(f.records, n)
	return n, nil
}

func (f *fakeNotificationStore) ListUnread(_ context.Context, userID string, _ int) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.records {
		if n.UserID == userID && n.ReadAt == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotificationStore) MarkAsRead(_ context.Context, id uuid.UUID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id && f.records[i].UserID == userID {
			now := time.Now()
			f.records[i].ReadAt = &now
			return nil
		}
	}
	return errs.NewObjectNotFoundError("notificationId", id)
}

func (f *fakeNotificationStore) forUser(userID string) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.records {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type sentFrame struct {
	target  string
	event   string
	payload interface{}
	exclude string
}

// fakeHub запоминает отправленные события; online - подключенные пользователи,
// rooms - число участников комнаты
type fakeHub struct {
	mu     sync.Mutex
	online map[string]bool
	rooms  map[string]int
	sent   []sentFrame
}

func newFakeHub() *fakeHub {
	return &fakeHub{online: make(map[string]bool), rooms: make(map[string]int)}
}

func (f *fakeHub) SendToUser(userID, event string, payload interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentFrame{target: "user:" + userID, event: event, payload: payload})
	return f.online[userID]
}

func (f *fakeHub) SendToRoom(orderID, event string, payload interface{}, excludeSocketID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentFrame{target: "room:" + orderID, event: event, payload: payload, exclude: excludeSocketID})
	return f.rooms[orderID]
}

func (f *fakeHub) frames(event string) []sentFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentFrame
	for _, s := range f.sent {
		if s.event == event {
			out = append(out, s)
		}
	}
	return out
}

type fakePublisher struct {
	mu        sync.Mutex
	assigned  []string
	released  []string
	locations []models.TrackingPoint
}

func (f *fakePublisher) PublishCourierAssigned(orderID, courierID string, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, orderID+"->"+courierID)
	return nil
}

func (f *fakePublisher) PublishCourierReleased(courierID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, courierID)
	return nil
}

func (f *fakePublisher) PublishLocationUpdated(point models.TrackingPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations = append(f.locations, point)
	return errors.New("broker unavailable")
}
