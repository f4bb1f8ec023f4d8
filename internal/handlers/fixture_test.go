package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/hub"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/redis"
	"delivery-dispatch/internal/registry"
	"delivery-dispatch/internal/services"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var restaurant = models.Coordinate{Latitude: 10.762622, Longitude: 106.660172}

// memOrders хранит заказы в памяти
type memOrders struct {
	mu        sync.Mutex
	locations map[string]*models.Coordinate
	couriers  map[string]string
	statuses  map[string]models.OrderStatus
}

func newMemOrders() *memOrders {
	return &memOrders{
		locations: make(map[string]*models.Coordinate),
		couriers:  make(map[string]string),
		statuses:  make(map[string]models.OrderStatus),
	}
}

func (m *memOrders) add(orderID string, loc *models.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[orderID] = loc
	m.statuses[orderID] = models.OrderStatusPending
}

func (m *memOrders) GetRestaurantLocation(_ context.Context, orderID string) (*models.Coordinate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locations[orderID]
	if !ok {
		return nil, errs.NewObjectNotFoundError("orderId", orderID)
	}
	return loc, nil
}

func (m *memOrders) SetAssignedCourier(_ context.Context, orderID, courierID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[orderID]; !ok {
		return errs.NewObjectNotFoundError("orderId", orderID)
	}
	m.couriers[orderID] = courierID
	return nil
}

func (m *memOrders) SetStatus(_ context.Context, orderID string, status models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[orderID]; !ok {
		return errs.NewObjectNotFoundError("orderId", orderID)
	}
	m.statuses[orderID] = status
	return nil
}

func (m *memOrders) ListUnassigned(context.Context, int) ([]models.Order, error) {
	return nil, nil
}

func (m *memOrders) status(orderID string) models.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[orderID]
}

// memNotifications хранит уведомления в памяти
type memNotifications struct {
	mu    sync.Mutex
	items []models.Notification
}

func (m *memNotifications) Record(_ context.Context, userID, notificationType, title, message string, data map[string]interface{}) (models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notificationType,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	m.items = append(m.items, n)
	return n, nil
}

func (m *memNotifications) ListUnread(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for i := len(m.items) - 1; i >= 0 && len(out) < limit; i-- {
		if n := m.items[i]; n.UserID == userID && n.ReadAt == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) MarkAsRead(_ context.Context, id uuid.UUID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID && m.items[i].ReadAt == nil {
			now := time.Now()
			m.items[i].ReadAt = &now
			return nil
		}
	}
	return errs.NewObjectNotFoundError("notificationId", id)
}

type fixture struct {
	hub           *hub.Hub
	reg           *registry.MemoryRegistry
	orders        *memOrders
	notifications *memNotifications
	cache         *services.LocationCache
	broadcast     *services.BroadcastService
	dispatch      *services.DispatchService
	orderEvents   *services.OrderEventService
	log           *logger.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.Discard()
	mr := miniredis.RunT(t)
	rc := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), log)

	f := &fixture{
		hub: hub.New(&config.HubConfig{
			SendBuffer:   16,
			WriteTimeout: time.Second,
			PongTimeout:  5 * time.Second,
			PingInterval: time.Second,
		}, log),
		reg:           registry.New(),
		orders:        newMemOrders(),
		notifications: &memNotifications{},
		log:           log,
	}
	f.cache = services.NewLocationCache(rc, &config.CacheConfig{Enabled: true, LocationTTL: 60}, log)
	f.broadcast = services.NewBroadcastService(f.hub, f.notifications, f.cache, nil, log)
	f.dispatch = services.NewDispatchService(f.reg, f.orders, nil, &config.DispatchConfig{MaxDistanceKm: 10, RetryBatchSize: 10}, log)
	f.orderEvents = services.NewOrderEventService(f.dispatch, f.broadcast, f.orders, log)
	return f
}

// online регистрирует свободного курьера в точке
func (f *fixture) online(t *testing.T, id string, coord models.Coordinate) {
	t.Helper()
	_, err := f.reg.UpsertLocation(id, coord)
	require.NoError(t, err)
	require.NoError(t, f.reg.SetAvailability(id, models.CourierAvailable))
}

// join подключает клиента к комнате заказа напрямую через хаб
func (f *fixture) join(t *testing.T, orderID string) *hub.Client {
	t.Helper()
	c := f.hub.Connect(16)
	_, err := f.hub.JoinRoom(c.ID, orderID)
	require.NoError(t, err)
	return c
}

// nextFrame читает следующий кадр клиента; Data разбирается как объект
func nextFrame(t *testing.T, c *hub.Client) (string, map[string]interface{}) {
	t.Helper()
	select {
	case raw := <-c.Outbound():
		var f struct {
			Event string                 `json:"event"`
			Data  map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &f))
		return f.Event, f.Data
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return "", nil
	}
}

func noFrame(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case raw := <-c.Outbound():
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func doRequest(h http.HandlerFunc, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), target))
}
