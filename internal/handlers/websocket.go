package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/hub"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/registry"
	"delivery-dispatch/internal/services"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const frameTimeout = 5 * time.Second

// Полезные нагрузки входящих событий
type (
	registerPayload struct {
		UserID string `json:"userId"`
	}

	joinPayload struct {
		UserID  string `json:"userId"`
		OrderID string `json:"orderId"`
	}

	locationPayload struct {
		OrderID   string   `json:"orderId"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Status    string   `json:"status,omitempty"`
	}

	statusPayload struct {
		OrderID string             `json:"orderId"`
		Status  models.OrderStatus `json:"status"`
		Message string             `json:"message,omitempty"`
	}

	chatPayload struct {
		OrderID string `json:"orderId"`
		From    string `json:"from"`
		Message string `json:"message"`
	}
)

// RegisteredPayload - ответ user:registered
type RegisteredPayload struct {
	UserID    string    `json:"userId"`
	SocketID  string    `json:"socketId"`
	Timestamp time.Time `json:"timestamp"`
}

// JoinedPayload - ответ shipper:joined и customer:joined
type JoinedPayload struct {
	UserID    string    `json:"userId"`
	OrderID   string    `json:"orderId"`
	SocketID  string    `json:"socketId"`
	Timestamp time.Time `json:"timestamp"`
}

// session хранит то, что сокет сообщил о себе
type session struct {
	userID        string
	shipperOrders map[string]struct{}
}

// ProtocolHandler разбирает события клиентов и вызывает сервисы
type ProtocolHandler struct {
	hub         *hub.Hub
	broadcast   *services.BroadcastService
	orderEvents *services.OrderEventService
	registry    registry.Registry
	upgrader    websocket.Upgrader
	log         *logger.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewProtocolHandler создает обработчик протокола. orderEvents может быть nil,
// тогда смена статуса от курьера только рассылается комнате.
func NewProtocolHandler(h *hub.Hub, broadcast *services.BroadcastService, orderEvents *services.OrderEventService,
	reg registry.Registry, cfg *config.HubConfig, log *logger.Logger) *ProtocolHandler {
	p := &ProtocolHandler{
		hub:         h,
		broadcast:   broadcast,
		orderEvents: orderEvents,
		registry:    reg,
		log:         log,
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
	p.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return p
}

// originChecker пропускает любой Origin, если список пуст или содержит "*"
func originChecker(allowed []string) func(r *http.Request) bool {
	hosts := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		hosts[strings.ToLower(o)] = struct{}{}
	}
	if len(hosts) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := hosts[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

// ServeWS переводит соединение в WebSocket и обслуживает его до закрытия
func (p *ProtocolHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	p.hub.Serve(ws, p)
}

// Disconnected забывает сессию закрытого сокета
func (p *ProtocolHandler) Disconnected(socketID string) {
	p.mu.Lock()
	delete(p.sessions, socketID)
	p.mu.Unlock()
}

// HandleFrame обрабатывает одно входящее событие
func (p *ProtocolHandler) HandleFrame(socketID string, frame hub.InboundFrame) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	switch frame.Event {
	case hub.EventUserRegister:
		return p.handleRegister(socketID, frame.Data)
	case hub.EventShipperJoin:
		return p.handleJoin(socketID, frame.Data, true)
	case hub.EventCustomerJoin:
		return p.handleJoin(socketID, frame.Data, false)
	case hub.EventLocationUpdate:
		return p.handleLocation(ctx, socketID, frame.Data)
	case hub.EventOrderStatusUpdate:
		return p.handleStatus(ctx, socketID, frame.Data)
	case hub.EventMessageSend:
		return p.handleChat(socketID, frame.Data)
	default:
		return nil, errs.NewValueIsInvalidError("event")
	}
}

func (p *ProtocolHandler) handleRegister(socketID string, data json.RawMessage) (interface{}, error) {
	var req registerPayload
	if err := decodeFrame(data, &req); err != nil {
		return nil, err
	}

	if err := p.hub.Register(socketID, req.UserID); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.sessionLocked(socketID).userID = req.UserID
	p.mu.Unlock()

	reply := RegisteredPayload{UserID: req.UserID, SocketID: socketID, Timestamp: p.now().UTC()}
	p.hub.SendToSocket(socketID, hub.EventUserRegistered, reply)
	return reply, nil
}

func (p *ProtocolHandler) handleJoin(socketID string, data json.RawMessage, shipper bool) (interface{}, error) {
	var req joinPayload
	if err := decodeFrame(data, &req); err != nil {
		return nil, err
	}

	ack, err := p.hub.JoinRoom(socketID, req.OrderID)
	if err != nil {
		return nil, err
	}

	if req.UserID != "" {
		if err := p.hub.Register(socketID, req.UserID); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	s := p.sessionLocked(socketID)
	if req.UserID != "" {
		s.userID = req.UserID
	}
	if shipper {
		s.shipperOrders[req.OrderID] = struct{}{}
	}
	p.mu.Unlock()

	event := hub.EventCustomerJoined
	if shipper {
		event = hub.EventShipperJoined
	}
	p.hub.SendToSocket(socketID, event, JoinedPayload{
		UserID:    req.UserID,
		OrderID:   req.OrderID,
		SocketID:  socketID,
		Timestamp: p.now().UTC(),
	})

	p.log.WithFields(logrus.Fields{
		"socket_id": socketID,
		"user_id":   req.UserID,
		"order_id":  req.OrderID,
		"shipper":   shipper,
	}).Info("Socket joined order room")

	return ack, nil
}

func (p *ProtocolHandler) handleLocation(ctx context.Context, socketID string, data json.RawMessage) (interface{}, error) {
	var req locationPayload
	if err := decodeFrame(data, &req); err != nil {
		return nil, err
	}

	coord, err := requireCoordinate(req.Latitude, req.Longitude)
	if err != nil {
		return nil, err
	}

	courierID, isShipper := p.shipperFor(socketID, req.OrderID)
	point := models.TrackingPoint{
		OrderID:   req.OrderID,
		Latitude:  coord.Latitude,
		Longitude: coord.Longitude,
		Status:    req.Status,
		Timestamp: p.now().UTC(),
	}
	if isShipper {
		point.CourierID = courierID
	}

	delivered, err := p.broadcast.RelayLocation(ctx, socketID, point)
	if err != nil {
		return nil, err
	}

	// позиция курьера на заказе нужна и для следующих назначений
	if isShipper && courierID != "" {
		if _, err := p.registry.UpsertLocation(courierID, coord); err != nil {
			p.log.WithError(err).WithField("courier_id", courierID).Warn("Failed to update courier position")
		}
	}

	return models.DeliveryResult{Success: true, Delivered: delivered}, nil
}

func (p *ProtocolHandler) handleStatus(ctx context.Context, socketID string, data json.RawMessage) (interface{}, error) {
	var req statusPayload
	if err := decodeFrame(data, &req); err != nil {
		return nil, err
	}

	courierID, isShipper := p.shipperFor(socketID, req.OrderID)
	if isShipper && courierID != "" && p.orderEvents != nil {
		err := p.orderEvents.UpdateStatus(ctx, models.OrderStatusChangedEvent{
			OrderID:   req.OrderID,
			CourierID: &courierID,
			NewStatus: req.Status,
			Message:   req.Message,
		})
		if err != nil {
			return nil, err
		}
		return models.DeliveryResult{Success: true, Delivered: true}, nil
	}

	delivered, err := p.broadcast.OrderStatusUpdated(req.OrderID, req.Status, req.Message)
	if err != nil {
		return nil, err
	}
	return models.DeliveryResult{Success: true, Delivered: delivered}, nil
}

func (p *ProtocolHandler) handleChat(socketID string, data json.RawMessage) (interface{}, error) {
	var req chatPayload
	if err := decodeFrame(data, &req); err != nil {
		return nil, err
	}

	from := req.From
	if from == "" {
		p.mu.Lock()
		from = p.sessionLocked(socketID).userID
		p.mu.Unlock()
	}

	delivered, err := p.broadcast.ChatMessage(socketID, req.OrderID, from, req.Message)
	if err != nil {
		return nil, err
	}
	return models.DeliveryResult{Success: true, Delivered: delivered}, nil
}

// shipperFor возвращает userID сокета, если он вошел в заказ как курьер
func (p *ProtocolHandler) shipperFor(socketID, orderID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[socketID]
	if !ok {
		return "", false
	}
	_, shipper := s.shipperOrders[orderID]
	return s.userID, shipper
}

func (p *ProtocolHandler) sessionLocked(socketID string) *session {
	s, ok := p.sessions[socketID]
	if !ok {
		s = &session{shipperOrders: make(map[string]struct{})}
		p.sessions[socketID] = s
	}
	return s
}

func decodeFrame(data json.RawMessage, target interface{}) error {
	if len(data) == 0 {
		return errs.NewValueIsRequiredError("data")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return errs.NewValueIsInvalidErrorWithCause("data", err)
	}
	return nil
}
