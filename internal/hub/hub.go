// Package hub управляет постоянными соединениями: привязкой пользователей к
// сокетам, комнатами заказов и адресной/групповой доставкой событий.
//
// Индексы (сокеты, пользователи, комнаты) защищены одним RWMutex. Рассылка
// снимает снимок получателей под блокировкой чтения и ставит кадры в очереди
// клиентов уже вне ее, поэтому медленный получатель никого не задерживает.
package hub

import (
	"sync"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultSendBuffer   = 256
	defaultWriteTimeout = 10 * time.Second
	defaultPongTimeout  = 60 * time.Second
)

// Hub представляет реестр соединений
type Hub struct {
	cfg *config.HubConfig
	log *logger.Logger

	mu      sync.RWMutex
	clients map[string]*Client            // socketID -> клиент
	users   map[string]string             // userID -> socketID последней регистрации
	rooms   map[string]map[string]*Client // orderID -> участники
}

// New создает новый хаб
func New(cfg *config.HubConfig, log *logger.Logger) *Hub {
	settings := *cfg
	if settings.SendBuffer <= 0 {
		settings.SendBuffer = defaultSendBuffer
	}
	if settings.WriteTimeout <= 0 {
		settings.WriteTimeout = defaultWriteTimeout
	}
	if settings.PongTimeout <= 0 {
		settings.PongTimeout = defaultPongTimeout
	}
	// пинг должен приходить раньше, чем истечет ожидание pong
	if settings.PingInterval <= 0 || settings.PingInterval >= settings.PongTimeout {
		settings.PingInterval = settings.PongTimeout * 9 / 10
	}

	return &Hub{
		cfg:     &settings,
		log:     log,
		clients: make(map[string]*Client),
		users:   make(map[string]string),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Connect регистрирует новое соединение с собственным socketID
func (h *Hub) Connect(buffer int) *Client {
	if buffer <= 0 {
		buffer = h.cfg.SendBuffer
	}

	c := newClient(uuid.NewString(), buffer)

	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	h.log.WithField("socket_id", c.ID).Debug("Client connected")
	return c
}

// Register привязывает пользователя к сокету. Повторная регистрация того же
// пользователя с другого сокета перезаписывает привязку.
func (h *Hub) Register(socketID, userID string) error {
	if userID == "" {
		return errs.NewValueIsRequiredError("userId")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[socketID]
	if !ok {
		return errs.NewObjectNotFoundError("socketId", socketID)
	}

	if prevID, bound := h.users[userID]; bound && prevID != socketID {
		if prev, ok := h.clients[prevID]; ok {
			delete(prev.userIDs, userID)
		}
	}
	h.users[userID] = socketID
	c.userIDs[userID] = struct{}{}

	h.log.WithFields(logrus.Fields{
		"socket_id": socketID,
		"user_id":   userID,
	}).Info("User registered on socket")

	return nil
}

// JoinRoom добавляет сокет в комнату заказа
func (h *Hub) JoinRoom(socketID, orderID string) (JoinAck, error) {
	if orderID == "" {
		return JoinAck{}, errs.NewValueIsRequiredError("orderId")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[socketID]
	if !ok {
		return JoinAck{}, errs.NewObjectNotFoundError("socketId", socketID)
	}

	members, ok := h.rooms[orderID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[orderID] = members
	}
	members[socketID] = c
	c.rooms[orderID] = struct{}{}

	return JoinAck{OK: true, Joined: RoomName(orderID)}, nil
}

// LeaveAll удаляет сокет из всех комнат и привязок одной операцией и закрывает клиента
func (h *Hub) LeaveAll(socketID string) {
	h.mu.Lock()
	c, ok := h.clients[socketID]
	if !ok {
		h.mu.Unlock()
		return
	}

	for orderID := range c.rooms {
		if members, ok := h.rooms[orderID]; ok {
			delete(members, socketID)
			if len(members) == 0 {
				delete(h.rooms, orderID)
			}
		}
	}
	for userID := range c.userIDs {
		// привязка могла уже перейти к более новому сокету
		if h.users[userID] == socketID {
			delete(h.users, userID)
		}
	}
	delete(h.clients, socketID)
	h.mu.Unlock()

	c.close()

	h.log.WithField("socket_id", socketID).Debug("Client disconnected")
}

// SendToUser доставляет событие сокету пользователя. Возвращает false, если
// пользователь не подключен или кадр не удалось поставить в очередь.
func (h *Hub) SendToUser(userID, event string, payload interface{}) bool {
	h.mu.RLock()
	c := h.clients[h.users[userID]]
	h.mu.RUnlock()

	if c == nil {
		return false
	}
	return h.deliver(c, event, payload, nil)
}

// SendToSocket доставляет событие конкретному сокету
func (h *Hub) SendToSocket(socketID, event string, payload interface{}) bool {
	h.mu.RLock()
	c := h.clients[socketID]
	h.mu.RUnlock()

	if c == nil {
		return false
	}
	return h.deliver(c, event, payload, nil)
}

// SendToRoom рассылает событие участникам комнаты, кроме excludeSocketID.
// Возвращает число получателей, которым кадр поставлен в очередь.
func (h *Hub) SendToRoom(orderID, event string, payload interface{}, excludeSocketID string) int {
	h.mu.RLock()
	members := h.rooms[orderID]
	recipients := make([]*Client, 0, len(members))
	for id, c := range members {
		if id != excludeSocketID {
			recipients = append(recipients, c)
		}
	}
	h.mu.RUnlock()

	if len(recipients) == 0 {
		return 0
	}

	frame, err := encode(event, payload, nil)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("Failed to encode frame")
		return 0
	}

	delivered := 0
	for _, c := range recipients {
		if err := c.enqueue(frame); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"event":    event,
				"order_id": orderID,
			}).Warn("Frame dropped for room member")
			continue
		}
		delivered++
	}
	return delivered
}

// userSocket возвращает сокет, к которому сейчас привязан пользователь
func (h *Hub) userSocket(userID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.users[userID]
	return id, ok
}

// Stats возвращает размеры индексов
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		Connections: len(h.clients),
		UserSockets: len(h.users),
		Rooms:       len(h.rooms),
	}
}

// Shutdown отключает всех клиентов
func (h *Hub) Shutdown() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.LeaveAll(id)
	}
	h.log.WithField("clients", len(ids)).Info("Hub shut down")
}

func (h *Hub) deliver(c *Client, event string, payload interface{}, ack *int64) bool {
	frame, err := encode(event, payload, ack)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("Failed to encode frame")
		return false
	}
	if err := c.enqueue(frame); err != nil {
		h.log.WithError(err).WithField("event", event).Warn("Frame dropped")
		return false
	}
	return true
}
