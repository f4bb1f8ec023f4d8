package hub

import (
	"encoding/json"
)

// Имена событий протокола реального времени
const (
	EventUserRegister       = "user:register"
	EventUserRegistered     = "user:registered"
	EventShipperJoin        = "shipper:join"
	EventShipperJoined      = "shipper:joined"
	EventCustomerJoin       = "customer:join"
	EventCustomerJoined     = "customer:joined"
	EventLocationUpdate     = "location:update"
	EventLocationUpdated    = "location:updated"
	EventOrderStatusUpdate  = "order:status:update"
	EventOrderStatusUpdated = "order:status:updated"
	EventNotificationNew    = "notification:new"
	EventMessageSend        = "message:send"
	EventMessageReceived    = "message:received"
	EventCustomerLocation   = "customer:location:updated"
	EventAck                = "ack"
	EventError              = "error"
)

// InboundFrame представляет кадр, полученный от клиента
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *int64          `json:"ack,omitempty"`
}

// OutboundFrame представляет кадр, отправляемый клиенту
type OutboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
	Ack   *int64      `json:"ack,omitempty"`
}

// JoinAck подтверждает вход в комнату заказа
type JoinAck struct {
	OK     bool   `json:"ok"`
	Joined string `json:"joined"`
}

// ErrorPayload передается клиенту в событии error или в ответе на ack
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stats представляет текущее состояние индексов хаба
type Stats struct {
	Connections int `json:"connections"`
	UserSockets int `json:"userSockets"`
	Rooms       int `json:"rooms"`
}

// RoomName возвращает имя комнаты заказа
func RoomName(orderID string) string {
	return "order:" + orderID
}

func encode(event string, payload interface{}, ack *int64) ([]byte, error) {
	return json.Marshal(OutboundFrame{Event: event, Data: payload, Ack: ack})
}
