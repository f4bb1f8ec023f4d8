package hub

import (
	"encoding/json"
	"time"

	"delivery-dispatch/internal/errs"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// FrameHandler обрабатывает входящие кадры протокола. Возвращаемое значение
// отправляется клиенту в ответе ack, если кадр его запросил.
type FrameHandler interface {
	HandleFrame(socketID string, frame InboundFrame) (interface{}, error)
}

// DisconnectNotifier реализуется обработчиком, которому нужно знать о закрытии сокета
type DisconnectNotifier interface {
	Disconnected(socketID string)
}

// Serve обслуживает websocket-соединение до его закрытия: запускает писателя,
// читает кадры в текущей горутине и по завершении удаляет сокет из хаба.
func (h *Hub) Serve(ws *websocket.Conn, handler FrameHandler) {
	c := h.Connect(0)

	go h.writePump(ws, c)
	h.readPump(ws, c, handler)

	h.LeaveAll(c.ID)
	ws.Close()

	if n, ok := handler.(DisconnectNotifier); ok {
		n.Disconnected(c.ID)
	}
}

func (h *Hub) readPump(ws *websocket.Conn, c *Client, handler FrameHandler) {
	if h.cfg.MaxMessageSize > 0 {
		ws.SetReadLimit(h.cfg.MaxMessageSize)
	}
	ws.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("socket_id", c.ID).Warn("Unexpected websocket close")
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			h.deliver(c, EventError, ErrorPayload{Code: "bad_frame", Message: "frame must be a JSON object with an event name"}, nil)
			continue
		}

		result, err := handler.HandleFrame(c.ID, frame)
		if err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"socket_id": c.ID,
				"event":     frame.Event,
			}).Debug("Frame rejected")
			result = errorPayload(err)
			if frame.Ack == nil {
				h.deliver(c, EventError, result, nil)
				continue
			}
		}

		if frame.Ack != nil {
			h.deliver(c, EventAck, result, frame.Ack)
		}
	}
}

func (h *Hub) writePump(ws *websocket.Conn, c *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.WithError(err).WithField("socket_id", c.ID).Debug("Write failed, dropping client")
				h.LeaveAll(c.ID)
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.LeaveAll(c.ID)
				return
			}

		case <-c.done:
			ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func errorPayload(err error) ErrorPayload {
	code := "internal"
	switch {
	case errs.IsValidation(err):
		code = "invalid"
	case errs.IsNotFound(err):
		code = "not_found"
	}
	return ErrorPayload{Code: code, Message: err.Error()}
}
