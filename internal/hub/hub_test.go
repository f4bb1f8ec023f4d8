package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return New(&config.HubConfig{SendBuffer: 16}, logger.Discard())
}

// next читает следующий кадр из очереди клиента
func next(t *testing.T, c *Client) OutboundFrame {
	t.Helper()
	select {
	case raw := <-c.Outbound():
		var f OutboundFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return OutboundFrame{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Outbound():
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func TestSendToUser_UnknownUser(t *testing.T) {
	h := newTestHub()
	assert.False(t, h.SendToUser("nobody", EventNotificationNew, map[string]string{"id": "1"}))
}

func TestSendToUser_Registered(t *testing.T) {
	h := newTestHub()
	c := h.Connect(0)
	require.NoError(t, h.Register(c.ID, "u1"))

	assert.True(t, h.SendToUser("u1", EventNotificationNew, map[string]string{"title": "hi"}))

	f := next(t, c)
	assert.Equal(t, EventNotificationNew, f.Event)
	assert.Equal(t, map[string]interface{}{"title": "hi"}, f.Data)
}

func TestRegister_Validation(t *testing.T) {
	h := newTestHub()
	c := h.Connect(0)

	assert.ErrorIs(t, h.Register(c.ID, ""), errs.ErrValueIsRequired)
	assert.True(t, errs.IsNotFound(h.Register("missing", "u1")))
	require.NoError(t, h.Register(c.ID, "u1"))
	require.NoError(t, h.Register(c.ID, "u1"), "re-registration on the same socket is idempotent")
	assert.Equal(t, 1, h.Stats().UserSockets)
}

func TestRegister_LastRegistrationWins(t *testing.T) {
	h := newTestHub()
	first := h.Connect(0)
	second := h.Connect(0)

	require.NoError(t, h.Register(first.ID, "u1"))
	require.NoError(t, h.Register(second.ID, "u1"))

	socket, ok := h.userSocket("u1")
	require.True(t, ok)
	assert.Equal(t, second.ID, socket)

	require.True(t, h.SendToUser("u1", EventNotificationNew, nil))
	assert.Equal(t, EventNotificationNew, next(t, second).Event)
	assertEmpty(t, first)

	// отключение старого сокета не снимает новую привязку
	h.LeaveAll(first.ID)
	socket, ok = h.userSocket("u1")
	require.True(t, ok)
	assert.Equal(t, second.ID, socket)

	h.LeaveAll(second.ID)
	_, ok = h.userSocket("u1")
	assert.False(t, ok)
}

func TestJoinRoom(t *testing.T) {
	h := newTestHub()
	c := h.Connect(0)

	ack, err := h.JoinRoom(c.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, JoinAck{OK: true, Joined: "order:42"}, ack)

	_, err = h.JoinRoom(c.ID, "")
	assert.ErrorIs(t, err, errs.ErrValueIsRequired)

	_, err = h.JoinRoom("missing", "42")
	assert.True(t, errs.IsNotFound(err))
}

func TestSendToRoom_ExcludesSender(t *testing.T) {
	h := newTestHub()
	shipper := h.Connect(0)
	customer := h.Connect(0)
	outsider := h.Connect(0)

	_, err := h.JoinRoom(shipper.ID, "42")
	require.NoError(t, err)
	_, err = h.JoinRoom(customer.ID, "42")
	require.NoError(t, err)
	_, err = h.JoinRoom(outsider.ID, "7")
	require.NoError(t, err)

	n := h.SendToRoom("42", EventLocationUpdated, map[string]float64{"latitude": 10.7}, shipper.ID)
	assert.Equal(t, 1, n)

	f := next(t, customer)
	assert.Equal(t, EventLocationUpdated, f.Event)
	assertEmpty(t, shipper)
	assertEmpty(t, outsider)

	assert.Equal(t, 2, h.SendToRoom("42", EventOrderStatusUpdated, nil, ""))
	assert.Equal(t, 0, h.SendToRoom("unknown", EventOrderStatusUpdated, nil, ""))
}

func TestSendToRoom_FIFOPerSender(t *testing.T) {
	h := newTestHub()
	sender := h.Connect(0)
	receiver := h.Connect(64)
	_, _ = h.JoinRoom(sender.ID, "1")
	_, _ = h.JoinRoom(receiver.ID, "1")

	for i := 0; i < 20; i++ {
		h.SendToRoom("1", EventMessageReceived, map[string]int{"seq": i}, sender.ID)
	}

	for i := 0; i < 20; i++ {
		f := next(t, receiver)
		assert.Equal(t, float64(i), f.Data.(map[string]interface{})["seq"])
	}
}

func TestSendToRoom_FullQueueDropsOnlyForSlowClient(t *testing.T) {
	h := newTestHub()
	slow := h.Connect(1)
	fast := h.Connect(16)
	_, _ = h.JoinRoom(slow.ID, "1")
	_, _ = h.JoinRoom(fast.ID, "1")

	assert.Equal(t, 2, h.SendToRoom("1", EventLocationUpdated, nil, ""))
	assert.Equal(t, 1, h.SendToRoom("1", EventLocationUpdated, nil, ""), "slow client queue is full")

	next(t, fast)
	next(t, fast)
	next(t, slow)
	assertEmpty(t, slow)
}

func TestLeaveAll_RemovesMemberships(t *testing.T) {
	h := newTestHub()
	a := h.Connect(0)
	b := h.Connect(0)
	require.NoError(t, h.Register(a.ID, "courier-1"))
	_, _ = h.JoinRoom(a.ID, "1")
	_, _ = h.JoinRoom(a.ID, "2")
	_, _ = h.JoinRoom(b.ID, "2")

	h.LeaveAll(a.ID)

	select {
	case <-a.Done():
	default:
		t.Fatal("client must be closed")
	}

	assert.Equal(t, 0, h.SendToRoom("1", EventLocationUpdated, nil, ""))
	assert.Equal(t, 1, h.SendToRoom("2", EventLocationUpdated, nil, ""))
	assert.False(t, h.SendToUser("courier-1", EventNotificationNew, nil))
	assert.Equal(t, Stats{Connections: 1, UserSockets: 0, Rooms: 1}, h.Stats())

	h.LeaveAll(a.ID) // повторный вызов безопасен
}

func TestShutdown(t *testing.T) {
	h := newTestHub()
	for i := 0; i < 3; i++ {
		h.Connect(0)
	}
	h.Shutdown()
	assert.Equal(t, Stats{}, h.Stats())
}

func TestHub_ConcurrentUse(t *testing.T) {
	h := newTestHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := h.Connect(4)
			_ = h.Register(c.ID, fmt.Sprintf("user-%d", i%5))
			_, _ = h.JoinRoom(c.ID, fmt.Sprintf("%d", i%3))
			for j := 0; j < 10; j++ {
				h.SendToRoom(fmt.Sprintf("%d", j%3), EventLocationUpdated, j, c.ID)
				h.SendToUser(fmt.Sprintf("user-%d", j%5), EventNotificationNew, j)
			}
			h.LeaveAll(c.ID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, Stats{}, h.Stats())
}
