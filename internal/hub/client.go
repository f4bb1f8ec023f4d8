package hub

import (
	"errors"
	"sync"

	"delivery-dispatch/internal/errs"
)

var (
	errClientClosed = errors.New("client closed")
	errQueueFull    = errors.New("outbound queue full")
)

// Client представляет одно соединение. Исходящие кадры складываются в
// ограниченную очередь, которую разбирает единственный писатель.
type Client struct {
	ID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// защищены Hub.mu
	userIDs map[string]struct{}
	rooms   map[string]struct{}
}

func newClient(id string, buffer int) *Client {
	return &Client{
		ID:      id,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
		userIDs: make(map[string]struct{}),
		rooms:   make(map[string]struct{}),
	}
}

// Outbound возвращает очередь исходящих кадров
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Done закрывается после отключения клиента
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// enqueue никогда не блокируется: при переполненной очереди кадр отбрасывается
func (c *Client) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return errs.NewTransportError(c.ID, errClientClosed)
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return errs.NewTransportError(c.ID, errQueueFull)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
