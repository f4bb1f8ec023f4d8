// Package pushclient - клиент push API для бэкендов, которые сами не держат сокеты.
// Ошибки доставки логируются и не возвращаются: вызывающая сторона получает только
// признак доставки.
package pushclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
)

const defaultTimeout = 2 * time.Second

// Client отправляет события в push API
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// New создает клиент по конфигурации
func New(cfg *config.PushConfig, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type notifyBody struct {
	UserID       string      `json:"user_id"`
	Notification interface{} `json:"notification"`
}

type locationBody struct {
	OrderID   string  `json:"order_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Status    string  `json:"status,omitempty"`
}

type orderStatusBody struct {
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
	Message string             `json:"message,omitempty"`
}

// Notify доставляет уведомление пользователю. notification пересылается как есть,
// обычно это сохраненная запись уведомления.
func (c *Client) Notify(ctx context.Context, userID string, notification interface{}) bool {
	return c.post(ctx, "/api/notify", notifyBody{UserID: userID, Notification: notification})
}

// Location отправляет позицию курьера в комнату заказа
func (c *Client) Location(ctx context.Context, orderID string, coord models.Coordinate, status string) bool {
	return c.post(ctx, "/api/location", locationBody{
		OrderID:   orderID,
		Latitude:  coord.Latitude,
		Longitude: coord.Longitude,
		Status:    status,
	})
}

// OrderStatus рассылает новый статус заказа
func (c *Client) OrderStatus(ctx context.Context, orderID string, status models.OrderStatus, message string) bool {
	return c.post(ctx, "/api/order-status", orderStatusBody{OrderID: orderID, Status: status, Message: message})
}

// CustomerLocation отправляет позицию клиента курьеру заказа
func (c *Client) CustomerLocation(ctx context.Context, orderID string, coord models.Coordinate) bool {
	return c.post(ctx, "/api/customer-location", locationBody{
		OrderID:   orderID,
		Latitude:  coord.Latitude,
		Longitude: coord.Longitude,
	})
}

func (c *Client) post(ctx context.Context, path string, body interface{}) bool {
	result, err := c.do(ctx, path, body)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Warn("Push request failed")
		return false
	}
	return result.Delivered
}

func (c *Client) do(ctx context.Context, path string, body interface{}) (models.DeliveryResult, error) {
	var result models.DeliveryResult

	payload, err := json.Marshal(body)
	if err != nil {
		return result, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return result, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("failed to decode response: %w", err)
	}

	return result, nil
}
