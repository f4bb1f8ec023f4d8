package services

import (
	"context"
	"fmt"

	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"

	"github.com/sirupsen/logrus"
)

// Тексты уведомлений клиенту по статусам заказа
var customerStatusMessages = map[models.OrderStatus]string{
	models.OrderStatusConfirmed:  "Your order has been confirmed",
	models.OrderStatusCooking:    "The restaurant is preparing your food",
	models.OrderStatusPickingUp:  "The courier is on the way to pick up your order",
	models.OrderStatusDelivering: "The courier is delivering your order",
	models.OrderStatusDelivered:  "Your order has been delivered",
	models.OrderStatusCancelled:  "Your order has been cancelled",
}

const defaultCustomerStatusMessage = "Your order has been updated"

// Курьер получает уведомления только об этих статусах
var courierStatusMessages = map[models.OrderStatus]string{
	models.OrderStatusConfirmed: "Order #%s is confirmed and ready for pick-up",
	models.OrderStatusCancelled: "Order #%s has been cancelled",
}

// OrderEventService связывает жизненный цикл заказа с диспетчеризацией и уведомлениями
type OrderEventService struct {
	dispatch  *DispatchService
	broadcast *BroadcastService
	orders    OrderStore
	log       *logger.Logger
}

// NewOrderEventService создает координатор событий заказа
func NewOrderEventService(dispatch *DispatchService, broadcast *BroadcastService, orders OrderStore, log *logger.Logger) *OrderEventService {
	return &OrderEventService{
		dispatch:  dispatch,
		broadcast: broadcast,
		orders:    orders,
		log:       log,
	}
}

// HandleOrderCreated назначает курьера новому заказу и уведомляет курьера и ресторан
func (s *OrderEventService) HandleOrderCreated(ctx context.Context, event models.OrderCreatedEvent) (models.AssignmentResult, error) {
	result, err := s.dispatch.Assign(ctx, event.OrderID, event.RestaurantLocation, 0)
	if err != nil {
		return result, err
	}

	if result.Success {
		_, err := s.broadcast.Notify(ctx, *result.CourierID, models.NotificationTypeNewOrder,
			"New order!",
			s.newOrderMessage(event),
			map[string]interface{}{
				"order_id":        event.OrderID,
				"restaurant_name": event.RestaurantName,
				"total":           event.TotalAmount,
				"distance_km":     result.DistanceKm,
			})
		if err != nil {
			s.log.WithError(err).WithField("order_id", event.OrderID).Error("Failed to notify courier about new order")
		}
	}

	if event.RestaurantOwnerID != "" {
		_, err := s.broadcast.Notify(ctx, event.RestaurantOwnerID, models.NotificationTypeNewOrder,
			"New order!",
			fmt.Sprintf("You have a new order #%s. Total: %.0f. Please confirm it.", event.OrderID, event.TotalAmount),
			map[string]interface{}{
				"order_id":    event.OrderID,
				"customer_id": event.CustomerID,
				"total":       event.TotalAmount,
			})
		if err != nil {
			s.log.WithError(err).WithField("order_id", event.OrderID).Error("Failed to notify restaurant about new order")
		}
	}

	return result, nil
}

// ApplyStatusChange реагирует на уже сохраненную смену статуса: освобождает
// курьера на терминальном статусе, оповещает комнату, клиента и курьера.
func (s *OrderEventService) ApplyStatusChange(ctx context.Context, event models.OrderStatusChangedEvent) error {
	if event.OrderID == "" {
		return errs.NewValueIsRequiredError("orderId")
	}
	if !event.NewStatus.Valid() {
		return errs.NewValueIsInvalidError("status")
	}

	if event.NewStatus.IsTerminal() {
		if event.CourierID != nil {
			if err := s.dispatch.Release(ctx, *event.CourierID); err != nil {
				// неизвестный реестру курьер не мешает оповещению
				s.log.WithError(err).WithField("courier_id", *event.CourierID).Warn("Failed to release courier")
			}
		}
		s.broadcast.ForgetOrder(ctx, event.OrderID)
	}

	if _, err := s.broadcast.OrderStatusUpdated(event.OrderID, event.NewStatus, event.Message); err != nil {
		return err
	}

	title := "Order #" + event.OrderID + " update"
	data := map[string]interface{}{
		"order_id": event.OrderID,
		"status":   event.NewStatus,
	}

	if event.CustomerID != "" {
		message, ok := customerStatusMessages[event.NewStatus]
		if !ok {
			message = defaultCustomerStatusMessage
		}
		if _, err := s.broadcast.Notify(ctx, event.CustomerID, models.OrderNotificationType(event.NewStatus), title, message, data); err != nil {
			s.log.WithError(err).WithField("order_id", event.OrderID).Error("Failed to notify customer")
		}
	}

	if event.CourierID != nil {
		if format, ok := courierStatusMessages[event.NewStatus]; ok {
			message := fmt.Sprintf(format, event.OrderID)
			if _, err := s.broadcast.Notify(ctx, *event.CourierID, models.OrderNotificationType(event.NewStatus), title, message, data); err != nil {
				s.log.WithError(err).WithField("order_id", event.OrderID).Error("Failed to notify courier")
			}
		}
	}

	s.log.WithFields(logrus.Fields{
		"order_id": event.OrderID,
		"status":   event.NewStatus,
	}).Info("Order status change applied")

	return nil
}

// UpdateStatus сохраняет новый статус, присланный курьером, и применяет его
func (s *OrderEventService) UpdateStatus(ctx context.Context, event models.OrderStatusChangedEvent) error {
	if !event.NewStatus.Valid() {
		return errs.NewValueIsInvalidError("status")
	}
	if err := s.orders.SetStatus(ctx, event.OrderID, event.NewStatus); err != nil {
		if errs.IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return s.ApplyStatusChange(ctx, event)
}

func (s *OrderEventService) newOrderMessage(event models.OrderCreatedEvent) string {
	if event.RestaurantName != "" {
		return fmt.Sprintf("You have a new order #%s from %s. Total: %.0f", event.OrderID, event.RestaurantName, event.TotalAmount)
	}
	return fmt.Sprintf("You have a new order #%s. Total: %.0f", event.OrderID, event.TotalAmount)
}
