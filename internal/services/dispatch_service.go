package services

import (
	"context"
	"fmt"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/registry"

	"github.com/sirupsen/logrus"
)

// ReasonNoCourierInRange - причина неуспешного назначения
const ReasonNoCourierInRange = "no courier within range"

// DispatchService назначает заказам ближайших свободных курьеров
type DispatchService struct {
	registry registry.Registry
	orders   OrderStore
	events   EventPublisher
	config   *config.DispatchConfig
	log      *logger.Logger
}

// NewDispatchService создает сервис назначения. events может быть nil,
// если шина событий отключена.
func NewDispatchService(reg registry.Registry, orders OrderStore, events EventPublisher, cfg *config.DispatchConfig, log *logger.Logger) *DispatchService {
	return &DispatchService{
		registry: reg,
		orders:   orders,
		events:   events,
		config:   cfg,
		log:      log,
	}
}

// Assign назначает заказу ближайшего свободного курьера в радиусе maxDistanceKm.
// Если restaurantLocation не передан, координаты ресторана берутся из хранилища
// заказов. Отсутствие кандидата - не ошибка: Success=false и заказ не меняется.
func (s *DispatchService) Assign(ctx context.Context, orderID string, restaurantLocation *models.Coordinate, maxDistanceKm float64) (models.AssignmentResult, error) {
	if orderID == "" {
		return models.AssignmentResult{}, errs.NewValueIsRequiredError("orderId")
	}
	if maxDistanceKm <= 0 {
		maxDistanceKm = s.config.MaxDistanceKm
	}

	origin, err := s.resolveOrigin(ctx, orderID, restaurantLocation)
	if err != nil {
		return models.AssignmentResult{}, err
	}

	courier, distance, ok := s.registry.ClaimNearestAvailable(*origin, maxDistanceKm)
	if !ok {
		s.log.WithFields(logrus.Fields{
			"order_id":        orderID,
			"max_distance_km": maxDistanceKm,
		}).Info("No courier available within range")
		return models.AssignmentResult{Success: false, Reason: ReasonNoCourierInRange}, nil
	}

	if err := s.orders.SetAssignedCourier(ctx, orderID, courier.ID); err != nil {
		// курьер не должен остаться занятым заказом, который на него не записан
		if _, rbErr := s.registry.ReleaseIfBusy(courier.ID); rbErr != nil {
			s.log.WithError(rbErr).WithField("courier_id", courier.ID).Error("Failed to roll back courier claim")
		}
		return models.AssignmentResult{}, fmt.Errorf("failed to assign courier %s to order %s: %w", courier.ID, orderID, err)
	}

	if s.events != nil {
		if err := s.events.PublishCourierAssigned(orderID, courier.ID, distance); err != nil {
			s.log.WithError(err).WithField("order_id", orderID).Warn("Failed to publish courier assigned event")
		}
	}

	s.log.WithFields(logrus.Fields{
		"order_id":    orderID,
		"courier_id":  courier.ID,
		"distance_km": distance,
	}).Info("Courier assigned successfully")

	courierID := courier.ID
	return models.AssignmentResult{
		Success:    true,
		CourierID:  &courierID,
		DistanceKm: distance,
	}, nil
}

// Release возвращает курьера в пул свободных после завершения заказа.
// Для свободного или отключенного курьера вызов ничего не делает.
func (s *DispatchService) Release(ctx context.Context, courierID string) error {
	released, err := s.registry.ReleaseIfBusy(courierID)
	if err != nil {
		return err
	}
	if !released {
		return nil
	}

	if s.events != nil {
		if err := s.events.PublishCourierReleased(courierID); err != nil {
			s.log.WithError(err).WithField("courier_id", courierID).Warn("Failed to publish courier released event")
		}
	}

	s.log.WithField("courier_id", courierID).Info("Courier released")
	return nil
}

// RetryUnassigned повторяет назначение для заказов, оставшихся без курьера.
// Возвращает число успешно назначенных заказов.
func (s *DispatchService) RetryUnassigned(ctx context.Context) (int, error) {
	orders, err := s.orders.ListUnassigned(ctx, s.config.RetryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unassigned orders: %w", err)
	}

	assigned := 0
	for _, order := range orders {
		if ctx.Err() != nil {
			return assigned, ctx.Err()
		}

		result, err := s.Assign(ctx, order.ID, order.RestaurantLocation, 0)
		if err != nil {
			s.log.WithError(err).WithField("order_id", order.ID).Warn("Retry assignment failed")
			continue
		}
		if result.Success {
			assigned++
		}
	}

	return assigned, nil
}

func (s *DispatchService) resolveOrigin(ctx context.Context, orderID string, location *models.Coordinate) (*models.Coordinate, error) {
	if location == nil {
		stored, err := s.orders.GetRestaurantLocation(ctx, orderID)
		if err != nil {
			if errs.IsNotFound(err) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to get restaurant location: %w", err)
		}
		location = stored
	}

	if location == nil {
		return nil, errs.NewObjectNotFoundError("restaurantLocation", orderID)
	}
	if err := location.Validate(); err != nil {
		return nil, errs.NewObjectNotFoundErrorWithCause("restaurantLocation", orderID, err)
	}
	return location, nil
}
