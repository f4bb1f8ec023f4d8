package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"delivery-dispatch/internal/database"
	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"

	"github.com/sirupsen/logrus"
)

// OrderRepository читает и обновляет поля заказа, нужные диспетчеризации
type OrderRepository struct {
	db  *database.DB
	log *logger.Logger
}

// NewOrderRepository создает репозиторий заказов
func NewOrderRepository(db *database.DB, log *logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:  db,
		log: log,
	}
}

// GetRestaurantLocation возвращает координаты ресторана заказа; nil, если они не заданы
func (r *OrderRepository) GetRestaurantLocation(ctx context.Context, orderID string) (*models.Coordinate, error) {
	query := `
		SELECT restaurant_lat, restaurant_lon
		FROM orders
		WHERE id = $1
	`

	var lat, lon sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(&lat, &lon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewObjectNotFoundError("orderId", orderID)
		}
		return nil, fmt.Errorf("failed to get restaurant location: %w", err)
	}

	if !lat.Valid || !lon.Valid {
		return nil, nil
	}
	return &models.Coordinate{Latitude: lat.Float64, Longitude: lon.Float64}, nil
}

// SetAssignedCourier записывает назначенного курьера
func (r *OrderRepository) SetAssignedCourier(ctx context.Context, orderID, courierID string) error {
	query := `
		UPDATE orders
		SET courier_id = $1, updated_at = $2
		WHERE id = $3
	`

	if err := r.execOne(ctx, query, orderID, courierID, time.Now(), orderID); err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"order_id":   orderID,
		"courier_id": courierID,
	}).Debug("Order courier updated")
	return nil
}

// SetStatus обновляет статус заказа
func (r *OrderRepository) SetStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	if err := r.execOne(ctx, query, orderID, status, time.Now(), orderID); err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("Order status updated")
	return nil
}

// ListUnassigned возвращает самые старые заказы в статусе PENDING без курьера
func (r *OrderRepository) ListUnassigned(ctx context.Context, limit int) ([]models.Order, error) {
	query := `
		SELECT id, restaurant_lat, restaurant_lon, status, updated_at
		FROM orders
		WHERE status = $1 AND courier_id IS NULL
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, models.OrderStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unassigned orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var (
			order    models.Order
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&order.ID, &lat, &lon, &order.Status, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if lat.Valid && lon.Valid {
			order.RestaurantLocation = &models.Coordinate{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

func (r *OrderRepository) execOne(ctx context.Context, query, orderID string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errs.NewObjectNotFoundError("orderId", orderID)
	}
	return nil
}
