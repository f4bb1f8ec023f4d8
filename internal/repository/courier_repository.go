package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"delivery-dispatch/internal/database"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/registry"

	"github.com/sirupsen/logrus"
)

// CourierRepository читает и сохраняет состояние курьеров для реестра
type CourierRepository struct {
	db  *database.DB
	log *logger.Logger
}

// NewCourierRepository создает репозиторий курьеров
func NewCourierRepository(db *database.DB, log *logger.Logger) *CourierRepository {
	return &CourierRepository{
		db:  db,
		log: log,
	}
}

// ListActive возвращает активных курьеров с последним известным состоянием
func (r *CourierRepository) ListActive(ctx context.Context) ([]models.Courier, error) {
	query := `
		SELECT id, status, current_lat, current_lon
		FROM couriers
		WHERE is_active = true
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list couriers: %w", err)
	}
	defer rows.Close()

	var couriers []models.Courier
	for rows.Next() {
		var (
			c        models.Courier
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &c.Availability, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan courier: %w", err)
		}
		if lat.Valid && lon.Valid {
			c.Location = &models.Coordinate{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		couriers = append(couriers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate couriers: %w", err)
	}

	return couriers, nil
}

// SaveState сохраняет статус и координаты курьера
func (r *CourierRepository) SaveState(ctx context.Context, c models.Courier) error {
	var lat, lon sql.NullFloat64
	if c.Location != nil {
		lat = sql.NullFloat64{Float64: c.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: c.Location.Longitude, Valid: true}
	}

	query := `
		INSERT INTO couriers (id, status, current_lat, current_lon, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, $5, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
			current_lat = COALESCE(EXCLUDED.current_lat, couriers.current_lat),
			current_lon = COALESCE(EXCLUDED.current_lon, couriers.current_lon),
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Availability, lat, lon, time.Now()); err != nil {
		return fmt.Errorf("failed to save courier state: %w", err)
	}
	return nil
}

// Deactivate исключает курьера из прогрева реестра
func (r *CourierRepository) Deactivate(ctx context.Context, courierID string) error {
	query := `UPDATE couriers SET is_active = false, updated_at = $1 WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), courierID); err != nil {
		return fmt.Errorf("failed to deactivate courier: %w", err)
	}
	return nil
}

// WarmUp загружает активных курьеров в реестр и возвращает их число
func (r *CourierRepository) WarmUp(ctx context.Context, reg registry.Registry) (int, error) {
	couriers, err := r.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, c := range couriers {
		if err := reg.Put(c); err != nil {
			r.log.WithError(err).WithField("courier_id", c.ID).Warn("Skipping courier during warm-up")
			continue
		}
		loaded++
	}

	r.log.WithFields(logrus.Fields{
		"loaded":  loaded,
		"skipped": len(couriers) - loaded,
	}).Info("Courier registry warmed up")

	return loaded, nil
}
