package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"delivery-dispatch/internal/database"
	"delivery-dispatch/internal/errs"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"

	"github.com/google/uuid"
)

// NotificationRepository хранит уведомления пользователей
type NotificationRepository struct {
	db  *database.DB
	log *logger.Logger
}

// NewNotificationRepository создает репозиторий уведомлений
func NewNotificationRepository(db *database.DB, log *logger.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:  db,
		log: log,
	}
}

// Record сохраняет новое непрочитанное уведомление
func (r *NotificationRepository) Record(ctx context.Context, userID, notificationType, title, message string, data map[string]interface{}) (models.Notification, error) {
	if data == nil {
		data = map[string]interface{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return models.Notification{}, fmt.Errorf("failed to marshal notification data: %w", err)
	}

	n := models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notificationType,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO notifications (id, user_id, type, title, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Message, payload, n.CreatedAt)
	if err != nil {
		return models.Notification{}, fmt.Errorf("failed to create notification: %w", err)
	}

	r.log.WithField("notification_id", n.ID).WithField("user_id", userID).Debug("Notification stored")
	return n, nil
}

// ListUnread возвращает непрочитанные уведомления, новые первыми
func (r *NotificationRepository) ListUnread(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, data, created_at, read_at
		FROM notifications
		WHERE user_id = $1 AND read_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	result := make([]models.Notification, 0)
	for rows.Next() {
		var (
			n      models.Notification
			data   []byte
			readAt sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.CreatedAt, &readAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
			}
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		result = append(result, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return result, nil
}

// MarkAsRead отмечает уведомление прочитанным; чужое уведомление считается ненайденным
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id uuid.UUID, userID string) error {
	query := `
		UPDATE notifications
		SET read_at = $1
		WHERE id = $2 AND user_id = $3 AND read_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errs.NewObjectNotFoundError("notificationId", id)
	}
	return nil
}
