package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/model"
)

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, user_id, type, title, body, is_read, is_deleted,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		n.Body,
		n.IsRead,
		n.IsDeleted,
		n.CreatedBy,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	query := `
		SELECT id, user_id, type, title, body, is_read, is_deleted,
			   created_by, created_at, updated_at
		FROM notifications
		WHERE user_id = $1 AND NOT is_deleted
		ORDER BY created_at DESC
	`
	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) ListAll(ctx context.Context) ([]*model.Notification, error) {
	query := `
		SELECT id, user_id, type, title, body, is_read, is_deleted,
			   created_by, created_at, updated_at
		FROM notifications
		WHERE NOT is_deleted
		ORDER BY created_at DESC
	`
	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkAllRead is idempotent; zero affected rows is not an error.
func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE notifications SET is_read = true, updated_at = NOW() WHERE user_id = $1 AND NOT is_read AND NOT is_deleted`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return r.setFlag(ctx, `UPDATE notifications SET is_read = true, updated_at = NOW() WHERE id = $1 AND user_id = $2 AND NOT is_deleted`, id, userID)
}

func (r *notificationRepository) SoftDelete(ctx context.Context, id, userID uuid.UUID) error {
	return r.setFlag(ctx, `UPDATE notifications SET is_deleted = true, updated_at = NOW() WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *notificationRepository) setFlag(ctx context.Context, query string, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNoRows
	}
	return nil
}
