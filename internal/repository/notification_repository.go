package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores n and trims the user's inbox down to the newest keep rows.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification, keep int) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const insert = `
INSERT INTO notifications (user_id, type, title, message, link, is_read, created_at)
VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?)`
	res, err := tx.ExecContext(ctx, insert, n.UserID, n.Type, n.Title, n.Message, n.Link, false, n.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	if keep > 0 {
		var cutoff int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM notifications WHERE user_id = ? ORDER BY id DESC LIMIT 1 OFFSET ?`, n.UserID, keep).Scan(&cutoff)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("find trim cutoff: %w", err)
		default:
			if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = ? AND id <= ?`, n.UserID, cutoff); err != nil {
				return fmt.Errorf("trim notifications: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notification: %w", err)
	}
	n.ID = id
	n.IsRead = false
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	const query = `
SELECT id, user_id, type, title, message, COALESCE(link, ''), is_read, created_at
FROM notifications WHERE user_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = ?`, userID, false).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead flags one notification owned by userID. Marking an already read
// notification succeeds.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id int64) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE id = ? AND user_id = ?`, id, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("find notification: %w", err)
	}
	if exists == 0 {
		return ErrNotificationNotFound
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?`, true, id, userID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = ? WHERE user_id = ? AND is_read = ?`, true, userID, false)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
