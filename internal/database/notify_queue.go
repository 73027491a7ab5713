package database

import (
	"context"
	"fmt"
	"time"

	"fieldhire/internal/models"
)

func (db *DB) CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error {
	query := `INSERT INTO notify_queue (target_id, category, message, booking_id, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	if task.Status == "" {
		task.Status = models.NotifyPending
	}
	result, err := db.ExecContext(ctx, query,
		task.TargetID,
		task.Category,
		task.Message,
		task.BookingID,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

func (db *DB) GetPendingNotificationTasks(ctx context.Context, limit int) ([]*models.NotificationTask, error) {
	query := `SELECT id, target_id, category, message, booking_id, status, retry_count, last_error, created_at, delivered_at, next_retry_at
              FROM notify_queue
              WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending notification tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.NotificationTask
	for rows.Next() {
		t := &models.NotificationTask{}
		err := rows.Scan(
			&t.ID, &t.TargetID, &t.Category, &t.Message, &t.BookingID, &t.Status,
			&t.RetryCount, &t.LastError, &t.CreatedAt, &t.DeliveredAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) UpdateNotificationTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.NotifyRetry:
		query = `UPDATE notify_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case models.NotifyDelivered, models.NotifyFailed:
		query = `UPDATE notify_queue SET status = ?, last_error = ?, next_retry_at = ?, delivered_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE notify_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	_, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update notification task status: %w", err)
	}
	return nil
}
