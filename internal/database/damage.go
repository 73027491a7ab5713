package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fieldhire/internal/models"
)

func (db *DB) CreateDamageReport(ctx context.Context, report *models.DamageReport) error {
	query := `INSERT INTO damage_reports (booking_id, description, status, created_at)
              VALUES (?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		report.BookingID, report.Description, models.DamagePending, now)
	if err != nil {
		return fmt.Errorf("failed to create damage report: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get damage report id: %w", err)
	}
	report.ID = id
	report.Status = models.DamagePending
	report.CreatedAt = now
	return nil
}

func (db *DB) GetDamageReport(ctx context.Context, id int64) (*models.DamageReport, error) {
	query := `SELECT id, booking_id, description, status, created_at, resolved_at
              FROM damage_reports WHERE id = ?`
	r := &models.DamageReport{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.BookingID, &r.Description, &r.Status, &r.CreatedAt, &r.ResolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get damage report: %w", err)
	}
	return r, nil
}

// ResolveDamageReport marks a claim resolved. Resolving an already-resolved
// claim is a no-op, so the guarded update only touches pending rows.
func (db *DB) ResolveDamageReport(ctx context.Context, id int64) error {
	if _, err := db.GetDamageReport(ctx, id); err != nil {
		return err
	}
	query := `UPDATE damage_reports SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`
	_, err := db.ExecContext(ctx, query, models.DamageResolved, time.Now(), id, models.DamagePending)
	if err != nil {
		return fmt.Errorf("failed to resolve damage report: %w", err)
	}
	return nil
}
