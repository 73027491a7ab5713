package database

import (
	"context"
	"fmt"

	"fieldhire/internal/models"
)

func (db *DB) GetAllocations(ctx context.Context, bookingID string) ([]*models.Allocation, error) {
	query := `SELECT id, booking_id, supplier_id, resource_id, quantity, created_at
              FROM allocations WHERE booking_id = ? ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get allocations: %w", err)
	}
	defer rows.Close()

	var allocations []*models.Allocation
	for rows.Next() {
		a := &models.Allocation{}
		err := rows.Scan(&a.ID, &a.BookingID, &a.SupplierID, &a.ResourceID, &a.Quantity, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// GetAllocatedTotal sums committed sub-quantities for a booking.
func (db *DB) GetAllocatedTotal(ctx context.Context, bookingID string) (int64, error) {
	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM allocations WHERE booking_id = ?`,
		bookingID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum allocations: %w", err)
	}
	return total, nil
}
