package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldhire/internal/models"
)

const bookingColumns = `id, farmer_id, supplier_id, resource_id, category, purpose,
       quantity, remaining_quantity, allow_multiple, preferred_model,
       operator_required, operate_self, parent_id, date(date), start_minute,
       duration_minutes, status, final_price, otp_code, dispute_raised,
       dispute_resolved, damage_reported, cancel_reason, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var dateStr string
	err := row.Scan(
		&b.ID, &b.FarmerID, &b.SupplierID, &b.ResourceID, &b.Category, &b.Purpose,
		&b.Quantity, &b.RemainingQuantity, &b.AllowMultipleSuppliers, &b.PreferredModel,
		&b.OperatorRequired, &b.OperateSelf, &b.ParentID, &dateStr, &b.StartMinute,
		&b.DurationMinutes, &b.Status, &b.FinalPrice, &b.OTPCode, &b.DisputeRaised,
		&b.DisputeResolved, &b.DamageReported, &b.CancelReason, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Date, err = time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	return b, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				id, farmer_id, supplier_id, resource_id, category, purpose,
				quantity, remaining_quantity, allow_multiple, preferred_model,
				operator_required, operate_self, parent_id, date, start_minute,
				duration_minutes, status, cancel_reason, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?, 1)`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		booking.ID,
		booking.FarmerID,
		booking.SupplierID,
		booking.ResourceID,
		booking.Category,
		booking.Purpose,
		booking.Quantity,
		booking.RemainingQuantity,
		booking.AllowMultipleSuppliers,
		booking.PreferredModel,
		booking.OperatorRequired,
		booking.OperateSelf,
		booking.ParentID,
		booking.Date.Format("2006-01-02"),
		booking.StartMinute,
		booking.DurationMinutes,
		booking.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (db *DB) GetBookingsByIDs(ctx context.Context, ids []string) ([]*models.Booking, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id IN (` + placeholders + `) ORDER BY date ASC`
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return db.queryBookings(ctx, query, args...)
}

func (db *DB) ListOpenBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status IN (?, ?, ?) ORDER BY date ASC, start_minute ASC`
	return db.queryBookings(ctx, query,
		models.StatusSearching, models.StatusPendingConfirmation, models.StatusAwaitingOperator)
}

func (db *DB) GetFarmerBookings(ctx context.Context, farmerID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE farmer_id = ? ORDER BY date DESC, created_at DESC`
	return db.queryBookings(ctx, query, farmerID)
}

func (db *DB) GetSupplierBookings(ctx context.Context, supplierID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE supplier_id = ?
                 OR id IN (SELECT booking_id FROM allocations WHERE supplier_id = ?)
              ORDER BY date DESC, created_at DESC`
	return db.queryBookings(ctx, query, supplierID, supplierID)
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE date(date) >= ? AND date(date) <= ? ORDER BY date ASC, start_minute ASC`
	return db.queryBookings(ctx, query, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// GetActiveSupplierBookings returns every commitment of a supplier on a date
// that still counts for conflict detection: bookings the supplier holds
// directly plus splittable bookings the supplier joined via an allocation.
func (db *DB) GetActiveSupplierBookings(ctx context.Context, supplierID string, date time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE date(date) = date(?)
                AND status NOT IN (?, ?, ?)
                AND (supplier_id = ?
                     OR id IN (SELECT booking_id FROM allocations WHERE supplier_id = ?))
              ORDER BY start_minute ASC`
	return db.queryBookings(ctx, query,
		date.Format("2006-01-02"),
		models.StatusCancelled, models.StatusExpired, models.StatusCompleted,
		supplierID, supplierID)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// ClaimExclusiveWithVersion is the at-most-one-winner commit for exclusive
// accepts: supplier, resource and status are set in a single compare-and-set
// against the version the caller read. A losing racer gets
// ErrConcurrentModification and must re-fetch.
func (db *DB) ClaimExclusiveWithVersion(ctx context.Context, id string, fromVersion int64, supplierID, resourceID string, operateSelf bool, status string) error {
	query := `UPDATE bookings
              SET supplier_id = ?, resource_id = ?, operate_self = ?, status = ?,
                  version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND status IN (?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		supplierID, resourceID, operateSelf, status, time.Now(),
		id, fromVersion,
		models.StatusSearching, models.StatusPendingConfirmation, models.StatusAwaitingOperator)
	if err != nil {
		return fmt.Errorf("failed to claim booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// AllocateWithLock records a partial accept inside a serialized transaction.
// The remaining quantity is re-read under the transaction, so concurrent
// allocations can never push the committed total past the requested quantity.
// Returns the remaining quantity after this allocation; zero means the
// booking transitioned to confirmed.
func (db *DB) AllocateWithLock(ctx context.Context, alloc *models.Allocation) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status string
	var remaining int64
	var allowMultiple bool
	err = tx.QueryRowContext(ctx,
		`SELECT status, remaining_quantity, allow_multiple FROM bookings WHERE id = ?`,
		alloc.BookingID).Scan(&status, &remaining, &allowMultiple)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read booking in tx: %w", err)
	}

	if status != models.StatusSearching || !allowMultiple {
		return 0, ErrInvalidState
	}
	if alloc.Quantity <= 0 || alloc.Quantity > remaining {
		return remaining, ErrQuantityExceeded
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO allocations (booking_id, supplier_id, resource_id, quantity, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		alloc.BookingID, alloc.SupplierID, alloc.ResourceID, alloc.Quantity, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert allocation in tx: %w", err)
	}

	newRemaining := remaining - alloc.Quantity
	if newRemaining == 0 {
		// Fully allocated: the last accepter lands on the booking record,
		// the allocation rows carry the full fan-out.
		_, err = tx.ExecContext(ctx,
			`UPDATE bookings SET remaining_quantity = 0, status = ?, supplier_id = ?, resource_id = ?,
                    version = version + 1, updated_at = ? WHERE id = ?`,
			models.StatusConfirmed, alloc.SupplierID, alloc.ResourceID, now, alloc.BookingID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE bookings SET remaining_quantity = ?, version = version + 1, updated_at = ? WHERE id = ?`,
			newRemaining, now, alloc.BookingID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update remaining quantity in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit allocation: %w", err)
	}
	alloc.CreatedAt = now
	return newRemaining, nil
}

// ReleaseDirectWithVersion returns a rejected direct request to the
// broadcast pool: the targeted supplier and resource are cleared and the
// booking re-enters searching.
func (db *DB) ReleaseDirectWithVersion(ctx context.Context, id string, fromVersion int64) error {
	query := `UPDATE bookings
              SET supplier_id = '', resource_id = '', status = ?,
                  version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND status = ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusSearching, time.Now(), id, fromVersion, models.StatusPendingConfirmation)
	if err != nil {
		return fmt.Errorf("failed to release direct booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) CancelBookingWithVersion(ctx context.Context, id string, fromVersion int64, reason string) error {
	query := `UPDATE bookings SET status = ?, cancel_reason = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND status NOT IN (?, ?)`
	result, err := db.ExecContext(ctx, query,
		models.StatusCancelled, reason, time.Now(), id, fromVersion,
		models.StatusCompleted, models.StatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) SetArrivedWithVersion(ctx context.Context, id string, fromVersion int64, otpCode string) error {
	query := `UPDATE bookings SET status = ?, otp_code = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND status = ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusArrived, otpCode, time.Now(), id, fromVersion, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to mark booking arrived: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) FinalizePaymentWithVersion(ctx context.Context, id string, fromVersion int64, price float64) error {
	query := `UPDATE bookings SET status = ?, final_price = ?, version = version + 1, updated_at = ?
              WHERE id = ? AND version = ? AND status = ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusCompleted, price, time.Now(), id, fromVersion, models.StatusPendingPayment)
	if err != nil {
		return fmt.Errorf("failed to finalize payment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// ExpireElapsed moves unaccepted bookings whose scheduled window has fully
// passed to expired and returns them. Bookings claimed between the read and
// the guarded update are skipped.
func (db *DB) ExpireElapsed(ctx context.Context, now time.Time) ([]*models.Booking, error) {
	today := now.Format("2006-01-02")
	nowMinute := now.Hour()*60 + now.Minute()

	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE status IN (?, ?)
                AND (date(date) < date(?) OR (date(date) = date(?) AND start_minute + duration_minutes <= ?))`
	candidates, err := db.queryBookings(ctx, query,
		models.StatusSearching, models.StatusPendingConfirmation, today, today, nowMinute)
	if err != nil {
		return nil, err
	}

	var expired []*models.Booking
	for _, b := range candidates {
		result, err := db.ExecContext(ctx,
			`UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
             WHERE id = ? AND status = ?`,
			models.StatusExpired, time.Now(), b.ID, b.Status)
		if err != nil {
			return expired, fmt.Errorf("failed to expire booking %s: %w", b.ID, err)
		}
		if rows, _ := result.RowsAffected(); rows == 1 {
			b.Status = models.StatusExpired
			expired = append(expired, b)
		}
	}
	return expired, nil
}

// Dispute and damage flags stay writable after a booking turns terminal;
// they are the only post-hoc fields. Resolution is idempotent.

func (db *DB) SetDisputeRaised(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET dispute_raised = 1, dispute_resolved = 0, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to raise dispute: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) SetDisputeResolved(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET dispute_resolved = 1, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve dispute: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) SetDamageReported(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET damage_reported = 1, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to flag damage: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}
