package dispatch

import (
	"context"

	"fieldhire/internal/domain"
	"fieldhire/internal/models"

	"github.com/rs/zerolog"
)

// enqueueNotification records a fire-and-forget delivery for the worker.
// Failures are logged and swallowed; they never roll back booking state.
func enqueueNotification(ctx context.Context, repo domain.Repository, logger *zerolog.Logger, targetID, category, message, bookingID string) {
	task := &models.NotificationTask{
		TargetID:  targetID,
		Category:  category,
		Message:   message,
		BookingID: bookingID,
	}
	if err := repo.CreateNotificationTask(ctx, task); err != nil {
		logger.Error().Err(err).
			Str("target_id", targetID).
			Str("booking_id", bookingID).
			Msg("notification enqueue failed")
	}
}
