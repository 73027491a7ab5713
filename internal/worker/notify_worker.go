package worker

import (
	"context"
	"time"

	"fieldhire/internal/domain"
	"fieldhire/internal/metrics"
	"fieldhire/internal/models"

	"github.com/rs/zerolog"
)

// NotifyWorker drains the notify_queue table and hands each task to the
// configured Notifier. Failures schedule a retry with backoff; a task that
// exhausts its retries is marked failed and logged, never re-raised into
// booking state.
type NotifyWorker struct {
	repo         domain.Repository
	notifier     domain.Notifier
	retryPolicy  RetryPolicy
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
}

// NewNotifyWorker builds a worker with sane defaults.
func NewNotifyWorker(repo domain.Repository, notifier domain.Notifier, retry RetryPolicy, logger *zerolog.Logger) *NotifyWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &NotifyWorker{
		repo:         repo,
		notifier:     notifier,
		retryPolicy:  retry,
		pollInterval: 2 * time.Second,
		batchSize:    models.NotifyQueueBatch,
		logger:       logger,
	}
}

// Start launches the main loop; stops when ctx is done.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notify worker started")
	defer w.logger.Info().Msg("notify worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainOnce(ctx)
		}
	}
}

func (w *NotifyWorker) drainOnce(ctx context.Context) {
	tasks, err := w.repo.GetPendingNotificationTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("fetch pending notifications failed")
		return
	}
	for _, task := range tasks {
		w.processTask(ctx, task)
	}
}

func (w *NotifyWorker) processTask(ctx context.Context, task *models.NotificationTask) {
	err := w.notifier.Notify(ctx, task.TargetID, task.Category, task.Message)
	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncNotification(models.NotifyDelivered)
	if err := w.repo.UpdateNotificationTaskStatus(ctx, task.ID, models.NotifyDelivered, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark delivered failed")
	}
}

func (w *NotifyWorker) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		metrics.IncNotification(models.NotifyFailed)
		w.logger.Error().Err(cause).
			Int64("task_id", task.ID).
			Str("target_id", task.TargetID).
			Msg("notification failed permanently")
		if err := w.repo.UpdateNotificationTaskStatus(ctx, task.ID, models.NotifyFailed, cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed failed")
		}
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	metrics.IncNotification(models.NotifyRetry)
	if err := w.repo.UpdateNotificationTaskStatus(ctx, task.ID, models.NotifyRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry failed")
	}
}
