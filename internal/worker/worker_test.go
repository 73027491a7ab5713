package worker

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fieldhire/internal/database"
	"fieldhire/internal/models"

	"github.com/rs/zerolog"
)

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{}
	logger := zerolog.New(os.Stdout)
	worker := NewNotifyWorker(db, notifier, RetryPolicy{}, &logger)

	ctx := context.Background()
	task := &models.NotificationTask{
		TargetID: "farmer-1",
		Category: models.NotifyCategoryOutcome,
		Message:  "Request accepted",
	}
	if err := db.CreateNotificationTask(ctx, task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	worker.processTask(ctx, task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.NotifyDelivered {
		t.Fatalf("expected status=delivered, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if notifier.calls != 1 {
		t.Fatalf("expected 1 delivery, got %d", notifier.calls)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{err: errors.New("boom")}
	logger := zerolog.New(os.Stdout)
	worker := NewNotifyWorker(db, notifier, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, &logger)

	ctx := context.Background()
	task := &models.NotificationTask{TargetID: "supplier-1", Category: models.NotifyCategoryRequest, Message: "New request"}
	if err := db.CreateNotificationTask(ctx, task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	worker.processTask(ctx, task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.NotifyRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{err: errors.New("fatal")}
	logger := zerolog.New(os.Stdout)
	worker := NewNotifyWorker(db, notifier, RetryPolicy{MaxRetries: 1}, &logger)

	ctx := context.Background()
	task := &models.NotificationTask{TargetID: "supplier-1", Category: models.NotifyCategoryRequest, Message: "New request"}
	if err := db.CreateNotificationTask(ctx, task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	worker.processTask(ctx, task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.NotifyFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestDrainOnceSkipsFutureRetries(t *testing.T) {
	db := newTestDB(t)
	notifier := &fakeNotifier{}
	logger := zerolog.New(os.Stdout)
	worker := NewNotifyWorker(db, notifier, RetryPolicy{}, &logger)

	ctx := context.Background()
	future := time.Now().Add(time.Hour)
	task := &models.NotificationTask{
		TargetID:    "farmer-1",
		Category:    models.NotifyCategoryOutcome,
		Message:     "later",
		Status:      models.NotifyRetry,
		NextRetryAt: &future,
	}
	if err := db.CreateNotificationTask(ctx, task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	worker.drainOnce(ctx)

	if notifier.calls != 0 {
		t.Fatalf("expected no delivery before next_retry_at, got %d", notifier.calls)
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

// Helpers

type fakeNotifier struct {
	err   error
	calls int
}

func (f *fakeNotifier) Notify(ctx context.Context, targetID, category, message string) error {
	f.calls++
	return f.err
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM notify_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
