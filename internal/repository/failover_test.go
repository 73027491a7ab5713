package repository

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Add(ctx context.Context, category, purpose string, date time.Time, bookingID string) error {
	args := m.Called(ctx, category, purpose, date, bookingID)
	return args.Error(0)
}

func (m *mockIndex) Remove(ctx context.Context, category, purpose string, date time.Time, bookingID string) error {
	args := m.Called(ctx, category, purpose, date, bookingID)
	return args.Error(0)
}

func (m *mockIndex) List(ctx context.Context, category, purpose string, date time.Time) ([]string, error) {
	args := m.Called(ctx, category, purpose, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func TestFailoverOfferIndex(t *testing.T) {
	primary := new(mockIndex)
	fallback := new(mockIndex)
	logger := zerolog.New(io.Discard)
	index := NewFailoverOfferIndex(primary, fallback, &logger)
	ctx := context.Background()
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("List", ctx, "Tractor", "plowing", date).Return([]string{"b-1"}, nil).Once()

		ids, err := index.List(ctx, "Tractor", "plowing", date)
		assert.NoError(t, err)
		assert.Equal(t, []string{"b-1"}, ids)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("List", ctx, "Tractor", "plowing", date).Return(nil, errors.New("fail")).Once()
		fallback.On("List", ctx, "Tractor", "plowing", date).Return([]string{"b-2"}, nil).Once()

		ids, err := index.List(ctx, "Tractor", "plowing", date)
		assert.NoError(t, err)
		assert.Equal(t, []string{"b-2"}, ids)
		assert.True(t, index.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		index.isDown.Store(true)
		index.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		primary.On("List", ctx, "Tractor", "plowing", date).Return([]string{"b-3"}, nil).Once()

		ids, err := index.List(ctx, "Tractor", "plowing", date)
		assert.NoError(t, err)
		assert.Equal(t, []string{"b-3"}, ids)
		assert.False(t, index.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		index.isDown.Store(true)
		index.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		primary.On("List", ctx, "Tractor", "plowing", date).Return(nil, errors.New("still fail")).Once()
		fallback.On("List", ctx, "Tractor", "plowing", date).Return([]string{}, nil).Once()

		_, err := index.List(ctx, "Tractor", "plowing", date)
		assert.NoError(t, err)
		assert.True(t, index.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AddSuccess", func(t *testing.T) {
		index.isDown.Store(false)
		primary.On("Add", ctx, "Tractor", "plowing", date, "b-4").Return(nil).Once()

		err := index.Add(ctx, "Tractor", "plowing", date, "b-4")
		assert.NoError(t, err)
		primary.AssertExpectations(t)
	})

	t.Run("AddFailover", func(t *testing.T) {
		index.isDown.Store(false)
		primary.On("Add", ctx, "Tractor", "plowing", date, "b-5").Return(errors.New("fail")).Once()
		fallback.On("Add", ctx, "Tractor", "plowing", date, "b-5").Return(nil).Once()

		err := index.Add(ctx, "Tractor", "plowing", date, "b-5")
		assert.NoError(t, err)
		assert.True(t, index.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RemoveSuccessAlsoCleansFallback", func(t *testing.T) {
		index.isDown.Store(false)
		primary.On("Remove", ctx, "Tractor", "plowing", date, "b-6").Return(nil).Once()
		fallback.On("Remove", ctx, "Tractor", "plowing", date, "b-6").Return(nil).Once()

		err := index.Remove(ctx, "Tractor", "plowing", date, "b-6")
		assert.NoError(t, err)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RemoveFailover", func(t *testing.T) {
		index.isDown.Store(false)
		primary.On("Remove", ctx, "Tractor", "plowing", date, "b-7").Return(errors.New("fail")).Once()
		fallback.On("Remove", ctx, "Tractor", "plowing", date, "b-7").Return(nil).Once()

		err := index.Remove(ctx, "Tractor", "plowing", date, "b-7")
		assert.NoError(t, err)
		assert.True(t, index.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AddAlreadyDown", func(t *testing.T) {
		index.isDown.Store(true)
		fallback.On("Add", ctx, "Tractor", "plowing", date, "b-8").Return(nil).Once()

		err := index.Add(ctx, "Tractor", "plowing", date, "b-8")
		assert.NoError(t, err)
		fallback.AssertExpectations(t)
	})
}

// Concurrent requests hitting a failing primary write and read the recovery
// timestamp at the same time; run with -race.
func TestFailoverOfferIndexConcurrentLists(t *testing.T) {
	primary := new(mockIndex)
	fallback := new(mockIndex)
	logger := zerolog.New(io.Discard)
	index := NewFailoverOfferIndex(primary, fallback, &logger)
	ctx := context.Background()
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	primary.On("List", ctx, "Tractor", "plowing", date).Return(nil, errors.New("down"))
	fallback.On("List", ctx, "Tractor", "plowing", date).Return([]string{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := index.List(ctx, "Tractor", "plowing", date)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, index.isDown.Load())
}
