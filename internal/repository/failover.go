package repository

import (
	"context"
	"sync/atomic"
	"time"

	"fieldhire/internal/domain"

	"github.com/rs/zerolog"
)

type FailoverOfferIndex struct {
	primary  domain.OfferIndex
	fallback domain.OfferIndex
	logger   *zerolog.Logger
	isDown   atomic.Bool
	// lastCheck holds a UnixNano timestamp; requests race on it.
	lastCheck atomic.Int64
}

func NewFailoverOfferIndex(primary, fallback domain.OfferIndex, logger *zerolog.Logger) *FailoverOfferIndex {
	return &FailoverOfferIndex{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverOfferIndex) Add(ctx context.Context, category, purpose string, date time.Time, bookingID string) error {
	if !r.isDown.Load() {
		err := r.primary.Add(ctx, category, purpose, date, bookingID)
		if err == nil {
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary offer index failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Add(ctx, category, purpose, date, bookingID)
}

func (r *FailoverOfferIndex) Remove(ctx context.Context, category, purpose string, date time.Time, bookingID string) error {
	if !r.isDown.Load() {
		err := r.primary.Remove(ctx, category, purpose, date, bookingID)
		if err == nil {
			// Keep the fallback consistent in case earlier writes landed there.
			_ = r.fallback.Remove(ctx, category, purpose, date, bookingID)
			return nil
		}
		r.logger.Error().Err(err).Msg("Primary offer index failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Remove(ctx, category, purpose, date, bookingID)
}

func (r *FailoverOfferIndex) List(ctx context.Context, category, purpose string, date time.Time) ([]string, error) {
	if !r.isDown.Load() {
		ids, err := r.primary.List(ctx, category, purpose, date)
		if err == nil {
			return ids, nil
		}
		r.logger.Error().Err(err).Msg("Primary offer index failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute {
		ids, err := r.primary.List(ctx, category, purpose, date)
		if err == nil {
			r.isDown.Store(false)
			return ids, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.List(ctx, category, purpose, date)
}
