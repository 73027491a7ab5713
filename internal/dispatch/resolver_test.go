package dispatch

import (
	"context"
	"testing"

	"fieldhire/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaiseDispute(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	t.Run("unaccepted request has no counterparty", func(t *testing.T) {
		booking := seedBooking(t, eng, models.StatusSearching)
		_, err := eng.resolver.RaiseDispute(ctx, booking.ID, "farmer-1")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("either party may raise on a commitment", func(t *testing.T) {
		booking := seedBooking(t, eng, models.StatusConfirmed)
		disputed, err := eng.resolver.RaiseDispute(ctx, booking.ID, "supplier-1")
		require.NoError(t, err)
		assert.True(t, disputed.DisputeRaised)
		assert.False(t, disputed.DisputeResolved)
		// Status is untouched; the dispute runs alongside the lifecycle.
		assert.Equal(t, models.StatusConfirmed, disputed.Status)
		assert.NotEmpty(t, eng.notificationsFor(t, models.NotifyTargetAdmin))
	})

	t.Run("raising twice is a no-op", func(t *testing.T) {
		booking := seedBooking(t, eng, models.StatusInProcess)
		_, err := eng.resolver.RaiseDispute(ctx, booking.ID, "farmer-1")
		require.NoError(t, err)
		adminBefore := len(eng.notificationsFor(t, models.NotifyTargetAdmin))

		_, err = eng.resolver.RaiseDispute(ctx, booking.ID, "farmer-1")
		require.NoError(t, err)
		assert.Len(t, eng.notificationsFor(t, models.NotifyTargetAdmin), adminBefore)
	})

	t.Run("disputes survive completion", func(t *testing.T) {
		booking := seedBooking(t, eng, models.StatusCompleted)
		disputed, err := eng.resolver.RaiseDispute(ctx, booking.ID, "farmer-1")
		require.NoError(t, err)
		assert.True(t, disputed.DisputeRaised)
	})
}

func TestResolveDispute(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	t.Run("nothing to resolve", func(t *testing.T) {
		booking := seedBooking(t, eng, models.StatusConfirmed)
		_, err := eng.resolver.ResolveDispute(ctx, booking.ID, "admin")
		assert.Error(t, err)
	})

	t.Run("resolution clears the flag and tells both parties", func(t *testing.T) {
		booking := seedBooking(t, eng, models.StatusConfirmed)
		_, err := eng.resolver.RaiseDispute(ctx, booking.ID, "farmer-1")
		require.NoError(t, err)

		resolved, err := eng.resolver.ResolveDispute(ctx, booking.ID, "admin")
		require.NoError(t, err)
		assert.True(t, resolved.DisputeResolved)
		assert.NotEmpty(t, eng.notificationsFor(t, "farmer-1"))
		assert.NotEmpty(t, eng.notificationsFor(t, "supplier-1"))

		// Resolving again changes nothing.
		_, err = eng.resolver.ResolveDispute(ctx, booking.ID, "admin")
		require.NoError(t, err)
	})

	t.Run("a resolved dispute may be raised again", func(t *testing.T) {
		booking := seedBooking(t, eng, models.StatusConfirmed)
		_, err := eng.resolver.RaiseDispute(ctx, booking.ID, "farmer-1")
		require.NoError(t, err)
		_, err = eng.resolver.ResolveDispute(ctx, booking.ID, "admin")
		require.NoError(t, err)

		reraised, err := eng.resolver.RaiseDispute(ctx, booking.ID, "supplier-1")
		require.NoError(t, err)
		assert.True(t, reraised.DisputeRaised)
		assert.False(t, reraised.DisputeResolved)
	})
}

func TestReportDamage(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	t.Run("description is mandatory", func(t *testing.T) {
		booking := seedBooking(t, eng, models.StatusInProcess)
		_, err := eng.resolver.ReportDamage(ctx, booking.ID, "supplier-1", "")
		assert.Error(t, err)
	})

	t.Run("unaccepted request takes no damage claim", func(t *testing.T) {
		booking := seedBooking(t, eng, models.StatusSearching)
		_, err := eng.resolver.ReportDamage(ctx, booking.ID, "supplier-1", "bent axle")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("report flags the booking", func(t *testing.T) {
		booking := seedBooking(t, eng, models.StatusInProcess)
		report, err := eng.resolver.ReportDamage(ctx, booking.ID, "supplier-1", "bent axle")
		require.NoError(t, err)
		assert.NotZero(t, report.ID)
		assert.Equal(t, models.DamagePending, report.Status)

		got, err := eng.db.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.True(t, got.DamageReported)
		assert.NotEmpty(t, eng.notificationsFor(t, models.NotifyTargetAdmin))
	})

	t.Run("several reports per booking", func(t *testing.T) {
		booking := seedBooking(t, eng, models.StatusInProcess)
		first, err := eng.resolver.ReportDamage(ctx, booking.ID, "supplier-1", "bent axle")
		require.NoError(t, err)
		second, err := eng.resolver.ReportDamage(ctx, booking.ID, "farmer-1", "torn harness")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestResolveDamageClaim(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	booking := seedBooking(t, eng, models.StatusInProcess)
	report, err := eng.resolver.ReportDamage(ctx, booking.ID, "supplier-1", "bent axle")
	require.NoError(t, err)

	resolved, err := eng.resolver.ResolveDamageClaim(ctx, report.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.DamageResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.NotEmpty(t, eng.notificationsFor(t, "farmer-1"))
	assert.NotEmpty(t, eng.notificationsFor(t, "supplier-1"))

	// A second resolve reports the already resolved claim.
	again, err := eng.resolver.ResolveDamageClaim(ctx, report.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.DamageResolved, again.Status)

	_, err = eng.resolver.ResolveDamageClaim(ctx, 99999, "admin")
	assert.ErrorIs(t, err, ErrNotFound)
}
