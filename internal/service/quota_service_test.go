package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edudrive/internal/domain"
)

func TestQuotaReserveExactFit(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	require.NoError(t, env.quota.Reserve(ctx, "user-1", 900, domain.QuotaStorage))
	require.NoError(t, env.quota.Reserve(ctx, "user-1", 100, domain.QuotaStorage))

	err := env.quota.Reserve(ctx, "user-1", 1, domain.QuotaStorage)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestQuotaRejectLeavesCounterUntouched(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	require.NoError(t, env.quota.Reserve(ctx, "user-1", 900, domain.QuotaStorage))

	err := env.quota.Reserve(ctx, "user-1", 150, domain.QuotaStorage)
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)

	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), info.StorageUsed)

	// A smaller charge still fits after the rejection.
	require.NoError(t, env.quota.Reserve(ctx, "user-1", 100, domain.QuotaStorage))
}

func TestQuotaNegativeDeltaRejected(t *testing.T) {
	env := newTestEnvSkip()
	err := env.quota.Reserve(context.Background(), "user-1", -5, domain.QuotaStorage)
	assert.Error(t, err)
}

func TestQuotaReleaseClampsAtZero(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	require.NoError(t, env.quota.Reserve(ctx, "user-1", 100, domain.QuotaStorage))
	require.NoError(t, env.quota.Release(ctx, "user-1", 500))

	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.StorageUsed)
}

func TestQuotaBandwidthLimit(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	require.NoError(t, env.quota.Reserve(ctx, "user-1", 1000, domain.QuotaBandwidth))

	err := env.quota.Reserve(ctx, "user-1", 1, domain.QuotaBandwidth)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	// Bandwidth rejection must not affect the storage counter.
	require.NoError(t, env.quota.Reserve(ctx, "user-1", 1000, domain.QuotaStorage))
}

func TestQuotaUpdateStorageLimit(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	require.NoError(t, env.quota.Reserve(ctx, "user-1", 1000, domain.QuotaStorage))
	require.ErrorIs(t, env.quota.Reserve(ctx, "user-1", 500, domain.QuotaStorage), domain.ErrQuotaExceeded)

	require.NoError(t, env.quota.UpdateStorageLimit(ctx, "user-1", 2000))
	require.NoError(t, env.quota.Reserve(ctx, "user-1", 500, domain.QuotaStorage))

	err := env.quota.UpdateStorageLimit(ctx, "user-1", -1)
	assert.Error(t, err)
}

func TestQuotaInfoPercent(t *testing.T) {
	env := newTestEnvSkip()
	ctx := context.Background()

	require.NoError(t, env.quota.Reserve(ctx, "user-1", 250, domain.QuotaStorage))

	info, err := env.quota.GetQuotaInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, info.UsagePercent, 0.001)
	assert.Equal(t, int64(750), info.StorageAvailable)
}
