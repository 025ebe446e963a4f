package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/renattofarid/fertiriego/internal/billing"
	"github.com/renattofarid/fertiriego/internal/money"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, 5*time.Minute), mr
}

func TestCacheFetchSummary(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (billing.Summary, error) {
		calls++
		return billing.Summary{ID: 9, Version: 3, Total: money.MustParse("35.40"), Status: billing.StatusRegistered}, nil
	}

	got, hit, err := cache.FetchSummary(ctx, 9, 3, issuedAt, loader)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, "35.40", got.Total.String())
	require.True(t, mr.Exists("billing:summary:9:v3:2026-01-10"))
	ttl := mr.TTL("billing:summary:9:v3:2026-01-10")
	require.Equal(t, 5*time.Minute, ttl)

	got, hit, err = cache.FetchSummary(ctx, 9, 3, issuedAt.Add(2*time.Hour), loader)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, billing.StatusRegistered, got.Status)
	require.Equal(t, 1, calls)

	_, hit, err = cache.FetchSummary(ctx, 9, 4, issuedAt, loader)
	require.NoError(t, err)
	require.False(t, hit, "a new version misses")
	_, hit, err = cache.FetchSummary(ctx, 9, 3, issuedAt.AddDate(0, 0, 1), loader)
	require.NoError(t, err)
	require.False(t, hit, "a new day misses")
	require.Equal(t, 3, calls)

	require.NoError(t, cache.Forget(ctx, 9))
	require.Empty(t, mr.Keys())
}

func TestCacheLoaderErrorIsNotCached(t *testing.T) {
	cache, mr := newTestCache(t)
	boom := errors.New("db down")
	_, _, err := cache.FetchSummary(context.Background(), 1, 1, issuedAt, func(context.Context) (billing.Summary, error) {
		return billing.Summary{}, boom
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, mr.Keys())
}

func TestCacheDisabled(t *testing.T) {
	var cache *Cache
	got, hit, err := cache.FetchSummary(context.Background(), 1, 1, issuedAt, func(context.Context) (billing.Summary, error) {
		return billing.Summary{ID: 1}, nil
	})
	require.NoError(t, err)
	require.False(t, hit)
	require.EqualValues(t, 1, got.ID)
	require.NoError(t, cache.Forget(context.Background(), 1))
}

func TestServiceGetUsesCache(t *testing.T) {
	h := newHarness(t)
	cache, mr := newTestCache(t)
	h.svc.deps.Cache = cache
	created := h.createCredit(t)

	_, err := h.svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, mr.Keys(), 1)

	res, err := h.svc.AddInstallment(actorCtx(), created.ID, created.Version, InstallmentInput{DueOffsetDays: 30, Amount: money.MustParse("300.00")})
	require.NoError(t, err)
	got, err := h.svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, res.Summary.Version, got.Version)
	require.Equal(t, billing.PlanComplete, got.PlanState)
	require.Len(t, mr.Keys(), 1, "the save dropped the previous version")
	require.Contains(t, mr.Keys()[0], ":v2:")
}

func TestServiceMutationForgetsOnlyItsDocument(t *testing.T) {
	h := newHarness(t)
	cache, mr := newTestCache(t)
	h.svc.deps.Cache = cache
	first := h.createCredit(t)
	second := h.createCredit(t)

	for _, id := range []int64{first.ID, second.ID} {
		_, err := h.svc.Get(context.Background(), id)
		require.NoError(t, err)
	}
	require.Len(t, mr.Keys(), 2)

	_, err := h.svc.SetPricingMode(actorCtx(), first.ID, first.Version, billing.TaxExclusive)
	require.NoError(t, err)
	require.Equal(t, []string{summaryKey(second.ID, second.Version, h.clock.now)}, mr.Keys())

	mr.SetError("READONLY")
	_, err = h.svc.SetPricingMode(actorCtx(), second.ID, second.Version, billing.TaxExclusive)
	require.NoError(t, err, "a cache failure does not fail the mutation")
}
