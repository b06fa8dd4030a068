package redis

import (
	"context"
	"testing"
	"time"

	"competitor-price-monitor/internal/infrastructure/persistence/in_memory_storage"
	"competitor-price-monitor/internal/types/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

type countingStore struct {
	*in_memory_storage.PriceStorage
	latestCalls int
}

func (s *countingStore) Latest(ctx context.Context, productID, competitor string) (*storage.PriceObservation, error) {
	s.latestCalls++
	return s.PriceStorage.Latest(ctx, productID, competitor)
}

func setup(t *testing.T) (*LatestPriceCache, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := &countingStore{PriceStorage: in_memory_storage.NewPriceStorage()}
	return NewLatestPriceCache(store, NewCacheFromClient(client, "test:"), time.Hour), store, mr
}

func record(t *testing.T, c *LatestPriceCache, competitor string, price float64) {
	t.Helper()
	_, err := c.Record(context.Background(), storage.PriceObservation{
		ProductID: "p1", CompetitorName: competitor, Price: price,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLatestReadsThroughAndCaches(t *testing.T) {
	ctx := context.Background()
	c, store, mr := setup(t)
	record(t, c, "shopA", 10)

	first, err := c.Latest(ctx, "p1", "shopA")
	if err != nil || first == nil || first.Price != 10 {
		t.Fatalf("unexpected first read: %+v %v", first, err)
	}
	if !mr.Exists("test:latest:p1:shopA") {
		t.Fatalf("latest entry was not cached")
	}

	second, _ := c.Latest(ctx, "p1", "shopA")
	if second.ID != first.ID {
		t.Fatalf("cached value differs: %+v vs %+v", second, first)
	}
	if store.latestCalls != 1 {
		t.Fatalf("expected one store read, got %d", store.latestCalls)
	}
}

func TestRecordInvalidatesBothKeys(t *testing.T) {
	ctx := context.Background()
	c, _, mr := setup(t)
	record(t, c, "shopA", 10)

	c.Latest(ctx, "p1", "shopA")
	c.Latest(ctx, "p1", "")
	if !mr.Exists("test:latest:p1:*") {
		t.Fatalf("any-competitor entry was not cached")
	}

	record(t, c, "shopA", 12)
	if mr.Exists("test:latest:p1:shopA") || mr.Exists("test:latest:p1:*") {
		t.Fatalf("record must invalidate cached latest entries")
	}

	got, _ := c.Latest(ctx, "p1", "shopA")
	if got.Price != 12 {
		t.Fatalf("expected fresh price 12, got %v", got.Price)
	}
}

func TestLatestAbsentIsNotCached(t *testing.T) {
	c, _, mr := setup(t)
	got, err := c.Latest(context.Background(), "nope", "")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %+v %v", got, err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("absent result must not be cached: %v", mr.Keys())
	}
}

func TestCacheOutageFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	c, _, mr := setup(t)
	mr.Close()

	if _, err := c.Record(ctx, storage.PriceObservation{ProductID: "p1", CompetitorName: "shopA", Price: 5}); err != nil {
		t.Fatalf("cache outage must not fail record: %v", err)
	}
	got, err := c.Latest(ctx, "p1", "shopA")
	if err != nil || got == nil || got.Price != 5 {
		t.Fatalf("expected store fallback, got %+v %v", got, err)
	}
	h, _ := c.History(ctx, "p1", 10)
	if len(h) != 1 {
		t.Fatalf("history must pass through, got %d", len(h))
	}
}

func TestFailedInvalidationBypassesStaleEntry(t *testing.T) {
	ctx := context.Background()
	c, store, mr := setup(t)
	record(t, c, "shopA", 10)
	c.Latest(ctx, "p1", "shopA")
	c.Latest(ctx, "p1", "")

	mr.SetError("LOADING blip")
	record(t, c, "shopA", 20)

	got, err := c.Latest(ctx, "p1", "shopA")
	if err != nil || got == nil || got.Price != 20 {
		t.Fatalf("during outage: expected 20 from store, got %+v %v", got, err)
	}

	mr.SetError("")
	if !mr.Exists("test:latest:p1:shopA") {
		t.Fatalf("stale entry is expected to survive the failed delete")
	}

	for _, competitor := range []string{"shopA", ""} {
		got, err := c.Latest(ctx, "p1", competitor)
		if err != nil || got == nil || got.Price != 20 {
			t.Fatalf("competitor %q: stale latest %+v %v", competitor, got, err)
		}
	}

	calls := store.latestCalls
	got, _ = c.Latest(ctx, "p1", "shopA")
	if got.Price != 20 || store.latestCalls != calls {
		t.Fatalf("key must be cached again after a successful reset: price=%v calls=%d->%d",
			got.Price, calls, store.latestCalls)
	}
}
