package in_memory_storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"competitor-price-monitor/internal/types/storage"
)

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func obs(product, competitor string, price float64) storage.PriceObservation {
	return storage.PriceObservation{ProductID: product, CompetitorName: competitor, Price: price}
}

func TestLatestReturnsNewestObservation(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Minute}
	s := NewPriceStorage(WithClock(clock.now))

	if _, err := s.Record(ctx, obs("p1", "shopA", 10)); err != nil {
		t.Fatal(err)
	}
	id2, err := s.Record(ctx, obs("p1", "shopA", 12))
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Latest(ctx, "p1", "shopA")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != id2 || got.Price != 12 {
		t.Fatalf("unexpected latest: %+v", got)
	}
	if got.Currency != storage.DefaultCurrency {
		t.Fatalf("currency default not applied: %q", got.Currency)
	}
}

func TestLatestTieBreaksOnInsertionOrder(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewPriceStorage(WithClock(func() time.Time { return fixed }))

	s.Record(ctx, obs("p1", "shopA", 10))
	s.Record(ctx, obs("p1", "shopA", 11))
	id3, _ := s.Record(ctx, obs("p1", "shopA", 9))

	got, _ := s.Latest(ctx, "p1", "shopA")
	if got.ID != id3 {
		t.Fatalf("expected last inserted id %d, got %d", id3, got.ID)
	}
}

func TestLatestAcrossCompetitors(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Second}
	s := NewPriceStorage(WithClock(clock.now))

	s.Record(ctx, obs("p1", "shopA", 10))
	s.Record(ctx, obs("p1", "shopB", 20))
	s.Record(ctx, obs("p2", "shopA", 30))

	got, _ := s.Latest(ctx, "p1", "")
	if got.CompetitorName != "shopB" {
		t.Fatalf("expected shopB, got %+v", got)
	}

	none, _ := s.Latest(ctx, "p1", "shopC")
	if none != nil {
		t.Fatalf("expected nil for unknown competitor, got %+v", none)
	}
}

func TestObservedAtNeverDecreases(t *testing.T) {
	ctx := context.Background()
	times := []time.Time{
		time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC), // часы ушли назад
	}
	i := 0
	s := NewPriceStorage(WithClock(func() time.Time {
		t := times[i]
		i++
		return t
	}))

	s.Record(ctx, obs("p1", "shopA", 1))
	s.Record(ctx, obs("p1", "shopA", 2))

	h, _ := s.History(ctx, "p1", 10)
	if h[0].ObservedAt.Before(h[1].ObservedAt) {
		t.Fatalf("observed_at decreased: %v then %v", h[1].ObservedAt, h[0].ObservedAt)
	}
	if h[0].Price != 2 {
		t.Fatalf("newest first expected, got %+v", h[0])
	}
}

func TestHistoryBoundedNewestFirst(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Minute}
	s := NewPriceStorage(WithClock(clock.now))

	for i := 1; i <= 5; i++ {
		s.Record(ctx, obs("p1", fmt.Sprintf("shop%d", i%2), float64(i)))
	}

	h, err := s.History(ctx, "p1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 2 {
		t.Fatalf("expected 2 records, got %d", len(h))
	}
	if h[0].Price != 5 || h[1].Price != 4 {
		t.Fatalf("unexpected order: %v, %v", h[0].Price, h[1].Price)
	}

	again, _ := s.History(ctx, "p1", 2)
	if again[0].ID != h[0].ID || again[1].ID != h[1].ID {
		t.Fatalf("history is not repeatable")
	}

	all, _ := s.History(ctx, "p1", 0)
	if len(all) != 5 {
		t.Fatalf("default limit should return all 5, got %d", len(all))
	}
}

func TestRecordRejectsInvalidObservation(t *testing.T) {
	s := NewPriceStorage()
	_, err := s.Record(context.Background(), obs("p1", "shopA", -1))
	if !errors.Is(err, storage.ErrInvalidObservation) {
		t.Fatalf("expected ErrInvalidObservation, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("invalid observation must not be stored")
	}
}
