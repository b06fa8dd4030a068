// internal/infrastructure/persistence/in_memory_storage/price_storage.go
package in_memory_storage

import (
	"context"
	"sync"
	"time"

	"competitor-price-monitor/internal/types/storage"
)

// PriceStorage - хранилище наблюдений в памяти.
// Используется для dry-run режима и в тестах.
type PriceStorage struct {
	mu           sync.RWMutex
	observations []storage.PriceObservation // в порядке вставки
	nextID       int64
	now          func() time.Time
	lastObserved time.Time
}

// Option настраивает PriceStorage
type Option func(*PriceStorage)

// WithClock подменяет источник времени записи
func WithClock(now func() time.Time) Option {
	return func(s *PriceStorage) {
		s.now = now
	}
}

// NewPriceStorage создает пустое хранилище
func NewPriceStorage(opts ...Option) *PriceStorage {
	s := &PriceStorage{
		nextID: 1,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema для памяти ничего не делает
func (s *PriceStorage) EnsureSchema(ctx context.Context) error {
	return nil
}

// Record добавляет наблюдение. ObservedAt выставляется здесь и не убывает.
func (s *PriceStorage) Record(ctx context.Context, obs storage.PriceObservation) (int64, error) {
	if err := obs.Validate(); err != nil {
		return 0, err
	}
	obs.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	observedAt := s.now().UTC()
	if observedAt.Before(s.lastObserved) {
		observedAt = s.lastObserved
	}
	s.lastObserved = observedAt

	obs.ID = s.nextID
	obs.ObservedAt = observedAt
	s.nextID++
	s.observations = append(s.observations, obs)

	return obs.ID, nil
}

// Latest возвращает наблюдение с максимальным ObservedAt, при равенстве -
// вставленное позже
func (s *PriceStorage) Latest(ctx context.Context, productID, competitor string) (*storage.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *storage.PriceObservation
	for i := range s.observations {
		o := &s.observations[i]
		if o.ProductID != productID {
			continue
		}
		if competitor != "" && o.CompetitorName != competitor {
			continue
		}
		if latest == nil || !o.ObservedAt.Before(latest.ObservedAt) {
			latest = o
		}
	}

	if latest == nil {
		return nil, nil
	}
	result := *latest
	return &result, nil
}

// History возвращает не более limit наблюдений товара, новые первыми
func (s *PriceStorage) History(ctx context.Context, productID string, limit int) ([]storage.PriceObservation, error) {
	if limit <= 0 {
		limit = storage.DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// ObservedAt не убывает по вставке, поэтому обратный обход дает нужный порядок
	result := make([]storage.PriceObservation, 0, limit)
	for i := len(s.observations) - 1; i >= 0 && len(result) < limit; i-- {
		if s.observations[i].ProductID == productID {
			result = append(result, s.observations[i])
		}
	}
	return result, nil
}

// Len возвращает количество наблюдений
func (s *PriceStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observations)
}
