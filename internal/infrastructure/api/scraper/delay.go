// internal/infrastructure/api/scraper/delay.go
package scraper

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RandomDelay - случайная пауза в [min, max] между запросами
type RandomDelay struct {
	min, max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomDelay создает паузу. При max < min используется min.
func NewRandomDelay(min, max time.Duration) *RandomDelay {
	if max < min {
		max = min
	}
	return &RandomDelay{
		min: min,
		max: max,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next возвращает длительность следующей паузы
func (d *RandomDelay) Next() time.Duration {
	if d.max <= d.min {
		return d.min
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.min + time.Duration(d.rnd.Int63n(int64(d.max-d.min)+1))
}

// Wait спит случайное время или до отмены контекста
func (d *RandomDelay) Wait(ctx context.Context) error {
	pause := d.Next()
	if pause <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(pause)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
