// application/services/notification/throttle.go
package notification

import (
	"context"
	"sync"
	"time"
)

// Throttled выдерживает минимальный интервал между отправками.
// Telegram ограничивает частоту сообщений в один чат.
type Throttled struct {
	next     Transport
	interval time.Duration

	mu       sync.Mutex
	lastSend time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewThrottled создает ограничитель. interval <= 0 отключает ожидание.
func NewThrottled(next Transport, interval time.Duration) *Throttled {
	return &Throttled{
		next:     next,
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Send ждет окончания интервала и передает сообщение дальше
func (t *Throttled) Send(ctx context.Context, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastSend.IsZero() && t.interval > 0 {
		if wait := t.interval - t.now().Sub(t.lastSend); wait > 0 {
			if err := t.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	err := t.next.Send(ctx, text)
	t.lastSend = t.now()
	return err
}

func (t *Throttled) Name() string {
	return t.next.Name()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
