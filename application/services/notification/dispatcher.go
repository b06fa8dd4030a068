// application/services/notification/dispatcher.go
package notification

import (
	"context"
	"errors"

	"competitor-price-monitor/internal/delivery/telegram/formatters"
	"competitor-price-monitor/internal/types/events"
	"competitor-price-monitor/internal/types/failure"
	"competitor-price-monitor/pkg/logger"
)

// ErrTransportNotConfigured - транспорт уведомлений не задан
var ErrTransportNotConfigured = errors.New("notification transport is not configured")

// Mode - режим доставки алертов
type Mode int

const (
	// ModeSingle - одно сообщение на событие
	ModeSingle Mode = iota
	// ModeBatch - один дайджест на цикл
	ModeBatch
)

func (m Mode) String() string {
	if m == ModeBatch {
		return "batch"
	}
	return "single"
}

// ModeFor переводит флаг batch_alerts в режим
func ModeFor(batch bool) Mode {
	if batch {
		return ModeBatch
	}
	return ModeSingle
}

// DispatchResult - итог доставки
type DispatchResult struct {
	Sent     int
	Failures []error
	// Skipped - событий не было, транспорт не вызывался
	Skipped bool
}

// Dispatcher форматирует события и отправляет их через транспорт
type Dispatcher struct {
	transport Transport
	formatter *formatters.AlertFormatter
}

// NewDispatcher создает диспетчер. transport может быть nil:
// тогда каждое сообщение считается ошибкой конфигурации.
func NewDispatcher(transport Transport) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		formatter: formatters.NewAlertFormatter(),
	}
}

// Dispatch доставляет события. Ошибки собираются, но не прерывают отправку.
func (d *Dispatcher) Dispatch(ctx context.Context, list []events.ChangeEvent, mode Mode) DispatchResult {
	var result DispatchResult

	if len(list) == 0 {
		result.Skipped = true
		logger.Debug("📭 No changes to report")
		return result
	}

	switch mode {
	case ModeBatch:
		text, ok := d.formatter.FormatBatch(list)
		if !ok {
			result.Skipped = true
			return result
		}
		d.send(ctx, "batch", text, &result)

	default:
		for _, event := range list {
			d.send(ctx, event.Product(), d.formatter.FormatSingle(event), &result)
		}
	}

	if len(result.Failures) > 0 {
		logger.Warn("⚠️ Dispatch (%s): sent %d, failed %d", mode, result.Sent, len(result.Failures))
	} else {
		logger.Info("📨 Dispatch (%s): sent %d message(s)", mode, result.Sent)
	}
	return result
}

func (d *Dispatcher) send(ctx context.Context, op, text string, result *DispatchResult) {
	if d.transport == nil {
		result.Failures = append(result.Failures, failure.Configuration(op, ErrTransportNotConfigured))
		return
	}

	if err := d.transport.Send(ctx, text); err != nil {
		logger.Error("❌ Failed to send alert (%s) via %s: %v", op, d.transport.Name(), err)
		result.Failures = append(result.Failures, failure.Dispatch(op, err))
		return
	}
	result.Sent++
}
