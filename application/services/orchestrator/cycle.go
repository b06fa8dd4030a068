// application/services/orchestrator/cycle.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"competitor-price-monitor/application/services/notification"
	"competitor-price-monitor/internal/core/domain/pricing"
	"competitor-price-monitor/internal/core/domain/signals/detectors/price_change"
	"competitor-price-monitor/internal/types/events"
	"competitor-price-monitor/internal/types/failure"
	"competitor-price-monitor/internal/types/fetcher"
	"competitor-price-monitor/internal/types/storage"
	"competitor-price-monitor/pkg/logger"

	"github.com/google/uuid"
)

// SummaryTitle - заголовок сводки цикла в логе
const SummaryTitle = "Cycle summary"

// AlertDispatcher доставляет события цикла
type AlertDispatcher interface {
	Dispatch(ctx context.Context, list []events.ChangeEvent, mode notification.Mode) notification.DispatchResult
}

// Options - политика цикла
type Options struct {
	Threshold float64
	Mode      notification.Mode
}

// CycleRunner проводит один полный проход по целям:
// загрузка, разбор цены, сравнение, запись, доставка, итог.
type CycleRunner struct {
	store      storage.PriceStore
	fetcher    fetcher.Fetcher
	pacer      fetcher.Pacer
	detector   *price_change.Detector
	dispatcher AlertDispatcher
	opts       Options

	mu   sync.RWMutex
	last *Summary
}

// NewCycleRunner создает оркестратор цикла. pacer может быть nil.
func NewCycleRunner(
	store storage.PriceStore,
	f fetcher.Fetcher,
	pacer fetcher.Pacer,
	dispatcher AlertDispatcher,
	opts Options,
) *CycleRunner {
	if opts.Threshold < 0 {
		opts.Threshold = 0
	}
	return &CycleRunner{
		store:      store,
		fetcher:    f,
		pacer:      pacer,
		detector:   price_change.NewDetector(store, opts.Threshold),
		dispatcher: dispatcher,
		opts:       opts,
	}
}

// RunCycle выполняет цикл. Ошибка возвращается только при фатальном сбое
// хранилища или отмене контекста, вместе с частичным итогом.
func (r *CycleRunner) RunCycle(ctx context.Context, targets []fetcher.Target) (*Summary, error) {
	summary := &Summary{
		RunID:        uuid.NewString(),
		StartedAt:    time.Now().UTC(),
		TotalTargets: len(targets),
	}
	logger.Info("🚀 Starting cycle %s: %d targets", summary.RunID, len(targets))

	if err := r.store.EnsureSchema(ctx); err != nil {
		return r.abort(summary, fmt.Errorf("ensure schema: %w", err))
	}

	var changes []events.ChangeEvent

	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return r.abort(summary, err)
		}

		event, err := r.processTarget(ctx, target, summary)
		if err != nil {
			return r.abort(summary, err)
		}
		if event != nil {
			changes = append(changes, event)
		}

		if i < len(targets)-1 {
			if err := r.pace(ctx, target, targets[i+1]); err != nil {
				return r.abort(summary, err)
			}
		}
	}

	summary.Changes = changes
	summary.ChangesDetected = len(changes)

	if r.dispatcher != nil {
		res := r.dispatcher.Dispatch(ctx, changes, r.opts.Mode)
		summary.AlertsDispatched = res.Sent
		summary.DispatchErrors = len(res.Failures)
	} else if len(changes) > 0 {
		summary.DispatchErrors = 1
		logger.Warn("⚠️ No dispatcher configured, %d change(s) not delivered", len(changes))
	}

	return r.finish(summary), nil
}

// processTarget обрабатывает одну цель. Ошибка означает прерывание цикла.
func (r *CycleRunner) processTarget(ctx context.Context, target fetcher.Target, summary *Summary) (events.ChangeEvent, error) {
	res := r.fetcher.Fetch(ctx, target)

	ok, isSuccess := res.(fetcher.Success)
	if !isSuccess {
		summary.FailedFetches++
		reason := "unknown"
		if f, isFailure := res.(fetcher.Failure); isFailure {
			reason = f.Reason
		}
		logger.Warn("❌ %s/%s: %s", target.CompetitorName, target.ProductID, reason)
		return nil, nil
	}

	price, err := priceOf(ok)
	if err != nil {
		// нет цены - нечего записывать, считается неудачной загрузкой
		summary.FailedFetches++
		logger.Warn("❌ %s/%s: %v", target.CompetitorName, target.ProductID, err)
		return nil, nil
	}

	summary.SuccessfulFetches++
	logger.Info("✅ %s/%s: %.2f %s", target.CompetitorName, target.ProductID, price, currencyOf(target))

	event, err := r.detector.Detect(ctx, price_change.Candidate{
		ProductID:      target.ProductID,
		CompetitorName: target.CompetitorName,
		Price:          price,
		Currency:       target.Currency,
		ProductName:    ok.ProductName,
	})
	if err != nil {
		if failure.IsFatal(err) {
			return nil, err
		}
		summary.StorageErrors++
		logger.Error("❌ Latest price lookup failed for %s/%s: %v", target.CompetitorName, target.ProductID, err)
		event = nil
	}

	_, err = r.store.Record(ctx, storage.PriceObservation{
		CompetitorName: target.CompetitorName,
		ProductID:      target.ProductID,
		ProductName:    storage.StringPtr(ok.ProductName),
		Price:          price,
		Currency:       target.Currency,
		StockStatus:    storage.StringPtr(ok.StockStatus),
		SourceURL:      storage.StringPtr(target.URL),
	})
	if err != nil {
		if failure.IsFatal(err) {
			return nil, err
		}
		// событие без записанного наблюдения не доставляется
		summary.StorageErrors++
		logger.Error("❌ Failed to record %s/%s: %v", target.CompetitorName, target.ProductID, err)
		return nil, nil
	}

	if pc, isChange := event.(events.PriceChange); isChange {
		logger.Change(pc.CompetitorName, pc.ProductID, string(pc.Direction), pc.OldPrice, pc.Price, pc.ChangePercent)
	} else if event != nil {
		logger.Info("🆕 New product %s at %s", target.ProductID, target.CompetitorName)
	}

	return event, nil
}

// pace - пауза после каждого товара и дополнительная при смене конкурента
func (r *CycleRunner) pace(ctx context.Context, current, next fetcher.Target) error {
	if r.pacer == nil {
		return ctx.Err()
	}
	if err := r.pacer.Wait(ctx); err != nil {
		return err
	}
	if current.CompetitorName != next.CompetitorName {
		return r.pacer.Wait(ctx)
	}
	return nil
}

func (r *CycleRunner) abort(summary *Summary, err error) (*Summary, error) {
	summary.Aborted = true
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("🛑 Cycle %s interrupted: %v", summary.RunID, err)
	} else {
		logger.Error("❌ Cycle %s aborted: %v", summary.RunID, err)
	}
	return r.finish(summary), err
}

func (r *CycleRunner) finish(summary *Summary) *Summary {
	summary.FinishedAt = time.Now().UTC()
	logger.Summary(SummaryTitle, summary.Stats())

	r.mu.Lock()
	r.last = summary
	r.mu.Unlock()
	return summary
}

// LastSummary возвращает итог последнего завершенного цикла или nil
func (r *CycleRunner) LastSummary() *Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

func priceOf(s fetcher.Success) (float64, error) {
	if s.Price != nil {
		if *s.Price < 0 {
			return 0, failure.Parse(s.RawPrice, errors.New("negative price"))
		}
		return *s.Price, nil
	}
	price, ok := pricing.ParsePrice(s.RawPrice)
	if !ok {
		return 0, failure.Parse(fmt.Sprintf("%q", s.RawPrice), pricing.ErrUnparsable)
	}
	return price, nil
}

func currencyOf(t fetcher.Target) string {
	if t.Currency == "" {
		return storage.DefaultCurrency
	}
	return t.Currency
}
