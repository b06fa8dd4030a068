// application/bootstrap/app.go
package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"competitor-price-monitor/application/scheduler"
	"competitor-price-monitor/application/services/notification"
	"competitor-price-monitor/application/services/orchestrator"
	httpapi "competitor-price-monitor/internal/delivery/http"
	"competitor-price-monitor/internal/delivery/telegram/app/http_client"
	"competitor-price-monitor/internal/infrastructure/config"
	"competitor-price-monitor/internal/infrastructure/export"
	"competitor-price-monitor/internal/infrastructure/persistence/postgres"
	"competitor-price-monitor/internal/types/fetcher"
	"competitor-price-monitor/internal/types/storage"
	"competitor-price-monitor/pkg/logger"
)

// CycleJobName - имя задачи цикла в планировщике
const CycleJobName = "price-cycle"

// ErrNoMigrations - хранилище без SQL миграций
var ErrNoMigrations = errors.New("storage has no migrations")

type migrationReporter interface {
	MigrationStatus(ctx context.Context) ([]postgres.MigrationStatus, error)
}

// Application - собранный монитор цен
type Application struct {
	config *config.Config

	store      storage.PriceStore
	fetcher    fetcher.Fetcher
	pacer      fetcher.Pacer
	telegram   *http_client.TelegramClient
	transport  notification.Transport
	dispatcher *notification.Dispatcher
	runner     *orchestrator.CycleRunner
	scheduler  *scheduler.Scheduler
	server     *httpapi.Server

	closers []func() error

	mu        sync.RWMutex
	running   bool
	startTime time.Time
}

// Config возвращает конфигурацию приложения
func (app *Application) Config() *config.Config {
	return app.config
}

// Runner возвращает оркестратор цикла
func (app *Application) Runner() *orchestrator.CycleRunner {
	return app.runner
}

// RunOnce выполняет один цикл по всем включенным целям
func (app *Application) RunOnce(ctx context.Context) (*orchestrator.Summary, error) {
	targets := app.config.Targets()
	if len(targets) == 0 {
		logger.Warn("⚠️ No enabled products in %s", app.config.CompetitorsFile)
	}
	return app.runner.RunCycle(ctx, targets)
}

// DaemonSchedule - расписание циклов из конфигурации:
// ежедневно в SCRAPE_DAILY_AT, иначе каждые SCRAPE_INTERVAL_HOURS
func DaemonSchedule(cfg *config.Config) (scheduler.Schedule, error) {
	if cfg.Schedule.DailyAt == "" {
		return scheduler.Every(cfg.Schedule.Interval()), nil
	}
	hour, minute, err := cfg.Schedule.DailyClock()
	if err != nil {
		return scheduler.Schedule{}, err
	}
	return scheduler.DailyAt(hour, minute), nil
}

// RunDaemon запускает циклы по расписанию до отмены ctx.
// Первый цикл стартует сразу. Цикл ограничен SCRAPE_CYCLE_TIMEOUT,
// по умолчанию периодом расписания.
func (app *Application) RunDaemon(ctx context.Context, schedule scheduler.Schedule) error {
	if !schedule.Valid() {
		return fmt.Errorf("invalid schedule, period %v", schedule.Period())
	}

	app.mu.Lock()
	if app.running {
		app.mu.Unlock()
		return errors.New("application is already running")
	}
	app.running = true
	app.startTime = time.Now()
	app.mu.Unlock()

	logger.Info("🚀 Starting daemon, cycle period %s", schedule.Period())

	sched := scheduler.New()
	sched.Register(&scheduler.Job{
		Name:           CycleJobName,
		Description:    "scrape competitors, detect price changes, send alerts",
		Schedule:       schedule,
		RunImmediately: true,
		Timeout:        app.config.Schedule.CycleTimeout,
		Handler: func(ctx context.Context) error {
			_, err := app.RunOnce(ctx)
			return err
		},
	})
	sched.Start(ctx)
	app.scheduler = sched

	if app.config.HTTP.Enabled {
		app.server = httpapi.NewServer(app.config.HTTP.Port, httpapi.NewRouter(httpapi.Deps{
			Store:     app.store,
			Summaries: app.runner,
			Jobs:      sched.Jobs,
			Fetcher:   app.fetcherStats(),
		}))
		app.server.Start()
	}

	<-ctx.Done()
	logger.Info("🛑 Shutdown signal received")
	app.shutdownWithTimeout(30 * time.Second)
	return nil
}

// shutdownWithTimeout выполняет graceful shutdown с таймаутом
func (app *Application) shutdownWithTimeout(timeout time.Duration) {
	logger.Info("⏳ Graceful shutdown (timeout %v)...", timeout)

	done := make(chan struct{})
	go func() {
		app.shutdown(timeout)
		close(done)
	}()

	select {
	case <-done:
		logger.Info("✅ Graceful shutdown complete")
	case <-time.After(timeout):
		logger.Warn("⚠️  Graceful shutdown timed out")
	}
}

func (app *Application) shutdown(timeout time.Duration) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if !app.running {
		return
	}

	// 1. Планировщик ждет прерванный цикл
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	// 2. HTTP API
	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := app.server.Shutdown(ctx); err != nil {
			logger.Warn("⚠️  HTTP API shutdown: %v", err)
		}
	}

	app.running = false
	logger.Info("✅ Stopped. Uptime: %v", time.Since(app.startTime).Round(time.Second))
}

// History возвращает историю товара, новые первыми
func (app *Application) History(ctx context.Context, productID string, limit int) ([]storage.PriceObservation, error) {
	if err := app.store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return app.store.History(ctx, productID, limit)
}

// ExportHistory сохраняет историю товара в xlsx-файл
func (app *Application) ExportHistory(ctx context.Context, productID string, limit int, path string) (int, error) {
	history, err := app.History(ctx, productID, limit)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.ExportHistory(f, productID, history); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	logger.Info("💾 Exported %d observations of %s to %s", len(history), productID, path)
	return len(history), nil
}

// MigrationStatus - состояние миграций PostgreSQL
func (app *Application) MigrationStatus(ctx context.Context) ([]postgres.MigrationStatus, error) {
	store := app.store
	for {
		if r, ok := store.(migrationReporter); ok {
			return r.MigrationStatus(ctx)
		}
		w, ok := store.(interface{ Unwrap() storage.PriceStore })
		if !ok {
			return nil, fmt.Errorf("%s store: %w", describeStore(app.store), ErrNoMigrations)
		}
		store = w.Unwrap()
	}
}

// ScrapePage снимает содержимое произвольной страницы и сохраняет его
// в JSON. Пустой path - только вернуть снимок.
func (app *Application) ScrapePage(ctx context.Context, url string, selectors []string, path string) (*fetcher.PageSnapshot, error) {
	inspector, ok := app.fetcher.(fetcher.Inspector)
	if !ok {
		f, err := newFetcher(app.config)
		if err != nil {
			return nil, err
		}
		inspector = f
	}

	snapshot, err := inspector.Inspect(ctx, url, selectors)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return snapshot, nil
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	logger.Info("💾 Page snapshot of %s saved to %s", url, path)
	return snapshot, nil
}

func (app *Application) fetcherStats() fetcher.StatsProvider {
	if p, ok := app.fetcher.(fetcher.StatsProvider); ok {
		return p
	}
	return nil
}

// TestTelegram проверяет токен и отправляет тестовое сообщение
func (app *Application) TestTelegram(ctx context.Context, text string) error {
	if app.telegram == nil {
		return fmt.Errorf("telegram: %w", notification.ErrTransportNotConfigured)
	}
	if err := app.telegram.GetMe(ctx); err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	if _, err := app.telegram.SendMessage(ctx, app.config.Telegram.ChatID, text); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	logger.Info("✅ Test message sent to chat %s", app.config.Telegram.ChatID)
	return nil
}

// Status - состояние приложения
func (app *Application) Status() map[string]interface{} {
	app.mu.RLock()
	defer app.mu.RUnlock()

	status := map[string]interface{}{
		"running":   app.running,
		"transport": "none",
		"store":     describeStore(app.store),
		"config": map[string]interface{}{
			"telegram_configured": app.config.TelegramConfigured(),
			"threshold_percent":   app.config.Threshold(),
			"batch_alerts":        app.config.Alerts.BatchAlerts,
			"interval":            app.config.Schedule.Interval().String(),
		},
	}
	if app.transport != nil {
		status["transport"] = app.transport.Name()
	}
	if app.running {
		status["uptime"] = time.Since(app.startTime).String()
	}
	if app.scheduler != nil {
		status["jobs"] = app.scheduler.Jobs()
	}
	if p := app.fetcherStats(); p != nil {
		status["fetcher"] = p.Stats()
	}
	return status
}

// Close освобождает соединения в обратном порядке
func (app *Application) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
