// application/bootstrap/builder.go
package bootstrap

import (
	"context"
	"fmt"

	"competitor-price-monitor/application/services/notification"
	"competitor-price-monitor/application/services/orchestrator"
	"competitor-price-monitor/internal/infrastructure/config"
	"competitor-price-monitor/internal/types/fetcher"
	"competitor-price-monitor/internal/types/storage"
	"competitor-price-monitor/pkg/logger"
)

// ==================== AppBuilder ====================

// AppBuilder строитель приложения
type AppBuilder struct {
	config  *config.Config
	options []AppOption
}

// AppOption опция для настройки приложения до сборки компонентов
type AppOption func(*Application) error

// NewAppBuilder создает новый строитель приложений
func NewAppBuilder() *AppBuilder {
	return &AppBuilder{}
}

// WithConfig устанавливает конфигурацию
func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	b.config = cfg
	return b
}

// WithOption добавляет опцию настройки
func (b *AppBuilder) WithOption(option AppOption) *AppBuilder {
	b.options = append(b.options, option)
	return b
}

// WithDryRun включает пробный режим (fluent метод)
func (b *AppBuilder) WithDryRun(enabled bool) *AppBuilder {
	b.options = append(b.options, WithDryRun(enabled))
	return b
}

// Build строит приложение. Компоненты, заданные опциями, не создаются.
func (b *AppBuilder) Build(ctx context.Context) (*Application, error) {
	if b.config == nil {
		b.config = config.FromEnv()
		logger.Info("ℹ️  Using configuration from environment")
	}

	app := &Application{config: b.config}

	for _, option := range b.options {
		if err := option(app); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if err := app.initialize(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// initialize создает недостающие компоненты по конфигурации
func (app *Application) initialize(ctx context.Context) error {
	cfg := app.config

	// 1. Хранилище
	if app.store == nil {
		store, closers, err := newStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		app.store = store
		app.closers = append(app.closers, closers...)
	}

	// 2. Загрузка страниц
	if app.fetcher == nil {
		f, err := newFetcher(cfg)
		if err != nil {
			return fmt.Errorf("fetcher: %w", err)
		}
		app.fetcher = f
	}
	if app.pacer == nil {
		app.pacer = newPacer(cfg)
	}

	// 3. Транспорт уведомлений. Клиент Telegram создается всегда, его использует TestTelegram.
	app.telegram = newTelegramClient(cfg)
	if app.transport == nil {
		app.transport = newTransport(cfg, app.telegram, nil)
	}
	if app.transport == nil {
		logger.Warn("⚠️ Telegram is not configured: alerts will be counted as dispatch errors")
		app.dispatcher = notification.NewDispatcher(nil)
	} else {
		logger.Info("📨 Alerts via %s (%s mode)", app.transport.Name(), notification.ModeFor(cfg.Alerts.BatchAlerts))
		app.dispatcher = notification.NewDispatcher(app.transport)
	}

	// 4. Оркестратор
	app.runner = orchestrator.NewCycleRunner(app.store, app.fetcher, app.pacer, app.dispatcher, orchestrator.Options{
		Threshold: cfg.Threshold(),
		Mode:      notification.ModeFor(cfg.Alerts.BatchAlerts),
	})

	logger.Info("✅ Application initialized: %d competitors, %d targets",
		cfg.EnabledCompetitors(), len(cfg.Targets()))
	return nil
}

// ==================== Опции приложения ====================

// WithDryRun - хранилище в памяти и вывод алертов в консоль
func WithDryRun(enabled bool) AppOption {
	return func(app *Application) error {
		if !enabled {
			return nil
		}
		logger.Info("🧪 Dry run: in-memory storage, console alerts")
		app.config.Database.Enabled = false
		app.config.Redis.Enabled = false
		if app.transport == nil {
			app.transport = notification.NewConsoleNotifier(nil)
		}
		return nil
	}
}

// WithStore подставляет готовое хранилище
func WithStore(store storage.PriceStore) AppOption {
	return func(app *Application) error {
		app.store = store
		return nil
	}
}

// WithFetcher подставляет загрузчик страниц и паузу между запросами
func WithFetcher(f fetcher.Fetcher, pacer fetcher.Pacer) AppOption {
	return func(app *Application) error {
		app.fetcher = f
		app.pacer = pacer
		return nil
	}
}

// WithTransport подставляет транспорт уведомлений
func WithTransport(t notification.Transport) AppOption {
	return func(app *Application) error {
		app.transport = t
		return nil
	}
}
