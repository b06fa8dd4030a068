// application/bootstrap/components.go
package bootstrap

import (
	"context"
	"fmt"
	"io"

	"competitor-price-monitor/application/services/notification"
	"competitor-price-monitor/internal/delivery/telegram/app/http_client"
	"competitor-price-monitor/internal/infrastructure/api/scraper"
	rediscache "competitor-price-monitor/internal/infrastructure/cache/redis"
	"competitor-price-monitor/internal/infrastructure/config"
	"competitor-price-monitor/internal/infrastructure/persistence/in_memory_storage"
	"competitor-price-monitor/internal/infrastructure/persistence/postgres"
	"competitor-price-monitor/internal/infrastructure/persistence/postgres/repository/prices"
	"competitor-price-monitor/internal/types/storage"
	"competitor-price-monitor/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// newStore собирает хранилище: Postgres или память, опционально с Redis-кэшем
func newStore(ctx context.Context, cfg *config.Config) (storage.PriceStore, []func() error, error) {
	var (
		store   storage.PriceStore
		closers []func() error
	)

	if cfg.Database.Enabled {
		db, err := postgres.Connect(ctx, postgresConfig(cfg.Database))
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, db.Close)

		repo := prices.NewPriceRepository(db)
		if cfg.Database.EnableAutoMigrate {
			if err := repo.EnsureSchema(ctx); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		store = repo
	} else {
		logger.Warn("⚠️ DB_ENABLED=false: observations are kept in memory only")
		store = in_memory_storage.NewPriceStorage()
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.GetRedisAddress(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		cache := rediscache.NewCacheFromClient(client, rediscache.DefaultPrefix)
		closers = append(closers, cache.Close)

		if err := cache.Ping(ctx); err != nil {
			// без кэша цикл работает, просто медленнее
			logger.Warn("⚠️ Redis %s unavailable: %v", cfg.GetRedisAddress(), err)
		} else {
			logger.Info("✅ Redis latest-price cache at %s", cfg.GetRedisAddress())
		}
		store = rediscache.NewLatestPriceCache(store, cache, cfg.Redis.LatestTTL)
	}

	return store, closers, nil
}

func postgresConfig(db config.DatabaseConfig) *postgres.Config {
	return &postgres.Config{
		Host:            db.Host,
		Port:            db.Port,
		User:            db.User,
		Password:        db.Password,
		Database:        db.Name,
		SSLMode:         db.SSLMode,
		MaxConns:        db.MaxOpenConns,
		MaxIdle:         db.MaxIdleConns,
		ConnMaxLifetime: db.MaxConnLifetime,
		ConnMaxIdleTime: db.MaxConnIdleTime,
		AutoMigrate:     db.EnableAutoMigrate,
	}
}

func newFetcher(cfg *config.Config) (*scraper.CollyFetcher, error) {
	return scraper.NewCollyFetcher(scraper.Options{
		UserAgent: cfg.Scraping.UserAgent,
		Timeout:   cfg.Scraping.Timeout,
		ProxyURL:  cfg.Scraping.ProxyURL,
	})
}

func newPacer(cfg *config.Config) *scraper.RandomDelay {
	return scraper.NewRandomDelay(cfg.Scraping.DelayMin, cfg.Scraping.DelayMax)
}

// newTelegramClient возвращает nil, если токен или чат не заданы
func newTelegramClient(cfg *config.Config) *http_client.TelegramClient {
	if !cfg.TelegramConfigured() {
		return nil
	}
	return http_client.NewTelegramClient(
		cfg.Telegram.APIBaseURL,
		cfg.Telegram.BotToken,
		cfg.Telegram.ParseMode,
		cfg.Telegram.Timeout,
	)
}

// newTransport собирает транспорт алертов. Возвращает nil-интерфейс,
// если доставлять некуда.
func newTransport(cfg *config.Config, client *http_client.TelegramClient, console io.Writer) notification.Transport {
	var primary notification.Transport
	if client != nil {
		primary = notification.NewThrottled(
			notification.NewTelegramNotifier(client, cfg.Telegram.ChatID),
			cfg.Telegram.SendInterval,
		)
	}

	if !cfg.Alerts.ConsoleNotify {
		return primary
	}
	mirror := notification.NewConsoleNotifier(console)
	if primary == nil {
		return mirror
	}
	return notification.NewTee(primary, mirror)
}

func describeStore(store storage.PriceStore) string {
	switch store.(type) {
	case *prices.PriceRepository:
		return "postgres"
	case *rediscache.LatestPriceCache:
		return "redis+store"
	case *in_memory_storage.PriceStorage:
		return "memory"
	default:
		return fmt.Sprintf("%T", store)
	}
}
