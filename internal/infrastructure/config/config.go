// /internal/infrastructure/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"competitor-price-monitor/pkg/logger"

	"github.com/joho/godotenv"
)

// ============================================
// КОНФИГУРАЦИЯ БАЗЫ ДАННЫХ
// ============================================

// DatabaseConfig - конфигурация базы данных
type DatabaseConfig struct {
	// Основные параметры подключения
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	// false - наблюдения хранятся только в памяти процесса
	Enabled bool

	// Настройки пула соединений
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	EnableAutoMigrate bool
}

// RedisConfig конфигурация кэша последних цен
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool

	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Время жизни закэшированной последней цены
	LatestTTL time.Duration
}

// ============================================
// УВЕДОМЛЕНИЯ И ЗАГРУЗКА СТРАНИЦ
// ============================================

// TelegramConfig - доставка алертов в Telegram
type TelegramConfig struct {
	BotToken   string
	ChatID     string
	ParseMode  string
	APIBaseURL string
	Timeout    time.Duration
	// Минимальный интервал между сообщениями в чат
	SendInterval time.Duration
}

// ScrapingConfig - параметры загрузки страниц конкурентов
type ScrapingConfig struct {
	UserAgent string
	Timeout   time.Duration
	ProxyURL  string
	DelayMin  time.Duration
	DelayMax  time.Duration
}

// AlertsConfig - политика алертов
type AlertsConfig struct {
	// Порог изменения цены в процентах, 0 - любое изменение
	PriceChangeThreshold float64
	// true - одно сообщение-дайджест на цикл
	BatchAlerts bool
	// Дублировать алерты в консоль
	ConsoleNotify bool
}

type ScheduleConfig struct {
	IntervalHours int
	// DailyAt - "HH:MM" UTC, заменяет интервал при заданном значении
	DailyAt string
	// CycleTimeout - предел одного цикла, 0 - период расписания
	CycleTimeout time.Duration
}

// DailyClock разбирает DailyAt
func (s ScheduleConfig) DailyClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.DailyAt)
	if err != nil {
		return 0, 0, fmt.Errorf("SCRAPE_DAILY_AT must be HH:MM, got %q", s.DailyAt)
	}
	return t.Hour(), t.Minute(), nil
}

// Interval возвращает период между циклами
func (s ScheduleConfig) Interval() time.Duration {
	return time.Duration(s.IntervalHours) * time.Hour
}

type HTTPConfig struct {
	Enabled bool
	Port    int
}

type LoggingConfig struct {
	Level string
	File  string
	Debug bool
}

// ============================================
// ОСНОВНАЯ КОНФИГУРАЦИЯ
// ============================================

// Config - конфигурация монитора цен
type Config struct {
	Environment string
	Version     string

	Database DatabaseConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Scraping ScrapingConfig
	Alerts   AlertsConfig
	Schedule ScheduleConfig
	HTTP     HTTPConfig
	Logging  LoggingConfig

	// Каталог конкурентов
	CompetitorsFile string
	Competitors     []Competitor
}

// ============================================
// ЗАГРУЗКА КОНФИГУРАЦИИ
// ============================================

// LoadConfig загружает конфигурацию из .env файла и каталога конкурентов
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		fmt.Printf("⚠️  Config file not found, using environment variables\n")
	}

	cfg := FromEnv()

	catalogue, err := LoadCompetitors(cfg.CompetitorsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load competitors: %w", err)
	}
	cfg.ApplyCatalogue(catalogue)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// FromEnv собирает конфигурацию из переменных окружения
func FromEnv() *Config {
	cfg := &Config{}

	// ======================
	// ОСНОВНЫЕ НАСТРОЙКИ
	// ======================
	cfg.Environment = getEnv("ENVIRONMENT", "production")
	cfg.Version = getEnv("VERSION", "1.0.0")
	cfg.CompetitorsFile = getEnv("COMPETITORS_FILE", "config/competitors.yaml")

	// ======================
	// БАЗА ДАННЫХ
	// ======================
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "")
	cfg.Database.Password = getEnv("DB_PASSWORD", "")
	cfg.Database.Name = getEnv("DB_NAME", "price_monitor")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 5)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 2)
	cfg.Database.MaxConnLifetime = getEnvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute)
	cfg.Database.MaxConnIdleTime = getEnvDuration("DB_MAX_CONN_IDLE_TIME", 10*time.Minute)
	cfg.Database.EnableAutoMigrate = getEnvBool("DB_ENABLE_AUTO_MIGRATE", true)
	cfg.Database.Enabled = getEnvBool("DB_ENABLED", true)

	// ======================
	// REDIS
	// ======================
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnvInt("REDIS_PORT", 6379)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.PoolSize = getEnvInt("REDIS_POOL_SIZE", 10)
	cfg.Redis.MinIdleConns = getEnvInt("REDIS_MIN_IDLE_CONNS", 2)
	cfg.Redis.MaxRetries = getEnvInt("REDIS_MAX_RETRIES", 3)
	cfg.Redis.DialTimeout = getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.Redis.ReadTimeout = getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.Redis.WriteTimeout = getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.Redis.LatestTTL = getEnvDuration("REDIS_LATEST_TTL", 24*time.Hour)
	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)

	// ======================
	// TELEGRAM
	// ======================
	cfg.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	cfg.Telegram.ChatID = getEnv("TELEGRAM_CHAT_ID", "")
	cfg.Telegram.ParseMode = getEnv("TELEGRAM_PARSE_MODE", "Markdown")
	cfg.Telegram.APIBaseURL = getEnv("TELEGRAM_API_URL", "https://api.telegram.org")
	cfg.Telegram.Timeout = getEnvDuration("TELEGRAM_TIMEOUT", 30*time.Second)
	cfg.Telegram.SendInterval = getEnvDuration("TELEGRAM_SEND_INTERVAL", time.Second)

	// ======================
	// ЗАГРУЗКА СТРАНИЦ
	// ======================
	cfg.Scraping.UserAgent = getEnv("USER_AGENT",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	cfg.Scraping.Timeout = time.Duration(getEnvInt("TIMEOUT_MS", 30000)) * time.Millisecond
	cfg.Scraping.ProxyURL = getEnv("PROXY_URL", "")
	cfg.Scraping.DelayMin = getEnvDuration("SCRAPE_DELAY_MIN", 2*time.Second)
	cfg.Scraping.DelayMax = getEnvDuration("SCRAPE_DELAY_MAX", 5*time.Second)

	// ======================
	// АЛЕРТЫ И РАСПИСАНИЕ
	// ======================
	cfg.Alerts.PriceChangeThreshold = getEnvFloat("PRICE_CHANGE_THRESHOLD_PERCENT", 0)
	cfg.Alerts.BatchAlerts = getEnvBool("BATCH_ALERTS", true)
	cfg.Alerts.ConsoleNotify = getEnvBool("NOTIFY_CONSOLE", false)
	cfg.Schedule.IntervalHours = getEnvInt("SCRAPE_INTERVAL_HOURS", 4)
	cfg.Schedule.DailyAt = getEnv("SCRAPE_DAILY_AT", "")
	cfg.Schedule.CycleTimeout = getEnvDuration("SCRAPE_CYCLE_TIMEOUT", 0)

	// ======================
	// HTTP API
	// ======================
	cfg.HTTP.Enabled = getEnvBool("HTTP_ENABLED", false)
	cfg.HTTP.Port = getEnvInt("HTTP_PORT", 8080)

	// ======================
	// ЛОГИРОВАНИЕ
	// ======================
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")
	cfg.Logging.File = getEnv("LOG_FILE", "")
	cfg.Logging.Debug = getEnvBool("DEBUG_MODE", false)

	return cfg
}

// ApplyCatalogue переносит каталог в конфигурацию. Значения из YAML
// перекрывают значения окружения.
func (c *Config) ApplyCatalogue(cat *Catalogue) {
	if cat == nil {
		return
	}
	c.Competitors = cat.Competitors

	if cat.Alerts.PriceChangeThreshold != nil {
		c.Alerts.PriceChangeThreshold = *cat.Alerts.PriceChangeThreshold
	}
	if cat.Alerts.BatchAlerts != nil {
		c.Alerts.BatchAlerts = *cat.Alerts.BatchAlerts
	}
	if cat.Scraping.DelayMinSeconds != nil {
		c.Scraping.DelayMin = seconds(*cat.Scraping.DelayMinSeconds)
	}
	if cat.Scraping.DelayMaxSeconds != nil {
		c.Scraping.DelayMax = seconds(*cat.Scraping.DelayMaxSeconds)
	}
}

// ============================================
// ВАЛИДАЦИЯ
// ============================================

// Validate проверяет параметры и возвращает все найденные проблемы разом.
// Отсутствие учетных данных Telegram ошибкой не считается.
func (c *Config) Validate() error {
	var validationErrors []string

	if c.Database.Enabled {
		if c.Database.Host == "" {
			validationErrors = append(validationErrors, "DB_HOST is required")
		}
		if c.Database.Port <= 0 {
			validationErrors = append(validationErrors, "DB_PORT must be positive")
		}
		if c.Database.User == "" {
			validationErrors = append(validationErrors, "DB_USER is required")
		}
		if c.Database.Name == "" {
			validationErrors = append(validationErrors, "DB_NAME is required")
		}
	}

	if c.Redis.Enabled && c.Redis.Port <= 0 {
		validationErrors = append(validationErrors, "REDIS_PORT must be positive")
	}

	if c.Scraping.DelayMin < 0 || c.Scraping.DelayMax < c.Scraping.DelayMin {
		validationErrors = append(validationErrors,
			fmt.Sprintf("invalid delay bounds: min=%s max=%s", c.Scraping.DelayMin, c.Scraping.DelayMax))
	}
	if c.Scraping.Timeout <= 0 {
		validationErrors = append(validationErrors, "TIMEOUT_MS must be positive")
	}

	if c.Schedule.IntervalHours <= 0 {
		validationErrors = append(validationErrors, "SCRAPE_INTERVAL_HOURS must be positive")
	}
	if c.Schedule.DailyAt != "" {
		if _, _, err := c.Schedule.DailyClock(); err != nil {
			validationErrors = append(validationErrors, err.Error())
		}
	}
	if c.Schedule.CycleTimeout < 0 {
		validationErrors = append(validationErrors, "SCRAPE_CYCLE_TIMEOUT must not be negative")
	}

	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		validationErrors = append(validationErrors, "HTTP_PORT must be in range 1-65535")
	}

	validationErrors = append(validationErrors, validateCompetitors(c.Competitors)...)

	if len(validationErrors) > 0 {
		return fmt.Errorf("%s", strings.Join(validationErrors, "; "))
	}

	return nil
}

// TelegramConfigured сообщает, заданы ли токен и чат
func (c *Config) TelegramConfigured() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Threshold возвращает порог алертов, отрицательный трактуется как 0
func (c *Config) Threshold() float64 {
	if c.Alerts.PriceChangeThreshold < 0 {
		return 0
	}
	return c.Alerts.PriceChangeThreshold
}

// ============================================
// ВСПОМОГАТЕЛЬНЫЕ МЕТОДЫ
// ============================================

// GetRedisAddress возвращает адрес Redis
func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// PrintSummary выводит действующую конфигурацию, токен маскируется
func (c *Config) PrintSummary() {
	logger.Info("📋 Конфигурация приложения:")
	logger.Info("   • Окружение: %s (v%s)", c.Environment, c.Version)
	logger.Info("   • Уровень логирования: %s", c.Logging.Level)

	if c.Database.Enabled {
		logger.Info("   • PostgreSQL: %s:%d/%s", c.Database.Host, c.Database.Port, c.Database.Name)
	} else {
		logger.Info("   • PostgreSQL: выключен, хранилище в памяти")
	}
	if c.Redis.Enabled {
		logger.Info("   • Redis: %s (DB: %d, TTL: %s)", c.GetRedisAddress(), c.Redis.DB, c.Redis.LatestTTL)
	}

	if c.TelegramConfigured() {
		logger.Info("   • Telegram Token: %s", MaskToken(c.Telegram.BotToken))
		logger.Info("   • Telegram Chat ID: %s", c.Telegram.ChatID)
	} else {
		logger.Warn("   • Telegram не настроен: алерты не будут доставлены")
	}

	logger.Info("   • Порог изменения цены: %.2f%%", c.Threshold())
	logger.Info("   • Пакетные алерты: %v", c.Alerts.BatchAlerts)
	logger.Info("   • Пауза между запросами: %s - %s", c.Scraping.DelayMin, c.Scraping.DelayMax)
	if c.Schedule.DailyAt != "" {
		logger.Info("   • Циклы: ежедневно в %s UTC", c.Schedule.DailyAt)
	} else {
		logger.Info("   • Интервал циклов: %d ч", c.Schedule.IntervalHours)
	}
	logger.Info("   • HTTP сервер: %v (порт: %d)", c.HTTP.Enabled, c.HTTP.Port)
	logger.Info("   • Конкуренты: %d активных, товаров: %d", c.EnabledCompetitors(), len(c.Targets()))
}

// MaskToken оставляет видимыми только края токена
func MaskToken(token string) string {
	if len(token) <= 10 {
		return strings.Repeat("*", len(token))
	}
	return token[:5] + "..." + token[len(token)-5:]
}

// ============================================
// ВСПОМОГАТЕЛЬНЫЕ ФУНКЦИИ
// ============================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
