// cmd/monitor/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"competitor-price-monitor/application/bootstrap"
	"competitor-price-monitor/internal/infrastructure/config"
	"competitor-price-monitor/internal/types/storage"
	"competitor-price-monitor/pkg/logger"
	"competitor-price-monitor/pkg/utils"
)

const (
	exitOK          = 0
	exitFetchErrors = 1
	exitFatal       = 2
)

var (
	envFile      = flag.String("env", ".env", "путь к .env файлу")
	runOnce      = flag.Bool("once", false, "выполнить один цикл и выйти")
	daemon       = flag.Bool("daemon", false, "запускать циклы по расписанию")
	intervalH    = flag.Int("interval", 0, "интервал между циклами в часах (по умолчанию SCRAPE_INTERVAL_HOURS)")
	historyOf    = flag.String("history", "", "показать историю цен товара")
	limit        = flag.Int("limit", storage.DefaultHistoryLimit, "лимит записей истории")
	exportTo     = flag.String("export", "", "выгрузить историю в xlsx файл (вместе с -product)")
	product      = flag.String("product", "", "товар для -export")
	testTelegram = flag.String("test-telegram", "", "отправить тестовое сообщение в Telegram")
	dryRun       = flag.Bool("dry-run", false, "хранилище в памяти, алерты в консоль")
	scrapeURL    = flag.String("scrape", "", "снять содержимое страницы в JSON")
	selectors    = flag.String("selectors", "", "CSS селекторы для -scrape через запятую")
	scrapeOut    = flag.String("out", ".tmp/scraped_data.json", "файл результата -scrape, \"-\" - stdout")
	migrations   = flag.Bool("migrate-status", false, "показать состояние миграций PostgreSQL")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	// 1. Конфигурация и логгер
	if *dryRun || *scrapeURL != "" {
		// godotenv не перекрывает уже заданные переменные
		os.Setenv("DB_ENABLED", "false")
		os.Setenv("REDIS_ENABLED", "false")
	}
	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		log.Printf("❌ Failed to load config: %v", err)
		return exitFatal
	}
	if err := logger.InitGlobal(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Debug); err != nil {
		log.Printf("⚠️  Log file unavailable, logging to stdout: %v", err)
		logger.SetGlobalWriter(os.Stdout, cfg.Logging.Level)
	}
	defer logger.Close()

	if *intervalH > 0 {
		cfg.Schedule.IntervalHours = *intervalH
		cfg.Schedule.DailyAt = ""
	}
	cfg.PrintSummary()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Сборка приложения
	app, err := bootstrap.NewAppBuilder().
		WithConfig(cfg).
		WithDryRun(*dryRun).
		Build(ctx)
	if err != nil {
		logger.Error("❌ Failed to build application: %v", err)
		return exitFatal
	}
	defer app.Close()

	// 3. Режим
	switch {
	case *testTelegram != "":
		if err := app.TestTelegram(ctx, *testTelegram); err != nil {
			logger.Error("❌ %v", err)
			return exitFatal
		}
		return exitOK

	case *scrapeURL != "":
		return scrapePage(ctx, app, *scrapeURL, splitSelectors(*selectors), *scrapeOut)

	case *migrations:
		return printMigrations(ctx, app)

	case *historyOf != "":
		return printHistory(ctx, app, *historyOf, *limit)

	case *exportTo != "":
		if *product == "" {
			logger.Error("❌ -export requires -product")
			return exitFatal
		}
		if _, err := app.ExportHistory(ctx, *product, *limit, *exportTo); err != nil {
			logger.Error("❌ Export failed: %v", err)
			return exitFatal
		}
		return exitOK

	case *daemon:
		schedule, err := bootstrap.DaemonSchedule(cfg)
		if err != nil {
			logger.Error("❌ %v", err)
			return exitFatal
		}
		if err := app.RunDaemon(ctx, schedule); err != nil {
			logger.Error("❌ %v", err)
			return exitFatal
		}
		return exitOK

	default:
		if !*runOnce {
			logger.Info("ℹ️  No mode flag given, running a single cycle (-once)")
		}
		summary, err := app.RunOnce(ctx)
		if err != nil {
			logger.Error("❌ Cycle aborted: %v", err)
			return exitFatal
		}
		if summary.ExitCode() != 0 {
			return exitFetchErrors
		}
		return exitOK
	}
}

func printHistory(ctx context.Context, app *bootstrap.Application, productID string, n int) int {
	history, err := app.History(ctx, productID, n)
	if err != nil {
		logger.Error("❌ Failed to read history: %v", err)
		return exitFatal
	}
	if len(history) == 0 {
		fmt.Printf("Нет данных по товару %s\n", productID)
		return exitOK
	}

	fmt.Printf("📈 История цен %s (%d записей)\n", productID, len(history))
	for _, obs := range history {
		fmt.Printf("  %s  %-20s %s\n",
			obs.ObservedAt.Local().Format(time.DateTime),
			obs.CompetitorName,
			utils.FormatPrice(obs.Price, obs.Currency),
		)
	}
	return exitOK
}

func splitSelectors(raw string) []string {
	var out []string
	for _, sel := range strings.Split(raw, ",") {
		if sel = strings.TrimSpace(sel); sel != "" {
			out = append(out, sel)
		}
	}
	return out
}

func scrapePage(ctx context.Context, app *bootstrap.Application, url string, sels []string, out string) int {
	path := out
	if out == "-" {
		path = ""
	}
	snapshot, err := app.ScrapePage(ctx, url, sels, path)
	if err != nil {
		logger.Error("❌ Scrape failed: %v", err)
		return exitFetchErrors
	}
	if out == "-" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snapshot); err != nil {
			return exitFatal
		}
		return exitOK
	}
	fmt.Printf("Success: data saved to %s\n", out)
	return exitOK
}

func printMigrations(ctx context.Context, app *bootstrap.Application) int {
	statuses, err := app.MigrationStatus(ctx)
	if err != nil {
		logger.Error("❌ Migration status: %v", err)
		return exitFatal
	}
	for _, st := range statuses {
		applied := "-"
		if st.Applied {
			applied = st.AppliedAt.Local().Format(time.DateTime)
		}
		fmt.Printf("  %03d  %-30s %-18s %s\n", st.ID, st.Name, st.Status, applied)
	}
	return exitOK
}
