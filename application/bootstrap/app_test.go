package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"competitor-price-monitor/application/scheduler"
	"competitor-price-monitor/application/services/notification"
	"competitor-price-monitor/internal/delivery/telegram/app/http_client"
	"competitor-price-monitor/internal/infrastructure/config"
	"competitor-price-monitor/internal/infrastructure/persistence/in_memory_storage"
	"competitor-price-monitor/internal/infrastructure/persistence/postgres"
	"competitor-price-monitor/internal/types/fetcher"
	"competitor-price-monitor/internal/types/storage"
)

type staticFetcher map[string]string

func (s staticFetcher) Fetch(ctx context.Context, t fetcher.Target) fetcher.Result {
	raw, ok := s[t.ProductID]
	if !ok {
		return fetcher.Failure{For: t, Reason: "not found"}
	}
	return fetcher.Success{For: t, RawPrice: raw}
}

func testConfig() *config.Config {
	cfg := config.FromEnv()
	cfg.Database.Enabled = false
	cfg.Redis.Enabled = false
	cfg.Telegram.BotToken = ""
	cfg.Telegram.ChatID = ""
	cfg.Alerts.BatchAlerts = true
	cfg.Alerts.ConsoleNotify = false
	cfg.Scraping.DelayMin = 0
	cfg.Scraping.DelayMax = 0
	cfg.Competitors = []config.Competitor{{
		Name:    "shopA",
		BaseURL: "https://a.example",
		Products: []config.Product{
			{ID: "p1", URL: "/p1", Selectors: fetcher.Selectors{Price: ".price"}},
			{ID: "p2", URL: "/p2", Selectors: fetcher.Selectors{Price: ".price"}},
		},
	}}
	return cfg
}

func TestRunOnceWiresTheCycle(t *testing.T) {
	var out bytes.Buffer
	store := in_memory_storage.NewPriceStorage()

	app, err := NewAppBuilder().
		WithConfig(testConfig()).
		WithOption(WithStore(store)).
		WithOption(WithFetcher(staticFetcher{"p1": "$5.00"}, nil)).
		WithOption(WithTransport(notification.NewConsoleNotifier(&out))).
		Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	summary, err := app.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.SuccessfulFetches != 1 || summary.FailedFetches != 1 || summary.AlertsDispatched != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !strings.Contains(out.String(), "`p1`") {
		t.Fatalf("digest not delivered: %q", out.String())
	}
	if app.Runner().LastSummary() != summary {
		t.Fatalf("runner must keep the last summary")
	}
	if app.Status()["store"] != "memory" {
		t.Fatalf("unexpected store %v", app.Status()["store"])
	}
}

func TestExportHistoryWritesFile(t *testing.T) {
	app, err := NewAppBuilder().
		WithConfig(testConfig()).
		WithDryRun(true).
		WithOption(WithFetcher(staticFetcher{"p1": "7", "p2": "8"}, nil)).
		Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "p1.xlsx")
	n, err := app.ExportHistory(context.Background(), "p1", 10, path)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 exported row, got %d", n)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("export file missing: %v", err)
	}
}

func TestTestTelegramWithoutCredentials(t *testing.T) {
	app, err := NewAppBuilder().WithConfig(testConfig()).WithDryRun(true).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := app.TestTelegram(context.Background(), "hi"); !errors.Is(err, notification.ErrTransportNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestRunDaemonRejectsZeroInterval(t *testing.T) {
	app, err := NewAppBuilder().WithConfig(testConfig()).WithDryRun(true).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := app.RunDaemon(context.Background(), scheduler.Every(0)); err == nil {
		t.Fatal("zero interval must be rejected")
	}
}

func TestNewTransport(t *testing.T) {
	cfg := testConfig()
	client := http_client.NewTelegramClient("", "token", "Markdown", 0)

	tests := []struct {
		name    string
		client  *http_client.TelegramClient
		console bool
		want    string
	}{
		{"nothing configured", nil, false, ""},
		{"console only", nil, true, "console"},
		{"telegram only", client, false, "telegram"},
		{"telegram with mirror", client, true, "telegram+console"},
	}
	for _, tt := range tests {
		cfg.Alerts.ConsoleNotify = tt.console
		tr := newTransport(cfg, tt.client, &bytes.Buffer{})
		if tt.want == "" {
			if tr != nil {
				t.Fatalf("%s: expected nil transport, got %s", tt.name, tr.Name())
			}
			continue
		}
		if tr == nil || tr.Name() != tt.want {
			t.Fatalf("%s: unexpected transport %v", tt.name, tr)
		}
	}
}

func TestTestTelegramInDryRun(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.URL.Path)
		mu.Unlock()
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer api.Close()

	cfg := testConfig()
	cfg.Telegram.APIBaseURL = api.URL
	cfg.Telegram.BotToken = "123:abc"
	cfg.Telegram.ChatID = "42"

	app, err := NewAppBuilder().WithConfig(cfg).WithDryRun(true).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if app.Status()["transport"] != "console" {
		t.Fatalf("dry run must keep console alerts, got %v", app.Status()["transport"])
	}
	if err := app.TestTelegram(context.Background(), "ping"); err != nil {
		t.Fatalf("test message must use configured credentials: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 || calls[0] != "/bot123:abc/getMe" || calls[1] != "/bot123:abc/sendMessage" {
		t.Fatalf("unexpected telegram calls %v", calls)
	}
}

func TestScrapePageSavesJSON(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Shop</title></head><body><b class="price">$9.99</b></body></html>`))
	}))
	defer site.Close()

	app, err := NewAppBuilder().WithConfig(testConfig()).WithDryRun(true).Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "out", "scraped_data.json")
	if _, err := app.ScrapePage(context.Background(), site.URL, []string{".price"}, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var saved fetcher.PageSnapshot
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatal(err)
	}
	if saved.URL != site.URL || saved.StatusCode != http.StatusOK || saved.Title == nil || *saved.Title != "Shop" {
		t.Fatalf("unexpected snapshot %+v", saved)
	}
	if got := saved.Selections[".price"]; len(got) != 1 || got[0] != "$9.99" {
		t.Fatalf("unexpected selections %v", saved.Selections)
	}

	if st, ok := app.Status()["fetcher"].(fetcher.FetcherStats); !ok || st.TotalRequests != 0 {
		t.Fatalf("status must expose fetcher stats, got %#v", app.Status()["fetcher"])
	}
}

type migratedStore struct {
	*in_memory_storage.PriceStorage
}

func (migratedStore) MigrationStatus(ctx context.Context) ([]postgres.MigrationStatus, error) {
	return []postgres.MigrationStatus{{ID: 1, Name: "create prices", Applied: true, Status: "applied"}}, nil
}

type wrappedStore struct {
	storage.PriceStore
}

func (w wrappedStore) Unwrap() storage.PriceStore { return w.PriceStore }

func TestMigrationStatus(t *testing.T) {
	build := func(store storage.PriceStore) *Application {
		app, err := NewAppBuilder().
			WithConfig(testConfig()).
			WithOption(WithStore(store)).
			WithOption(WithFetcher(staticFetcher{}, nil)).
			Build(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return app
	}

	if _, err := build(in_memory_storage.NewPriceStorage()).MigrationStatus(context.Background()); !errors.Is(err, ErrNoMigrations) {
		t.Fatalf("memory store has no migrations, got %v", err)
	}

	wrapped := wrappedStore{migratedStore{in_memory_storage.NewPriceStorage()}}
	statuses, err := build(wrapped).MigrationStatus(context.Background())
	if err != nil || len(statuses) != 1 || statuses[0].Status != "applied" {
		t.Fatalf("unexpected statuses %+v %v", statuses, err)
	}
}

func TestDaemonSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.IntervalHours = 6
	cfg.Schedule.DailyAt = ""
	s, err := DaemonSchedule(cfg)
	if err != nil || s.Period() != 6*time.Hour {
		t.Fatalf("expected 6h interval, got %v %v", s.Period(), err)
	}

	cfg.Schedule.DailyAt = "07:15"
	s, err = DaemonSchedule(cfg)
	if err != nil || s.Period() != 24*time.Hour || !s.Valid() {
		t.Fatalf("expected daily schedule, got %v %v", s.Period(), err)
	}

	cfg.Schedule.DailyAt = "7am"
	if _, err := DaemonSchedule(cfg); err == nil {
		t.Fatal("bad clock must be rejected")
	}
}
