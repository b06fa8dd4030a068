package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"competitor-price-monitor/application/services/notification"
	"competitor-price-monitor/internal/infrastructure/persistence/in_memory_storage"
	"competitor-price-monitor/internal/types/events"
	"competitor-price-monitor/internal/types/failure"
	"competitor-price-monitor/internal/types/fetcher"
	"competitor-price-monitor/internal/types/storage"
	"competitor-price-monitor/pkg/logger"
)

// stubFetcher отдает заранее заданный сырой текст цены по product id.
// Отсутствующий id - ошибка загрузки.
type stubFetcher struct {
	prices map[string]string
	calls  []string
	onCall func(n int)
}

func (s *stubFetcher) Fetch(ctx context.Context, t fetcher.Target) fetcher.Result {
	s.calls = append(s.calls, t.ProductID)
	if s.onCall != nil {
		s.onCall(len(s.calls))
	}
	raw, ok := s.prices[t.ProductID]
	if !ok {
		return fetcher.Failure{For: t, Reason: "http 503"}
	}
	return fetcher.Success{For: t, RawPrice: raw}
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

type memoryTransport struct{ messages []string }

func (m *memoryTransport) Send(ctx context.Context, text string) error {
	m.messages = append(m.messages, text)
	return nil
}

func (m *memoryTransport) Name() string { return "memory" }

func targets(pairs ...string) []fetcher.Target {
	var list []fetcher.Target
	for i := 0; i+1 < len(pairs); i += 2 {
		list = append(list, fetcher.Target{CompetitorName: pairs[i], ProductID: pairs[i+1], URL: "https://x/" + pairs[i+1]})
	}
	return list
}

func TestRunCycleEndToEndBatch(t *testing.T) {
	ctx := context.Background()
	store := in_memory_storage.NewPriceStorage()
	if _, err := store.Record(ctx, storage.PriceObservation{CompetitorName: "shopA", ProductID: "same", Price: 49.99}); err != nil {
		t.Fatal(err)
	}

	f := &stubFetcher{prices: map[string]string{
		"fresh": "$19.99",
		"same":  "49,99 €",
	}}
	transport := &memoryTransport{}
	runner := NewCycleRunner(store, f, nil, notification.NewDispatcher(transport), Options{Mode: notification.ModeBatch})

	summary, err := runner.RunCycle(ctx, targets("shopA", "broken", "shopA", "fresh", "shopA", "same"))
	if err != nil {
		t.Fatal(err)
	}

	if summary.TotalTargets != 3 || summary.SuccessfulFetches != 2 || summary.FailedFetches != 1 ||
		summary.ChangesDetected != 1 || summary.AlertsDispatched != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, ok := summary.Changes[0].(events.NewProduct); !ok {
		t.Fatalf("expected NewProduct, got %#v", summary.Changes[0])
	}
	if summary.ExitCode() != 1 {
		t.Fatalf("any fetch failure must give exit code 1")
	}
	if len(transport.messages) != 1 || !strings.Contains(transport.messages[0], "`fresh`") {
		t.Fatalf("expected one digest mentioning the new product, got %v", transport.messages)
	}

	// каждая успешная загрузка записана, даже без изменения
	if store.Len() != 3 {
		t.Fatalf("expected seed + 2 recorded observations, got %d", store.Len())
	}
	if runner.LastSummary() != summary {
		t.Fatalf("last summary not kept")
	}
	if summary.RunID == "" || summary.FinishedAt.Before(summary.StartedAt) {
		t.Fatalf("bad run metadata %+v", summary)
	}
}

func TestRunCycleSingleModeAndThreshold(t *testing.T) {
	ctx := context.Background()
	store := in_memory_storage.NewPriceStorage()
	store.Record(ctx, storage.PriceObservation{CompetitorName: "shopA", ProductID: "p1", Price: 100})
	store.Record(ctx, storage.PriceObservation{CompetitorName: "shopA", ProductID: "p2", Price: 100})

	f := &stubFetcher{prices: map[string]string{"p1": "110.00", "p2": "102.00"}}
	transport := &memoryTransport{}
	runner := NewCycleRunner(store, f, nil, notification.NewDispatcher(transport),
		Options{Threshold: 5, Mode: notification.ModeSingle})

	summary, err := runner.RunCycle(ctx, targets("shopA", "p1", "shopA", "p2"))
	if err != nil {
		t.Fatal(err)
	}
	if summary.ChangesDetected != 1 || summary.AlertsDispatched != 1 || summary.ExitCode() != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	pc := summary.Changes[0].(events.PriceChange)
	if pc.ProductID != "p1" || pc.ChangePercent != 10 || pc.Direction != events.DirectionUp {
		t.Fatalf("unexpected change %+v", pc)
	}
}

func TestRunCycleParseFailureCountsAsFetchFailure(t *testing.T) {
	store := in_memory_storage.NewPriceStorage()
	f := &stubFetcher{prices: map[string]string{"p1": "Price on request"}}
	runner := NewCycleRunner(store, f, nil, notification.NewDispatcher(&memoryTransport{}), Options{})

	summary, err := runner.RunCycle(context.Background(), targets("shopA", "p1"))
	if err != nil {
		t.Fatal(err)
	}
	if summary.FailedFetches != 1 || summary.SuccessfulFetches != 0 || store.Len() != 0 {
		t.Fatalf("unparsable price must not be recorded: %+v", summary)
	}
}

func TestRunCycleMissingTransportStillPersists(t *testing.T) {
	store := in_memory_storage.NewPriceStorage()
	f := &stubFetcher{prices: map[string]string{"p1": "10"}}
	runner := NewCycleRunner(store, f, nil, notification.NewDispatcher(nil), Options{Mode: notification.ModeBatch})

	summary, err := runner.RunCycle(context.Background(), targets("shopA", "p1"))
	if err != nil {
		t.Fatalf("missing transport must not fail the cycle: %v", err)
	}
	if summary.DispatchErrors != 1 || summary.AlertsDispatched != 0 || store.Len() != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.ExitCode() != 0 {
		t.Fatalf("dispatch outcome must not affect exit code")
	}
}

func TestRunCyclePacing(t *testing.T) {
	f := &stubFetcher{prices: map[string]string{"a1": "1", "a2": "2", "b1": "3"}}
	pacer := &countingPacer{}
	runner := NewCycleRunner(in_memory_storage.NewPriceStorage(), f, pacer, nil, Options{})

	if _, err := runner.RunCycle(context.Background(), targets("A", "a1", "A", "a2", "B", "b1")); err != nil {
		t.Fatal(err)
	}
	// a1->a2: одна пауза, a2->b1: пауза товара и пауза конкурента
	if pacer.waits != 3 {
		t.Fatalf("expected 3 waits, got %d", pacer.waits)
	}
}

func TestRunCycleCancellationKeepsPersistedRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := in_memory_storage.NewPriceStorage()
	f := &stubFetcher{prices: map[string]string{"p1": "1", "p2": "2", "p3": "3"}}
	f.onCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	transport := &memoryTransport{}
	runner := NewCycleRunner(store, f, nil, notification.NewDispatcher(transport), Options{})

	summary, err := runner.RunCycle(ctx, targets("s", "p1", "s", "p2", "s", "p3"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !summary.Aborted || len(f.calls) != 2 {
		t.Fatalf("cycle must stop between targets: %+v calls=%v", summary, f.calls)
	}
	if store.Len() == 0 {
		t.Fatalf("rows persisted before cancellation must remain")
	}
	if len(transport.messages) != 0 {
		t.Fatalf("interrupted cycle must not dispatch")
	}
}

// flakyStore падает на записи заданного товара
type flakyStore struct {
	*in_memory_storage.PriceStorage
	failProduct string
	fatal       bool
}

func (s *flakyStore) Record(ctx context.Context, obs storage.PriceObservation) (int64, error) {
	if obs.ProductID == s.failProduct {
		if s.fatal {
			return 0, failure.FatalStorage("record", errors.New("connection reset"))
		}
		return 0, failure.Storage("record", errors.New("check violation"))
	}
	return s.PriceStorage.Record(ctx, obs)
}

func TestRunCycleSingleStorageFailureContinues(t *testing.T) {
	store := &flakyStore{PriceStorage: in_memory_storage.NewPriceStorage(), failProduct: "p1"}
	f := &stubFetcher{prices: map[string]string{"p1": "1", "p2": "2"}}
	runner := NewCycleRunner(store, f, nil, notification.NewDispatcher(&memoryTransport{}), Options{Mode: notification.ModeBatch})

	summary, err := runner.RunCycle(context.Background(), targets("s", "p1", "s", "p2"))
	if err != nil {
		t.Fatal(err)
	}
	if summary.StorageErrors != 1 || summary.SuccessfulFetches != 2 || summary.ChangesDetected != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Changes[0].Product() != "p2" {
		t.Fatalf("event of an unrecorded observation must be dropped")
	}
}

func TestRunCycleFatalStorageAborts(t *testing.T) {
	store := &flakyStore{PriceStorage: in_memory_storage.NewPriceStorage(), failProduct: "p1", fatal: true}
	f := &stubFetcher{prices: map[string]string{"p1": "1", "p2": "2"}}
	runner := NewCycleRunner(store, f, nil, notification.NewDispatcher(&memoryTransport{}), Options{})

	summary, err := runner.RunCycle(context.Background(), targets("s", "p1", "s", "p2"))
	if !failure.IsFatal(err) {
		t.Fatalf("expected fatal storage error, got %v", err)
	}
	if !summary.Aborted || len(f.calls) != 1 {
		t.Fatalf("fatal storage error must stop the cycle: %+v", summary)
	}
}

func TestRunCycleEmptyTargets(t *testing.T) {
	transport := &memoryTransport{}
	runner := NewCycleRunner(in_memory_storage.NewPriceStorage(), &stubFetcher{}, nil,
		notification.NewDispatcher(transport), Options{Mode: notification.ModeBatch})

	summary, err := runner.RunCycle(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalTargets != 0 || summary.ExitCode() != 0 || len(transport.messages) != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestRunCycleLogsSummaryOnce(t *testing.T) {
	prev := logger.GetLogger()
	defer logger.SetGlobal(prev)
	var buf bytes.Buffer
	logger.SetGlobalWriter(&buf, "info")

	runner := NewCycleRunner(in_memory_storage.NewPriceStorage(), &stubFetcher{}, nil,
		notification.NewDispatcher(&memoryTransport{}), Options{})
	if _, err := runner.RunCycle(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if strings.Count(out, "📊") != 1 || !strings.Contains(out, "📊 "+SummaryTitle) {
		t.Fatalf("summary title must carry a single icon: %q", out)
	}
}
