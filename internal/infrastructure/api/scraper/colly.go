// internal/infrastructure/api/scraper/colly.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"competitor-price-monitor/internal/types/fetcher"
	"competitor-price-monitor/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
)

// ErrPriceNotFound - на странице нет элемента цены
var ErrPriceNotFound = errors.New("price element not found")

// Options - параметры загрузки страниц
type Options struct {
	UserAgent string
	Timeout   time.Duration
	ProxyURL  string
}

// CollyFetcher загружает страницы конкурентов и достает текст цены по CSS селектору
type CollyFetcher struct {
	base *colly.Collector

	mu    sync.Mutex
	stats fetcher.FetcherStats
}

// NewCollyFetcher создает загрузчик
func NewCollyFetcher(opts Options) (*CollyFetcher, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
	)
	if opts.UserAgent != "" {
		c.UserAgent = opts.UserAgent
	}
	if opts.Timeout > 0 {
		c.SetRequestTimeout(opts.Timeout)
	}
	if opts.ProxyURL != "" {
		if err := c.SetProxy(opts.ProxyURL); err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
	}

	return &CollyFetcher{base: c}, nil
}

// Fetch загружает одну страницу. Ошибки не паникуют и не возвращаются,
// а превращаются в fetcher.Failure.
func (f *CollyFetcher) Fetch(ctx context.Context, target fetcher.Target) fetcher.Result {
	start := time.Now()
	result := f.fetch(ctx, target)
	f.record(result.OK(), time.Since(start))
	return result
}

func (f *CollyFetcher) fetch(ctx context.Context, target fetcher.Target) fetcher.Result {
	if err := ctx.Err(); err != nil {
		return fetcher.Failure{For: target, Reason: "cancelled", Err: err}
	}
	if target.Selectors.Price == "" {
		return fetcher.Failure{For: target, Reason: "no price selector configured"}
	}

	c := f.base.Clone()

	var (
		rawPrice string
		name     string
		stock    string
		found    bool
		visitErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		price := e.DOM.Find(target.Selectors.Price).First()
		if price.Length() == 0 {
			return
		}
		found = true
		rawPrice = strings.TrimSpace(price.Text())

		if target.Selectors.Name != "" {
			name = strings.TrimSpace(e.DOM.Find(target.Selectors.Name).First().Text())
		}
		if target.Selectors.Stock != "" {
			stock = strings.TrimSpace(e.DOM.Find(target.Selectors.Stock).First().Text())
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("http %d: %w", r.StatusCode, err)
	})

	logger.Debug("🌐 Fetching %s/%s: %s", target.CompetitorName, target.ProductID, target.URL)

	if err := c.Visit(target.URL); err != nil && visitErr == nil {
		visitErr = err
	}

	switch {
	case ctx.Err() != nil:
		return fetcher.Failure{For: target, Reason: "cancelled", Err: ctx.Err()}
	case visitErr != nil:
		return fetcher.Failure{For: target, Reason: visitErr.Error(), Err: visitErr}
	case !found:
		return fetcher.Failure{For: target, Reason: ErrPriceNotFound.Error(), Err: ErrPriceNotFound}
	}

	if name == "" {
		name = target.ProductName
	}

	return fetcher.Success{
		For:         target,
		RawPrice:    rawPrice,
		ProductName: name,
		StockStatus: stock,
		FetchedAt:   time.Now().UTC(),
	}
}

func (f *CollyFetcher) record(ok bool, latency time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stats.TotalRequests++
	if ok {
		f.stats.SuccessfulRequests++
	} else {
		f.stats.FailedRequests++
	}
	// скользящее среднее по всем запросам
	n := time.Duration(f.stats.TotalRequests)
	f.stats.AverageLatency += (latency - f.stats.AverageLatency) / n
	f.stats.LastUpdateTime = time.Now()
}

// noiseElements не попадают в снимок страницы
const noiseElements = "script, style, nav, footer"

// Inspect загружает страницу и достает текст по каждому селектору.
// Без селекторов возвращает весь текст страницы по строкам.
func (f *CollyFetcher) Inspect(ctx context.Context, url string, selectors []string) (*fetcher.PageSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := f.base.Clone()
	snapshot := &fetcher.PageSnapshot{URL: url}
	var visitErr error

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		snapshot.StatusCode = r.StatusCode
	})
	c.OnHTML("html", func(e *colly.HTMLElement) {
		e.DOM.Find(noiseElements).Remove()

		if title := e.DOM.Find("title").First(); title.Length() > 0 {
			text := strings.TrimSpace(title.Text())
			snapshot.Title = &text
		}

		if len(selectors) == 0 {
			snapshot.Text = visibleText(e.DOM.Text())
			return
		}
		snapshot.Selections = make(map[string][]string, len(selectors))
		for _, sel := range selectors {
			texts := []string{}
			e.DOM.Find(sel).Each(func(_ int, s *goquery.Selection) {
				texts = append(texts, strings.TrimSpace(s.Text()))
			})
			snapshot.Selections[sel] = texts
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("http %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(url); err != nil && visitErr == nil {
		visitErr = err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if visitErr != nil {
		return nil, fmt.Errorf("inspect %s: %w", url, visitErr)
	}

	snapshot.Timestamp = time.Now().UTC()
	return snapshot, nil
}

// visibleText убирает пустые строки и отступы
func visibleText(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Stats возвращает копию статистики
func (f *CollyFetcher) Stats() fetcher.FetcherStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}
