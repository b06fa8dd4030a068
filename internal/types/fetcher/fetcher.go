// internal/types/fetcher/fetcher.go
package fetcher

import (
	"context"
	"time"
)

// Selectors - CSS селекторы полей товара на странице
type Selectors struct {
	Price string `yaml:"price" json:"price"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Stock string `yaml:"stock,omitempty" json:"stock,omitempty"`
}

// Target - пара (конкурент, товар) с описанием загрузки
type Target struct {
	CompetitorName string
	ProductID      string
	ProductName    string // отображаемое имя из конфигурации, если есть
	URL            string
	Currency       string
	Selectors      Selectors
}

// Result - результат загрузки: Success или Failure
type Result interface {
	Target() Target
	OK() bool
}

// Success - страница загружена, цена найдена в виде текста.
// Price заполняется, если источник уже отдает число.
type Success struct {
	For         Target
	RawPrice    string
	Price       *float64
	ProductName string
	StockStatus string
	FetchedAt   time.Time
}

func (s Success) Target() Target { return s.For }
func (s Success) OK() bool       { return true }

// Failure - загрузка не удалась
type Failure struct {
	For    Target
	Reason string
	Err    error
}

func (f Failure) Target() Target { return f.For }
func (f Failure) OK() bool       { return false }

// Fetcher - внешний загрузчик цен
type Fetcher interface {
	Fetch(ctx context.Context, target Target) Result
}

// Pacer - пауза между запросами к сайтам конкурентов
type Pacer interface {
	Wait(ctx context.Context) error
}

// FetcherStats - статистика фетчера
type FetcherStats struct {
	TotalRequests      int           `json:"total_requests"`
	SuccessfulRequests int           `json:"successful_requests"`
	FailedRequests     int           `json:"failed_requests"`
	LastUpdateTime     time.Time     `json:"last_update_time"`
	AverageLatency     time.Duration `json:"average_latency"`
}

// StatsProvider - фетчер, который ведет статистику запросов
type StatsProvider interface {
	Stats() FetcherStats
}

// PageSnapshot - содержимое произвольной страницы.
// Selections заполняется, если заданы селекторы, иначе Text.
type PageSnapshot struct {
	URL        string              `json:"url"`
	Timestamp  time.Time           `json:"timestamp"`
	StatusCode int                 `json:"status_code"`
	Title      *string             `json:"title"`
	Selections map[string][]string `json:"selections,omitempty"`
	Text       string              `json:"text,omitempty"`
}

// Inspector снимает содержимое страницы по CSS селекторам
type Inspector interface {
	Inspect(ctx context.Context, url string, selectors []string) (*PageSnapshot, error)
}
