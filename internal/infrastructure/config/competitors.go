// /internal/infrastructure/config/competitors.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"competitor-price-monitor/internal/types/fetcher"
	"competitor-price-monitor/internal/types/storage"

	"gopkg.in/yaml.v3"
)

// Catalogue - содержимое competitors.yaml
type Catalogue struct {
	Competitors []Competitor    `yaml:"competitors"`
	Alerts      catalogueAlerts `yaml:"alerts"`
	Scraping    catalogueScrape `yaml:"scraping"`
}

// Поля-указатели отличают "не задано" от нулевого значения
type catalogueAlerts struct {
	PriceChangeThreshold *float64 `yaml:"price_change_threshold"`
	BatchAlerts          *bool    `yaml:"batch_alerts"`
}

type catalogueScrape struct {
	DelayMinSeconds *float64 `yaml:"delay_min_seconds"`
	DelayMaxSeconds *float64 `yaml:"delay_max_seconds"`
}

// Competitor - конкурент и его товары
type Competitor struct {
	Name     string    `yaml:"name"`
	BaseURL  string    `yaml:"base_url"`
	Enabled  *bool     `yaml:"enabled"`
	Currency string    `yaml:"currency"`
	Products []Product `yaml:"products"`
}

// IsEnabled - конкурент включен, если флаг не задан
func (c Competitor) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type Product struct {
	ID        string            `yaml:"id"`
	URL       string            `yaml:"url"`
	Name      string            `yaml:"name"`
	Selectors fetcher.Selectors `yaml:"selectors"`
}

// LoadCompetitors читает каталог. Отсутствующий файл дает пустой каталог.
func LoadCompetitors(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("⚠️  Competitors file %s not found, nothing to monitor\n", path)
		return &Catalogue{}, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseCompetitors(data)
}

// ParseCompetitors разбирает YAML каталога
func ParseCompetitors(data []byte) (*Catalogue, error) {
	var cat Catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("invalid competitors yaml: %w", err)
	}
	return &cat, nil
}

// Targets разворачивает включенных конкурентов в список целей.
// Порядок: конкуренты как в файле, внутри - товары как в файле.
func (c *Config) Targets() []fetcher.Target {
	var targets []fetcher.Target
	for _, comp := range c.Competitors {
		if !comp.IsEnabled() {
			continue
		}

		currency := comp.Currency
		if currency == "" {
			currency = storage.DefaultCurrency
		}

		for _, p := range comp.Products {
			targets = append(targets, fetcher.Target{
				CompetitorName: comp.Name,
				ProductID:      p.ID,
				ProductName:    p.Name,
				URL:            comp.BaseURL + p.URL,
				Currency:       currency,
				Selectors:      p.Selectors,
			})
		}
	}
	return targets
}

// EnabledCompetitors возвращает число включенных конкурентов
func (c *Config) EnabledCompetitors() int {
	n := 0
	for _, comp := range c.Competitors {
		if comp.IsEnabled() {
			n++
		}
	}
	return n
}

func validateCompetitors(competitors []Competitor) []string {
	var problems []string
	seen := make(map[string]bool)

	for i, comp := range competitors {
		if strings.TrimSpace(comp.Name) == "" {
			problems = append(problems, fmt.Sprintf("competitors[%d]: name is required", i))
			continue
		}
		if seen[comp.Name] {
			problems = append(problems, fmt.Sprintf("competitor %q is declared twice", comp.Name))
		}
		seen[comp.Name] = true

		ids := make(map[string]bool)
		for j, p := range comp.Products {
			switch {
			case p.ID == "":
				problems = append(problems, fmt.Sprintf("%s.products[%d]: id is required", comp.Name, j))
			case ids[p.ID]:
				problems = append(problems, fmt.Sprintf("%s: product %q is declared twice", comp.Name, p.ID))
			}
			ids[p.ID] = true

			if comp.BaseURL+p.URL == "" {
				problems = append(problems, fmt.Sprintf("%s.products[%d]: url is required", comp.Name, j))
			}
			if p.Selectors.Price == "" {
				problems = append(problems, fmt.Sprintf("%s.products[%d]: selectors.price is required", comp.Name, j))
			}
		}
	}
	return problems
}
