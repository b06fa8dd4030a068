// internal/core/domain/signals/detectors/price_change/detector.go
package price_change

import (
	"context"
	"fmt"

	"competitor-price-monitor/internal/types/events"
	"competitor-price-monitor/internal/types/storage"
)

// Candidate - свежая цена, которую нужно сравнить с сохраненной
type Candidate struct {
	ProductID      string
	CompetitorName string
	Price          float64
	Currency       string
	ProductName    string
}

// Detector сравнивает новую цену с последним наблюдением пары
// (товар, конкурент). Ничего не пишет в хранилище.
type Detector struct {
	reader    storage.PriceReader
	threshold float64
}

// NewDetector создает детектор с порогом по умолчанию thresholdPercent
func NewDetector(reader storage.PriceReader, thresholdPercent float64) *Detector {
	return &Detector{reader: reader, threshold: thresholdPercent}
}

// Threshold возвращает порог по умолчанию
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Detect использует порог, заданный при создании
func (d *Detector) Detect(ctx context.Context, c Candidate) (events.ChangeEvent, error) {
	return d.DetectWithThreshold(ctx, c, d.threshold)
}

// DetectWithThreshold возвращает NewProduct для первого наблюдения,
// PriceChange при изменении не меньше порога и nil во всех остальных случаях.
func (d *Detector) DetectWithThreshold(ctx context.Context, c Candidate, thresholdPercent float64) (events.ChangeEvent, error) {
	last, err := d.reader.Latest(ctx, c.ProductID, c.CompetitorName)
	if err != nil {
		return nil, fmt.Errorf("latest price for %s@%s: %w", c.ProductID, c.CompetitorName, err)
	}

	currency := c.Currency
	if currency == "" {
		currency = storage.DefaultCurrency
	}

	// Первое наблюдение интересно всегда, порог не применяется
	if last == nil {
		return events.NewProduct{
			ProductID:      c.ProductID,
			CompetitorName: c.CompetitorName,
			Price:          c.Price,
			Currency:       currency,
			ProductName:    c.ProductName,
		}, nil
	}

	change, changed := Compare(last.Price, c.Price, thresholdPercent)
	if !changed || !change.Qualifies {
		return nil, nil
	}

	return events.PriceChange{
		ProductID:      c.ProductID,
		CompetitorName: c.CompetitorName,
		OldPrice:       last.Price,
		Price:          c.Price,
		ChangePercent:  change.Rounded,
		Direction:      change.Direction,
		Currency:       currency,
		ProductName:    c.ProductName,
	}, nil
}
