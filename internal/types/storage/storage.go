// internal/types/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"
)

// DefaultCurrency валюта наблюдения по умолчанию
const DefaultCurrency = "USD"

// DefaultHistoryLimit - лимит истории, если он не задан
const DefaultHistoryLimit = 100

// ErrInvalidObservation - наблюдение не прошло проверку перед записью
var ErrInvalidObservation = errors.New("invalid price observation")

// PriceObservation - одна сохраненная цена товара у конкурента.
// После записи не изменяется.
type PriceObservation struct {
	ID             int64     `db:"id" json:"id"`
	CompetitorName string    `db:"competitor_name" json:"competitor_name"`
	ProductID      string    `db:"product_id" json:"product_id"`
	ProductName    *string   `db:"product_name" json:"product_name,omitempty"`
	Price          float64   `db:"price" json:"price"`
	Currency       string    `db:"currency" json:"currency"`
	StockStatus    *string   `db:"stock_status" json:"stock_status,omitempty"`
	SourceURL      *string   `db:"source_url" json:"source_url,omitempty"`
	ObservedAt     time.Time `db:"observed_at" json:"observed_at"`
}

// Validate проверяет обязательные поля и неотрицательность цены
func (o *PriceObservation) Validate() error {
	switch {
	case o.CompetitorName == "":
		return errors.Join(ErrInvalidObservation, errors.New("competitor_name is empty"))
	case o.ProductID == "":
		return errors.Join(ErrInvalidObservation, errors.New("product_id is empty"))
	case o.Price < 0:
		return errors.Join(ErrInvalidObservation, errors.New("price is negative"))
	}
	return nil
}

// Normalize подставляет значения по умолчанию
func (o *PriceObservation) Normalize() {
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}
}

// PriceReader - чтение последней цены и ограниченной истории
type PriceReader interface {
	// Latest возвращает последнее наблюдение или nil.
	// Пустой competitor означает "по всем конкурентам".
	Latest(ctx context.Context, productID, competitor string) (*PriceObservation, error)
	// History возвращает не более limit наблюдений, новые первыми
	History(ctx context.Context, productID string, limit int) ([]PriceObservation, error)
}

// PriceStore - append-only хранилище наблюдений
type PriceStore interface {
	PriceReader
	// EnsureSchema идемпотентно создает схему
	EnsureSchema(ctx context.Context) error
	// Record добавляет наблюдение и возвращает его id
	Record(ctx context.Context, obs PriceObservation) (int64, error)
}

// StringPtr возвращает nil для пустой строки
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref возвращает значение указателя или пустую строку
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
