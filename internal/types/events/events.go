// internal/types/events/events.go
package events

// EventKind - тип события изменения цены
type EventKind string

const (
	KindNewProduct  EventKind = "new_product"
	KindPriceChange EventKind = "price_change"
)

// Direction - направление изменения цены
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ChangeEvent - вычисляемое событие, не сохраняется.
// Реализации: NewProduct и PriceChange.
type ChangeEvent interface {
	Kind() EventKind
	Product() string
	Competitor() string
	NewPrice() float64
	CurrencyCode() string
}

// NewProduct - первое наблюдение пары (товар, конкурент)
type NewProduct struct {
	ProductID      string  `json:"product_id"`
	CompetitorName string  `json:"competitor_name"`
	Price          float64 `json:"new_price"`
	Currency       string  `json:"currency"`
	ProductName    string  `json:"product_name,omitempty"`
}

func (e NewProduct) Kind() EventKind      { return KindNewProduct }
func (e NewProduct) Product() string      { return e.ProductID }
func (e NewProduct) Competitor() string   { return e.CompetitorName }
func (e NewProduct) NewPrice() float64    { return e.Price }
func (e NewProduct) CurrencyCode() string { return e.Currency }

// PriceChange - изменение цены не меньше порога.
// ChangePercent округлен до двух знаков, знак совпадает с Direction.
type PriceChange struct {
	ProductID      string    `json:"product_id"`
	CompetitorName string    `json:"competitor_name"`
	OldPrice       float64   `json:"old_price"`
	Price          float64   `json:"new_price"`
	ChangePercent  float64   `json:"change_percent"`
	Direction      Direction `json:"direction"`
	Currency       string    `json:"currency"`
	ProductName    string    `json:"product_name,omitempty"`
}

func (e PriceChange) Kind() EventKind      { return KindPriceChange }
func (e PriceChange) Product() string      { return e.ProductID }
func (e PriceChange) Competitor() string   { return e.CompetitorName }
func (e PriceChange) NewPrice() float64    { return e.Price }
func (e PriceChange) CurrencyCode() string { return e.Currency }
