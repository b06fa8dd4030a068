// internal/core/domain/signals/detectors/price_change/calculator.go
package price_change

import (
	"competitor-price-monitor/internal/types/events"

	"github.com/shopspring/decimal"
)

// percentPlaces - точность процента изменения в событиях
const percentPlaces = 2

// ZeroBasePercent - процент, который сообщается при росте с нулевой цены
var ZeroBasePercent = decimal.NewFromInt(100)

var hundred = decimal.NewFromInt(100)

// Change - результат сравнения двух цен
type Change struct {
	Percent   decimal.Decimal // неокругленный процент
	Rounded   float64         // процент, округленный до двух знаков
	Direction events.Direction
	Qualifies bool // порог пройден
}

// Compare сравнивает старую и новую цену с порогом thresholdPercent.
// Возвращает ok=false, если цены равны.
//
// Порог сравнивается с неокругленным процентом: 4.999% не проходит порог 5%,
// хотя округляется до 5.00. Рост с нулевой цены проходит любой порог.
func Compare(oldPrice, newPrice, thresholdPercent float64) (Change, bool) {
	oldD := decimal.NewFromFloat(oldPrice)
	newD := decimal.NewFromFloat(newPrice)

	if oldD.Equal(newD) {
		return Change{}, false
	}

	direction := events.DirectionUp
	if newD.LessThan(oldD) {
		direction = events.DirectionDown
	}

	if oldD.IsZero() {
		percent := ZeroBasePercent
		if direction == events.DirectionDown {
			percent = percent.Neg()
		}
		return Change{
			Percent:   percent,
			Rounded:   percent.InexactFloat64(),
			Direction: direction,
			Qualifies: true,
		}, true
	}

	percent := newD.Sub(oldD).Div(oldD).Mul(hundred)

	threshold := decimal.NewFromFloat(thresholdPercent)
	if threshold.IsNegative() {
		threshold = decimal.Zero
	}

	return Change{
		Percent:   percent,
		Rounded:   percent.Round(percentPlaces).InexactFloat64(),
		Direction: direction,
		Qualifies: percent.Abs().GreaterThanOrEqual(threshold),
	}, true
}
