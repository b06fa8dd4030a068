// internal/core/domain/pricing/parser.go
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnparsable - текст не удалось превратить в цену
var ErrUnparsable = errors.New("price text is not a number")

// Parse нормализует текст цены ("$1,234.56", "1.234,56 €", "99,99")
// и возвращает десятичное значение.
//
// Если в строке есть и запятая, и точка, десятичным разделителем считается
// тот, что стоит правее. Одиночная запятая с ровно двумя цифрами после неё -
// десятичная, иначе это разделитель тысяч.
func Parse(text string) (decimal.Decimal, error) {
	cleaned := clean(text)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparsable, text)
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// Европейский формат: 1.234,56
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			// US формат: 1,234.56
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) == 2 {
			cleaned = parts[0] + "." + parts[1]
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	if !strings.ContainsAny(cleaned, "0123456789") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparsable, text)
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparsable, text)
	}
	return value, nil
}

// ParsePrice - то же, что Parse, но возвращает float64.
// ok=false означает отсутствие цены, а не ноль.
func ParsePrice(text string) (price float64, ok bool) {
	value, err := Parse(text)
	if err != nil {
		return 0, false
	}
	return value.InexactFloat64(), true
}

// clean оставляет только цифры, запятые и точки
func clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.TrimSpace(text) {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
