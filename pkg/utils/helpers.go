// pkg/utils/helpers.go
package utils

import (
	"fmt"
	"time"
)

// FormatDuration форматирует продолжительность в читаемый вид
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dч %dм", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// FormatPrice форматирует цену с двумя знаками и кодом валюты
func FormatPrice(price float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", price)
	}
	return fmt.Sprintf("%.2f %s", price, currency)
}

// FormatPercent форматирует процент со знаком
func FormatPercent(value float64) string {
	return fmt.Sprintf("%+.2f%%", value)
}
