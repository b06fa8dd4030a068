// internal/delivery/telegram/formatters/alert.go
package formatters

import (
	"fmt"
	"strings"

	"competitor-price-monitor/internal/types/events"
	"competitor-price-monitor/pkg/utils"
)

// BatchHeader - заголовок дайджеста
const BatchHeader = "*Обновление цен конкурентов*"

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// AlertFormatter отвечает за текст алертов (Telegram Markdown)
type AlertFormatter struct{}

// NewAlertFormatter создает форматтер алертов
func NewAlertFormatter() *AlertFormatter {
	return &AlertFormatter{}
}

// FormatSingle форматирует одно событие подробным блоком
func (f *AlertFormatter) FormatSingle(event events.ChangeEvent) string {
	var sb strings.Builder

	switch e := event.(type) {
	case events.NewProduct:
		sb.WriteString("🆕 *Новый товар*\n\n")
		sb.WriteString(fmt.Sprintf("Товар: `%s`\n", e.ProductID))
		if e.ProductName != "" {
			sb.WriteString(fmt.Sprintf("Название: %s\n", escape(e.ProductName)))
		}
		sb.WriteString(fmt.Sprintf("Конкурент: %s\n", escape(e.CompetitorName)))
		sb.WriteString(fmt.Sprintf("Цена: %s", utils.FormatPrice(e.Price, e.Currency)))

	case events.PriceChange:
		sb.WriteString(fmt.Sprintf("%s *Изменение цены*\n\n", directionEmoji(e.Direction)))
		sb.WriteString(fmt.Sprintf("Товар: `%s`\n", e.ProductID))
		if e.ProductName != "" {
			sb.WriteString(fmt.Sprintf("Название: %s\n", escape(e.ProductName)))
		}
		sb.WriteString(fmt.Sprintf("Конкурент: %s\n\n", escape(e.CompetitorName)))
		sb.WriteString(fmt.Sprintf("Старая цена: %s\n", utils.FormatPrice(e.OldPrice, e.Currency)))
		sb.WriteString(fmt.Sprintf("Новая цена: %s\n", utils.FormatPrice(e.Price, e.Currency)))
		sb.WriteString(fmt.Sprintf("Изменение: %s (%s)",
			utils.FormatPercent(e.ChangePercent), directionWord(e.Direction)))

	default:
		sb.WriteString(fmt.Sprintf("Товар: `%s`, цена %s",
			event.Product(), utils.FormatPrice(event.NewPrice(), event.CurrencyCode())))
	}

	return sb.String()
}

// FormatBatch собирает дайджест по одной строке на событие в исходном порядке.
// Для пустого списка возвращает ok=false: отправлять нечего.
func (f *AlertFormatter) FormatBatch(list []events.ChangeEvent) (string, bool) {
	if len(list) == 0 {
		return "", false
	}

	lines := make([]string, 0, len(list)+2)
	lines = append(lines, BatchHeader, "")

	for _, event := range list {
		lines = append(lines, f.batchLine(event))
	}

	return strings.Join(lines, "\n"), true
}

func (f *AlertFormatter) batchLine(event events.ChangeEvent) string {
	switch e := event.(type) {
	case events.PriceChange:
		return fmt.Sprintf("%s `%s` (%s): %s → %s (%s)",
			directionEmoji(e.Direction),
			e.ProductID,
			escape(e.CompetitorName),
			utils.FormatPrice(e.OldPrice, e.Currency),
			utils.FormatPrice(e.Price, e.Currency),
			utils.FormatPercent(e.ChangePercent),
		)
	default:
		return fmt.Sprintf("🆕 `%s` (%s): %s",
			event.Product(),
			escape(event.Competitor()),
			utils.FormatPrice(event.NewPrice(), event.CurrencyCode()),
		)
	}
}

func directionEmoji(d events.Direction) string {
	if d == events.DirectionUp {
		return "📈"
	}
	return "📉"
}

func directionWord(d events.Direction) string {
	if d == events.DirectionUp {
		return "выросла"
	}
	return "снизилась"
}

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
