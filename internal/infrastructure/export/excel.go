// internal/infrastructure/export/excel.go
package export

import (
	"fmt"
	"io"
	"time"

	"competitor-price-monitor/internal/types/storage"

	"github.com/xuri/excelize/v2"
)

// SheetName - лист с историей цен
const SheetName = "History"

// Headers - заголовки колонок выгрузки
var Headers = []interface{}{
	"ID", "Competitor", "Product", "Name", "Price", "Currency", "Stock", "URL", "Observed at",
}

// ExportHistory пишет историю цен товара в xlsx.
// Порядок строк совпадает с порядком history.
func ExportHistory(w io.Writer, productID string, history []storage.PriceObservation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "I1", bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, obs := range history {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			obs.ID,
			obs.CompetitorName,
			productID,
			storage.Deref(obs.ProductName),
			obs.Price,
			obs.Currency,
			storage.Deref(obs.StockStatus),
			storage.Deref(obs.SourceURL),
			obs.ObservedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "I", 18); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
