// application/services/orchestrator/summary.go
package orchestrator

import (
	"strconv"
	"time"

	"competitor-price-monitor/internal/types/events"
	"competitor-price-monitor/pkg/utils"
)

// Summary - итог одного цикла мониторинга
type Summary struct {
	RunID             string               `json:"run_id"`
	StartedAt         time.Time            `json:"started_at"`
	FinishedAt        time.Time            `json:"finished_at"`
	TotalTargets      int                  `json:"total_targets"`
	SuccessfulFetches int                  `json:"successful_fetches"`
	FailedFetches     int                  `json:"failed_fetches"`
	ChangesDetected   int                  `json:"changes_detected"`
	AlertsDispatched  int                  `json:"alerts_dispatched"`
	StorageErrors     int                  `json:"storage_errors"`
	DispatchErrors    int                  `json:"dispatch_errors"`
	Aborted           bool                 `json:"aborted"`
	Changes           []events.ChangeEvent `json:"changes"`
}

// ExitCode - 1, если хотя бы одна загрузка не удалась. Доставка алертов
// на код не влияет.
func (s *Summary) ExitCode() int {
	if s.FailedFetches > 0 {
		return 1
	}
	return 0
}

// Duration возвращает длительность цикла
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Stats - поля для вывода в лог
func (s *Summary) Stats() map[string]string {
	return map[string]string{
		"run_id":             s.RunID,
		"duration":           utils.FormatDuration(s.Duration()),
		"total_targets":      strconv.Itoa(s.TotalTargets),
		"successful_fetches": strconv.Itoa(s.SuccessfulFetches),
		"failed_fetches":     strconv.Itoa(s.FailedFetches),
		"changes_detected":   strconv.Itoa(s.ChangesDetected),
		"alerts_dispatched":  strconv.Itoa(s.AlertsDispatched),
		"storage_errors":     strconv.Itoa(s.StorageErrors),
		"dispatch_errors":    strconv.Itoa(s.DispatchErrors),
	}
}
