// internal/delivery/http/server.go
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"competitor-price-monitor/application/scheduler"
	"competitor-price-monitor/application/services/orchestrator"
	"competitor-price-monitor/internal/infrastructure/export"
	"competitor-price-monitor/internal/types/fetcher"
	"competitor-price-monitor/internal/types/storage"
	"competitor-price-monitor/pkg/logger"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SummarySource отдает итог последнего цикла
type SummarySource interface {
	LastSummary() *orchestrator.Summary
}

// Pinger - хранилище, которое умеет проверять соединение
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps - зависимости API. Summaries, Jobs и Fetcher могут быть nil.
type Deps struct {
	Store     storage.PriceReader
	Summaries SummarySource
	Jobs      func() []scheduler.JobStatus
	Fetcher   fetcher.StatsProvider
}

// Handler - read-only API над хранилищем цен
type Handler struct {
	deps    Deps
	started time.Time
}

// NewRouter собирает gin-роутер
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	h := &Handler{deps: deps, started: time.Now()}
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		prices := api.Group("/prices/:product")
		prices.GET("/latest", h.Latest)
		prices.GET("/history", h.History)
		prices.GET("/export", h.Export)

		api.GET("/cycles/last", h.LastCycle)
		api.GET("/jobs", h.ListJobs)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

// Health - состояние процесса и хранилища
func (h *Handler) Health(c *gin.Context) {
	status := gin.H{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}
	if h.deps.Fetcher != nil {
		status["fetcher"] = h.deps.Fetcher.Stats()
	}

	if p, ok := h.deps.Store.(Pinger); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["storage"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["storage"] = "ok"
	}

	c.JSON(http.StatusOK, status)
}

// Latest - последнее наблюдение товара, опционально у конкретного конкурента
func (h *Handler) Latest(c *gin.Context) {
	product := c.Param("product")
	competitor := c.Query("competitor")

	obs, err := h.deps.Store.Latest(c.Request.Context(), product, competitor)
	if err != nil {
		h.storageError(c, "latest", err)
		return
	}
	if obs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no observations", "product_id": product})
		return
	}
	c.JSON(http.StatusOK, obs)
}

// History - ограниченная история, новые первыми
func (h *Handler) History(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	history, err := h.deps.Store.History(c.Request.Context(), c.Param("product"), limit)
	if err != nil {
		h.storageError(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id": c.Param("product"),
		"count":      len(history),
		"items":      history,
	})
}

// Export отдает историю товара в xlsx
func (h *Handler) Export(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	product := c.Param("product")
	history, err := h.deps.Store.History(c.Request.Context(), product, limit)
	if err != nil {
		h.storageError(c, "export", err)
		return
	}

	var buf bytes.Buffer
	if err := export.ExportHistory(&buf, product, history); err != nil {
		logger.Error("❌ [API] Export %s failed: %v", product, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_history.xlsx"`, product))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// LastCycle - итог последнего цикла
func (h *Handler) LastCycle(c *gin.Context) {
	if h.deps.Summaries == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has run yet"})
		return
	}
	summary := h.deps.Summaries.LastSummary()
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has run yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":   summary,
		"exit_code": summary.ExitCode(),
		"duration":  summary.Duration().String(),
	})
}

// ListJobs - статус задач планировщика
func (h *Handler) ListJobs(c *gin.Context) {
	if h.deps.Jobs == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []scheduler.JobStatus{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": h.deps.Jobs()})
}

func (h *Handler) storageError(c *gin.Context, op string, err error) {
	logger.Error("❌ [API] %s %s: %v", op, c.Param("product"), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return storage.DefaultHistoryLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return limit, true
}

// Server - HTTP-сервер API с graceful shutdown
type Server struct {
	srv *http.Server
}

// NewServer создает сервер на заданном порту
func NewServer(port int, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start слушает порт в фоне
func (s *Server) Start() {
	go func() {
		logger.Info("🌐 [API] Listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("❌ [API] Server stopped: %v", err)
		}
	}()
}

// Shutdown останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
