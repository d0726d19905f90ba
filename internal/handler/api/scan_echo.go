package api

import (
	"context"
	"errors"
	"strings"
	"time"

	models "CoilScan/internal/domain/models"
	domrepo "CoilScan/internal/domain/repository"
	"CoilScan/internal/usecase"
	"CoilScan/pkg/cache"
	xhttp "CoilScan/pkg/http"
	xlogger "CoilScan/pkg/logger"
	xutil "CoilScan/pkg/util"

	"github.com/labstack/echo/v4"
)

// ScanEchoHandler exposes scan results, candle history, and a manual scan
// trigger over HTTP.
type ScanEchoHandler struct {
	logger  *xlogger.Logger
	scanner *usecase.Scanner
	store   domrepo.CandleStore
	cache   cache.Service
}

func NewScanEchoHandler(logger *xlogger.Logger, scanner *usecase.Scanner, store domrepo.CandleStore, cacheSvc cache.Service) *ScanEchoHandler {
	return &ScanEchoHandler{logger: logger, scanner: scanner, store: store, cache: cacheSvc}
}

func (h *ScanEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api")
	g.GET("/results", h.Results)
	g.GET("/results/:symbol", h.Result)
	g.GET("/candles", h.Candles)
	g.POST("/scan", h.TriggerScan)
}

// Health reports store connectivity.
func (h *ScanEchoHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		return xhttp.DataResponse(c, 503, map[string]string{"status": "degraded"})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Results returns the latest cached run summary and all cached reports that
// pass the overall gate, unless all=true is given.
func (h *ScanEchoHandler) Results(c echo.Context) error {
	ctx := c.Request().Context()

	var summary models.RunSummary
	if err := h.cache.Get(ctx, "summary:latest", &summary); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return xhttp.NotFoundResponse(c, "no scan has completed yet")
		}
		h.logger.Error("results cache error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("summary lookup failed").WithError(err))
	}

	all := strings.EqualFold(c.QueryParam("all"), "true")
	reports := h.cachedReports(ctx)
	if !all {
		passing := reports[:0]
		for _, r := range reports {
			if r.Stages.Overall {
				passing = append(passing, r)
			}
		}
		reports = passing
	}

	return xhttp.SuccessResponse(c, map[string]interface{}{
		"summary": summary,
		"reports": reports,
	})
}

// Result returns the latest cached report for one symbol.
func (h *ScanEchoHandler) Result(c echo.Context) error {
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var report models.ScanReport
	if err := h.cache.Get(c.Request().Context(), "report:"+req.Symbol, &report); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return xhttp.NotFoundResponse(c, "no report for symbol")
		}
		h.logger.Error("report cache error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("report lookup failed").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, report)
}

// Candles returns stored candle history for one symbol.
func (h *ScanEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	from := xutil.ParseTimeDefault(req.From, time.Time{})
	to := xutil.ParseTimeDefault(req.To, time.Time{})

	candles, err := h.store.LoadSymbol(c.Request().Context(), req.Symbol, tf, from, to, req.Limit)
	if err != nil {
		h.logger.Error("candles store error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("candle history query failed").WithError(err))
	}
	return xhttp.ListResponse(c, candles, int64(len(candles)))
}

// TriggerScan starts a scan run in the background and returns immediately.
func (h *ScanEchoHandler) TriggerScan(c echo.Context) error {
	req := &models.ScanTriggerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	go func() {
		// detached from the request lifetime
		summary, err := h.scanner.Run(context.Background(), req.FullRefresh)
		if err != nil {
			if errors.Is(err, usecase.ErrScanInProgress) {
				h.logger.Warn("scan trigger skipped, run in progress")
				return
			}
			h.logger.Error("triggered scan failed", xlogger.Error(err))
			return
		}
		h.logger.Info("triggered scan finished", xlogger.String("scan_id", summary.ScanID))
	}()

	return xhttp.DataResponse(c, 202, map[string]string{"status": "scan started"})
}

// cachedReports loads every cached per-symbol report via a single MGET,
// using the index the scanner writes alongside the reports.
func (h *ScanEchoHandler) cachedReports(ctx context.Context) []*models.ScanReport {
	var index []string
	if err := h.cache.Get(ctx, "reports:index", &index); err != nil || len(index) == 0 {
		return nil
	}
	keys := make([]string, len(index))
	for i, symbol := range index {
		keys[i] = "report:" + symbol
	}
	typed, err := cache.MGetTyped[models.ScanReport](ctx, h.cache, keys...)
	if err != nil {
		h.logger.Warn("report mget failed", xlogger.Error(err))
		return nil
	}
	out := make([]*models.ScanReport, 0, len(typed))
	for _, symbol := range index {
		if r, ok := typed["report:"+symbol]; ok {
			r := r
			out = append(out, &r)
		}
	}
	return out
}
