// Package api exposes the batch analysis engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/banking/batch-analysis/internal/domain"
)

// Analyzer is the engine surface used by the handlers
type Analyzer interface {
	Run(ctx context.Context, req *domain.AnalysisRequest) (*domain.AnalysisResult, error)
	Result(ctx context.Context, analysisID string) (*domain.AnalysisResult, error)
	GetRunCount() int64
	GetAverageLatency() float64
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status       string    `json:"status"`
	Service      string    `json:"service"`
	Timestamp    time.Time `json:"timestamp"`
	Runs         int64     `json:"runs"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
}

// AnalysisTypesResponse is returned by GET /analysis/types
type AnalysisTypesResponse struct {
	AnalysisTypes []domain.AnalysisTypeInfo `json:"analysis_types"`
}

type handlers struct {
	analyzer Analyzer
	service  string
}

func (h *handlers) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		Service:      h.service,
		Timestamp:    time.Now().UTC(),
		Runs:         h.analyzer.GetRunCount(),
		AvgLatencyMs: h.analyzer.GetAverageLatency(),
	})
}

func (h *handlers) analysisTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, AnalysisTypesResponse{AnalysisTypes: domain.AnalysisCatalogue()})
}

func (h *handlers) runBatch(c echo.Context) error {
	var body domain.BatchAnalysisRequest
	if err := c.Bind(&body); err != nil {
		return err
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	req, err := body.ToAnalysisRequest()
	if err != nil {
		return err
	}

	result, err := h.analyzer.Run(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *handlers) getResult(c echo.Context) error {
	result, err := h.analyzer.Result(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
