package handlers

import (
	"context"
	"net/http"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/services/analytics"
)

// Analytics aggregates scan history for the technician dashboard.
type Analytics interface {
	Summary(ctx context.Context, filter domain.ScanFilter) (analytics.Summary, error)
	Trend(ctx context.Context) ([]analytics.TrendPoint, error)
	Forecast(ctx context.Context) ([]analytics.Forecast, error)
	TopTargets(ctx context.Context, n int) ([]analytics.TargetCount, error)
}

type AnalyticsHandler struct {
	Service Analytics
}

func NewAnalyticsHandler(service Analytics) *AnalyticsHandler {
	return &AnalyticsHandler{Service: service}
}

func (h *AnalyticsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Summary(r.Context(), domain.ScanFilter{Username: r.URL.Query().Get("username")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *AnalyticsHandler) HandleTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := h.Service.Trend(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"trend": trend})
}

func (h *AnalyticsHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	forecast, err := h.Service.Forecast(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"forecast": forecast})
}

func (h *AnalyticsHandler) HandleTopTargets(w http.ResponseWriter, r *http.Request) {
	n, err := queryLimit(r, 5, 100)
	if err != nil {
		writeError(w, err)
		return
	}
	top, err := h.Service.TopTargets(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"targets": top})
}
