package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/lcalzada-xor/iotguard/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(ctx context.Context, s *Server) http.Handler {
	r := mux.NewRouter()

	// Public
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Any provisioned user
	user := api.NewRoute().Subrouter()
	user.Use(middleware.Identity(s.Auth, domain.RoleUser))

	scan := http.Handler(http.HandlerFunc(s.ScanHandler.HandleRunScan))
	if s.ScanRateLimit > 0 {
		scan = middleware.RateLimitMiddleware(middleware.NewRateLimiter(ctx, s.ScanRateLimit, time.Minute))(scan)
	}
	user.Handle("/scans", scan).Methods(http.MethodPost)
	user.HandleFunc("/scans", s.ScanHandler.HandleListScans).Methods(http.MethodGet)
	if s.ReportHandler != nil {
		user.HandleFunc("/scans/export", s.ReportHandler.HandleExport).Methods(http.MethodGet)
		user.HandleFunc("/scans/{id:[0-9]+}/report", s.ReportHandler.HandleScanReport).Methods(http.MethodGet)
	}

	user.HandleFunc("/rules", s.RulesHandler.HandleList).Methods(http.MethodGet)
	user.HandleFunc("/rules/{port}", s.RulesHandler.HandleLookup).Methods(http.MethodGet)

	user.HandleFunc("/notifications", s.InboxHandler.HandleListNotifications).Methods(http.MethodGet)
	user.HandleFunc("/notifications/unread-count", s.InboxHandler.HandleUnreadCount).Methods(http.MethodGet)
	user.HandleFunc("/notifications/read-all", s.InboxHandler.HandleMarkAllRead).Methods(http.MethodPost)
	user.HandleFunc("/notifications/{id:[0-9]+}/read", s.InboxHandler.HandleMarkRead).Methods(http.MethodPost)
	user.HandleFunc("/notifications/{id:[0-9]+}", s.InboxHandler.HandleDelete).Methods(http.MethodDelete)

	user.HandleFunc("/model", s.ModelHandler.HandleInfo).Methods(http.MethodGet)

	// Technicians (and admins)
	tech := api.NewRoute().Subrouter()
	tech.Use(middleware.Identity(s.Auth, domain.RoleTechnician))

	tech.HandleFunc("/alerts", s.InboxHandler.HandleListAlerts).Methods(http.MethodGet)
	tech.HandleFunc("/alerts/unread-count", s.InboxHandler.HandleUnreadAlertCount).Methods(http.MethodGet)
	tech.HandleFunc("/alerts/read-all", s.InboxHandler.HandleMarkAllAlertsRead).Methods(http.MethodPost)
	tech.HandleFunc("/alerts/{id:[0-9]+}/read", s.InboxHandler.HandleMarkAlertRead).Methods(http.MethodPost)

	tech.HandleFunc("/model/retrain", s.ModelHandler.HandleRetrain).Methods(http.MethodPost)

	tech.HandleFunc("/analytics/summary", s.AnalyticsHandler.HandleSummary).Methods(http.MethodGet)
	tech.HandleFunc("/analytics/trend", s.AnalyticsHandler.HandleTrend).Methods(http.MethodGet)
	tech.HandleFunc("/analytics/forecast", s.AnalyticsHandler.HandleForecast).Methods(http.MethodGet)
	tech.HandleFunc("/analytics/top-targets", s.AnalyticsHandler.HandleTopTargets).Methods(http.MethodGet)

	// Admin
	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.Identity(s.Auth, domain.RoleAdmin))
	admin.HandleFunc("/audit-logs", s.AuditHandler.HandleGetLogs).Methods(http.MethodGet)
	if s.UserHandler != nil {
		admin.HandleFunc("/users", s.UserHandler.HandleList).Methods(http.MethodGet)
		admin.HandleFunc("/users", s.UserHandler.HandleCreate).Methods(http.MethodPost)
	}

	// Live technician feed
	if s.AlertFeed != nil {
		ws := middleware.Identity(s.Auth, domain.RoleTechnician)(http.HandlerFunc(s.AlertFeed.HandleWebSocket))
		r.Handle("/ws/alerts", ws).Methods(http.MethodGet)
	}

	return r
}
