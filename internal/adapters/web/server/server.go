package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/iotguard/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/iotguard/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/iotguard/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr string

	Auth             middleware.Authorizer
	ScanHandler      *handlers.ScanHandler
	RulesHandler     *handlers.RulesHandler
	InboxHandler     *handlers.InboxHandler
	ModelHandler     *handlers.ModelHandler
	AnalyticsHandler *handlers.AnalyticsHandler
	AuditHandler     *handlers.AuditHandler
	UserHandler      *handlers.UserHandler
	ReportHandler    *handlers.ReportHandler
	AlertFeed        *websocket.AlertFeed

	// ScanRateLimit caps scan requests per user per minute; zero disables it.
	ScanRateLimit int

	srv *http.Server
}

// Handler builds the instrumented route tree. Background work tied to the
// handler stops when ctx is done.
func (s *Server) Handler(ctx context.Context) http.Handler {
	return otelhttp.NewHandler(SetupRoutes(ctx, s), telemetry.ServiceName)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Web server shutting down")
		if s.AlertFeed != nil {
			s.AlertFeed.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Web server shutdown error", "error", err)
		}
	}()

	slog.Info("Web server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
