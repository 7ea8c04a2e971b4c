package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/nats-io/nats.go"
	"google.golang.org/grpc"

	"github.com/lcalzada-xor/iotguard/internal/adapters/notify"
	"github.com/lcalzada-xor/iotguard/internal/adapters/probe"
	"github.com/lcalzada-xor/iotguard/internal/adapters/storage"
	"github.com/lcalzada-xor/iotguard/internal/adapters/web/handlers"
	webserver "github.com/lcalzada-xor/iotguard/internal/adapters/web/server"
	"github.com/lcalzada-xor/iotguard/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/iotguard/internal/config"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/services/analytics"
	"github.com/lcalzada-xor/iotguard/internal/core/services/audit"
	"github.com/lcalzada-xor/iotguard/internal/core/services/auth"
	"github.com/lcalzada-xor/iotguard/internal/core/services/dispatch"
	grpcserver "github.com/lcalzada-xor/iotguard/internal/core/services/grpc"
	"github.com/lcalzada-xor/iotguard/internal/core/services/inbox"
	"github.com/lcalzada-xor/iotguard/internal/core/services/pipeline"
	"github.com/lcalzada-xor/iotguard/internal/core/services/riskmodel"
	"github.com/lcalzada-xor/iotguard/internal/core/services/rules"
	"github.com/lcalzada-xor/iotguard/internal/telemetry"
)

// Actor recorded for retrains the scheduler triggers.
const SchedulerActor = "scheduler"

// Retrain outcomes, used as metric labels.
const (
	RetrainOK           = "ok"
	RetrainInsufficient = "insufficient_history"
	RetrainUnsaved      = "unsaved"
	RetrainFailed       = "error"
)

// Application holds the core components of the application.
// It acts as the Facade for the entire system, orchestrating services and infrastructure.
type Application struct {
	Config *config.Config

	Store        *storage.SQLAdapter
	Rules        *rules.Table
	Model        *riskmodel.Model
	Scheduler    *riskmodel.Scheduler
	Dispatcher   *dispatch.Dispatcher
	Pipeline     *pipeline.Service
	AuthService  *auth.AuthService
	AuditService *audit.AuditService
	Inbox        *inbox.Service
	Analytics    *analytics.Service

	AlertFeed  *websocket.AlertFeed
	WebServer  *webserver.Server
	GrpcServer *grpc.Server
	Health     *grpcserver.HealthServer

	logger *slog.Logger
	nats   *nats.Conn
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &Application{Config: cfg, logger: logger}

	if err := app.bootstrap(); err != nil {
		app.Close()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	cfg := app.Config

	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	store, err := storage.Open(storage.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.DSN(),
		Trace:  cfg.Trace,
		Debug:  cfg.Database.Debug,
	})
	if err != nil {
		return err
	}
	app.Store = store

	if err := app.initRules(); err != nil {
		return err
	}

	// 2. Domain Services
	app.AuditService = audit.NewAuditService(store)
	app.AuthService = auth.NewAuthService(store, app.AuditService)
	app.Inbox = inbox.NewService(store, store, app.AuditService, app.logger)
	app.Analytics = analytics.NewService(store)

	if err := app.ensureDefaultAdmin(); err != nil {
		app.logger.Warn("Could not ensure default admin", "error", err)
	}

	if err := app.initModel(); err != nil {
		return err
	}

	// 3. Alert fan-out & Pipeline
	app.Dispatcher = dispatch.NewDispatcher(store, store, store, app.logger)
	app.initPublishers()

	p, err := probe.New(cfg.Probe.Kind, probe.Options{
		NmapPath:     cfg.Probe.NmapPath,
		NmapArgs:     cfg.Probe.NmapArgs,
		ShodanKey:    cfg.Probe.ShodanKey,
		ShodanURL:    cfg.Probe.ShodanURL,
		MockScenario: cfg.Probe.MockScenario,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s probe: %w", cfg.Probe.Kind, err)
	}
	app.Pipeline = pipeline.NewService(p, app.Rules, app.Model, app.Dispatcher, app.AuditService, app.logger)

	// 4. Servers
	return app.initServers()
}

func (app *Application) initRules() error {
	if app.Config.RulesPath == "" {
		app.Rules = rules.Default()
	} else {
		table, err := rules.LoadFile(app.Config.RulesPath)
		if err != nil {
			return err
		}
		app.Rules = table
	}
	app.logger.Info("Risk rule table loaded", "version", app.Rules.Version(), "rules", app.Rules.Len())
	return nil
}

func (app *Application) initModel() error {
	mc := app.Config.Model
	app.Model = riskmodel.New(app.Store, app.Store, riskmodel.Config{
		MinSamples: mc.MinSamples,
		MaxDepth:   mc.MaxDepth,
		Seed:       mc.Seed,
	}, app.logger)

	telemetry.ModelState.Set(float64(app.Model.State()))
	app.Model.OnTransition(func(_, to riskmodel.State) {
		telemetry.ModelState.Set(float64(to))
	})

	sched, err := riskmodel.NewScheduler(mc.RetrainSchedule, func(ctx context.Context) error {
		return app.Retrain(ctx, SchedulerActor)
	}, app.logger)
	if err != nil {
		return err
	}
	app.Scheduler = sched
	return nil
}

// initPublishers registers every configured technician alert sink. Outside
// sinks that cannot be reached are skipped with a warning.
func (app *Application) initPublishers() {
	cfg := app.Config

	app.AlertFeed = websocket.NewAlertFeed(cfg.AllowedOrigins, app.logger)
	app.Dispatcher.AddPublisher(app.AlertFeed)

	if cfg.NATS.URL != "" {
		nc, err := notify.ConnectNATS(cfg.NATS.URL, app.logger)
		if err != nil {
			app.logger.Warn("NATS alert publishing disabled", "error", err)
		} else {
			app.nats = nc
			app.Dispatcher.AddPublisher(notify.NewNATSPublisher(nc, cfg.NATS.Subject, app.logger))
			app.logger.Info("NATS alert publishing enabled", "subject", cfg.NATS.Subject)
		}
	}

	if cfg.Slack.Token != "" {
		app.Dispatcher.AddPublisher(notify.NewSlackPublisher(cfg.Slack.Token, cfg.Slack.Channel, app.logger))
		app.logger.Info("Slack alert publishing enabled", "channel", cfg.Slack.Channel)
	}
}

func (app *Application) ensureDefaultAdmin() error {
	created, err := app.AuthService.EnsureAdmin(context.Background(), app.Config.AdminUser)
	if err != nil {
		return err
	}
	if created {
		app.logger.Info("Provisioned default admin user", "username", app.Config.AdminUser)
	}
	return nil
}

func (app *Application) initServers() error {
	cfg := app.Config

	scanHandler, err := handlers.NewScanHandler(app.Pipeline, app.Analytics, cfg.Probe.Timeout, cfg.IdempotencyCacheSize)
	if err != nil {
		return err
	}

	app.WebServer = &webserver.Server{
		Addr:             cfg.Addr,
		Auth:             app.AuthService,
		ScanHandler:      scanHandler,
		RulesHandler:     handlers.NewRulesHandler(app.Rules),
		InboxHandler:     handlers.NewInboxHandler(app.Inbox),
		ModelHandler:     handlers.NewModelHandler(app.Model.Info, app.Retrain),
		AnalyticsHandler: handlers.NewAnalyticsHandler(app.Analytics),
		AuditHandler:     handlers.NewAuditHandler(app.AuditService),
		UserHandler:      handlers.NewUserHandler(app.AuthService),
		ReportHandler:    handlers.NewReportHandler(app.Analytics),
		AlertFeed:        app.AlertFeed,
		ScanRateLimit:    cfg.Probe.RateLimit,
	}

	if cfg.GRPCPort > 0 {
		app.GrpcServer, app.Health = grpcserver.NewGrpcServer(app.Model)
	}
	return nil
}

// Retrain refits the risk model on behalf of actor, counting the outcome and
// auditing every retrain that changed the served parameters.
func (app *Application) Retrain(ctx context.Context, actor string) error {
	err := app.Model.Retrain(ctx)

	var persistErr *domain.PersistenceError
	result := RetrainOK
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInsufficientHistory):
		result = RetrainInsufficient
	case errors.As(err, &persistErr):
		result = RetrainUnsaved
	default:
		result = RetrainFailed
	}
	telemetry.ModelRetrains.WithLabelValues(result).Inc()

	if result == RetrainOK || result == RetrainUnsaved {
		info := app.Model.Info()
		details := fmt.Sprintf("samples=%d nodes=%d", info.SampleCount, info.Nodes)
		if logErr := app.AuditService.Log(ctx, actor, domain.ActionModelRetrained, "risk_model", details); logErr != nil {
			app.logger.Warn("Failed to write audit log", "action", domain.ActionModelRetrained, "error", logErr)
		}
	}
	return err
}

// Run starts the application components and manages their execution lifecycle.
func (app *Application) Run(ctx context.Context) error {
	app.logger.Info("Starting iotguard components...")

	// 1. Risk model warm-up; the rule fallback keeps scans working if it fails.
	if err := app.Model.Init(ctx); err != nil {
		app.logger.Warn("Risk model initialization failed", "error", err)
	}
	app.logger.Info("Risk model state", "state", app.Model.State().String())

	// 2. Background Processing
	if app.Scheduler != nil {
		go app.Scheduler.Run(ctx)
	}

	// 3. Servers
	errChan := make(chan error, 2)

	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	if app.GrpcServer != nil {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", app.Config.GRPCPort))
		if err != nil {
			return fmt.Errorf("grpc listen error: %w", err)
		}
		app.logger.Info("gRPC health server listening", "addr", lis.Addr().String())

		go func() {
			<-ctx.Done()
			app.Health.Shutdown()
			app.GrpcServer.GracefulStop()
		}()

		go func() {
			if err := app.GrpcServer.Serve(lis); err != nil {
				errChan <- fmt.Errorf("grpc server error: %w", err)
			}
		}()
	}

	app.logger.Info("iotguard ready", "addr", app.Config.Addr, "probe", app.Config.Probe.Kind)

	select {
	case <-ctx.Done():
		app.logger.Info("Termination signal received")
	case err := <-errChan:
		return err
	}
	return nil
}

// Close releases connections held by the application.
func (app *Application) Close() error {
	app.logger.Info("Cleaning up resources...")
	if app.Model != nil {
		app.Model.Teardown()
	}
	if app.nats != nil {
		if err := app.nats.Drain(); err != nil {
			app.logger.Warn("NATS drain failed", "error", err)
		}
	}
	if app.Store != nil {
		return app.Store.Close()
	}
	return nil
}
