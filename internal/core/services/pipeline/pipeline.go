package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
	"github.com/lcalzada-xor/iotguard/internal/core/services/classifier"
	"github.com/lcalzada-xor/iotguard/internal/core/services/dispatch"
	"github.com/lcalzada-xor/iotguard/internal/core/services/riskmodel"
	"github.com/lcalzada-xor/iotguard/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RiskModel is the subset of *riskmodel.Model the pipeline drives.
type RiskModel interface {
	Init(ctx context.Context) error
	Retrain(ctx context.Context) error
	State() riskmodel.State
	Assess(observations []domain.ClassifiedObservation) riskmodel.Assessment
}

// Dispatcher persists a scan and emits its notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, scan domain.ScanRecord, res classifier.Result) (dispatch.Outcome, error)
}

// Result is what a caller gets back from one run.
type Result struct {
	RunID        string                         `json:"run_id"`
	ScanID       uint                           `json:"scan_id,omitempty"`
	Target       string                         `json:"target"`
	Verdict      domain.Verdict                 `json:"verdict"`
	Score        float64                        `json:"score"`
	Source       riskmodel.Source               `json:"source,omitempty"`
	Observations []domain.ClassifiedObservation `json:"observations"`
	Unknown      []domain.ClassifiedObservation `json:"unknown,omitempty"`
	Counts       map[domain.Tier]int            `json:"counts"`
	AlertID      uint                           `json:"alert_id,omitempty"`
	Failures     []string                       `json:"failures,omitempty"`
}

type Service struct {
	probe      ports.Probe
	lookup     classifier.Lookup
	model      RiskModel
	dispatcher Dispatcher
	audit      ports.AuditService
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(probe ports.Probe, lookup classifier.Lookup, model RiskModel, dispatcher Dispatcher, audit ports.AuditService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		probe:      probe,
		lookup:     lookup,
		model:      model,
		dispatcher: dispatcher,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
	}
}

// Run probes target on behalf of username, classifies the open ports, scores
// the scan and dispatches its notifications. A scan with no open ports returns
// verdict Unknown and persists nothing. Probe failures come back as
// *domain.ProbeError; a failed scan insert as *domain.PersistenceError.
// Failed notification emits after the insert are listed in Result.Failures.
func (s *Service) Run(ctx context.Context, username, target string) (*Result, error) {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "RunScan")
	defer span.End()

	start := s.now()
	username = strings.TrimSpace(username)
	target = strings.TrimSpace(target)
	if username == "" {
		return nil, domain.ErrEmptyUsername
	}
	if err := domain.ValidateTarget(target); err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.New().String(), Target: target}
	span.SetAttributes(
		attribute.String("run.id", res.RunID),
		attribute.String("scan.target", target),
		attribute.String("probe", s.probe.Name()),
	)
	logger := s.logger.With("run_id", res.RunID, "username", username, "target", target)
	s.record(ctx, username, domain.ActionScanInitiated, target, "probe="+s.probe.Name())
	logger.Info("Scan started", "probe", s.probe.Name())

	observations, err := s.observe(ctx, target)
	if err != nil {
		telemetry.ProbeFailures.WithLabelValues(s.probe.Name()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe failed")
		logger.Warn("Probe failed", "error", err)
		return nil, err
	}

	classified := classifier.Classify(s.lookup, observations)
	res.Observations = classified.Observations
	res.Unknown = classified.Unknown
	res.Counts = classified.Counts

	if classified.Empty() {
		res.Verdict = domain.VerdictUnknown
		logger.Info("No open ports detected")
		s.record(ctx, username, domain.ActionScanCompleted, target, "no open ports")
		telemetry.ScansTotal.WithLabelValues(res.Verdict.String()).Inc()
		return res, nil
	}

	if err := s.model.Init(ctx); err != nil {
		logger.Warn("Risk model init failed, using rule fallback", "error", err)
	}
	assessment := s.model.Assess(classified.Observations)
	res.Verdict = assessment.Verdict
	res.Score = assessment.Score
	res.Source = assessment.Source
	span.SetAttributes(attribute.String("scan.verdict", res.Verdict.String()))
	logger.Info("Scan assessed", "verdict", res.Verdict.String(), "score", res.Score, "source", res.Source, "ports", len(res.Observations))

	scan := domain.NewScanRecord(username, target, classified.Observations, assessment.Verdict, s.now())
	outcome, err := s.dispatcher.Dispatch(ctx, scan, classified)
	var dispatchErr *domain.DispatchError
	switch {
	case errors.As(err, &dispatchErr):
		for _, f := range dispatchErr.Failures {
			res.Failures = append(res.Failures, f.Error())
		}
		logger.Warn("Scan dispatched with failures", "scan_id", outcome.ScanID, "failures", len(res.Failures))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		logger.Error("Failed to persist scan", "error", err)
		return nil, err
	}
	res.ScanID = outcome.ScanID
	if outcome.Alert != nil {
		res.AlertID = outcome.Alert.ID
	}

	telemetry.ScansTotal.WithLabelValues(res.Verdict.String()).Inc()
	telemetry.ScanDuration.Observe(s.now().Sub(start).Seconds())
	s.record(ctx, username, domain.ActionScanCompleted, target, scan.RiskSummary)

	// New history may be enough to leave the rule fallback.
	if s.model.State() == riskmodel.StateUnavailable {
		if err := s.model.Retrain(ctx); err != nil && !errors.Is(err, domain.ErrInsufficientHistory) {
			logger.Warn("Opportunistic retrain failed", "error", err)
		}
	}
	return res, nil
}

// observe calls the probe and validates every endpoint it reports.
func (s *Service) observe(ctx context.Context, target string) ([]domain.Observation, error) {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "Probe")
	defer span.End()

	raw, err := s.probe.Probe(ctx, target)
	if err != nil {
		var pErr *domain.ProbeError
		if errors.As(err, &pErr) {
			return nil, err
		}
		return nil, &domain.ProbeError{Target: target, Err: err}
	}
	span.SetAttributes(attribute.Int("probe.endpoints", len(raw)))

	out := make([]domain.Observation, 0, len(raw))
	for _, r := range raw {
		o, err := domain.NewObservation(r.Port, r.Service)
		if err != nil {
			return nil, &domain.ProbeError{Target: target, Err: fmt.Errorf("invalid endpoint from %s: %w", s.probe.Name(), err)}
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, username string, action domain.AuditAction, target, details string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, username, action, target, details); err != nil {
		s.logger.Warn("Failed to write audit log", "action", action, "error", err)
	}
}
