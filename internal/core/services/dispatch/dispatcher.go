package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
	"github.com/lcalzada-xor/iotguard/internal/core/services/classifier"
	"github.com/lcalzada-xor/iotguard/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Step names, also used as metric labels.
const (
	StepRiskNotification = "risk_notification"
	StepScanComplete     = "scan_complete"
	StepTechContact      = "tech_contact"
	StepTechAlert        = "tech_alert"
)

// Outcome is what one dispatch sequence produced.
type Outcome struct {
	ScanID        uint
	Notifications []domain.Notification
	Alert         *domain.TechnicianAlert
	Failures      []error
}

// Dispatcher persists a scan and fans it out into notifications and, for High
// Risk verdicts, a technician escalation. Callers guarantee at most one call per scan.
type Dispatcher struct {
	scans      ports.ScanRepository
	notes      ports.NotificationRepository
	alerts     ports.TechAlertRepository
	publishers []ports.AlertPublisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewDispatcher(scans ports.ScanRepository, notes ports.NotificationRepository, alerts ports.TechAlertRepository, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		scans:  scans,
		notes:  notes,
		alerts: alerts,
		logger: logger,
		now:    time.Now,
	}
}

// AddPublisher registers a sink that receives every persisted technician alert.
func (d *Dispatcher) AddPublisher(p ports.AlertPublisher) {
	d.publishers = append(d.publishers, p)
}

// Dispatch runs the ordered sequence: save scan, risk notification, scan_complete,
// then tech_contact and the technician alert when the verdict is High Risk.
// A failed scan insert aborts with a *domain.PersistenceError. Later failures do
// not stop the sequence; they are returned together as a *domain.DispatchError.
func (d *Dispatcher) Dispatch(ctx context.Context, scan domain.ScanRecord, res classifier.Result) (Outcome, error) {
	ctx, span := otel.Tracer("dispatch").Start(ctx, "Dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("scan.target", scan.Target),
		attribute.String("scan.verdict", scan.Verdict.String()),
	)

	id, err := d.scans.InsertScan(ctx, scan)
	if err != nil {
		span.SetStatus(codes.Error, "scan insert failed")
		return Outcome{}, &domain.PersistenceError{Op: "insert scan", Err: err}
	}
	scan.ID = id
	span.SetAttributes(attribute.Int("scan.id", int(id)))

	out := Outcome{ScanID: id}
	d.notify(ctx, &out, scan, StepRiskNotification, riskMessage(scan, res))
	d.notify(ctx, &out, scan, StepScanComplete, scanCompleteMessage(scan))

	if scan.Verdict == domain.VerdictHigh {
		d.notify(ctx, &out, scan, StepTechContact, techContactMessage(scan, res))

		if high := res.HighRisk(); len(high) > 0 {
			alert := domain.NewTechnicianAlert(scan, high, d.now())
			if err := d.alerts.InsertTechAlert(ctx, alert); err != nil {
				d.fail(&out, StepTechAlert, err)
			} else {
				out.Alert = alert
				d.logger.Info("Technician alert created", "scan_id", id, "username", scan.Username, "ports", alert.FormatPorts())
				d.publish(ctx, *alert)
			}
		}
	}

	if len(out.Failures) > 0 {
		span.SetStatus(codes.Error, "partial dispatch")
		return out, &domain.DispatchError{ScanID: id, Failures: out.Failures}
	}
	return out, nil
}

func (d *Dispatcher) notify(ctx context.Context, out *Outcome, scan domain.ScanRecord, step string, msg message) {
	scanID := scan.ID
	n, err := domain.NewNotification(scan.Username, msg.nType, msg.subject, msg.body, &scanID, d.now())
	if err == nil {
		err = d.notes.InsertNotification(ctx, n)
	}
	if err != nil {
		d.fail(out, step, err)
		return
	}
	out.Notifications = append(out.Notifications, *n)
	d.logger.Debug("Notification created", "type", n.Type, "username", n.Username, "scan_id", scanID)
}

func (d *Dispatcher) fail(out *Outcome, step string, err error) {
	telemetry.DispatchFailures.WithLabelValues(step).Inc()
	d.logger.Error("Dispatch step failed", "step", step, "scan_id", out.ScanID, "error", err)
	out.Failures = append(out.Failures, &domain.PersistenceError{Op: fmt.Sprintf("dispatch %s", step), Err: err})
}

// publish hands the alert to every sink. Sink failures are logged and counted only.
func (d *Dispatcher) publish(ctx context.Context, alert domain.TechnicianAlert) {
	for _, p := range d.publishers {
		if err := p.PublishTechAlert(ctx, alert); err != nil {
			telemetry.AlertPublishFailures.WithLabelValues(p.Name()).Inc()
			d.logger.Warn("Failed to publish technician alert", "sink", p.Name(), "alert_id", alert.ID, "error", err)
		}
	}
}
