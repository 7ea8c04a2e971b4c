package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
	"github.com/nats-io/nats.go"
)

// Ensure interface compliance
var _ ports.AlertPublisher = (*NATSPublisher)(nil)

const DefaultSubject = "iotguard.alerts.technician"

var ErrNotConnected = errors.New("NATS connection not available")

// msgConn is the part of *nats.Conn the publisher needs.
type msgConn interface {
	PublishMsg(m *nats.Msg) error
	IsConnected() bool
}

// NATSPublisher publishes technician alerts as JSON messages.
type NATSPublisher struct {
	conn    msgConn
	subject string
	logger  *slog.Logger
}

// ConnectNATS dials the server with unlimited reconnects.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("iotguard"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

func NewNATSPublisher(conn *nats.Conn, subject string, logger *slog.Logger) *NATSPublisher {
	if conn == nil {
		return newNATSPublisher(nil, subject, logger)
	}
	return newNATSPublisher(conn, subject, logger)
}

func newNATSPublisher(conn msgConn, subject string, logger *slog.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) PublishTechAlert(ctx context.Context, alert domain.TechnicianAlert) error {
	if p.conn == nil || !p.conn.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	msgID := uuid.New().String()
	headers := nats.Header{}
	headers.Set(nats.MsgIdHdr, msgID)
	headers.Set("x-alert-id", strconv.FormatUint(uint64(alert.ID), 10))
	headers.Set("x-scan-id", strconv.FormatUint(uint64(alert.ScanID), 10))
	headers.Set("x-risk-level", alert.RiskLevel.String())
	headers.Set("x-timestamp", alert.CreatedAt.Format(time.RFC3339))

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  headers,
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	p.logger.Info("Published technician alert",
		"alert_id", alert.ID,
		"scan_id", alert.ScanID,
		"msg_id", msgID,
		"subject", p.subject)
	return nil
}
