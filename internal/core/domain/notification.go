package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidNotificationType = errors.New("invalid notification type")
	ErrMissingRecipient        = errors.New("notification recipient is required")
)

// NotificationType categorises a user notification.
type NotificationType string

const (
	NotificationHighRisk     NotificationType = "high_risk"
	NotificationMediumRisk   NotificationType = "medium_risk"
	NotificationLowRisk      NotificationType = "low_risk"
	NotificationScanComplete NotificationType = "scan_complete"
	NotificationTechContact  NotificationType = "tech_contact"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationHighRisk, NotificationMediumRisk, NotificationLowRisk,
		NotificationScanComplete, NotificationTechContact:
		return true
	}
	return false
}

// Notification is a message addressed to a single user.
type Notification struct {
	ID            uint             `json:"id"`
	Username      string           `json:"username"`
	Subject       string           `json:"subject"`
	Message       string           `json:"message"`
	Type          NotificationType `json:"type"`
	RelatedScanID *uint            `json:"related_scan_id,omitempty"`
	IsRead        bool             `json:"is_read"`
	CreatedAt     time.Time        `json:"created_at"`
	ReadAt        *time.Time       `json:"read_at,omitempty"`
}

// NewNotification creates an unread notification.
func NewNotification(username string, nType NotificationType, subject, message string, scanID *uint, at time.Time) (*Notification, error) {
	if username == "" {
		return nil, ErrMissingRecipient
	}
	if !nType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNotificationType, nType)
	}
	return &Notification{
		Username:      username,
		Subject:       subject,
		Message:       message,
		Type:          nType,
		RelatedScanID: scanID,
		CreatedAt:     at.UTC(),
	}, nil
}

// MarkRead moves the notification to read. It reports false when it was already read.
func (n *Notification) MarkRead(at time.Time) bool {
	if n.IsRead {
		return false
	}
	t := at.UTC()
	n.IsRead = true
	n.ReadAt = &t
	return true
}

// PortDetail is one High-tier port carried by a technician alert.
type PortDetail struct {
	Port           uint16 `json:"port"`
	Service        string `json:"service"`
	Recommendation string `json:"recommendation"`
}

func (d PortDetail) String() string {
	return fmt.Sprintf("Port %d (%s): %s", d.Port, d.Service, d.Recommendation)
}

// TechnicianAlert is an escalation addressed to the technician role.
type TechnicianAlert struct {
	ID            uint         `json:"id"`
	Username      string       `json:"username"`
	Target        string       `json:"target"`
	RiskLevel     Verdict      `json:"risk_level"`
	HighRiskPorts []uint16     `json:"high_risk_ports"`
	PortDetails   []PortDetail `json:"port_details"`
	Message       string       `json:"message"`
	CreatedAt     time.Time    `json:"created_at"`
	IsRead        bool         `json:"is_read"`
	ReadAt        *time.Time   `json:"read_at,omitempty"`
	ScanID        uint         `json:"scan_id"`
}

// NewTechnicianAlert aggregates the High-tier observations of one scan into a single alert.
func NewTechnicianAlert(scan ScanRecord, high []ClassifiedObservation, at time.Time) *TechnicianAlert {
	alert := &TechnicianAlert{
		Username:  scan.Username,
		Target:    scan.Target,
		RiskLevel: scan.Verdict,
		Message:   fmt.Sprintf("User %s detected %s device at %s", scan.Username, scan.Verdict, scan.Target),
		CreatedAt: at.UTC(),
		ScanID:    scan.ID,
	}
	for _, o := range high {
		alert.HighRiskPorts = append(alert.HighRiskPorts, o.Port)
		alert.PortDetails = append(alert.PortDetails, PortDetail{
			Port:           o.Port,
			Service:        o.Service,
			Recommendation: o.Recommendation,
		})
	}
	return alert
}

func (a *TechnicianAlert) MarkRead(at time.Time) bool {
	if a.IsRead {
		return false
	}
	t := at.UTC()
	a.IsRead = true
	a.ReadAt = &t
	return true
}

// FormatPorts renders the port list for display ("21, 23").
func (a *TechnicianAlert) FormatPorts() string {
	parts := make([]string, len(a.HighRiskPorts))
	for i, p := range a.HighRiskPorts {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}

// FormatPortDetails renders the details for display. Not meant to be parsed back.
func (a *TechnicianAlert) FormatPortDetails() string {
	parts := make([]string, len(a.PortDetails))
	for i, d := range a.PortDetails {
		parts[i] = d.String()
	}
	return strings.Join(parts, " | ")
}
