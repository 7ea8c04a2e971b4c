package storage

import (
	"encoding/json"
	"log/slog"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
)

// scanToModel converts a domain scan into its database model.
func scanToModel(s domain.ScanRecord) ScanModel {
	m := ScanModel{
		ID:            s.ID,
		Username:      s.Username,
		Target:        s.Target,
		OpenPortCount: s.OpenPortCount,
		RiskSummary:   s.RiskSummary,
		Verdict:       s.Verdict.String(),
		Timestamp:     s.Timestamp,
	}
	for i, o := range s.Observations {
		m.Observations = append(m.Observations, ObservationModel{
			Position:       i,
			Port:           int(o.Port),
			Service:        o.Service,
			Tier:           o.Tier.String(),
			Recommendation: o.Recommendation,
		})
	}
	return m
}

// scanToDomain converts a database model into a domain scan.
func scanToDomain(m ScanModel) domain.ScanRecord {
	verdict, err := domain.ParseVerdict(m.Verdict)
	if err != nil {
		slog.Warn("Unknown verdict in scan record", "scan_id", m.ID, "verdict", m.Verdict)
	}
	s := domain.ScanRecord{
		ID:            m.ID,
		Username:      m.Username,
		Target:        m.Target,
		OpenPortCount: m.OpenPortCount,
		RiskSummary:   m.RiskSummary,
		Verdict:       verdict,
		Timestamp:     m.Timestamp,
	}
	for _, o := range m.Observations {
		tier, _ := domain.ParseTier(o.Tier)
		s.Observations = append(s.Observations, domain.ClassifiedObservation{
			Observation:    domain.Observation{Port: uint16(o.Port), Service: o.Service},
			Tier:           tier,
			Recommendation: o.Recommendation,
		})
	}
	return s
}

func notificationToModel(n domain.Notification) NotificationModel {
	return NotificationModel{
		ID:            n.ID,
		Username:      n.Username,
		Subject:       n.Subject,
		Message:       n.Message,
		Type:          string(n.Type),
		RelatedScanID: n.RelatedScanID,
		IsRead:        n.IsRead,
		CreatedAt:     n.CreatedAt,
		ReadAt:        n.ReadAt,
	}
}

func notificationToDomain(m NotificationModel) domain.Notification {
	return domain.Notification{
		ID:            m.ID,
		Username:      m.Username,
		Subject:       m.Subject,
		Message:       m.Message,
		Type:          domain.NotificationType(m.Type),
		RelatedScanID: m.RelatedScanID,
		IsRead:        m.IsRead,
		CreatedAt:     m.CreatedAt,
		ReadAt:        m.ReadAt,
	}
}

func alertToModel(a domain.TechnicianAlert) (TechAlertModel, error) {
	ports, err := json.Marshal(a.HighRiskPorts)
	if err != nil {
		return TechAlertModel{}, err
	}
	details, err := json.Marshal(a.PortDetails)
	if err != nil {
		return TechAlertModel{}, err
	}
	return TechAlertModel{
		ID:            a.ID,
		Username:      a.Username,
		Target:        a.Target,
		RiskLevel:     a.RiskLevel.String(),
		HighRiskPorts: string(ports),
		PortDetails:   string(details),
		Message:       a.Message,
		CreatedAt:     a.CreatedAt,
		IsRead:        a.IsRead,
		ReadAt:        a.ReadAt,
		ScanID:        a.ScanID,
	}, nil
}

func alertToDomain(m TechAlertModel) domain.TechnicianAlert {
	risk, _ := domain.ParseVerdict(m.RiskLevel)
	a := domain.TechnicianAlert{
		ID:        m.ID,
		Username:  m.Username,
		Target:    m.Target,
		RiskLevel: risk,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
		IsRead:    m.IsRead,
		ReadAt:    m.ReadAt,
		ScanID:    m.ScanID,
	}
	if m.HighRiskPorts != "" {
		_ = json.Unmarshal([]byte(m.HighRiskPorts), &a.HighRiskPorts)
	}
	if m.PortDetails != "" {
		_ = json.Unmarshal([]byte(m.PortDetails), &a.PortDetails)
	}
	return a
}

func userToModel(u domain.User) UserModel {
	return UserModel{ID: u.ID, Username: u.Username, Role: string(u.Role), CreatedAt: u.CreatedAt}
}

func userToDomain(m UserModel) domain.User {
	return domain.User{ID: m.ID, Username: m.Username, Role: domain.Role(m.Role), CreatedAt: m.CreatedAt}
}

func auditToModel(l domain.AuditLog) AuditLogModel {
	return AuditLogModel{
		ID:        l.ID,
		Username:  l.Username,
		Action:    string(l.Action),
		Target:    l.Target,
		Details:   l.Details,
		Timestamp: l.Timestamp,
	}
}

func auditToDomain(m AuditLogModel) domain.AuditLog {
	return domain.AuditLog{
		ID:        m.ID,
		Username:  m.Username,
		Action:    domain.AuditAction(m.Action),
		Target:    m.Target,
		Details:   m.Details,
		Timestamp: m.Timestamp,
	}
}
