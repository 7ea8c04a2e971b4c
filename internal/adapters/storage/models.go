package storage

import "time"

// ScanModel is the GORM model for scan records.
type ScanModel struct {
	ID            uint   `gorm:"primaryKey"`
	Username      string `gorm:"index"`
	Target        string `gorm:"index"`
	OpenPortCount int
	RiskSummary   string
	Verdict       string `gorm:"index"`
	Timestamp     time.Time

	Observations []ObservationModel `gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE"`
}

// ObservationModel stores one classified port of a scan. Position keeps scan order.
type ObservationModel struct {
	ID             uint `gorm:"primaryKey"`
	ScanID         uint `gorm:"index"`
	Position       int
	Port           int
	Service        string
	Tier           string
	Recommendation string
}

// NotificationModel is the GORM model for user notifications.
type NotificationModel struct {
	ID            uint   `gorm:"primaryKey"`
	Username      string `gorm:"index"`
	Subject       string
	Message       string
	Type          string
	RelatedScanID *uint
	IsRead        bool
	CreatedAt     time.Time
	ReadAt        *time.Time
}

// TechAlertModel is the GORM model for technician alerts.
type TechAlertModel struct {
	ID            uint `gorm:"primaryKey"`
	Username      string
	Target        string
	RiskLevel     string
	HighRiskPorts string // JSON encoded []uint16
	PortDetails   string // JSON encoded []domain.PortDetail
	Message       string
	CreatedAt     time.Time
	IsRead        bool
	ReadAt        *time.Time
	ScanID        uint `gorm:"index"`
}

// ModelStateModel holds the single persisted risk model.
type ModelStateModel struct {
	ID        uint `gorm:"primaryKey"`
	State     string
	UpdatedAt time.Time
}

// UserModel is the user-role store.
type UserModel struct {
	ID        string `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex"`
	Role      string
	CreatedAt time.Time
}

// AuditLogModel stores audit entries.
type AuditLogModel struct {
	ID        uint `gorm:"primaryKey"`
	Username  string
	Action    string `gorm:"index"`
	Target    string
	Details   string
	Timestamp time.Time `gorm:"index"`
}
