package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
)

// ScanRepository is the scan-history store.
type ScanRepository interface {
	// InsertScan persists the record together with its classified observations
	// and returns the assigned scan id.
	InsertScan(ctx context.Context, scan domain.ScanRecord) (uint, error)
	GetScan(ctx context.Context, id uint) (*domain.ScanRecord, error)
	ListScans(ctx context.Context, filter domain.ScanFilter) ([]domain.ScanRecord, error)

	// ListLabeledPorts returns every persisted (port, tier) pair, the training signal
	// for the adaptive risk model.
	ListLabeledPorts(ctx context.Context) ([]domain.LabeledPort, error)
}

// NotificationRepository stores per-user notifications.
type NotificationRepository interface {
	InsertNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, username string, unreadOnly bool) ([]domain.Notification, error)
	CountUnreadNotifications(ctx context.Context, username string) (int64, error)
	// MarkNotificationRead only touches unread rows; it reports whether a row changed.
	// A missing id yields domain.ErrNotFound.
	MarkNotificationRead(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, username string, at time.Time) (int64, error)
	DeleteNotification(ctx context.Context, id uint) error
}

// TechAlertRepository stores the shared technician alert queue.
type TechAlertRepository interface {
	InsertTechAlert(ctx context.Context, a *domain.TechnicianAlert) error
	ListTechAlerts(ctx context.Context, unreadOnly bool) ([]domain.TechnicianAlert, error)
	CountUnreadTechAlerts(ctx context.Context) (int64, error)
	MarkTechAlertRead(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkAllTechAlertsRead(ctx context.Context, at time.Time) (int64, error)
}

// ModelRepository persists the trained risk model.
type ModelRepository interface {
	// LoadModel returns nil, nil when no model has been saved yet.
	LoadModel(ctx context.Context) (*domain.ModelState, error)
	SaveModel(ctx context.Context, state domain.ModelState) error
}

// UserRepository is the user-role store.
type UserRepository interface {
	SaveUser(ctx context.Context, user domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}
