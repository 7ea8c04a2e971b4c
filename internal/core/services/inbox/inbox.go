package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

// Service manages the read/unread lifecycle of user notifications and the
// shared technician alert queue. unread -> read is one-way.
type Service struct {
	notes  ports.NotificationRepository
	alerts ports.TechAlertRepository
	audit  ports.AuditService
	logger *slog.Logger
	now    func() time.Time
}

func NewService(notes ports.NotificationRepository, alerts ports.TechAlertRepository, audit ports.AuditService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{notes: notes, alerts: alerts, audit: audit, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context, username string, unreadOnly bool) ([]domain.Notification, error) {
	return s.notes.ListNotifications(ctx, username, unreadOnly)
}

func (s *Service) UnreadCount(ctx context.Context, username string) (int64, error) {
	return s.notes.CountUnreadNotifications(ctx, username)
}

// MarkRead marks one notification read. Re-marking is a no-op and reports false.
func (s *Service) MarkRead(ctx context.Context, actor string, id uint) (bool, error) {
	changed, err := s.notes.MarkNotificationRead(ctx, id, s.now())
	if err != nil {
		return false, fmt.Errorf("mark notification %d read: %w", id, err)
	}
	if changed {
		s.record(ctx, actor, domain.ActionNotificationRead, fmt.Sprintf("notification:%d", id), "")
	}
	return changed, nil
}

// MarkAllRead marks every unread notification of username and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, username string) (int64, error) {
	n, err := s.notes.MarkAllNotificationsRead(ctx, username, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	if n > 0 {
		s.record(ctx, username, domain.ActionNotificationRead, "notifications:all", fmt.Sprintf("%d marked read", n))
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, actor string, id uint) error {
	if err := s.notes.DeleteNotification(ctx, id); err != nil {
		return fmt.Errorf("delete notification %d: %w", id, err)
	}
	s.record(ctx, actor, domain.ActionNotificationDel, fmt.Sprintf("notification:%d", id), "")
	return nil
}

func (s *Service) ListAlerts(ctx context.Context, unreadOnly bool) ([]domain.TechnicianAlert, error) {
	return s.alerts.ListTechAlerts(ctx, unreadOnly)
}

func (s *Service) UnreadAlertCount(ctx context.Context) (int64, error) {
	return s.alerts.CountUnreadTechAlerts(ctx)
}

func (s *Service) MarkAlertRead(ctx context.Context, actor string, id uint) (bool, error) {
	changed, err := s.alerts.MarkTechAlertRead(ctx, id, s.now())
	if err != nil {
		return false, fmt.Errorf("mark alert %d read: %w", id, err)
	}
	if changed {
		s.record(ctx, actor, domain.ActionAlertRead, fmt.Sprintf("alert:%d", id), "")
	}
	return changed, nil
}

// MarkAllAlertsRead clears the shared queue.
func (s *Service) MarkAllAlertsRead(ctx context.Context, actor string) (int64, error) {
	n, err := s.alerts.MarkAllTechAlertsRead(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark all alerts read: %w", err)
	}
	if n > 0 {
		s.record(ctx, actor, domain.ActionAlertRead, "alerts:all", fmt.Sprintf("%d marked read", n))
	}
	return n, nil
}

func (s *Service) record(ctx context.Context, actor string, action domain.AuditAction, target, details string) {
	if s.audit == nil || actor == "" {
		return
	}
	if err := s.audit.Log(ctx, actor, action, target, details); err != nil {
		s.logger.Warn("Failed to write audit log", "action", action, "error", err)
	}
}
