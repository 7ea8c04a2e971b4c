package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

// Ensure interface compliance
var _ ports.NotificationRepository = (*SQLAdapter)(nil)

func (a *SQLAdapter) InsertNotification(ctx context.Context, n *domain.Notification) error {
	model := notificationToModel(*n)
	if err := a.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	n.ID = model.ID
	return nil
}

func (a *SQLAdapter) ListNotifications(ctx context.Context, username string, unreadOnly bool) ([]domain.Notification, error) {
	query := a.db.WithContext(ctx).Where("username = ?", username)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	var models []NotificationModel
	if err := query.Order("created_at desc, id desc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Notification, len(models))
	for i, m := range models {
		out[i] = notificationToDomain(m)
	}
	return out, nil
}

func (a *SQLAdapter) CountUnreadNotifications(ctx context.Context, username string) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("username = ? AND is_read = ?", username, false).
		Count(&count).Error
	return count, err
}

// MarkNotificationRead flips an unread row. Already-read rows keep their read_at.
func (a *SQLAdapter) MarkNotificationRead(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := a.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at.UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return false, a.ensureExists(ctx, &NotificationModel{}, id)
}

func (a *SQLAdapter) MarkAllNotificationsRead(ctx context.Context, username string, at time.Time) (int64, error) {
	res := a.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("username = ? AND is_read = ?", username, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at.UTC()})
	return res.RowsAffected, res.Error
}

func (a *SQLAdapter) DeleteNotification(ctx context.Context, id uint) error {
	res := a.db.WithContext(ctx).Delete(&NotificationModel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ensureExists maps a zero-row update onto ErrNotFound when the id is absent.
func (a *SQLAdapter) ensureExists(ctx context.Context, model interface{}, id uint) error {
	var count int64
	if err := a.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("id %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
