package storage

import (
	"context"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

// Ensure interface compliance
var _ ports.TechAlertRepository = (*SQLAdapter)(nil)

func (a *SQLAdapter) InsertTechAlert(ctx context.Context, alert *domain.TechnicianAlert) error {
	model, err := alertToModel(*alert)
	if err != nil {
		return err
	}
	if err := a.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	alert.ID = model.ID
	return nil
}

func (a *SQLAdapter) ListTechAlerts(ctx context.Context, unreadOnly bool) ([]domain.TechnicianAlert, error) {
	query := a.db.WithContext(ctx)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	var models []TechAlertModel
	if err := query.Order("created_at desc, id desc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.TechnicianAlert, len(models))
	for i, m := range models {
		out[i] = alertToDomain(m)
	}
	return out, nil
}

func (a *SQLAdapter) CountUnreadTechAlerts(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&TechAlertModel{}).Where("is_read = ?", false).Count(&count).Error
	return count, err
}

func (a *SQLAdapter) MarkTechAlertRead(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := a.db.WithContext(ctx).Model(&TechAlertModel{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at.UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	return false, a.ensureExists(ctx, &TechAlertModel{}, id)
}

func (a *SQLAdapter) MarkAllTechAlertsRead(ctx context.Context, at time.Time) (int64, error) {
	res := a.db.WithContext(ctx).Model(&TechAlertModel{}).
		Where("is_read = ?", false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at.UTC()})
	return res.RowsAffected, res.Error
}
