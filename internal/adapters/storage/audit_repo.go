package storage

import (
	"context"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

// Ensure compliance
var _ ports.AuditRepository = (*SQLAdapter)(nil)

func (a *SQLAdapter) SaveAuditLog(ctx context.Context, log domain.AuditLog) error {
	model := auditToModel(log)
	return a.db.WithContext(ctx).Create(&model).Error
}

func (a *SQLAdapter) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	query := a.db.WithContext(ctx).Order("timestamp desc, id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []AuditLogModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	logs := make([]domain.AuditLog, len(models))
	for i, m := range models {
		logs[i] = auditToDomain(m)
	}
	return logs, nil
}
