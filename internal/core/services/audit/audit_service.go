package audit

import (
	"context"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

// SystemUser is recorded for actions not initiated by a person (scheduler, startup).
const SystemUser = "system"

type AuditService struct {
	repo ports.AuditRepository
}

func NewAuditService(repo ports.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) Log(ctx context.Context, username string, action domain.AuditAction, target, details string) error {
	if username == "" {
		username = SystemUser
	}

	// Use Domain Factory to ensure business rules
	entry, err := domain.NewAuditLog(username, action, target, details)
	if err != nil {
		return err
	}

	return s.repo.SaveAuditLog(ctx, *entry)
}

func (s *AuditService) GetLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}
