package ports

import (
	"context"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
)

// AuditService handles the high-level business requirement for action tracking.
type AuditService interface {
	// Log records a security-relevant action performed by username.
	Log(ctx context.Context, username string, action domain.AuditAction, target, details string) error

	// GetLogs retrieves historical audit records.
	GetLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

// AuditRepository handles the low-level persistence of audit data.
type AuditRepository interface {
	SaveAuditLog(ctx context.Context, log domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}
