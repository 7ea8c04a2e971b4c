package domain

import (
	"errors"
	"time"
)

// AuditAction represents a type-safe action identifier for the audit log.
type AuditAction string

const (
	ActionScanInitiated    AuditAction = "SCAN_INITIATED"
	ActionScanCompleted    AuditAction = "SCAN_COMPLETED"
	ActionNotificationRead AuditAction = "NOTIFICATION_READ"
	ActionNotificationDel  AuditAction = "NOTIFICATION_DELETED"
	ActionAlertRead        AuditAction = "ALERT_READ"
	ActionModelRetrained   AuditAction = "MODEL_RETRAINED"
	ActionUserProvisioned  AuditAction = "USER_PROVISIONED"
)

var (
	ErrInvalidAction = errors.New("invalid audit action")
	ErrMissingUser   = errors.New("user identification is required for auditing")
)

// AuditLog represents a record of a security-relevant action.
type AuditLog struct {
	ID        uint        `json:"id"`
	Username  string      `json:"username"`
	Action    AuditAction `json:"action"`
	Target    string      `json:"target"`
	Details   string      `json:"details"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewAuditLog is the designated factory for creating valid AuditLog entities.
func NewAuditLog(username string, action AuditAction, target, details string) (*AuditLog, error) {
	if username == "" {
		return nil, ErrMissingUser
	}
	if !isValidAction(action) {
		return nil, ErrInvalidAction
	}
	return &AuditLog{
		Username:  username,
		Action:    action,
		Target:    target,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}, nil
}

func isValidAction(action AuditAction) bool {
	switch action {
	case ActionScanInitiated, ActionScanCompleted, ActionNotificationRead, ActionNotificationDel,
		ActionAlertRead, ActionModelRetrained, ActionUserProvisioned:
		return true
	}
	return false
}
