package audit

import (
	"context"
	"testing"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockAuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) SaveAuditLog(ctx context.Context, log domain.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditRepository) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.AuditLog), args.Error(1)
}

func TestAuditService_Log(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	svc := NewAuditService(mockRepo)

	mockRepo.On("SaveAuditLog", mock.Anything, mock.MatchedBy(func(l domain.AuditLog) bool {
		return l.Action == domain.ActionScanInitiated && l.Target == "10.0.0.8" && l.Username == "alice" && !l.Timestamp.IsZero()
	})).Return(nil)

	err := svc.Log(context.Background(), "alice", domain.ActionScanInitiated, "10.0.0.8", "probe=nmap")
	assert.NoError(t, err)

	mockRepo.AssertExpectations(t)
}

func TestAuditService_LogDefaultsToSystem(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	svc := NewAuditService(mockRepo)

	mockRepo.On("SaveAuditLog", mock.Anything, mock.MatchedBy(func(l domain.AuditLog) bool {
		return l.Username == SystemUser && l.Action == domain.ActionModelRetrained
	})).Return(nil)

	err := svc.Log(context.Background(), "", domain.ActionModelRetrained, "model", "")
	assert.NoError(t, err)
}

func TestAuditService_RejectsUnknownAction(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	svc := NewAuditService(mockRepo)

	err := svc.Log(context.Background(), "alice", domain.AuditAction("DROP_TABLES"), "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
	mockRepo.AssertNotCalled(t, "SaveAuditLog", mock.Anything, mock.Anything)
}

func TestAuditService_GetLogs(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	svc := NewAuditService(mockRepo)

	logs := []domain.AuditLog{{ID: 1, Action: domain.ActionScanCompleted}}
	mockRepo.On("ListAuditLogs", mock.Anything, 10).Return(logs, nil)
	mockRepo.On("ListAuditLogs", mock.Anything, 100).Return([]domain.AuditLog{}, nil)

	res, err := svc.GetLogs(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Equal(t, domain.ActionScanCompleted, res[0].Action)

	_, err = svc.GetLogs(context.Background(), 0)
	assert.NoError(t, err)
	mockRepo.AssertCalled(t, "ListAuditLogs", mock.Anything, 100)
}
