package grpc

import (
	"context"
	"testing"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/services/riskmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type staticHistory []domain.LabeledPort

func (h staticHistory) ListLabeledPorts(ctx context.Context) ([]domain.LabeledPort, error) {
	return h, nil
}

type nopStore struct{}

func (nopStore) LoadModel(ctx context.Context) (*domain.ModelState, error) { return nil, nil }
func (nopStore) SaveModel(ctx context.Context, s domain.ModelState) error  { return nil }

func status(t *testing.T, hs *HealthServer, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestHealthTracksModelState(t *testing.T) {
	history := staticHistory{
		{Port: 21, Tier: domain.TierHigh},
		{Port: 22, Tier: domain.TierLow},
		{Port: 23, Tier: domain.TierHigh},
		{Port: 80, Tier: domain.TierMedium},
		{Port: 443, Tier: domain.TierLow},
	}
	model := riskmodel.New(history, nopStore{}, riskmodel.DefaultConfig(), nil)
	srv, hs := NewGrpcServer(model)
	defer srv.Stop()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, ModelService))

	require.NoError(t, model.Init(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, hs, ModelService))

	model.Teardown()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, ModelService))

	hs.Shutdown()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, hs, ""))
}
