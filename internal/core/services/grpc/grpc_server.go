package grpc

import (
	"github.com/lcalzada-xor/iotguard/internal/core/services/riskmodel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ModelService is the health service name that tracks the risk model.
const ModelService = "iotguard.RiskModel"

// HealthServer exposes the standard gRPC health protocol. The overall service
// is SERVING while the process is up; ModelService is SERVING only when the
// risk model is Ready (the rule fallback keeps scans working otherwise).
type HealthServer struct {
	health *health.Server
}

func NewGrpcServer(model *riskmodel.Model) (*grpc.Server, *HealthServer) {
	s := grpc.NewServer()
	hs := &HealthServer{health: health.NewServer()}
	healthpb.RegisterHealthServer(s, hs.health)
	reflection.Register(s)

	hs.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetModelState(model.State())
	model.OnTransition(func(_, to riskmodel.State) {
		hs.SetModelState(to)
	})
	return s, hs
}

// SetModelState maps a lifecycle state onto a health status.
func (h *HealthServer) SetModelState(state riskmodel.State) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state == riskmodel.StateReady {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(ModelService, status)
}

// Shutdown marks every service NOT_SERVING ahead of GracefulStop.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
}
