package ports

import (
	"context"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
)

// AlertPublisher forwards persisted technician alerts to an outside channel
// (message bus, chat, live feed).
type AlertPublisher interface {
	Name() string
	PublishTechAlert(ctx context.Context, alert domain.TechnicianAlert) error
}
