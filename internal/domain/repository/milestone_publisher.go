package repository

import (
	"context"

	"fleettrack-service/internal/domain/entity"
)

// MilestonePublisher defines the interface for announcing captured milestones
type MilestonePublisher interface {
	Publish(ctx context.Context, event entity.MilestoneCaptured) error
}
