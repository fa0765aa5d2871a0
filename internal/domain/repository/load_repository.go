package repository

import (
	"context"

	"fleettrack-service/internal/domain/entity"
)

// LoadRepository defines the interface for load storage operations
type LoadRepository interface {
	// GetActiveLoads returns loads whose status is pending, scheduled or in-transit.
	GetActiveLoads(ctx context.Context) ([]*entity.Load, error)
	// UpdateLoad applies the patch to a single load and returns the stored result.
	// It returns entity.ErrNotFound when the load no longer exists.
	UpdateLoad(ctx context.Context, id string, patch entity.LoadPatch) (*entity.Load, error)
}
