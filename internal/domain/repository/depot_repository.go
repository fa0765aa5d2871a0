package repository

import (
	"context"

	"fleettrack-service/internal/domain/entity"
)

// DepotRepository defines the interface for dynamically added custom locations
type DepotRepository interface {
	ListCustomLocations(ctx context.Context) ([]entity.Depot, error)
}
