package usecase

import (
	"context"
	"strings"
	"sync"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/internal/domain/repository"
	"fleettrack-service/pkg/logger"
)

// DepotCatalog resolves location names to geofences. It unions the static
// reference list with the custom locations kept in the depot repository.
type DepotCatalog struct {
	static []entity.Depot
	repo   repository.DepotRepository
	logger logger.Logger

	mu     sync.RWMutex
	custom []entity.Depot
}

// NewDepotCatalog creates a catalog. repo may be nil when no custom
// location store is configured.
func NewDepotCatalog(static []entity.Depot, repo repository.DepotRepository, logger logger.Logger) *DepotCatalog {
	return &DepotCatalog{
		static: static,
		repo:   repo,
		logger: logger,
	}
}

// Refresh reloads custom locations. On failure the previous set is kept.
func (c *DepotCatalog) Refresh(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}

	custom, err := c.repo.ListCustomLocations(ctx)
	if err != nil {
		c.logger.Warn("Failed to refresh custom locations, keeping previous set", "error", err)
		return err
	}

	c.mu.Lock()
	c.custom = custom
	c.mu.Unlock()
	return nil
}

// CustomLocations returns the custom locations loaded by the last Refresh
func (c *DepotCatalog) CustomLocations() []entity.Depot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]entity.Depot(nil), c.custom...)
}

// FindDepot looks a name up across the static list, the refreshed custom
// locations and any extra depots supplied by the caller, in that order.
// A miss returns nil; most client addresses are not depots.
func (c *DepotCatalog) FindDepot(name string, extra ...entity.Depot) *entity.Depot {
	c.mu.RLock()
	custom := c.custom
	c.mu.RUnlock()

	if d := FindDepot(name, c.static, custom); d != nil {
		return d
	}
	return FindDepot(name, extra)
}

// FindDepot returns a copy of the first depot whose name matches exactly,
// ignoring surrounding whitespace.
func FindDepot(name string, lists ...[]entity.Depot) *entity.Depot {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for _, list := range lists {
		for i := range list {
			if strings.TrimSpace(list[i].Name) == name {
				d := list[i]
				return &d
			}
		}
	}
	return nil
}
