package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/internal/domain/repository"
	"fleettrack-service/pkg/logger"
)

// SnapshotSource yields the fleet snapshot for a tick
type SnapshotSource interface {
	Poll(ctx context.Context) (entity.Snapshot, error)
}

// TelemetryPoller fetches live positions once per tick and falls back to the
// last good snapshot, marked stale, whenever the provider fails.
type TelemetryPoller struct {
	provider   repository.TelemetryProvider
	orgID      string
	staleAfter time.Duration
	logger     logger.Logger
	now        func() time.Time

	mu      sync.Mutex
	orgIDs  []string
	last    entity.Snapshot
	hasLast bool
}

// NewTelemetryPoller creates a poller. When orgID is empty the organisations
// are discovered from the provider on first use.
func NewTelemetryPoller(provider repository.TelemetryProvider, orgID string, staleAfter time.Duration, logger logger.Logger) *TelemetryPoller {
	return &TelemetryPoller{
		provider:   provider,
		orgID:      orgID,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

var _ SnapshotSource = (*TelemetryPoller)(nil)

// Poll returns the current snapshot. Errors are non-fatal: the returned
// snapshot is then the previous one with Stale set, and Unauthenticated set
// when the provider rejected our credentials.
func (p *TelemetryPoller) Poll(ctx context.Context) (entity.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot, err := p.fetch(ctx)
	if err != nil {
		return p.fallback(err), err
	}

	p.last = snapshot
	p.hasLast = true
	return snapshot, nil
}

func (p *TelemetryPoller) fetch(ctx context.Context) (entity.Snapshot, error) {
	orgIDs, err := p.organisations(ctx)
	if err != nil {
		return entity.Snapshot{}, err
	}

	now := p.now()
	positions := make(map[string]entity.VehiclePosition)
	for _, orgID := range orgIDs {
		assets, err := p.provider.GetAssetsWithPositions(ctx, orgID)
		if err != nil {
			return entity.Snapshot{}, fmt.Errorf("poll organisation %s: %w", orgID, err)
		}
		for _, asset := range assets {
			if pos, ok := p.toPosition(asset, now); ok {
				positions[pos.VehicleID] = pos
			}
		}
	}

	return entity.Snapshot{
		Positions: positions,
		FetchedAt: now,
	}, nil
}

func (p *TelemetryPoller) organisations(ctx context.Context) ([]string, error) {
	if p.orgID != "" {
		return []string{p.orgID}, nil
	}
	if len(p.orgIDs) > 0 {
		return p.orgIDs, nil
	}

	ids, err := p.provider.ListOrganisations(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover organisations: %w", err)
	}
	if len(ids) == 0 {
		p.logger.Warn("Telemetry provider returned no organisations")
		return nil, nil
	}

	p.logger.Info("Discovered telemetry organisations", "count", len(ids))
	p.orgIDs = ids
	return ids, nil
}

// toPosition drops assets without coordinates and flags fixes older than
// the stale threshold.
func (p *TelemetryPoller) toPosition(a repository.TelemetryAsset, now time.Time) (entity.VehiclePosition, bool) {
	if a.ID == "" || a.LastLatitude == nil || a.LastLongitude == nil {
		return entity.VehiclePosition{}, false
	}

	pos := entity.VehiclePosition{
		VehicleID: a.ID,
		Code:      a.Code,
		Latitude:  *a.LastLatitude,
		Longitude: *a.LastLongitude,
	}
	if a.SpeedKmH != nil {
		pos.SpeedKmH = *a.SpeedKmH
	}
	if a.Heading != nil {
		pos.Heading = *a.Heading
	}
	if a.LastConnectedUTC != nil {
		pos.LastConnectedAt = *a.LastConnectedUTC
	}

	switch {
	case pos.LastConnectedAt.IsZero():
		pos.Stale = true
	case p.staleAfter > 0 && now.Sub(pos.LastConnectedAt) > p.staleAfter:
		pos.Stale = true
	}
	return pos, true
}

func (p *TelemetryPoller) fallback(err error) entity.Snapshot {
	snapshot := entity.Snapshot{
		Positions:       make(map[string]entity.VehiclePosition),
		Stale:           true,
		Unauthenticated: errors.Is(err, entity.ErrUnauthenticated),
	}
	if !p.hasLast {
		return snapshot
	}

	snapshot.FetchedAt = p.last.FetchedAt
	for id, pos := range p.last.Positions {
		pos.Stale = true
		snapshot.Positions[id] = pos
	}
	return snapshot
}
