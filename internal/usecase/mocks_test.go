package usecase

import (
	"context"
	"math"
	"sync"
	"time"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/internal/domain/repository"
	"fleettrack-service/pkg/geo"
	"fleettrack-service/pkg/utils"
)

const metersPerDegree = geo.EarthRadiusMeters * math.Pi / 180

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func minute(n int) time.Time { return t0.Add(time.Duration(n) * time.Minute) }

var (
	originDepot = entity.Depot{ID: "d1", Name: "Johannesburg DC", Latitude: -26.0, Longitude: 28.0, RadiusMeters: 300}
	destDepot   = entity.Depot{ID: "d2", Name: "Durban Port", Latitude: -29.0, Longitude: 31.0, RadiusMeters: 300}
)

// northOf returns a fix the given distance due north of a depot center.
func northOf(d entity.Depot, meters, speed float64, at time.Time) *entity.VehiclePosition {
	return &entity.VehiclePosition{
		VehicleID:       "T1",
		Latitude:        d.Latitude + meters/metersPerDegree,
		Longitude:       d.Longitude,
		SpeedKmH:        speed,
		LastConnectedAt: at,
	}
}

// memLoadRepo is an in-memory LoadRepository that applies patches the way
// the Mongo repository does. failWith, when set, fails the next update.
type memLoadRepo struct {
	mu       sync.Mutex
	loads    map[string]*entity.Load
	patches  []entity.LoadPatch
	failWith []error
}

func newMemLoadRepo(loads ...*entity.Load) *memLoadRepo {
	r := &memLoadRepo{loads: make(map[string]*entity.Load)}
	for _, l := range loads {
		cp := *l
		r.loads[l.ID] = &cp
	}
	return r
}

var _ repository.LoadRepository = (*memLoadRepo)(nil)

func (r *memLoadRepo) GetActiveLoads(ctx context.Context) ([]*entity.Load, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Load
	for _, l := range r.loads {
		if l.Status.IsActive() {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memLoadRepo) UpdateLoad(ctx context.Context, id string, patch entity.LoadPatch) (*entity.Load, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patches = append(r.patches, patch)

	if len(r.failWith) > 0 {
		err := r.failWith[0]
		r.failWith = r.failWith[1:]
		if err != nil {
			return nil, err
		}
	}

	l, ok := r.loads[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	// automatic captures never replace a recorded value
	patch = patch.WithoutFilled(l)
	if patch.Status != nil {
		l.Status = *patch.Status
	}
	for _, m := range patch.Milestones {
		l.ApplyMilestone(m)
	}
	l.TimeWindow = utils.MergeTimeWindow(l.TimeWindow, patch.TimeWindow)
	cp := *l
	return &cp, nil
}

// setMilestone records a milestone the way a dispatcher editing the load would
func (r *memLoadRepo) setMilestone(id string, u entity.MilestoneUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads[id].ApplyMilestone(u)
}

func (r *memLoadRepo) get(id string) *entity.Load {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.loads[id]
	return &cp
}

func (r *memLoadRepo) patchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.patches)
}

// mockLoadRepository is a function-field double; set only what a test needs.
type mockLoadRepository struct {
	getActiveLoads func(ctx context.Context) ([]*entity.Load, error)
	updateLoad     func(ctx context.Context, id string, patch entity.LoadPatch) (*entity.Load, error)
}

func (m *mockLoadRepository) GetActiveLoads(ctx context.Context) ([]*entity.Load, error) {
	return m.getActiveLoads(ctx)
}
func (m *mockLoadRepository) UpdateLoad(ctx context.Context, id string, patch entity.LoadPatch) (*entity.Load, error) {
	return m.updateLoad(ctx, id, patch)
}

var _ repository.LoadRepository = (*mockLoadRepository)(nil)

type mockTelemetryProvider struct {
	listOrganisations      func(ctx context.Context) ([]string, error)
	getAssetsWithPositions func(ctx context.Context, orgID string) ([]repository.TelemetryAsset, error)
}

func (m *mockTelemetryProvider) ListOrganisations(ctx context.Context) ([]string, error) {
	return m.listOrganisations(ctx)
}
func (m *mockTelemetryProvider) GetAssetsWithPositions(ctx context.Context, orgID string) ([]repository.TelemetryAsset, error) {
	return m.getAssetsWithPositions(ctx, orgID)
}

var _ repository.TelemetryProvider = (*mockTelemetryProvider)(nil)

type mockDepotRepository struct {
	listCustomLocations func(ctx context.Context) ([]entity.Depot, error)
}

func (m *mockDepotRepository) ListCustomLocations(ctx context.Context) ([]entity.Depot, error) {
	return m.listCustomLocations(ctx)
}

var _ repository.DepotRepository = (*mockDepotRepository)(nil)

type recordingPublisher struct {
	mu     sync.Mutex
	events []entity.MilestoneCaptured
}

func (p *recordingPublisher) Publish(ctx context.Context, e entity.MilestoneCaptured) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

var _ repository.MilestonePublisher = (*recordingPublisher)(nil)

// scriptedSource returns whatever snapshot the test sets before each tick.
type scriptedSource struct {
	snapshot entity.Snapshot
	err      error
}

func (s *scriptedSource) Poll(ctx context.Context) (entity.Snapshot, error) {
	return s.snapshot, s.err
}

var _ SnapshotSource = (*scriptedSource)(nil)

func floatPtr(f float64) *float64 { return &f }
func timePtr(t time.Time) *time.Time { return &t }
func strPtr(s string) *string { return &s }
