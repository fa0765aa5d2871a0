package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/internal/domain/repository"
	"fleettrack-service/pkg/logger"
	"fleettrack-service/pkg/metrics"
	"fleettrack-service/pkg/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TrackingEntry is the display state of one active load
type TrackingEntry struct {
	LoadID           string            `json:"id"`
	LoadRef          string            `json:"loadId"`
	VehicleID        string            `json:"vehicleId,omitempty"`
	Status           entity.LoadStatus `json:"status"`
	Phase            entity.Phase      `json:"phase"`
	Current          bool              `json:"current"`
	Origin           string            `json:"origin"`
	Destination      string            `json:"destination"`
	OriginKnown      bool              `json:"originKnown"`
	DestinationKnown bool              `json:"destinationKnown"`
	Trip             *TripEstimate     `json:"trip,omitempty"`
	OriginTimes      LegVariance       `json:"originTimes"`
	DestinationTimes LegVariance       `json:"destinationTimes"`
}

// LegVariance compares the planned and actual times of one leg
type LegVariance struct {
	Arrival   *utils.Variance `json:"arrival,omitempty"`
	Departure *utils.Variance `json:"departure,omitempty"`
}

// TrackingView is the latest tick's result
type TrackingView struct {
	TickID          string          `json:"tickId"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	SnapshotAt      time.Time       `json:"snapshotAt"`
	Stale           bool            `json:"stale"`
	Unauthenticated bool            `json:"unauthenticated"`
	Loads           []TrackingEntry `json:"loads"`
}

// OrchestratorConfig holds the loop settings
type OrchestratorConfig struct {
	PollInterval time.Duration
	Concurrency  int
	// Location is the zone planned clock times are written in
	Location *time.Location
}

// TrackingOrchestrator drives the tracking loop: one tick at a time, with the
// vehicles of a tick evaluated in parallel.
type TrackingOrchestrator struct {
	loads     repository.LoadRepository
	source    SnapshotSource
	catalog   *DepotCatalog
	capture   *AutoCapture
	estimator *TripEstimator
	publisher repository.MilestonePublisher
	metrics   *metrics.Metrics
	logger    logger.Logger
	cfg       OrchestratorConfig
	now       func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	viewMu sync.RWMutex
	view   TrackingView
}

// NewTrackingOrchestrator creates a new tracking orchestrator
func NewTrackingOrchestrator(
	loads repository.LoadRepository,
	source SnapshotSource,
	catalog *DepotCatalog,
	capture *AutoCapture,
	estimator *TripEstimator,
	publisher repository.MilestonePublisher,
	metrics *metrics.Metrics,
	logger logger.Logger,
	cfg OrchestratorConfig,
) *TrackingOrchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &TrackingOrchestrator{
		loads:     loads,
		source:    source,
		catalog:   catalog,
		capture:   capture,
		estimator: estimator,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
		view:      TrackingView{Stale: true, Loads: []TrackingEntry{}},
	}
}

// StartPolling runs a tick immediately and then on every interval. It
// returns once ctx is done and the tick in flight has finished.
func (o *TrackingOrchestrator) StartPolling(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	o.runTickLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Tracking polling stopped")
			return
		case <-ticker.C:
			o.runTickLogged(ctx)
		}
	}
}

func (o *TrackingOrchestrator) runTickLogged(ctx context.Context) {
	if err := o.RunTick(ctx); err != nil {
		o.logger.Error("Tracking tick failed", "error", err)
	}
}

// RunTick performs one polling tick. Only failing to read the active loads is
// reported; every other failure degrades and is retried on the next tick.
func (o *TrackingOrchestrator) RunTick(ctx context.Context) error {
	began := time.Now()
	start := o.now()
	tickID := uuid.NewString()
	log := o.logger.With("tickID", tickID)

	o.metrics.Ticks.Inc()
	defer func() {
		o.metrics.TickDuration.Observe(time.Since(began).Seconds())
	}()

	if err := o.catalog.Refresh(ctx); err != nil {
		o.metrics.ErrorsCount.WithLabelValues("refresh_depots").Inc()
	}

	snapshot, err := o.source.Poll(ctx)
	if err != nil {
		kind := "fetch"
		if errors.Is(err, entity.ErrUnauthenticated) {
			kind = "unauthenticated"
		}
		o.metrics.TelemetryErrors.WithLabelValues(kind).Inc()
		log.Warn("Telemetry unavailable, using last known positions", "kind", kind, "error", err)
	}
	if snapshot.Stale {
		o.metrics.SnapshotStale.Set(1)
	} else {
		o.metrics.SnapshotStale.Set(0)
	}
	o.metrics.TrackedVehicles.Set(float64(len(snapshot.Positions)))

	loads, err := o.loads.GetActiveLoads(ctx)
	if err != nil {
		o.metrics.ErrorsCount.WithLabelValues("get_active_loads").Inc()
		return err
	}

	active := make(map[string]struct{}, len(loads))
	for _, load := range loads {
		active[load.ID] = struct{}{}
	}
	o.capture.Retain(active)

	assignments := MatchLoads(loads, snapshot)
	byVehicle := make(map[string][]Assignment)
	var vehicles []string
	for _, a := range assignments {
		id := a.Load.VehicleID
		if _, ok := byVehicle[id]; !ok {
			vehicles = append(vehicles, id)
		}
		byVehicle[id] = append(byVehicle[id], a)
	}

	var (
		entriesMu sync.Mutex
		entries   = make([]TrackingEntry, 0, len(assignments))
		captured  int
		failed    int
	)

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for _, vehicleID := range vehicles {
		vehicleID := vehicleID
		group := byVehicle[vehicleID]
		g.Go(func() error {
			vehicleEntries, c, f := o.processVehicle(ctx, log, vehicleID, group, start)
			entriesMu.Lock()
			entries = append(entries, vehicleEntries...)
			captured += c
			failed += f
			entriesMu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(entries, func(i, j int) bool { return entries[i].LoadID < entries[j].LoadID })

	o.viewMu.Lock()
	o.view = TrackingView{
		TickID:          tickID,
		UpdatedAt:       start,
		SnapshotAt:      snapshot.FetchedAt,
		Stale:           snapshot.Stale,
		Unauthenticated: snapshot.Unauthenticated,
		Loads:           entries,
	}
	o.viewMu.Unlock()

	log.Info("Tracking tick completed",
		"vehicles", len(snapshot.Positions),
		"loads", len(loads),
		"captured", captured,
		"failed", failed,
		"duration", time.Since(began).String())
	return nil
}

// processVehicle evaluates every load of one vehicle while holding that
// vehicle's lock, so dwell state is never touched by two ticks at once.
func (o *TrackingOrchestrator) processVehicle(ctx context.Context, log logger.Logger, vehicleID string, group []Assignment, now time.Time) ([]TrackingEntry, int, int) {
	if vehicleID != "" {
		lock := o.vehicleLock(vehicleID)
		lock.Lock()
		defer lock.Unlock()
	}

	var captured, failed int
	entries := make([]TrackingEntry, 0, len(group))
	for _, a := range group {
		load := a.Load
		origin := o.catalog.FindDepot(load.Origin)
		destination := o.catalog.FindDepot(load.Destination)

		if a.Current && vehicleID != "" && ctx.Err() == nil {
			result, err := o.capture.Evaluate(ctx, CaptureInput{
				Load:        load,
				Origin:      origin,
				Destination: destination,
				Position:    a.Position,
				Now:         now,
			})
			switch {
			case errors.Is(err, entity.ErrNotFound):
				log.Info("Load disappeared, dropping its tracking state", "loadID", load.LoadID)
			case err != nil:
				failed++
				o.metrics.CaptureWriteFailures.Inc()
				log.Error("Failed to write captured milestone, will retry", "loadID", load.LoadID, "error", err)
			default:
				load = result.Load
				for _, event := range result.Captured {
					captured++
					o.metrics.MilestonesCaptured.WithLabelValues(string(event.Leg), string(event.Event)).Inc()
					if err := o.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
						o.metrics.ErrorsCount.WithLabelValues("publish_milestone").Inc()
						log.Warn("Failed to publish milestone event", "loadID", event.LoadRef, "error", err)
					}
				}
			}
		}

		entries = append(entries, o.entry(load, a, origin, destination))
	}
	return entries, captured, failed
}

func (o *TrackingOrchestrator) entry(load *entity.Load, a Assignment, origin, destination *entity.Depot) TrackingEntry {
	e := TrackingEntry{
		LoadID:           load.ID,
		LoadRef:          load.LoadID,
		VehicleID:        load.VehicleID,
		Status:           load.Status,
		Phase:            entity.DerivePhase(load),
		Current:          a.Current,
		Origin:           load.Origin,
		Destination:      load.Destination,
		OriginKnown:      origin != nil,
		DestinationKnown: destination != nil,
		OriginTimes:      o.legVariance(load.TimeWindow.Origin),
		DestinationTimes: o.legVariance(load.TimeWindow.Destination),
	}
	if origin == nil || destination == nil {
		return e
	}

	// queued loads get no position so they never show as present at a depot
	var position *entity.VehiclePosition
	if a.Current {
		position = a.Position
	}
	trip := o.estimator.EstimateTrip(*origin, *destination, position)
	e.Trip = &trip
	return e
}

func (o *TrackingOrchestrator) legVariance(w entity.LegWindow) LegVariance {
	return LegVariance{
		Arrival:   utils.ComputeVarianceIn(w.PlannedArrival, w.ActualArrival, utils.VarianceArrival, o.cfg.Location),
		Departure: utils.ComputeVarianceIn(w.PlannedDeparture, w.ActualDeparture, utils.VarianceDeparture, o.cfg.Location),
	}
}

func (o *TrackingOrchestrator) vehicleLock(vehicleID string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()

	lock, ok := o.locks[vehicleID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[vehicleID] = lock
	}
	return lock
}

// Tracking returns the view built by the last completed tick
func (o *TrackingOrchestrator) Tracking() TrackingView {
	o.viewMu.RLock()
	defer o.viewMu.RUnlock()

	view := o.view
	view.Loads = make([]TrackingEntry, len(o.view.Loads))
	copy(view.Loads, o.view.Loads)
	return view
}
