package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/internal/domain/repository"
	"fleettrack-service/pkg/geo"
	"fleettrack-service/pkg/logger"
)

// CaptureConfig tunes the dwell rule
type CaptureConfig struct {
	DwellThreshold     time.Duration
	StationarySpeedKmH float64
	DepartureSpeedKmH  float64
	GapGrace           time.Duration
	GapTimeout         time.Duration
	WriteTimeout       time.Duration
}

// CaptureInput is everything the controller needs for one load on one tick.
// A nil depot means the location is not a known geofence; a nil position
// means the vehicle did not report.
type CaptureInput struct {
	Load        *entity.Load
	Origin      *entity.Depot
	Destination *entity.Depot
	Position    *entity.VehiclePosition
	Now         time.Time
}

// CaptureResult carries the load as stored after the tick and the milestones
// written on it.
type CaptureResult struct {
	Load     *entity.Load
	Captured []entity.MilestoneCaptured
}

type legKey struct {
	loadID string
	leg    entity.Leg
}

type dwellState struct {
	dwellStart   time.Time
	dwell        time.Duration
	lastObserved time.Time
	// present is true when the last fresh fix was inside the geofence
	present bool
}

func (s *dwellState) resetDwell() {
	s.dwellStart = time.Time{}
	s.dwell = 0
}

// AutoCapture writes arrival and departure timestamps when a vehicle dwells
// in and then leaves a depot geofence. Every write is once-only: a populated
// field is never touched, whoever set it.
type AutoCapture struct {
	loads  repository.LoadRepository
	cfg    CaptureConfig
	logger logger.Logger

	mu      sync.Mutex
	states  map[legKey]*dwellState
	pending map[string][]entity.MilestoneUpdate
}

// NewAutoCapture creates the controller
func NewAutoCapture(loads repository.LoadRepository, cfg CaptureConfig, logger logger.Logger) *AutoCapture {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &AutoCapture{
		loads:   loads,
		cfg:     cfg,
		logger:  logger,
		states:  make(map[legKey]*dwellState),
		pending: make(map[string][]entity.MilestoneUpdate),
	}
}

// ActiveLeg is origin until the load has left its origin, destination after.
func ActiveLeg(load *entity.Load) entity.Leg {
	if load.Status == entity.LoadInTransit || load.ActualLoadingDeparture != nil {
		return entity.LegDestination
	}
	return entity.LegOrigin
}

// Evaluate runs the dwell rule for one load and persists any milestone it
// produces. The write is detached from ctx cancellation so a shutdown never
// abandons it half way; it is bounded by the write timeout instead. A failed
// write is kept and retried on the next tick.
func (a *AutoCapture) Evaluate(ctx context.Context, in CaptureInput) (CaptureResult, error) {
	load := in.Load
	result := CaptureResult{Load: load}
	if load == nil || !load.Status.IsActive() {
		return result, nil
	}

	leg := ActiveLeg(load)
	depot := in.Origin
	if leg == entity.LegDestination {
		depot = in.Destination
	}

	a.mu.Lock()
	updates := a.retryableLocked(load)
	if depot != nil {
		updates = append(updates, a.observeLocked(load, leg, *depot, in.Position, in.Now, updates)...)
	}
	a.mu.Unlock()

	if len(updates) == 0 {
		return result, nil
	}

	patch := BuildCapturePatch(load, updates)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.WriteTimeout)
	defer cancel()

	updated, err := a.loads.UpdateLoad(writeCtx, load.ID, patch)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			a.Forget(load.ID)
			return result, fmt.Errorf("load %s: %w", load.LoadID, err)
		}
		a.mu.Lock()
		a.pending[load.ID] = updates
		a.mu.Unlock()
		return result, fmt.Errorf("capture milestones for load %s: %w", load.LoadID, err)
	}

	a.mu.Lock()
	delete(a.pending, load.ID)
	for _, u := range updates {
		if u.Event == entity.EventDeparture {
			delete(a.states, legKey{loadID: load.ID, leg: u.Leg})
		}
	}
	a.mu.Unlock()

	if updated != nil {
		result.Load = updated
	}
	for _, u := range updates {
		if updated != nil && !landed(updated, u) {
			a.logger.Info("Milestone already recorded, automatic capture skipped",
				"loadID", load.LoadID,
				"leg", u.Leg,
				"event", u.Event)
			continue
		}
		a.logger.Info("Milestone captured",
			"loadID", load.LoadID,
			"vehicleID", load.VehicleID,
			"leg", u.Leg,
			"event", u.Event,
			"at", u.At)
		result.Captured = append(result.Captured, entity.MilestoneCaptured{
			LoadID:    load.ID,
			LoadRef:   load.LoadID,
			VehicleID: load.VehicleID,
			Leg:       u.Leg,
			Event:     u.Event,
			Depot:     legLocation(load, u.Leg),
			At:        u.At,
		})
	}
	return result, nil
}

// landed reports whether the stored load carries u rather than a value
// recorded by someone else first. The store keeps millisecond precision.
func landed(l *entity.Load, u entity.MilestoneUpdate) bool {
	at := l.Milestone(u.Leg, u.Event)
	if at == nil || l.MilestoneSource(u.Leg, u.Event) != entity.SourceAuto {
		return false
	}
	d := at.Sub(u.At)
	return d > -time.Millisecond && d < time.Millisecond
}

// retryableLocked returns failed writes whose fields are still empty. A field
// filled in the meantime, typically by hand, wins over the retry.
func (a *AutoCapture) retryableLocked(load *entity.Load) []entity.MilestoneUpdate {
	var out []entity.MilestoneUpdate
	for _, u := range a.pending[load.ID] {
		if load.Milestone(u.Leg, u.Event) == nil {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		delete(a.pending, load.ID)
	}
	return out
}

func (a *AutoCapture) observeLocked(load *entity.Load, leg entity.Leg, depot entity.Depot, pos *entity.VehiclePosition, now time.Time, queued []entity.MilestoneUpdate) []entity.MilestoneUpdate {
	key := legKey{loadID: load.ID, leg: leg}
	st := a.states[key]

	if pos == nil || pos.Stale {
		// gap: dwell is paused, and dropped once the gap outlasts the timeout
		if st != nil && !st.lastObserved.IsZero() && now.Sub(st.lastObserved) > a.cfg.GapTimeout {
			st.resetDwell()
		}
		return nil
	}

	if st == nil {
		st = &dwellState{}
		a.states[key] = st
	}

	var elapsed time.Duration
	if !st.lastObserved.IsZero() {
		elapsed = now.Sub(st.lastObserved)
	}
	if elapsed > a.cfg.GapTimeout {
		st.resetDwell()
		elapsed = 0
	}
	st.lastObserved = now

	inside := geo.IsWithin(geo.PositionPoint(*pos), depot)
	wasPresent := st.present
	st.present = inside

	hasArrival := load.Milestone(leg, entity.EventArrival) != nil || queuedFor(queued, leg, entity.EventArrival)
	needsDeparture := load.Milestone(leg, entity.EventDeparture) == nil && !queuedFor(queued, leg, entity.EventDeparture)
	at := observedAt(pos, now)

	if !inside {
		st.resetDwell()
		if wasPresent && hasArrival && needsDeparture {
			return []entity.MilestoneUpdate{autoUpdate(leg, entity.EventDeparture, at)}
		}
		return nil
	}

	if pos.SpeedKmH < a.cfg.StationarySpeedKmH {
		if st.dwellStart.IsZero() {
			st.dwellStart = at
			st.dwell = 0
		} else {
			st.dwell += minDuration(elapsed, a.cfg.GapGrace)
		}
	} else {
		st.resetDwell()
	}

	if !hasArrival {
		if !st.dwellStart.IsZero() && st.dwell >= a.cfg.DwellThreshold {
			return []entity.MilestoneUpdate{autoUpdate(leg, entity.EventArrival, st.dwellStart)}
		}
		return nil
	}

	if wasPresent && needsDeparture && pos.SpeedKmH > a.cfg.DepartureSpeedKmH {
		return []entity.MilestoneUpdate{autoUpdate(leg, entity.EventDeparture, at)}
	}
	return nil
}

// Retain drops state for loads that are no longer active
func (a *AutoCapture) Retain(active map[string]struct{}) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key := range a.states {
		if _, ok := active[key.loadID]; !ok {
			delete(a.states, key)
		}
	}
	for id := range a.pending {
		if _, ok := active[id]; !ok {
			delete(a.pending, id)
		}
	}
}

// Forget drops all state for one load
func (a *AutoCapture) Forget(loadID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.states, legKey{loadID: loadID, leg: entity.LegOrigin})
	delete(a.states, legKey{loadID: loadID, leg: entity.LegDestination})
	delete(a.pending, loadID)
}

// BuildCapturePatch turns captured milestones into a load patch. Status only
// ever moves forward and never reaches delivered, which needs an explicit
// confirmation. The time window gets the matching actual time unless one was
// already entered.
func BuildCapturePatch(load *entity.Load, updates []entity.MilestoneUpdate) entity.LoadPatch {
	patch := entity.LoadPatch{Milestones: updates}

	target := load.Status
	tw := &entity.TimeWindowPatch{}
	for _, u := range updates {
		switch {
		case u.Leg == entity.LegOrigin && u.Event == entity.EventArrival:
			target = promote(target, entity.LoadScheduled)
		case u.Leg == entity.LegOrigin && u.Event == entity.EventDeparture:
			target = promote(target, entity.LoadInTransit)
		case u.Leg == entity.LegDestination && u.Event == entity.EventArrival:
			target = promote(target, entity.LoadInTransit)
		}

		existing := load.TimeWindow.Leg(u.Leg)
		stamp := u.At.UTC().Format(time.RFC3339)
		if u.Event == entity.EventArrival && existing.ActualArrival == "" {
			tw.LegPatch(u.Leg).ActualArrival = &stamp
		}
		if u.Event == entity.EventDeparture && existing.ActualDeparture == "" {
			tw.LegPatch(u.Leg).ActualDeparture = &stamp
		}
	}

	if target != load.Status {
		patch.Status = &target
	}
	if !tw.IsEmpty() {
		patch.TimeWindow = tw
	}
	return patch
}

func promote(current, to entity.LoadStatus) entity.LoadStatus {
	if to.Rank() > current.Rank() {
		return to
	}
	return current
}

func autoUpdate(leg entity.Leg, event entity.MilestoneEvent, at time.Time) entity.MilestoneUpdate {
	return entity.MilestoneUpdate{
		Leg:      leg,
		Event:    event,
		At:       at,
		Source:   entity.SourceAuto,
		Verified: false,
	}
}

func queuedFor(updates []entity.MilestoneUpdate, leg entity.Leg, event entity.MilestoneEvent) bool {
	for _, u := range updates {
		if u.Leg == leg && u.Event == event {
			return true
		}
	}
	return false
}

// observedAt prefers the fix time and falls back to the tick time.
func observedAt(pos *entity.VehiclePosition, now time.Time) time.Time {
	if !pos.LastConnectedAt.IsZero() && !pos.LastConnectedAt.After(now) {
		return pos.LastConnectedAt
	}
	return now
}

func legLocation(load *entity.Load, leg entity.Leg) string {
	if leg == entity.LegDestination {
		return load.Destination
	}
	return load.Origin
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
