package usecase

import (
	"math"
	"time"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/pkg/geo"
	"fleettrack-service/pkg/utils"
)

// ETAUnknown is the label shown when no live position is available
const ETAUnknown = "unknown"

// ETA is an arrival estimate. Known is false when there is nothing to base it on.
type ETA struct {
	Known         bool          `json:"known"`
	At            time.Time     `json:"at"`
	Remaining     time.Duration `json:"-"`
	Label         string        `json:"label"`
	DurationLabel string        `json:"durationLabel"`
}

// TripEstimate is the display view of a trip between two depots
type TripEstimate struct {
	TotalDistanceMeters     float64 `json:"totalDistanceMeters"`
	DistanceTraveledMeters  float64 `json:"distanceTraveledMeters"`
	DistanceRemainingMeters float64 `json:"distanceRemainingMeters"`
	ProgressPercent         float64 `json:"progressPercent"`
	IsAtOrigin              bool    `json:"isAtOrigin"`
	IsAtDestination         bool    `json:"isAtDestination"`
	ETA                     ETA     `json:"eta"`
	Stale                   bool    `json:"stale"`
}

// TripEstimator computes progress along the straight-line corridor
type TripEstimator struct {
	floorSpeedKmH float64
	loc           *time.Location
	now           func() time.Time
}

// NewTripEstimator creates an estimator. The floor speed keeps stalled or
// zero speed readings from producing an unbounded ETA.
func NewTripEstimator(floorSpeedKmH float64, loc *time.Location) *TripEstimator {
	if loc == nil {
		loc = time.Local
	}
	return &TripEstimator{
		floorSpeedKmH: floorSpeedKmH,
		loc:           loc,
		now:           time.Now,
	}
}

// EstimateTrip projects position onto the origin to destination path. A nil
// position yields zero progress and an unknown ETA.
func (e *TripEstimator) EstimateTrip(origin, destination entity.Depot, position *entity.VehiclePosition) TripEstimate {
	start := geo.DepotPoint(origin)
	end := geo.DepotPoint(destination)
	total := geo.Distance(start, end)

	est := TripEstimate{
		TotalDistanceMeters:     total,
		DistanceRemainingMeters: total,
		ETA:                     unknownETA(),
	}
	if position == nil {
		return est
	}

	p := geo.PositionPoint(*position)
	est.Stale = position.Stale
	est.IsAtOrigin = geo.IsWithin(p, origin)
	est.IsAtDestination = geo.IsWithin(p, destination)

	traveled, ok := geo.AlongTrackDistance(start, end, p)
	if !ok {
		traveled = total - geo.Distance(p, end)
	}
	traveled = math.Max(0, math.Min(total, traveled))

	est.DistanceTraveledMeters = traveled
	est.DistanceRemainingMeters = total - traveled
	if total > 0 {
		est.ProgressPercent = 100 * traveled / total
	}
	est.ETA = e.eta(est.DistanceRemainingMeters, position.SpeedKmH)
	return est
}

func (e *TripEstimator) eta(remainingMeters, speedKmH float64) ETA {
	speed := math.Max(speedKmH, e.floorSpeedKmH)
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return unknownETA()
	}

	hours := remainingMeters / 1000 / speed
	remaining := time.Duration(hours * float64(time.Hour))
	at := e.now().Add(remaining)
	return ETA{
		Known:         true,
		At:            at,
		Remaining:     remaining,
		Label:         at.Round(time.Minute).In(e.loc).Format(utils.DATE_LAYOUT),
		DurationLabel: utils.FormatDuration(remaining),
	}
}

func unknownETA() ETA {
	return ETA{Label: ETAUnknown, DurationLabel: ETAUnknown}
}
