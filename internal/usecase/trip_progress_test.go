package usecase

import (
	"testing"
	"time"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/pkg/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEstimator() *TripEstimator {
	e := NewTripEstimator(60, time.UTC)
	e.now = func() time.Time { return t0 }
	return e
}

// a north-south corridor keeps the along-track math easy to reason about
var (
	southDepot = entity.Depot{Name: "South", Latitude: -26.0, Longitude: 28.0, RadiusMeters: 300}
	northDepot = entity.Depot{Name: "North", Latitude: -26.0 + 120000/metersPerDegree, Longitude: 28.0, RadiusMeters: 300}
)

func TestEstimateTrip_halfway(t *testing.T) {
	pos := northOf(southDepot, 60000, 80, t0)

	est := newTestEstimator().EstimateTrip(southDepot, northDepot, pos)

	assert.InDelta(t, 120000, est.TotalDistanceMeters, 1)
	assert.InDelta(t, 60000, est.DistanceTraveledMeters, 1)
	assert.InDelta(t, 60000, est.DistanceRemainingMeters, 1)
	assert.InDelta(t, 50, est.ProgressPercent, 0.01)
	assert.False(t, est.IsAtOrigin)
	assert.False(t, est.IsAtDestination)

	require.True(t, est.ETA.Known)
	// 60 km at 80 km/h
	assert.Equal(t, "0h 45m", est.ETA.DurationLabel)
	assert.Equal(t, "2025-03-01 08:45", est.ETA.Label)
}

func TestEstimateTrip_floorSpeedForStalledVehicle(t *testing.T) {
	pos := northOf(southDepot, 60000, 0, t0)

	est := newTestEstimator().EstimateTrip(southDepot, northDepot, pos)

	require.True(t, est.ETA.Known)
	assert.Equal(t, "1h 0m", est.ETA.DurationLabel)
}

func TestEstimateTrip_atOrigin(t *testing.T) {
	pos := northOf(southDepot, 100, 0, t0)

	est := newTestEstimator().EstimateTrip(southDepot, northDepot, pos)

	assert.True(t, est.IsAtOrigin)
	assert.False(t, est.IsAtDestination)
	assert.InDelta(t, 100, est.DistanceTraveledMeters, 1)
}

func TestEstimateTrip_clampsBehindOriginAndPastDestination(t *testing.T) {
	behind := northOf(southDepot, -5000, 50, t0)
	past := northOf(southDepot, 130000, 50, t0)
	e := newTestEstimator()

	assert.Zero(t, e.EstimateTrip(southDepot, northDepot, behind).DistanceTraveledMeters)

	est := e.EstimateTrip(southDepot, northDepot, past)
	assert.InDelta(t, 100, est.ProgressPercent, 0.001)
	assert.Zero(t, est.DistanceRemainingMeters)
}

func TestEstimateTrip_offCorridorProjects(t *testing.T) {
	// 60 km up the corridor, 10 km east of it
	p := geo.Point{Lat: southDepot.Latitude + 60000/metersPerDegree, Lon: 28.0}
	pos := &entity.VehiclePosition{Latitude: p.Lat, Longitude: p.Lon + 10000/(metersPerDegree*0.8988), SpeedKmH: 60}

	est := newTestEstimator().EstimateTrip(southDepot, northDepot, pos)

	assert.InDelta(t, 50, est.ProgressPercent, 0.5)
}

func TestEstimateTrip_noPositionIsUnknown(t *testing.T) {
	est := newTestEstimator().EstimateTrip(southDepot, northDepot, nil)

	assert.False(t, est.ETA.Known)
	assert.Equal(t, ETAUnknown, est.ETA.Label)
	assert.Equal(t, ETAUnknown, est.ETA.DurationLabel)
	assert.Zero(t, est.ProgressPercent)
	assert.InDelta(t, 120000, est.DistanceRemainingMeters, 1)
}

func TestEstimateTrip_sameDepotHasZeroProgress(t *testing.T) {
	pos := northOf(southDepot, 50, 0, t0)

	est := newTestEstimator().EstimateTrip(southDepot, southDepot, pos)

	assert.Zero(t, est.TotalDistanceMeters)
	assert.Zero(t, est.ProgressPercent)
	assert.True(t, est.IsAtOrigin)
	assert.True(t, est.IsAtDestination)
}

func TestEstimateTrip_staleFlagCarried(t *testing.T) {
	pos := northOf(southDepot, 60000, 80, t0)
	pos.Stale = true

	est := newTestEstimator().EstimateTrip(southDepot, northDepot, pos)

	assert.True(t, est.Stale)
	assert.True(t, est.ETA.Known)
}
