package entity

import "time"

// Leg is one side of a load's journey.
type Leg string

const (
	LegOrigin      Leg = "origin"
	LegDestination Leg = "destination"
)

// MilestoneEvent is either end of a stop at a leg's depot.
type MilestoneEvent string

const (
	EventArrival   MilestoneEvent = "arrival"
	EventDeparture MilestoneEvent = "departure"
)

// MilestoneUpdate writes one actual timestamp together with its companions.
type MilestoneUpdate struct {
	Leg      Leg
	Event    MilestoneEvent
	At       time.Time
	Source   TimestampSource
	Verified bool
}

// MilestoneCaptured is emitted after an automatic capture has been persisted.
type MilestoneCaptured struct {
	LoadID    string         `json:"loadId"`
	LoadRef   string         `json:"loadRef"`
	VehicleID string         `json:"vehicleId"`
	Leg       Leg            `json:"leg"`
	Event     MilestoneEvent `json:"event"`
	Depot     string         `json:"depot"`
	At        time.Time      `json:"at"`
}

// MilestoneField returns the stored field name for a leg/event pair.
func MilestoneField(leg Leg, event MilestoneEvent) string {
	prefix := "actual_loading_"
	if leg == LegDestination {
		prefix = "actual_offloading_"
	}
	return prefix + string(event)
}

// Milestone returns the actual timestamp recorded for a leg/event pair.
func (l *Load) Milestone(leg Leg, event MilestoneEvent) *time.Time {
	switch {
	case leg == LegOrigin && event == EventArrival:
		return l.ActualLoadingArrival
	case leg == LegOrigin && event == EventDeparture:
		return l.ActualLoadingDeparture
	case leg == LegDestination && event == EventArrival:
		return l.ActualOffloadingArrival
	case leg == LegDestination && event == EventDeparture:
		return l.ActualOffloadingDeparture
	}
	return nil
}

// MilestoneSource returns who recorded the timestamp for a leg/event pair.
func (l *Load) MilestoneSource(leg Leg, event MilestoneEvent) TimestampSource {
	switch {
	case leg == LegOrigin && event == EventArrival:
		return l.ActualLoadingArrivalSource
	case leg == LegOrigin && event == EventDeparture:
		return l.ActualLoadingDepartureSource
	case leg == LegDestination && event == EventArrival:
		return l.ActualOffloadingArrivalSource
	case leg == LegDestination && event == EventDeparture:
		return l.ActualOffloadingDepartureSource
	}
	return ""
}

// ApplyMilestone sets the timestamp with its source and verification flag.
func (l *Load) ApplyMilestone(u MilestoneUpdate) {
	at := u.At
	switch {
	case u.Leg == LegOrigin && u.Event == EventArrival:
		l.ActualLoadingArrival, l.ActualLoadingArrivalSource, l.ActualLoadingArrivalVerified = &at, u.Source, u.Verified
	case u.Leg == LegOrigin && u.Event == EventDeparture:
		l.ActualLoadingDeparture, l.ActualLoadingDepartureSource, l.ActualLoadingDepartureVerified = &at, u.Source, u.Verified
	case u.Leg == LegDestination && u.Event == EventArrival:
		l.ActualOffloadingArrival, l.ActualOffloadingArrivalSource, l.ActualOffloadingArrivalVerified = &at, u.Source, u.Verified
	case u.Leg == LegDestination && u.Event == EventDeparture:
		l.ActualOffloadingDeparture, l.ActualOffloadingDepartureSource, l.ActualOffloadingDepartureVerified = &at, u.Source, u.Verified
	}
}
