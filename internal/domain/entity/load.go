package entity

import "time"

// LoadStatus is the coarse dispatch status stored on a load.
type LoadStatus string

const (
	LoadPending   LoadStatus = "pending"
	LoadScheduled LoadStatus = "scheduled"
	LoadInTransit LoadStatus = "in-transit"
	LoadDelivered LoadStatus = "delivered"
)

// Rank orders statuses along the dispatch lifecycle. Unknown statuses rank lowest.
func (s LoadStatus) Rank() int {
	switch s {
	case LoadPending:
		return 1
	case LoadScheduled:
		return 2
	case LoadInTransit:
		return 3
	case LoadDelivered:
		return 4
	}
	return 0
}

// IsActive reports whether the load is still being tracked.
func (s LoadStatus) IsActive() bool {
	return s == LoadPending || s == LoadScheduled || s == LoadInTransit
}

// TimestampSource records who wrote an actual timestamp.
type TimestampSource string

const (
	SourceManual TimestampSource = "manual"
	SourceAuto   TimestampSource = "auto"
)

// Load is a single shipment as stored by the dispatch side.
type Load struct {
	ID             string     `json:"id" bson:"_id"`
	LoadID         string     `json:"loadId" bson:"load_id"`
	Origin         string     `json:"origin" bson:"origin"`
	Destination    string     `json:"destination" bson:"destination"`
	LoadingDate    time.Time  `json:"loadingDate" bson:"loading_date"`
	OffloadingDate time.Time  `json:"offloadingDate" bson:"offloading_date"`
	Status         LoadStatus `json:"status" bson:"status"`
	VehicleID      string     `json:"vehicleId" bson:"vehicle_id"`

	ActualLoadingArrival         *time.Time      `json:"actualLoadingArrival,omitempty" bson:"actual_loading_arrival,omitempty"`
	ActualLoadingArrivalVerified bool            `json:"actualLoadingArrivalVerified" bson:"actual_loading_arrival_verified"`
	ActualLoadingArrivalSource   TimestampSource `json:"actualLoadingArrivalSource,omitempty" bson:"actual_loading_arrival_source,omitempty"`

	ActualLoadingDeparture         *time.Time      `json:"actualLoadingDeparture,omitempty" bson:"actual_loading_departure,omitempty"`
	ActualLoadingDepartureVerified bool            `json:"actualLoadingDepartureVerified" bson:"actual_loading_departure_verified"`
	ActualLoadingDepartureSource   TimestampSource `json:"actualLoadingDepartureSource,omitempty" bson:"actual_loading_departure_source,omitempty"`

	ActualOffloadingArrival         *time.Time      `json:"actualOffloadingArrival,omitempty" bson:"actual_offloading_arrival,omitempty"`
	ActualOffloadingArrivalVerified bool            `json:"actualOffloadingArrivalVerified" bson:"actual_offloading_arrival_verified"`
	ActualOffloadingArrivalSource   TimestampSource `json:"actualOffloadingArrivalSource,omitempty" bson:"actual_offloading_arrival_source,omitempty"`

	ActualOffloadingDeparture         *time.Time      `json:"actualOffloadingDeparture,omitempty" bson:"actual_offloading_departure,omitempty"`
	ActualOffloadingDepartureVerified bool            `json:"actualOffloadingDepartureVerified" bson:"actual_offloading_departure_verified"`
	ActualOffloadingDepartureSource   TimestampSource `json:"actualOffloadingDepartureSource,omitempty" bson:"actual_offloading_departure_source,omitempty"`

	// TimeWindow is decoded by the repository through ParseTimeWindow since
	// older documents store it as a serialized string.
	TimeWindow TimeWindow `json:"timeWindow" bson:"-"`
}

// LoadPatch lists the fields a tracking update may touch. Nil fields are left alone.
type LoadPatch struct {
	Status     *LoadStatus
	Milestones []MilestoneUpdate
	TimeWindow *TimeWindowPatch
}

// IsEmpty reports whether the patch would change nothing.
func (p LoadPatch) IsEmpty() bool {
	return p.Status == nil && len(p.Milestones) == 0 && (p.TimeWindow == nil || p.TimeWindow.IsEmpty())
}

// WriteOnce returns the automatic milestones of the patch. They may fill an
// empty field but never replace a recorded one.
func (p LoadPatch) WriteOnce() []MilestoneUpdate {
	var out []MilestoneUpdate
	for _, m := range p.Milestones {
		if m.Source == SourceAuto {
			out = append(out, m)
		}
	}
	return out
}

// WithoutFilled drops the automatic parts of the patch that l has already
// recorded. An auto milestone whose field is set goes together with the time
// window actual written alongside it; a time window actual that is already
// filled goes on its own. Once no milestone is left the status change goes
// too, since it only followed from them.
func (p LoadPatch) WithoutFilled(l *Load) LoadPatch {
	out := LoadPatch{Status: p.Status}
	if p.TimeWindow != nil {
		tw := p.TimeWindow.clone()
		out.TimeWindow = &tw
	}

	for _, m := range p.Milestones {
		if m.Source != SourceAuto {
			out.Milestones = append(out.Milestones, m)
			continue
		}
		filled := l.Milestone(m.Leg, m.Event) != nil
		if !filled {
			out.Milestones = append(out.Milestones, m)
		}
		if out.TimeWindow != nil && (filled || l.TimeWindow.Leg(m.Leg).Actual(m.Event) != "") {
			out.TimeWindow.LegFor(m.Leg).clearActual(m.Event)
		}
	}

	if len(p.Milestones) > 0 && len(out.Milestones) == 0 {
		out.Status = nil
	}
	if out.TimeWindow.IsEmpty() {
		out.TimeWindow = nil
	}
	return out
}
