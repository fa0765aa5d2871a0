package entity

// LegWindow holds planned and actual times for one leg. Times are kept as the
// strings the dispatch side entered: either bare HH:mm or an ISO timestamp.
type LegWindow struct {
	PlannedArrival   string `json:"plannedArrival,omitempty" bson:"plannedArrival,omitempty"`
	PlannedDeparture string `json:"plannedDeparture,omitempty" bson:"plannedDeparture,omitempty"`
	ActualArrival    string `json:"actualArrival,omitempty" bson:"actualArrival,omitempty"`
	ActualDeparture  string `json:"actualDeparture,omitempty" bson:"actualDeparture,omitempty"`
	ArrivalNote      string `json:"arrivalNote,omitempty" bson:"arrivalNote,omitempty"`
	DepartureNote    string `json:"departureNote,omitempty" bson:"departureNote,omitempty"`
}

// Actual returns the actual time entered for an event
func (w LegWindow) Actual(event MilestoneEvent) string {
	if event == EventDeparture {
		return w.ActualDeparture
	}
	return w.ActualArrival
}

// Quantities counts backload packaging units.
type Quantities struct {
	Bins    int `json:"bins" bson:"bins"`
	Crates  int `json:"crates" bson:"crates"`
	Pallets int `json:"pallets" bson:"pallets"`
}

// ThirdPartyBackload describes a backload carried for another company.
type ThirdPartyBackload struct {
	Company      string `json:"company,omitempty" bson:"company,omitempty"`
	ContactName  string `json:"contactName,omitempty" bson:"contactName,omitempty"`
	ContactPhone string `json:"contactPhone,omitempty" bson:"contactPhone,omitempty"`
	Reference    string `json:"reference,omitempty" bson:"reference,omitempty"`
}

// Backload is the return-trip sub-shipment recorded inside a time window.
type Backload struct {
	Enabled      bool                `json:"enabled" bson:"enabled"`
	IsThirdParty bool                `json:"isThirdParty,omitempty" bson:"isThirdParty,omitempty"`
	Destination  string              `json:"destination,omitempty" bson:"destination,omitempty"`
	CargoType    string              `json:"cargoType,omitempty" bson:"cargoType,omitempty"`
	Quantities   Quantities          `json:"quantities" bson:"quantities"`
	Notes        string              `json:"notes,omitempty" bson:"notes,omitempty"`
	ThirdParty   *ThirdPartyBackload `json:"thirdParty,omitempty" bson:"thirdParty,omitempty"`
}

// TimeWindow is the planned-versus-actual record embedded in a load.
type TimeWindow struct {
	Origin         LegWindow `json:"origin" bson:"origin"`
	Destination    LegWindow `json:"destination" bson:"destination"`
	Backload       *Backload `json:"backload,omitempty" bson:"backload,omitempty"`
	VarianceReason string    `json:"varianceReason,omitempty" bson:"varianceReason,omitempty"`
}

// Leg returns the window for the given leg.
func (tw TimeWindow) Leg(leg Leg) LegWindow {
	if leg == LegDestination {
		return tw.Destination
	}
	return tw.Origin
}

// LegWindowPatch carries the leg fields to change. Nil means keep.
type LegWindowPatch struct {
	PlannedArrival   *string `json:"plannedArrival,omitempty"`
	PlannedDeparture *string `json:"plannedDeparture,omitempty"`
	ActualArrival    *string `json:"actualArrival,omitempty"`
	ActualDeparture  *string `json:"actualDeparture,omitempty"`
	ArrivalNote      *string `json:"arrivalNote,omitempty"`
	DepartureNote    *string `json:"departureNote,omitempty"`
}

// IsEmpty reports whether no field is set.
func (p *LegWindowPatch) IsEmpty() bool {
	return p == nil || (p.PlannedArrival == nil && p.PlannedDeparture == nil &&
		p.ActualArrival == nil && p.ActualDeparture == nil &&
		p.ArrivalNote == nil && p.DepartureNote == nil)
}

// Actual returns the patched actual time for an event, nil when unchanged.
func (p *LegWindowPatch) Actual(event MilestoneEvent) *string {
	if p == nil {
		return nil
	}
	if event == EventDeparture {
		return p.ActualDeparture
	}
	return p.ActualArrival
}

func (p *LegWindowPatch) clearActual(event MilestoneEvent) {
	if p == nil {
		return
	}
	if event == EventDeparture {
		p.ActualDeparture = nil
	} else {
		p.ActualArrival = nil
	}
}

type QuantitiesPatch struct {
	Bins    *int `json:"bins,omitempty"`
	Crates  *int `json:"crates,omitempty"`
	Pallets *int `json:"pallets,omitempty"`
}

type ThirdPartyPatch struct {
	Company      *string `json:"company,omitempty"`
	ContactName  *string `json:"contactName,omitempty"`
	ContactPhone *string `json:"contactPhone,omitempty"`
	Reference    *string `json:"reference,omitempty"`
}

type BackloadPatch struct {
	Enabled      *bool            `json:"enabled,omitempty"`
	IsThirdParty *bool            `json:"isThirdParty,omitempty"`
	Destination  *string          `json:"destination,omitempty"`
	CargoType    *string          `json:"cargoType,omitempty"`
	Quantities   *QuantitiesPatch `json:"quantities,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
	ThirdParty   *ThirdPartyPatch `json:"thirdParty,omitempty"`
}

// TimeWindowPatch is the only shape in which a time window may be changed.
type TimeWindowPatch struct {
	Origin         *LegWindowPatch `json:"origin,omitempty"`
	Destination    *LegWindowPatch `json:"destination,omitempty"`
	Backload       *BackloadPatch  `json:"backload,omitempty"`
	VarianceReason *string         `json:"varianceReason,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p *TimeWindowPatch) IsEmpty() bool {
	return p == nil || (p.Origin.IsEmpty() && p.Destination.IsEmpty() && p.Backload == nil && p.VarianceReason == nil)
}

// LegPatch returns the patch for a leg, allocating it when missing.
func (p *TimeWindowPatch) LegPatch(leg Leg) *LegWindowPatch {
	if leg == LegDestination {
		if p.Destination == nil {
			p.Destination = &LegWindowPatch{}
		}
		return p.Destination
	}
	if p.Origin == nil {
		p.Origin = &LegWindowPatch{}
	}
	return p.Origin
}

// LegFor returns the patch for a leg, nil when the patch leaves it alone.
func (p *TimeWindowPatch) LegFor(leg Leg) *LegWindowPatch {
	if p == nil {
		return nil
	}
	if leg == LegDestination {
		return p.Destination
	}
	return p.Origin
}

// clone copies the leg patches so they can be edited without touching p.
func (p *TimeWindowPatch) clone() TimeWindowPatch {
	out := *p
	if p.Origin != nil {
		o := *p.Origin
		out.Origin = &o
	}
	if p.Destination != nil {
		d := *p.Destination
		out.Destination = &d
	}
	return out
}
