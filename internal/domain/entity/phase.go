package entity

// Phase is the fine-grained delivery status derived from a load's status and
// its actual timestamps. It is never stored.
type Phase string

const (
	PhasePending       Phase = "pending"
	PhaseScheduled     Phase = "scheduled"
	PhaseAtLoading     Phase = "at-loading"
	PhaseInTransit     Phase = "in-transit"
	PhaseAtDestination Phase = "at-destination"
	PhaseDelivered     Phase = "delivered"
)

// Phases lists every phase in lifecycle order.
var Phases = []Phase{
	PhasePending,
	PhaseScheduled,
	PhaseAtLoading,
	PhaseInTransit,
	PhaseAtDestination,
	PhaseDelivered,
}

// Index returns the phase's position in the lifecycle, or -1 if unknown.
func (p Phase) Index() int {
	for i, ph := range Phases {
		if ph == p {
			return i
		}
	}
	return -1
}

// DerivePhase computes the phase from the load's status and actual timestamps.
func DerivePhase(l *Load) Phase {
	if l == nil {
		return PhasePending
	}
	switch l.Status {
	case LoadDelivered:
		return PhaseDelivered
	case LoadInTransit:
		if l.ActualOffloadingArrival != nil && l.ActualOffloadingDeparture == nil {
			return PhaseAtDestination
		}
		return PhaseInTransit
	case LoadScheduled:
		if l.ActualLoadingArrival != nil && l.ActualLoadingDeparture == nil {
			return PhaseAtLoading
		}
		return PhaseScheduled
	}
	return PhasePending
}

// CanAdvance reports whether a stepper may move from one phase to another.
// Staying put is allowed; moving backwards is not.
func CanAdvance(from, to Phase) bool {
	fi, ti := from.Index(), to.Index()
	if fi < 0 || ti < 0 {
		return false
	}
	return ti >= fi
}
