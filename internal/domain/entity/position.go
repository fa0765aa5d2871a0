package entity

import "time"

// VehiclePosition is the last reported fix of one tracked vehicle
type VehiclePosition struct {
	VehicleID       string    `json:"vehicleId"`
	Code            string    `json:"code,omitempty"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	SpeedKmH        float64   `json:"speedKmH"`
	Heading         float64   `json:"heading"`
	LastConnectedAt time.Time `json:"lastConnectedAt"`
	// Stale is set when the fix is older than the configured stale threshold.
	Stale bool `json:"stale"`
}

// Snapshot is one polling tick's view of the fleet, keyed by vehicle id.
type Snapshot struct {
	Positions       map[string]VehiclePosition
	FetchedAt       time.Time
	Stale           bool
	Unauthenticated bool
}

// Position returns the live position for a vehicle, if the snapshot has one.
func (s Snapshot) Position(vehicleID string) (VehiclePosition, bool) {
	if vehicleID == "" || s.Positions == nil {
		return VehiclePosition{}, false
	}
	p, ok := s.Positions[vehicleID]
	return p, ok
}
