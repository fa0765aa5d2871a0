package repository

import (
	"context"
	"time"
)

// TelemetryAsset is one vehicle as reported by the telemetry provider. Every
// field may be missing.
type TelemetryAsset struct {
	ID               string
	Code             string
	LastLatitude     *float64
	LastLongitude    *float64
	SpeedKmH         *float64
	Heading          *float64
	LastConnectedUTC *time.Time
}

// TelemetryProvider defines the interface for the external vehicle tracking API
type TelemetryProvider interface {
	ListOrganisations(ctx context.Context) ([]string, error)
	GetAssetsWithPositions(ctx context.Context, orgID string) ([]TelemetryAsset, error)
}
