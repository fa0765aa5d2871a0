package repository

import (
	"context"
	"fmt"
	"strings"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormDepotRepository implements the DepotRepository interface
type GormDepotRepository struct {
	db *gorm.DB
}

// NewGormDepotRepository creates a new GORM depot repository
func NewGormDepotRepository(db *gorm.DB) repository.DepotRepository {
	return &GormDepotRepository{
		db: db,
	}
}

// CustomLocations GORM model for user-defined geofences
type CustomLocations struct {
	gorm.Model
	Name      string  `gorm:"column:name;uniqueIndex"`
	Country   string  `gorm:"column:country"`
	Type      string  `gorm:"column:type"`
	Latitude  float64 `gorm:"column:latitude"`
	Longitude float64 `gorm:"column:longitude"`
	Radius    float64 `gorm:"column:radius"`
	Active    bool    `gorm:"column:active;default:true"`
}

// TableName overrides the default table name
func (CustomLocations) TableName() string {
	return "custom_locations"
}

// ListCustomLocations returns active custom locations as depots. Rows with a
// blank name or a non-positive radius cannot act as a geofence and are skipped.
func (r *GormDepotRepository) ListCustomLocations(ctx context.Context) ([]entity.Depot, error) {
	var rows []CustomLocations
	result := r.db.WithContext(ctx).Where("active = ?", true).Order("name").Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("list custom locations: %w", result.Error)
	}

	depots := make([]entity.Depot, 0, len(rows))
	for _, row := range rows {
		if d, ok := toDepot(row); ok {
			depots = append(depots, d)
		}
	}
	return depots, nil
}

func toDepot(row CustomLocations) (entity.Depot, bool) {
	name := strings.TrimSpace(row.Name)
	if name == "" || row.Radius <= 0 {
		return entity.Depot{}, false
	}
	return entity.Depot{
		ID:           fmt.Sprintf("custom-%d", row.ID),
		Name:         name,
		Country:      row.Country,
		Type:         row.Type,
		Latitude:     row.Latitude,
		Longitude:    row.Longitude,
		RadiusMeters: row.Radius,
	}, true
}
