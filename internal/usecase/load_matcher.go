package usecase

import (
	"sort"
	"strings"

	"fleettrack-service/internal/domain/entity"
)

// Assignment pairs an active load with its vehicle's live position. Only the
// Current load of a vehicle may be reported as present at a depot.
type Assignment struct {
	Load     *entity.Load
	Position *entity.VehiclePosition
	Current  bool
}

type matchKey struct {
	vehicleID string
	origin    string
}

// MatchLoads groups active loads by vehicle and origin and marks the first
// load of each group, by status priority then loading date, as current.
// Assignments are returned grouped by vehicle, in a deterministic order.
func MatchLoads(loads []*entity.Load, snapshot entity.Snapshot) []Assignment {
	groups := make(map[matchKey][]*entity.Load)
	var keys []matchKey
	var unassigned []*entity.Load

	for _, load := range loads {
		if load == nil || !load.Status.IsActive() {
			continue
		}
		vehicleID := strings.TrimSpace(load.VehicleID)
		if vehicleID == "" {
			unassigned = append(unassigned, load)
			continue
		}
		key := matchKey{vehicleID: vehicleID, origin: strings.TrimSpace(load.Origin)}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], load)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].vehicleID != keys[j].vehicleID {
			return keys[i].vehicleID < keys[j].vehicleID
		}
		return keys[i].origin < keys[j].origin
	})

	assignments := make([]Assignment, 0, len(loads))
	for _, key := range keys {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return currentBefore(group[i], group[j])
		})

		var position *entity.VehiclePosition
		if pos, ok := snapshot.Position(key.vehicleID); ok {
			position = &pos
		}
		for i, load := range group {
			assignments = append(assignments, Assignment{
				Load:     load,
				Position: position,
				Current:  i == 0,
			})
		}
	}

	sort.SliceStable(unassigned, func(i, j int) bool { return unassigned[i].ID < unassigned[j].ID })
	for _, load := range unassigned {
		assignments = append(assignments, Assignment{Load: load})
	}
	return assignments
}

// currentBefore orders in-transit before scheduled before pending, then by
// loading date, then by id.
func currentBefore(a, b *entity.Load) bool {
	if ra, rb := a.Status.Rank(), b.Status.Rank(); ra != rb {
		return ra > rb
	}
	if !a.LoadingDate.Equal(b.LoadingDate) {
		return a.LoadingDate.Before(b.LoadingDate)
	}
	return a.ID < b.ID
}
