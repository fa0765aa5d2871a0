package usecase

import (
	"testing"
	"time"

	"fleettrack-service/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matcherLoad(id, vehicle, origin string, status entity.LoadStatus, loading time.Time) *entity.Load {
	return &entity.Load{
		ID:          id,
		LoadID:      "LD-" + id,
		Origin:      origin,
		Destination: destDepot.Name,
		Status:      status,
		VehicleID:   vehicle,
		LoadingDate: loading,
	}
}

func currentIDs(assignments []Assignment) []string {
	var ids []string
	for _, a := range assignments {
		if a.Current {
			ids = append(ids, a.Load.ID)
		}
	}
	return ids
}

func TestMatchLoads_earlierLoadingDateIsCurrent(t *testing.T) {
	snap := entity.Snapshot{Positions: map[string]entity.VehiclePosition{"T1": *northOf(originDepot, 10, 0, t0)}}
	loads := []*entity.Load{
		matcherLoad("B", "T1", originDepot.Name, entity.LoadScheduled, t0.Add(24*time.Hour)),
		matcherLoad("A", "T1", originDepot.Name, entity.LoadScheduled, t0),
	}

	got := MatchLoads(loads, snap)

	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Load.ID)
	assert.True(t, got[0].Current)
	assert.False(t, got[1].Current)
	require.NotNil(t, got[0].Position)
	assert.Equal(t, "T1", got[0].Position.VehicleID)
}

func TestMatchLoads_statusPriorityBeatsLoadingDate(t *testing.T) {
	loads := []*entity.Load{
		matcherLoad("P", "T1", originDepot.Name, entity.LoadPending, t0.Add(-48*time.Hour)),
		matcherLoad("S", "T1", originDepot.Name, entity.LoadScheduled, t0.Add(-24*time.Hour)),
		matcherLoad("I", "T1", originDepot.Name, entity.LoadInTransit, t0),
	}

	got := MatchLoads(loads, entity.Snapshot{})

	require.Len(t, got, 3)
	assert.Equal(t, []string{"I", "S", "P"}, []string{got[0].Load.ID, got[1].Load.ID, got[2].Load.ID})
	assert.Equal(t, []string{"I"}, currentIDs(got))
}

func TestMatchLoads_groupsByVehicleAndOrigin(t *testing.T) {
	loads := []*entity.Load{
		matcherLoad("A", "T1", originDepot.Name, entity.LoadScheduled, t0),
		matcherLoad("B", "T1", "Cape Town DC", entity.LoadScheduled, t0.Add(time.Hour)),
		matcherLoad("C", "T2", originDepot.Name, entity.LoadScheduled, t0.Add(time.Hour)),
	}

	got := MatchLoads(loads, entity.Snapshot{})

	assert.ElementsMatch(t, []string{"A", "B", "C"}, currentIDs(got))
}

func TestMatchLoads_tieBreaksOnID(t *testing.T) {
	loads := []*entity.Load{
		matcherLoad("Z", "T1", originDepot.Name, entity.LoadScheduled, t0),
		matcherLoad("M", "T1", originDepot.Name, entity.LoadScheduled, t0),
	}

	got := MatchLoads(loads, entity.Snapshot{})

	assert.Equal(t, []string{"M"}, currentIDs(got))
}

func TestMatchLoads_skipsInactiveAndHandlesMissingVehicle(t *testing.T) {
	snap := entity.Snapshot{Positions: map[string]entity.VehiclePosition{"T1": *northOf(originDepot, 10, 0, t0)}}
	loads := []*entity.Load{
		matcherLoad("D", "T1", originDepot.Name, entity.LoadDelivered, t0),
		matcherLoad("N", "", originDepot.Name, entity.LoadPending, t0),
		matcherLoad("G", "T9", originDepot.Name, entity.LoadScheduled, t0),
		nil,
	}

	got := MatchLoads(loads, snap)

	require.Len(t, got, 2)
	assert.Equal(t, "G", got[0].Load.ID)
	assert.True(t, got[0].Current)
	assert.Nil(t, got[0].Position, "vehicle without a live position")
	assert.Equal(t, "N", got[1].Load.ID)
	assert.False(t, got[1].Current)
	assert.Nil(t, got[1].Position)
}
