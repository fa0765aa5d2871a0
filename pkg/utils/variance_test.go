package utils_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleettrack-service/pkg/utils"
)

func TestComputeVariance_lateArrival(t *testing.T) {
	v := utils.ComputeVarianceIn("14:00", "15:05", utils.VarianceArrival, time.UTC)

	require.NotNil(t, v)
	assert.Equal(t, 65, v.DiffMinutes)
	assert.True(t, v.IsLate)
	assert.True(t, v.Concern)
	assert.Equal(t, "1h 5m late", v.Label)
}

func TestComputeVariance_labels(t *testing.T) {
	tests := []struct {
		name    string
		planned string
		actual  string
		kind    utils.VarianceKind
		diff    int
		label   string
		late    bool
		concern bool
	}{
		{name: "on time", planned: "08:00", actual: "08:00", kind: utils.VarianceArrival, diff: 0, label: "On time"},
		{name: "early arrival is fine", planned: "08:00", actual: "07:15", kind: utils.VarianceArrival, diff: -45, label: "45m early"},
		{name: "whole hours", planned: "08:00", actual: "10:00", kind: utils.VarianceArrival, diff: 120, label: "2h late", late: true, concern: true},
		{name: "late by 1h30", planned: "08:00", actual: "09:30", kind: utils.VarianceArrival, diff: 90, label: "1h 30m late", late: true, concern: true},
		{name: "early departure flagged", planned: "17:00", actual: "16:30", kind: utils.VarianceDeparture, diff: -30, label: "30m early", concern: true},
		{name: "late departure flagged", planned: "17:00", actual: "17:10", kind: utils.VarianceDeparture, diff: 10, label: "10m late", late: true, concern: true},
		{name: "on time departure", planned: "17:00", actual: "17:00", kind: utils.VarianceDeparture, diff: 0, label: "On time"},
		{name: "seconds ignored", planned: "06:00:00", actual: "06:20:59", kind: utils.VarianceArrival, diff: 20, label: "20m late", late: true, concern: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := utils.ComputeVarianceIn(tt.planned, tt.actual, tt.kind, time.UTC)
			require.NotNil(t, v)
			assert.Equal(t, tt.diff, v.DiffMinutes)
			assert.Equal(t, tt.label, v.Label)
			assert.Equal(t, tt.late, v.IsLate)
			assert.Equal(t, tt.concern, v.Concern)
		})
	}
}

func TestComputeVariance_isoTimestamps(t *testing.T) {
	sast := time.FixedZone("SAST", 2*60*60)

	// 12:30Z is 14:30 in SAST
	v := utils.ComputeVarianceIn("14:00", "2026-03-02T12:30:00Z", utils.VarianceArrival, sast)
	require.NotNil(t, v)
	assert.Equal(t, 30, v.DiffMinutes)

	v = utils.ComputeVarianceIn("2026-03-02T09:00", "2026-03-02 08:50", utils.VarianceArrival, sast)
	require.NotNil(t, v)
	assert.Equal(t, -10, v.DiffMinutes)
	assert.Equal(t, "10m early", v.Label)
}

func TestComputeVariance_missingSide(t *testing.T) {
	assert.Nil(t, utils.ComputeVarianceIn("", "10:00", utils.VarianceArrival, time.UTC))
	assert.Nil(t, utils.ComputeVarianceIn("10:00", "", utils.VarianceArrival, time.UTC))
	assert.Nil(t, utils.ComputeVarianceIn("10:00", "soon", utils.VarianceArrival, time.UTC))
	assert.Nil(t, utils.ComputeVarianceIn("25:00", "10:00", utils.VarianceArrival, time.UTC))
}

func TestComputeVariance_swapFlipsSign(t *testing.T) {
	pairs := [][2]string{{"14:00", "15:05"}, {"06:10", "05:00"}, {"00:00", "23:59"}, {"12:00", "12:00"}}

	for _, p := range pairs {
		forward := utils.ComputeVarianceIn(p[0], p[1], utils.VarianceArrival, time.UTC)
		backward := utils.ComputeVarianceIn(p[1], p[0], utils.VarianceArrival, time.UTC)
		require.NotNil(t, forward)
		require.NotNil(t, backward)

		assert.Equal(t, forward.DiffMinutes, -backward.DiffMinutes)
		if forward.DiffMinutes == 0 {
			assert.Equal(t, "On time", forward.Label)
			assert.False(t, forward.IsLate)
			assert.False(t, backward.IsLate)
		} else {
			assert.NotEqual(t, forward.IsLate, backward.IsLate)
		}
	}
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "0m", utils.FormatMinutes(0))
	assert.Equal(t, "59m", utils.FormatMinutes(59))
	assert.Equal(t, "1h", utils.FormatMinutes(60))
	assert.Equal(t, "3h 25m", utils.FormatMinutes(205))
	assert.Equal(t, "1h 5m", utils.FormatMinutes(-65))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0h 0m", utils.FormatDuration(0))
	assert.Equal(t, "0h 45m", utils.FormatDuration(45*time.Minute))
	assert.Equal(t, "2h 5m", utils.FormatDuration(2*time.Hour+4*time.Minute+40*time.Second))
	assert.Equal(t, "0h 0m", utils.FormatDuration(-time.Minute))
}
