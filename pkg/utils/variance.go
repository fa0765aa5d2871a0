package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// VarianceKind selects how a planned/actual difference is judged.
type VarianceKind string

const (
	VarianceArrival   VarianceKind = "arrival"
	VarianceDeparture VarianceKind = "departure"
)

// Variance is the difference between a planned and an actual clock time.
type Variance struct {
	DiffMinutes int    `json:"diffMinutes"`
	Label       string `json:"label"`
	IsLate      bool   `json:"isLate"`
	// Concern marks differences worth flagging: late arrivals, and departures
	// that are off plan in either direction.
	Concern bool `json:"concern"`
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::\d{2})?$`)

var zonedLayouts = []string{time.RFC3339Nano, time.RFC3339}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ComputeVariance compares planned and actual times using the process's local zone.
func ComputeVariance(planned, actual string, kind VarianceKind) *Variance {
	return ComputeVarianceIn(planned, actual, kind, time.Local)
}

// ComputeVarianceIn compares planned and actual times given either as bare
// HH:mm or inside a timestamp; timestamps are read as wall-clock time in loc.
// It returns nil when either side is missing or unreadable.
func ComputeVarianceIn(planned, actual string, kind VarianceKind, loc *time.Location) *Variance {
	p, ok := clockMinutes(planned, loc)
	if !ok {
		return nil
	}
	a, ok := clockMinutes(actual, loc)
	if !ok {
		return nil
	}

	diff := a - p
	v := &Variance{DiffMinutes: diff, IsLate: diff > 0}
	switch {
	case diff == 0:
		v.Label = "On time"
	case diff > 0:
		v.Label = FormatMinutes(diff) + " late"
	default:
		v.Label = FormatMinutes(-diff) + " early"
	}

	if kind == VarianceDeparture {
		v.Concern = diff != 0
	} else {
		v.Concern = diff > 0
	}
	return v
}

// clockMinutes extracts minutes since midnight from s.
func clockMinutes(s string, loc *time.Location) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if loc == nil {
		loc = time.UTC
	}

	if m := clockPattern.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if h > 23 || mm > 59 {
			return 0, false
		}
		return h*60 + mm, true
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.In(loc)
			return t.Hour()*60 + t.Minute(), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Hour()*60 + t.Minute(), true
		}
	}
	return 0, false
}

// FormatMinutes renders a minute count as "1h 5m", "2h" or "45m".
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = -minutes
	}
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dm", m)
}
