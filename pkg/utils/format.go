package utils

import (
	"fmt"
	"math"
	"time"
)

// FormatDuration renders d as "Xh Ym", rounded to the nearest minute.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(math.Round(d.Minutes()))
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}
