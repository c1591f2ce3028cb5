package view

import (
	"math"
	"strconv"
	"time"

	"github.com/chemviz/dashboard/internal/models"
)

// Placeholder is shown for values that are absent or not finite.
const Placeholder = "-"

// InvalidDate is shown for upload times that cannot be parsed.
const InvalidDate = "Invalid Date"

// DefaultTimeLayout renders upload times as month/day/year with a 12h clock.
const DefaultTimeLayout = "1/2/2006, 3:04:05 PM"

// FormatAverage renders an average with exactly two decimals.
func FormatAverage(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Placeholder
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatOptionalAverage is FormatAverage for values that may be missing.
func FormatOptionalAverage(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return FormatAverage(*v)
}

// FormatOptionalTotal renders a total as received, or the placeholder.
func FormatOptionalTotal(v *float64) string {
	if !models.Finite(v) {
		return Placeholder
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatUploadTime renders a backend upload timestamp in loc using layout.
func FormatUploadTime(raw string, loc *time.Location, layout string) string {
	t, ok := models.ParseUploadTime(raw)
	if !ok {
		return InvalidDate
	}
	if loc == nil {
		loc = time.Local
	}
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return t.In(loc).Format(layout)
}
