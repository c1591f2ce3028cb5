package models

import (
	"math"
	"time"
)

// HistoryEntry summarises one past upload. Numeric fields are pointers because
// the backend may send null for uploads stored without summary statistics.
type HistoryEntry struct {
	ID                 int64    `json:"id"`
	UploadedAt         string   `json:"uploaded_at"`
	TotalEquipment     *float64 `json:"total_equipment"`
	AverageFlowrate    *float64 `json:"average_flowrate"`
	AveragePressure    *float64 `json:"average_pressure"`
	AverageTemperature *float64 `json:"average_temperature"`
}

// UploadTime parses UploadedAt. The backend emits RFC 3339 timestamps with
// optional fractional seconds.
func (h HistoryEntry) UploadTime() (time.Time, bool) {
	return ParseUploadTime(h.UploadedAt)
}

// ParseUploadTime parses a backend upload timestamp.
func ParseUploadTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Finite reports whether v is present and a finite number.
func Finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// Float returns a pointer to f. Handy for building entries in tests and fixtures.
func Float(f float64) *float64 { return &f }
