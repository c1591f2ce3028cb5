// Package models contains domain types for the Chemical Equipment Visualizer.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Column names of an equipment record, in display order.
const (
	ColumnName        = "Equipment Name"
	ColumnType        = "Type"
	ColumnFlowrate    = "Flowrate"
	ColumnPressure    = "Pressure"
	ColumnTemperature = "Temperature"
)

// Columns lists the equipment table columns in display order.
var Columns = []string{ColumnName, ColumnType, ColumnFlowrate, ColumnPressure, ColumnTemperature}

// Dataset is the currently displayed upload result as returned by the backend.
// Rows keep the order they were received in.
type Dataset struct {
	ID         int64             `json:"id,omitempty"`
	UploadedAt string            `json:"uploaded_at,omitempty"`
	Stats      Stats             `json:"stats"`
	Rows       []EquipmentRecord `json:"data"`
}

// Stats holds the aggregate statistics computed by the backend.
type Stats struct {
	TotalEquipment        int64        `json:"total_equipment"`
	AverageFlowrate       float64      `json:"average_flowrate"`
	AveragePressure       float64      `json:"average_pressure"`
	AverageTemperature    float64      `json:"average_temperature"`
	EquipmentDistribution Distribution `json:"equipment_distribution"`
}

// EquipmentRecord is one row of the uploaded spreadsheet keyed by column name.
// Numeric cells are kept as json.Number so they render as received.
type EquipmentRecord map[string]any

// Field renders the cell for the given column. Missing and null cells render empty.
func (r EquipmentRecord) Field(column string) string {
	v, ok := r[column]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil && !math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// DecodeDataset decodes a backend dataset payload, keeping numeric cells exact.
func DecodeDataset(data []byte) (*Dataset, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	return &ds, nil
}
