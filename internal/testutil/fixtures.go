package testutil

import (
	"fmt"
	"strings"
)

// SampleCSV is a small valid equipment spreadsheet.
const SampleCSV = `Equipment Name,Type,Flowrate,Pressure,Temperature
Reactor-A1,Reactor,150.5,45.2,320.0
Heat Exchanger-B2,Heat Exchanger,200.3,38.5,285.0
Pump-C3,Pump,180.0,52.0,95.0
`

// DatasetJSON renders a backend dataset payload. dist is given as alternating
// type/count pairs so the key order is explicit.
func DatasetJSON(id int, total int, flow, pressure, temp float64, dist ...any) string {
	var pairs []string
	for i := 0; i+1 < len(dist); i += 2 {
		pairs = append(pairs, fmt.Sprintf("%q:%v", dist[i], dist[i+1]))
	}
	return fmt.Sprintf(`{"id":%d,"uploaded_at":"2025-01-15T10:30:00Z","stats":{"total_equipment":%d,"average_flowrate":%v,"average_pressure":%v,"average_temperature":%v,"equipment_distribution":{%s}},"data":[{"Equipment Name":"Reactor-A1","Type":"Reactor","Flowrate":150.5,"Pressure":45.2,"Temperature":320.0},{"Equipment Name":"Pump-C3","Type":"Pump","Flowrate":180.0,"Pressure":52.0,"Temperature":95.0}]}`,
		id, total, flow, pressure, temp, strings.Join(pairs, ","))
}

// HistoryJSON is a two-entry history payload, newest first. The second entry
// has no stored statistics.
const HistoryJSON = `[
 {"id":7,"uploaded_at":"2025-01-15T10:30:00Z","total_equipment":12,"average_flowrate":12.345,"average_pressure":40.1,"average_temperature":300},
 {"id":6,"uploaded_at":"2025-01-14T09:00:00Z","total_equipment":null,"average_flowrate":null,"average_pressure":null,"average_temperature":null}
]`
