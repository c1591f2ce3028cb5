// Package derive computes presentation data from the current dataset.
// Functions here are pure: no I/O, no mutation of their inputs.
package derive

import "github.com/chemviz/dashboard/internal/models"

// SeriesLabel is the legend label of the distribution series.
const SeriesLabel = "Equipment Count"

// ChartSeries is the bar chart input. Labels and Values are index-aligned.
type ChartSeries struct {
	Labels []string `json:"labels" msgpack:"labels"`
	Values []int64  `json:"values" msgpack:"values"`
}

// Len returns the number of bars.
func (c *ChartSeries) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Labels)
}

// Max returns the largest value, or zero for an empty series.
func (c *ChartSeries) Max() int64 {
	var max int64
	if c == nil {
		return max
	}
	for _, v := range c.Values {
		if v > max {
			max = v
		}
	}
	return max
}

// Chart builds the distribution series in the order the backend enumerated
// equipment types. It returns nil when there is no dataset or no distribution.
func Chart(ds *models.Dataset) *ChartSeries {
	if ds == nil || ds.Stats.EquipmentDistribution.Len() == 0 {
		return nil
	}
	entries := ds.Stats.EquipmentDistribution.Entries()
	series := &ChartSeries{
		Labels: make([]string, len(entries)),
		Values: make([]int64, len(entries)),
	}
	for i, e := range entries {
		series.Labels[i] = e.Type
		series.Values[i] = e.Count
	}
	return series
}
