// Package view maps dashboard state to what is shown on screen.
//
// Build is a pure function from a store snapshot to a Page; renderers only
// turn a Page into bytes and make no decisions of their own.
package view

import (
	"strconv"
	"time"

	"github.com/chemviz/dashboard/internal/derive"
	"github.com/chemviz/dashboard/internal/models"
	"github.com/chemviz/dashboard/internal/store"
)

// Phase is the data region state.
type Phase int

const (
	// PhaseIdleEmpty shows the empty-state placeholder.
	PhaseIdleEmpty Phase = iota
	// PhaseLoadingEmpty shows the spinner.
	PhaseLoadingEmpty
	// PhaseLoaded shows the dataset.
	PhaseLoaded
	// PhaseLoadingOverLoaded keeps the dataset visible while a request is in flight.
	PhaseLoadingOverLoaded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdleEmpty:
		return "idle-empty"
	case PhaseLoadingEmpty:
		return "loading-empty"
	case PhaseLoaded:
		return "loaded"
	case PhaseLoadingOverLoaded:
		return "loading-over-loaded"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Banner is the alert region state. At most one banner is visible.
type Banner int

const (
	BannerNone Banner = iota
	BannerError
	BannerSuccess
)

func (b Banner) String() string {
	switch b {
	case BannerError:
		return "error"
	case BannerSuccess:
		return "success"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler
func (b Banner) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// Labels
const (
	Title          = "Chemical Equipment Visualizer"
	Subtitle       = "Upload and analyze chemical equipment data"
	UploadLabel    = "Upload CSV"
	UploadingLabel = "Uploading..."
	SuccessMessage = "CSV uploaded successfully!"
)

// PhaseOf derives the data region state.
func PhaseOf(loading, hasDataset bool) Phase {
	switch {
	case hasDataset && loading:
		return PhaseLoadingOverLoaded
	case hasDataset:
		return PhaseLoaded
	case loading:
		return PhaseLoadingEmpty
	default:
		return PhaseIdleEmpty
	}
}

// BannerOf derives the alert region state. An error hides the success banner.
func BannerOf(errMsg string, success bool) Banner {
	switch {
	case errMsg != "":
		return BannerError
	case success:
		return BannerSuccess
	default:
		return BannerNone
	}
}

// Options control locale dependent formatting.
type Options struct {
	Location   *time.Location
	TimeLayout string
}

// Card is one summary statistic.
type Card struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// HistoryRow is one formatted history line.
type HistoryRow struct {
	ID                 int64  `json:"id"`
	UploadedAt         string `json:"uploaded_at"`
	TotalEquipment     string `json:"total_equipment"`
	AverageFlowrate    string `json:"average_flowrate"`
	AveragePressure    string `json:"average_pressure"`
	AverageTemperature string `json:"average_temperature"`
}

// Page is everything needed to draw the dashboard.
type Page struct {
	Phase  Phase  `json:"phase"`
	Banner Banner `json:"banner"`

	Loading        bool   `json:"loading"`
	UploadLabel    string `json:"upload_label"`
	UploadDisabled bool   `json:"upload_disabled"`
	ShowReport     bool   `json:"show_report"`
	Message        string `json:"message,omitempty"`

	LastUpload string              `json:"last_upload,omitempty"`
	Cards      []Card              `json:"cards,omitempty"`
	Chart      *derive.ChartSeries `json:"chart,omitempty"`
	Columns    []string            `json:"columns,omitempty"`
	Rows       [][]string          `json:"rows,omitempty"`
	History    []HistoryRow        `json:"history,omitempty"`

	InputGeneration uint64 `json:"input_generation"`
	Version         uint64 `json:"version"`
}

// ShowError reports whether the error banner is drawn.
func (p Page) ShowError() bool { return p.Banner == BannerError }

// ShowSuccess reports whether the success banner is drawn.
func (p Page) ShowSuccess() bool { return p.Banner == BannerSuccess }

// ShowSpinner reports whether the loading spinner is drawn.
func (p Page) ShowSpinner() bool { return p.Phase == PhaseLoadingEmpty }

// ShowEmptyState reports whether the empty-state placeholder is drawn.
func (p Page) ShowEmptyState() bool { return p.Phase == PhaseIdleEmpty }

// HasDataset reports whether the data regions are drawn.
func (p Page) HasDataset() bool {
	return p.Phase == PhaseLoaded || p.Phase == PhaseLoadingOverLoaded
}

// Build maps a snapshot and its chart series to a Page.
func Build(snap store.Snapshot, chart *derive.ChartSeries, opts Options) Page {
	ds := snap.Dataset
	p := Page{
		Phase:           PhaseOf(snap.Loading, ds != nil),
		Banner:          BannerOf(snap.Error, snap.UploadSuccess),
		Loading:         snap.Loading,
		UploadLabel:     UploadLabel,
		UploadDisabled:  snap.Loading,
		ShowReport:      ds != nil,
		InputGeneration: snap.InputGeneration,
		Version:         snap.Version,
	}
	if snap.Loading {
		p.UploadLabel = UploadingLabel
	}
	switch p.Banner {
	case BannerError:
		p.Message = snap.Error
	case BannerSuccess:
		p.Message = SuccessMessage
	}

	if ds != nil {
		if ds.UploadedAt != "" {
			p.LastUpload = FormatUploadTime(ds.UploadedAt, opts.Location, opts.TimeLayout)
		}
		p.Cards = []Card{
			{Label: "Total Equipment", Value: strconv.FormatInt(ds.Stats.TotalEquipment, 10)},
			{Label: "Avg Flowrate", Value: FormatAverage(ds.Stats.AverageFlowrate)},
			{Label: "Avg Pressure", Value: FormatAverage(ds.Stats.AveragePressure)},
			{Label: "Avg Temperature", Value: FormatAverage(ds.Stats.AverageTemperature)},
		}
		p.Chart = chart
		p.Columns = models.Columns
		p.Rows = make([][]string, len(ds.Rows))
		for i, rec := range ds.Rows {
			row := make([]string, len(models.Columns))
			for j, col := range models.Columns {
				row[j] = rec.Field(col)
			}
			p.Rows[i] = row
		}
	}

	if len(snap.History) > 0 {
		p.History = make([]HistoryRow, len(snap.History))
		for i, h := range snap.History {
			p.History[i] = HistoryRow{
				ID:                 h.ID,
				UploadedAt:         FormatUploadTime(h.UploadedAt, opts.Location, opts.TimeLayout),
				TotalEquipment:     FormatOptionalTotal(h.TotalEquipment),
				AverageFlowrate:    FormatOptionalAverage(h.AverageFlowrate),
				AveragePressure:    FormatOptionalAverage(h.AveragePressure),
				AverageTemperature: FormatOptionalAverage(h.AverageTemperature),
			}
		}
	}
	return p
}
