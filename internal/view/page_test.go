package view

import (
	"math"
	"testing"
	"time"

	"github.com/chemviz/dashboard/internal/derive"
	"github.com/chemviz/dashboard/internal/models"
	"github.com/chemviz/dashboard/internal/store"
	"github.com/chemviz/dashboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var utc = Options{Location: time.UTC}

func loadedDataset(t *testing.T) *models.Dataset {
	t.Helper()
	ds, err := models.DecodeDataset([]byte(testutil.DatasetJSON(3, 12, 176.93333, 45.2333, 233.3333, "Valve", 5, "Pump", 7)))
	require.NoError(t, err)
	return ds
}

func TestPhaseOf(t *testing.T) {
	tests := []struct {
		loading, hasDataset bool
		want                Phase
	}{
		{false, false, PhaseIdleEmpty},
		{true, false, PhaseLoadingEmpty},
		{false, true, PhaseLoaded},
		{true, true, PhaseLoadingOverLoaded},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, PhaseOf(tt.loading, tt.hasDataset))
		})
	}
}

func TestBannerOf(t *testing.T) {
	assert.Equal(t, BannerNone, BannerOf("", false))
	assert.Equal(t, BannerSuccess, BannerOf("", true))
	assert.Equal(t, BannerError, BannerOf("Failed to fetch data", false))
	assert.Equal(t, BannerError, BannerOf("Failed to fetch data", true))
}

func TestBuild_Empty(t *testing.T) {
	p := Build(store.Snapshot{}, nil, utc)

	assert.Equal(t, PhaseIdleEmpty, p.Phase)
	assert.True(t, p.ShowEmptyState())
	assert.False(t, p.ShowSpinner())
	assert.False(t, p.HasDataset())
	assert.False(t, p.ShowReport)
	assert.False(t, p.UploadDisabled)
	assert.Equal(t, UploadLabel, p.UploadLabel)
	assert.Empty(t, p.Cards)
	assert.Empty(t, p.History)
}

func TestBuild_LoadingWithoutDataset(t *testing.T) {
	p := Build(store.Snapshot{Loading: true}, nil, utc)

	assert.True(t, p.ShowSpinner())
	assert.False(t, p.ShowEmptyState())
	assert.True(t, p.UploadDisabled)
	assert.Equal(t, UploadingLabel, p.UploadLabel)
}

func TestBuild_LoadingOverDatasetKeepsData(t *testing.T) {
	ds := loadedDataset(t)
	p := Build(store.Snapshot{Dataset: ds, Loading: true}, derive.Chart(ds), utc)

	assert.Equal(t, PhaseLoadingOverLoaded, p.Phase)
	assert.False(t, p.ShowSpinner())
	assert.True(t, p.HasDataset())
	assert.True(t, p.ShowReport)
	assert.Len(t, p.Cards, 4)
}

func TestBuild_Dataset(t *testing.T) {
	ds := loadedDataset(t)
	p := Build(store.Snapshot{Dataset: ds}, derive.Chart(ds), utc)

	assert.Equal(t, PhaseLoaded, p.Phase)
	assert.Equal(t, "1/15/2025, 10:30:00 AM", p.LastUpload)
	assert.Equal(t, []Card{
		{Label: "Total Equipment", Value: "12"},
		{Label: "Avg Flowrate", Value: "176.93"},
		{Label: "Avg Pressure", Value: "45.23"},
		{Label: "Avg Temperature", Value: "233.33"},
	}, p.Cards)
	require.NotNil(t, p.Chart)
	assert.Equal(t, []string{"Valve", "Pump"}, p.Chart.Labels)
	assert.Equal(t, models.Columns, p.Columns)
	assert.Equal(t, [][]string{
		{"Reactor-A1", "Reactor", "150.5", "45.2", "320"},
		{"Pump-C3", "Pump", "180", "52", "95"},
	}, p.Rows)
}

func TestBuild_Banners(t *testing.T) {
	p := Build(store.Snapshot{UploadSuccess: true}, nil, utc)
	assert.True(t, p.ShowSuccess())
	assert.Equal(t, SuccessMessage, p.Message)

	p = Build(store.Snapshot{Error: "Please upload a CSV file"}, nil, utc)
	assert.True(t, p.ShowError())
	assert.False(t, p.ShowSuccess())
	assert.Equal(t, "Please upload a CSV file", p.Message)
}

func TestBuild_HistoryIndependentOfDataset(t *testing.T) {
	snap := store.Snapshot{History: []models.HistoryEntry{
		{ID: 7, UploadedAt: "2025-01-15T10:30:00Z", TotalEquipment: models.Float(12), AverageFlowrate: models.Float(12.345),
			AveragePressure: models.Float(40.1), AverageTemperature: models.Float(300)},
		{ID: 6, UploadedAt: "not a date", AverageFlowrate: models.Float(math.NaN()), TotalEquipment: models.Float(math.Inf(1))},
	}}

	p := Build(snap, nil, utc)

	assert.True(t, p.ShowEmptyState())
	assert.Equal(t, []HistoryRow{
		{ID: 7, UploadedAt: "1/15/2025, 10:30:00 AM", TotalEquipment: "12", AverageFlowrate: "12.35", AveragePressure: "40.10", AverageTemperature: "300.00"},
		{ID: 6, UploadedAt: InvalidDate, TotalEquipment: "-", AverageFlowrate: "-", AveragePressure: "-", AverageTemperature: "-"},
	}, p.History)
}

func TestFormatAverage(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{12.345, "12.35"},
		{0, "0.00"},
		{-3.5, "-3.50"},
		{math.NaN(), "-"},
		{math.Inf(-1), "-"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAverage(tt.in))
	}
	assert.Equal(t, "-", FormatOptionalAverage(nil))
	assert.Equal(t, "12.5", FormatOptionalTotal(models.Float(12.5)))
}

func TestFormatUploadTime_Location(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	assert.Equal(t, "1/15/2025, 12:30:00 PM", FormatUploadTime("2025-01-15T10:30:00Z", loc, ""))
	assert.Equal(t, "2025-01-15 10:30", FormatUploadTime("2025-01-15T10:30:00Z", time.UTC, "2006-01-02 15:04"))
	assert.Equal(t, InvalidDate, FormatUploadTime("", time.UTC, ""))
}
