package view

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chemviz/dashboard/internal/derive"
	"github.com/chemviz/dashboard/internal/models"
	"github.com/chemviz/dashboard/internal/store"
	"github.com/chemviz/dashboard/internal/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(web.Templates())
	require.NoError(t, err)
	return r
}

func TestRenderer_EmptyPage(t *testing.T) {
	r := newRenderer(t)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, Build(store.Snapshot{}, nil, utc)))
	html := buf.String()

	assert.Contains(t, html, "<title>Chemical Equipment Visualizer</title>")
	assert.Contains(t, html, `data-testid="empty-state"`)
	assert.Contains(t, html, "Upload CSV")
	assert.NotContains(t, html, `data-testid="download-pdf-button"`)
	assert.NotContains(t, html, `data-testid="loading-spinner"`)
	assert.NotContains(t, html, `data-testid="error-message"`)
}

func TestRenderer_LoadedBody(t *testing.T) {
	r := newRenderer(t)
	ds := loadedDataset(t)
	snap := store.Snapshot{Dataset: ds, Loading: true, Error: "Missing column: <Type>", History: []models.HistoryEntry{
		{ID: 7, UploadedAt: "2025-01-15T10:30:00Z", AverageFlowrate: models.Float(12.345)},
	}}

	body, err := r.BodyString(Build(snap, derive.Chart(ds), utc))
	require.NoError(t, err)

	assert.Contains(t, body, "Uploading...")
	assert.Contains(t, body, " disabled")
	assert.Contains(t, body, `data-testid="download-pdf-button"`)
	assert.Contains(t, body, "Missing column: &lt;Type&gt;")
	assert.NotContains(t, body, `data-testid="success-message"`)
	assert.NotContains(t, body, `data-testid="loading-spinner"`)
	assert.Contains(t, body, `data-testid="equipment-distribution-chart"`)
	assert.Contains(t, body, "<td>Reactor-A1</td>")
	assert.Contains(t, body, `data-testid="equipment-row-1"`)
	assert.Contains(t, body, "<td>12.35</td>")
	assert.Less(t, strings.Index(body, "Reactor-A1"), strings.Index(body, "Pump-C3"))
	assert.NotContains(t, body, "<html")
}

func TestRenderer_SpinnerOnlyWithoutDataset(t *testing.T) {
	r := newRenderer(t)

	body, err := r.BodyString(Build(store.Snapshot{Loading: true}, nil, utc))
	require.NoError(t, err)

	assert.Contains(t, body, `data-testid="loading-spinner"`)
	assert.NotContains(t, body, `data-testid="empty-state"`)
	assert.NotContains(t, body, `data-testid="equipment-table"`)
}
