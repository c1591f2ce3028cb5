package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/chemviz/dashboard/internal/testutil"
	"github.com/chemviz/dashboard/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Latest(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Set(transport.PathLatest, testutil.Raw(http.StatusOK, testutil.DatasetJSON(1, 3, 165.25, 48.6, 207.5, "Reactor", 1, "Pump", 2)))
	chart := filepath.Join(t.TempDir(), "dist.png")

	code, out, errOut := runCLI(t, "--backend", fb.URL(), "latest", "--chart", chart)

	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Avg Flowrate:")
	assert.Contains(t, out, "165.25")
	assert.Contains(t, out, "Reactor-A1")
	assert.Contains(t, out, "Equipment Count")

	data, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestRun_LatestEmpty(t *testing.T) {
	fb := testutil.NewFakeBackend(t)

	code, out, _ := runCLI(t, "-b", fb.URL(), "latest")

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "No data available")
}

func TestRun_Upload(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Set(transport.PathUpload, testutil.Raw(http.StatusCreated, testutil.DatasetJSON(4, 3, 1, 2, 3, "Pump", 3)))
	fb.Set(transport.PathHistory, testutil.Raw(http.StatusOK, `[]`))

	path := filepath.Join(t.TempDir(), "plant.csv")
	require.NoError(t, os.WriteFile(path, []byte(testutil.SampleCSV), 0644))

	code, out, errOut := runCLI(t, "-b", fb.URL(), "upload", path)

	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "CSV uploaded successfully!")
	uploads := fb.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "plant.csv", uploads[0].Filename)
}

func TestRun_UploadRejectsNonCSV(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	path := filepath.Join(t.TempDir(), "plant.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	code, _, errOut := runCLI(t, "-b", fb.URL(), "upload", path)

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, transport.MsgNotCSV)
	assert.Zero(t, fb.Hits(transport.PathUpload))
}

func TestRun_History(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Set(transport.PathHistory, testutil.Raw(http.StatusOK, testutil.HistoryJSON))

	code, out, _ := runCLI(t, "-b", fb.URL(), "history")

	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Upload Time")
	assert.Contains(t, out, "12.35")
}

func TestRun_Report(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Set(transport.PathReport, testutil.Response{Status: http.StatusOK, Body: []byte("%PDF-1.4"), ContentType: "application/pdf"})
	dir := t.TempDir()

	code, out, errOut := runCLI(t, "-b", fb.URL(), "report", "-o", dir)

	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "equipment_report.pdf")
	data, err := os.ReadFile(filepath.Join(dir, "equipment_report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestRun_ReportFailure(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	fb.Set(transport.PathReport, testutil.Raw(http.StatusInternalServerError, `{}`))

	code, _, errOut := runCLI(t, "-b", fb.URL(), "report", "-o", t.TempDir())

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, transport.MsgDownloadFailed)
}

func TestRun_Usage(t *testing.T) {
	code, _, errOut := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Usage: equipctl")

	code, _, errOut = runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "frobnicate"`)
}

func TestRun_InvalidBackend(t *testing.T) {
	code, _, errOut := runCLI(t, "--backend", "not a url", "latest")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "invalid backend url")

	code, _, errOut = runCLI(t, "-b", "ftp://plant.local", "history")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "invalid backend url")
}
