package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	s, err := NewLocalStore(dir)
	require.NoError(t, err)

	_, ok := s.Last()
	assert.False(t, ok)

	require.NoError(t, s.Save("equipment_report.pdf", []byte("%PDF-1.4 first")))
	require.NoError(t, s.Save("equipment_report.pdf", []byte("%PDF-1.4 second")))

	data, err := os.ReadFile(filepath.Join(dir, "equipment_report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 second", string(data))

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "equipment_report.pdf"), last.Path)
	assert.Equal(t, int64(len("%PDF-1.4 second")), last.Size)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestLocalStore_RejectsPaths(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tests := []string{"", "../escape.pdf", "sub/report.pdf"}
	for _, name := range tests {
		assert.Error(t, s.Save(name, []byte("x")), name)
	}
}
