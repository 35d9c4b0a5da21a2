package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-backend/internal/models"
	"rag-backend/internal/parser"
	"rag-backend/internal/table"
)

type recordingStore struct {
	units []models.ContentUnit
	err   error
}

func (s *recordingStore) Add(_ context.Context, units []models.ContentUnit) error {
	if s.err != nil {
		return s.err
	}
	s.units = append(s.units, units...)
	return nil
}

func TestIngestFile_CSVRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1700000000_samples.csv")
	require.NoError(t, os.WriteFile(path, []byte("sample,depth\nsurface,0\nreef,missing\n"), 0o644))

	store := &recordingStore{}
	n, err := New(store, parser.Options{}).IngestFile(context.Background(), path, "samples.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, store.units, 2)
	assert.Equal(t, "sample: reef, depth: missing", store.units[1].Text)
	assert.Equal(t, map[string]string{
		models.MetaFilename: "samples.csv",
		models.MetaSource:   "samples.csv",
		models.MetaIndex:    "1",
	}, store.units[1].Metadata)
}

func TestIngestFile_TextChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Surface samples were taken at 0 m."), 0o644))

	store := &recordingStore{}
	in := New(store, parser.Options{ChunkSize: 100, ChunkOverlap: 10})
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in.now = func() time.Time { return at }

	n, err := in.IngestFile(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Surface samples were taken at 0 m.", store.units[0].Text)
	assert.Equal(t, map[string]string{
		models.MetaFilename:  "notes.txt",
		models.MetaTimestamp: "2024-05-01T12:00:00Z",
		models.MetaPage:      "1",
		models.MetaChunkID:   "1",
	}, store.units[0].Metadata)
}

func TestIngestFile_Unsupported(t *testing.T) {
	_, err := New(&recordingStore{}, parser.Options{}).IngestFile(context.Background(), "photo.png", "")
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestIngestFile_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	store := &recordingStore{err: errors.New("must not be called")}
	n, err := New(store, parser.Options{}).IngestFile(context.Background(), path, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestFile_StoreError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0o644))

	store := &recordingStore{err: models.ErrStoreWrite}
	_, err := New(store, parser.Options{}).IngestFile(context.Background(), path, "")
	assert.ErrorIs(t, err, models.ErrStoreWrite)
}

func TestRowUnits(t *testing.T) {
	d := &table.Dataset{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}
	units := RowUnits(d, "x.csv")
	require.Len(t, units, 1)
	assert.Equal(t, "a: 1, b: 2", units[0].Text)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.pdf"))
	assert.True(t, Supported("a.csv"))
	assert.True(t, Supported("a.xlsx"))
	assert.False(t, Supported("a.exe"))
}
