package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"rag-backend/internal/models"
	"rag-backend/internal/parser"
	"rag-backend/internal/table"
)

// Store is the write side of a document store.
type Store interface {
	Add(ctx context.Context, units []models.ContentUnit) error
}

type Ingester struct {
	store Store
	opts  parser.Options
	now   func() time.Time
}

func New(store Store, opts parser.Options) *Ingester {
	return &Ingester{store: store, opts: opts, now: time.Now}
}

// Supported reports whether filename can be ingested.
func Supported(filename string) bool {
	return parser.IsDocument(filename) || table.IsTable(filename)
}

// IngestFile loads the file at path and adds its units to the store.
// filename is the name recorded in metadata, usually the uploaded name.
// It returns the number of units added.
func (in *Ingester) IngestFile(ctx context.Context, path, filename string) (int, error) {
	if filename == "" {
		filename = filepath.Base(path)
	}

	var units []models.ContentUnit
	switch {
	case table.IsTable(path):
		d, err := table.Read(path)
		if err != nil {
			return 0, err
		}
		units = RowUnits(d, filename)
	case parser.IsDocument(path):
		chunks, err := parser.ParseDocument(path, in.opts)
		if err != nil {
			return 0, err
		}
		units = ChunkUnits(chunks, filename, in.now())
	default:
		return 0, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filepath.Ext(path))
	}

	if len(units) == 0 {
		log.Warn().Str("file", filename).Msg("No content extracted")
		return 0, nil
	}
	if err := in.store.Add(ctx, units); err != nil {
		return 0, err
	}
	log.Info().Str("file", filename).Int("units", len(units)).Msg("Ingested file")
	return len(units), nil
}

// ChunkUnits tags every chunk with its file name, ingestion time, page and position.
func ChunkUnits(chunks []models.Chunk, filename string, at time.Time) []models.ContentUnit {
	ts := at.Format(time.RFC3339)
	units := make([]models.ContentUnit, 0, len(chunks))
	for _, c := range chunks {
		units = append(units, models.ContentUnit{
			Text: c.Content,
			Metadata: map[string]string{
				models.MetaFilename:  filename,
				models.MetaTimestamp: ts,
				models.MetaPage:      strconv.Itoa(c.PageNumber),
				models.MetaChunkID:   strconv.Itoa(c.ChunkID),
			},
		})
	}
	return units
}

// RowUnits makes one unit per row, with text "col: value, col: value".
func RowUnits(d *table.Dataset, filename string) []models.ContentUnit {
	units := make([]models.ContentUnit, 0, len(d.Rows))
	for i := range d.Rows {
		units = append(units, models.ContentUnit{
			Text: d.RowText(i),
			Metadata: map[string]string{
				models.MetaFilename: filename,
				models.MetaSource:   filename,
				models.MetaIndex:    strconv.Itoa(i),
			},
		})
	}
	return units
}
