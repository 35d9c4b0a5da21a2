package db

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"

	"rag-backend/internal/config"
	"rag-backend/internal/models"
)

const testVectorSize = 3

// newTestStore connects to TEST_DATABASE_URL and recreates the documents
// table. The test is skipped without it.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	sqldb, err := ConnectDB(&config.DatabaseConfig{DSN: dsn, Driver: "pgdriver"})
	require.NoError(t, err)
	bunDB := NewDB(sqldb, false)

	ctx := context.Background()
	require.NoError(t, DropDocuments(ctx, bunDB))
	require.NoError(t, InitDB(ctx, bunDB, testVectorSize))

	client := embeddings.EmbedderClientFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			lower := strings.ToLower(text)
			out[i] = []float32{
				0.01 + float32(strings.Count(lower, "depth")),
				0.01 + float32(strings.Count(lower, "salinity")),
				0.01 + float32(strings.Count(lower, "reef")),
			}
		}
		return out, nil
	})
	embedder, err := embeddings.NewEmbedder(client)
	require.NoError(t, err)

	s := NewStore(bunDB, embedder)
	t.Cleanup(func() {
		DropDocuments(context.Background(), bunDB)
		s.Close()
	})
	return s
}

func TestStore_AddSearchSources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []models.ContentUnit{
		{Text: "depth depth of the trench", Metadata: map[string]string{models.MetaFilename: "a.pdf"}},
		{Text: "salinity near the reef", Metadata: map[string]string{models.MetaFilename: "b.csv"}},
	}))

	got, err := s.Search(ctx, "depth", 2, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "depth depth of the trench", got[0].Text)

	got, err = s.Search(ctx, "depth", 2, map[string]string{models.MetaFilename: "b.csv"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b.csv", got[0].Metadata[models.MetaFilename])

	names, err := s.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.csv"}, names)
}

func TestStore_EmbeddingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []models.ContentUnit{{Text: "depth of the reef, °C at 10 µm"}}))

	var docs []Document
	require.NoError(t, s.db.NewSelect().Model(&docs).Scan(ctx))
	require.Len(t, docs, 1)
	assert.Equal(t, "depth of the reef, °C at 10 µm", docs[0].Content)
	assert.InDeltaSlice(t, []float32{1.01, 0.01, 1.01}, docs[0].Embedding.Slice(), 1e-5)
}

func TestSearchQuery(t *testing.T) {
	sqldb, err := ConnectDB(&config.DatabaseConfig{DSN: "postgres://rag@localhost:5432/rag?sslmode=disable", Driver: "pgdriver"})
	require.NoError(t, err)
	bunDB := NewDB(sqldb, false)
	defer bunDB.Close()

	var docs []Document
	q := searchQuery(bunDB, &docs, []float32{1, 0.5, -2.25}, 4, map[string]string{models.MetaFilename: "a.pdf"})
	query := q.String()

	assert.Contains(t, query, `d.metadata->>'filename' = 'a.pdf'`)
	assert.Contains(t, query, `ORDER BY d.embedding <-> '[1,0.5,-2.25]'`)
	assert.Contains(t, query, "LIMIT 4")
	assert.NotContains(t, query, `"embedding"`, "search does not read vectors back")
}

func TestDocument_EmbeddingValue(t *testing.T) {
	d := Document{Embedding: pgvector.NewVector([]float32{0.25, 3})}
	v, err := d.Embedding.Value()
	require.NoError(t, err)
	assert.Equal(t, "[0.25,3]", v)
}

func TestStore_SearchEmptyQuery(t *testing.T) {
	s := &Store{}
	_, err := s.Search(context.Background(), "", 4, nil)
	assert.ErrorIs(t, err, models.ErrStoreQuery)

	got, err := s.Search(context.Background(), "q", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
