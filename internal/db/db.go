package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"rag-backend/internal/config"
	"rag-backend/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64             `bun:"id,pk,autoincrement"`
	Content       string            `bun:"content,notnull"`
	Metadata      map[string]string `bun:"metadata,type:jsonb,notnull,default:'{}'"`
	Embedding     pgvector.Vector   `bun:"embedding,type:vector,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the driver named in cfg. "pq" uses
// lib/pq through database/sql, anything else uses bun's pgdriver.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Driver == "pq" {
		return sql.Open("postgres", cfg.DSN)
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

// InitDB enables pgvector and creates the documents table. The vector column
// is sized at runtime, so the table is created with raw SQL.
func InitDB(ctx context.Context, db *bun.DB, vectorSize int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
	id bigserial PRIMARY KEY,
	content text NOT NULL,
	metadata jsonb NOT NULL DEFAULT '{}',
	embedding vector(%d) NOT NULL
)`, vectorSize))
	return err
}

func StoreDocuments(ctx context.Context, db *bun.DB, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := db.NewInsert().Model(&docs).Exec(ctx)
	return err
}

// SearchDocuments returns the limit nearest documents to queryEmbedding, closest
// first. Every filter entry must equal the matching metadata field.
func SearchDocuments(ctx context.Context, db *bun.DB, queryEmbedding []float32, limit int, filter map[string]string) ([]Document, error) {
	var docs []Document
	err := searchQuery(db, &docs, queryEmbedding, limit, filter).Scan(ctx)
	return docs, err
}

func searchQuery(db *bun.DB, docs *[]Document, queryEmbedding []float32, limit int, filter map[string]string) *bun.SelectQuery {
	q := db.NewSelect().
		Model(docs).
		Column("id", "content", "metadata")
	for key, value := range filter {
		q = q.Where("d.metadata->>? = ?", key, value)
	}
	return q.OrderExpr("d.embedding <-> ?", pgvector.NewVector(queryEmbedding)).
		Limit(limit)
}

// DistinctMetadata lists the distinct non-empty values of a metadata key.
func DistinctMetadata(ctx context.Context, db *bun.DB, key string) ([]string, error) {
	var values []string
	err := db.NewSelect().
		Model((*Document)(nil)).
		ColumnExpr("DISTINCT d.metadata->>? AS value", key).
		Where("coalesce(d.metadata->>?, '') <> ''", key).
		OrderExpr("value").
		Scan(ctx, &values)
	return values, err
}

// drop table documents

func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// Store is a document store backed by Postgres with the pgvector extension.
type Store struct {
	db       *bun.DB
	embedder embeddings.Embedder
}

func NewStore(db *bun.DB, embedder embeddings.Embedder) *Store {
	return &Store{db: db, embedder: embedder}
}

func (s *Store) Add(ctx context.Context, units []models.ContentUnit) error {
	if len(units) == 0 {
		return nil
	}
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embed documents: %w", models.ErrStoreWrite, err)
	}
	if len(vectors) != len(units) {
		return fmt.Errorf("%w: got %d embeddings for %d documents", models.ErrStoreWrite, len(vectors), len(units))
	}

	docs := make([]Document, len(units))
	for i, u := range units {
		meta := u.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		docs[i] = Document{Content: u.Text, Metadata: meta, Embedding: pgvector.NewVector(vectors[i])}
	}
	if err := StoreDocuments(ctx, s.db, docs); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreWrite, err)
	}
	log.Debug().Int("documents", len(docs)).Msg("Stored documents")
	return nil
}

func (s *Store) Search(ctx context.Context, query string, k int, filter map[string]string) ([]models.ContentUnit, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", models.ErrStoreQuery)
	}
	if k <= 0 {
		return nil, nil
	}
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", models.ErrStoreQuery, err)
	}
	docs, err := SearchDocuments(ctx, s.db, vector, k, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreQuery, err)
	}
	units := make([]models.ContentUnit, len(docs))
	for i, d := range docs {
		units[i] = models.ContentUnit{ID: fmt.Sprint(d.ID), Text: d.Content, Metadata: d.Metadata}
	}
	return units, nil
}

func (s *Store) Sources(ctx context.Context) ([]string, error) {
	values, err := DistinctMetadata(ctx, s.db, models.MetaFilename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreQuery, err)
	}
	return values, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
