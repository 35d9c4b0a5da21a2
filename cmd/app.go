package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"rag-backend/internal/chromemdb"
	"rag-backend/internal/config"
	"rag-backend/internal/db"
	"rag-backend/internal/embedding"
	"rag-backend/internal/extract"
	"rag-backend/internal/fill"
	"rag-backend/internal/ingest"
	"rag-backend/internal/llmservice"
	"rag-backend/internal/models"
	"rag-backend/internal/parser"
	"rag-backend/internal/rag"
)

// store is what the commands need from either backend.
type store interface {
	Add(ctx context.Context, units []models.ContentUnit) error
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]models.ContentUnit, error)
	Sources(ctx context.Context) ([]string, error)
}

type app struct {
	store    store
	chromem  *chromemdb.VectorDBManager
	rag      *rag.RAG
	ingester *ingest.Ingester
	filler   *fill.Reconstructor
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("error initializing embedder: %w", err)
	}

	a := &app{}
	switch cfg.Store.Backend {
	case "pgvector":
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		if err := db.InitDB(ctx, bunDB, cfg.Database.VectorSize); err != nil {
			bunDB.Close()
			return nil, fmt.Errorf("error initializing database: %w", err)
		}
		pg := db.NewStore(bunDB, embedder)
		a.store = pg
		a.closers = append(a.closers, pg.Close)
	default:
		m, err := chromemdb.NewVectorDBManager(
			cfg.Store.Path,
			cfg.Store.Collection,
			cfg.Store.InMemory,
			cfg.Store.Compress,
			cfg.RAG.EncryptionKey,
			embedding.ChromemFunc(embedder),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating vector database manager: %w", err)
		}
		a.store = m
		a.chromem = m
	}

	client, err := llmservice.NewFromConfig(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("error initializing llm: %w", err)
	}

	assembler := rag.NewAssembler(a.store, rag.AssemblerOptions{
		TopK:      cfg.RAG.TopK,
		FilterKey: cfg.RAG.FilterKey,
		MaxUnits:  cfg.RAG.MaxContextUnits,
		MaxChars:  cfg.RAG.MaxContextChars,
	})
	a.rag = rag.NewRAG(assembler, client)
	a.ingester = ingest.New(a.store, parser.Options{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
	})
	a.filler = fill.New(a.rag, extract.New(cfg.Fill.Delimiter), fill.OptionsFromConfig(cfg.Fill))

	log.Debug().Str("backend", cfg.Store.Backend).Msg("Application ready")
	return a, nil
}

func (a *app) requireChromem() (*chromemdb.VectorDBManager, error) {
	if a.chromem == nil {
		return nil, errors.New("export, import and reset need the chromem store backend")
	}
	return a.chromem, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Error closing resource")
		}
	}
}
