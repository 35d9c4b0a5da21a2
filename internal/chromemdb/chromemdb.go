package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"rag-backend/internal/helper"
	"rag-backend/internal/models"
)

// VectorDBManager encapsulates the chromem-go database operations and
// serves as the default document store.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	embed         chromem.EmbeddingFunc
	dbPath        string
	inMemory      bool
	compress      bool
	encryptionKey string
	filePath      string

	mu      sync.Mutex
	sources map[string]struct{}
}

type sourceManifest struct {
	Sources []string `yaml:"sources"`
}

// NewVectorDBManager opens (or creates) the database and the named collection.
// embed is used for documents added without an embedding and for queries.
func NewVectorDBManager(dbPath, collectionName string, inMemory, compress bool, encryptionKey string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		embed:         embed,
		dbPath:        dbPath,
		inMemory:      inMemory,
		compress:      compress,
		encryptionKey: encryptionKey,
		filePath:      filepath.Join(dbPath, collectionName+".chromem"),
		sources:       make(map[string]struct{}),
	}
	if _, err := m.GetOrCreateCollection(collectionName); err != nil {
		return nil, err
	}
	if !inMemory {
		if err := m.loadManifest(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCollection(collectionName)
}

// openCollection expects m.mu to be held.
func (m *VectorDBManager) openCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, m.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	m.collection = c
	return c, nil
}

func (m *VectorDBManager) current() *chromem.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collection
}

// Add stores units in the collection, embedding them concurrently.
func (m *VectorDBManager) Add(ctx context.Context, units []models.ContentUnit) error {
	if len(units) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(units))
	for _, u := range units {
		id := u.ID
		if id == "" {
			var err error
			id, err = helper.GenerateUUID()
			if err != nil {
				return fmt.Errorf("%w: %w", models.ErrStoreWrite, err)
			}
		}
		docs = append(docs, chromem.Document{
			ID:       id,
			Content:  u.Text,
			Metadata: u.Metadata,
		})
	}

	c := m.current()
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreWrite, err)
	}
	log.Debug().Int("documents", len(docs)).Str("collection", c.Name).Msg("Added documents")

	return m.recordSources(units)
}

// Search returns up to k units most similar to query, best match first.
// filter is matched for equality against unit metadata.
func (m *VectorDBManager) Search(ctx context.Context, query string, k int, filter map[string]string) ([]models.ContentUnit, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", models.ErrStoreQuery)
	}
	c := m.current()
	count := c.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	// chromem rejects nResults larger than the collection.
	k = min(k, count)

	results, err := c.Query(ctx, query, k, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreQuery, err)
	}

	units := make([]models.ContentUnit, 0, len(results))
	for _, r := range results {
		units = append(units, models.ContentUnit{
			ID:       r.ID,
			Text:     r.Content,
			Metadata: r.Metadata,
		})
	}
	return units, nil
}

// Sources lists the distinct source filenames added so far.
func (m *VectorDBManager) Sources(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sourceNames(), nil
}

func (m *VectorDBManager) Count() int {
	return m.current().Count()
}

// Reset drops every document of the collection together with its source
// manifest and leaves an empty collection in its place.
func (m *VectorDBManager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := m.collection.Name
	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	if _, err := m.openCollection(name); err != nil {
		return err
	}
	m.sources = make(map[string]struct{})
	if m.inMemory {
		return nil
	}
	if err := os.Remove(m.manifestPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove source manifest: %w", err)
	}
	log.Info().Str("collection", name).Msg("Collection reset")
	return nil
}

// export to file
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", m.filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := helper.CreateFolder(m.dbPath); err != nil {
		return err
	}
	err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	// The export file carries no source list, so it travels next to it.
	return writeManifest(m.exportManifestPath(), m.sourceNames())
}

// import from file
func (m *VectorDBManager) Import(ctx context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := m.collection.Name
	err := m.db.ImportFromFile(m.filePath, m.encryptionKey, name)
	if err != nil {
		return fmt.Errorf("failed to import database: %v", err)
	}
	// Import replaces the collection object, so look it up again with our embedding func.
	c := m.db.GetCollection(name, m.embed)
	if c == nil {
		return fmt.Errorf("collection %s missing after import", name)
	}
	m.collection = c

	names, err := readManifest(m.exportManifestPath())
	if err != nil {
		return err
	}
	m.sources = make(map[string]struct{}, len(names))
	for _, s := range names {
		m.sources[s] = struct{}{}
	}
	if m.inMemory {
		return nil
	}
	return writeManifest(m.manifestPath(), m.sourceNames())
}

func (m *VectorDBManager) manifestPath() string {
	return filepath.Join(m.dbPath, m.collection.Name+".sources.yaml")
}

func (m *VectorDBManager) exportManifestPath() string {
	return m.filePath + ".sources.yaml"
}

func (m *VectorDBManager) loadManifest() error {
	names, err := readManifest(m.manifestPath())
	if err != nil {
		return err
	}
	for _, s := range names {
		m.sources[s] = struct{}{}
	}
	return nil
}

// sourceNames expects m.mu to be held.
func (m *VectorDBManager) sourceNames() []string {
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *VectorDBManager) recordSources(units []models.ContentUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	added := false
	for _, u := range units {
		name := u.Metadata[models.MetaFilename]
		if name == "" {
			name = u.Metadata[models.MetaSource]
		}
		if name == "" {
			continue
		}
		if _, ok := m.sources[name]; !ok {
			m.sources[name] = struct{}{}
			added = true
		}
	}
	if !added || m.inMemory {
		return nil
	}
	if err := writeManifest(m.manifestPath(), m.sourceNames()); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreWrite, err)
	}
	return nil
}

// readManifest returns the sources listed in the manifest at path. A missing
// manifest lists none.
func readManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read source manifest: %w", err)
	}
	var manifest sourceManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse source manifest: %w", err)
	}
	return manifest.Sources, nil
}

func writeManifest(path string, names []string) error {
	data, err := yaml.Marshal(sourceManifest{Sources: names})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write source manifest: %w", err)
	}
	return nil
}
