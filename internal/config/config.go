package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"rag-backend/internal/models"
)

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Fill     FillConfig     `yaml:"fill"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"` // ollama or openai
	BaseURL  string        `yaml:"base_url"`
	Key      string        `yaml:"key" json:"-"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	// MaxRetries bounds retries of failed completion calls. Zero disables retrying.
	MaxRetries    int  `yaml:"max_retries"`
	StripThinking bool `yaml:"strip_thinking"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	FilterKey    string `yaml:"filter_key"`
	// Zero means unbounded.
	MaxContextChars int    `yaml:"max_context_chars"`
	MaxContextUnits int    `yaml:"max_context_units"`
	EncryptionKey   string `yaml:"encryption_key" json:"-"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"` // chromem or pgvector
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
	Compress   bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	DSN        string `yaml:"dsn" json:"-"`
	Password   string `yaml:"password" json:"-"`
	Driver     string `yaml:"driver"` // pgdriver or pq
	Debug      bool   `yaml:"debug"`
	VectorSize int    `yaml:"vector_size"`
}

type FillConfig struct {
	Workers int `yaml:"workers"`
	// CellTimeout bounds one cell including every completion retry. It
	// defaults to enough time for llm.max_retries full attempts.
	CellTimeout  time.Duration `yaml:"cell_timeout"`
	Sentinel     string        `yaml:"sentinel"`
	Delimiter    string        `yaml:"delimiter"`
	Rules        string        `yaml:"rules"`
	InPlace      bool          `yaml:"in_place"`
	OutputFormat string        `yaml:"output_format"` // csv or xlsx
}

type ServerConfig struct {
	Port           string `yaml:"port"`
	TempFolder     string `yaml:"temp_folder"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	// SessionLifetime bounds how long chat history is kept per client.
	SessionLifetime time.Duration `yaml:"session_lifetime"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 50
	defaultTopK         = 4
	defaultWorkers      = 4
	defaultVectorSize   = 768
	defaultMaxUpload    = 50 << 20

	defaultSessionLifetime = 24 * time.Hour

	// Upper bound of the wait before one completion retry.
	retryWaitAllowance = 30 * time.Second
)

// LoadConfig reads the YAML file at path, then applies .env and environment
// overrides and fills defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Server.TempFolder, "TEMP_FOLDER")
	setString(&c.Server.Port, "PORT")
	setString(&c.Store.Path, "CHROMA_PATH")
	setString(&c.Store.Collection, "COLLECTION_NAME")
	setString(&c.Store.Backend, "STORE_BACKEND")
	setString(&c.EmbedLLM.Model, "TEXT_EMBEDDING_MODEL")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.LLM.Key, "LLM_API_KEY")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("FILL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Fill.Workers = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
	}
	if c.LLM.BaseURL == "" && c.LLM.Provider == "ollama" {
		c.LLM.BaseURL = "http://localhost:11434"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "mistral"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 2 * time.Minute
	}
	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = c.LLM.Provider
	}
	if c.EmbedLLM.BaseURL == "" {
		c.EmbedLLM.BaseURL = c.LLM.BaseURL
	}
	if c.EmbedLLM.Key == "" {
		c.EmbedLLM.Key = c.LLM.Key
	}
	if c.EmbedLLM.Model == "" {
		c.EmbedLLM.Model = "nomic-embed-text"
	}

	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap <= 0 {
		c.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.FilterKey == "" {
		c.RAG.FilterKey = models.MetaFilename
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "chromem"
	}
	if c.Store.Path == "" {
		c.Store.Path = "./chroma"
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "local-rag"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "pgdriver"
	}
	if c.Database.VectorSize <= 0 {
		c.Database.VectorSize = defaultVectorSize
	}

	if c.Fill.Workers == 0 {
		c.Fill.Workers = defaultWorkers
	}
	if c.Fill.CellTimeout <= 0 {
		c.Fill.CellTimeout = c.LLM.CellBudget()
	}
	if c.Fill.Sentinel == "" {
		c.Fill.Sentinel = models.DefaultMissingSentinel
	}
	if c.Fill.Delimiter == "" {
		c.Fill.Delimiter = models.DefaultDelimiter
	}
	if c.Fill.Rules == "" {
		c.Fill.Rules = models.DefaultReconstructionRules
	}
	if c.Fill.OutputFormat == "" {
		c.Fill.OutputFormat = "csv"
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.TempFolder == "" {
		c.Server.TempFolder = "./_temp"
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = defaultMaxUpload
	}
	if c.Server.SessionLifetime <= 0 {
		c.Server.SessionLifetime = defaultSessionLifetime
	}

	if c.Log.Level == "" {
		c.Log.Level = "debug"
	}
}

// CellBudget is the longest a completion can take with every retry used.
func (c LLMConfig) CellBudget() time.Duration {
	retries := time.Duration(max(c.MaxRetries, 0))
	return c.Timeout*(retries+1) + retryWaitAllowance*retries
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	switch c.EmbedLLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.EmbedLLM.Provider)
	}
	switch c.Store.Backend {
	case "chromem":
	case "pgvector":
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for the pgvector backend")
		}
		if c.Database.Driver != "pgdriver" && c.Database.Driver != "pq" {
			return fmt.Errorf("unknown database driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.Fill.Workers < 1 {
		return fmt.Errorf("fill workers must be at least 1, got %d", c.Fill.Workers)
	}
	if c.Fill.Delimiter == "" {
		return errors.New("fill delimiter must not be empty")
	}
	if c.Fill.OutputFormat != "csv" && c.Fill.OutputFormat != "xlsx" {
		return fmt.Errorf("unknown fill output format %q", c.Fill.OutputFormat)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
