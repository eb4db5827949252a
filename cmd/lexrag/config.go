package main

import (
	"fmt"
	"time"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/articles"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/ingest"
	"github.com/florinhegedus/rag-system-romanian-laws/engine/retrieval"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/blob"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/config"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/embedding"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/logging"
)

// Config holds every setting of the lexrag binary.
type Config struct {
	Log       logging.Config   `yaml:"log"`
	Sources   domain.Catalogue `yaml:"sources"`
	Server    ServerConfig     `yaml:"server"`
	Qdrant    QdrantConfig     `yaml:"qdrant"`
	Database  articles.Config  `yaml:"database"`
	Neo4j     Neo4jConfig      `yaml:"neo4j"`
	NATS      NATSConfig       `yaml:"nats"`
	Blob      BlobConfig       `yaml:"blob"`
	Embedding EmbeddingConfig  `yaml:"embedding"`
	Chunking  ChunkingConfig   `yaml:"chunking"`
	Ingest    IngestConfig     `yaml:"ingest"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	QueryTimeout      time.Duration `yaml:"query_timeout"`
	DefaultTopK       int           `yaml:"default_top_k"`
	MaxTopK           int           `yaml:"max_top_k"`
	LookupConcurrency int           `yaml:"lookup_concurrency"`
}

type QdrantConfig struct {
	Backend    string `yaml:"backend"` // qdrant or memory
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

type Neo4jConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	User    string `yaml:"user"`
	Pass    string `yaml:"pass"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type BlobConfig struct {
	Backend string `yaml:"backend"` // fs or minio
	Dir     string `yaml:"dir"`
	Bucket  string `yaml:"bucket"`

	blob.MinIOConfig `yaml:",inline"`
}

type EmbeddingConfig struct {
	Backend string `yaml:"backend"` // ollama or hashing

	embedding.Config `yaml:",inline"`
}

type ChunkingConfig struct {
	OverlapRatio float64 `yaml:"overlap_ratio"`
}

type IngestConfig struct {
	Workers      int           `yaml:"workers"`
	LockDir      string        `yaml:"lock_dir"`
	Mode         string        `yaml:"mode"`
	PruneStale   bool          `yaml:"prune_stale"`
	Reset        bool          `yaml:"reset"`
	ArticleClass string        `yaml:"article_class"`
	Timeout      time.Duration `yaml:"timeout"`
}

// DefaultConfig runs against local services on their usual ports.
func DefaultConfig() Config {
	ro := retrieval.DefaultOptions()
	return Config{
		Log:     logging.Config{Level: "info", Format: "json"},
		Sources: domain.DefaultCatalogue(),
		Server: ServerConfig{
			Addr:              ":8080",
			QueryTimeout:      ro.Timeout,
			DefaultTopK:       5,
			MaxTopK:           ro.MaxTopK,
			LookupConcurrency: ro.LookupConcurrency,
		},
		Qdrant:    QdrantConfig{Backend: "qdrant", Addr: "localhost:6334", Collection: "legal_articles"},
		Database:  articles.Config{Driver: "sqlite", DSN: "lexrag.db"},
		Neo4j:     Neo4jConfig{URL: "neo4j://localhost:7687", User: "neo4j"},
		NATS:      NATSConfig{URL: "nats://localhost:4222"},
		Blob:      BlobConfig{Backend: "fs", Dir: "data", Bucket: ingest.DefaultBucket},
		Embedding: EmbeddingConfig{Backend: "ollama", Config: embedding.DefaultConfig()},
		Chunking:  ChunkingConfig{OverlapRatio: 0.25},
		Ingest:    IngestConfig{Workers: 4, Mode: "skip-existing", ArticleClass: "S_ART"},
	}
}

// LoadConfig layers defaults, the YAML file at path, .env and the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := config.LoadYAML(path, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	if err := config.LoadDotEnv(); err != nil {
		return cfg, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	if err := applyEnv(&cfg, config.NewEnv()); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, env *config.Env) error {
	env.String("LOG_LEVEL", &cfg.Log.Level)
	env.String("LOG_FORMAT", &cfg.Log.Format)
	env.String("LISTEN_ADDR", &cfg.Server.Addr)
	var port string
	env.String("PORT", &port)
	if port != "" {
		cfg.Server.Addr = ":" + port
	}
	env.Duration("QUERY_TIMEOUT", &cfg.Server.QueryTimeout)

	env.String("VECTOR_BACKEND", &cfg.Qdrant.Backend)
	env.String("QDRANT_ADDR", &cfg.Qdrant.Addr)
	env.String("QDRANT_COLLECTION", &cfg.Qdrant.Collection)

	env.String("DATABASE_DRIVER", &cfg.Database.Driver)
	env.String("DATABASE_URL", &cfg.Database.DSN)

	env.Bool("NEO4J_ENABLED", &cfg.Neo4j.Enabled)
	env.String("NEO4J_URL", &cfg.Neo4j.URL)
	env.String("NEO4J_USER", &cfg.Neo4j.User)
	env.String("NEO4J_PASS", &cfg.Neo4j.Pass)

	env.String("NATS_URL", &cfg.NATS.URL)

	env.String("BLOB_BACKEND", &cfg.Blob.Backend)
	env.String("BLOB_DIR", &cfg.Blob.Dir)
	env.String("MINIO_BUCKET", &cfg.Blob.Bucket)
	env.String("MINIO_ENDPOINT", &cfg.Blob.Endpoint)
	env.String("MINIO_ACCESS_KEY", &cfg.Blob.AccessKey)
	env.String("MINIO_SECRET_KEY", &cfg.Blob.SecretKey)
	env.Bool("MINIO_USE_SSL", &cfg.Blob.UseSSL)

	env.String("EMBEDDING_BACKEND", &cfg.Embedding.Backend)
	env.String("OLLAMA_URL", &cfg.Embedding.ServerURL)
	env.String("EMBEDDING_MODEL", &cfg.Embedding.Model)
	env.Int("EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)

	env.Float("OVERLAP_RATIO", &cfg.Chunking.OverlapRatio)
	env.Bool("RESET_EMBEDDINGS", &cfg.Ingest.Reset)
	env.Int("INGEST_WORKERS", &cfg.Ingest.Workers)
	if err := env.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return nil
}

// Validate rejects settings no command can run with.
func (c Config) Validate() error {
	if err := domain.ValidateCatalogue(c.Sources); err != nil {
		return err
	}
	bad := func(field string, v any) error {
		return fmt.Errorf("%w: %s %v", domain.ErrConfiguration, field, v)
	}
	switch c.Qdrant.Backend {
	case "qdrant", "memory":
	default:
		return bad("qdrant.backend", c.Qdrant.Backend)
	}
	switch c.Blob.Backend {
	case "fs", "minio":
	default:
		return bad("blob.backend", c.Blob.Backend)
	}
	switch c.Embedding.Backend {
	case "ollama", "hashing":
	default:
		return bad("embedding.backend", c.Embedding.Backend)
	}
	if c.Qdrant.Collection == "" {
		return bad("qdrant.collection", `""`)
	}
	if c.Embedding.Dimensions <= 0 {
		return bad("embedding.dimensions", c.Embedding.Dimensions)
	}
	if c.Server.DefaultTopK <= 0 || c.Server.DefaultTopK > c.Server.MaxTopK {
		return bad("server.default_top_k", c.Server.DefaultTopK)
	}
	return nil
}
