package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

// Graph backends.
const (
	BackendNeo4j    = "neo4j"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds every setting the stages read. Logical keys such as
// graph.uri map to environment variables by upper-casing and replacing the
// dot (GRAPH_URI).
type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	DataDir  string `mapstructure:"DATA_DIR"`

	GraphBackend   string `mapstructure:"GRAPH_BACKEND"`
	GraphURI       string `mapstructure:"GRAPH_URI"`
	GraphUser      string `mapstructure:"GRAPH_USER"`
	GraphPassword  string `mapstructure:"GRAPH_PASSWORD"`
	GraphDatabase  string `mapstructure:"GRAPH_DATABASE"`
	GraphBatchSize int    `mapstructure:"GRAPH_BATCH_SIZE"`
	VerifyStrict   bool   `mapstructure:"VERIFY_STRICT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// Used only by the document parsers that run before the core stages.
	OpenAIAPIKey  string `mapstructure:"OPENAI_API_KEY"`
	UpstageAPIKey string `mapstructure:"UPSTAGE_API_KEY"`

	AnchorFiltersPath string `mapstructure:"ANCHOR_FILTERS_PATH"`

	StatusAddr string `mapstructure:"STATUS_ADDR"`
}

var envKeys = []string{
	"ENV", "LOG_LEVEL", "DATA_DIR",
	"GRAPH_BACKEND", "GRAPH_URI", "GRAPH_USER", "GRAPH_PASSWORD", "GRAPH_DATABASE",
	"GRAPH_BATCH_SIZE", "VERIFY_STRICT",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"OPENAI_API_KEY", "UPSTAGE_API_KEY",
	"ANCHOR_FILTERS_PATH", "STATUS_ADDR",
}

// Load reads the configuration from the environment and an optional .env
// file. It does not validate; call Validate (and ValidateGraph for graph
// stages).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("GRAPH_BACKEND", BackendNeo4j)
	v.SetDefault("GRAPH_URI", "neo4j://localhost:7687")
	v.SetDefault("GRAPH_USER", "neo4j")
	v.SetDefault("GRAPH_DATABASE", "neo4j")
	v.SetDefault("GRAPH_BATCH_SIZE", 1000)
	v.SetDefault("VERIFY_STRICT", false)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("STATUS_ADDR", ":8090")

	for _, k := range envKeys {
		v.BindEnv(k)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", pipeline.ErrConfig, err)
	}
	return cfg, nil
}

// IsDev reports whether the development console logger should be used.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// BridgesDir is where bridge JSONs are written and read.
func (c *Config) BridgesDir() string {
	return filepath.Join(c.DataDir, "bridges")
}

// AnchorDir is where the anchor dictionary YAMLs live.
func (c *Config) AnchorDir() string {
	return filepath.Join(c.DataDir, "anchor")
}

// Validate checks settings every stage depends on.
func (c *Config) Validate() error {
	switch c.GraphBackend {
	case BackendNeo4j, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("%w: GRAPH_BACKEND must be %q, %q or %q, got %q",
			pipeline.ErrConfig, BackendNeo4j, BackendPostgres, BackendMemory, c.GraphBackend)
	}
	if c.GraphBatchSize <= 0 {
		return fmt.Errorf("%w: GRAPH_BATCH_SIZE must be positive, got %d", pipeline.ErrConfig, c.GraphBatchSize)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: LOG_LEVEL: %v", pipeline.ErrConfig, err)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: DATA_DIR is required", pipeline.ErrConfig)
	}
	return nil
}

// ValidateGraph checks the connection settings of the selected graph
// backend. Only graph stages call it.
func (c *Config) ValidateGraph() error {
	switch c.GraphBackend {
	case BackendNeo4j:
		if c.GraphURI == "" {
			return fmt.Errorf("%w: GRAPH_URI is required for the neo4j backend", pipeline.ErrConfig)
		}
		if c.GraphPassword == "" {
			return fmt.Errorf("%w: GRAPH_PASSWORD is required for the neo4j backend", pipeline.ErrConfig)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres backend", pipeline.ErrConfig)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("%w: DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", pipeline.ErrConfig, c.DBMinConns, c.DBMaxConns)
		}
	}
	return nil
}
