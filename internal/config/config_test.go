package config

import (
	"errors"
	"os"
	"testing"

	"github.com/medkg/medkg/internal/platform/pipeline"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("GRAPH_BACKEND")
	os.Unsetenv("DATA_DIR")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GraphBackend != BackendNeo4j {
		t.Errorf("expected default backend neo4j, got %s", cfg.GraphBackend)
	}
	if cfg.GraphBatchSize != 1000 {
		t.Errorf("expected default batch size 1000, got %d", cfg.GraphBatchSize)
	}
	if cfg.BridgesDir() != "data/bridges" {
		t.Errorf("expected data/bridges, got %s", cfg.BridgesDir())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	os.Setenv("GRAPH_BACKEND", "postgres")
	os.Setenv("DATABASE_URL", "postgres://kg:kg@localhost:5432/kg")
	os.Setenv("ANCHOR_FILTERS_PATH", "/etc/medkg/filters.yaml")
	defer os.Unsetenv("GRAPH_BACKEND")
	defer os.Unsetenv("DATABASE_URL")
	defer os.Unsetenv("ANCHOR_FILTERS_PATH")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GraphBackend != BackendPostgres {
		t.Errorf("expected postgres backend, got %s", cfg.GraphBackend)
	}
	if cfg.AnchorFiltersPath != "/etc/medkg/filters.yaml" {
		t.Errorf("expected filters path from env, got %s", cfg.AnchorFiltersPath)
	}
	if err := cfg.ValidateGraph(); err != nil {
		t.Errorf("expected valid graph config: %v", err)
	}
}

func TestValidate_BadBackend(t *testing.T) {
	c := &Config{GraphBackend: "arangodb", GraphBatchSize: 10, LogLevel: "info", DataDir: "data"}
	if err := c.Validate(); !errors.Is(err, pipeline.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	c := &Config{GraphBackend: BackendMemory, GraphBatchSize: 10, LogLevel: "loud", DataDir: "data"}
	if err := c.Validate(); !errors.Is(err, pipeline.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestValidateGraph_Neo4jNeedsPassword(t *testing.T) {
	c := &Config{GraphBackend: BackendNeo4j, GraphURI: "neo4j://localhost:7687"}
	if err := c.ValidateGraph(); !errors.Is(err, pipeline.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
	c.GraphPassword = "secret"
	if err := c.ValidateGraph(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateGraph_PostgresNeedsURL(t *testing.T) {
	c := &Config{GraphBackend: BackendPostgres, DBMaxConns: 5, DBMinConns: 1}
	if err := c.ValidateGraph(); !errors.Is(err, pipeline.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}
	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
}
