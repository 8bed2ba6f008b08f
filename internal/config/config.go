package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "HARVESTER_CONFIG"
	chunkIDEnv    = "HARVESTER_CHUNK_ID"
	chunkTotalEnv = "HARVESTER_CHUNK_TOTAL"
	workersEnv    = "HARVESTER_WORKERS"
	databaseEnv   = "DATABASE_DSN"
)

// OutputMode selects how harvest results are persisted and how merge reads them.
type OutputMode string

const (
	// ModePerEntity writes one artifact per subject identifier; the artifact
	// doubles as the resumption marker.
	ModePerEntity OutputMode = "per-entity"
	// ModeChunked writes one grouped mapping per chunk invocation, the legacy
	// layout; resumption relies on the progress journal instead.
	ModeChunked OutputMode = "chunked"
)

// Config holds every setting the harvester commands share.
type Config struct {
	API   APIConfig   `yaml:"api"`
	Retry RetryConfig `yaml:"retry"`
	Chunk ChunkConfig `yaml:"chunk"`
	// Workers sizes the fetch pool. WorkersExplicit records whether the value
	// came from the operator (file, env, or flag) rather than the default;
	// retry-mode runs fall back to a single worker when it did not.
	Workers         int            `yaml:"workers"`
	WorkersExplicit bool           `yaml:"-"`
	Crawl           CrawlConfig    `yaml:"crawl"`
	Paths           PathsConfig    `yaml:"paths"`
	Output          OutputConfig   `yaml:"output"`
	Database        DatabaseConfig `yaml:"database"`
	Logging         LoggingConfig  `yaml:"logging"`
}

// APIConfig describes the scholars directory endpoints.
type APIConfig struct {
	BaseURL    string `yaml:"baseUrl"`
	TimeoutSec int    `yaml:"timeoutSec"`
	PerPage    int    `yaml:"perPage"`
}

// Timeout resolves the per-request network timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

// RetryConfig bounds the fetcher's transient-failure retries.
type RetryConfig struct {
	MaxAttempts int `yaml:"maxAttempts"`
	BackoffMs   int `yaml:"backoffMs"`
}

// Backoff resolves the delay slept between attempts.
func (r RetryConfig) Backoff() time.Duration {
	return time.Duration(r.BackoffMs) * time.Millisecond
}

// ChunkConfig assigns this invocation its slice of the worklist. Total must stay
// fixed across a whole distributed run: chunk boundaries shift when it changes.
type ChunkConfig struct {
	Index int `yaml:"index"`
	Total int `yaml:"total"`
}

// CrawlConfig drives the directory-listing crawl that builds the worklist.
type CrawlConfig struct {
	PageSize   int `yaml:"pageSize"`
	TotalPages int `yaml:"totalPages"`
	DelayMs    int `yaml:"delayMs"`
}

// Delay resolves the politeness pause between listing pages.
func (c CrawlConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// PathsConfig locates every file the pipeline reads or writes.
type PathsConfig struct {
	Worklist     string `yaml:"worklist"`
	StoreDir     string `yaml:"storeDir"`
	MergedOutput string `yaml:"mergedOutput"`
	LogDir       string `yaml:"logDir"`
}

// OutputConfig selects the artifact layout.
type OutputConfig struct {
	Mode OutputMode `yaml:"mode"`
}

// DatabaseConfig describes the optional Postgres sink used by the load stage.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig controls console log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Chunk.Total < 1 {
		return fmt.Errorf("chunk.total must be at least 1, got %d", c.Chunk.Total)
	}
	if c.Chunk.Index < 0 || c.Chunk.Index >= c.Chunk.Total {
		return fmt.Errorf("chunk.index %d out of range for total %d", c.Chunk.Index, c.Chunk.Total)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.maxAttempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	switch c.Output.Mode {
	case ModePerEntity, ModeChunked:
	default:
		return fmt.Errorf("output.mode must be %q or %q, got %q", ModePerEntity, ModeChunked, c.Output.Mode)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(chunkIDEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chunk.Index = n
		}
	}

	if v := os.Getenv(chunkTotalEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chunk.Total = n
		}
	}

	if v := os.Getenv(workersEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
			c.WorkersExplicit = true
		}
	}

	if v := os.Getenv(databaseEnv); v != "" {
		c.Database.DSN = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.API.BaseURL != "" {
		base.API.BaseURL = override.API.BaseURL
	}
	if override.API.TimeoutSec > 0 {
		base.API.TimeoutSec = override.API.TimeoutSec
	}
	if override.API.PerPage > 0 {
		base.API.PerPage = override.API.PerPage
	}

	if override.Retry.MaxAttempts > 0 {
		base.Retry.MaxAttempts = override.Retry.MaxAttempts
	}
	if override.Retry.BackoffMs > 0 {
		base.Retry.BackoffMs = override.Retry.BackoffMs
	}

	if override.Chunk.Total > 0 {
		base.Chunk = override.Chunk
	}

	if override.Workers > 0 {
		base.Workers = override.Workers
		base.WorkersExplicit = true
	}

	if override.Crawl.PageSize > 0 {
		base.Crawl.PageSize = override.Crawl.PageSize
	}
	if override.Crawl.TotalPages > 0 {
		base.Crawl.TotalPages = override.Crawl.TotalPages
	}
	if override.Crawl.DelayMs > 0 {
		base.Crawl.DelayMs = override.Crawl.DelayMs
	}

	if override.Paths.Worklist != "" {
		base.Paths.Worklist = override.Paths.Worklist
	}
	if override.Paths.StoreDir != "" {
		base.Paths.StoreDir = override.Paths.StoreDir
	}
	if override.Paths.MergedOutput != "" {
		base.Paths.MergedOutput = override.Paths.MergedOutput
	}
	if override.Paths.LogDir != "" {
		base.Paths.LogDir = override.Paths.LogDir
	}

	if override.Output.Mode != "" {
		base.Output.Mode = override.Output.Mode
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:    "https://scholars.uab.edu/api",
			TimeoutSec: 20,
			PerPage:    100,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BackoffMs:   2000,
		},
		Chunk:   ChunkConfig{Index: 0, Total: 1},
		Workers: 4,
		Crawl: CrawlConfig{
			PageSize:   100,
			TotalPages: 65,
			DelayMs:    500,
		},
		Paths: PathsConfig{
			Worklist:     "data/scholars_profiles.jsonl",
			StoreDir:     "data/committees",
			MergedOutput: "data/grad_committees_grouped.json",
			LogDir:       "logs",
		},
		Output:   OutputConfig{Mode: ModePerEntity},
		Database: DatabaseConfig{DSN: ""},
		Logging:  LoggingConfig{Level: "info"},
	}
}
