package contract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/ckscan/schema"
)

// Default values for configuration.
const (
	DefaultDiscoveryQuery      = "language:java"
	DefaultDiscoveryLimit      = 1000
	MaxDiscoveryLimit          = 1000 // GitHub search never returns more than 1000 results
	DefaultDiscoveryWorkers    = 4
	DefaultAnalyzeLimit        = 100
	DefaultCheckpointInterval  = 10
	DefaultJavaBin             = "java"
	DefaultAnalyzerJar         = "ck-0.7.1-SNAPSHOT-jar-with-dependencies.jar"
	DefaultAnalyzerTimeout     = 5 * time.Minute
	DefaultAnalyzerConcurrency = 0
	DefaultDataDir             = "data"
	DefaultReposDir            = "repos_cloned"
	DefaultOutputDir           = "ck_output"
	DefaultCacheTTL            = 24 * time.Hour
)

// ErrMissingToken is returned when a phase that talks to GitHub has no token.
var ErrMissingToken = errors.New("github token is required: set GITHUB_TOKEN, CKSCAN_GITHUB_TOKEN or github-token in .ckscan.yaml")

// Config holds the runtime configuration for a batch.
// This struct remains the "final, validated" config.
type Config struct {
	GitHubToken string // Please use env var as this is plaintext

	DiscoveryAPI     schema.DiscoveryAPI
	DiscoveryQuery   string
	DiscoveryLimit   int
	DiscoveryWorkers int

	AnalyzeLimit       int
	CheckpointInterval int
	Resume             bool
	SmokeTest          bool
	Quiet              bool // Suppress phase banners

	JavaBin             string
	AnalyzerJar         string
	AnalyzerTimeout     time.Duration
	AnalyzerConcurrency int

	DataDir   string
	ReposDir  string
	OutputDir string

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext
	CacheTTL       time.Duration

	AnalysisBackend   schema.DatabaseBackend
	AnalysisDBConnect string // Please use env var as this is plaintext

	OutputFile string
	UseColors  bool // Enable colored labels in table output
}

// ConfigRawInput holds the raw, unvalidated configuration from all sources.
type ConfigRawInput struct {
	GitHubToken string `mapstructure:"github-token"`

	DiscoveryAPI     string `mapstructure:"discovery-api"`
	DiscoveryQuery   string `mapstructure:"discovery-query"`
	DiscoveryLimit   int    `mapstructure:"discovery-limit"`
	DiscoveryWorkers int    `mapstructure:"discovery-workers"`

	AnalyzeLimit       int  `mapstructure:"analyze-limit"`
	CheckpointInterval int  `mapstructure:"checkpoint-interval"`
	Resume             bool `mapstructure:"resume"`
	SmokeTest          bool `mapstructure:"smoke-test"`
	Quiet              bool `mapstructure:"quiet"`

	JavaBin             string `mapstructure:"java-bin"`
	AnalyzerJar         string `mapstructure:"analyzer-jar"`
	AnalyzerTimeout     string `mapstructure:"analyzer-timeout"`
	AnalyzerConcurrency int    `mapstructure:"analyzer-concurrency"`

	DataDir   string `mapstructure:"data-dir"`
	ReposDir  string `mapstructure:"repos-dir"`
	OutputDir string `mapstructure:"output-dir"`

	CacheBackend      string `mapstructure:"cache-backend"`
	CacheDBConnect    string `mapstructure:"cache-db-connect"`
	CacheTTL          string `mapstructure:"cache-ttl"`
	AnalysisBackend   string `mapstructure:"analysis-backend"`
	AnalysisDBConnect string `mapstructure:"analysis-db-connect"`

	OutputFile string `mapstructure:"output-file"`
	Color      string `mapstructure:"color"`
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// RequireGitHubToken fails when no GitHub token has been configured.
func (c *Config) RequireGitHubToken() error {
	if strings.TrimSpace(c.GitHubToken) == "" {
		return ErrMissingToken
	}
	return nil
}

// Params returns the non-secret settings recorded alongside a batch run.
func (c *Config) Params() map[string]any {
	return map[string]any{
		"discovery_api":        string(c.DiscoveryAPI),
		"discovery_query":      c.DiscoveryQuery,
		"analyze_limit":        c.AnalyzeLimit,
		"checkpoint_interval":  c.CheckpointInterval,
		"analyzer_jar":         c.AnalyzerJar,
		"analyzer_timeout":     c.AnalyzerTimeout.String(),
		"analyzer_concurrency": c.AnalyzerConcurrency,
		"resume":               c.Resume,
	}
}

// ProcessAndValidate fills cfg from input, rejecting invalid values.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateAnalyzerInputs(cfg, input); err != nil {
		return err
	}
	return validateBackendConfigs(cfg, input)
}

// validateSimpleInputs processes and validates discovery, batch and path settings.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.GitHubToken = strings.TrimSpace(input.GitHubToken)
	cfg.DiscoveryQuery = input.DiscoveryQuery
	cfg.Resume = input.Resume
	cfg.SmokeTest = input.SmokeTest
	cfg.Quiet = input.Quiet
	cfg.OutputFile = input.OutputFile

	if cfg.DiscoveryQuery == "" {
		cfg.DiscoveryQuery = DefaultDiscoveryQuery
	}

	cfg.DiscoveryAPI = schema.DiscoveryAPI(strings.ToLower(input.DiscoveryAPI))
	if cfg.DiscoveryAPI == "" {
		cfg.DiscoveryAPI = schema.RESTDiscovery
	}
	if _, ok := schema.ValidDiscoveryAPIs[cfg.DiscoveryAPI]; !ok {
		return fmt.Errorf("invalid discovery api '%s'. must be rest or graphql", input.DiscoveryAPI)
	}

	if input.DiscoveryLimit <= 0 || input.DiscoveryLimit > MaxDiscoveryLimit {
		return fmt.Errorf("discovery limit must be between 1 and %d", MaxDiscoveryLimit)
	}
	cfg.DiscoveryLimit = input.DiscoveryLimit

	if input.DiscoveryWorkers <= 0 {
		return fmt.Errorf("discovery workers must be greater than 0")
	}
	cfg.DiscoveryWorkers = input.DiscoveryWorkers

	if input.AnalyzeLimit <= 0 {
		return fmt.Errorf("analyze limit must be greater than 0")
	}
	cfg.AnalyzeLimit = input.AnalyzeLimit

	if input.CheckpointInterval <= 0 {
		return fmt.Errorf("checkpoint interval must be greater than 0")
	}
	cfg.CheckpointInterval = input.CheckpointInterval

	for name, dir := range map[string]string{"data-dir": input.DataDir, "repos-dir": input.ReposDir, "output-dir": input.OutputDir} {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
	}
	cfg.DataDir = input.DataDir
	cfg.ReposDir = input.ReposDir
	cfg.OutputDir = input.OutputDir

	useColors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid color value: %w", err)
	}
	cfg.UseColors = useColors

	return nil
}

// validateAnalyzerInputs processes the analyzer subprocess settings.
func validateAnalyzerInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.JavaBin = input.JavaBin
	if cfg.JavaBin == "" {
		cfg.JavaBin = DefaultJavaBin
	}
	if input.AnalyzerJar == "" {
		return fmt.Errorf("analyzer jar path cannot be empty")
	}
	cfg.AnalyzerJar = input.AnalyzerJar

	timeout, err := time.ParseDuration(input.AnalyzerTimeout)
	if err != nil {
		return fmt.Errorf("invalid analyzer timeout %q: %w", input.AnalyzerTimeout, err)
	}
	if timeout <= 0 {
		return fmt.Errorf("analyzer timeout must be positive")
	}
	cfg.AnalyzerTimeout = timeout

	if input.AnalyzerConcurrency < 0 {
		return fmt.Errorf("analyzer concurrency cannot be negative")
	}
	cfg.AnalyzerConcurrency = input.AnalyzerConcurrency

	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// ParseBackend converts a raw backend name, treating the empty string as NoneBackend.
func ParseBackend(raw string) (schema.DatabaseBackend, error) {
	if raw == "" {
		return schema.NoneBackend, nil
	}
	backend := schema.DatabaseBackend(strings.ToLower(raw))
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", fmt.Errorf("invalid backend '%s'. must be sqlite, mysql, postgresql, none", raw)
	}
	return backend, nil
}

// validateBackendConfigs validates cache and run history backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	cfg.CacheTTL = DefaultCacheTTL
	if input.CacheTTL != "" {
		ttl, err := time.ParseDuration(input.CacheTTL)
		if err != nil {
			return fmt.Errorf("invalid cache ttl %q: %w", input.CacheTTL, err)
		}
		cfg.CacheTTL = ttl
	}

	// --- Run History Backend Validation ---
	backend, err := ParseBackend(input.AnalysisBackend)
	if err != nil {
		return fmt.Errorf("invalid analysis backend: %w", err)
	}
	cfg.AnalysisBackend = backend
	cfg.AnalysisDBConnect = input.AnalysisDBConnect
	if err := ValidateDatabaseConnectionString(cfg.AnalysisBackend, cfg.AnalysisDBConnect); err != nil {
		return err
	}

	// Cache and run history must not share one SQLite file
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.AnalysisBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		runsDBPath := cfg.AnalysisDBConnect
		if runsDBPath == "" {
			runsDBPath = GetRunsDBFilePath()
		}
		if cacheDBPath == runsDBPath {
			return fmt.Errorf("cache and run history must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}

	return nil
}
