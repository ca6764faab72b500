package contract

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/ckscan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validInput returns a raw input equivalent to the command-line defaults.
func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		DiscoveryAPI:        "rest",
		DiscoveryQuery:      DefaultDiscoveryQuery,
		DiscoveryLimit:      DefaultDiscoveryLimit,
		DiscoveryWorkers:    DefaultDiscoveryWorkers,
		AnalyzeLimit:        DefaultAnalyzeLimit,
		CheckpointInterval:  DefaultCheckpointInterval,
		SmokeTest:           true,
		JavaBin:             DefaultJavaBin,
		AnalyzerJar:         DefaultAnalyzerJar,
		AnalyzerTimeout:     "5m",
		AnalyzerConcurrency: DefaultAnalyzerConcurrency,
		DataDir:             DefaultDataDir,
		ReposDir:            DefaultReposDir,
		OutputDir:           DefaultOutputDir,
		CacheBackend:        string(schema.SQLiteBackend),
		CacheTTL:            "24h",
		Color:               "yes",
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError string
	}{
		{name: "valid defaults"},
		{
			name:   "graphql discovery",
			mutate: func(in *ConfigRawInput) { in.DiscoveryAPI = "GraphQL" },
		},
		{
			name:        "invalid discovery api",
			mutate:      func(in *ConfigRawInput) { in.DiscoveryAPI = "soap" },
			expectError: "invalid discovery api",
		},
		{
			name:        "discovery limit above search cap",
			mutate:      func(in *ConfigRawInput) { in.DiscoveryLimit = 1001 },
			expectError: "discovery limit",
		},
		{
			name:        "zero analyze limit",
			mutate:      func(in *ConfigRawInput) { in.AnalyzeLimit = 0 },
			expectError: "analyze limit",
		},
		{
			name:        "zero checkpoint interval",
			mutate:      func(in *ConfigRawInput) { in.CheckpointInterval = 0 },
			expectError: "checkpoint interval",
		},
		{
			name:        "bad timeout",
			mutate:      func(in *ConfigRawInput) { in.AnalyzerTimeout = "five minutes" },
			expectError: "invalid analyzer timeout",
		},
		{
			name:        "negative timeout",
			mutate:      func(in *ConfigRawInput) { in.AnalyzerTimeout = "-1s" },
			expectError: "must be positive",
		},
		{
			name:        "empty jar",
			mutate:      func(in *ConfigRawInput) { in.AnalyzerJar = "" },
			expectError: "analyzer jar",
		},
		{
			name:        "empty repos dir",
			mutate:      func(in *ConfigRawInput) { in.ReposDir = " " },
			expectError: "repos-dir cannot be empty",
		},
		{
			name:        "invalid color",
			mutate:      func(in *ConfigRawInput) { in.Color = "sometimes" },
			expectError: "invalid color value",
		},
		{
			name:        "invalid cache backend",
			mutate:      func(in *ConfigRawInput) { in.CacheBackend = "redis" },
			expectError: "invalid cache backend",
		},
		{
			name: "mysql cache without connection string",
			mutate: func(in *ConfigRawInput) {
				in.CacheBackend = "mysql"
			},
			expectError: "connection string is required",
		},
		{
			name: "postgres run history",
			mutate: func(in *ConfigRawInput) {
				in.AnalysisBackend = "postgresql"
				in.AnalysisDBConnect = "host=localhost dbname=ckscan user=postgres"
			},
		},
		{
			name: "shared sqlite file",
			mutate: func(in *ConfigRawInput) {
				in.CacheDBConnect = "/tmp/shared.db"
				in.AnalysisBackend = "sqlite"
				in.AnalysisDBConnect = "/tmp/shared.db"
			},
			expectError: "different SQLite database files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			if tt.mutate != nil {
				tt.mutate(input)
			}
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestProcessAndValidate_Values(t *testing.T) {
	input := validInput()
	input.AnalyzerTimeout = "90s"
	input.AnalysisBackend = ""
	input.GitHubToken = "  ghp_token \n"
	input.DiscoveryQuery = ""

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))

	assert.Equal(t, 90*time.Second, cfg.AnalyzerTimeout)
	assert.Equal(t, schema.NoneBackend, cfg.AnalysisBackend)
	assert.Equal(t, schema.RESTDiscovery, cfg.DiscoveryAPI)
	assert.Equal(t, "ghp_token", cfg.GitHubToken)
	assert.Equal(t, DefaultDiscoveryQuery, cfg.DiscoveryQuery)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.True(t, cfg.UseColors)
	assert.NoError(t, cfg.RequireGitHubToken())
}

func TestRequireGitHubToken(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.RequireGitHubToken(), ErrMissingToken)
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	assert.NoError(t, ValidateDatabaseConnectionString(schema.SQLiteBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.NoneBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "root:pw@tcp(localhost:3306)/ckscan"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "root:pw@localhost/ckscan"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost"))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost dbname=ckscan"))
}

func TestParseBackend(t *testing.T) {
	backend, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, schema.NoneBackend, backend)

	backend, err = ParseBackend("SQLite")
	require.NoError(t, err)
	assert.Equal(t, schema.SQLiteBackend, backend)

	_, err = ParseBackend("mongo")
	assert.Error(t, err)
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{DataDir: filepath.Join("a", "b"), AnalyzeLimit: 5}
	clone := cfg.Clone()
	clone.AnalyzeLimit = 10
	assert.Equal(t, 5, cfg.AnalyzeLimit)
	assert.Equal(t, cfg.DataDir, clone.DataDir)
}

func TestConfigParams(t *testing.T) {
	cfg := &Config{GitHubToken: "secret", AnalyzerTimeout: time.Minute, AnalyzeLimit: 3}
	params := cfg.Params()
	assert.Equal(t, "1m0s", params["analyzer_timeout"])
	assert.Equal(t, 3, params["analyze_limit"])
	for _, v := range params {
		assert.NotEqual(t, "secret", v)
	}
}
