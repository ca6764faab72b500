package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/huangsam/ckscan/internal/contract"
	"github.com/huangsam/ckscan/internal/iocache"
	"github.com/huangsam/ckscan/schema"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations. Execute replaces it with
// one that is cancelled on SIGINT or SIGTERM.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// cacheManager is the global persistence manager instance.
var cacheManager contract.CacheManager

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "ckscan [collect|analyze]",
	Short: "Measure CK design metrics across popular GitHub Java repositories.",
	Long: `ckscan discovers popular Java repositories on GitHub, shallow-clones each one,
runs the CK static analyzer against it and aggregates CBO, DIT and LCOM per repository.

Phases:
  collect  - Discover repositories and write the manifest to the data directory
  analyze  - Analyze the manifest in a checkpointed batch

Running ckscan without a phase runs collect and then analyze.

Configuration is read from .ckscan.yaml (current or home directory), from
CKSCAN_* environment variables and from a .env file. The GitHub token comes
from CKSCAN_GITHUB_TOKEN or GITHUB_TOKEN.`,
	Version:            version,
	Args:               cobra.MaximumNArgs(1),
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	RunE:               runPhases,
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A missing .env file is fine
	_ = godotenv.Load()

	// Check if a specific config file is provided
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".ckscan") // Name of config file (without extension)
		viper.SetConfigType("yaml")    // We'll use YAML format
		viper.AddConfigPath(".")       // Look in the current directory
		viper.AddConfigPath("$HOME")   // Look in the home directory
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("CKSCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match
	if err := viper.BindEnv("github-token", "CKSCAN_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		contract.LogFatal("Error binding github token", err)
	}

	// Set defaults in Viper
	viper.SetDefault("discovery-api", schema.RESTDiscovery)
	viper.SetDefault("discovery-query", contract.DefaultDiscoveryQuery)
	viper.SetDefault("discovery-limit", contract.DefaultDiscoveryLimit)
	viper.SetDefault("discovery-workers", contract.DefaultDiscoveryWorkers)
	viper.SetDefault("analyze-limit", contract.DefaultAnalyzeLimit)
	viper.SetDefault("checkpoint-interval", contract.DefaultCheckpointInterval)
	viper.SetDefault("resume", false)
	viper.SetDefault("smoke-test", true)
	viper.SetDefault("quiet", false)
	viper.SetDefault("java-bin", contract.DefaultJavaBin)
	viper.SetDefault("analyzer-jar", contract.DefaultAnalyzerJar)
	viper.SetDefault("analyzer-timeout", contract.DefaultAnalyzerTimeout.String())
	viper.SetDefault("analyzer-concurrency", contract.DefaultAnalyzerConcurrency)
	viper.SetDefault("data-dir", contract.DefaultDataDir)
	viper.SetDefault("repos-dir", contract.DefaultReposDir)
	viper.SetDefault("output-dir", contract.DefaultOutputDir)
	viper.SetDefault("cache-backend", schema.SQLiteBackend)
	viper.SetDefault("cache-db-connect", "")
	viper.SetDefault("cache-ttl", contract.DefaultCacheTTL.String())
	viper.SetDefault("analysis-backend", "")
	viper.SetDefault("analysis-db-connect", "")
	viper.SetDefault("color", "yes")
}

// loadConfigFile reads the config file if present. Defaults, env and flags
// are merged by viper regardless.
func loadConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// sharedSetup unmarshals config and runs validation.
func sharedSetup() error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	// 4. Initialize persistence layer with validated config
	if err := iocache.InitStores(cfg.CacheBackend, cfg.CacheDBConnect, runBackend(cfg.AnalysisBackend), cfg.AnalysisDBConnect); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}

	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide Cobra's PreRunE.
func sharedSetupWrapper(_ *cobra.Command, _ []string) error {
	return sharedSetup()
}

// runBackend leaves the run store unset when tracking is disabled.
func runBackend(backend schema.DatabaseBackend) schema.DatabaseBackend {
	if backend == schema.NoneBackend {
		return ""
	}
	return backend
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx
	return rootCmd.ExecuteContext(ctx)
}

// SetCacheManager sets the global cache manager.
func SetCacheManager(mgr contract.CacheManager) {
	cacheManager = mgr
}
