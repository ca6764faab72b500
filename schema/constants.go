package schema

// Custom string types for type safety.
type (
	// DatabaseBackend represents the database backend for caching and run history.
	DatabaseBackend string

	// DiscoveryAPI represents which GitHub API flavor is used for discovery.
	DiscoveryAPI string

	// Stage represents how far a repository got through the analysis pipeline.
	Stage string

	// InvocationState is the terminal state of an analyzer subprocess.
	InvocationState string
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All discovery APIs supported.
const (
	RESTDiscovery    DiscoveryAPI = "rest" // default
	GraphQLDiscovery DiscoveryAPI = "graphql"
)

// Pipeline stages of a single repository analysis.
const (
	StageAcquiring  Stage = "acquiring"
	StageInvoking   Stage = "invoking"
	StageParsing    Stage = "parsing"
	StageCleaningUp Stage = "cleaning_up"
	StageDone       Stage = "done"
)

// Terminal states of an analyzer invocation.
const (
	InvocationCompleted    InvocationState = "completed"
	InvocationTimedOut     InvocationState = "timed_out"
	InvocationLaunchFailed InvocationState = "launch_failed"
)

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidDiscoveryAPIs lists all valid discovery APIs.
var ValidDiscoveryAPIs = map[DiscoveryAPI]struct{}{
	RESTDiscovery:    {},
	GraphQLDiscovery: {},
}

// CheckpointHeader is the column layout of progress and final checkpoint files.
var CheckpointHeader = []string{
	"full_name", "stars", "age_years", "releases_count", "size",
	"cbo_mean", "cbo_median", "dit_mean", "dit_median", "lcom_mean", "lcom_median",
	"loc", "classes_count",
}

// ManifestHeader is the column layout of the repository manifest CSV.
var ManifestHeader = []string{
	"full_name", "name", "owner", "description", "stars", "forks", "size", "language",
	"created_at", "updated_at", "age_years", "releases_count", "has_issues", "has_wiki",
	"default_branch", "clone_url",
}
