package constants

// Directory layout under the GLEANER home directory (~/.gleaner by default,
// overridable via GLEANER_HOME).
const (
	// GleanerHome is the name of the GLEANER home directory.
	GleanerHome = ".gleaner"

	// HomeEnvVar overrides the GLEANER home directory location.
	HomeEnvVar = "GLEANER_HOME"

	// LogsDir holds rotating CLI log files.
	LogsDir = "logs"

	// RunsDir holds the append-only run history.
	RunsDir = "runs"

	// WorkspacesDir holds workspace state files.
	WorkspacesDir = "workspaces"

	// DatasetDir is the main line git repository of published snapshots.
	DatasetDir = "dataset"

	// WorktreesDir holds ephemeral per-run git worktrees.
	WorktreesDir = "worktrees"
)

// File names.
const (
	// CLILogFileName is the global CLI log file under LogsDir.
	CLILogFileName = "gleaner.log"

	// RunHistoryFileName is the append-only log of run records under RunsDir.
	RunHistoryFileName = "history.jsonl"

	// LeaseFileName is the local single-active-run lease file.
	LeaseFileName = "run.lock"

	// GlobalConfigName is the global configuration file in the home directory.
	GlobalConfigName = "config.yaml"

	// ProjectConfigDir is the per-project configuration directory.
	ProjectConfigDir = ".gleaner"

	// DatasetFileName is the aggregated dataset file committed inside a
	// workspace and merged to the main line.
	DatasetFileName = "dataset.json"

	// ArtifactsDirName holds raw artifact files inside a workspace worktree.
	ArtifactsDirName = "artifacts"
)
