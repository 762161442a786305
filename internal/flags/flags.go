package flags

// Package flags defines canonical CLI flag names shared across the CLI and engine.
// Keeping these as constants helps avoid drift between Cobra flag wiring and other
// code paths that reference flags (e.g. the run summary's reproduction hint).
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Run.Env, flags.FlagEnv, "uat", "...")
//	arg := "--" + flags.FlagEnv
const (
	// Targeting
	FlagEnv    = "env"
	FlagSuite  = "suite"
	FlagChecks = "checks"

	// Execution
	FlagParallel    = "parallel"
	FlagWorkers     = "workers"
	FlagFailOnError = "fail-on-error"

	// Output
	FlagFormat     = "format"
	FlagOut        = "out"
	FlagOutFormat  = "out-format"
	FlagNoConsole  = "no-console"
	FlagNoProgress = "no-progress"

	// Runtime
	FlagConfigDir = "config-dir"
	FlagQueryLog  = "query-log"
	FlagVerbose   = "verbose"
)
