package cli

import (
	"fmt"
	"os"

	"datamedic/internal/flags"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "datamedic",
	Short: "Run data-quality checks against a healthcare data warehouse",
	Long: `DataMedic runs data-quality checks against a healthcare data warehouse
and reports aggregated pass/fail results per check.

DataMedic is read-only: it queries the warehouse, finds data-quality
problems, and never mutates clinical data.

Examples:
	# Show available commands and global flags
	datamedic --help

	# Run every check against the uat environment
	datamedic run --env uat

	# List checks and suites
	datamedic checks list

	# Print build info
	datamedic version

Output:
	By default, commands write human-readable output to stdout.
	Structured results can be written to a file via run's --out flag.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose output (full error details and per-item completion notes)")
	rootCmd.PersistentFlags().StringVar(&cfg.Runtime.ConfigDir, flags.FlagConfigDir, cfg.Runtime.ConfigDir, "Directory holding environment files, checks.yml and mappings")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
