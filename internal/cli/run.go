package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datamedic/internal/checks"
	"datamedic/internal/checks/builtin"
	"datamedic/internal/config"
	"datamedic/internal/engine"
	"datamedic/internal/flags"
	"datamedic/internal/output"
	"datamedic/internal/warehouse"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var cfg = config.New()

const runHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
	DataMedic authenticates to the warehouse with a password taken from the
	process environment. Passwords are never read from config files.

	Sources (in order):
	1) DATAMEDIC_WAREHOUSE_PASSWORD environment variable
	2) PGPASSWORD environment variable

  Examples:
    # macOS/Linux
    export DATAMEDIC_WAREHOUSE_PASSWORD="<your_password>"
    datamedic run --env uat

    # Windows PowerShell
    $env:DATAMEDIC_WAREHOUSE_PASSWORD = "<your_password>"
    datamedic run --env uat

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run data-quality checks against a warehouse environment",
	Long: `Run data-quality checks against a warehouse environment and report
aggregated results.

By default every registered check runs in parallel on a worker pool sharing
one warehouse connection. Large checks are split into chunks that execute
independently; their results are recombined into a single row per check, so
the report reads the same however the work was scheduled.

Selection:
	--suite runs one named suite from checks.yml; --checks runs an explicit
	list of check names. The two are mutually exclusive. With neither, all
	registered checks run.

Output:
	Console output is controlled by --format (default: table).
	Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON array or CSV file
	- --no-console: suppress the console sink (use with --out)
	- --no-progress: suppress the live worker-progress display

Exit codes:
	0 = all checks passed
	1 = data-quality failures detected
	2 = partial failure (some checks errored or the run was interrupted)
	3 = fatal error (checks did not run)

Examples:
  # Run everything against uat
  export DATAMEDIC_WAREHOUSE_PASSWORD="<your_password>"
  datamedic run --env uat

  # One suite, sequentially, with a JSON report
  datamedic run --env dev --suite core_integrity --parallel=false --out report.json

  # Two specific checks on a bigger pool
  datamedic run --checks referential_integrity,concept_mapping --workers 8
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(engine.ExitFatal)
		}

		env, err := config.LoadEnvironment(cfg.Runtime.ConfigDir, cfg.Targeting.Env)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(engine.ExitFatal)
		}

		cf, err := config.LoadCatalogFile(cfg.Runtime.ConfigDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(engine.ExitFatal)
		}

		catalog, err := builtin.BuildCatalog(cfg.Runtime.ConfigDir, cf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(engine.ExitFatal)
		}

		os.Exit(runChecks(env, catalog))
	},
}

func runChecks(env *config.Environment, catalog *checks.Catalog) int {
	suites, requested, err := selectSuites(catalog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sessionOpts []warehouse.Option
	if cfg.Runtime.QueryLogDir != "" {
		logger, cleanup, err := warehouse.NewQueryLog(cfg.Runtime.QueryLogDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return engine.ExitFatal
		}
		defer cleanup()
		sessionOpts = append(sessionOpts, warehouse.WithQueryLog(logger))
	}

	session, err := connect(ctx, env, sessionOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}
	defer session.Close()

	manager, err := buildSinks()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return engine.ExitFatal
	}

	results, runErr := execute(ctx, session, env, catalog, suites)

	engine.SortByRequestOrder(results, requested)
	if err := manager.WriteAll(results); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if err := manager.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "\nRun interrupted: %v (%d of %d checks completed)\n",
			runErr, len(results), len(requested))
	}

	summary := engine.Summarize(results)
	hasErrors := summary.Errors > 0 || runErr != nil
	return engine.ExitCodeForRun(false, hasErrors, summary.Failed > 0, cfg.Execution.FailOnError)
}

// execute dispatches to the worker pool or the sequential runner, wiring the
// live progress display around the parallel path.
func execute(ctx context.Context, session *warehouse.Session, env *config.Environment, catalog *checks.Catalog, suites []engine.SuiteChecks) ([]checks.Result, error) {
	if !cfg.Execution.Parallel {
		return engine.RunSequential(ctx, session, env, catalog, suites)
	}

	plan, err := engine.BuildPlan(catalog, suites)
	if err != nil {
		return nil, err
	}

	workers := cfg.Execution.Workers
	if workers <= 0 {
		workers = env.Workers()
	}
	runner, err := engine.NewRunner(session, env, workers)
	if err != nil {
		return nil, err
	}

	if !cfg.Output.NoProgress && !cfg.Output.NoConsole {
		renderer := output.NewProgressRenderer(runner, os.Stderr)
		renderer.Start(ctx)
		defer renderer.Stop()
	}

	return runner.Run(ctx, plan)
}

// selectSuites resolves the configured targeting into suite groupings plus
// the flat check-name order results are reported in.
func selectSuites(catalog *checks.Catalog) ([]engine.SuiteChecks, []string, error) {
	if cfg.Targeting.Suite != "" {
		chks, err := catalog.Suite(cfg.Targeting.Suite)
		if err != nil {
			return nil, nil, err
		}
		return []engine.SuiteChecks{{Name: cfg.Targeting.Suite, Checks: chks}}, checkNames(chks), nil
	}

	if len(cfg.Targeting.Checks) > 0 {
		chks, err := catalog.Resolve(cfg.Targeting.Checks)
		if err != nil {
			return nil, nil, err
		}
		return []engine.SuiteChecks{{Name: "selected", Checks: chks}}, cfg.Targeting.Checks, nil
	}

	// All checks, grouped by suite where checks.yml defines suites. Checks
	// outside every suite still run, under a trailing "other" group.
	suiteNames := catalog.SuiteNames()
	if len(suiteNames) == 0 {
		all := catalog.List()
		return []engine.SuiteChecks{{Name: "all", Checks: all}}, checkNames(all), nil
	}

	var suites []engine.SuiteChecks
	var requested []string
	assigned := make(map[string]bool)
	for _, name := range suiteNames {
		chks, err := catalog.Suite(name)
		if err != nil {
			return nil, nil, err
		}
		var members []checks.Check
		for _, chk := range chks {
			if assigned[chk.Name()] {
				continue
			}
			assigned[chk.Name()] = true
			members = append(members, chk)
			requested = append(requested, chk.Name())
		}
		if len(members) > 0 {
			suites = append(suites, engine.SuiteChecks{Name: name, Checks: members})
		}
	}

	var other []checks.Check
	for _, chk := range catalog.List() {
		if !assigned[chk.Name()] {
			other = append(other, chk)
			requested = append(requested, chk.Name())
		}
	}
	if len(other) > 0 {
		suites = append(suites, engine.SuiteChecks{Name: "other", Checks: other})
	}
	return suites, requested, nil
}

func connect(ctx context.Context, env *config.Environment, opts []warehouse.Option) (*warehouse.Session, error) {
	var sp *spinner.Spinner
	if !cfg.Output.NoConsole {
		sp = spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
		sp.Suffix = fmt.Sprintf(" connecting to %s warehouse...", env.Name)
		sp.Start()
		defer sp.Stop()
	}

	return warehouse.Connect(ctx, warehouse.ConnectParams{
		Host:     env.Connection.Host,
		Port:     env.Connection.Port,
		User:     env.Connection.User,
		Database: env.Databases.Source,
		SSLMode:  env.Connection.SSLMode,
	}, opts...)
}

func buildSinks() (*output.Manager, error) {
	manager := output.NewManager()

	if !cfg.Output.NoConsole {
		console, err := output.NewConsoleSink(os.Stdout, cfg.Output.Format)
		if err != nil {
			return nil, err
		}
		if err := manager.AddSink(console); err != nil {
			return nil, err
		}
	}

	if cfg.Output.Out != "" {
		file, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			return nil, err
		}
		if err := manager.AddSink(file); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

func checkNames(chks []checks.Check) []string {
	names := make([]string, len(chks))
	for i, chk := range chks {
		names[i] = chk.Name()
	}
	return names
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.SetHelpTemplate(runHelpTemplate)

	// MAINTAINER NOTE: If you add/change/remove any run-affecting flags here,
	// keep the config field docs in internal/config/config.go in sync.

	// Targeting
	runCmd.Flags().StringVar(&cfg.Targeting.Env, flags.FlagEnv, cfg.Targeting.Env, "Environment to run against: dev|uat|prod (default: uat)")
	runCmd.Flags().StringVar(&cfg.Targeting.Suite, flags.FlagSuite, "", "Named check suite from checks.yml (mutually exclusive with --checks)")
	runCmd.Flags().StringSliceVar(&cfg.Targeting.Checks, flags.FlagChecks, nil, "Check names to run (repeatable; comma-separated accepted)")

	// Execution
	runCmd.Flags().BoolVar(&cfg.Execution.Parallel, flags.FlagParallel, cfg.Execution.Parallel, "Run checks on the worker pool (default: true)")
	runCmd.Flags().IntVar(&cfg.Execution.Workers, flags.FlagWorkers, 0, "Worker pool size (0 = environment's parallel_workers)")
	runCmd.Flags().BoolVar(&cfg.Execution.FailOnError, flags.FlagFailOnError, false, "Treat check errors like failures for the exit code")

	// Output
	runCmd.Flags().StringVar(&cfg.Output.Format, flags.FlagFormat, cfg.Output.Format, "Console output format: table|json|csv (default: table)")
	runCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write aggregated results to this path")
	runCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Format for --out: json|csv (default: inferred from file extension)")
	runCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --out)")
	runCmd.Flags().BoolVar(&cfg.Output.NoProgress, flags.FlagNoProgress, false, "Suppress the live worker-progress display")

	// Runtime (--config-dir and --verbose are persistent flags on the root)
	runCmd.Flags().StringVar(&cfg.Runtime.QueryLogDir, flags.FlagQueryLog, "", "Directory for per-run SQL audit logs (empty = disabled)")
}
