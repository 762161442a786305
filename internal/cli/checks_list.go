package cli

import (
	"fmt"
	"io"

	"datamedic/internal/checks"
	"datamedic/internal/checks/builtin"
	"datamedic/internal/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var checksListQuiet bool

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "Discover and inspect checks",
	Long: `Discover DataMedic checks.

This command group helps you find which checks exist, what each one
validates, and how suites group them. Checks are executed by "datamedic run"
(see its --help).

Examples:
  # List all available checks
  datamedic checks list
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var checksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available checks",
	Long: `List all checks registered in this build, in catalog order, followed by
the suites defined in checks.yml.

Examples:
  datamedic checks list
  datamedic checks list -q
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		for _, chk := range catalog.List() {
			if checksListQuiet {
				fmt.Fprintln(cmd.OutOrStdout(), chk.Name())
			} else {
				printCheck(cmd.OutOrStdout(), catalog, chk)
			}
		}

		if checksListQuiet {
			return nil
		}
		if suites := catalog.SuiteNames(); len(suites) > 0 {
			bold := color.New(color.Bold)
			bold.Fprintln(cmd.OutOrStdout(), "Suites:")
			for _, name := range suites {
				members, err := catalog.Suite(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s (%d checks)\n", name, len(members))
			}
		}
		return nil
	},
}

var checksShowCmd = &cobra.Command{
	Use:   "show [check-name]",
	Short: "Show details of a specific check",
	Long: `Show details of a specific check by name.

Examples:
  datamedic checks show referential_integrity
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		chks, err := catalog.Resolve(args[0:1])
		if err != nil {
			return err
		}
		printCheck(cmd.OutOrStdout(), catalog, chks[0])
		return nil
	},
}

func printCheck(w io.Writer, catalog *checks.Catalog, chk checks.Check) {
	bold := color.New(color.Bold)
	fmt.Fprintln(w, "----------------------------------------")
	bold.Fprintf(w, "CHECK: %s\n", chk.Name())
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintln(w, chk.Title())
	fmt.Fprintf(w, "Category:   %s\n", chk.Category())
	fmt.Fprintf(w, "Data tests: %d\n", catalog.DeclaredSize(chk.Name()))
	if policy, ok := catalog.ChunkPolicy(chk.Name()); ok {
		fmt.Fprintf(w, "Chunking:   %s, %d per chunk\n", policy.Label, policy.Size)
	}
	if timeout := catalog.Timeout(chk.Name()); timeout > 0 {
		fmt.Fprintf(w, "Timeout:    %s\n", timeout)
	}
	fmt.Fprintln(w)
}

func loadCatalog() (*checks.Catalog, error) {
	cf, err := config.LoadCatalogFile(cfg.Runtime.ConfigDir)
	if err != nil {
		return nil, err
	}
	return builtin.BuildCatalog(cfg.Runtime.ConfigDir, cf)
}

func init() {
	rootCmd.AddCommand(checksCmd)
	checksCmd.AddCommand(checksListCmd)
	checksListCmd.Flags().BoolVarP(&checksListQuiet, "quiet", "q", false, "Only print check names")
	checksCmd.AddCommand(checksShowCmd)
}
