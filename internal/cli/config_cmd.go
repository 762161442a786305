package cli

import (
	"fmt"

	"datamedic/internal/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate environment configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [environment]",
	Short: "Show a resolved environment configuration",
	Long: `Show one environment's resolved configuration as YAML, or list the
available environments when no name is given.

Connection passwords are never part of config files and never shown.

Examples:
  datamedic config show
  datamedic config show uat
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			names, err := config.ListEnvironments(cfg.Runtime.ConfigDir)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}

		env, err := config.LoadEnvironment(cfg.Runtime.ConfigDir, args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(env)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate every environment file in the config directory",
	Long: `Validate every environment file under <config-dir>/environments plus
checks.yml, reporting each file's status.

Exit status is non-zero when any file fails validation.

Examples:
  datamedic config validate
  datamedic --config-dir ./config config validate
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ok := color.New(color.FgGreen).SprintFunc()
		bad := color.New(color.FgRed).SprintFunc()

		names, err := config.ListEnvironments(cfg.Runtime.ConfigDir)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return fmt.Errorf("no environment files found under %s/environments", cfg.Runtime.ConfigDir)
		}

		failures := 0
		for _, name := range names {
			if _, err := config.LoadEnvironment(cfg.Runtime.ConfigDir, name); err != nil {
				failures++
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", bad("✗"), name, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ok("✓"), name)
		}

		if _, err := config.LoadCatalogFile(cfg.Runtime.ConfigDir); err != nil {
			failures++
			fmt.Fprintf(cmd.OutOrStdout(), "%s checks.yml: %v\n", bad("✗"), err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s checks.yml\n", ok("✓"))
		}

		if failures > 0 {
			return fmt.Errorf("%d configuration file(s) failed validation", failures)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}
