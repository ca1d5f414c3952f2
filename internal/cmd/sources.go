package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var sourcesJSON bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List metadata sources with their settings and connectivity",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

var sourcesEnableCmd = &cobra.Command{
	Use:   "enable <source>",
	Short: "Include a source in auxiliary alias search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateSource(cmd, args[0], func() error {
			return app.store.SetAuxSearchEnabled(cmd.Context(), args[0], true)
		})
	},
}

var sourcesDisableCmd = &cobra.Command{
	Use:   "disable <source>",
	Short: "Exclude a source from auxiliary alias search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateSource(cmd, args[0], func() error {
			return app.store.SetAuxSearchEnabled(cmd.Context(), args[0], false)
		})
	},
}

var sourcesOrderCmd = &cobra.Command{
	Use:   "order <source> <position>",
	Short: "Set the display order of a source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := strconv.Atoi(args[1])
		if err != nil || order < 0 {
			return fmt.Errorf("invalid position %q: must be a non-negative integer", args[1])
		}
		return updateSource(cmd, args[0], func() error {
			return app.store.SetDisplayOrder(cmd.Context(), args[0], order)
		})
	},
}

var sourcesProxyCmd = &cobra.Command{
	Use:   "proxy <source> <on|off>",
	Short: "Route a source's requests through the configured proxy",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		useProxy, err := parseSwitch(args[1])
		if err != nil {
			return err
		}
		return updateSource(cmd, args[0], func() error {
			return app.store.SetUseProxy(cmd.Context(), args[0], useProxy)
		})
	},
}

var sourcesConfigCmd = &cobra.Command{
	Use:   "config <source>",
	Short: "Show the configuration values a source reads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := app.registry.ProviderConfig(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), values)
	},
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "Print the list as JSON")
	sourcesCmd.AddCommand(sourcesEnableCmd, sourcesDisableCmd, sourcesOrderCmd, sourcesProxyCmd, sourcesConfigCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	statuses := app.registry.SourcesWithStatus(cmd.Context())
	if sourcesJSON {
		return printJSON(cmd.OutOrStdout(), statuses)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No metadata sources loaded")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), sourcesTable(statuses))
	return nil
}

// updateSource applies a settings change for a loaded source and reloads
// the registry so the change takes effect.
func updateSource(cmd *cobra.Command, name string, apply func() error) error {
	if _, ok := app.registry.Get(name); !ok {
		return fmt.Errorf("unknown metadata source %q", name)
	}
	if err := apply(); err != nil {
		return fmt.Errorf("failed to update %s: %w", name, err)
	}
	app.registry.Reload(cmd.Context())
	app.log.Infow("source settings updated", "provider", name, "command", cmd.Name())
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", name)
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q: use on or off", s)
}
