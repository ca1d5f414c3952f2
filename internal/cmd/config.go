package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Digital-Shane/mediameta/internal/config"
)

var showSecrets bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write runtime configuration values",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, ok, err := app.store.ConfigValue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s is not set", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.config.Set(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		app.log.Infow("configuration updated", "key", args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored configuration values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		values, err := app.config.All(cmd.Context())
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			value := values[k]
			if !showSecrets && isSecret(k) {
				value = mask(value)
			}
			rows = append(rows, []string{k, value})
		}
		fmt.Fprintln(cmd.OutOrStdout(), newTable([]string{"Key", "Value"}, rows, nil))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective application settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s := app.settings
		rows := [][]string{
			{config.KeyDatabase, s.Database},
			{config.KeyListen, s.Listen},
			{config.KeyLogLevel, s.LogLevel},
		}
		if file := v.ConfigFileUsed(); file != "" {
			rows = append(rows, []string{"config_file", file})
		}
		fmt.Fprintln(cmd.OutOrStdout(), newTable([]string{"Setting", "Value"}, rows, nil))
		return nil
	},
}

func init() {
	configListCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print API keys, cookies and client secrets unmasked")
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// isSecret reports whether a configuration key holds a credential
func isSecret(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range []string{"key", "secret", "cookie", "token"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// mask keeps the last four characters of long values
func mask(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
