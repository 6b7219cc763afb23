package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// newConfigCmd builds "gtftrim config", which prints the settings loaded
// from ~/.gtftrim.yaml and hosts the get and set subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gtftrim configuration",
		Long: `Show, get, or set configuration values. Config is stored in ~/.gtftrim.yaml.

Keys are flag names, e.g. five-prime, biotype, cache-dir or db. Values set here
become the defaults of every command; flags and GTFTRIM_* environment variables
take precedence.`,
		Example: `  gtftrim config                          # show all config
  gtftrim config set five-prime 45        # trim 45 nt from the 5' end by default
  gtftrim config set cache-dir ~/.gtftrim/cache
  gtftrim config get five-prime           # get a value`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1], cmd.OutOrStdout())
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(args[0], cmd.OutOrStdout())
		},
	}
}

// runConfigShow prints every setting viper resolved from the config file as
// YAML. Flag defaults are not included.
func runConfigShow(out io.Writer) error {
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintln(out, "# No configuration set. Config file: ~/.gtftrim.yaml")
		return nil
	}

	b, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(out, string(b))
	return nil
}

// parseConfigValue types a value typed on the command line, so that
// "set longest yes" stores a YAML bool and "set five-prime 45" an int that
// viper.GetInt64 reads back.
func parseConfigValue(value string) any {
	switch value {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	return value
}

// runConfigSet stores key in the file viper loaded, or in ~/.gtftrim.yaml
// when none was found.
func runConfigSet(key, value string, out io.Writer) error {
	viper.Set(key, parseConfigValue(value))

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locating config file: %w", err)
		}
		cfgFile = filepath.Join(home, ".gtftrim.yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(out, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

// runConfigGet prints one setting. Keys that only have a flag default are
// reported as not set.
func runConfigGet(key string, out io.Writer) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(out, val)
	return nil
}
