package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/TheBase/TheBase/internal/cliconfig"
	"github.com/TheBase/TheBase/internal/config"
)

var (
	configReveal bool
	configOutput string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and edit ~/.thebase/config.json",
	Long: `Reads and edits the config file by dotted path, for example
gateway.port or store.path. The first segment must be a known group
(see "thebase config groups"). Environment variables still override the file.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <group[.key...]>",
	Short: "Print a value; secrets are masked unless --reveal",
	Example: `  thebase config get gateway
  thebase config get ingest.secret --reveal
  thebase config get status -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := cliconfig.Get(args[0], configReveal)
		if err != nil {
			return err
		}
		return writeConfigValue(cmd.OutOrStdout(), configOutput, val)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <group.key> <value>",
	Short: "Set a value (JSON literal or plain string)",
	Example: `  thebase config set gateway.port 8787
  thebase config set kafka.enabled true
  thebase config set slack.webhookUrl https://hooks.slack.com/services/...`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cliconfig.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <group.key>",
	Short: "Remove a value so the default applies again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cliconfig.Unset(args[0])
	},
}

var configGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the config groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(cliconfig.Groups(), "\n"))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location (THEBASE_CONFIG overrides it)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func writeConfigValue(w io.Writer, format string, val any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(val)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(val)
	case "text":
		if m, ok := val.(map[string]any); ok {
			return writeConfigValue(w, "json", m)
		}
		_, err := fmt.Fprintln(w, val)
		return err
	default:
		return fmt.Errorf("unknown output %q (expected text, json or yaml)", format)
	}
}

func init() {
	configGetCmd.Flags().BoolVar(&configReveal, "reveal", false, "Print ingest.secret, store.dsn and slack.webhookUrl in clear")
	configGetCmd.Flags().StringVarP(&configOutput, "output", "o", "text", "Output format: text, json or yaml")
	configCmd.AddCommand(configGetCmd, configSetCmd, configUnsetCmd, configGroupsCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
