package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and change settings",
	Long: `Settings are stored as TOML in ~/.ocrprov/config.toml. Keys are dotted,
e.g. chunking.chunk_size or embedding.model.`,
	RunE: runConfigList,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configJSON bool

// secretKeys are masked in listings.
var secretKeys = map[string]bool{
	"embedding.api_key": true,
}

func init() {
	configListCmd.Flags().BoolVar(&configJSON, "json", false, "output as JSON")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	list, err := settingsService.List()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	for i := range list {
		if secretKeys[list[i].Key] && list[i].Value != "" {
			list[i].Value = maskAPIKey(list[i].Value)
		}
	}
	if configJSON {
		return printJSON(cmd, list)
	}

	out := cmd.OutOrStdout()
	for _, s := range list {
		value := s.Value
		if value == "" {
			value = "(not set)"
		}
		line := fmt.Sprintf("%-34s %s", s.Key, value)
		if s.Default {
			line = styled(out, dimStyle, line+"  (default)")
		}
		cmd.Println(line)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	list, err := settingsService.List()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	for _, s := range list {
		if s.Key == args[0] {
			cmd.Println(s.Value)
			return nil
		}
	}
	return fmt.Errorf("unknown setting %q", args[0])
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}

	value := args[1]
	if secretKeys[args[0]] {
		value = maskAPIKey(value)
	}
	cmd.Printf("%s = %s\n", args[0], value)
	return nil
}

// maskAPIKey shows only the first and last four characters of a key.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
