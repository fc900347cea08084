package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// secretKeys are read without echo when no value is given on the command line.
var secretKeys = map[string]bool{
	"oauth.client_secret": true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hublink settings",
	Long: `View and change the settings stored in ~/.hublink/config.toml.

Durations accept Go syntax ("90s", "1m30s") or whole seconds.
Scopes are separated by commas or spaces.`,
	RunE: runConfigList,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every setting with its effective value",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Change a setting",
	Long: `Change a setting. The whole configuration must stay valid.

The value of oauth.client_secret may be omitted to enter it without echo.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Restore a setting to its default",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := settingsService()
		if err != nil {
			return err
		}
		cmd.Println(settings.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	settings, err := settingsService()
	if err != nil {
		return err
	}

	values, err := settings.Values()
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	width := 0
	for _, key := range settings.Keys() {
		width = max(width, len(key))
	}
	for _, key := range settings.Keys() {
		value := values[key]
		if value == "" {
			value = "(not set)"
		}
		cmd.Printf("%-*s  %s\n", width, key, value)
	}
	cmd.Println()
	cmd.Printf("Stored in %s\n", settings.Path())
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	settings, err := settingsService()
	if err != nil {
		return err
	}

	values, err := settings.Values()
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	value, ok := values[args[0]]
	if !ok {
		return fmt.Errorf("unknown setting %q", args[0])
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	settings, err := settingsService()
	if err != nil {
		return err
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case secretKeys[key]:
		cmd.Printf("Enter %s: ", key)
		value = readSecret(cmd.InOrStdin())
		cmd.Println()
	default:
		return fmt.Errorf("a value is required for %s", key)
	}

	if err := settings.Set(key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	cmd.Printf("%s updated.\n", key)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	settings, err := settingsService()
	if err != nil {
		return err
	}

	if err := settings.Unset(args[0]); err != nil {
		return fmt.Errorf("failed to unset %s: %w", args[0], err)
	}
	cmd.Printf("%s restored to default.\n", args[0])
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readSecret(in io.Reader) string {
	// Try to read without echo
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(secret)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(in)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
