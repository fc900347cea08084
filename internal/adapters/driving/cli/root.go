// Package cli provides the cobra command tree for hublink.
//
// Commands run against a Services value. The binary installs a Builder that
// constructs it from the global flags; tests install Services directly.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/hublink/internal/core/domain"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
	"github.com/custodia-labs/hublink/internal/core/ports/driving"
	"github.com/custodia-labs/hublink/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

// Global flags.
var (
	configDir string
	dataDir   string
	address   string
	verbose   bool
)

// Options carries the global flags to the Builder.
type Options struct {
	ConfigDir string
	DataDir   string
	Address   string
	Verbose   bool
}

// Stack is everything a command needs to talk to the service. It is built
// from the effective configuration, so building it fails while the stored
// configuration is invalid.
type Stack struct {
	Config    domain.SessionConfig
	Authority driven.CredentialAuthority
	Resource  driven.ResourceFetcher

	// NewSession creates a session supervisor reporting to observer.
	NewSession func(observer driven.SessionObserver) driving.SessionService
}

// Services holds the application services used by the commands.
type Services struct {
	Settings driving.SettingsService
	History  driving.EventHistory

	// Stack builds the session stack on demand.
	Stack func() (*Stack, error)

	// Close releases resources such as the local database.
	Close func() error
}

// Builder constructs Services from the global flags.
type Builder func(opts Options) (*Services, error)

var (
	builder  Builder
	services *Services
)

// SetBuilder installs the function used to build services before a command runs.
func SetBuilder(b Builder) {
	builder = b
}

// SetServices installs services directly, bypassing the builder.
func SetServices(s *Services) {
	services = s
}

var rootCmd = &cobra.Command{
	Use:   "hublink",
	Short: "Keep an authenticated streaming connection to a hub",
	Long: `hublink signs in through the browser, opens a long-lived streaming
connection to a hub and keeps it alive across token expiry and network loss.

Configuration lives in ~/.hublink/config.toml and can be edited with
'hublink config'.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.hublink)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the event log (default ~/.hublink/data)")
	rootCmd.PersistentFlags().StringVar(&address, "address", "", "override the server address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if cmd == versionCmd || services != nil {
		return nil
	}
	if builder == nil {
		return errors.New("services not configured")
	}
	built, err := builder(Options{
		ConfigDir: configDir,
		DataDir:   dataDir,
		Address:   address,
		Verbose:   verbose,
	})
	if err != nil {
		return err
	}
	services = built
	return nil
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if services != nil && services.Close != nil {
		if cerr := services.Close(); cerr != nil {
			logger.Warn("closing services: %v", cerr)
		}
	}
	return err
}

func settingsService() (driving.SettingsService, error) {
	if services == nil || services.Settings == nil {
		return nil, errors.New("settings service not configured")
	}
	return services.Settings, nil
}

func historyService() (driving.EventHistory, error) {
	if services == nil || services.History == nil {
		return nil, errors.New("event history not configured")
	}
	return services.History, nil
}

func sessionStack() (*Stack, error) {
	if services == nil || services.Stack == nil {
		return nil, errors.New("session not configured")
	}
	stack, err := services.Stack()
	if err != nil {
		return nil, fmt.Errorf("%w\nRun 'hublink config list' to review settings", err)
	}
	return stack, nil
}
