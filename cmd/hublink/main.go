// Command hublink keeps an authenticated streaming connection to a hub.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/hublink/internal/adapters/driven/config/file"
	"github.com/custodia-labs/hublink/internal/adapters/driven/oauth"
	"github.com/custodia-labs/hublink/internal/adapters/driven/resource"
	"github.com/custodia-labs/hublink/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/hublink/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/hublink/internal/adapters/driven/stream"
	"github.com/custodia-labs/hublink/internal/adapters/driving/cli"
	"github.com/custodia-labs/hublink/internal/core/ports/driven"
	"github.com/custodia-labs/hublink/internal/core/ports/driving"
	"github.com/custodia-labs/hublink/internal/core/services"
	"github.com/custodia-labs/hublink/internal/logger"
)

func main() {
	cli.SetBuilder(build)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// build wires the adapters for one command run.
func build(opts cli.Options) (*cli.Services, error) {
	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	dataDir := opts.DataDir
	if dataDir == "" && opts.ConfigDir != "" {
		dataDir = filepath.Join(opts.ConfigDir, "data")
	}

	// The event log is optional: without a usable database the session
	// still runs and history lives for this process only.
	var events driven.EventStore
	closeStore := func() error { return nil }
	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		logger.Warn("event log unavailable, keeping history in memory: %v", err)
		events = memory.NewEventStore()
	} else {
		logger.Debug("event log at %s", store.Path())
		events = store.EventStore()
		closeStore = store.Close
	}

	return &cli.Services{
		Settings: services.NewSettingsService(configStore),
		History:  services.NewHistoryService(events),
		Stack: func() (*cli.Stack, error) {
			return buildStack(configStore, events, opts.Address)
		},
		Close: closeStore,
	}, nil
}

func buildStack(configStore driven.ConfigStore, events driven.EventStore, addressOverride string) (*cli.Stack, error) {
	cfg, err := services.LoadSessionConfig(configStore)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if addressOverride != "" {
		cfg.ServerAddress = addressOverride
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --address: %w", err)
		}
	}

	authority := oauth.NewAuthority(cfg)
	connector := stream.NewConnector(cfg)

	return &cli.Stack{
		Config:    cfg,
		Authority: authority,
		Resource:  resource.NewClient(cfg),
		NewSession: func(observer driven.SessionObserver) driving.SessionService {
			group := services.NewObserverGroup(observer)
			sup := services.NewSessionSupervisor(cfg, authority, connector, group)
			group.Add(services.NewHistoryRecorder(events, sup.SessionID()))
			logger.Debug("session %s against %s", sup.SessionID(), cfg.URL(cfg.HubPath))
			return sup
		},
	}, nil
}
