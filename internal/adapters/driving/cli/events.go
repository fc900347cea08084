package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

var (
	eventsLimit   int
	eventsSession string
	eventsJSON    bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the session event log",
	Long: `Show recorded phase changes and notices.

By default the most recent events of all sessions are listed, newest first.
With --session, every event of that session is listed in order.`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "maximum number of events to show")
	eventsCmd.Flags().StringVar(&eventsSession, "session", "", "show the events of one session")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, _ []string) error {
	history, err := historyService()
	if err != nil {
		return err
	}

	var events []domain.SessionEvent
	if eventsSession != "" {
		events, err = history.Session(cmd.Context(), eventsSession)
	} else {
		events, err = history.Recent(cmd.Context(), eventsLimit)
	}
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	if eventsJSON {
		data, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format events: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(events) == 0 {
		cmd.Println("No events recorded.")
		return nil
	}

	for _, e := range events {
		cmd.Printf("%s  %s  %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), shortID(e.SessionID), e.Summary())
	}
	return nil
}

// shortID abbreviates a session UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
