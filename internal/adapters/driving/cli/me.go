package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/hublink/internal/core/domain"
)

var meRaw bool

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Sign in and show the current user",
	Long: `Sign in through the browser and print the response of the service's
/me resource. No streaming connection is opened.`,
	RunE: runMe,
}

func init() {
	meCmd.Flags().BoolVar(&meRaw, "raw", false, "print the response body unformatted")
	rootCmd.AddCommand(meCmd)
}

func runMe(cmd *cobra.Command, _ []string) error {
	stack, err := sessionStack()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), stack.Config.AuthTimeout)
	cred, err := stack.Authority.AuthenticateInteractively(ctx, stack.Config.OAuth.Scopes)
	cancel()
	if err != nil {
		return fmt.Errorf("%s: %w", domain.ClassifyAuthError(err).Title(), err)
	}

	body, err := stack.Resource.FetchMe(cmd.Context(), cred.AccessToken)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", stack.Config.MePath, err)
	}

	cmd.Println(formatBody(body, meRaw))
	return nil
}

// formatBody indents JSON bodies unless raw output was asked for.
func formatBody(body []byte, raw bool) string {
	if raw || !json.Valid(body) {
		return string(body)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}
