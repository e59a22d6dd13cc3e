package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/hollandm/glimpse/internal/client"
)

func newWatchCmd() *cobra.Command {
	var (
		serverURL string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream the session's chat transcript in real-time",
		Long:  "Polls for new chat messages and displays them as they arrive, most recent history first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, serverURL, sessionID)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "relay server URL")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID from pairing (required)")
	cmd.MarkFlagRequired("session")
	return cmd
}

func runWatch(cmd *cobra.Command, serverURL, sessionID string) error {
	relay := client.New(serverURL)
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Watching chat... (Ctrl+C to stop)")

	msgs, err := relay.History(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	for _, m := range msgs {
		printWatchMessage(out, m)
	}
	seen := len(msgs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			msgs, err := relay.History(ctx, sessionID)
			if err != nil {
				fmt.Fprintf(out, "poll error: %v\n", err)
				continue
			}
			// History is append-only and ascending, so new entries are
			// whatever sits past the last count we printed.
			for _, m := range msgs[min(seen, len(msgs)):] {
				printWatchMessage(out, m)
			}
			seen = len(msgs)
		}
	}
}

func printWatchMessage(out io.Writer, m client.Message) {
	ts := m.CreatedAt.Format("15:04:05")
	media := ""
	if m.MediaType != "" {
		media = fmt.Sprintf(" [%s]", m.MediaType)
	}
	fmt.Fprintf(out, "[%s] %s%s: %s\n", ts, m.Role, media, m.Content)
}
