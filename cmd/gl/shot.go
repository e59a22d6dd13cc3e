package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hollandm/glimpse/internal/client"
	"github.com/hollandm/glimpse/internal/mobile"
)

func newShotCmd() *cobra.Command {
	var (
		serverURL string
		sessionID string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "shot [question...]",
		Short: "Request a screenshot from the paired desktop",
		Long:  "Asks the desktop for a screenshot and waits for the analysis. An optional question is attached to the request.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				text = "What is on the screen right now?"
			}

			c := &mobile.Correlator{
				Relay:              client.New(serverURL),
				SessionID:          sessionID,
				ScreenshotAttempts: int(timeout / mobile.DefaultPollInterval),
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Waiting for the desktop to capture...")
			msg, err := c.RequestScreenshot(cmd.Context(), text)
			if err != nil {
				return err
			}
			if msg == nil {
				fmt.Fprintln(out, "No capture arrived in time; the message was sent without media.")
				return nil
			}
			printResult(out, msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "relay server URL")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID from pairing (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", 20*time.Second, "how long to wait for the capture")
	cmd.MarkFlagRequired("session")
	return cmd
}

func printResult(out io.Writer, msg *client.Message) {
	fmt.Fprintln(out, msg.Content)
	if msg.MediaURL != "" {
		fmt.Fprintf(out, "Media: %s\n", msg.MediaURL)
	}
}
