package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hollandm/glimpse/internal/client"
	"github.com/hollandm/glimpse/internal/mobile"
)

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Screen recording commands",
	}

	cmd.AddCommand(newRecordStartCmd())
	cmd.AddCommand(newRecordStopCmd())
	return cmd
}

func newRecordStartCmd() *cobra.Command {
	var (
		serverURL string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Ask the desktop to start a screen recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &mobile.Correlator{
				Relay:     client.New(serverURL),
				SessionID: sessionID,
			}
			if err := c.StartRecording(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Recording requested. Run \"gl record stop\" to finish and analyze.")
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "relay server URL")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID from pairing (required)")
	cmd.MarkFlagRequired("session")
	return cmd
}

func newRecordStopCmd() *cobra.Command {
	var (
		serverURL string
		sessionID string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the recording and wait for its analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &mobile.Correlator{
				Relay:         client.New(serverURL),
				SessionID:     sessionID,
				VideoAttempts: int(timeout / mobile.DefaultPollInterval),
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Waiting for the desktop to finalize the recording...")
			msg, err := c.StopRecording(cmd.Context())
			if err != nil {
				return err
			}
			if msg == nil {
				fmt.Fprintln(out, "No recording arrived in time.")
				return nil
			}
			printResult(out, msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "relay server URL")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID from pairing (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "how long to wait for the recording")
	cmd.MarkFlagRequired("session")
	return cmd
}
