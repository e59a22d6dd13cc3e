package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hollandm/glimpse/internal/client"
	"github.com/hollandm/glimpse/internal/mobile"
)

func newChatCmd() *cobra.Command {
	var (
		serverURL string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "chat <message...>",
		Short: "Send a chat message to the session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &mobile.Correlator{
				Relay:     client.New(serverURL),
				SessionID: sessionID,
			}
			ack, err := c.Send(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent message %s\n", ack.MessageID)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "relay server URL")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID from pairing (required)")
	cmd.MarkFlagRequired("session")
	return cmd
}
