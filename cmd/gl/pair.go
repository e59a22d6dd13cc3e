package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollandm/glimpse/internal/client"
)

func newPairCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "pair <code>",
		Short: "Pair with a desktop using its pairing code",
		Long:  "Claims the session shown on the desktop. Prints the session ID used by chat, shot and record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			relay := client.New(serverURL)
			res, err := relay.Pair(cmd.Context(), args[0])
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("no desktop is waiting with code %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paired with desktop %s\n", res.DesktopID)
			fmt.Fprintf(cmd.OutOrStdout(), "Session: %s\n", res.SessionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "relay server URL")
	return cmd
}
