package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hollandm/glimpse/internal/agent"
	"github.com/hollandm/glimpse/internal/client"
	"github.com/hollandm/glimpse/internal/config"
)

// agentState is the desktop's durable identity, written next to the config
// on first registration and reused across restarts.
type agentState struct {
	DesktopID   string `json:"desktopId"`
	SessionID   string `json:"sessionId"`
	PairingCode string `json:"pairingCode"`
}

func newAgentCmd() *cobra.Command {
	var (
		configPath string
		statePath  string
	)

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the desktop capture agent",
		Long:  "Polls the relay for pending commands and executes screenshot and recording captures against the local screen.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, configPath, statePath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "glimpse.yaml", "path to Glimpse config file")
	cmd.Flags().StringVar(&statePath, "state", "glimpse-agent.json", "path to the agent's identity file")
	return cmd
}

func runAgent(cmd *cobra.Command, configPath, statePath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	relay := client.New(cfg.Agent.ServerURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, fresh, err := loadOrRegister(ctx, relay, statePath)
	if err != nil {
		return err
	}
	if fresh {
		fmt.Fprintf(out, "Registered with %s\n", cfg.Agent.ServerURL)
		fmt.Fprintf(out, "Pairing code: %s\n", state.PairingCode)
	} else {
		fmt.Fprintf(out, "Resuming desktop %s\n", state.DesktopID)
	}

	var capturer agent.FrameCapturer = agent.StubCapturer{}
	if cfg.Agent.CaptureCommand != "" {
		capturer = &agent.ExecCapturer{Command: cfg.Agent.CaptureCommand}
	}

	interval := cfg.Agent.PollInterval
	if interval <= 0 {
		interval = agent.DefaultPollInterval
	}

	p := &agent.Poller{
		Relay:     relay,
		DesktopID: state.DesktopID,
		Capturer:  capturer,
		Recorder:  &agent.StubRecorder{},
		Interval:  interval,
		Log:       slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil)),
	}

	fmt.Fprintf(out, "Polling every %s... (Ctrl+C to stop)\n", interval)
	return p.Run(ctx)
}

// loadOrRegister reads the agent's identity file, registering a fresh
// desktop with the relay when none exists yet.
func loadOrRegister(ctx context.Context, relay *client.Client, path string) (*agentState, bool, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var state agentState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, false, fmt.Errorf("parse state file %s: %w", path, err)
		}
		if state.DesktopID == "" {
			return nil, false, fmt.Errorf("state file %s has no desktopId", path)
		}
		return &state, false, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("read state file %s: %w", path, err)
	}

	reg, err := relay.Register(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("register desktop: %w", err)
	}
	state := &agentState{
		DesktopID:   reg.DesktopID,
		SessionID:   reg.SessionID,
		PairingCode: reg.PairingCode,
	}
	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, false, err
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return nil, false, fmt.Errorf("write state file %s: %w", path, err)
	}
	return state, true, nil
}
