package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hollandm/glimpse/internal/analyze"
	"github.com/hollandm/glimpse/internal/api"
	"github.com/hollandm/glimpse/internal/blob"
	"github.com/hollandm/glimpse/internal/config"
	"github.com/hollandm/glimpse/internal/db"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		Long:  "Runs the HTTP relay that desktops register with and mobile clients pair against.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "glimpse.yaml", "path to Glimpse config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var blobs blob.Store
	if cfg.Blob.Bucket != "" {
		s3, err := blob.NewS3Store(ctx, cfg.Blob)
		if err != nil {
			return err
		}
		blobs = s3
	} else {
		log.Warn("no blob bucket configured, media will not survive a restart")
		blobs = blob.NewMemoryStore()
	}

	var analyzer analyze.Analyzer
	if cfg.Analyzer.Project != "" {
		gem, err := analyze.NewGeminiAnalyzer(ctx, cfg.Analyzer)
		if err != nil {
			return err
		}
		analyzer = gem
	} else {
		log.Warn("no analyzer project configured, captures will not be analyzed")
		analyzer = &analyze.Mock{Text: "(analysis disabled)"}
	}

	fmt.Fprintf(out, "Glimpse relay listening on :%d\n", port)
	return api.Start(ctx, api.StartOpts{
		DB:            gormDB,
		Blobs:         blobs,
		Analyzer:      analyzer,
		Log:           log,
		Port:          port,
		ProcessedTTL:  cfg.Server.ProcessedTTL,
		PurgeSchedule: cfg.Server.PurgeSchedule,
	})
}
