package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-autopilot/internal/config"
	"github.com/jonathan/content-autopilot/internal/server"
	"github.com/jonathan/content-autopilot/internal/server/ratelimit"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the autopilot settings, run and calendar endpoints.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (defaults to LISTEN_ADDR or :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to load JWT config: %w", err)
	}
	apiKeyConfig, err := config.NewAPIKeyConfig()
	if err != nil {
		return fmt.Errorf("failed to load API key config: %w", err)
	}

	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.Migrate(ctx); err != nil {
		return err
	}

	executor, err := a.executor(ctx)
	if err != nil {
		return err
	}

	addr := a.cfg.ListenAddr
	if cmd.Flags().Changed("addr") {
		addr = serveAddr
	}

	srv := server.New(server.Config{
		Addr:              addr,
		JWT:               jwtConfig,
		APIKeys:           apiKeyConfig,
		RateLimit:         ratelimit.LoadConfig(),
		GenerateThumbnail: a.cfg.GenerateThumbnail,
		SubmitIndexing:    a.cfg.SubmitIndexing,
	}, server.Deps{
		Sites:    a.db,
		Keys:     a.db,
		Runner:   executor,
		Calendar: a.scheduler,
		Logger:   a.logger,
	})

	return srv.Start(ctx)
}
