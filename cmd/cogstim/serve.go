package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/cogstim/internal/generate"
	"github.com/cwbudde/cogstim/internal/server"
	"github.com/cwbudde/cogstim/internal/store"
	"github.com/spf13/cobra"
)

var (
	serveAddr   string
	serveOutput string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API. Jobs submitted to /api/v1/jobs run in the background,
write their images below --output and are recorded in the run store.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to the config)")
	serveCmd.Flags().StringVar(&serveOutput, "output", "images/jobs", "Root directory for job outputs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := appConfig.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	st, closeStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	srv := server.NewServer(server.Options{
		Addr:       addr,
		OutputRoot: serveOutput,
		Defaults: map[string]generate.Config{
			store.KindANS:       appConfig.ANS,
			store.KindOneColour: appConfig.OneColour,
			store.KindMTS:       appConfig.MTS,
		},
	}, st)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("Server stopped")
	return nil
}
