// Command notesync-server runs the sync endpoint: a chi HTTP server
// backed by the server-side SQLite store in internal/server, configured
// via internal/config/viper and wired through cobra the way the donor
// CLI wires its subcommands.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kittclouds/notesync/internal/config"
	"github.com/kittclouds/notesync/internal/logging"
	"github.com/kittclouds/notesync/internal/server"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "notesync-server",
		Short: "Run the notesync sync endpoint",
		RunE:  runServe,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to notesync.yaml")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, os.Stderr)

	st, err := server.Open(cfg.DBPath, log)
	if err != nil {
		return fmt.Errorf("open server store: %w", err)
	}
	defer st.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(st, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
