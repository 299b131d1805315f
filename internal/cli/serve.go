package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dispatch-network/dispatch/internal/api"
	"github.com/dispatch-network/dispatch/internal/daemon"
	"github.com/dispatch-network/dispatch/internal/gateway"
	"github.com/dispatch-network/dispatch/internal/infra/logging"
	"github.com/dispatch-network/dispatch/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("config", "c", daemon.DefaultConfigPath(), "Path to config.toml")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway daemon",
	Long: `Start the dispatch gateway: the HTTP API, the performance-tracker
decay loop, and (when enabled) the sqlite audit trail.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	var store *sqlite.DB
	if cfg.Store.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return fmt.Errorf("create store directory: %w", err)
		}
		store, err = sqlite.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		log.Info().Str("path", cfg.Store.Path).Msg("audit trail enabled")
	}

	registry := gateway.NewRegistry(log, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go registry.RunDecay(ctx, cfg.Decay.Interval.Duration)

	server := api.NewServer(registry, store, cfg.Selection.Limit)
	server.EnableMetrics()

	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("API listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
