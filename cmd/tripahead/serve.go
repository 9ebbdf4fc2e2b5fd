package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryan-buckman/tripahead/internal/database"
	"github.com/bryan-buckman/tripahead/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, server.New(store, logger), cfg.GetString(cfgKeyAddr))
	},
}

func init() {
	serveCmd.Flags().String("addr", defaultAddr, "listen address")
}

func openStore() (database.Store, error) {
	driver, dsn := cfg.GetString(cfgKeyDBDriver), cfg.GetString(cfgKeyDBDSN)
	store, err := database.Open(driver, dsn, cfg.GetInt(cfgKeyMaxDays))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("database opened", zap.String("driver", driver), zap.String("type", store.DatabaseType()))
	return store, nil
}

// serve runs the server until ctx is cancelled or the listener fails, then
// shuts it down gracefully.
func serve(ctx context.Context, srv *server.Server, addr string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
