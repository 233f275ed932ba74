package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/popdash/internal/config"
	"github.com/sells-group/popdash/internal/dashboard"
	"github.com/sells-group/popdash/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Boot the dashboard and serve its HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		handler, err := buildHandler(ctx, cfg, sourceLoader(cfg))
		if err != nil {
			return err
		}

		return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port))
	},
}

// buildHandler boots a dashboard session and wraps it in the API router.
func buildHandler(ctx context.Context, c *config.Config, loader dashboard.Loader) (http.Handler, error) {
	renderer := dashboard.NewSnapshotRenderer()
	ctrl, err := dashboard.Boot(ctx, loader, renderer, dashboard.Options{
		DefaultYear:     c.Dashboard.DefaultYear,
		DefaultDistrict: c.Dashboard.DefaultDistrict,
	})
	if err != nil {
		return nil, err
	}

	srv, err := server.New(ctrl, renderer, server.Options{
		StaticDir:   c.Server.StaticDir,
		RawTable:    c.Data.RawTable,
		CORSOrigins: c.Server.CORSOrigins,
		RatePerSec:  c.Server.RatePerSec,
		RateBurst:   c.Server.RateBurst,
		CacheSize:   c.Server.CacheSize,
		CacheTTL:    time.Duration(c.Server.CacheTTLMins) * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	return srv.Handler(), nil
}

// resolvePort prefers the flag over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler until ctx is cancelled, then shuts down.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}

	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
