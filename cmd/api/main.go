package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docsamajh/pkg/api"
	"docsamajh/pkg/app"
	"docsamajh/pkg/core/config"
	"docsamajh/pkg/core/logging"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		logging.LogError("main", "main", "server exited", nil, err)
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled. Resources opened here are
// released before it returns.
func run(ctx context.Context) error {
	log := logging.WithComponent("server")

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.SetLevel(cfg.LogLevel)

	a := app.New(ctx, cfg, app.Options{UseDatabase: true})
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(a.Service, a.AgentMgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.LogError("main", "shutdown", cfg.ListenAddr, nil, err)
		}
	}()

	log.WithField("addr", cfg.ListenAddr).Info("API server starting")
	log.Info("  - POST /api/documents/process")
	log.Info("  - POST /api/reconcile")
	log.Info("  - POST /api/reconcile/records")
	log.Info("  - POST /api/batch")
	log.Info("  - GET  /api/audit, /api/documents, /api/reconciliations, /api/stats")
	log.Info("  - POST /api/sessions, /api/sessions/end")
	log.Info("  - GET  /api/config, POST /api/config/switch")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	<-done
	return nil
}
