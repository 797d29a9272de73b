package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/mathreel/internal/api"
)

// Serve runs the workers and the HTTP API until ctx is done, then drains both.
func (a *App) Serve(ctx context.Context, log *slog.Logger) error {
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	a.Orchestrator.Start(workerCtx)

	srv := api.NewServer(a.Orchestrator, a.Stats, log, a.Config)
	httpServer := &http.Server{
		Addr:         ":" + a.Config.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutting down...")

		a.Orchestrator.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
	}()

	log.Info("starting mathreel", "port", a.Config.Port, "workers", a.Config.WorkerCount, "job_backend", a.Config.JobBackend)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
