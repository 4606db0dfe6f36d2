package common

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/onsite-hq/onsite/params"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const healthShutdownTimeout = 5 * time.Second

// StartHealthCheckServer serves orchestrator probes on a sidecar port.
// /livez answers while the process runs; /readyz answers only while both
// the session store (MySQL) and the snapshot cache (Redis) respond to pings,
// since check-in admission needs both.
func StartHealthCheckServer(ctx context.Context, done chan struct{}, rdb redis.UniversalClient, db *gorm.DB) {
	defer close(done)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReady(r.Context(), rdb, db); err != nil {
			slog.Warn("Readiness probe failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              params.HealthCheckServerAddr,
		Handler:           mux,
		ReadHeaderTimeout: healthShutdownTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	slog.Info("Health check server started", "addr", server.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), healthShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Health check server shutdown failed", "error", err)
		}
	case err := <-serverErr:
		slog.Error("Health check server stopped", "error", err)
	}
}

func checkReady(ctx context.Context, rdb redis.UniversalClient, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}
