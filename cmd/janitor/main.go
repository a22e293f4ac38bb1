// The janitor prunes old delivery attempt records on an interval. It is pure
// housekeeping: the pipeline never depends on records being deleted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wharfhook/wharfhook/internal/audit"
	"github.com/wharfhook/wharfhook/internal/config"
	"github.com/wharfhook/wharfhook/internal/db"
	"github.com/wharfhook/wharfhook/internal/logging"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New("wharfhook-janitor")

	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Plain().WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	store := audit.NewStore(pool)

	logger.Plain().WithFields(map[string]any{
		"max_age":  cfg.Janitor.MaxAge.String(),
		"interval": cfg.Janitor.Interval.String(),
	}).Info("janitor started")

	runPurge(ctx, store, cfg.Janitor.MaxAge, logger)

	ticker := time.NewTicker(cfg.Janitor.Interval)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	for {
		select {
		case <-ticker.C:
			runPurge(ctx, store, cfg.Janitor.MaxAge, logger)
		case <-stop:
			logger.Plain().Info("janitor stopped")
			return
		}
	}
}

func runPurge(ctx context.Context, store *audit.Store, maxAge time.Duration, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	deleted, err := store.PurgeOlderThan(ctx, maxAge)
	if err != nil {
		logger.Plain().WithError(err).Error("purge failed")
		return
	}
	logger.Plain().WithField("deleted", deleted).Info("purged old delivery attempts")
}
