// Applies database migrations. Run with "up" (default), "down", or
// "version".
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/wharfhook/wharfhook/internal/config"
	"github.com/wharfhook/wharfhook/internal/logging"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New("wharfhook-migrate")

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "file://migrations"
	}

	m, err := migrate.New(migrationsPath, cfg.DSN())
	if err != nil {
		logger.Plain().WithError(err).Fatal("failed to create migrate instance")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Plain().WithError(srcErr).Error("close migration source failed")
		}
		if dbErr != nil {
			logger.Plain().WithError(dbErr).Error("close migration db failed")
		}
	}()

	action := "up"
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	switch action {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Plain().WithError(err).Fatal("migrate up failed")
		}
		logger.Plain().Info("migrations applied")
	case "down":
		if err := m.Steps(-1); err != nil {
			logger.Plain().WithError(err).Fatal("migrate down failed")
		}
		logger.Plain().Info("rolled back one migration")
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			logger.Plain().WithError(err).Fatal("read migration version failed")
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
	default:
		logger.Plain().WithField("action", action).Fatal("unknown action, want up, down, or version")
	}
}
