// Command migrate applies or rolls back the embedded database schema.
//
//	migrate up
//	migrate down [steps]
//	migrate version
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tezgah/backend/internal/config"
	"tezgah/backend/internal/logger"
	pgstore "tezgah/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	if err := run(os.Args[1:], cfg.DatabaseURL, log); err != nil {
		log.Fatal("migrate failed", zap.Error(err))
	}
}

func run(args []string, databaseURL string, log *zap.Logger) error {
	cmd, steps, err := parseArgs(args)
	if err != nil {
		return err
	}
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	m, err := pgstore.NewMigrator(databaseURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	switch cmd {
	case "up":
		return m.Up()
	case "down":
		return m.Down(steps)
	default:
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty=%t)\n", version, dirty)
		return nil
	}
}

// parseArgs returns the subcommand and, for down, the step count (default 1).
func parseArgs(args []string) (string, int, error) {
	if len(args) == 0 {
		return "", 0, errors.New("usage: migrate up|down [steps]|version")
	}
	switch args[0] {
	case "up", "version":
		if len(args) > 1 {
			return "", 0, fmt.Errorf("%s takes no arguments", args[0])
		}
		return args[0], 0, nil
	case "down":
		if len(args) == 1 {
			return "down", 1, nil
		}
		steps, err := strconv.Atoi(args[1])
		if err != nil || steps < 1 {
			return "", 0, fmt.Errorf("invalid step count %q", args[1])
		}
		return "down", steps, nil
	default:
		return "", 0, fmt.Errorf("unknown command %q", args[0])
	}
}
