package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/forgia-ai/bank-convert-billing/internal/config"
	"github.com/forgia-ai/bank-convert-billing/internal/logger"
	"github.com/forgia-ai/bank-convert-billing/internal/postgres"
)

func init() {
	time.Local = time.UTC
}

// Applies every migrations/*.sql file in lexical order. The statements are
// written to be re-runnable, so applying the full set is idempotent.
func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		logger.L.Fatalf("failed to load config: %v", err)
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		logger.L.Fatalf("failed to init logger: %v", err)
	}

	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		log.Fatalf("failed to list migrations: %v", err)
	}
	sort.Strings(files)

	ctx := context.Background()
	for _, file := range files {
		contents, err := os.ReadFile(file)
		if err != nil {
			log.Fatalf("failed to read %s: %v", file, err)
		}

		log.Infow("applying migration", "file", file)
		err = db.WithTx(ctx, func(txCtx context.Context) error {
			_, execErr := db.GetQuerier(txCtx).ExecContext(txCtx, string(contents))
			return execErr
		})
		if err != nil {
			log.Fatalf("migration %s failed: %v", file, err)
		}
	}

	log.Infof("applied %d migration file(s)", len(files))
}
