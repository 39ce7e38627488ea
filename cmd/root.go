package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/camden-git/facebench/config"
	"github.com/camden-git/facebench/database"
	"github.com/camden-git/facebench/recognition"
	"github.com/camden-git/facebench/repository"
)

var rootCmd = &cobra.Command{
	Use:   "facebench",
	Short: "Benchmark face recognition models against a live camera",
	Long: `facebench runs timed face-recognition sessions against a camera feed,
scores each model (ArcFace, Facenet, Dlib) on how reliably it recognizes the
people in the reference gallery, and keeps per-model statistics across sessions.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func modelNames() []string {
	names := make([]string, len(recognition.KnownModels))
	for i, m := range recognition.KnownModels {
		names[i] = string(m)
	}
	return names
}

// openStore connects to the configured database and makes sure the schema and
// model rows exist. The returned func closes the connection.
func openStore(ctx context.Context, cfg config.Config) (*repository.Store, func(), error) {
	dsn := cfg.DatabasePath
	if cfg.DatabaseDriver == config.DriverMySQL {
		dsn = cfg.DatabaseDSN
	}
	db, err := database.InitGormDB(cfg.DatabaseDriver, dsn, cfg.DatabaseLogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	store := repository.NewStore(db, modelNames())
	if err := store.InitSchema(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, closeDB, nil
}
