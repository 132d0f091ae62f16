package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"leadrelay/internal/pkg/logger"
	"leadrelay/internal/platform/config"
	"leadrelay/internal/platform/database"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	path := flag.String("db", "", "SQLite file (defaults to store.sqlite_path)")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")

	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logging)

	dbPath := *path
	if dbPath == "" {
		dbPath = cfg.Store.SQLitePath
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open local store")
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db, *direction); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Str("path", dbPath).Str("direction", *direction).Msg("Migration completed successfully")
}
