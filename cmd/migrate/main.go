package main

// Run schema and legacy-key migrations:
//   go run ./cmd/migrate

import (
	"context"
	"log"
	"os"
	"strings"

	"intake-backend/internal/docstore"
	"intake-backend/internal/shared/config"
	"intake-backend/internal/shared/storage/db"
	"intake-backend/internal/shared/storage/kv"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
		sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
		if err != nil {
			log.Printf("failed to connect database: %v", err)
			os.Exit(1)
		}
		defer sqlDB.Close()

		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			log.Printf("failed to run migrations: %v", err)
			os.Exit(1)
		}
		log.Printf("database schema up to date")
	}

	if strings.TrimSpace(cfg.RedisAddr) == "" {
		log.Printf("REDIS_ADDR empty; skipping legacy document key migration")
		return
	}

	store, err := kv.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	if err != nil {
		log.Printf("failed to connect redis: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	docs := docstore.NewManager(store, docstore.Config{
		LimitBytes: cfg.StorageLimitMB << 20,
		Retention:  cfg.RetentionDocs,
		CacheTTL:   cfg.CacheTTL,
	})
	migrated, err := docs.MigrateLegacyKeys(ctx)
	if err != nil {
		log.Printf("failed to migrate legacy document keys: %v", err)
		os.Exit(1)
	}
	log.Printf("migrated %d legacy document records", migrated)
}
