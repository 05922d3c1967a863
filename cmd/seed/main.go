package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/mruwnik/notes-critic-sub001/internal/config"
	"github.com/mruwnik/notes-critic-sub001/internal/repository/postgres"
	"github.com/mruwnik/notes-critic-sub001/internal/seed"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed sample notes")
	userID := flag.String("user", "test-user", "User ID to seed notes for")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.Environment == "prod" && *dropTables {
		log.Fatal("refusing to drop tables in production")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log.Printf("seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("dropping tables")
		if err := seed.DropTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	if err := seed.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to set up schema: %v", err)
	}
	log.Println("schema ready")

	if *schemaOnly {
		return
	}

	noteRepo := postgres.NewNoteRepository(&postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	})
	if err := seed.Notes(ctx, noteRepo, *userID); err != nil {
		log.Fatalf("Failed to seed notes: %v", err)
	}
	log.Printf("seeded sample notes for user %s", *userID)
}
