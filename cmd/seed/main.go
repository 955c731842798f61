package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"parley/internal/config"
	"parley/internal/repository/postgres"
	postgresChat "parley/internal/repository/postgres/chat"
	"parley/internal/seed"
	serviceChat "parley/internal/service/chat"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed data")
	fixtureFile := flag.String("fixtures", "", "Path to a YAML fixture file (built-in demo data when empty)")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: Cannot run --drop-tables in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *schemaOnly {
		log.Printf("Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else {
		log.Printf("Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("Tables dropped")
	}

	log.Println("Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("Schema ready")

	if *schemaOnly {
		log.Println("Schema setup complete (schema-only mode)")
		return
	}

	// Seed through the regular service path
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	chatRepo := postgresChat.NewChatRepository(repoConfig)
	messageRepo := postgresChat.NewMessageRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)
	chatService := serviceChat.NewService(chatRepo, messageRepo, txManager, logger)

	fixture := seed.DefaultFixture()
	if *fixtureFile != "" {
		fixture, err = seed.LoadFixtures(*fixtureFile)
		if err != nil {
			log.Fatalf("Failed to load fixtures: %v", err)
		}
	}

	seeder := seed.NewSeeder(chatService, logger)
	if err := seeder.Apply(ctx, fixture); err != nil {
		log.Fatalf("Failed to seed data: %v", err)
	}

	log.Println("Seeding complete!")
}

// runSchema creates tables if they don't exist. The parts table mirrors the
// codec's column contract with conditional CHECK constraints, so a row that
// would fail to decode can't be inserted by hand either.
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	createChats := `
		CREATE TABLE IF NOT EXISTS ` + tables.Chats + ` (
			id TEXT PRIMARY KEY
		)
	`
	if _, err := pool.Exec(ctx, createChats); err != nil {
		return err
	}

	createMessages := `
		CREATE TABLE IF NOT EXISTS ` + tables.Messages + ` (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL REFERENCES ` + tables.Chats + `(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createMessages); err != nil {
		return err
	}

	createParts := `
		CREATE TABLE IF NOT EXISTS ` + tables.Parts + ` (
			id UUID PRIMARY KEY,
			message_id TEXT NOT NULL REFERENCES ` + tables.Messages + `(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			ord INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			text_text TEXT,
			reasoning_text TEXT,
			reasoning_provider_metadata JSONB,
			tool_call_id TEXT,
			tool_state TEXT,
			tool_input JSONB,
			tool_output JSONB,
			tool_error_text TEXT,
			status_id TEXT,
			status_fields JSONB,
			UNIQUE (message_id, ord),
			CHECK (
				(type = 'text' AND text_text IS NOT NULL)
				OR (type = 'reasoning' AND reasoning_text IS NOT NULL)
				OR (type = 'step-start')
				OR (type = 'status-data' AND status_id IS NOT NULL)
				OR (type = 'tool-call' AND tool_call_id IS NOT NULL AND tool_state IS NOT NULL)
			),
			CHECK (type <> 'tool-call' OR NOT (tool_output IS NOT NULL AND tool_error_text IS NOT NULL))
		)
	`
	if _, err := pool.Exec(ctx, createParts); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `messages_chat_order ON ` + tables.Messages + `(chat_id, created_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `parts_message ON ` + tables.Parts + `(message_id, ord)`,
	}

	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return err
		}
	}

	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	tableNames := []string{
		tables.Parts,
		tables.Messages,
		tables.Chats,
	}

	for _, table := range tableNames {
		dropSQL := "DROP TABLE IF EXISTS " + table + " CASCADE"
		if _, err := pool.Exec(ctx, dropSQL); err != nil {
			return err
		}
		log.Printf("  dropped %s", table)
	}

	return nil
}
