package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/mirofish/graphmemd/internal/config"
	"github.com/mirofish/graphmemd/internal/dlq"
	"github.com/mirofish/graphmemd/internal/graphstore"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Ensure the Neo4j schema and local SQLite ledgers are up to date",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	result := cfg.Validate(config.ValidationContextMigrate)
	for _, warn := range result.Warnings {
		logger.Warn("config warning", "detail", warn)
	}
	if result.HasErrors() {
		return fmt.Errorf("%s", result.Error())
	}

	client, err := graphstore.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		return err
	}
	defer client.Close(ctx)
	store := graphstore.NewNeo4jStore(client)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	logger.Info("neo4j schema ensured")

	dlqPath := filepath.Join(".graphmemd", "dlq.sqlite")
	if err := os.MkdirAll(filepath.Dir(dlqPath), 0755); err != nil {
		return err
	}
	dlqDB, err := sqlx.Connect("sqlite3", dlqPath)
	if err != nil {
		return err
	}
	defer dlqDB.Close()
	if err := dlq.NewQueue(dlqDB).Migrate(ctx); err != nil {
		return err
	}
	logger.Info("dead letter queue schema ensured", "path", dlqPath)

	return nil
}
