package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/mirofish/graphmemd/internal/config"
	"github.com/mirofish/graphmemd/internal/dlq"
	"github.com/mirofish/graphmemd/internal/extractor"
	"github.com/mirofish/graphmemd/internal/graphstore"
	"github.com/mirofish/graphmemd/internal/httpapi"
	"github.com/mirofish/graphmemd/internal/invalidator"
	"github.com/mirofish/graphmemd/internal/llmrotation"
	"github.com/mirofish/graphmemd/internal/llmsettings"
	"github.com/mirofish/graphmemd/internal/registry"
	"github.com/mirofish/graphmemd/internal/resolution"
	"github.com/mirofish/graphmemd/internal/updater"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the graph memory updater service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := cfg.Validate(config.ValidationContextServe)
	for _, warn := range result.Warnings {
		logger.Warn("config warning", "detail", warn)
	}
	if result.HasErrors() {
		return fmt.Errorf("%s", result.Error())
	}

	graphClient, err := graphstore.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		return err
	}
	defer graphClient.Close(ctx)
	store := graphstore.NewNeo4jStore(graphClient)

	settingsPath := llmsettings.ResolvePath(cfg.LLM.SettingsFile)
	historyPath := filepath.Join(filepath.Dir(settingsPath), "llm_settings_history.db")
	settingsStore, err := llmsettings.NewStore(settingsPath, historyPath)
	if err != nil {
		return err
	}
	defer settingsStore.Close()
	if settingsStore.Public().BaseURL == "" && cfg.LLM.BaseURL != "" {
		baseURL := cfg.LLM.BaseURL
		apiKey := cfg.LLM.APIKey
		models := []string{cfg.LLM.Model}
		if _, err := settingsStore.Apply(llmsettings.Update{BaseURL: &baseURL, APIKey: &apiKey, Models: models}); err != nil {
			logger.Warn("failed bootstrapping llm settings from config", "error", err)
		}
	}

	usageLogDir := filepath.Join(".graphmemd", "logs")
	if err := os.MkdirAll(usageLogDir, 0755); err != nil {
		return err
	}
	llmClient := llmrotation.NewClient(settingsStore, filepath.Join(usageLogDir, "llm_usage.jsonl"))

	dlqPath := filepath.Join(".graphmemd", "dlq.sqlite")
	if err := os.MkdirAll(filepath.Dir(dlqPath), 0755); err != nil {
		return err
	}
	dlqDB, err := sqlx.Connect("sqlite3", dlqPath)
	if err != nil {
		return err
	}
	defer dlqDB.Close()
	dlqQueue := dlq.NewQueue(dlqDB)
	if err := dlqQueue.Migrate(ctx); err != nil {
		return err
	}

	updCfg := updater.Config{
		BatchSize:                   cfg.Updater.BatchSize,
		ProcessInterval:             cfg.Updater.ProcessInterval,
		MaxRetries:                  cfg.Updater.MaxRetries,
		RetryDelay:                  cfg.Updater.RetryDelay,
		QueueGetTimeout:             cfg.Updater.QueueGetTimeout,
		StopJoinTimeout:             cfg.Updater.StopJoinTimeout,
		RelationSimilarityThreshold: cfg.Updater.RelationSimilarityThreshold,
		DuplicateFactThreshold:      cfg.Updater.DuplicateFactThreshold,
		Platforms:                   []string{"twitter", "reddit"},
	}
	resolverCfg := resolution.Config{
		MinNameLength:        cfg.Updater.MinNameLength,
		FuzzyMatchThreshold:  cfg.Updater.FuzzyMatchThreshold,
		LLMDisambiguationMin: cfg.Updater.LLMDisambiguationMin,
		LLMDisambiguation:    cfg.Updater.LLMDisambiguation,
	}

	reg := registry.New(logger)
	defer reg.StopAll(context.Background())

	factory := func(graphID, projectID string, ontology extractor.Ontology) *updater.Updater {
		ext := extractor.New(llmClient)
		res := resolution.New(store, llmClient, resolverCfg)
		inv := invalidator.NewHybrid(llmClient, true)
		u := updater.NewUpdater(graphID, projectID, store, ext, res, inv, ontology, updCfg, logger)
		u.SetDLQSink(dlqQueue)
		return u
	}

	server := httpapi.NewServer(settingsStore, usageLogDir, reg, logger)
	server.SetUpdaterFactory(factory)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("graphmemd listening", "addr", cfg.HTTP.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
