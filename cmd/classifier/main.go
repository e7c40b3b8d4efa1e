package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/classifier"
	"github.com/noamzilo/whatsapp-miner/internal/config"
	"github.com/noamzilo/whatsapp-miner/internal/llm"
	"github.com/noamzilo/whatsapp-miner/internal/processor"
	"github.com/noamzilo/whatsapp-miner/internal/repository"
	"github.com/noamzilo/whatsapp-miner/internal/server"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfgPath := os.Getenv("CLASSIFIER_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	logger = logger.With(zap.String("environment", cfg.Environment))

	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.RunMigrations(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	messageRepo := repository.NewMessageRepository(db, logger)
	categoryRepo := repository.NewCategoryRepository(db, logger)
	intentRepo := repository.NewIntentTypeRepository(db, logger)
	promptRepo := repository.NewPromptRepository(db, logger)
	classificationRepo := repository.NewClassificationRepository(db, logger)

	provider, err := llm.NewGroqClient(llm.GroqConfig{
		APIKey:    cfg.Classifier.GroqAPIKey,
		ModelName: cfg.Classifier.ModelName,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	retry := llm.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Classifier.MaxRetries

	prompt, err := promptRepo.GetOrCreatePrompt(
		classifier.DefaultPromptName, classifier.DefaultPromptText, classifier.DefaultPromptVersion)
	if err != nil {
		logger.Fatal("Failed to load classification prompt", zap.Error(err))
	}

	cls := classifier.New(provider, retry, prompt.PromptText, logger)
	orchestrator := processor.NewOrchestrator(
		cls, messageRepo, categoryRepo, intentRepo, promptRepo, classificationRepo, logger)

	runner := processor.NewRunner(
		orchestrator,
		messageRepo,
		cfg.Classifier.BatchSize,
		time.Duration(cfg.Classifier.PollIntervalSeconds)*time.Second,
		logger,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := server.NewServer(runner, cfg.Environment, logger)
	go srv.Run(cfg.Server.Port)

	runner.Run(ctx)
	logger.Info("Classifier service stopped")
}
