package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/classifier"
	"github.com/noamzilo/whatsapp-miner/internal/config"
	"github.com/noamzilo/whatsapp-miner/internal/llm"
	"github.com/noamzilo/whatsapp-miner/internal/processor"
	"github.com/noamzilo/whatsapp-miner/internal/queue"
	"github.com/noamzilo/whatsapp-miner/internal/repository"
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

	streams := queue.NewStreamsQueue(cfg.Redis.Addr, cfg.Redis.Stream, logger)
	defer streams.Close()

	group := queue.GroupName(cfg.Environment)
	consumer := queue.ConsumerName(cfg.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := streams.CreateConsumerGroup(ctx, group); err != nil {
		logger.Fatal("Failed to create consumer group", zap.Error(err))
	}

	handler := func(ctx context.Context, queued queue.QueuedMessage) error {
		msg, err := messageRepo.GetMessageByID(queued.ID)
		if err != nil {
			return fmt.Errorf("failed to load message %d: %w", queued.ID, err)
		}

		outcome, err := orchestrator.HandleMessage(ctx, msg)
		if err != nil {
			return err
		}
		if outcome == processor.OutcomeDeferred {
			// No ack: redelivery gives the message another pass once the
			// model can name a category.
			return fmt.Errorf("message %d deferred", msg.ID)
		}
		return nil
	}

	if err := streams.Consume(ctx, group, consumer, handler); err != nil {
		logger.Fatal("Consumer failed", zap.Error(err))
	}
	logger.Info("Queue classifier service stopped")
}
