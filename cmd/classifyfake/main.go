// Command classifyfake creates a synthetic message (is_real=false) and
// runs it through the live classification pipeline once. Smoke-tests the
// LLM integration against the real database without touching real
// message traffic.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/classifier"
	"github.com/noamzilo/whatsapp-miner/internal/config"
	"github.com/noamzilo/whatsapp-miner/internal/llm"
	"github.com/noamzilo/whatsapp-miner/internal/models"
	"github.com/noamzilo/whatsapp-miner/internal/processor"
	"github.com/noamzilo/whatsapp-miner/internal/repository"
)

func main() {
	text := flag.String("text", "Hi everyone! I'm looking for a good dentist in the area. Any recommendations?", "message text to classify")
	cfgPath := flag.String("config", "configs/config.yml", "path to config file")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	messageRepo := repository.NewMessageRepository(db, logger)
	categoryRepo := repository.NewCategoryRepository(db, logger)
	intentRepo := repository.NewIntentTypeRepository(db, logger)
	promptRepo := repository.NewPromptRepository(db, logger)
	classificationRepo := repository.NewClassificationRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)
	groupRepo := repository.NewGroupRepository(db, logger)

	provider, err := llm.NewGroqClient(llm.GroqConfig{
		APIKey:    cfg.Classifier.GroqAPIKey,
		ModelName: cfg.Classifier.ModelName,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	prompt, err := promptRepo.GetOrCreatePrompt(
		classifier.DefaultPromptName, classifier.DefaultPromptText, classifier.DefaultPromptVersion)
	if err != nil {
		logger.Fatal("Failed to load classification prompt", zap.Error(err))
	}

	cls := classifier.New(provider, llm.DefaultRetryPolicy(), prompt.PromptText, logger)
	orchestrator := processor.NewOrchestrator(
		cls, messageRepo, categoryRepo, intentRepo, promptRepo, classificationRepo, logger)

	user, err := userRepo.GetOrCreateUser("fake-user@c.us", "Fake Test User")
	if err != nil {
		logger.Fatal("Failed to create fake user", zap.Error(err))
	}
	group, err := groupRepo.GetOrCreateGroup("fake-group@g.us", "Fake Test Group")
	if err != nil {
		logger.Fatal("Failed to create fake group", zap.Error(err))
	}

	groupID := group.ID
	msg := &models.Message{
		MessageID:   "fake-" + uuid.NewString(),
		SenderID:    user.ID,
		GroupID:     &groupID,
		Timestamp:   time.Now().UTC(),
		RawText:     *text,
		MessageType: "text",
		IsReal:      false,
	}
	if err := messageRepo.SaveMessage(msg); err != nil {
		logger.Fatal("Failed to save fake message", zap.Error(err))
	}

	outcome, err := orchestrator.HandleMessage(context.Background(), msg)
	if err != nil {
		logger.Fatal("Classification failed", zap.Error(err))
	}

	logger.Info("Fake message classified",
		zap.Int64("message_id", msg.ID),
		zap.Stringer("outcome", outcome))
}
