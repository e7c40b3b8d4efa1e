// Package processor drives per-message classification: idempotency,
// category resolution and the persistence of classification and lead
// records.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/classifier"
	"github.com/noamzilo/whatsapp-miner/internal/models"
	"github.com/noamzilo/whatsapp-miner/internal/repository"
)

// Outcome is the terminal state reached for one message.
type Outcome int

const (
	// OutcomeAlreadyProcessed means the idempotency check short-circuited.
	OutcomeAlreadyProcessed Outcome = iota
	// OutcomeNonLead means the message was classified and is not a lead.
	OutcomeNonLead
	// OutcomeLead means classification and lead records were written.
	OutcomeLead
	// OutcomeDeferred means the message was left unprocessed for a later
	// pass (lead with no usable category after the repair attempt).
	OutcomeDeferred
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyProcessed:
		return "already_processed"
	case OutcomeNonLead:
		return "non_lead"
	case OutcomeLead:
		return "lead"
	case OutcomeDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// MessageClassifier is the LLM-backed classification surface the
// orchestrator depends on.
type MessageClassifier interface {
	Classify(ctx context.Context, messageText string, existingCategories []string, isRetry bool) models.ClassificationResult
	MatchCategory(ctx context.Context, messageText string, existingCategories []string) (string, bool)
}

// Orchestrator applies the classification state machine to one message at
// a time. All dependencies are injected; it owns no global state.
type Orchestrator struct {
	classifier         MessageClassifier
	messageRepo        repository.MessageRepository
	categoryRepo       repository.CategoryRepository
	intentTypeRepo     repository.IntentTypeRepository
	promptRepo         repository.PromptRepository
	classificationRepo repository.ClassificationRepository
	logger             *zap.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(
	cls MessageClassifier,
	messageRepo repository.MessageRepository,
	categoryRepo repository.CategoryRepository,
	intentTypeRepo repository.IntentTypeRepository,
	promptRepo repository.PromptRepository,
	classificationRepo repository.ClassificationRepository,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		classifier:         cls,
		messageRepo:        messageRepo,
		categoryRepo:       categoryRepo,
		intentTypeRepo:     intentTypeRepo,
		promptRepo:         promptRepo,
		classificationRepo: classificationRepo,
		logger:             logger,
	}
}

// HandleMessage classifies one message and persists the outcome.
// Re-encountering an already-processed message is a no-op, which
// reconciles at-least-once delivery with at-most-once processing.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg *models.Message) (Outcome, error) {
	if msg.LLMProcessed {
		o.logger.Debug("Message already processed, skipping",
			zap.Int64("message_id", msg.ID))
		return OutcomeAlreadyProcessed, nil
	}

	categories, err := o.categoryRepo.GetAllCategories()
	if err != nil {
		return OutcomeDeferred, fmt.Errorf("failed to fetch existing categories: %w", err)
	}
	categoryNames := make([]string, 0, len(categories))
	for _, cat := range categories {
		categoryNames = append(categoryNames, cat.Name)
	}

	result := o.classifier.Classify(ctx, msg.RawText, categoryNames, false)

	// The model sometimes flags a lead without naming the business type.
	// One bounded repair attempt with the be-specific emphasis.
	if result.IsLead && result.Category() == "" {
		o.logger.Info("Lead classified without a category, retrying for specificity",
			zap.Int64("message_id", msg.ID))
		result = o.classifier.Classify(ctx, msg.RawText, categoryNames, true)
	}

	if !result.IsLead {
		if err := o.messageRepo.MarkProcessed(msg.ID); err != nil {
			return OutcomeDeferred, fmt.Errorf("failed to mark message processed: %w", err)
		}
		msg.LLMProcessed = true
		o.logger.Info("Message classified as non-lead",
			zap.Int64("message_id", msg.ID),
			zap.String("reasoning", result.Reasoning))
		return OutcomeNonLead, nil
	}

	if result.Category() == "" {
		// Do not guess a bucket. Leave the message unprocessed so an
		// operator can re-run it later.
		o.logger.Warn("Lead still has no category after retry, leaving message unprocessed",
			zap.Int64("message_id", msg.ID))
		return OutcomeDeferred, nil
	}

	leadCategory, err := o.resolveCategory(ctx, msg, result.Category(), categoryNames)
	if err != nil {
		return OutcomeDeferred, err
	}

	intentType, err := o.intentTypeRepo.GetOrCreateIntentType(models.IntentLeadSeeking)
	if err != nil {
		return OutcomeDeferred, fmt.Errorf("failed to resolve intent type: %w", err)
	}

	prompt, err := o.promptRepo.GetOrCreatePrompt(
		classifier.DefaultPromptName, classifier.DefaultPromptText, classifier.DefaultPromptVersion)
	if err != nil {
		return OutcomeDeferred, fmt.Errorf("failed to resolve prompt template: %w", err)
	}

	rawOutput, err := json.Marshal(result)
	if err != nil {
		return OutcomeDeferred, fmt.Errorf("failed to encode raw LLM output: %w", err)
	}

	classification := &models.MessageIntentClassification{
		MessageID:        msg.ID,
		PromptTemplateID: prompt.ID,
		IntentTypeID:     intentType.ID,
		LeadCategoryID:   leadCategory.ID,
		RawLLMOutput:     rawOutput,
	}

	var groupID int64
	if msg.GroupID != nil {
		groupID = *msg.GroupID
	}
	lead := &models.DetectedLead{
		MessageID:      msg.ID,
		LeadCategoryID: leadCategory.ID,
		UserID:         msg.SenderID,
		GroupID:        groupID,
		LeadFor:        result.Description(),
	}

	// Classification, lead and the processed flag commit together, so a
	// fault here never leaves a half-written lead behind.
	err = o.classificationRepo.SaveLeadOutcome(classification, lead)
	if errors.Is(err, repository.ErrAlreadyClassified) {
		o.logger.Info("Another worker already classified this message",
			zap.Int64("message_id", msg.ID))
		msg.LLMProcessed = true
		return OutcomeAlreadyProcessed, nil
	}
	if err != nil {
		return OutcomeDeferred, fmt.Errorf("failed to persist lead outcome: %w", err)
	}
	msg.LLMProcessed = true

	o.logger.Info("Lead detected",
		zap.Int64("message_id", msg.ID),
		zap.String("category", leadCategory.Name),
		zap.String("lead_for", lead.LeadFor))

	return OutcomeLead, nil
}

// resolveCategory decides which category row a lead belongs to: an
// existing one the matcher recognized, or a lazily created one for the
// proposed slug.
func (o *Orchestrator) resolveCategory(ctx context.Context, msg *models.Message, proposed string, categoryNames []string) (*models.LeadCategory, error) {
	if matched, ok := o.classifier.MatchCategory(ctx, msg.RawText, categoryNames); ok {
		existing, err := o.categoryRepo.GetCategoryByName(matched)
		if err != nil {
			return nil, fmt.Errorf("failed to load matched category %q: %w", matched, err)
		}
		if existing != nil {
			o.logger.Info("Matched message to existing category",
				zap.Int64("message_id", msg.ID),
				zap.String("proposed", proposed),
				zap.String("matched", matched))
			return existing, nil
		}
	}

	created, err := o.categoryRepo.GetOrCreateCategory(proposed)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create category %q: %w", proposed, err)
	}
	return created, nil
}
