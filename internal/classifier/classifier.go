// Package classifier decides whether a WhatsApp message is a business
// lead by prompting an LLM, repairing malformed output and validating the
// category it proposes.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/category"
	"github.com/noamzilo/whatsapp-miner/internal/llm"
	"github.com/noamzilo/whatsapp-miner/internal/models"
)

// Messages shorter than this (trimmed) are never leads and never reach
// the LLM.
const MinClassifiableLength = 8

const shortMessageReasoning = "Message too short (under 8 characters) to be a lead"

var jsonSpanRe = regexp.MustCompile(`(?s)\{.*\}`)

// Classifier turns raw message text into a ClassificationResult. Provider
// failures degrade to a negative result; Classify never returns an error.
type Classifier struct {
	provider   llm.Provider
	retry      llm.RetryPolicy
	promptText string
	logger     *zap.Logger
}

// New creates a Classifier using the given prompt template text as task
// definition. An empty promptText falls back to the default template.
func New(provider llm.Provider, retry llm.RetryPolicy, promptText string, logger *zap.Logger) *Classifier {
	if promptText == "" {
		promptText = DefaultPromptText
	}
	return &Classifier{
		provider:   provider,
		retry:      retry,
		promptText: promptText,
		logger:     logger,
	}
}

// Classify classifies a single message. existingCategories is the current
// taxonomy, passed to the model so it reuses known categories. isRetry
// marks the bounded second attempt after the model returned a lead with
// no category.
func (c *Classifier) Classify(ctx context.Context, messageText string, existingCategories []string, isRetry bool) models.ClassificationResult {
	if utf8.RuneCountInString(strings.TrimSpace(messageText)) < MinClassifiableLength {
		return models.ClassificationResult{
			IsLead:    false,
			Reasoning: shortMessageReasoning,
		}
	}

	systemPrompt := BuildClassificationSystemPrompt(c.promptText, existingCategories, isRetry)
	userPrompt := BuildClassificationUserPrompt(messageText)

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Info("Retrying classification",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", c.retry.MaxAttempts))
			c.retry.Wait(attempt - 1)
		}

		content, err := c.provider.Complete(ctx, systemPrompt, userPrompt)
		if err != nil {
			lastErr = err
			c.logger.Error("LLM classification call failed",
				zap.Error(err),
				zap.Int("attempt", attempt+1))
			continue
		}

		result, err := parseClassificationResult(content)
		if err != nil {
			lastErr = err
			c.logger.Warn("Failed to parse LLM response",
				zap.Error(err),
				zap.String("response", content),
				zap.Int("attempt", attempt+1))
			continue
		}

		return c.postProcess(result)
	}

	return models.ClassificationResult{
		IsLead:    false,
		Reasoning: fmt.Sprintf("Error in classification after %d attempts: %v", c.retry.MaxAttempts, lastErr),
	}
}

// parseClassificationResult attempts a strict parse of the completion,
// then falls back to extracting the first {...} span from responses that
// wrap the JSON in prose or markdown fences.
func parseClassificationResult(content string) (models.ClassificationResult, error) {
	clean := strings.TrimSpace(content)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var result models.ClassificationResult
	if err := json.Unmarshal([]byte(clean), &result); err == nil {
		return result, nil
	}

	span := jsonSpanRe.FindString(content)
	if span == "" {
		return result, fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(span), &result); err != nil {
		return result, fmt.Errorf("failed to parse extracted JSON: %w", err)
	}
	return result, nil
}

// postProcess normalizes the proposed category. A lead whose category
// fails validation is downgraded to non-lead: a message is never
// persisted as a lead with an unusable category.
func (c *Classifier) postProcess(result models.ClassificationResult) models.ClassificationResult {
	raw := result.Category()
	if raw == "" {
		return result
	}

	slug, ok := category.Validate(raw)
	if !ok {
		c.logger.Info("LLM proposed an invalid lead category, downgrading to non-lead",
			zap.String("proposed_category", raw))
		return models.ClassificationResult{
			IsLead:    false,
			Reasoning: fmt.Sprintf("Proposed lead category %q failed validation (too short or too generic); original reasoning: %s", raw, result.Reasoning),
		}
	}

	result.LeadCategory = &slug
	return result
}
