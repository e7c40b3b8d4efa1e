package classifier

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const noMatchToken = "no_match"

// MatchCategory asks the model whether the message fits one of the
// existing categories before a brand-new one is minted, keeping the
// taxonomy from fragmenting into near-duplicates ("hair_salon" vs
// "hairdresser"). Returns the canonical stored name and true on a hit.
// Errors fail open to no-match: creating a fresh category beats blocking
// the pipeline.
func (c *Classifier) MatchCategory(ctx context.Context, messageText string, existingCategories []string) (string, bool) {
	if len(existingCategories) == 0 {
		return "", false
	}

	systemPrompt := BuildMatchSystemPrompt(existingCategories)
	userPrompt := BuildMatchUserPrompt(messageText)

	content, err := c.provider.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		c.logger.Warn("Category matching failed, falling back to new category",
			zap.Error(err))
		return "", false
	}

	answer := strings.ToLower(strings.TrimSpace(content))
	if answer == noMatchToken {
		return "", false
	}

	for _, name := range existingCategories {
		if strings.ToLower(name) == answer {
			return name, true
		}
	}

	return "", false
}
