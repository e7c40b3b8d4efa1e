package classifier

import (
	"fmt"
	"strings"
)

// DefaultPromptName and DefaultPromptVersion identify the prompt template
// row the classifier seeds and records against every classification.
const (
	DefaultPromptName    = "lead_classification"
	DefaultPromptVersion = "1.1"
)

// DefaultPromptText is the lead classification task definition stored in
// the lead_classification_prompts table when no row exists yet.
const DefaultPromptText = `You are a classifier for WhatsApp messages from local groups to identify potential business leads.

Your task is to identify when someone is actively seeking a specific local business or service. Focus on actionable leads where a business owner could reach out to offer their services.

For lead categories, be specific and actionable. Use precise business types like:
- dentist
- spanish_classes
- restaurant
- plumber
- electrician
- tutor
- hair_salon
- mechanic
- yoga_studio
- gym
- pet_groomer
- house_cleaner
- landscaper
- photographer
- lawyer
- accountant
- real_estate_agent

Avoid generic categories like "local_service" or "business". Instead, identify the specific type of business that would be interested in this lead.`

const outputSchemaInstruction = `IMPORTANT: You must respond with a valid JSON object that matches this exact structure:
{
    "is_lead": boolean - Set to true if the person is actively seeking a specific local business or service, false otherwise
    "lead_category": string or null - The specific type of business they're looking for (e.g., "dentist", "plumber", "restaurant"). Use null if not a lead
    "lead_description": string or null - A brief description of what they're seeking (e.g., "Looking for a dentist", "Need urgent plumbing help"). Use null if not a lead
    "reasoning": string - Brief explanation of why you classified it this way
}

The JSON must be properly formatted and all fields are required.`

const workedExamples = `Examples:
- "Hi everyone! I'm looking for a good dentist in the area. Any recommendations?" -> is_lead=true, lead_category="dentist"
- "Does anyone know a reliable plumber? My sink is leaking badly" -> is_lead=true, lead_category="plumber"
- "I just opened a new bakery on Main Street, come visit!" -> is_lead=false (offering, not seeking)
- "Good morning everyone, have a great day!" -> is_lead=false (general conversation)`

const retryEmphasis = `NOTE: A previous attempt at classifying this message produced a lead with no usable category. If this message is a lead you MUST name the specific type of business being sought (e.g. "dentist", "plumber"). Generic answers are not acceptable.`

// BuildClassificationSystemPrompt assembles the system instruction for one
// classification call: the versioned task definition, worked examples,
// the current taxonomy so the model reuses known categories instead of
// inventing near-duplicates, and the output schema. When isRetry is set,
// a prior attempt came back without a specific category and the prompt
// demands one.
func BuildClassificationSystemPrompt(promptText string, existingCategories []string, isRetry bool) string {
	var b strings.Builder
	b.WriteString(promptText)
	b.WriteString("\n\n")
	b.WriteString(workedExamples)

	if len(existingCategories) > 0 {
		b.WriteString("\n\nExisting lead categories already in use (prefer reusing one of these over inventing a near-duplicate): ")
		b.WriteString(strings.Join(existingCategories, ", "))
	}

	b.WriteString("\n\n")
	b.WriteString(outputSchemaInstruction)

	if isRetry {
		b.WriteString("\n\n")
		b.WriteString(retryEmphasis)
	}

	return b.String()
}

// BuildClassificationUserPrompt wraps the message text for the
// classification call.
func BuildClassificationUserPrompt(messageText string) string {
	return fmt.Sprintf(`Analyze this WhatsApp message and classify it:

Message: %s

Identify if this person is seeking a specific kind of local business or service. If yes, determine the exact type of business that would be interested in this person as a potential customer (lead).

Respond with ONLY a valid JSON object matching the structure above.`, messageText)
}

// BuildMatchSystemPrompt assembles the category-matching instruction
// presenting the full existing taxonomy.
func BuildMatchSystemPrompt(existingCategories []string) string {
	return fmt.Sprintf(`You are a helpful assistant that matches WhatsApp messages to existing lead categories.

Available categories: %s

Your task is to determine if the message matches any of the existing categories.
IMPORTANT: Consider the full context of the original message, not just the classification result.
The message may contain important details that help determine the best category match.

If it matches, return the exact category name from the list above.
If it doesn't match any existing category, return "no_match".

Respond with ONLY the category name or "no_match".`, strings.Join(existingCategories, ", "))
}

// BuildMatchUserPrompt wraps the original message for category matching.
// The original text is sent rather than the proposed category string
// because context disambiguates near-duplicates.
func BuildMatchUserPrompt(messageText string) string {
	return fmt.Sprintf(`Original message: %s

Which category does this message match? Consider the full context and meaning of the message.
Respond with only the category name or "no_match".`, messageText)
}
