package models

import (
	"encoding/json"
	"time"
)

// LeadCategory represents a row in the 'lead_categories' table.
// Names are unique lowercase underscore slugs, e.g. "dentist".
type LeadCategory struct {
	ID                     int64  `db:"id"`
	Name                   string `db:"name"`
	Description            string `db:"description"`
	OpeningMessageTemplate string `db:"opening_message_template"`
}

// MessageIntentType represents a row in the 'message_intent_types' table.
// In steady state there are exactly two: "lead_seeking" and "general_message".
type MessageIntentType struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
}

// Intent type names used by the classification pipeline.
const (
	IntentLeadSeeking    = "lead_seeking"
	IntentGeneralMessage = "general_message"
)

// LeadClassificationPrompt represents a row in the 'lead_classification_prompts' table.
type LeadClassificationPrompt struct {
	ID           int64     `db:"id"`
	TemplateName string    `db:"template_name"`
	PromptText   string    `db:"prompt_text"`
	Version      string    `db:"version"`
	CreatedAt    time.Time `db:"created_at"`
}

// MessageIntentClassification represents a row in the
// 'message_intent_classifications' table. One row is written per lead
// message; non-lead messages get no row.
type MessageIntentClassification struct {
	ID               int64           `db:"id"`
	MessageID        int64           `db:"message_id"`
	PromptTemplateID int64           `db:"prompt_template_id"`
	IntentTypeID     int64           `db:"intent_type_id"`
	LeadCategoryID   int64           `db:"lead_category_id"`
	RawLLMOutput     json.RawMessage `db:"raw_llm_output"`
	ClassifiedAt     time.Time       `db:"classified_at"`
}

// DetectedLead represents a row in the 'detected_leads' table.
// One-to-one with its classification record.
type DetectedLead struct {
	ID               int64     `db:"id"`
	MessageID        int64     `db:"message_id"`
	LeadCategoryID   int64     `db:"lead_category_id"`
	ClassificationID int64     `db:"classification_id"`
	UserID           int64     `db:"user_id"`
	GroupID          int64     `db:"group_id"`
	LeadFor          string    `db:"lead_for"`
	CreatedAt        time.Time `db:"created_at"`
}

// ClassificationResult is the structured output the LLM is asked to emit
// for a single message. It is stored verbatim as the classification's
// raw_llm_output for audit.
type ClassificationResult struct {
	IsLead          bool    `json:"is_lead"`
	LeadCategory    *string `json:"lead_category"`
	LeadDescription *string `json:"lead_description"`
	Reasoning       string  `json:"reasoning"`
}

// Category returns the lead category or "" when absent.
func (r ClassificationResult) Category() string {
	if r.LeadCategory == nil {
		return ""
	}
	return *r.LeadCategory
}

// Description returns the lead description or "" when absent.
func (r ClassificationResult) Description() string {
	if r.LeadDescription == nil {
		return ""
	}
	return *r.LeadDescription
}
