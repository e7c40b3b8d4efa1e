package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/models"
)

type PromptRepository interface {
	GetOrCreatePrompt(templateName, defaultText, version string) (*models.LeadClassificationPrompt, error)
}

type promptRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPromptRepository(db *sqlx.DB, logger *zap.Logger) PromptRepository {
	return &promptRepository{db: db, logger: logger}
}

// GetOrCreatePrompt looks up the prompt template by name, lazily seeding
// it with the default body on first use.
func (r *promptRepository) GetOrCreatePrompt(templateName, defaultText, version string) (*models.LeadClassificationPrompt, error) {
	var prompt models.LeadClassificationPrompt
	query := `SELECT id, template_name, prompt_text, version, created_at FROM lead_classification_prompts WHERE template_name = $1`
	err := r.db.Get(&prompt, query, templateName)
	if err == nil {
		return &prompt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	prompt = models.LeadClassificationPrompt{
		TemplateName: templateName,
		PromptText:   defaultText,
		Version:      version,
		CreatedAt:    time.Now().UTC(),
	}
	insert := `INSERT INTO lead_classification_prompts (template_name, prompt_text, version, created_at)
	           VALUES ($1, $2, $3, $4)
	           ON CONFLICT (template_name) DO NOTHING
	           RETURNING id`
	insertErr := r.db.QueryRowx(insert, prompt.TemplateName, prompt.PromptText, prompt.Version, prompt.CreatedAt).Scan(&prompt.ID)
	if errors.Is(insertErr, sql.ErrNoRows) {
		if err := r.db.Get(&prompt, query, templateName); err != nil {
			return nil, err
		}
		return &prompt, nil
	}
	if insertErr != nil {
		return nil, insertErr
	}

	r.logger.Info("Seeded default classification prompt",
		zap.String("template_name", templateName),
		zap.String("version", version))
	return &prompt, nil
}
