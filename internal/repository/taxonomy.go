package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/models"
)

type CategoryRepository interface {
	GetAllCategories() ([]*models.LeadCategory, error)
	GetCategoryByName(name string) (*models.LeadCategory, error)
	GetOrCreateCategory(name string) (*models.LeadCategory, error)
}

type IntentTypeRepository interface {
	GetOrCreateIntentType(name string) (*models.MessageIntentType, error)
}

type categoryRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewCategoryRepository(db *sqlx.DB, logger *zap.Logger) CategoryRepository {
	return &categoryRepository{db: db, logger: logger}
}

func (r *categoryRepository) GetAllCategories() ([]*models.LeadCategory, error) {
	var categories []*models.LeadCategory
	query := `SELECT id, name, description, opening_message_template FROM lead_categories ORDER BY name`
	if err := r.db.Select(&categories, query); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetCategoryByName looks a category up case-insensitively. Returns
// (nil, nil) when no row exists.
func (r *categoryRepository) GetCategoryByName(name string) (*models.LeadCategory, error) {
	var cat models.LeadCategory
	query := `SELECT id, name, description, opening_message_template FROM lead_categories WHERE lower(name) = lower($1)`
	err := r.db.Get(&cat, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// GetOrCreateCategory returns the category with the given slug, creating
// it with default description and outreach template on first use. A
// unique-violation race with another worker is resolved by re-reading.
func (r *categoryRepository) GetOrCreateCategory(name string) (*models.LeadCategory, error) {
	existing, err := r.GetCategoryByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	cat := &models.LeadCategory{
		Name:                   name,
		Description:            fmt.Sprintf("Category for %s leads", name),
		OpeningMessageTemplate: fmt.Sprintf("Hi! I saw you're looking for %s services. How can I help?", name),
	}
	query := `INSERT INTO lead_categories (name, description, opening_message_template)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (name) DO NOTHING
	          RETURNING id`
	err = r.db.QueryRowx(query, cat.Name, cat.Description, cat.OpeningMessageTemplate).Scan(&cat.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// Another worker created it between our read and insert.
		return r.GetCategoryByName(name)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("Created new lead category", zap.String("name", name))
	return cat, nil
}

type intentTypeRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewIntentTypeRepository(db *sqlx.DB, logger *zap.Logger) IntentTypeRepository {
	return &intentTypeRepository{db: db, logger: logger}
}

func (r *intentTypeRepository) GetOrCreateIntentType(name string) (*models.MessageIntentType, error) {
	var intent models.MessageIntentType
	err := r.db.Get(&intent, `SELECT id, name, description FROM message_intent_types WHERE name = $1`, name)
	if err == nil {
		return &intent, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	intent = models.MessageIntentType{
		Name:        name,
		Description: fmt.Sprintf("Intent type for %s", name),
	}
	query := `INSERT INTO message_intent_types (name, description)
	          VALUES ($1, $2)
	          ON CONFLICT (name) DO NOTHING
	          RETURNING id`
	insertErr := r.db.QueryRowx(query, intent.Name, intent.Description).Scan(&intent.ID)
	if errors.Is(insertErr, sql.ErrNoRows) {
		if err := r.db.Get(&intent, `SELECT id, name, description FROM message_intent_types WHERE name = $1`, name); err != nil {
			return nil, err
		}
		return &intent, nil
	}
	if insertErr != nil {
		return nil, insertErr
	}
	return &intent, nil
}
