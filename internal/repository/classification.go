package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/models"
)

// ErrAlreadyClassified reports that a classification row already exists
// for the message, meaning another worker committed the outcome first.
var ErrAlreadyClassified = errors.New("message already classified")

type ClassificationRepository interface {
	SaveLeadOutcome(c *models.MessageIntentClassification, lead *models.DetectedLead) error
	CountClassificationsForMessage(messageID int64) (int, error)
	DeleteAllClassifications() (int64, error)
}

type LeadRepository interface {
	GetLeadByClassificationID(classificationID int64) (*models.DetectedLead, error)
	CountLeads() (int, error)
	DeleteAllLeads() (int64, error)
}

type classificationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewClassificationRepository(db *sqlx.DB, logger *zap.Logger) ClassificationRepository {
	return &classificationRepository{db: db, logger: logger}
}

// SaveLeadOutcome writes the classification record, the detected lead and
// the message's processed flag in one transaction: either the whole
// outcome commits or none of it does, so a fault mid-write leaves the
// message unprocessed with no orphan rows. The unique constraint on
// message_id turns a race between two workers into ErrAlreadyClassified
// for the loser instead of duplicate rows. Sets c.ID, lead.ID and
// lead.ClassificationID on success.
func (r *classificationRepository) SaveLeadOutcome(c *models.MessageIntentClassification, lead *models.DetectedLead) error {
	if c.ClassifiedAt.IsZero() {
		c.ClassifiedAt = time.Now().UTC()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertClassification := `INSERT INTO message_intent_classifications (message_id, prompt_template_id, intent_type_id, lead_category_id, raw_llm_output, classified_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (message_id) DO NOTHING
	          RETURNING id`
	err = tx.QueryRowx(insertClassification, c.MessageID, c.PromptTemplateID, c.IntentTypeID,
		c.LeadCategoryID, []byte(c.RawLLMOutput), c.ClassifiedAt).Scan(&c.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAlreadyClassified
	}
	if err != nil {
		return err
	}

	lead.ClassificationID = c.ID
	insertLead := `INSERT INTO detected_leads (message_id, lead_category_id, classification_id, user_id, group_id, lead_for, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := tx.QueryRowx(insertLead, lead.MessageID, lead.LeadCategoryID, lead.ClassificationID,
		lead.UserID, lead.GroupID, lead.LeadFor, lead.CreatedAt).Scan(&lead.ID); err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE whatsapp_messages SET llm_processed = TRUE WHERE id = $1`, c.MessageID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *classificationRepository) CountClassificationsForMessage(messageID int64) (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM message_intent_classifications WHERE message_id = $1`, messageID)
	return count, err
}

// DeleteAllClassifications wipes the classification audit trail. Admin
// reset tooling only.
func (r *classificationRepository) DeleteAllClassifications() (int64, error) {
	res, err := r.db.Exec(`DELETE FROM message_intent_classifications`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type leadRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewLeadRepository(db *sqlx.DB, logger *zap.Logger) LeadRepository {
	return &leadRepository{db: db, logger: logger}
}

func (r *leadRepository) GetLeadByClassificationID(classificationID int64) (*models.DetectedLead, error) {
	var lead models.DetectedLead
	query := `SELECT id, message_id, lead_category_id, classification_id, user_id, group_id, lead_for, created_at
	          FROM detected_leads WHERE classification_id = $1`
	if err := r.db.Get(&lead, query, classificationID); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *leadRepository) CountLeads() (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM detected_leads`)
	return count, err
}

// DeleteAllLeads wipes detected leads. Admin reset tooling only.
func (r *leadRepository) DeleteAllLeads() (int64, error) {
	res, err := r.db.Exec(`DELETE FROM detected_leads`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
