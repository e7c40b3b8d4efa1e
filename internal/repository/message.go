package repository

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/models"
)

type MessageRepository interface {
	SaveMessage(msg *models.Message) error
	GetMessageByID(id int64) (*models.Message, error)
	GetMessageByExternalID(messageID string) (*models.Message, error)
	GetUnclassifiedMessages(limit int) ([]*models.Message, error)
	MarkProcessed(id int64) error
	ResetProcessed() (int64, error)
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

const messageColumns = `id, message_id, sender_id, group_id, timestamp, raw_text, message_type, is_forwarded, is_real, llm_processed`

// SaveMessage inserts a message. A duplicate external message id is a
// benign race with another consumer: the insert is skipped and the
// existing row's id is loaded into msg.
func (r *messageRepository) SaveMessage(msg *models.Message) error {
	query := `INSERT INTO whatsapp_messages (message_id, sender_id, group_id, timestamp, raw_text, message_type, is_forwarded, is_real, llm_processed)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (message_id) DO NOTHING
	          RETURNING id`
	err := r.db.QueryRowx(query, msg.MessageID, msg.SenderID, msg.GroupID, msg.Timestamp,
		msg.RawText, msg.MessageType, msg.IsForwarded, msg.IsReal, msg.LLMProcessed).Scan(&msg.ID)
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := r.GetMessageByExternalID(msg.MessageID)
		if getErr != nil {
			return getErr
		}
		r.logger.Info("Message already exists, skipping insert",
			zap.String("message_id", msg.MessageID))
		*msg = *existing
		return nil
	}
	return err
}

func (r *messageRepository) GetMessageByID(id int64) (*models.Message, error) {
	var msg models.Message
	query := `SELECT ` + messageColumns + ` FROM whatsapp_messages WHERE id = $1`
	if err := r.db.Get(&msg, query, id); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) GetMessageByExternalID(messageID string) (*models.Message, error) {
	var msg models.Message
	query := `SELECT ` + messageColumns + ` FROM whatsapp_messages WHERE message_id = $1`
	if err := r.db.Get(&msg, query, messageID); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) GetUnclassifiedMessages(limit int) ([]*models.Message, error) {
	var messages []*models.Message
	query := `SELECT ` + messageColumns + ` FROM whatsapp_messages WHERE llm_processed = FALSE ORDER BY id LIMIT $1`
	if err := r.db.Select(&messages, query, limit); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) MarkProcessed(id int64) error {
	_, err := r.db.Exec(`UPDATE whatsapp_messages SET llm_processed = TRUE WHERE id = $1`, id)
	return err
}

// ResetProcessed clears the processed flag on every message so the whole
// history can be re-classified. Used by the admin reset tool only.
func (r *messageRepository) ResetProcessed() (int64, error) {
	res, err := r.db.Exec(`UPDATE whatsapp_messages SET llm_processed = FALSE WHERE llm_processed = TRUE`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
