package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/models"
)

type UserRepository interface {
	GetOrCreateUser(whatsappID, displayName string) (*models.User, error)
}

type GroupRepository interface {
	GetOrCreateGroup(whatsappGroupID, groupName string) (*models.Group, error)
}

type userRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewUserRepository(db *sqlx.DB, logger *zap.Logger) UserRepository {
	return &userRepository{db: db, logger: logger}
}

func (r *userRepository) GetOrCreateUser(whatsappID, displayName string) (*models.User, error) {
	var user models.User
	query := `SELECT id, whatsapp_id, display_name, created_at FROM whatsapp_users WHERE whatsapp_id = $1`
	err := r.db.Get(&user, query, whatsappID)
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	user = models.User{WhatsAppID: whatsappID, DisplayName: displayName, CreatedAt: time.Now().UTC()}
	insert := `INSERT INTO whatsapp_users (whatsapp_id, display_name, created_at)
	           VALUES ($1, $2, $3)
	           ON CONFLICT (whatsapp_id) DO NOTHING
	           RETURNING id`
	insertErr := r.db.QueryRowx(insert, user.WhatsAppID, user.DisplayName, user.CreatedAt).Scan(&user.ID)
	if errors.Is(insertErr, sql.ErrNoRows) {
		if err := r.db.Get(&user, query, whatsappID); err != nil {
			return nil, err
		}
		return &user, nil
	}
	if insertErr != nil {
		return nil, insertErr
	}
	return &user, nil
}

type groupRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewGroupRepository(db *sqlx.DB, logger *zap.Logger) GroupRepository {
	return &groupRepository{db: db, logger: logger}
}

func (r *groupRepository) GetOrCreateGroup(whatsappGroupID, groupName string) (*models.Group, error) {
	var group models.Group
	query := `SELECT id, whatsapp_group_id, group_name, location_city, location_neighbourhood, created_at
	          FROM whatsapp_groups WHERE whatsapp_group_id = $1`
	err := r.db.Get(&group, query, whatsappGroupID)
	if err == nil {
		return &group, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	group = models.Group{WhatsAppGroupID: whatsappGroupID, GroupName: groupName, CreatedAt: time.Now().UTC()}
	insert := `INSERT INTO whatsapp_groups (whatsapp_group_id, group_name, created_at)
	           VALUES ($1, $2, $3)
	           ON CONFLICT (whatsapp_group_id) DO NOTHING
	           RETURNING id`
	insertErr := r.db.QueryRowx(insert, group.WhatsAppGroupID, group.GroupName, group.CreatedAt).Scan(&group.ID)
	if errors.Is(insertErr, sql.ErrNoRows) {
		if err := r.db.Get(&group, query, whatsappGroupID); err != nil {
			return nil, err
		}
		return &group, nil
	}
	if insertErr != nil {
		return nil, insertErr
	}
	return &group, nil
}
