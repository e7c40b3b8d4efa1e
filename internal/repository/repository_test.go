package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/models"
	"github.com/noamzilo/whatsapp-miner/internal/testutil"
)

func seedMessage(t *testing.T, messageRepo MessageRepository, userRepo UserRepository, groupRepo GroupRepository, externalID, text string) *models.Message {
	t.Helper()
	user, err := userRepo.GetOrCreateUser("111@c.us", "Sender")
	require.NoError(t, err)
	group, err := groupRepo.GetOrCreateGroup("222@g.us", "Group")
	require.NoError(t, err)

	groupID := group.ID
	msg := &models.Message{
		MessageID:   externalID,
		SenderID:    user.ID,
		GroupID:     &groupID,
		Timestamp:   time.Now().UTC(),
		RawText:     text,
		MessageType: "text",
		IsReal:      true,
	}
	require.NoError(t, messageRepo.SaveMessage(msg))
	return msg
}

func TestSaveMessageDuplicateIsBenign(t *testing.T) {
	logger := zap.NewNop()
	db := testutil.NewTestDB(t)
	messageRepo := NewMessageRepository(db, logger)
	userRepo := NewUserRepository(db, logger)
	groupRepo := NewGroupRepository(db, logger)

	first := seedMessage(t, messageRepo, userRepo, groupRepo, "dup-1", "original text")

	dup := &models.Message{
		MessageID:   "dup-1",
		SenderID:    first.SenderID,
		GroupID:     first.GroupID,
		Timestamp:   time.Now().UTC(),
		RawText:     "racing duplicate",
		MessageType: "text",
		IsReal:      true,
	}
	require.NoError(t, messageRepo.SaveMessage(dup))
	assert.Equal(t, first.ID, dup.ID, "duplicate insert resolves to the existing row")
	assert.Equal(t, "original text", dup.RawText)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM whatsapp_messages`))
	assert.Equal(t, 1, count)
}

func TestGetUnclassifiedMessagesHonorsLimitAndOrder(t *testing.T) {
	logger := zap.NewNop()
	db := testutil.NewTestDB(t)
	messageRepo := NewMessageRepository(db, logger)
	userRepo := NewUserRepository(db, logger)
	groupRepo := NewGroupRepository(db, logger)

	for i := 0; i < 5; i++ {
		seedMessage(t, messageRepo, userRepo, groupRepo, fmt.Sprintf("m-%d", i), "some message text")
	}

	batch, err := messageRepo.GetUnclassifiedMessages(3)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Less(t, batch[0].ID, batch[1].ID)
	assert.Less(t, batch[1].ID, batch[2].ID)

	require.NoError(t, messageRepo.MarkProcessed(batch[0].ID))
	remaining, err := messageRepo.GetUnclassifiedMessages(10)
	require.NoError(t, err)
	assert.Len(t, remaining, 4)
}

func TestGetOrCreateCategoryIsCaseInsensitive(t *testing.T) {
	logger := zap.NewNop()
	db := testutil.NewTestDB(t)
	categoryRepo := NewCategoryRepository(db, logger)

	created, err := categoryRepo.GetOrCreateCategory("dentist")
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.Contains(t, created.Description, "dentist")
	assert.Contains(t, created.OpeningMessageTemplate, "dentist")

	found, err := categoryRepo.GetCategoryByName("DENTIST")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	again, err := categoryRepo.GetOrCreateCategory("dentist")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	all, err := categoryRepo.GetAllCategories()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetCategoryByNameMissingReturnsNil(t *testing.T) {
	db := testutil.NewTestDB(t)
	categoryRepo := NewCategoryRepository(db, zap.NewNop())

	found, err := categoryRepo.GetCategoryByName("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestGetOrCreateIntentType(t *testing.T) {
	db := testutil.NewTestDB(t)
	intentRepo := NewIntentTypeRepository(db, zap.NewNop())

	leadSeeking, err := intentRepo.GetOrCreateIntentType(models.IntentLeadSeeking)
	require.NoError(t, err)
	require.NotZero(t, leadSeeking.ID)

	again, err := intentRepo.GetOrCreateIntentType(models.IntentLeadSeeking)
	require.NoError(t, err)
	assert.Equal(t, leadSeeking.ID, again.ID)

	general, err := intentRepo.GetOrCreateIntentType(models.IntentGeneralMessage)
	require.NoError(t, err)
	assert.NotEqual(t, leadSeeking.ID, general.ID)
}

func TestGetOrCreatePromptSeedsDefault(t *testing.T) {
	db := testutil.NewTestDB(t)
	promptRepo := NewPromptRepository(db, zap.NewNop())

	prompt, err := promptRepo.GetOrCreatePrompt("lead_classification", "default prompt body", "1.1")
	require.NoError(t, err)
	require.NotZero(t, prompt.ID)
	assert.Equal(t, "default prompt body", prompt.PromptText)
	assert.Equal(t, "1.1", prompt.Version)

	// A second lookup returns the stored row, not a reseed.
	again, err := promptRepo.GetOrCreatePrompt("lead_classification", "different default", "2.0")
	require.NoError(t, err)
	assert.Equal(t, prompt.ID, again.ID)
	assert.Equal(t, "default prompt body", again.PromptText)
	assert.Equal(t, "1.1", again.Version)
}

// leadFixtures seeds the rows a lead outcome references.
func leadFixtures(t *testing.T, db *sqlx.DB) (msg *models.Message, classification *models.MessageIntentClassification, lead *models.DetectedLead) {
	t.Helper()
	logger := zap.NewNop()
	messageRepo := NewMessageRepository(db, logger)
	userRepo := NewUserRepository(db, logger)
	groupRepo := NewGroupRepository(db, logger)
	categoryRepo := NewCategoryRepository(db, logger)
	intentRepo := NewIntentTypeRepository(db, logger)
	promptRepo := NewPromptRepository(db, logger)

	msg = seedMessage(t, messageRepo, userRepo, groupRepo, "lo-1", "looking for a dentist")
	cat, err := categoryRepo.GetOrCreateCategory("dentist")
	require.NoError(t, err)
	intent, err := intentRepo.GetOrCreateIntentType(models.IntentLeadSeeking)
	require.NoError(t, err)
	prompt, err := promptRepo.GetOrCreatePrompt("lead_classification", "body", "1.1")
	require.NoError(t, err)

	classification = &models.MessageIntentClassification{
		MessageID:        msg.ID,
		PromptTemplateID: prompt.ID,
		IntentTypeID:     intent.ID,
		LeadCategoryID:   cat.ID,
		RawLLMOutput:     []byte(`{"is_lead": true}`),
	}
	lead = &models.DetectedLead{
		MessageID:      msg.ID,
		LeadCategoryID: cat.ID,
		UserID:         msg.SenderID,
		GroupID:        *msg.GroupID,
		LeadFor:        "Looking for a dentist",
	}
	return msg, classification, lead
}

func TestSaveLeadOutcomeCommitsEverythingTogether(t *testing.T) {
	logger := zap.NewNop()
	db := testutil.NewTestDB(t)
	classificationRepo := NewClassificationRepository(db, logger)
	leadRepo := NewLeadRepository(db, logger)
	messageRepo := NewMessageRepository(db, logger)

	msg, classification, lead := leadFixtures(t, db)

	require.NoError(t, classificationRepo.SaveLeadOutcome(classification, lead))
	require.NotZero(t, classification.ID)
	assert.Equal(t, classification.ID, lead.ClassificationID)

	// All three effects of the transaction are visible: classification
	// row, lead row, processed flag.
	count, err := classificationRepo.CountClassificationsForMessage(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	fetched, err := leadRepo.GetLeadByClassificationID(classification.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, fetched.ID)
	assert.Equal(t, "Looking for a dentist", fetched.LeadFor)

	stored, err := messageRepo.GetMessageByID(msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.LLMProcessed)
}

func TestSaveLeadOutcomeSecondWriterIsRejected(t *testing.T) {
	logger := zap.NewNop()
	db := testutil.NewTestDB(t)
	classificationRepo := NewClassificationRepository(db, logger)
	leadRepo := NewLeadRepository(db, logger)

	msg, classification, lead := leadFixtures(t, db)
	require.NoError(t, classificationRepo.SaveLeadOutcome(classification, lead))

	// A racing worker's attempt at the same message surfaces as the
	// benign duplicate condition and writes no second lead.
	duplicate := *classification
	duplicate.ID = 0
	duplicateLead := *lead
	duplicateLead.ID = 0
	duplicateLead.ClassificationID = 0
	err := classificationRepo.SaveLeadOutcome(&duplicate, &duplicateLead)
	assert.ErrorIs(t, err, ErrAlreadyClassified)

	count, err := classificationRepo.CountClassificationsForMessage(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	leadCount, err := leadRepo.CountLeads()
	require.NoError(t, err)
	assert.Equal(t, 1, leadCount)
}

func TestResetToolingClearsState(t *testing.T) {
	logger := zap.NewNop()
	db := testutil.NewTestDB(t)
	messageRepo := NewMessageRepository(db, logger)
	userRepo := NewUserRepository(db, logger)
	groupRepo := NewGroupRepository(db, logger)
	classificationRepo := NewClassificationRepository(db, logger)
	leadRepo := NewLeadRepository(db, logger)

	msg := seedMessage(t, messageRepo, userRepo, groupRepo, "res-1", "looking for a dentist")
	require.NoError(t, messageRepo.MarkProcessed(msg.ID))

	cleared, err := messageRepo.ResetProcessed()
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	unclassified, err := messageRepo.GetUnclassifiedMessages(10)
	require.NoError(t, err)
	assert.Len(t, unclassified, 1)

	deletedLeads, err := leadRepo.DeleteAllLeads()
	require.NoError(t, err)
	assert.Zero(t, deletedLeads)

	deletedClassifications, err := classificationRepo.DeleteAllClassifications()
	require.NoError(t, err)
	assert.Zero(t, deletedClassifications)
}
