package models

import "time"

// Message represents a row in the 'whatsapp_messages' table.
type Message struct {
	ID           int64     `db:"id"`
	MessageID    string    `db:"message_id"` // WhatsApp message identifier, unique
	SenderID     int64     `db:"sender_id"`
	GroupID      *int64    `db:"group_id"` // Nullable for direct messages
	Timestamp    time.Time `db:"timestamp"`
	RawText      string    `db:"raw_text"`
	MessageType  string    `db:"message_type"`
	IsForwarded  bool      `db:"is_forwarded"`
	IsReal       bool      `db:"is_real"` // false for synthetic test messages
	LLMProcessed bool      `db:"llm_processed"`
}

// User represents a row in the 'whatsapp_users' table.
type User struct {
	ID          int64     `db:"id"`
	WhatsAppID  string    `db:"whatsapp_id"`
	DisplayName string    `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
}

// Group represents a row in the 'whatsapp_groups' table.
type Group struct {
	ID                    int64     `db:"id"`
	WhatsAppGroupID       string    `db:"whatsapp_group_id"`
	GroupName             string    `db:"group_name"`
	LocationCity          string    `db:"location_city"`
	LocationNeighbourhood string    `db:"location_neighbourhood"`
	CreatedAt             time.Time `db:"created_at"`
}
