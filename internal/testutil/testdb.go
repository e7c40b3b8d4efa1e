// Package testutil provides an in-memory SQLite database mirroring the
// production schema for repository and pipeline tests.
package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE whatsapp_users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	whatsapp_id TEXT UNIQUE NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE whatsapp_groups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	whatsapp_group_id TEXT UNIQUE NOT NULL,
	group_name TEXT NOT NULL DEFAULT '',
	location_city TEXT NOT NULL DEFAULT '',
	location_neighbourhood TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE whatsapp_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT UNIQUE NOT NULL,
	sender_id INTEGER NOT NULL REFERENCES whatsapp_users(id),
	group_id INTEGER REFERENCES whatsapp_groups(id),
	timestamp TIMESTAMP NOT NULL,
	raw_text TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'text',
	is_forwarded BOOLEAN NOT NULL DEFAULT FALSE,
	is_real BOOLEAN NOT NULL DEFAULT TRUE,
	llm_processed BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE lead_categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	opening_message_template TEXT NOT NULL DEFAULT ''
);

CREATE TABLE message_intent_types (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE lead_classification_prompts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	template_name TEXT UNIQUE NOT NULL,
	prompt_text TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE message_intent_classifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER NOT NULL UNIQUE REFERENCES whatsapp_messages(id),
	prompt_template_id INTEGER NOT NULL REFERENCES lead_classification_prompts(id),
	intent_type_id INTEGER NOT NULL REFERENCES message_intent_types(id),
	lead_category_id INTEGER NOT NULL REFERENCES lead_categories(id),
	raw_llm_output BLOB,
	classified_at TIMESTAMP NOT NULL
);

CREATE TABLE detected_leads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id INTEGER NOT NULL REFERENCES whatsapp_messages(id),
	lead_category_id INTEGER NOT NULL REFERENCES lead_categories(id),
	classification_id INTEGER NOT NULL REFERENCES message_intent_classifications(id),
	user_id INTEGER NOT NULL REFERENCES whatsapp_users(id),
	group_id INTEGER NOT NULL REFERENCES whatsapp_groups(id),
	lead_for TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
`

// NewTestDB opens a fresh in-memory SQLite database with the full schema
// applied. The single-connection limit keeps every query on the same
// in-memory instance.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}
