package store

// schema is applied once at startup. SQLite's relaxed typing lets every
// table stay a single CREATE TABLE with JSON-encoded columns for the
// repeated/nested fields (why_persists, agent_audit, tag multisets, etc.)
// rather than a full normalized tag/audit schema — mirrors the teacher's
// preference for a handful of wide tables over a deep join graph.
const schema = `
CREATE TABLE IF NOT EXISTS claim_cards (
	id                     TEXT PRIMARY KEY,
	created_at             TIMESTAMP NOT NULL,
	updated_at             TIMESTAMP NOT NULL,
	claim_text             TEXT NOT NULL,
	claimant               TEXT,
	claim_type             TEXT,
	claim_type_category    TEXT,
	verdict                TEXT NOT NULL,
	short_answer           TEXT NOT NULL,
	deep_answer            TEXT,
	why_persists           TEXT,
	confidence_level       TEXT NOT NULL,
	confidence_explanation TEXT,
	agent_audit            TEXT,
	visible_in_audits      INTEGER NOT NULL DEFAULT 1,
	embedding              BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS sources (
	id                   TEXT PRIMARY KEY,
	claim_card_id        TEXT NOT NULL REFERENCES claim_cards(id),
	citation             TEXT,
	url                  TEXT,
	quote_text           TEXT,
	usage_context        TEXT,
	source_type          TEXT,
	verification_method  TEXT,
	verification_status  TEXT,
	content_type         TEXT,
	url_verified         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sources_claim_card_id ON sources(claim_card_id);

CREATE TABLE IF NOT EXISTS apologetics_tags (
	claim_card_id TEXT NOT NULL REFERENCES claim_cards(id),
	tag           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_apologetics_tags_claim_card_id ON apologetics_tags(claim_card_id);

CREATE TABLE IF NOT EXISTS category_tags (
	claim_card_id TEXT NOT NULL REFERENCES claim_cards(id),
	tag           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_category_tags_claim_card_id ON category_tags(claim_card_id);

CREATE TABLE IF NOT EXISTS agent_prompts (
	agent_name    TEXT PRIMARY KEY,
	llm_provider  TEXT NOT NULL,
	model_name    TEXT NOT NULL,
	system_prompt TEXT NOT NULL,
	temperature   REAL NOT NULL,
	max_tokens    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS topic_queue (
	id             TEXT PRIMARY KEY,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL,
	topic_text     TEXT NOT NULL,
	priority       INTEGER NOT NULL,
	status         TEXT NOT NULL,
	review_status  TEXT,
	source         TEXT,
	claim_card_ids TEXT,
	blog_post_id   TEXT,
	error_message  TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	scheduled_for  TIMESTAMP,
	admin_feedback TEXT
);
CREATE INDEX IF NOT EXISTS idx_topic_queue_status_priority ON topic_queue(status, priority DESC, created_at ASC);

CREATE TABLE IF NOT EXISTS blog_posts (
	id             TEXT PRIMARY KEY,
	created_at     TIMESTAMP NOT NULL,
	topic_queue_id TEXT NOT NULL REFERENCES topic_queue(id),
	title          TEXT NOT NULL,
	article_body   TEXT NOT NULL,
	claim_card_ids TEXT,
	published_at   TIMESTAMP,
	reviewed_by    TEXT,
	review_notes   TEXT
);

CREATE TABLE IF NOT EXISTS verified_sources (
	id                     TEXT PRIMARY KEY,
	created_at             TIMESTAMP NOT NULL,
	source_type            TEXT,
	title                  TEXT,
	author                 TEXT,
	publisher              TEXT,
	publication_date       TEXT,
	isbn                   TEXT,
	doi                    TEXT,
	url                    TEXT,
	content_snippet        TEXT,
	topic_keywords         TEXT,
	embedding              BLOB NOT NULL,
	verification_method    TEXT,
	verification_status    TEXT,
	normalized_identifier  TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS router_decisions (
	id                     TEXT PRIMARY KEY,
	created_at             TIMESTAMP NOT NULL,
	question_text          TEXT NOT NULL,
	reformulated_question  TEXT,
	conversation_context   TEXT,
	mode_selected          TEXT NOT NULL,
	claim_cards_referenced TEXT,
	search_candidates      TEXT,
	reasoning              TEXT,
	response_time_ms       INTEGER
);
`
