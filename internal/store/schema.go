package store

const Schema = `
CREATE TABLE IF NOT EXISTS installed_packs (
	id TEXT PRIMARY KEY,
	version TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	local_path TEXT NOT NULL DEFAULT '',
	bytes_total INTEGER NOT NULL DEFAULT 0,
	bytes_downloaded INTEGER NOT NULL DEFAULT 0,
	error_code TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	installed_at DATETIME
);

CREATE TABLE IF NOT EXISTS books (
	id TEXT NOT NULL,
	pack_id TEXT NOT NULL,
	title TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (pack_id, id),
	FOREIGN KEY (pack_id) REFERENCES installed_packs(id)
);

CREATE TABLE IF NOT EXISTS sections (
	id TEXT NOT NULL,
	book_id TEXT NOT NULL,
	title TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0,
	file_path TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (book_id, id)
);

CREATE TABLE IF NOT EXISTS index_jobs (
	job_id TEXT PRIMARY KEY,
	pack_id TEXT NOT NULL,
	pack_version TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	cursor TEXT NOT NULL DEFAULT '',
	progress INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_index_jobs_status ON index_jobs(status);

CREATE VIRTUAL TABLE IF NOT EXISTS fts_titles USING fts5(
	book_id UNINDEXED,
	section_id UNINDEXED,
	segment_id UNINDEXED,
	text,
	tokenize='unicode61 remove_diacritics 2'
);

CREATE VIRTUAL TABLE IF NOT EXISTS fts_body USING fts5(
	book_id UNINDEXED,
	section_id UNINDEXED,
	segment_id UNINDEXED,
	text,
	tokenize='unicode61 remove_diacritics 2'
);

CREATE VIRTUAL TABLE IF NOT EXISTS fts_aphorisms USING fts5(
	book_id UNINDEXED,
	section_id UNINDEXED,
	segment_id UNINDEXED,
	text,
	tokenize='unicode61 remove_diacritics 2'
);
`

// DropSchema removes every table owned by the store. Used by Reset only.
const DropSchema = `
DROP TABLE IF EXISTS fts_aphorisms;
DROP TABLE IF EXISTS fts_body;
DROP TABLE IF EXISTS fts_titles;
DROP TABLE IF EXISTS index_jobs;
DROP TABLE IF EXISTS sections;
DROP TABLE IF EXISTS books;
DROP TABLE IF EXISTS installed_packs;
`
