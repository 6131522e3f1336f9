package store

import "fmt"

// FTSTable names one of the three full-text tables.
type FTSTable string

const (
	TableTitles    FTSTable = "fts_titles"
	TableBody      FTSTable = "fts_body"
	TableAphorisms FTSTable = "fts_aphorisms"
)

var ftsTables = []FTSTable{TableTitles, TableBody, TableAphorisms}

// FTSRow is one searchable segment keyed by (book, section, segment).
type FTSRow struct {
	BookID    string `json:"book_id" db:"book_id"`
	SectionID string `json:"section_id" db:"section_id"`
	SegmentID string `json:"segment_id" db:"segment_id"`
	Text      string `json:"text" db:"text"`
}

// DeleteSectionRows removes every full-text row for a section across all
// three tables. Run before reinserting so re-indexing a section stays
// idempotent.
func (db *DB) DeleteSectionRows(bookID, sectionID string) error {
	for _, table := range ftsTables {
		query := fmt.Sprintf(`DELETE FROM %s WHERE book_id = ? AND section_id = ?`, table)
		if _, err := db.Exec(query, bookID, sectionID); err != nil {
			return fmt.Errorf("delete %s rows: %w", table, err)
		}
	}
	return nil
}

// InsertFTSRows inserts a batch of rows into one full-text table. Callers
// wrap each batch in its own transaction via RunInTx.
func (db *DB) InsertFTSRows(table FTSTable, rows []FTSRow) error {
	query := fmt.Sprintf(`INSERT INTO %s (book_id, section_id, segment_id, text)
		VALUES (:book_id, :section_id, :segment_id, :text)`, table)
	for _, row := range rows {
		if _, err := db.NamedExec(query, row); err != nil {
			return fmt.Errorf("insert %s row: %w", table, err)
		}
	}
	return nil
}

// CountFTSRows returns the number of rows in one full-text table.
func (db *DB) CountFTSRows(table FTSTable) (int, error) {
	var count int
	err := db.Get(&count, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table))
	return count, err
}

// Search runs a full-text match against one table, best matches first.
func (db *DB) Search(table FTSTable, query string, limit int) ([]FTSRow, error) {
	var rows []FTSRow
	q := fmt.Sprintf(`SELECT book_id, section_id, segment_id, text
		FROM %s WHERE %s MATCH ? ORDER BY bm25(%s) LIMIT ?`, table, table, table)
	err := db.Select(&rows, q, query, limit)
	return rows, err
}
