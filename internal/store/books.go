package store

import (
	"github.com/jmfontan/libropack/internal/domain"
)

// ReplaceBooks deletes the pack's existing book rows and inserts the new
// set. Call inside RunInTx so a pack is never observed with a partial book
// list.
func (db *DB) ReplaceBooks(packID string, books []domain.Book) error {
	if _, err := db.Exec(`DELETE FROM books WHERE pack_id = ?`, packID); err != nil {
		return err
	}
	for _, b := range books {
		_, err := db.NamedExec(
			`INSERT INTO books (id, pack_id, title, sort_order) VALUES (:id, :pack_id, :title, :sort_order)`,
			b,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertSection records a discovered section. Insert-or-ignore keeps
// resumed index runs idempotent.
func (db *DB) UpsertSection(s domain.Section) error {
	_, err := db.NamedExec(
		`INSERT OR IGNORE INTO sections (id, book_id, title, sort_order, file_path)
		VALUES (:id, :book_id, :title, :sort_order, :file_path)`,
		s,
	)
	return err
}

// ListBooks returns the pack's books in sort order.
func (db *DB) ListBooks(packID string) ([]*domain.Book, error) {
	var books []*domain.Book
	err := db.Select(&books,
		`SELECT id, pack_id, title, sort_order FROM books WHERE pack_id = ? ORDER BY sort_order, id`,
		packID)
	return books, err
}

// ListSections returns a book's sections in sort order.
func (db *DB) ListSections(bookID string) ([]*domain.Section, error) {
	var sections []*domain.Section
	err := db.Select(&sections,
		`SELECT id, book_id, title, sort_order, file_path FROM sections WHERE book_id = ? ORDER BY sort_order, id`,
		bookID)
	return sections, err
}

// CountBooks returns the number of book rows for a pack.
func (db *DB) CountBooks(packID string) (int, error) {
	var count int
	err := db.Get(&count, `SELECT COUNT(*) FROM books WHERE pack_id = ?`, packID)
	return count, err
}
