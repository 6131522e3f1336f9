package store

import (
	"database/sql"
	"time"

	"github.com/jmfontan/libropack/internal/domain"
)

// StatusFields are the optional columns merged by UpdatePackStatus. A nil
// field preserves the stored value; a non-nil field (including an explicit
// zero) overwrites it. Interleaved partial updates therefore never erase
// each other's writes.
type StatusFields struct {
	BytesTotal      *int64
	BytesDownloaded *int64
	ErrorCode       *domain.PackErrorCode
	ErrorMessage    *string
	LocalPath       *string
}

// EnsurePack guarantees a row exists for the pack id.
func (db *DB) EnsurePack(packID string) error {
	_, err := db.Exec(
		`INSERT OR IGNORE INTO installed_packs (id, status, updated_at) VALUES (?, ?, ?)`,
		packID, domain.PackStatusNotInstalled, time.Now(),
	)
	return err
}

// UpdatePackStatus transitions a pack's status and merges the optional
// fields into the existing row.
func (db *DB) UpdatePackStatus(packID string, version *string, status domain.PackStatus, fields StatusFields) error {
	if err := db.EnsurePack(packID); err != nil {
		return err
	}
	query := `UPDATE installed_packs SET
		status = ?,
		version = COALESCE(?, version),
		bytes_total = COALESCE(?, bytes_total),
		bytes_downloaded = COALESCE(?, bytes_downloaded),
		error_code = COALESCE(?, error_code),
		error_message = COALESCE(?, error_message),
		local_path = COALESCE(?, local_path),
		updated_at = ?
	WHERE id = ?`
	_, err := db.Exec(query,
		status, version,
		fields.BytesTotal, fields.BytesDownloaded,
		fields.ErrorCode, fields.ErrorMessage, fields.LocalPath,
		time.Now(), packID,
	)
	return err
}

// FinalizePackInstalled upserts the pack to INSTALLED with cleared error
// fields. Intended to run inside the install finalize transaction.
func (db *DB) FinalizePackInstalled(packID, version, localPath string) error {
	if err := db.EnsurePack(packID); err != nil {
		return err
	}
	now := time.Now()
	query := `UPDATE installed_packs SET
		status = ?,
		version = ?,
		local_path = ?,
		error_code = '',
		error_message = '',
		updated_at = ?,
		installed_at = ?
	WHERE id = ?`
	_, err := db.Exec(query, domain.PackStatusInstalled, version, localPath, now, now, packID)
	return err
}

// GetPack returns the pack row, or nil if the pack was never seen.
func (db *DB) GetPack(packID string) (*domain.InstalledPack, error) {
	pack := &domain.InstalledPack{}
	err := db.Get(pack, `SELECT id, version, status, local_path, bytes_total, bytes_downloaded,
		error_code, error_message, updated_at, installed_at
		FROM installed_packs WHERE id = ?`, packID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pack, nil
}

// ListPacks returns all known packs ordered by id.
func (db *DB) ListPacks() ([]*domain.InstalledPack, error) {
	var packs []*domain.InstalledPack
	err := db.Select(&packs, `SELECT id, version, status, local_path, bytes_total, bytes_downloaded,
		error_code, error_message, updated_at, installed_at
		FROM installed_packs ORDER BY id`)
	return packs, err
}
