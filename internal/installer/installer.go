// Package installer orchestrates fetch, integrity verification, atomic
// install, and catalog finalization for content packs.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jmfontan/libropack/internal/config"
	"github.com/jmfontan/libropack/internal/domain"
	"github.com/jmfontan/libropack/internal/httpclient"
	"github.com/jmfontan/libropack/internal/logger"
	"github.com/jmfontan/libropack/internal/manifest"
	"github.com/jmfontan/libropack/internal/storage"
	"github.com/jmfontan/libropack/internal/store"
)

type Installer struct {
	Store  *store.DB
	Client *httpclient.Client
	Config *config.Config
	Logger *logger.Logger
}

func New(db *store.DB, client *httpclient.Client, cfg *config.Config, log *logger.Logger) *Installer {
	return &Installer{
		Store:  db,
		Client: client,
		Config: cfg,
		Logger: log.WithComponent("installer"),
	}
}

// InstallPack downloads, verifies, and installs one pack, then finalizes
// the catalog in a single transaction that also enqueues the index job.
//
// On failure the originating code and message are persisted to the pack row
// (best-effort) before the error is returned. Callers must serialize
// installs per pack id.
func (ins *Installer) InstallPack(ctx context.Context, url, packID, expectedSHA256 string) error {
	log := ins.Logger.WithPack(packID)

	if err := storage.EnsureDir(ins.Config.StagingDir()); err != nil {
		return domain.NewPackError(classifyStorageErr(err), "failed to create staging root", err)
	}

	archivePath := filepath.Join(ins.Config.StagingDir(), packID+".zip.part")

	var stagingDir string
	err := ins.install(ctx, url, packID, expectedSHA256, archivePath, &stagingDir)

	// The downloaded archive never outlives the install attempt.
	if rmErr := storage.RemoveFile(archivePath); rmErr != nil && !storage.IsNotExist(rmErr) {
		log.Warn("failed to remove downloaded archive", "path", archivePath, "error", rmErr)
	}

	if err != nil {
		packErr := asPackError(err)
		log.Error("install failed", "code", packErr.Code, "error", packErr)

		// Best-effort: a secondary failure here is logged, not escalated.
		msg := packErr.Message
		if uerr := ins.Store.UpdatePackStatus(packID, nil, domain.PackStatusFailed, store.StatusFields{
			ErrorCode:    &packErr.Code,
			ErrorMessage: &msg,
		}); uerr != nil {
			log.Error("failed to persist failure status", "error", uerr)
		}

		if stagingDir != "" {
			if rmErr := storage.RemoveAll(stagingDir); rmErr != nil {
				log.Warn("failed to remove staging dir", "path", stagingDir, "error", rmErr)
			}
		}
		return packErr
	}

	log.Info("pack installed", "url", url)
	return nil
}

func (ins *Installer) install(ctx context.Context, url, packID, expectedSHA256, archivePath string, stagingDir *string) error {
	// Stage 1: download with throttled progress persisted to the catalog.
	if err := ins.Store.UpdatePackStatus(packID, nil, domain.PackStatusDownloading, store.StatusFields{}); err != nil {
		return domain.NewPackError(domain.ErrCodeDBError, "failed to record download start", err)
	}

	progress := func(downloaded, total int64) {
		fields := store.StatusFields{BytesDownloaded: &downloaded}
		if total >= 0 {
			fields.BytesTotal = &total
		}
		if err := ins.Store.UpdatePackStatus(packID, nil, domain.PackStatusDownloading, fields); err != nil {
			ins.Logger.WithPack(packID).Warn("failed to persist download progress", "error", err)
		}
	}

	if err := ins.Client.Download(ctx, url, archivePath, progress); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return domain.NewPackError(domain.ErrCodeHTTPStatusNotOK,
				fmt.Sprintf("server returned status %d", statusErr.StatusCode), err)
		}
		return domain.NewPackError(domain.ErrCodeDownloadFailed, "download failed", err)
	}

	// Stage 2: whole-archive integrity gate, before any extraction.
	if err := ins.Store.UpdatePackStatus(packID, nil, domain.PackStatusVerifying, store.StatusFields{}); err != nil {
		return domain.NewPackError(domain.ErrCodeDBError, "failed to record verify start", err)
	}

	ok, err := storage.VerifyFile(archivePath, expectedSHA256)
	if err != nil {
		return domain.NewPackError(classifyStorageErr(err), "failed to hash archive", err)
	}
	if !ok {
		return domain.NewPackError(domain.ErrCodeZipShaMismatch, "archive sha256 does not match expected", nil)
	}

	// Stage 3: extract into a unique staging dir, never the install path.
	*stagingDir = filepath.Join(ins.Config.StagingDir(), fmt.Sprintf("%s_%d", packID, time.Now().UnixNano()))
	if err := storage.Unzip(archivePath, *stagingDir); err != nil {
		return domain.NewPackError(domain.ErrCodeUnzipFailed, "failed to extract archive", err)
	}

	// Stage 4: manifest validation.
	m, err := manifest.Load(*stagingDir)
	if err != nil {
		if errors.Is(err, manifest.ErrMissing) {
			return domain.NewPackError(domain.ErrCodeManifestMissing, "manifest.json not found in pack", err)
		}
		return domain.NewPackError(domain.ErrCodeManifestInvalid, "manifest could not be parsed", err)
	}
	if err := m.Validate(packID); err != nil {
		return domain.NewPackError(domain.ErrCodeManifestInvalid, err.Error(), err)
	}

	// Stage 5: per-file integrity. Catches extraction-level corruption the
	// archive hash cannot.
	for _, fe := range m.Integrity.Files {
		path := filepath.Join(*stagingDir, filepath.FromSlash(fe.Path))
		if _, statErr := os.Stat(path); statErr != nil {
			return domain.NewPackError(domain.ErrCodeCorruptPack,
				fmt.Sprintf("listed file %s missing from pack", fe.Path), statErr)
		}
		ok, hashErr := storage.VerifyFile(path, fe.SHA256)
		if hashErr != nil {
			return domain.NewPackError(classifyStorageErr(hashErr),
				fmt.Sprintf("failed to hash %s", fe.Path), hashErr)
		}
		if !ok {
			return domain.NewPackError(domain.ErrCodeFileShaMismatch,
				fmt.Sprintf("sha256 mismatch for %s", fe.Path), nil)
		}
	}

	// Stage 6: atomic swap. Old install goes to trash first, then staging is
	// renamed into place, so readers only ever see a complete tree.
	if err := ins.Store.UpdatePackStatus(packID, nil, domain.PackStatusInstalling, store.StatusFields{}); err != nil {
		return domain.NewPackError(domain.ErrCodeDBError, "failed to record install start", err)
	}

	if err := storage.EnsureDir(ins.Config.InstallDir()); err != nil {
		return domain.NewPackError(classifyStorageErr(err), "failed to create install root", err)
	}

	installPath := filepath.Join(ins.Config.InstallDir(), packID)
	var trashPath string
	if _, statErr := os.Stat(installPath); statErr == nil {
		if err := storage.EnsureDir(ins.Config.TrashDir()); err != nil {
			return domain.NewPackError(classifyStorageErr(err), "failed to create trash root", err)
		}
		trashPath = filepath.Join(ins.Config.TrashDir(), fmt.Sprintf("%s_%d", packID, time.Now().UnixNano()))
		if err := storage.MoveDir(installPath, trashPath); err != nil {
			return domain.NewPackError(classifyStorageErr(err), "failed to move old install to trash", err)
		}
	}

	if err := storage.MoveDir(*stagingDir, installPath); err != nil {
		return domain.NewPackError(classifyStorageErr(err), "failed to promote staging dir", err)
	}
	*stagingDir = "" // consumed by the rename

	// Stage 7: catalog finalize. Books, pack row, and the index job become
	// visible together or not at all.
	books := make([]domain.Book, 0, len(m.Books))
	for _, b := range m.Books {
		books = append(books, domain.Book{
			ID:        b.BookID,
			PackID:    packID,
			Title:     b.Title,
			SortOrder: b.SortOrder,
		})
	}

	now := time.Now()
	job := &domain.IndexJob{
		JobID:       uuid.New().String(),
		PackID:      packID,
		PackVersion: m.PackVersion,
		Status:      domain.IndexJobPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = ins.Store.RunInTx(ctx, func(tx *store.DB) error {
		if err := tx.ReplaceBooks(packID, books); err != nil {
			return err
		}
		if err := tx.FinalizePackInstalled(packID, m.PackVersion, installPath); err != nil {
			return err
		}
		return tx.CreateIndexJob(job)
	})
	if err != nil {
		return domain.NewPackError(domain.ErrCodeDBError, "failed to finalize catalog", err)
	}

	// The trashed copy is the rollback source until the finalize commits;
	// only now is it safe to drop.
	if trashPath != "" {
		if rmErr := storage.RemoveAll(trashPath); rmErr != nil {
			ins.Logger.WithPack(packID).Warn("failed to remove trashed install", "path", trashPath, "error", rmErr)
		}
	}

	return nil
}

// asPackError normalizes any error into a PackError, defaulting to UNKNOWN.
func asPackError(err error) *domain.PackError {
	var packErr *domain.PackError
	if errors.As(err, &packErr) {
		return packErr
	}
	return domain.NewPackError(domain.ErrCodeUnknown, err.Error(), err)
}

// classifyStorageErr distinguishes a full disk from other storage failures.
func classifyStorageErr(err error) domain.PackErrorCode {
	if errors.Is(err, syscall.ENOSPC) {
		return domain.ErrCodeDiskFull
	}
	return domain.ErrCodeUnknown
}
