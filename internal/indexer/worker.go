// Package indexer drains pending index jobs and populates the full-text
// tables with checkpointed, resumable progress.
package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmfontan/libropack/internal/config"
	"github.com/jmfontan/libropack/internal/domain"
	"github.com/jmfontan/libropack/internal/logger"
	"github.com/jmfontan/libropack/internal/manifest"
	"github.com/jmfontan/libropack/internal/store"
)

// batchYield is the cooperative pause between insert batches so indexing
// never monopolizes the host process.
const batchYield = 5 * time.Millisecond

type Worker struct {
	Store  *store.DB
	Config *config.Config
	Logger *logger.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func New(db *store.DB, cfg *config.Config, log *logger.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		Store:  db,
		Config: cfg,
		Logger: log.WithComponent("indexer"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// InitRecovery requeues every job left RUNNING by a prior crash. Call once
// at process start, before any RunWorker invocation.
func (w *Worker) InitRecovery() error {
	return w.Store.ResetRunningJobs()
}

// Start runs crash recovery and begins the background drain loop.
func (w *Worker) Start() {
	w.Logger.Info("starting index worker")

	if err := w.InitRecovery(); err != nil {
		w.Logger.Error("failed to reset running jobs", "error", err)
	}

	w.wg.Add(1)
	go w.loop()
}

// Stop halts the background loop and waits for the in-flight job to finish.
func (w *Worker) Stop() {
	w.Logger.Info("stopping index worker")
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) loop() {
	defer w.wg.Done()

	w.drain(w.ctx)

	ticker := time.NewTicker(w.Config.IndexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.drain(w.ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		processed, err := w.RunWorker(ctx)
		if err != nil {
			w.Logger.Error("worker run failed", "error", err)
			return
		}
		if !processed {
			return
		}
	}
}

// RunWorker claims and processes at most one PENDING job. Safe to invoke
// from multiple trigger points concurrently: the claim's row-changed check
// lets exactly one caller win, the rest see no job and perform no writes.
//
// Returns whether a job was claimed. Job failures are recorded on the job
// row, never returned: the IndexJob status is the only failure signal.
func (w *Worker) RunWorker(ctx context.Context) (bool, error) {
	job, err := w.Store.ClaimPendingJob(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	log := w.Logger.WithJob(job.JobID, job.PackID)
	log.Info("claimed index job", "cursor", job.Cursor, "progress", job.Progress)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in index job", "panic", r)
			if ferr := w.Store.FailJob(job.JobID, fmt.Sprintf("panic: %v", r)); ferr != nil {
				log.Error("failed to record job panic", "error", ferr)
			}
		}
	}()

	if err := w.runJob(ctx, job); err != nil {
		log.Error("index job failed", "error", err)
		if ferr := w.Store.FailJob(job.JobID, err.Error()); ferr != nil {
			log.Error("failed to record job failure", "error", ferr)
		}
		return true, nil
	}

	log.Info("index job done")
	return true, nil
}

func (w *Worker) runJob(ctx context.Context, job *domain.IndexJob) error {
	pack, err := w.Store.GetPack(job.PackID)
	if err != nil {
		return fmt.Errorf("load pack: %w", err)
	}
	if pack == nil || pack.LocalPath == "" {
		return fmt.Errorf("pack %s has no installed path", job.PackID)
	}

	m, err := manifest.Load(pack.LocalPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	// A malformed checkpoint means resume from zero.
	cursor := domain.ParseCursor(job.Cursor)
	if cursor.BookIndex > len(m.Books) {
		cursor = domain.Cursor{}
	}
	// A cursor one past the last book means every section was indexed
	// before the crash; only the completion mark is missing.
	if cursor.BookIndex == len(m.Books) && cursor.BookIndex > 0 {
		return w.Store.CompleteJob(job.JobID)
	}

	for bi := cursor.BookIndex; bi < len(m.Books); bi++ {
		book := m.Books[bi]
		bookPath := filepath.Join(pack.LocalPath, filepath.FromSlash(book.Path))

		bf, err := manifest.LoadBookFile(bookPath)
		if err != nil {
			return fmt.Errorf("book %s: %w", book.BookID, err)
		}

		startSection := 0
		if bi == cursor.BookIndex {
			startSection = cursor.SectionIndex
			if startSection > len(bf.Sections) {
				startSection = 0
			}
		}

		for si := startSection; si < len(bf.Sections); si++ {
			section := bf.Sections[si]
			if err := w.indexSection(ctx, book.BookID, bookPath, section); err != nil {
				return fmt.Errorf("section %s: %w", section.SectionID, err)
			}

			// Checkpoint at the section boundary just completed.
			next := domain.Cursor{BookIndex: bi, SectionIndex: si + 1}
			if si+1 >= len(bf.Sections) {
				next = domain.Cursor{BookIndex: bi + 1, SectionIndex: 0}
			}
			progress := jobProgress(bi, si+1, len(m.Books), len(bf.Sections))
			if err := w.Store.CheckpointJob(job.JobID, next.Encode(), progress); err != nil {
				return fmt.Errorf("checkpoint: %w", err)
			}
		}
	}

	return w.Store.CompleteJob(job.JobID)
}

// indexSection deletes and reinserts one section's full-text rows. The
// delete-then-insert pairing makes a partially written section from a prior
// crash safe to re-index.
func (w *Worker) indexSection(ctx context.Context, bookID, filePath string, section manifest.SectionContent) error {
	err := w.Store.RunInTx(ctx, func(tx *store.DB) error {
		if err := tx.DeleteSectionRows(bookID, section.SectionID); err != nil {
			return err
		}
		return tx.UpsertSection(domain.Section{
			ID:        section.SectionID,
			BookID:    bookID,
			Title:     section.Title,
			SortOrder: section.SortOrder,
			FilePath:  filePath,
		})
	})
	if err != nil {
		return err
	}

	segments := dedupeSegments(section.Segments)

	batchSize := w.Config.IndexBatchSize
	for offset := 0; offset < len(segments); offset += batchSize {
		end := offset + batchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[offset:end]

		err := w.Store.RunInTx(ctx, func(tx *store.DB) error {
			return insertBatch(tx, bookID, section.SectionID, batch)
		})
		if err != nil {
			return err
		}

		if end < len(segments) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(batchYield):
			}
		}
	}
	return nil
}

func insertBatch(tx *store.DB, bookID, sectionID string, segments []manifest.Segment) error {
	grouped := map[store.FTSTable][]store.FTSRow{}
	for _, seg := range segments {
		table := routeSegment(seg)
		grouped[table] = append(grouped[table], store.FTSRow{
			BookID:    bookID,
			SectionID: sectionID,
			SegmentID: seg.SegmentID,
			Text:      seg.Text,
		})
	}
	for table, rows := range grouped {
		if err := tx.InsertFTSRows(table, rows); err != nil {
			return err
		}
	}
	return nil
}

// routeSegment picks the single full-text table for a segment.
// First-match-wins: headings go to the titles table even when poetry-flagged,
// poetry-flagged segments go to the aphorism table, everything else (body,
// note, footnote text) goes to the body table.
func routeSegment(seg manifest.Segment) store.FTSTable {
	switch {
	case seg.Type == domain.SegmentHeading:
		return store.TableTitles
	case seg.Poetry:
		return store.TableAphorisms
	default:
		return store.TableBody
	}
}

// dedupeSegments keeps the first occurrence of each segment id.
func dedupeSegments(segments []manifest.Segment) []manifest.Segment {
	seen := make(map[string]bool, len(segments))
	out := segments[:0:0]
	for _, seg := range segments {
		if seen[seg.SegmentID] {
			continue
		}
		seen[seg.SegmentID] = true
		out = append(out, seg)
	}
	return out
}

// jobProgress is the book completion fraction plus the intra-book section
// fraction, capped at 99 until the whole job finishes.
func jobProgress(bookIndex, sectionsDone, bookCount, sectionCount int) int {
	if bookCount == 0 {
		return 99
	}
	frac := float64(bookIndex) / float64(bookCount)
	if sectionCount > 0 {
		frac += float64(sectionsDone) / float64(sectionCount) / float64(bookCount)
	}
	p := int(frac * 100)
	if p > 99 {
		p = 99
	}
	return p
}
