package httpapp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmfontan/libropack/internal/config"
	"github.com/jmfontan/libropack/internal/domain"
	"github.com/jmfontan/libropack/internal/httpclient"
	"github.com/jmfontan/libropack/internal/indexer"
	"github.com/jmfontan/libropack/internal/installer"
	"github.com/jmfontan/libropack/internal/logger"
	"github.com/jmfontan/libropack/internal/store"
)

func setupServer(t *testing.T) (*httptest.Server, *store.DB) {
	t.Helper()
	dir := t.TempDir()

	db, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Port:           "8080",
		DBPath:         "unused",
		PacksDir:       filepath.Join(dir, "packs"),
		LogLevel:       "error",
		LogFormat:      "text",
		IndexBatchSize: 200,
		IndexInterval:  time.Second,
		JanitorMaxAge:  24 * time.Hour,
	}
	log := logger.New(logger.Config{Level: "error"})
	ins := installer.New(db, httpclient.NewClient(nil), cfg, log)
	worker := indexer.New(db, cfg, log)

	r := chi.NewRouter()
	NewHandler(db, ins, worker, log).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, db
}

func TestGetPack(t *testing.T) {
	srv, db := setupServer(t)

	if err := db.FinalizePackInstalled("pack-1", "1.0.0", "/tmp/pack-1"); err != nil {
		t.Fatalf("FinalizePackInstalled failed: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/packs/pack-1")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var pack domain.InstalledPack
	if err := json.NewDecoder(resp.Body).Decode(&pack); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if pack.ID != "pack-1" || pack.Status != domain.PackStatusInstalled {
		t.Errorf("Unexpected pack: %+v", pack)
	}
}

func TestGetPack_NotFound(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/api/packs/nope")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestListJobs(t *testing.T) {
	srv, db := setupServer(t)

	now := time.Now()
	if err := db.CreateIndexJob(&domain.IndexJob{
		JobID:     uuid.New().String(),
		PackID:    "pack-1",
		Status:    domain.IndexJobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("CreateIndexJob failed: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/jobs")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var jobs []domain.IndexJob
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("Expected 1 job, got %d", len(jobs))
	}
}

func TestSearch_Validation(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/api/search")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing q, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/search?q=x&table=bogus")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad table, got %d", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	srv, db := setupServer(t)

	if err := db.InsertFTSRows(store.TableTitles, []store.FTSRow{
		{BookID: "b1", SectionID: "s1", SegmentID: "seg1", Text: "Meditations on Method"},
	}); err != nil {
		t.Fatalf("InsertFTSRows failed: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/search?q=method&table=titles")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var rows []store.FTSRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected 1 hit, got %d", len(rows))
	}
}

func TestInstallPack_BadRequest(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Post(srv.URL+"/api/packs/pack-1/install", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty body, got %d", resp.StatusCode)
	}
}

func TestRunIndexer_EmptyQueue(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Post(srv.URL+"/api/index/run", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var out map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out["processed"] {
		t.Error("Expected processed=false on empty queue")
	}
}
