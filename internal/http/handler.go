// Package httpapp exposes the catalog read-only over HTTP, plus the two
// pipeline triggers (install a pack, run the index worker).
package httpapp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmfontan/libropack/internal/indexer"
	"github.com/jmfontan/libropack/internal/installer"
	"github.com/jmfontan/libropack/internal/logger"
	"github.com/jmfontan/libropack/internal/store"
)

type Handler struct {
	Store     *store.DB
	Installer *installer.Installer
	Worker    *indexer.Worker
	Logger    *logger.Logger
}

func NewHandler(db *store.DB, ins *installer.Installer, w *indexer.Worker, log *logger.Logger) *Handler {
	return &Handler{
		Store:     db,
		Installer: ins,
		Worker:    w,
		Logger:    log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/packs", h.ListPacks)
	r.Get("/api/packs/{id}", h.GetPack)
	r.Get("/api/packs/{id}/books", h.ListBooks)
	r.Get("/api/books/{id}/sections", h.ListSections)
	r.Get("/api/jobs", h.ListJobs)
	r.Get("/api/search", h.Search)

	r.Post("/api/packs/{id}/install", h.InstallPack)
	r.Post("/api/index/run", h.RunIndexer)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
