package httpapp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jmfontan/libropack/internal/domain"
	"github.com/jmfontan/libropack/internal/store"
)

const defaultLimit = 50

func (h *Handler) ListPacks(w http.ResponseWriter, r *http.Request) {
	packs, err := h.Store.ListPacks()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, packs)
}

func (h *Handler) GetPack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pack, err := h.Store.GetPack(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pack == nil {
		h.writeError(w, http.StatusNotFound, "pack not found")
		return
	}
	h.writeJSON(w, http.StatusOK, pack)
}

func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	books, err := h.Store.ListBooks(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, books)
}

func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sections, err := h.Store.ListSections(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, sections)
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	jobs, err := h.Store.ListJobs(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, jobs)
}

// Search executes a full-text match against one of the three tables.
// Query logic (what to search for) stays with the caller.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	table := store.TableBody
	switch r.URL.Query().Get("table") {
	case "", "body":
	case "titles":
		table = store.TableTitles
	case "aphorisms":
		table = store.TableAphorisms
	default:
		h.writeError(w, http.StatusBadRequest, "table must be one of: titles, body, aphorisms")
		return
	}

	rows, err := h.Store.Search(table, query, defaultLimit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

type installRequest struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

func (h *Handler) InstallPack(w http.ResponseWriter, r *http.Request) {
	packID := chi.URLParam(r, "id")

	var req installRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" || req.SHA256 == "" {
		h.writeError(w, http.StatusBadRequest, "url and sha256 are required")
		return
	}

	if err := h.Installer.InstallPack(r.Context(), req.URL, packID, req.SHA256); err != nil {
		var packErr *domain.PackError
		if errors.As(err, &packErr) {
			h.writeJSON(w, http.StatusBadGateway, map[string]string{
				"code":  string(packErr.Code),
				"error": packErr.Message,
			})
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	pack, err := h.Store.GetPack(packID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, pack)
}

func (h *Handler) RunIndexer(w http.ResponseWriter, r *http.Request) {
	processed, err := h.Worker.RunWorker(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"processed": processed})
}
