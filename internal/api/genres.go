package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// GenresHandler handles genre endpoints.
type GenresHandler struct {
	DB *sql.DB
}

type genreRequest struct {
	Name string `json:"name"`
}

// List handles GET /api/genres.
func (h *GenresHandler) List(w http.ResponseWriter, r *http.Request) {
	genres, err := store.ListGenres(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if genres == nil {
		genres = []model.Genre{}
	}
	jsonResponse(w, http.StatusOK, genres)
}

// Create handles POST /api/genres.
func (h *GenresHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req genreRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	genre, err := store.CreateGenre(r.Context(), h.DB, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("genre created", "user", actor(r.Context()), "genre", genre.Name)
	jsonResponse(w, http.StatusCreated, genre)
}

// Get handles GET /api/genres/{id}.
func (h *GenresHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid genre id")
		return
	}

	genre, err := store.GetGenre(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if genre == nil {
		jsonError(w, http.StatusNotFound, codeNotFound, "genre not found")
		return
	}
	jsonResponse(w, http.StatusOK, genre)
}

// Update handles PATCH /api/genres/{id}.
func (h *GenresHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid genre id")
		return
	}

	var req genreRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	genre, err := store.RenameGenre(r.Context(), h.DB, id, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("genre renamed", "user", actor(r.Context()), "genre_id", id, "name", genre.Name)
	jsonResponse(w, http.StatusOK, genre)
}

// Delete handles DELETE /api/genres/{id}.
func (h *GenresHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid genre id")
		return
	}

	if err := store.DeleteGenre(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("genre deleted", "user", actor(r.Context()), "genre_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "genre deleted"})
}
