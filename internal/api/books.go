package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/cover"
	"github.com/erazemk/knjiznica/internal/ledger"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// BooksHandler handles catalog endpoints.
type BooksHandler struct {
	DB     *sql.DB
	Ledger *ledger.Ledger
}

// createBookRequest accepts the copy count as either total_copies or
// available_copies, since a new book has every copy on the shelf.
type createBookRequest struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	PublishedYear   int    `json:"published_year"`
	GenreID         *int64 `json:"genre_id"`
	TotalCopies     *int   `json:"total_copies"`
	AvailableCopies *int   `json:"available_copies"`
}

// updateBookRequest is a partial update; absent fields are kept. A genre_id
// of 0 clears the genre. available_copies sets the copies on the shelf and
// keeps the copies on loan, so it cannot be sent together with total_copies.
type updateBookRequest struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	PublishedYear   *int    `json:"published_year"`
	GenreID         *int64  `json:"genre_id"`
	TotalCopies     *int    `json:"total_copies"`
	AvailableCopies *int    `json:"available_copies"`
}

// genreOrNil maps the "no genre" value 0 to nil.
func genreOrNil(id *int64) *int64 {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}

// List handles GET /api/books.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	genreID, ok := queryID(r, "genre_id")
	if !ok {
		badRequest(w, "invalid genre_id")
		return
	}
	available, ok := queryBool(r, "available")
	if !ok {
		badRequest(w, "invalid available flag")
		return
	}

	books, err := store.ListBooks(r.Context(), h.DB, model.BookFilter{GenreID: genreID, Available: available})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, books)
}

// Create handles POST /api/books.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	var copies int
	switch {
	case req.TotalCopies != nil && req.AvailableCopies != nil && *req.TotalCopies != *req.AvailableCopies:
		badRequest(w, "total_copies and available_copies disagree")
		return
	case req.TotalCopies != nil:
		copies = *req.TotalCopies
	case req.AvailableCopies != nil:
		copies = *req.AvailableCopies
	}

	book, err := store.CreateBook(r.Context(), h.DB, store.BookInput{
		Title:         req.Title,
		Author:        req.Author,
		PublishedYear: req.PublishedYear,
		GenreID:       genreOrNil(req.GenreID),
		TotalCopies:   copies,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("book created", "user", actor(r.Context()), "book_id", book.ID,
		"title", book.Title, "copies", book.TotalCopies)
	jsonResponse(w, http.StatusCreated, book)
}

// Get handles GET /api/books/{id}.
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid book id")
		return
	}

	book, err := store.GetBook(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if book == nil {
		jsonError(w, http.StatusNotFound, codeNotFound, "book not found")
		return
	}
	jsonResponse(w, http.StatusOK, book)
}

// Update handles PATCH /api/books/{id}.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid book id")
		return
	}

	var req updateBookRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.TotalCopies != nil && req.AvailableCopies != nil {
		badRequest(w, "send either total_copies or available_copies")
		return
	}

	book, err := store.GetBook(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if book == nil {
		jsonError(w, http.StatusNotFound, codeNotFound, "book not found")
		return
	}

	in := store.BookInput{
		Title:         book.Title,
		Author:        book.Author,
		PublishedYear: book.PublishedYear,
		GenreID:       book.GenreID,
		TotalCopies:   book.TotalCopies,
	}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Author != nil {
		in.Author = *req.Author
	}
	if req.PublishedYear != nil {
		in.PublishedYear = *req.PublishedYear
	}
	if req.GenreID != nil {
		in.GenreID = genreOrNil(req.GenreID)
	}
	if req.TotalCopies != nil {
		in.TotalCopies = *req.TotalCopies
	}
	if req.AvailableCopies != nil {
		if *req.AvailableCopies < 0 {
			badRequest(w, "available_copies must not be negative")
			return
		}
		in.TotalCopies = *req.AvailableCopies + book.TotalCopies - book.AvailableCopies
	}

	updated, err := store.UpdateBook(r.Context(), h.DB, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("book updated", "user", actor(r.Context()), "book_id", id,
		"copies", updated.TotalCopies, "available", updated.AvailableCopies)
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/books/{id}.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid book id")
		return
	}

	if err := store.DeleteBook(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("book deleted", "user", actor(r.Context()), "book_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "book deleted"})
}

// Availability handles GET /api/books/{id}/availability.
func (h *BooksHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid book id")
		return
	}

	a, err := store.GetAvailability(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, a)
}

// UploadCover handles PUT /api/books/{id}/cover with a multipart "cover"
// file.
func (h *BooksHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid book id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, cover.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(cover.MaxUploadBytes); err != nil {
		badRequest(w, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		badRequest(w, "cover file required")
		return
	}
	defer file.Close()

	c, err := cover.Process(file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.SetBookCover(r.Context(), h.DB, id, c.Data, c.MIME); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("book cover uploaded", "user", actor(r.Context()), "book_id", id,
		"width", c.Width, "height", c.Height, "bytes", len(c.Data))
	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "cover uploaded",
		"width":   c.Width,
		"height":  c.Height,
	})
}

// GetCover handles GET /api/books/{id}/cover.
func (h *BooksHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid book id")
		return
	}

	data, mime, err := store.GetBookCover(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, codeNotFound, "book has no cover")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// History handles GET /api/books/{id}/history.
func (h *BooksHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid book id")
		return
	}

	records, err := h.Ledger.HistoryForBook(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, records)
}
