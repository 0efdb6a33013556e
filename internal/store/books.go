package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
)

// BookInput holds the editable fields of a book.
type BookInput struct {
	Title         string
	Author        string
	PublishedYear int
	GenreID       *int64
	TotalCopies   int
}

func (in BookInput) validate() error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Author) == "" {
		return fmt.Errorf("%w: title and author are required", model.ErrInvalidInput)
	}
	if in.TotalCopies < 0 {
		return fmt.Errorf("%w: total_copies must not be negative", model.ErrInvalidInput)
	}
	return nil
}

const bookSelect = `SELECT b.id, b.title, b.author, b.published_year, b.genre_id,
	        b.total_copies, b.available_copies, b.cover IS NOT NULL,
	        b.created_at, b.updated_at, COALESCE(g.name, '')
	 FROM books b
	 LEFT JOIN genres g ON g.id = b.genre_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*model.Book, error) {
	b := &model.Book{}
	var year sql.NullInt64
	err := row.Scan(&b.ID, &b.Title, &b.Author, &year, &b.GenreID,
		&b.TotalCopies, &b.AvailableCopies, &b.HasCover,
		&b.CreatedAt, &b.UpdatedAt, &b.GenreName)
	if err != nil {
		return nil, err
	}
	b.PublishedYear = int(year.Int64)
	return b, nil
}

// CreateBook adds a title to the catalog with all copies available.
func CreateBook(ctx context.Context, db *sql.DB, in BookInput) (*model.Book, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkGenre(ctx, tx, in.GenreID); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO books (title, author, published_year, genre_id, total_copies, available_copies)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.Title, in.Author, nullYear(in.PublishedYear), in.GenreID, in.TotalCopies, in.TotalCopies,
	)
	if err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting book id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing book: %w", err)
	}

	return GetBook(ctx, db, id)
}

// GetBook returns a book by ID, or nil if it does not exist.
func GetBook(ctx context.Context, q Querier, id int64) (*model.Book, error) {
	b, err := scanBook(q.QueryRowContext(ctx, bookSelect+` WHERE b.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	return b, nil
}

// ListBooks returns books ordered by title, optionally filtered by genre and
// by whether any copy is currently available.
func ListBooks(ctx context.Context, db *sql.DB, f model.BookFilter) ([]model.Book, error) {
	query := bookSelect + ` WHERE 1=1`
	var args []any

	if f.GenreID > 0 {
		query += ` AND b.genre_id = ?`
		args = append(args, f.GenreID)
	}
	if f.Available != nil {
		if *f.Available {
			query += ` AND b.available_copies > 0`
		} else {
			query += ` AND b.available_copies = 0`
		}
	}

	query += ` ORDER BY b.title, b.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	books := []model.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// UpdateBook replaces a book's editable fields. Changing total_copies moves
// available_copies by the same amount; copies currently on loan stay on loan,
// so the total cannot drop below that number.
func UpdateBook(ctx context.Context, db *sql.DB, id int64, in BookInput) (*model.Book, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var total, available int
	err = tx.QueryRowContext(ctx,
		`SELECT total_copies, available_copies FROM books WHERE id = ?`, id,
	).Scan(&total, &available)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking book: %w", err)
	}

	onLoan := total - available
	if in.TotalCopies < onLoan {
		return nil, fmt.Errorf("%w: %d copies are on loan, total_copies cannot be %d",
			model.ErrInvalidInput, onLoan, in.TotalCopies)
	}

	if err := checkGenre(ctx, tx, in.GenreID); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, published_year = ?, genre_id = ?,
		        total_copies = ?, available_copies = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Title, in.Author, nullYear(in.PublishedYear), in.GenreID,
		in.TotalCopies, in.TotalCopies-onLoan, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing book update: %w", err)
	}

	return GetBook(ctx, db, id)
}

// DeleteBook removes a book that has no open loans. Settled borrow records
// keep their book_id for history.
func DeleteBook(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var open int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_records WHERE book_id = ? AND returned = 0`, id,
	).Scan(&open)
	if err != nil {
		return fmt.Errorf("counting open loans: %w", err)
	}
	if open > 0 {
		return fmt.Errorf("book %d has %d open loans: %w", id, open, model.ErrInUse)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting book: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("book %d: %w", id, model.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing book deletion: %w", err)
	}
	return nil
}

// ReserveCopy takes one available copy of a book and returns the remaining
// count. The decrement is a single conditional UPDATE, so two callers racing
// for the last copy cannot both win.
func ReserveCopy(ctx context.Context, q Querier, bookID int64) (int, error) {
	var available int
	err := q.QueryRowContext(ctx,
		`UPDATE books SET available_copies = available_copies - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND available_copies > 0
		 RETURNING available_copies`, bookID,
	).Scan(&available)
	if err == nil {
		return available, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("reserving copy: %w", err)
	}

	exists, err := bookExists(ctx, q, bookID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("book %d: %w", bookID, model.ErrNotFound)
	}
	return 0, fmt.Errorf("book %d: %w", bookID, model.ErrNoCopiesAvailable)
}

// ReleaseCopy puts one copy of a book back and returns the new available
// count. Releasing when every copy is already available means the ledger and
// the counter disagree; that is reported as an invariant violation.
func ReleaseCopy(ctx context.Context, q Querier, bookID int64) (int, error) {
	var available int
	err := q.QueryRowContext(ctx,
		`UPDATE books SET available_copies = available_copies + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND available_copies < total_copies
		 RETURNING available_copies`, bookID,
	).Scan(&available)
	if err == nil {
		return available, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("releasing copy: %w", err)
	}

	a, err := GetAvailability(ctx, q, bookID)
	if err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("releasing copy of book %d with %d/%d available: %w",
		bookID, a.AvailableCopies, a.TotalCopies, model.ErrInvariantViolation)
}

// GetAvailability returns the copy counters of a book.
func GetAvailability(ctx context.Context, q Querier, bookID int64) (*model.Availability, error) {
	a := &model.Availability{BookID: bookID}
	err := q.QueryRowContext(ctx,
		`SELECT total_copies, available_copies FROM books WHERE id = ?`, bookID,
	).Scan(&a.TotalCopies, &a.AvailableCopies)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book %d: %w", bookID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting availability: %w", err)
	}
	a.OnLoan = a.TotalCopies - a.AvailableCopies
	return a, nil
}

// SetBookCover stores a processed cover image for a book.
func SetBookCover(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE books SET cover = ?, cover_mime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting book cover: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("book %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// GetBookCover returns a book's cover image and MIME type. Both are empty if
// the book has no cover.
func GetBookCover(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var data []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT cover, cover_mime FROM books WHERE id = ?`, id,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("book %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting book cover: %w", err)
	}
	return data, mime.String, nil
}

func bookExists(ctx context.Context, q Querier, id int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking book: %w", err)
	}
	return n > 0, nil
}

func checkGenre(ctx context.Context, q Querier, genreID *int64) error {
	if genreID == nil {
		return nil
	}
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM genres WHERE id = ?`, *genreID).Scan(&n)
	if err != nil {
		return fmt.Errorf("checking genre: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: genre %d does not exist", model.ErrInvalidInput, *genreID)
	}
	return nil
}

func nullYear(year int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(year), Valid: year != 0}
}
