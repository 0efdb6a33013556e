package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
)

// CreateGenre creates a genre with a unique name.
func CreateGenre(ctx context.Context, db *sql.DB, name string) (*model.Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: genre name is required", model.ErrInvalidInput)
	}

	result, err := db.ExecContext(ctx, `INSERT INTO genres (name) VALUES (?)`, name)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("genre %q: %w", name, model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating genre: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting genre id: %w", err)
	}

	return GetGenre(ctx, db, id)
}

// GetGenre returns a genre by ID, or nil if it does not exist.
func GetGenre(ctx context.Context, db *sql.DB, id int64) (*model.Genre, error) {
	g := &model.Genre{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM genres WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting genre: %w", err)
	}
	return g, nil
}

// ListGenres returns all genres ordered by name.
func ListGenres(ctx context.Context, db *sql.DB) ([]model.Genre, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, created_at FROM genres ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing genres: %w", err)
	}
	defer rows.Close()

	var genres []model.Genre
	for rows.Next() {
		var g model.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// RenameGenre changes a genre's name.
func RenameGenre(ctx context.Context, db *sql.DB, id int64, name string) (*model.Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: genre name is required", model.ErrInvalidInput)
	}

	result, err := db.ExecContext(ctx, `UPDATE genres SET name = ? WHERE id = ?`, name, id)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("genre %q: %w", name, model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("renaming genre: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("genre %d: %w", id, model.ErrNotFound)
	}

	return GetGenre(ctx, db, id)
}

// DeleteGenre removes a genre. Books in it keep existing without a genre.
func DeleteGenre(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM genres WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting genre: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("genre %d: %w", id, model.ErrNotFound)
	}
	return nil
}
