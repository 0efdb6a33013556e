package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
)

const userColumns = `id, username, email, password_hash, role, created_at, deleted_at`

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser creates a staff account.
func CreateUser(ctx context.Context, db *sql.DB, username, email, passwordHash, role string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", model.ErrInvalidInput)
	}
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("%w: invalid role %q", model.ErrInvalidInput, role)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		username, strings.TrimSpace(email), passwordHash, role,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("username %q: %w", username, model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID (including soft-deleted), or nil.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the active user with the given username, or nil.
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND deleted_at IS NULL`, username,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UserUpdate lists the staff fields a PATCH may change. Nil fields are kept.
type UserUpdate struct {
	Username     *string
	Email        *string
	Role         *string
	PasswordHash *string
}

// UpdateUser applies a partial update to an active user.
func UpdateUser(ctx context.Context, db *sql.DB, id int64, upd UserUpdate) (*model.User, error) {
	if upd.Role != nil && !model.ValidRole(*upd.Role) {
		return nil, fmt.Errorf("%w: invalid role %q", model.ErrInvalidInput, *upd.Role)
	}
	if upd.Username != nil && strings.TrimSpace(*upd.Username) == "" {
		return nil, fmt.Errorf("%w: username must not be empty", model.ErrInvalidInput)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE users SET username = COALESCE(?, username),
		                  email = COALESCE(?, email),
		                  role = COALESCE(?, role),
		                  password_hash = COALESCE(?, password_hash)
		 WHERE id = ? AND deleted_at IS NULL`,
		trimmed(upd.Username), trimmed(upd.Email), upd.Role, upd.PasswordHash, id,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("username %q: %w", *upd.Username, model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}

	return GetUser(ctx, db, id)
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	_, err := UpdateUser(ctx, db, id, UserUpdate{PasswordHash: &passwordHash})
	return err
}

// DeleteUser soft-deletes a user so audit columns on borrow records stay valid.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
