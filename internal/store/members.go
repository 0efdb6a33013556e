package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// MemberInput holds the editable fields of a member.
type MemberInput struct {
	Name     string
	Email    string
	Phone    string
	JoinDate time.Time
}

func (in *MemberInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" || in.Email == "" {
		return fmt.Errorf("%w: name and email are required", model.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email %q", model.ErrInvalidInput, in.Email)
	}
	return nil
}

const memberColumns = `id, name, email, phone, join_date, created_at`

// CreateMember registers a member. A zero join date means today.
func CreateMember(ctx context.Context, db *sql.DB, in MemberInput) (*model.Member, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if in.JoinDate.IsZero() {
		in.JoinDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO members (name, email, phone, join_date) VALUES (?, ?, ?, ?)`,
		in.Name, in.Email, in.Phone, in.JoinDate.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("member email %q: %w", in.Email, model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting member id: %w", err)
	}

	return GetMember(ctx, db, id)
}

// GetMember returns a member by ID, or nil if it does not exist.
func GetMember(ctx context.Context, q Querier, id int64) (*model.Member, error) {
	m := &model.Member{}
	err := q.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.JoinDate, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting member: %w", err)
	}
	return m, nil
}

// MemberExists reports whether a member with the given ID exists.
func MemberExists(ctx context.Context, q Querier, id int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking member: %w", err)
	}
	return n > 0, nil
}

// ListMembers returns members ordered by name, filtered by case-insensitive
// substrings of name and email.
func ListMembers(ctx context.Context, db *sql.DB, f model.MemberFilter) ([]model.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE 1=1`
	var args []any

	if f.Name != "" {
		query += ` AND name LIKE ? ESCAPE '\'`
		args = append(args, likePattern(f.Name))
	}
	if f.Email != "" {
		query += ` AND email LIKE ? ESCAPE '\'`
		args = append(args, likePattern(f.Email))
	}

	query += ` ORDER BY name, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.JoinDate, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateMember replaces a member's editable fields. The join date is kept
// when in.JoinDate is zero.
func UpdateMember(ctx context.Context, db *sql.DB, id int64, in MemberInput) (*model.Member, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE members SET name = ?, email = ?, phone = ?,
		        join_date = COALESCE(?, join_date)
		 WHERE id = ?`,
		in.Name, in.Email, in.Phone, nullTime(in.JoinDate), id,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("member email %q: %w", in.Email, model.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("updating member: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("member %d: %w", id, model.ErrNotFound)
	}

	return GetMember(ctx, db, id)
}

// DeleteMember removes a member who holds no open loans.
func DeleteMember(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var open int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_records WHERE member_id = ? AND returned = 0`, id,
	).Scan(&open)
	if err != nil {
		return fmt.Errorf("counting open loans: %w", err)
	}
	if open > 0 {
		return fmt.Errorf("member %d has %d open loans: %w", id, open, model.ErrInUse)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("member %d: %w", id, model.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing member deletion: %w", err)
	}
	return nil
}

// likePattern wraps s in % wildcards, escaping LIKE metacharacters.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
