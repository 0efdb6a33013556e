package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// Borrow records are joined with books and members for display. Both joins
// are LEFT joins because a book may have been deleted after its loans were
// settled.
const recordSelect = `SELECT r.id, r.book_id, r.member_id, r.borrow_date, r.due_date,
	        r.return_date, r.returned, r.borrowed_by, r.returned_by,
	        b.title, b.author, m.name, m.email
	 FROM borrow_records r
	 LEFT JOIN books b ON b.id = r.book_id
	 LEFT JOIN members m ON m.id = r.member_id`

func scanRecord(row rowScanner) (*model.BorrowRecord, error) {
	r := &model.BorrowRecord{}
	var title, author, name, email sql.NullString
	err := row.Scan(&r.ID, &r.BookID, &r.MemberID, &r.BorrowDate, &r.DueDate,
		&r.ReturnDate, &r.Returned, &r.BorrowedBy, &r.ReturnedBy,
		&title, &author, &name, &email)
	if err != nil {
		return nil, err
	}
	if title.Valid {
		r.Book = &model.BookSummary{ID: r.BookID, Title: title.String, Author: author.String}
	}
	if name.Valid {
		r.Member = &model.MemberSummary{ID: r.MemberID, Name: name.String, Email: email.String}
	}
	return r, nil
}

// InsertRecord stores a new open borrow record and returns its ID. A second
// open record for the same (book, member) pair is rejected by the partial
// unique index and reported as a duplicate loan.
func InsertRecord(ctx context.Context, q Querier, bookID, memberID int64, borrowDate, dueDate time.Time, staffID *int64) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO borrow_records (book_id, member_id, borrow_date, due_date, returned, borrowed_by)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		bookID, memberID, borrowDate.UTC(), dueDate.UTC(), staffID,
	)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("book %d, member %d: %w", bookID, memberID, model.ErrDuplicateActiveLoan)
	}
	if err != nil {
		return 0, fmt.Errorf("inserting borrow record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting borrow record id: %w", err)
	}
	return id, nil
}

// GetRecord returns a borrow record by ID.
func GetRecord(ctx context.Context, q Querier, id int64) (*model.BorrowRecord, error) {
	r, err := scanRecord(q.QueryRowContext(ctx, recordSelect+` WHERE r.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("borrow record %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting borrow record: %w", err)
	}
	return r, nil
}

// FindOpenRecord returns the unreturned record for a (book, member) pair.
func FindOpenRecord(ctx context.Context, q Querier, bookID, memberID int64) (*model.BorrowRecord, error) {
	r, err := scanRecord(q.QueryRowContext(ctx,
		recordSelect+` WHERE r.book_id = ? AND r.member_id = ? AND r.returned = 0`,
		bookID, memberID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("open loan of book %d by member %d: %w", bookID, memberID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("finding open borrow record: %w", err)
	}
	return r, nil
}

// MarkReturned settles an open record. It reports false without error if the
// record was already returned, so exactly one caller can win the flip.
func MarkReturned(ctx context.Context, q Querier, id int64, at time.Time, staffID *int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE borrow_records SET returned = 1, return_date = ?, returned_by = ?
		 WHERE id = ? AND returned = 0`,
		at.UTC(), staffID, id,
	)
	if err != nil {
		return false, fmt.Errorf("marking borrow record returned: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking returned rows: %w", err)
	}
	return n == 1, nil
}

// ListRecords returns borrow records, most recent borrow first.
func ListRecords(ctx context.Context, q Querier, f model.RecordFilter) ([]model.BorrowRecord, error) {
	query := recordSelect + ` WHERE 1=1`
	var args []any

	if f.BookID > 0 {
		query += ` AND r.book_id = ?`
		args = append(args, f.BookID)
	}
	if f.MemberID > 0 {
		query += ` AND r.member_id = ?`
		args = append(args, f.MemberID)
	}
	if f.Returned != nil {
		query += ` AND r.returned = ?`
		args = append(args, *f.Returned)
	}

	query += ` ORDER BY r.borrow_date DESC, r.id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing borrow records: %w", err)
	}
	defer rows.Close()

	records := []model.BorrowRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning borrow record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// Stats are the dashboard counters.
type Stats struct {
	Books           int `json:"books"`
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
	Members         int `json:"members"`
	Genres          int `json:"genres"`
	ActiveLoans     int `json:"active_loans"`
	OverdueLoans    int `json:"overdue_loans"`
}

// GetStats counts catalog and loan totals. Overdue loans are counted against
// now; the comparison is done on the open records' due dates in Go so it uses
// the same rule as model.Classify.
func GetStats(ctx context.Context, q Querier, now time.Time) (*Stats, error) {
	s := &Stats{}
	err := q.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM books),
		        (SELECT COALESCE(SUM(total_copies), 0) FROM books),
		        (SELECT COALESCE(SUM(available_copies), 0) FROM books),
		        (SELECT COUNT(*) FROM members),
		        (SELECT COUNT(*) FROM genres)`,
	).Scan(&s.Books, &s.TotalCopies, &s.AvailableCopies, &s.Members, &s.Genres)
	if err != nil {
		return nil, fmt.Errorf("counting catalog: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT due_date FROM borrow_records WHERE returned = 0`)
	if err != nil {
		return nil, fmt.Errorf("listing open loans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.BorrowRecord
		if err := rows.Scan(&r.DueDate); err != nil {
			return nil, fmt.Errorf("scanning due date: %w", err)
		}
		s.ActiveLoans++
		if model.Classify(r, now) == model.StatusOverdue {
			s.OverdueLoans++
		}
	}
	return s, rows.Err()
}
