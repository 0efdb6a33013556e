// Package ledger implements borrowing and returning books. Every write keeps
// the catalog's copy counters and the borrow records consistent: a borrow
// reserves a copy and records the loan in one transaction, and a return
// settles the loan and releases the copy in one transaction.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Ledger runs borrow and return operations against the database.
type Ledger struct {
	DB     *sql.DB
	Now    func() time.Time
	Logger *slog.Logger
}

// New returns a Ledger using the wall clock and the default logger.
func New(db *sql.DB) *Ledger {
	return &Ledger{DB: db}
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *Ledger) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// BorrowRequest describes a new loan. StaffID is the user recording it, if
// known.
type BorrowRequest struct {
	BookID   int64
	MemberID int64
	DueDate  time.Time
	StaffID  *int64
}

// Borrow lends one copy of a book to a member until the due date.
func (l *Ledger) Borrow(ctx context.Context, req BorrowRequest) (*model.BorrowRecord, error) {
	now := l.now()
	if !dueDateValid(req.DueDate, now) {
		return nil, fmt.Errorf("due date %s is not after %s: %w",
			req.DueDate.UTC().Format(time.DateOnly), now.Format(time.DateOnly), model.ErrInvalidDueDate)
	}

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := store.MemberExists(ctx, tx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("member %d: %w", req.MemberID, model.ErrNotFound)
	}

	_, err = store.FindOpenRecord(ctx, tx, req.BookID, req.MemberID)
	if err == nil {
		return nil, fmt.Errorf("book %d, member %d: %w", req.BookID, req.MemberID, model.ErrDuplicateActiveLoan)
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	// Reports a missing book as ErrNotFound and an empty shelf as
	// ErrNoCopiesAvailable. From here on, an early return rolls the
	// reservation back with the rest of the transaction.
	available, err := store.ReserveCopy(ctx, tx, req.BookID)
	if err != nil {
		return nil, err
	}

	id, err := store.InsertRecord(ctx, tx, req.BookID, req.MemberID, now, req.DueDate, req.StaffID)
	if err != nil {
		return nil, err
	}

	record, err := store.GetRecord(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing borrow: %w", err)
	}

	l.logger().Info("book borrowed",
		"record_id", id,
		"book_id", req.BookID,
		"member_id", req.MemberID,
		"due_date", req.DueDate.UTC().Format(time.DateOnly),
		"available", available,
		"staff_id", staffAttr(req.StaffID),
	)

	r := record.WithStatus(now)
	return &r, nil
}

// Return settles an open loan and puts the copy back on the shelf.
func (l *Ledger) Return(ctx context.Context, recordID int64, staffID *int64) (*model.BorrowRecord, error) {
	now := l.now()

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	record, err := store.GetRecord(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Returned {
		return nil, fmt.Errorf("borrow record %d: %w", recordID, model.ErrAlreadyReturned)
	}

	settled, err := store.MarkReturned(ctx, tx, recordID, now, staffID)
	if err != nil {
		return nil, err
	}
	if !settled {
		return nil, fmt.Errorf("borrow record %d: %w", recordID, model.ErrAlreadyReturned)
	}

	available, err := store.ReleaseCopy(ctx, tx, record.BookID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		// The book was removed from the catalog; the loan still settles.
		l.logger().Warn("returned book no longer in catalog",
			"record_id", recordID, "book_id", record.BookID)
	case errors.Is(err, model.ErrInvariantViolation):
		l.logger().Error("copy counter out of sync with borrow records",
			"record_id", recordID, "book_id", record.BookID, "error", err)
		return nil, err
	case err != nil:
		return nil, err
	}

	updated, err := store.GetRecord(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return: %w", err)
	}

	l.logger().Info("book returned",
		"record_id", recordID,
		"book_id", record.BookID,
		"member_id", record.MemberID,
		"late", record.DueDate.Before(now),
		"available", available,
		"staff_id", staffAttr(staffID),
	)

	r := updated.WithStatus(now)
	return &r, nil
}

// OpenRecord returns the unreturned loan of a book by a member.
func (l *Ledger) OpenRecord(ctx context.Context, bookID, memberID int64) (*model.BorrowRecord, error) {
	record, err := store.FindOpenRecord(ctx, l.DB, bookID, memberID)
	if err != nil {
		return nil, err
	}
	r := record.WithStatus(l.now())
	return &r, nil
}

// ListRecords returns borrow records matching f, most recent borrow first,
// with their current status.
func (l *Ledger) ListRecords(ctx context.Context, f model.RecordFilter) ([]model.BorrowRecord, error) {
	records, err := store.ListRecords(ctx, l.DB, f)
	if err != nil {
		return nil, err
	}
	return withStatus(records, l.now()), nil
}

// dueDateValid reports whether due falls on a calendar day after now's, both
// taken in UTC.
func dueDateValid(due, now time.Time) bool {
	return day(due).After(day(now))
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDueDate accepts a bare date (2006-01-02), taken as midnight UTC, or an
// RFC 3339 timestamp.
func ParseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("due date %q: %w", s, model.ErrInvalidDueDate)
	}
	return t.UTC(), nil
}

// DefaultDueDate returns the date loanDays calendar days after now.
func DefaultDueDate(now time.Time, loanDays int) time.Time {
	return day(now).AddDate(0, 0, loanDays)
}

// DefaultDueDate returns the due date of a loan of loanDays starting today
// on the ledger's clock.
func (l *Ledger) DefaultDueDate(loanDays int) time.Time {
	return DefaultDueDate(l.now(), loanDays)
}

func withStatus(records []model.BorrowRecord, now time.Time) []model.BorrowRecord {
	for i := range records {
		records[i] = records[i].WithStatus(now)
	}
	return records
}

func staffAttr(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
