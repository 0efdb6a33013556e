package ledger

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctx    context.Context
	db     *sql.DB
	ledger *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	return &fixture{
		ctx: context.Background(),
		db:  database,
		ledger: &Ledger{
			DB:     database,
			Now:    func() time.Time { return testNow },
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}
}

func (f *fixture) book(t *testing.T, copies int) *model.Book {
	t.Helper()
	b, err := store.CreateBook(f.ctx, f.db, store.BookInput{Title: "Alamut", Author: "Vladimir Bartol", TotalCopies: copies})
	require.NoError(t, err, "creating book")
	return b
}

func (f *fixture) member(t *testing.T, email string) *model.Member {
	t.Helper()
	m, err := store.CreateMember(f.ctx, f.db, store.MemberInput{Name: email, Email: email})
	require.NoError(t, err, "creating member")
	return m
}

func (f *fixture) available(t *testing.T, bookID int64) int {
	t.Helper()
	a, err := store.GetAvailability(f.ctx, f.db, bookID)
	require.NoError(t, err, "getting availability")
	assert.GreaterOrEqual(t, a.AvailableCopies, 0)
	assert.LessOrEqual(t, a.AvailableCopies, a.TotalCopies)
	return a.AvailableCopies
}

func inDays(n int) time.Time {
	return testNow.AddDate(0, 0, n)
}

func Test_Borrow_DecrementsAvailability(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 2)
	member := f.member(t, "m1@example.com")
	staff := int64(7)

	record, err := f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID, DueDate: inDays(7), StaffID: &staff})
	require.NoError(t, err)

	assert.Equal(t, model.StatusActive, record.Status)
	assert.False(t, record.Returned)
	assert.Nil(t, record.ReturnDate)
	assert.True(t, record.BorrowDate.Equal(testNow), "borrow date is the ledger clock")
	require.NotNil(t, record.Book)
	assert.Equal(t, "Alamut", record.Book.Title)
	require.NotNil(t, record.BorrowedBy)
	assert.Equal(t, staff, *record.BorrowedBy)
	assert.Equal(t, 1, f.available(t, book.ID))
}

func Test_Borrow_RejectsDueDateNotAfterToday(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 1)
	member := f.member(t, "m1@example.com")

	for name, due := range map[string]time.Time{
		"yesterday":   inDays(-1),
		"today":       testNow,
		"later today": testNow.Add(6 * time.Hour),
		"zero":        {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID, DueDate: due})
			assert.ErrorIs(t, err, model.ErrInvalidDueDate)
		})
	}

	assert.Equal(t, 1, f.available(t, book.ID), "rejected borrows must not touch the counter")

	_, err := f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID, DueDate: inDays(1)})
	assert.NoError(t, err, "tomorrow is a valid due date")
}

func Test_Borrow_UnknownMemberOrBook(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 1)
	member := f.member(t, "m1@example.com")

	_, err := f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID + 99, DueDate: inDays(7)})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID + 99, MemberID: member.ID, DueDate: inDays(7)})
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.Equal(t, 1, f.available(t, book.ID))
}

func Test_Borrow_DuplicateActiveLoan(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 3)
	member := f.member(t, "m1@example.com")

	_, err := f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID, DueDate: inDays(7)})
	require.NoError(t, err)

	_, err = f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID, DueDate: inDays(14)})
	assert.ErrorIs(t, err, model.ErrDuplicateActiveLoan)
	assert.Equal(t, 2, f.available(t, book.ID), "duplicate must not reserve a copy")

	open := false
	records, err := f.ledger.ListRecords(f.ctx, model.RecordFilter{BookID: book.ID, Returned: &open})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func Test_Borrow_InsertFailureReleasesReservedCopy(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 2)
	member := f.member(t, "m1@example.com")

	// The copy is reserved before the record insert; make that insert fail.
	_, err := f.db.Exec(`CREATE TRIGGER fail_borrow_insert BEFORE INSERT ON borrow_records
		BEGIN SELECT RAISE(ABORT, 'insert refused'); END`)
	require.NoError(t, err)

	_, err = f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID, DueDate: inDays(7)})
	require.Error(t, err)
	assert.ErrorContains(t, err, "insert refused")
	assert.Equal(t, 2, f.available(t, book.ID), "reserved copy must be released")

	records, err := f.ledger.ListRecords(f.ctx, model.RecordFilter{BookID: book.ID})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func Test_SingleCopyScenario(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 1)
	m1 := f.member(t, "m1@example.com")
	m2 := f.member(t, "m2@example.com")

	first, err := f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: m1.ID, DueDate: inDays(7)})
	require.NoError(t, err)
	assert.Equal(t, 0, f.available(t, book.ID))

	_, err = f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: m2.ID, DueDate: inDays(7)})
	assert.ErrorIs(t, err, model.ErrNoCopiesAvailable)

	returned, err := f.ledger.Return(f.ctx, first.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.True(t, returned.ReturnDate.Equal(testNow))
	assert.Equal(t, 1, f.available(t, book.ID))

	_, err = f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: m2.ID, DueDate: inDays(7)})
	assert.NoError(t, err)
	assert.Equal(t, 0, f.available(t, book.ID))
}

func Test_Return_Twice(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 2)
	member := f.member(t, "m1@example.com")

	record, err := f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID, DueDate: inDays(7)})
	require.NoError(t, err)

	_, err = f.ledger.Return(f.ctx, record.ID, nil)
	require.NoError(t, err)

	_, err = f.ledger.Return(f.ctx, record.ID, nil)
	assert.ErrorIs(t, err, model.ErrAlreadyReturned)
	assert.Equal(t, 2, f.available(t, book.ID), "only the first return releases a copy")

	_, err = f.ledger.Return(f.ctx, record.ID+99, nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func Test_Return_CounterOutOfSync(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 1)
	member := f.member(t, "m1@example.com")

	record, err := f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID, DueDate: inDays(7)})
	require.NoError(t, err)

	// Corrupt the counter behind the ledger's back.
	_, err = f.db.Exec(`UPDATE books SET available_copies = total_copies WHERE id = ?`, book.ID)
	require.NoError(t, err)

	_, err = f.ledger.Return(f.ctx, record.ID, nil)
	require.ErrorIs(t, err, model.ErrInvariantViolation)

	open, err := f.ledger.OpenRecord(f.ctx, book.ID, member.ID)
	require.NoError(t, err, "failed return must leave the loan open")
	assert.Equal(t, record.ID, open.ID)
	assert.Equal(t, 1, f.available(t, book.ID))
}

func Test_Return_BookDeleted(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 1)
	member := f.member(t, "m1@example.com")

	record, err := f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID, DueDate: inDays(7)})
	require.NoError(t, err)

	// DeleteBook refuses while a loan is open, so remove the row directly.
	_, err = f.db.Exec(`DELETE FROM books WHERE id = ?`, book.ID)
	require.NoError(t, err)

	returned, err := f.ledger.Return(f.ctx, record.ID, nil)
	require.NoError(t, err)
	assert.True(t, returned.Returned)
	assert.Nil(t, returned.Book)
}

func Test_OpenRecord(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 1)
	member := f.member(t, "m1@example.com")

	_, err := f.ledger.OpenRecord(f.ctx, book.ID, member.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	record, err := f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID, DueDate: inDays(7)})
	require.NoError(t, err)

	open, err := f.ledger.OpenRecord(f.ctx, book.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, open.ID)

	_, err = f.ledger.Return(f.ctx, record.ID, nil)
	require.NoError(t, err)

	_, err = f.ledger.OpenRecord(f.ctx, book.ID, member.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func Test_ConcurrentBorrowOfLastCopy(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 1)
	members := []*model.Member{
		f.member(t, "m1@example.com"),
		f.member(t, "m2@example.com"),
	}

	errs := make([]error, len(members))
	start := make(chan struct{})

	var g errgroup.Group
	for i, m := range members {
		g.Go(func() error {
			<-start
			_, errs[i] = f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: m.ID, DueDate: inDays(7)})
			return nil
		})
	}
	close(start)
	require.NoError(t, g.Wait())

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, model.ErrNoCopiesAvailable):
			lost++
		default:
			t.Errorf("unexpected borrow error: %v", err)
		}
	}
	assert.Equal(t, 1, won, "exactly one borrow succeeds")
	assert.Equal(t, 1, lost, "the other sees no copies")
	assert.Equal(t, 0, f.available(t, book.ID))

	records, err := f.ledger.HistoryForBook(f.ctx, book.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func Test_ConcurrentReturnsReleaseOnce(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, 1)
	member := f.member(t, "m1@example.com")

	record, err := f.ledger.Borrow(f.ctx, BorrowRequest{BookID: book.ID, MemberID: member.ID, DueDate: inDays(7)})
	require.NoError(t, err)

	const callers = 4
	errs := make([]error, callers)
	var g errgroup.Group
	for i := range callers {
		g.Go(func() error {
			_, errs[i] = f.ledger.Return(f.ctx, record.ID, nil)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, model.ErrAlreadyReturned)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.available(t, book.ID))
}
