package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestInsertRecordDuplicateOpenLoan(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := mustBook(t, database, 2)
	member := mustMember(t, database, "M", "m@example.com")
	first := mustLoan(t, database, book.ID, member.ID, now(), now().AddDate(0, 0, 7))

	_, err := InsertRecord(ctx, database, book.ID, member.ID, now(), now().AddDate(0, 0, 7), nil)
	if !errors.Is(err, model.ErrDuplicateActiveLoan) {
		t.Fatalf("expected ErrDuplicateActiveLoan, got %v", err)
	}

	// Once settled, the pair may borrow again.
	mustSettle(t, database, first, book.ID, now())
	mustLoan(t, database, book.ID, member.ID, now(), now().AddDate(0, 0, 7))

	a, err := GetAvailability(ctx, database, book.ID)
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	if a.AvailableCopies != 1 || a.OnLoan != 1 {
		t.Errorf("expected 1 available / 1 on loan, got %+v", a)
	}
}

func TestMarkReturnedOnlyOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := mustBook(t, database, 1)
	member := mustMember(t, database, "M", "m@example.com")
	id := mustLoan(t, database, book.ID, member.ID, now(), now().AddDate(0, 0, 7))

	ok, err := MarkReturned(ctx, database, id, now(), nil)
	if err != nil || !ok {
		t.Fatalf("first MarkReturned = %v, %v", ok, err)
	}
	ok, err = MarkReturned(ctx, database, id, now(), nil)
	if err != nil || ok {
		t.Fatalf("second MarkReturned = %v, %v; want false, nil", ok, err)
	}

	r, err := GetRecord(ctx, database, id)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if !r.Returned || r.ReturnDate == nil {
		t.Errorf("expected returned record with return date, got %+v", r)
	}
	if r.Book == nil || r.Member == nil || r.Member.Name != "M" {
		t.Errorf("expected joined summaries, got book=%v member=%v", r.Book, r.Member)
	}
}

func TestFindOpenRecordAndGetRecordNotFound(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := GetRecord(ctx, database, 1); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound from GetRecord, got %v", err)
	}
	if _, err := FindOpenRecord(ctx, database, 1, 1); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound from FindOpenRecord, got %v", err)
	}
}

func TestListRecordsOrderAndFilter(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := mustBook(t, database, 3)
	m1 := mustMember(t, database, "M1", "m1@example.com")
	m2 := mustMember(t, database, "M2", "m2@example.com")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	older := mustLoan(t, database, book.ID, m1.ID, base, base.AddDate(0, 0, 14))
	newer := mustLoan(t, database, book.ID, m2.ID, base.Add(time.Hour), base.AddDate(0, 0, 14))
	mustSettle(t, database, older, book.ID, base.AddDate(0, 0, 2))

	all, err := ListRecords(ctx, database, model.RecordFilter{BookID: book.ID})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(all) != 2 || all[0].ID != newer || all[1].ID != older {
		t.Fatalf("expected newest first [%d %d], got %v", newer, older, all)
	}

	open := false
	active, err := ListRecords(ctx, database, model.RecordFilter{Returned: &open})
	if err != nil {
		t.Fatalf("ListRecords open: %v", err)
	}
	if len(active) != 1 || active[0].ID != newer {
		t.Errorf("expected only the open record, got %v", active)
	}

	none, err := ListRecords(ctx, database, model.RecordFilter{MemberID: 999})
	if err != nil {
		t.Fatalf("ListRecords unknown member: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func TestGetStats(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := mustBook(t, database, 2)
	m1 := mustMember(t, database, "M1", "m1@example.com")
	m2 := mustMember(t, database, "M2", "m2@example.com")

	past := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mustLoan(t, database, book.ID, m1.ID, past.AddDate(0, 0, -14), past)
	mustLoan(t, database, book.ID, m2.ID, now(), now().AddDate(0, 0, 14))

	s, err := GetStats(ctx, database, now())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if s.Books != 1 || s.TotalCopies != 2 || s.AvailableCopies != 0 || s.Members != 2 {
		t.Errorf("unexpected catalog counts: %+v", s)
	}
	if s.ActiveLoans != 2 || s.OverdueLoans != 1 {
		t.Errorf("expected 2 active / 1 overdue, got %d / %d", s.ActiveLoans, s.OverdueLoans)
	}
}
