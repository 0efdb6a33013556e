package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

func now() time.Time {
	return time.Now().UTC()
}

func mustBook(t *testing.T, database *sql.DB, copies int) *model.Book {
	t.Helper()
	b, err := CreateBook(context.Background(), database, BookInput{Title: "T", Author: "A", TotalCopies: copies})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	return b
}

func mustMember(t *testing.T, database *sql.DB, name, email string) *model.Member {
	t.Helper()
	m, err := CreateMember(context.Background(), database, MemberInput{Name: name, Email: email})
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	return m
}

// mustLoan reserves a copy and records the loan, the way the ledger does.
func mustLoan(t *testing.T, database *sql.DB, bookID, memberID int64, borrowed, due time.Time) int64 {
	t.Helper()
	ctx := context.Background()
	if _, err := ReserveCopy(ctx, database, bookID); err != nil {
		t.Fatalf("ReserveCopy: %v", err)
	}
	id, err := InsertRecord(ctx, database, bookID, memberID, borrowed, due, nil)
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	return id
}

// mustSettle marks a loan returned and puts its copy back.
func mustSettle(t *testing.T, database *sql.DB, id, bookID int64, at time.Time) {
	t.Helper()
	ctx := context.Background()
	ok, err := MarkReturned(ctx, database, id, at, nil)
	if err != nil || !ok {
		t.Fatalf("MarkReturned = %v, %v", ok, err)
	}
	if _, err := ReleaseCopy(ctx, database, bookID); err != nil {
		t.Fatalf("ReleaseCopy: %v", err)
	}
}
