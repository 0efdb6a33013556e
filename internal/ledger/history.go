package ledger

import (
	"context"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// HistoryForMember returns every loan of a member, most recent first.
func (l *Ledger) HistoryForMember(ctx context.Context, memberID int64) ([]model.BorrowRecord, error) {
	exists, err := store.MemberExists(ctx, l.DB, memberID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("member %d: %w", memberID, model.ErrNotFound)
	}
	return l.ListRecords(ctx, model.RecordFilter{MemberID: memberID})
}

// HistoryForBook returns every loan of a book, most recent first.
func (l *Ledger) HistoryForBook(ctx context.Context, bookID int64) ([]model.BorrowRecord, error) {
	book, err := store.GetBook(ctx, l.DB, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("book %d: %w", bookID, model.ErrNotFound)
	}
	return l.ListRecords(ctx, model.RecordFilter{BookID: bookID})
}

// Overdue returns the open loans whose due date has passed.
func (l *Ledger) Overdue(ctx context.Context) ([]model.BorrowRecord, error) {
	open := false
	records, err := l.ListRecords(ctx, model.RecordFilter{Returned: &open})
	if err != nil {
		return nil, err
	}

	overdue := []model.BorrowRecord{}
	for _, r := range records {
		if r.Status == model.StatusOverdue {
			overdue = append(overdue, r)
		}
	}
	return overdue, nil
}

// Stats returns the dashboard counters.
func (l *Ledger) Stats(ctx context.Context) (*store.Stats, error) {
	return store.GetStats(ctx, l.DB, l.now())
}
