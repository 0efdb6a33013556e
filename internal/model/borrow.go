package model

import "time"

// BorrowStatus is derived from a record's stored fields at read time.
type BorrowStatus string

// Borrow statuses.
const (
	StatusActive   BorrowStatus = "ACTIVE"
	StatusOverdue  BorrowStatus = "OVERDUE"
	StatusReturned BorrowStatus = "RETURNED"
)

// BorrowRecord is one loan of one copy of a book to a member.
type BorrowRecord struct {
	ID         int64      `json:"id"`
	BookID     int64      `json:"book_id"`
	MemberID   int64      `json:"member_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
	Returned   bool       `json:"returned"`
	BorrowedBy *int64     `json:"borrowed_by,omitempty"`
	ReturnedBy *int64     `json:"returned_by,omitempty"`

	// Status is filled in by WithStatus and never persisted.
	Status BorrowStatus `json:"status"`

	// Joined fields (not always populated).
	Book   *BookSummary   `json:"book,omitempty"`
	Member *MemberSummary `json:"member,omitempty"`
}

// BookSummary is the slice of a book embedded in borrow records.
type BookSummary struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// MemberSummary is the slice of a member embedded in borrow records.
type MemberSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Classify derives a record's status. A returned record is RETURNED even if
// it came back late; an open record is OVERDUE once its due date has passed.
func Classify(r BorrowRecord, now time.Time) BorrowStatus {
	if r.Returned {
		return StatusReturned
	}
	if r.DueDate.Before(now) {
		return StatusOverdue
	}
	return StatusActive
}

// WithStatus returns a copy of r with Status derived for now.
func (r BorrowRecord) WithStatus(now time.Time) BorrowRecord {
	r.Status = Classify(r, now)
	return r
}

// RecordFilter narrows ListRecords.
type RecordFilter struct {
	BookID   int64
	MemberID int64
	Returned *bool
}
