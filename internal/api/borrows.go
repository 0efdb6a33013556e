package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/knjiznica/internal/ledger"
	"github.com/erazemk/knjiznica/internal/model"
)

// BorrowsHandler handles borrowing, returns and loan history.
// LoanDays, when positive, sets the due date of borrows that omit one.
type BorrowsHandler struct {
	Ledger   *ledger.Ledger
	LoanDays int
}

type borrowRequest struct {
	BookID   int64  `json:"book_id"`
	MemberID int64  `json:"member_id"`
	DueDate  string `json:"due_date"`
}

type returnRequest struct {
	BorrowRecordID int64 `json:"borrow_record_id"`
}

// List handles GET /api/borrow-records.
func (h *BorrowsHandler) List(w http.ResponseWriter, r *http.Request) {
	returned, ok := queryBool(r, "returned")
	if !ok {
		badRequest(w, "invalid returned flag")
		return
	}
	bookID, ok := queryID(r, "book_id")
	if !ok {
		badRequest(w, "invalid book_id")
		return
	}
	memberID, ok := queryID(r, "member_id")
	if !ok {
		badRequest(w, "invalid member_id")
		return
	}

	records, err := h.Ledger.ListRecords(r.Context(), model.RecordFilter{
		BookID:   bookID,
		MemberID: memberID,
		Returned: returned,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, records)
}

// Borrow handles POST /api/borrow-records/borrow.
func (h *BorrowsHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if req.BookID <= 0 || req.MemberID <= 0 {
		badRequest(w, "book_id and member_id required")
		return
	}

	var due time.Time
	switch {
	case req.DueDate != "":
		var err error
		if due, err = ledger.ParseDueDate(req.DueDate); err != nil {
			writeError(w, r, err)
			return
		}
	case h.LoanDays > 0:
		due = h.Ledger.DefaultDueDate(h.LoanDays)
	default:
		badRequest(w, "due_date required")
		return
	}

	record, err := h.Ledger.Borrow(r.Context(), ledger.BorrowRequest{
		BookID:   req.BookID,
		MemberID: req.MemberID,
		DueDate:  due,
		StaffID:  staffID(r.Context()),
	})
	if err != nil {
		slog.Warn("borrow rejected", "user", actor(r.Context()),
			"book_id", req.BookID, "member_id", req.MemberID, "error", err)
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusCreated, record)
}

// Return handles POST /api/borrow-records/return.
func (h *BorrowsHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if req.BorrowRecordID <= 0 {
		badRequest(w, "borrow_record_id required")
		return
	}

	record, err := h.Ledger.Return(r.Context(), req.BorrowRecordID, staffID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, record)
}

// Open handles GET /api/borrow-records/open?book_id=&member_id=.
func (h *BorrowsHandler) Open(w http.ResponseWriter, r *http.Request) {
	bookID, ok1 := queryID(r, "book_id")
	memberID, ok2 := queryID(r, "member_id")
	if !ok1 || !ok2 || bookID == 0 || memberID == 0 {
		badRequest(w, "book_id and member_id required")
		return
	}

	record, err := h.Ledger.OpenRecord(r.Context(), bookID, memberID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, record)
}

// Overdue handles GET /api/borrow-records/overdue.
func (h *BorrowsHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	records, err := h.Ledger.Overdue(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, records)
}

// History handles GET /api/history?member_id= or ?book_id=. Exactly one of
// the two must be given.
func (h *BorrowsHandler) History(w http.ResponseWriter, r *http.Request) {
	bookID, ok1 := queryID(r, "book_id")
	memberID, ok2 := queryID(r, "member_id")
	if !ok1 || !ok2 || (bookID == 0) == (memberID == 0) {
		badRequest(w, "exactly one of book_id or member_id required")
		return
	}

	var records []model.BorrowRecord
	var err error
	if memberID != 0 {
		records, err = h.Ledger.HistoryForMember(r.Context(), memberID)
	} else {
		records, err = h.Ledger.HistoryForBook(r.Context(), bookID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, records)
}

// Stats handles GET /api/stats.
func (h *BorrowsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Ledger.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}
