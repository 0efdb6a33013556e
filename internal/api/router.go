package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/knjiznica/internal/ledger"
	"github.com/erazemk/knjiznica/internal/model"
)

// route is one API endpoint. An empty minRole makes the route public; any
// other value requires an authenticated session holding at least that role.
type route struct {
	pattern string
	minRole string
	handler http.HandlerFunc
}

// Config holds the router's dependencies.
type Config struct {
	DB        *sql.DB
	JWTSecret string
	Ledger    *ledger.Ledger

	// LoanDays is the loan period applied when a borrow omits due_date.
	// Zero makes due_date mandatory.
	LoanDays int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	if cfg.Ledger == nil {
		cfg.Ledger = ledger.New(cfg.DB)
	}

	authHandler := &AuthHandler{DB: cfg.DB, JWTSecret: cfg.JWTSecret}
	staffHandler := &StaffHandler{DB: cfg.DB}
	genresHandler := &GenresHandler{DB: cfg.DB}
	booksHandler := &BooksHandler{DB: cfg.DB, Ledger: cfg.Ledger}
	membersHandler := &MembersHandler{DB: cfg.DB, Ledger: cfg.Ledger}
	borrowsHandler := &BorrowsHandler{Ledger: cfg.Ledger, LoanDays: cfg.LoanDays}

	// Reads are open to every staff role; librarian is the lowest role, so
	// staff and librarian coincide today but name different intents.
	const (
		public    = ""
		staff     = model.RoleLibrarian
		librarian = model.RoleLibrarian
		admin     = model.RoleAdmin
	)

	routes := []route{
		{"POST /api/auth/login", public, authHandler.Login},
		{"POST /api/auth/signup", admin, authHandler.Signup},
		{"GET /api/auth/me", staff, authHandler.Me},
		{"POST /api/auth/logout", staff, authHandler.Logout},
		{"PUT /api/auth/password", staff, authHandler.ChangePassword},

		{"GET /api/staff", admin, staffHandler.List},
		{"POST /api/staff", admin, staffHandler.Create},
		{"GET /api/staff/{id}", admin, staffHandler.Get},
		{"PATCH /api/staff/{id}", admin, staffHandler.Update},
		{"DELETE /api/staff/{id}", admin, staffHandler.Delete},

		{"GET /api/genres", staff, genresHandler.List},
		{"POST /api/genres", librarian, genresHandler.Create},
		{"GET /api/genres/{id}", staff, genresHandler.Get},
		{"PATCH /api/genres/{id}", librarian, genresHandler.Update},
		{"DELETE /api/genres/{id}", librarian, genresHandler.Delete},

		{"GET /api/books", staff, booksHandler.List},
		{"POST /api/books", librarian, booksHandler.Create},
		{"GET /api/books/{id}", staff, booksHandler.Get},
		{"PATCH /api/books/{id}", librarian, booksHandler.Update},
		{"DELETE /api/books/{id}", librarian, booksHandler.Delete},
		{"GET /api/books/{id}/availability", staff, booksHandler.Availability},
		{"PUT /api/books/{id}/cover", librarian, booksHandler.UploadCover},
		{"GET /api/books/{id}/cover", staff, booksHandler.GetCover},
		{"GET /api/books/{id}/history", staff, booksHandler.History},

		{"GET /api/members", staff, membersHandler.List},
		{"POST /api/members", librarian, membersHandler.Create},
		{"GET /api/members/{id}", staff, membersHandler.Get},
		{"PATCH /api/members/{id}", librarian, membersHandler.Update},
		{"DELETE /api/members/{id}", librarian, membersHandler.Delete},
		{"GET /api/members/{id}/borrowing-history", staff, membersHandler.History},

		{"GET /api/borrow-records", staff, borrowsHandler.List},
		{"POST /api/borrow-records/borrow", librarian, borrowsHandler.Borrow},
		{"POST /api/borrow-records/return", librarian, borrowsHandler.Return},
		{"GET /api/borrow-records/open", staff, borrowsHandler.Open},
		{"GET /api/borrow-records/overdue", staff, borrowsHandler.Overdue},
		{"GET /api/history", staff, borrowsHandler.History},
		{"GET /api/stats", staff, borrowsHandler.Stats},
	}

	mux := http.NewServeMux()
	authMW := AuthMiddleware(cfg.JWTSecret, cfg.DB)
	for _, rt := range routes {
		if rt.minRole == public {
			mux.Handle(rt.pattern, rt.handler)
			continue
		}
		mux.Handle(rt.pattern, authMW(authorize(rt.minRole, rt.handler)))
	}

	return mux
}
