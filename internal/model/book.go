package model

import "time"

// Genre groups books.
type Genre struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Book is a title in the catalog. AvailableCopies counts the copies that can
// currently be lent out and always stays within [0, TotalCopies].
type Book struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	PublishedYear   int       `json:"published_year,omitempty"`
	GenreID         *int64    `json:"genre_id,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	HasCover        bool      `json:"has_cover"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	GenreName string `json:"genre_name,omitempty"`
}

// Availability is a snapshot of a book's copy counters.
type Availability struct {
	BookID          int64 `json:"book_id"`
	TotalCopies     int   `json:"total_copies"`
	AvailableCopies int   `json:"available_copies"`
	OnLoan          int   `json:"on_loan"`
}

// BookFilter narrows ListBooks. Zero values mean "no filter".
type BookFilter struct {
	GenreID   int64
	Available *bool
}
