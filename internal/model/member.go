package model

import "time"

// Member is a library patron who borrows books.
type Member struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	JoinDate  time.Time `json:"join_date"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberFilter narrows ListMembers by case-insensitive substring.
type MemberFilter struct {
	Name  string
	Email string
}
