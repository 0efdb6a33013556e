package auth

import (
	"context"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// Session is the authenticated staff user behind a request.
type Session struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Can reports whether the session holds at least the given role.
func (s *Session) Can(minRole string) bool {
	return s != nil && model.RoleAtLeast(s.Role, minRole)
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored in ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
