package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/knjiznica/internal/auth"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	Token       string      `json:"token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *model.User `json:"user"`
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		badRequest(w, "username and password required")
		return
	}

	user, err := store.GetUserByUsername(r.Context(), h.DB, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil {
		slog.Warn("login failed", "username", req.Username, "reason", "unknown user", "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, codeUnauthorized, "invalid credentials")
		return
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		slog.Warn("login failed", "username", req.Username, "reason", "bad password", "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, codeUnauthorized, "invalid credentials")
		return
	}

	token, session, err := auth.GenerateToken(h.JWTSecret, user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("user logged in", "user", user.Username, "role", user.Role)
	jsonResponse(w, http.StatusOK, loginResponse{
		AccessToken: token,
		Token:       token,
		TokenType:   "Bearer",
		ExpiresAt:   session.ExpiresAt.UTC(),
		User:        user,
	})
}

// Signup handles POST /api/auth/signup. Only administrators create staff
// accounts; the role defaults to librarian.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	user, err := createStaff(r, h.DB, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("staff account created", "user", actor(r.Context()), "new_user", user.Username, "role", user.Role)
	jsonResponse(w, http.StatusCreated, user)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFrom(r.Context())
	user, err := store.GetUser(r.Context(), h.DB, session.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"user":    user,
		"session": session,
	})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFrom(r.Context())
	if err := store.RevokeToken(r.Context(), h.DB, session.TokenID, session.ExpiresAt); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("user logged out", "user", session.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFrom(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		badRequest(w, "current and new password required")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, session.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.CurrentPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		jsonError(w, http.StatusUnauthorized, codeUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, session.UserID, hash); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("user changed own password", "user", session.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func createStaff(r *http.Request, db *sql.DB, req signupRequest) (*model.User, error) {
	if req.Role == "" {
		req.Role = model.RoleLibrarian
	}
	if !model.ValidRole(req.Role) {
		return nil, fmt.Errorf("%w: invalid role %q", model.ErrInvalidInput, req.Role)
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	return store.CreateUser(r.Context(), db, req.Username, req.Email, hash, req.Role)
}
