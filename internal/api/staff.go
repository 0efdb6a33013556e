package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/auth"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// StaffHandler manages staff accounts (admin only).
type StaffHandler struct {
	DB *sql.DB
}

type updateStaffRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

// List handles GET /api/staff.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/staff.
func (h *StaffHandler) Create(w http.ResponseWriter, r *http.Request) {
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

// Get handles GET /api/staff/{id}.
func (h *StaffHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid staff id")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, codeNotFound, "staff account not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PATCH /api/staff/{id}.
func (h *StaffHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid staff id")
		return
	}

	var req updateStaffRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	session := auth.SessionFrom(r.Context())
	if id == session.UserID && req.Role != nil && *req.Role != model.RoleAdmin {
		badRequest(w, "cannot demote your own account")
		return
	}

	upd := store.UserUpdate{Username: req.Username, Email: req.Email, Role: req.Role}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		upd.PasswordHash = &hash
	}

	user, err := store.UpdateUser(r.Context(), h.DB, id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("staff account updated", "user", session.Username, "target", user.Username,
		"role", user.Role, "password_reset", req.Password != nil)
	jsonResponse(w, http.StatusOK, user)
}

// Delete handles DELETE /api/staff/{id}.
func (h *StaffHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid staff id")
		return
	}

	session := auth.SessionFrom(r.Context())
	if id == session.UserID {
		badRequest(w, "cannot delete your own account")
		return
	}

	if err := store.DeleteUser(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("staff account deleted", "user", session.Username, "target_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "staff account deleted"})
}
