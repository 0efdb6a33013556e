package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/knjiznica/internal/ledger"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// MembersHandler handles library member endpoints.
type MembersHandler struct {
	DB     *sql.DB
	Ledger *ledger.Ledger
}

type memberRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	JoinDate string `json:"join_date"`
}

// updateMemberRequest is a partial update; absent fields are kept.
type updateMemberRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	JoinDate *string `json:"join_date"`
}

// parseJoinDate accepts an empty string (meaning "unset") or a date.
func parseJoinDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.DateOnly, s)
	return t, err == nil
}

// List handles GET /api/members.
func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	members, err := store.ListMembers(r.Context(), h.DB, model.MemberFilter{
		Name:  q.Get("name"),
		Email: q.Get("email"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	jsonResponse(w, http.StatusOK, members)
}

// Create handles POST /api/members.
func (h *MembersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	joined, ok := parseJoinDate(req.JoinDate)
	if !ok {
		badRequest(w, "join_date must be YYYY-MM-DD")
		return
	}

	member, err := store.CreateMember(r.Context(), h.DB, store.MemberInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		JoinDate: joined,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("member registered", "user", actor(r.Context()), "member_id", member.ID, "email", member.Email)
	jsonResponse(w, http.StatusCreated, member)
}

// Get handles GET /api/members/{id}.
func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid member id")
		return
	}

	member, err := store.GetMember(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if member == nil {
		jsonError(w, http.StatusNotFound, codeNotFound, "member not found")
		return
	}
	jsonResponse(w, http.StatusOK, member)
}

// Update handles PATCH /api/members/{id}.
func (h *MembersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid member id")
		return
	}

	var req updateMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	member, err := store.GetMember(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if member == nil {
		jsonError(w, http.StatusNotFound, codeNotFound, "member not found")
		return
	}

	in := store.MemberInput{Name: member.Name, Email: member.Email, Phone: member.Phone}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Email != nil {
		in.Email = *req.Email
	}
	if req.Phone != nil {
		in.Phone = *req.Phone
	}
	if req.JoinDate != nil {
		if in.JoinDate, ok = parseJoinDate(*req.JoinDate); !ok {
			badRequest(w, "join_date must be YYYY-MM-DD")
			return
		}
	}

	updated, err := store.UpdateMember(r.Context(), h.DB, id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("member updated", "user", actor(r.Context()), "member_id", id)
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/members/{id}.
func (h *MembersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid member id")
		return
	}

	if err := store.DeleteMember(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("member deleted", "user", actor(r.Context()), "member_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "member deleted"})
}

// History handles GET /api/members/{id}/borrowing-history.
func (h *MembersHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid member id")
		return
	}

	records, err := h.Ledger.HistoryForMember(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, records)
}
