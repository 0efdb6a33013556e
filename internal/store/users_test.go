package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "ana", "ana@example.com", "hash123", model.RoleLibrarian)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "ana" {
		t.Errorf("expected username 'ana', got %q", user.Username)
	}
	if user.Role != model.RoleLibrarian {
		t.Errorf("expected role 'librarian', got %q", user.Role)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != "ana@example.com" {
		t.Errorf("expected email 'ana@example.com', got %q", got.Email)
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	database := db.NewTestDB(t)

	_, err := CreateUser(context.Background(), database, "ana", "", "hash", "manager")
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "ana", "", "hash", model.RoleLibrarian)
	_, err := CreateUser(ctx, database, "ana", "", "hash", model.RoleAdmin)
	if !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestUsernameReusableAfterDelete(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first, _ := CreateUser(ctx, database, "ana", "", "hash", model.RoleLibrarian)
	if err := DeleteUser(ctx, database, first.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if _, err := CreateUser(ctx, database, "ana", "", "hash", model.RoleLibrarian); err != nil {
		t.Errorf("expected username to be reusable after soft delete, got %v", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "alice", "", "hash", model.RoleAdmin)

	user, err := GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}

	missing, err := GetUserByUsername(ctx, database, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestListAndDeleteUsers(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a, _ := CreateUser(ctx, database, "a", "", "hash", model.RoleLibrarian)
	CreateUser(ctx, database, "b", "", "hash", model.RoleAdmin)

	users, err := ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	DeleteUser(ctx, database, a.ID)
	users, _ = ListUsers(ctx, database)
	if len(users) != 1 {
		t.Errorf("expected 1 user after delete, got %d", len(users))
	}

	if err := DeleteUser(ctx, database, a.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestUpdateUserPartial(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pwuser", "old@example.com", "oldhash", model.RoleLibrarian)

	role := model.RoleAdmin
	got, err := UpdateUser(ctx, database, user.ID, UserUpdate{Role: &role})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got.Role != model.RoleAdmin || got.Email != "old@example.com" || got.Username != "pwuser" {
		t.Errorf("unexpected user after role update: %+v", got)
	}

	UpdateUserPassword(ctx, database, user.ID, "newhash")
	got, _ = GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
}
