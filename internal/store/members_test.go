package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestCreateAndUpdateMember(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	joined := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	member, err := CreateMember(ctx, database, MemberInput{
		Name: "Alice", Email: " Alice@Example.com ", Phone: "040 123 456", JoinDate: joined,
	})
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	if member.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", member.Email)
	}
	if !member.JoinDate.Equal(joined) {
		t.Errorf("expected join date %v, got %v", joined, member.JoinDate)
	}

	updated, err := UpdateMember(ctx, database, member.ID, MemberInput{Name: "Alice B", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("UpdateMember: %v", err)
	}
	if updated.Name != "Alice B" {
		t.Errorf("expected updated name, got %q", updated.Name)
	}
	if !updated.JoinDate.Equal(joined) {
		t.Errorf("expected join date kept, got %v", updated.JoinDate)
	}
}

func TestMemberEmailUnique(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustMember(t, database, "A", "a@example.com")
	b := mustMember(t, database, "B", "b@example.com")

	if _, err := CreateMember(ctx, database, MemberInput{Name: "A2", Email: "A@example.com"}); !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict on create, got %v", err)
	}
	if _, err := UpdateMember(ctx, database, b.ID, MemberInput{Name: "B", Email: "a@example.com"}); !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected ErrConflict on update, got %v", err)
	}
	if _, err := CreateMember(ctx, database, MemberInput{Name: "C", Email: "not-an-email"}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad email, got %v", err)
	}
}

func TestListMembersFilter(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustMember(t, database, "Alice", "alice@example.com")
	mustMember(t, database, "Bob", "bob@library.si")
	mustMember(t, database, "100% Carol", "carol@example.com")

	byName, _ := ListMembers(ctx, database, model.MemberFilter{Name: "ali"})
	if len(byName) != 1 || byName[0].Name != "Alice" {
		t.Errorf("expected only Alice, got %v", byName)
	}

	byEmail, _ := ListMembers(ctx, database, model.MemberFilter{Email: "example.com"})
	if len(byEmail) != 2 {
		t.Errorf("expected 2 example.com members, got %d", len(byEmail))
	}

	literal, _ := ListMembers(ctx, database, model.MemberFilter{Name: "0%"})
	if len(literal) != 1 {
		t.Errorf("expected %% to match literally, got %d members", len(literal))
	}
}

func TestDeleteMemberWithOpenLoanFails(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	member := mustMember(t, database, "M", "m@example.com")
	book := mustBook(t, database, 1)
	mustLoan(t, database, book.ID, member.ID, now(), now().AddDate(0, 0, 7))

	if err := DeleteMember(ctx, database, member.ID); !errors.Is(err, model.ErrInUse) {
		t.Errorf("expected ErrInUse, got %v", err)
	}

	exists, err := MemberExists(ctx, database, member.ID)
	if err != nil || !exists {
		t.Error("expected member to still exist")
	}
}
