package token

import (
	"context"
	"errors"
	"testing"

	"github.com/tasklink/notionbridge/internal/core/errs"
	"github.com/tasklink/notionbridge/internal/infra/storage/memory"
)

func newTestService() *DefaultService {
	store := memory.NewMemoryStorage()
	return NewService(memory.NewTokenRepo(store))
}

func seedToken(t *testing.T, svc *DefaultService, name string) string {
	t.Helper()
	created, err := svc.Create(context.Background(), CreateInput{
		Name:  name,
		Value: "secret_" + name + "_0123456789abcdef",
	})
	if err != nil {
		t.Fatalf("seed token %s: %v", name, err)
	}
	return created.ID
}

func TestCreateToken(t *testing.T) {
	svc := newTestService()

	created, err := svc.Create(context.Background(), CreateInput{
		Name:        "integration",
		Value:       "secret_abcdef0123456789",
		Description: "CI workspace",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if created.ID == "" {
		t.Error("ID not assigned")
	}
	if !created.IsActive {
		t.Error("new tokens must start active")
	}
	if created.Value != "secret_abcdef0123456789" {
		t.Error("stored value must not be altered")
	}
	if got := created.Preview(); got != "******...456789" {
		t.Errorf("preview = %q", got)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestGetToken(t *testing.T) {
	svc := newTestService()
	id := seedToken(t, svc, "primary")

	got, err := svc.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "primary" {
		t.Errorf("name = %q", got.Name)
	}

	_, err = svc.GetByID(context.Background(), "missing")
	var notFound *errs.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.EntityType != "Token" || notFound.EntityID != "missing" {
		t.Errorf("got %s/%s", notFound.EntityType, notFound.EntityID)
	}
}

func TestListTokens(t *testing.T) {
	svc := newTestService()
	seedToken(t, svc, "first")
	seedToken(t, svc, "second")
	retired := seedToken(t, svc, "retired")

	inactive := false
	if _, err := svc.Update(context.Background(), retired, UpdateInput{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	active, err := svc.List(context.Background(), true)
	if err != nil {
		t.Fatalf("List active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active tokens = %d, want 2", len(active))
	}
	for _, tok := range active {
		if tok.Name == "retired" {
			t.Error("inactive token returned from active-only listing")
		}
	}

	all, err := svc.List(context.Background(), false)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all tokens = %d, want 3", len(all))
	}
}

func TestUpdateToken(t *testing.T) {
	svc := newTestService()
	id := seedToken(t, svc, "old-name")

	name := "new-name"
	desc := "rotated owner"
	updated, err := svc.Update(context.Background(), id, UpdateInput{Name: &name, Description: &desc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.Name != "new-name" || updated.Description != "rotated owner" {
		t.Errorf("updated = %q/%q", updated.Name, updated.Description)
	}
	if !updated.IsActive {
		t.Error("IsActive must be untouched when not in the patch")
	}
	if updated.Value == "" {
		t.Error("value must survive metadata updates")
	}
}

func TestUpdateTokenNoFields(t *testing.T) {
	svc := newTestService()
	id := seedToken(t, svc, "primary")

	_, err := svc.Update(context.Background(), id, UpdateInput{})

	var validation *errs.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validation.Message != "No fields to update" || validation.Field != "body" {
		t.Errorf("got %q (field %q)", validation.Message, validation.Field)
	}
}

func TestUpdateTokenNotFound(t *testing.T) {
	svc := newTestService()

	name := "x"
	_, err := svc.Update(context.Background(), "missing", UpdateInput{Name: &name})

	var notFound *errs.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestDeleteToken(t *testing.T) {
	svc := newTestService()
	id := seedToken(t, svc, "primary")

	if err := svc.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err := svc.GetByID(context.Background(), id)
	var notFound *errs.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError after delete, got %v", err)
	}

	if err := svc.Delete(context.Background(), id); !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError on second delete, got %v", err)
	}
}
