package service

import (
	"context"
	"errors"
	"testing"

	"chat-llm/internal/domain"
)

func TestSessionService_CreateGetDelete(t *testing.T) {
	repo := newMockSessionRepo()
	svc := NewSessionService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, "owner-1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Title != domain.DefaultSessionTitle || created.Messages == nil {
		t.Fatalf("unexpected session %+v", created)
	}

	got, err := svc.Get(ctx, "owner-1", created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("unexpected session id %q", got.ID)
	}

	if _, err := svc.Get(ctx, "owner-2", created.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for another owner, got %v", err)
	}

	if err := svc.Delete(ctx, "owner-1", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, "owner-1", created.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestSessionService_CreateWithTitle(t *testing.T) {
	svc := NewSessionService(newMockSessionRepo())
	s, err := svc.Create(context.Background(), "owner-1", "  Viajes  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Title != "Viajes" {
		t.Fatalf("expected trimmed title, got %q", s.Title)
	}
}

func TestSessionService_RequiresOwner(t *testing.T) {
	svc := NewSessionService(newMockSessionRepo())
	ctx := context.Background()
	if _, err := svc.Create(ctx, " ", ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.List(ctx, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSessionService_ListEmpty(t *testing.T) {
	svc := NewSessionService(newMockSessionRepo())
	sessions, err := svc.List(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Fatalf("expected empty non-nil list, got %+v", sessions)
	}
}

func TestSessionService_NotConfigured(t *testing.T) {
	var svc *SessionService
	if _, err := svc.List(context.Background(), "owner-1"); !errors.Is(err, ErrSessionServiceNotConfigured) {
		t.Fatalf("expected ErrSessionServiceNotConfigured, got %v", err)
	}
}
