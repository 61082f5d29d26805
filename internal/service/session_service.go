package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat-llm/internal/domain"
	"chat-llm/internal/repository"
)

var (
	ErrUnauthorized                = errors.New("unauthorized")
	ErrSessionNotFound             = repository.ErrSessionNotFound
	ErrSessionServiceNotConfigured = errors.New("session service not configured")
)

// SessionService administra las sesiones de chat de cada owner.
type SessionService struct {
	repo repository.ChatSessionRepository
	now  func() time.Time
}

func NewSessionService(repo repository.ChatSessionRepository) *SessionService {
	return &SessionService{repo: repo, now: time.Now}
}

// Create abre una sesion vacia. Sin titulo se usa domain.DefaultSessionTitle.
func (s *SessionService) Create(ctx context.Context, ownerID, title string) (domain.ChatSession, error) {
	if s == nil || s.repo == nil {
		return domain.ChatSession{}, ErrSessionServiceNotConfigured
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.ChatSession{}, ErrUnauthorized
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultSessionTitle
	}
	now := s.now().UTC()
	session := domain.ChatSession{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []domain.ChatMessage{},
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return domain.ChatSession{}, err
	}
	return session, nil
}

func (s *SessionService) Get(ctx context.Context, ownerID, sessionID string) (domain.ChatSession, error) {
	if s == nil || s.repo == nil {
		return domain.ChatSession{}, ErrSessionServiceNotConfigured
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.ChatSession{}, ErrUnauthorized
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ChatSession{}, ErrSessionNotFound
	}
	return s.repo.Get(ctx, ownerID, sessionID)
}

// List devuelve las sesiones del owner, la mas reciente primero.
func (s *SessionService) List(ctx context.Context, ownerID string) ([]domain.ChatSession, error) {
	if s == nil || s.repo == nil {
		return nil, ErrSessionServiceNotConfigured
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	sessions, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []domain.ChatSession{}
	}
	return sessions, nil
}

func (s *SessionService) Delete(ctx context.Context, ownerID, sessionID string) error {
	if s == nil || s.repo == nil {
		return ErrSessionServiceNotConfigured
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return ErrUnauthorized
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrSessionNotFound
	}
	return s.repo.Delete(ctx, ownerID, sessionID)
}
