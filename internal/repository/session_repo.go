package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat-llm/internal/domain"
)

var ErrSessionNotFound = errors.New("chat session not found")

// ChatSessionRepository es el contrato de persistencia de sesiones de chat.
// SaveMessages reemplaza la lista completa: el ultimo en escribir gana.
type ChatSessionRepository interface {
	Create(ctx context.Context, session domain.ChatSession) error
	Get(ctx context.Context, ownerID, sessionID string) (domain.ChatSession, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.ChatSession, error)
	SaveMessages(ctx context.Context, ownerID, sessionID string, messages []domain.ChatMessage) error
	Delete(ctx context.Context, ownerID, sessionID string) error
}

const pgChatSessionSchema = `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id         TEXT        NOT NULL,
		owner_id   TEXT        NOT NULL,
		title      TEXT        NOT NULL,
		messages   JSONB       NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (owner_id, id)
	);
	CREATE INDEX IF NOT EXISTS chat_sessions_owner_updated_idx
		ON chat_sessions (owner_id, updated_at DESC);
`

// PgChatSessionRepository implementa ChatSessionRepository usando pgxpool.
type PgChatSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatSessionRepository(pool *pgxpool.Pool) *PgChatSessionRepository {
	return &PgChatSessionRepository{pool: pool}
}

// Migrate crea la tabla si no existe.
func (r *PgChatSessionRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, pgChatSessionSchema)
	return err
}

func (r *PgChatSessionRepository) Create(ctx context.Context, session domain.ChatSession) error {
	const query = `
		INSERT INTO chat_sessions (id, owner_id, title, messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	messages, err := encodeMessages(session.Messages)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query,
		session.ID,
		session.OwnerID,
		session.Title,
		messages,
		session.CreatedAt,
		session.UpdatedAt,
	)
	return err
}

func (r *PgChatSessionRepository) Get(ctx context.Context, ownerID, sessionID string) (domain.ChatSession, error) {
	const query = `
		SELECT id, owner_id, title, messages, created_at, updated_at
		FROM chat_sessions
		WHERE owner_id = $1 AND id = $2
	`
	session, err := scanChatSession(r.pool.QueryRow(ctx, query, ownerID, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ChatSession{}, ErrSessionNotFound
	}
	return session, err
}

func (r *PgChatSessionRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.ChatSession, error) {
	const query = `
		SELECT id, owner_id, title, messages, created_at, updated_at
		FROM chat_sessions
		WHERE owner_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.ChatSession{}
	for rows.Next() {
		session, err := scanChatSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *PgChatSessionRepository) SaveMessages(ctx context.Context, ownerID, sessionID string, messages []domain.ChatMessage) error {
	const query = `
		UPDATE chat_sessions
		SET messages = $3,
		    title = CASE WHEN title = $4::text AND $5::text <> '' THEN $5::text ELSE title END,
		    updated_at = GREATEST(updated_at, $6)
		WHERE owner_id = $1 AND id = $2
	`
	data, err := encodeMessages(messages)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, query,
		ownerID,
		sessionID,
		data,
		domain.DefaultSessionTitle,
		domain.DeriveTitle(messages),
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PgChatSessionRepository) Delete(ctx context.Context, ownerID, sessionID string) error {
	const query = `DELETE FROM chat_sessions WHERE owner_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query, ownerID, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func scanChatSession(row pgx.Row) (domain.ChatSession, error) {
	var (
		session domain.ChatSession
		raw     []byte
	)
	err := row.Scan(
		&session.ID,
		&session.OwnerID,
		&session.Title,
		&raw,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return domain.ChatSession{}, err
	}
	session.Messages, err = decodeMessages(raw)
	if err != nil {
		return domain.ChatSession{}, err
	}
	return session, nil
}

func encodeMessages(messages []domain.ChatMessage) ([]byte, error) {
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	return data, nil
}

// decodeMessages tolera columnas vacias o nulas devolviendo siempre un slice.
func decodeMessages(raw []byte) ([]domain.ChatMessage, error) {
	messages := []domain.ChatMessage{}
	if len(raw) == 0 || string(raw) == "null" {
		return messages, nil
	}
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return messages, nil
}
