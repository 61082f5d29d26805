package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chat-llm/internal/domain"
)

const sqliteChatSessionSchema = `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id         TEXT    NOT NULL,
		owner_id   TEXT    NOT NULL,
		title      TEXT    NOT NULL,
		messages   TEXT    NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (owner_id, id)
	);
	CREATE INDEX IF NOT EXISTS chat_sessions_owner_updated_idx
		ON chat_sessions (owner_id, updated_at DESC);
`

// SQLiteChatSessionRepository guarda sesiones en SQLite para ejecuciones locales.
// Los timestamps se guardan en milisegundos unix.
type SQLiteChatSessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteChatSessionRepository(db *sql.DB) *SQLiteChatSessionRepository {
	return &SQLiteChatSessionRepository{db: db, now: time.Now}
}

func (r *SQLiteChatSessionRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, sqliteChatSessionSchema)
	return err
}

func (r *SQLiteChatSessionRepository) Create(ctx context.Context, session domain.ChatSession) error {
	const query = `
		INSERT INTO chat_sessions (id, owner_id, title, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	messages, err := encodeMessages(session.Messages)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		session.OwnerID,
		session.Title,
		string(messages),
		session.CreatedAt.UnixMilli(),
		session.UpdatedAt.UnixMilli(),
	)
	return err
}

func (r *SQLiteChatSessionRepository) Get(ctx context.Context, ownerID, sessionID string) (domain.ChatSession, error) {
	const query = `
		SELECT id, owner_id, title, messages, created_at, updated_at
		FROM chat_sessions
		WHERE owner_id = ? AND id = ?
	`
	session, err := scanSQLiteChatSession(r.db.QueryRowContext(ctx, query, ownerID, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChatSession{}, ErrSessionNotFound
	}
	return session, err
}

func (r *SQLiteChatSessionRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.ChatSession, error) {
	const query = `
		SELECT id, owner_id, title, messages, created_at, updated_at
		FROM chat_sessions
		WHERE owner_id = ?
		ORDER BY updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.ChatSession{}
	for rows.Next() {
		session, err := scanSQLiteChatSession(rows)
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

func (r *SQLiteChatSessionRepository) SaveMessages(ctx context.Context, ownerID, sessionID string, messages []domain.ChatMessage) error {
	const query = `
		UPDATE chat_sessions
		SET messages = ?,
		    title = CASE WHEN title = ? AND ? <> '' THEN ? ELSE title END,
		    updated_at = MAX(updated_at, ?)
		WHERE owner_id = ? AND id = ?
	`
	data, err := encodeMessages(messages)
	if err != nil {
		return err
	}
	title := domain.DeriveTitle(messages)
	res, err := r.db.ExecContext(ctx, query,
		string(data),
		domain.DefaultSessionTitle,
		title,
		title,
		r.now().UTC().UnixMilli(),
		ownerID,
		sessionID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SQLiteChatSessionRepository) Delete(ctx context.Context, ownerID, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE owner_id = ? AND id = ?`, ownerID, sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteChatSession(row sqlScanner) (domain.ChatSession, error) {
	var (
		session            domain.ChatSession
		raw                string
		createdMs, updated int64
	)
	if err := row.Scan(&session.ID, &session.OwnerID, &session.Title, &raw, &createdMs, &updated); err != nil {
		return domain.ChatSession{}, err
	}
	messages, err := decodeMessages([]byte(raw))
	if err != nil {
		return domain.ChatSession{}, err
	}
	session.Messages = messages
	session.CreatedAt = time.UnixMilli(createdMs).UTC()
	session.UpdatedAt = time.UnixMilli(updated).UTC()
	return session, nil
}
