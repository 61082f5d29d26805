package repository

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-llm/internal/domain"
)

// SessionListCache guarda por poco tiempo el listado de sesiones de un owner.
// Es solo una optimizacion de lectura: deshabilitarlo no cambia resultados.
type SessionListCache interface {
	Get(ctx context.Context, ownerID string) ([]domain.ChatSession, bool)
	Set(ctx context.Context, ownerID string, sessions []domain.ChatSession)
	Invalidate(ctx context.Context, ownerID string)
}

type memorySessionListCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	sessions []domain.ChatSession
	expiry   time.Time
}

func NewMemorySessionListCache(ttl time.Duration) SessionListCache {
	return &memorySessionListCache{
		ttl:   ttl,
		items: make(map[string]memoryCacheEntry),
	}
}

func (c *memorySessionListCache) Get(_ context.Context, ownerID string) ([]domain.ChatSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[ownerID]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiry) {
		delete(c.items, ownerID)
		return nil, false
	}
	return append([]domain.ChatSession(nil), entry.sessions...), true
}

func (c *memorySessionListCache) Set(_ context.Context, ownerID string, sessions []domain.ChatSession) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[ownerID] = memoryCacheEntry{
		sessions: append([]domain.ChatSession(nil), sessions...),
		expiry:   time.Now().Add(c.ttl),
	}
}

func (c *memorySessionListCache) Invalidate(_ context.Context, ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, ownerID)
}

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisSessionListCache struct {
	client redisKV
	ttl    time.Duration
	prefix string
}

func NewRedisSessionListCache(client *redis.Client, ttl time.Duration) SessionListCache {
	if client == nil {
		return nil
	}
	return &redisSessionListCache{
		client: client,
		ttl:    ttl,
		prefix: "chat:sessions:",
	}
}

func (c *redisSessionListCache) key(ownerID string) string {
	return c.prefix + strings.TrimSpace(ownerID)
}

// Get trata cualquier error de redis como miss.
func (c *redisSessionListCache) Get(ctx context.Context, ownerID string) ([]domain.ChatSession, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := c.client.Get(ctx, c.key(ownerID)).Bytes()
	if err != nil {
		return nil, false
	}
	var sessions []domain.ChatSession
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, false
	}
	return sessions, true
}

func (c *redisSessionListCache) Set(ctx context.Context, ownerID string, sessions []domain.ChatSession) {
	if c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_ = c.client.Set(ctx, c.key(ownerID), data, c.ttl).Err()
}

func (c *redisSessionListCache) Invalidate(ctx context.Context, ownerID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 500*time.Millisecond)
	defer cancel()
	_ = c.client.Del(ctx, c.key(ownerID)).Err()
}

// CachedChatSessionRepository agrega cache read-through al listado por owner
// e invalida en cada escritura.
type CachedChatSessionRepository struct {
	ChatSessionRepository
	cache SessionListCache
}

func NewCachedChatSessionRepository(inner ChatSessionRepository, cache SessionListCache) ChatSessionRepository {
	if cache == nil {
		return inner
	}
	return &CachedChatSessionRepository{ChatSessionRepository: inner, cache: cache}
}

func (r *CachedChatSessionRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.ChatSession, error) {
	if sessions, ok := r.cache.Get(ctx, ownerID); ok {
		return sessions, nil
	}
	sessions, err := r.ChatSessionRepository.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, ownerID, sessions)
	return sessions, nil
}

func (r *CachedChatSessionRepository) Create(ctx context.Context, session domain.ChatSession) error {
	if err := r.ChatSessionRepository.Create(ctx, session); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, session.OwnerID)
	return nil
}

func (r *CachedChatSessionRepository) SaveMessages(ctx context.Context, ownerID, sessionID string, messages []domain.ChatMessage) error {
	if err := r.ChatSessionRepository.SaveMessages(ctx, ownerID, sessionID, messages); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, ownerID)
	return nil
}

func (r *CachedChatSessionRepository) Delete(ctx context.Context, ownerID, sessionID string) error {
	if err := r.ChatSessionRepository.Delete(ctx, ownerID, sessionID); err != nil {
		return err
	}
	r.cache.Invalidate(ctx, ownerID)
	return nil
}
