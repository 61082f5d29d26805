package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-llm/internal/domain"
)

type mockSessionRepo struct {
	sessions  []domain.ChatSession
	listCalls int
	saveErr   error
}

func (m *mockSessionRepo) Create(context.Context, domain.ChatSession) error { return nil }

func (m *mockSessionRepo) Get(context.Context, string, string) (domain.ChatSession, error) {
	return domain.ChatSession{}, ErrSessionNotFound
}

func (m *mockSessionRepo) ListByOwner(context.Context, string) ([]domain.ChatSession, error) {
	m.listCalls++
	return m.sessions, nil
}

func (m *mockSessionRepo) SaveMessages(context.Context, string, string, []domain.ChatMessage) error {
	return m.saveErr
}

func (m *mockSessionRepo) Delete(context.Context, string, string) error { return nil }

type mockRedisKV struct {
	data    map[string][]byte
	lastTTL time.Duration
	getErr  error
}

func newMockRedisKV() *mockRedisKV {
	return &mockRedisKV{data: make(map[string][]byte)}
}

func (m *mockRedisKV) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if m.getErr != nil {
		cmd.SetErr(m.getErr)
		return cmd
	}
	v, ok := m.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(string(v))
	return cmd
}

func (m *mockRedisKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = value.([]byte)
	m.lastTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisKV) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func TestCachedChatSessionRepository_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := &mockSessionRepo{sessions: []domain.ChatSession{{ID: "s1", OwnerID: "u1"}}}
	repo := NewCachedChatSessionRepository(inner, NewMemorySessionListCache(time.Minute))

	for i := 0; i < 3; i++ {
		list, err := repo.ListByOwner(ctx, "u1")
		if err != nil || len(list) != 1 {
			t.Fatalf("list: %v %+v", err, list)
		}
	}
	if inner.listCalls != 1 {
		t.Fatalf("expected 1 inner list call, got %d", inner.listCalls)
	}

	if err := repo.SaveMessages(ctx, "u1", "s1", nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, _ = repo.ListByOwner(ctx, "u1")
	if inner.listCalls != 2 {
		t.Fatalf("expected cache invalidated after save, got %d calls", inner.listCalls)
	}

	if err := repo.Delete(ctx, "u1", "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, _ = repo.ListByOwner(ctx, "u1")
	if inner.listCalls != 3 {
		t.Fatalf("expected cache invalidated after delete, got %d calls", inner.listCalls)
	}
}

func TestCachedChatSessionRepository_FailedSaveKeepsCache(t *testing.T) {
	ctx := context.Background()
	inner := &mockSessionRepo{saveErr: errors.New("db down")}
	repo := NewCachedChatSessionRepository(inner, NewMemorySessionListCache(time.Minute))

	_, _ = repo.ListByOwner(ctx, "u1")
	if err := repo.SaveMessages(ctx, "u1", "s1", nil); err == nil {
		t.Fatalf("expected save error")
	}
	_, _ = repo.ListByOwner(ctx, "u1")
	if inner.listCalls != 1 {
		t.Fatalf("expected cache to survive failed save, got %d calls", inner.listCalls)
	}
}

func TestNewCachedChatSessionRepository_NilCacheReturnsInner(t *testing.T) {
	inner := &mockSessionRepo{}
	if repo := NewCachedChatSessionRepository(inner, nil); repo != inner {
		t.Fatalf("expected inner repository without cache")
	}
}

func TestMemorySessionListCache_Expiry(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySessionListCache(30 * time.Millisecond)
	cache.Set(ctx, "u1", []domain.ChatSession{{ID: "s1"}})
	if _, ok := cache.Get(ctx, "u1"); !ok {
		t.Fatalf("expected hit")
	}
	time.Sleep(50 * time.Millisecond)
	if _, ok := cache.Get(ctx, "u1"); ok {
		t.Fatalf("expected expired entry")
	}

	disabled := NewMemorySessionListCache(0)
	disabled.Set(ctx, "u1", []domain.ChatSession{{ID: "s1"}})
	if _, ok := disabled.Get(ctx, "u1"); ok {
		t.Fatalf("expected disabled cache to never hit")
	}
}

func TestRedisSessionListCache(t *testing.T) {
	ctx := context.Background()
	mock := newMockRedisKV()
	cache := &redisSessionListCache{client: mock, ttl: time.Minute, prefix: "chat:sessions:"}

	if _, ok := cache.Get(ctx, "u1"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	cache.Set(ctx, " u1 ", []domain.ChatSession{{ID: "s1", OwnerID: "u1", Title: "hola"}})
	raw, ok := mock.data["chat:sessions:u1"]
	if !ok {
		t.Fatalf("expected normalized key, got %+v", mock.data)
	}
	if mock.lastTTL != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", mock.lastTTL)
	}
	var decoded []domain.ChatSession
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded[0].Title != "hola" {
		t.Fatalf("unexpected payload %s: %v", raw, err)
	}

	list, ok := cache.Get(ctx, "u1")
	if !ok || len(list) != 1 || list[0].ID != "s1" {
		t.Fatalf("expected hit, got %v %+v", ok, list)
	}

	cache.Invalidate(ctx, "u1")
	if _, ok := cache.Get(ctx, "u1"); ok {
		t.Fatalf("expected miss after invalidate")
	}

	mock.getErr = errors.New("redis down")
	if _, ok := cache.Get(ctx, "u1"); ok {
		t.Fatalf("expected redis errors to be treated as miss")
	}
}
