package refcache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Backend stores serialized cache envelopes by key. A (nil, false, nil)
// return means the key is absent.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisBackend persists envelopes in Redis so cached reference data survives
// a process restart within its TTL.
type RedisBackend struct {
	client *redis.Client
	tracer trace.Tracer
}

func NewRedisBackend(client *redis.Client, tracer trace.Tracer) *RedisBackend {
	if client == nil {
		panic("refcache: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("portalsync.internal.refcache")
	}
	return &RedisBackend{client: client, tracer: tracer}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, span := b.tracer.Start(ctx, "refcache.get")
	defer span.End()

	data, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, err
	}
	return data, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	ctx, span := b.tracer.Start(ctx, "refcache.set")
	defer span.End()

	if err := b.client.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	ctx, span := b.tracer.Start(ctx, "refcache.delete")
	defer span.End()

	if err := b.client.Del(ctx, key).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// MemoryBackend is the in-process fallback used when Redis is not configured.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !b.now().Before(e.expiresAt) {
		delete(b.entries, key)
		return nil, false, nil
	}
	return e.data, true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	}
	b.entries[key] = e
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
	return nil
}
