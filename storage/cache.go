package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DotSati/visual-task-quest/domain"
)

type backend interface {
	ListTasks(ctx context.Context, boardID string) ([]domain.Task, error)
	ListColumns(ctx context.Context, boardID string) ([]domain.Column, error)
	InsertTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, boardID, taskID string, patch domain.TaskPatch, etag string) error
	DeleteTask(ctx context.Context, boardID, taskID string) error
	UpsertColumn(ctx context.Context, c domain.Column) error
	DeleteColumn(ctx context.Context, boardID, columnID string) error
}

// Cache wraps a Storage instance with Redis-backed caching for board reads.
// Writes evict the board's cached entries so the next read refills from the
// backing store.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) ListTasks(ctx context.Context, boardID string) ([]domain.Task, error) {
	if tasks, ok := loadCached[[]domain.Task](ctx, c.redis, tasksCacheKey(boardID)); ok {
		return tasks, nil
	}

	tasks, err := c.base.ListTasks(ctx, boardID)
	if err != nil {
		return nil, err
	}

	c.storeCached(ctx, tasksCacheKey(boardID), tasks)
	return tasks, nil
}

func (c *Cache) ListColumns(ctx context.Context, boardID string) ([]domain.Column, error) {
	if cols, ok := loadCached[[]domain.Column](ctx, c.redis, columnsCacheKey(boardID)); ok {
		return cols, nil
	}

	cols, err := c.base.ListColumns(ctx, boardID)
	if err != nil {
		return nil, err
	}

	c.storeCached(ctx, columnsCacheKey(boardID), cols)
	return cols, nil
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) error {
	if err := c.base.InsertTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.BoardID)
	return nil
}

func (c *Cache) UpdateTask(ctx context.Context, boardID, taskID string, patch domain.TaskPatch, etag string) error {
	if err := c.base.UpdateTask(ctx, boardID, taskID, patch, etag); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, boardID, taskID string) error {
	if err := c.base.DeleteTask(ctx, boardID, taskID); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func (c *Cache) UpsertColumn(ctx context.Context, col domain.Column) error {
	if err := c.base.UpsertColumn(ctx, col); err != nil {
		return err
	}
	c.evict(ctx, col.BoardID)
	return nil
}

func (c *Cache) DeleteColumn(ctx context.Context, boardID, columnID string) error {
	if err := c.base.DeleteColumn(ctx, boardID, columnID); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

// Evict drops the board's cached entries. The stream relay calls this when a
// change event arrives from another writer.
func (c *Cache) Evict(ctx context.Context, boardID string) {
	c.evict(ctx, boardID)
}

func loadCached[T any](ctx context.Context, rc *redis.Client, key string) (T, bool) {
	var zero T
	if rc == nil {
		return zero, false
	}
	data, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = rc.Del(ctx, key).Err()
		}
		return zero, false
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		_ = rc.Del(ctx, key).Err()
		return zero, false
	}
	return out, true
}

func (c *Cache) storeCached(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, boardID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(boardID), columnsCacheKey(boardID)).Result()
}

func tasksCacheKey(boardID string) string {
	return "tasks:" + boardID
}

func columnsCacheKey(boardID string) string {
	return "columns:" + boardID
}
