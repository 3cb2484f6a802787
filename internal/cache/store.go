package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// Store is the durable mirror behind a cache instance: a flat table of
// marshaled entries by key. No cross-record transactions are needed.
type Store interface {
	Load(ctx context.Context) (map[string][]byte, error)
	Save(ctx context.Context, entries map[string][]byte) error
}

// FileStore persists the table as a single JSON file, the simplest durable
// structure that survives restarts.
type FileStore struct {
	path string
}

// NewFileStore creates the parent directory eagerly so later saves only fail
// on real I/O problems.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load(_ context.Context) (map[string][]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, fmt.Errorf("failed to read cache file %s: %w", s.path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("corrupt cache file %s: %w", s.path, err)
	}

	entries := make(map[string][]byte, len(raw))
	for k, v := range raw {
		entries[k] = []byte(v)
	}
	return entries, nil
}

func (s *FileStore) Save(_ context.Context, entries map[string][]byte) error {
	raw := make(map[string]json.RawMessage, len(entries))
	for k, v := range entries {
		raw[k] = json.RawMessage(v)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	// Write-then-rename so a crash never leaves a half-written table.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// RedisStore keeps the table in a redis hash, one field per entry.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr and namespaces the table under name.
func NewRedisStore(addr, name string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    "radiobot:cache:" + name,
	}
}

func (s *RedisStore) Load(ctx context.Context) (map[string][]byte, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load failed: %w", err)
	}
	entries := make(map[string][]byte, len(fields))
	for k, v := range fields {
		entries[k] = []byte(v)
	}
	return entries, nil
}

func (s *RedisStore) Save(ctx context.Context, entries map[string][]byte) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(entries) > 0 {
		values := make(map[string]interface{}, len(entries))
		for k, v := range entries {
			values[k] = v
		}
		pipe.HSet(ctx, s.key, values)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save failed: %w", err)
	}
	return nil
}
