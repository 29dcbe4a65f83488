package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps artifact bytes in Redis, one value per logical path.
// It is the networked drop-in alternative to LocalStore for deployments
// where evidence must be shared across instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "artifact:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(normalized string) string {
	return s.prefix + normalized
}

func (s *RedisStore) Save(ctx context.Context, r io.Reader, logicalPath string) (string, int64, string, error) {
	key, err := normalize(logicalPath)
	if err != nil {
		return "", 0, "", err
	}

	hasher := sha256.New()
	var data []byte
	buf := make([]byte, saveChunkSize)

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			hasher.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", 0, "", fmt.Errorf("artifact.RedisStore.Save: read: %w", readErr)
		}
	}

	if err := s.client.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return "", 0, "", fmt.Errorf("artifact.RedisStore.Save: set: %w", err)
	}

	return key, int64(len(data)), hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *RedisStore) Read(ctx context.Context, logicalPath string) ([]byte, error) {
	key, err := normalize(logicalPath)
	if err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("artifact.RedisStore.Read: %q: %w", logicalPath, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("artifact.RedisStore.Read: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Delete(ctx context.Context, logicalPath string) (bool, error) {
	key, err := normalize(logicalPath)
	if err != nil {
		return false, err
	}

	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("artifact.RedisStore.Delete: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Exists(ctx context.Context, logicalPath string) (bool, error) {
	key, err := normalize(logicalPath)
	if err != nil {
		return false, err
	}

	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("artifact.RedisStore.Exists: %w", err)
	}
	return n > 0, nil
}
