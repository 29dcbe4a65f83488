package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
)

// MemoryStore keeps artifact bytes in process memory. Used by tests and
// for ephemeral deployments; it honors the same path discipline as the
// durable backends.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// normalize applies the traversal check shared by the non-filesystem
// backends: no ".." segments anywhere, and the cleaned logical path must
// stay relative and non-empty.
func normalize(logicalPath string) (string, error) {
	slashed := strings.ReplaceAll(logicalPath, "\\", "/")
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", fmt.Errorf("artifact: %q: %w", logicalPath, ErrInvalidPath)
		}
	}

	cleaned := path.Clean("/" + slashed)
	if cleaned == "/" {
		return "", fmt.Errorf("artifact: %q: %w", logicalPath, ErrInvalidPath)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

func (s *MemoryStore) Save(ctx context.Context, r io.Reader, logicalPath string) (string, int64, string, error) {
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
			return "", 0, "", fmt.Errorf("artifact.MemoryStore.Save: read: %w", readErr)
		}
	}

	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()

	return key, int64(len(data)), hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *MemoryStore) Read(ctx context.Context, logicalPath string) ([]byte, error) {
	key, err := normalize(logicalPath)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("artifact.MemoryStore.Read: %q: %w", logicalPath, ErrObjectNotFound)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, logicalPath string) (bool, error) {
	key, err := normalize(logicalPath)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return false, nil
	}
	delete(s.objects, key)
	return true, nil
}

func (s *MemoryStore) Exists(ctx context.Context, logicalPath string) (bool, error) {
	key, err := normalize(logicalPath)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	return ok, nil
}
