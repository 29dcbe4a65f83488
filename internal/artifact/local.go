package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps artifact bytes on the local filesystem under a fixed
// root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("artifact.NewLocalStore: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("artifact.NewLocalStore: mkdir %s: %w", abs, err)
	}
	return &LocalStore{root: abs}, nil
}

// resolve maps a logical path onto the filesystem and rejects anything
// that escapes the root.
func (s *LocalStore) resolve(logicalPath string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(logicalPath))

	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact.LocalStore: %q: %w", logicalPath, ErrInvalidPath)
	}
	return full, nil
}

func (s *LocalStore) Save(ctx context.Context, r io.Reader, logicalPath string) (string, int64, string, error) {
	full, err := s.resolve(logicalPath)
	if err != nil {
		return "", 0, "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", 0, "", fmt.Errorf("artifact.LocalStore.Save: mkdir: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", 0, "", fmt.Errorf("artifact.LocalStore.Save: create: %w", err)
	}

	hasher := sha256.New()
	var size int64
	buf := make([]byte, saveChunkSize)

	for {
		if ctx.Err() != nil {
			_ = f.Close()
			_ = os.Remove(full)
			return "", 0, "", fmt.Errorf("artifact.LocalStore.Save: %w", ctx.Err())
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, writeErr := f.Write(chunk); writeErr != nil {
				_ = f.Close()
				_ = os.Remove(full)
				return "", 0, "", fmt.Errorf("artifact.LocalStore.Save: write: %w", writeErr)
			}
			hasher.Write(chunk)
			size += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = f.Close()
			_ = os.Remove(full)
			return "", 0, "", fmt.Errorf("artifact.LocalStore.Save: read: %w", readErr)
		}
	}

	if err := f.Close(); err != nil {
		return "", 0, "", fmt.Errorf("artifact.LocalStore.Save: close: %w", err)
	}

	return logicalPath, size, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *LocalStore) Read(ctx context.Context, logicalPath string) ([]byte, error) {
	full, err := s.resolve(logicalPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("artifact.LocalStore.Read: %q: %w", logicalPath, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("artifact.LocalStore.Read: %w", err)
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, logicalPath string) (bool, error) {
	full, err := s.resolve(logicalPath)
	if err != nil {
		return false, err
	}

	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("artifact.LocalStore.Delete: %w", err)
	}
	return true, nil
}

func (s *LocalStore) Exists(ctx context.Context, logicalPath string) (bool, error) {
	full, err := s.resolve(logicalPath)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("artifact.LocalStore.Exists: %w", err)
	}
	return true, nil
}
