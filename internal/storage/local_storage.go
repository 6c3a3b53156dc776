package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes images under a directory that the HTTP layer serves at /media
type LocalStorage struct {
	root    string
	baseURL string
}

func NewLocalStorage(root, publicBaseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalStorage{
		root:    root,
		baseURL: strings.TrimRight(publicBaseURL, "/") + "/media",
	}, nil
}

// Root is the directory served under /media
func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	objName, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("refusing to store an empty image")
	}

	dst := filepath.Join(s.root, filepath.FromSlash(objName))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	// write then rename so readers never see a partial file
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit image: %w", err)
	}

	return s.baseURL + "/" + objName, nil
}
