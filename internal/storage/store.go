package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// ImageStore persists derived split images and returns a public URL for each
type ImageStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// cleanName rejects blob names that would escape the store root
func cleanName(name string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(name))[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(name, "/") {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return cleaned, nil
}
