// Package storage keeps uploaded answer images on local disk.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Local writes files beneath a root directory and returns their absolute path.
type Local struct {
	root   string
	logger zerolog.Logger
}

// NewLocal prepares root for writing.
func NewLocal(root string, logger zerolog.Logger) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		root = "uploads"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{root: abs, logger: logger.With().Str("component", "local_storage").Logger()}, nil
}

// Upload copies reader into root/name. Names containing path separators are rejected.
func (l *Local) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(l.root, name)
	tmp, err := os.CreateTemp(l.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("move upload: %w", err)
	}

	l.logger.Debug().Str("path", target).Msg("answer image written")
	return target, nil
}
