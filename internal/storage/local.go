package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps files in a single flat directory.
type LocalStorage struct {
	root      string
	urlPrefix string
}

// NewLocalStorage creates root if needed. urlPrefix is the public path the
// directory is served under.
func NewLocalStorage(root, urlPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{root: root, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Root returns the storage directory.
func (s *LocalStorage) Root() string { return s.root }

// Save writes r under the sanitized name. An existing file is never replaced.
func (s *LocalStorage) Save(ctx context.Context, r io.Reader, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := SanitizeFilename(name)
	if ref == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := filepath.Join(s.root, ref)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", ref, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close %s: %w", ref, err)
	}
	return ref, nil
}

// Open implements facematch.ImageOpener.
func (s *LocalStorage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return f, nil
}

// Delete removes ref. A missing file is not an error.
func (s *LocalStorage) Delete(_ context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}

// URL returns the public path of ref.
func (s *LocalStorage) URL(ref string) string {
	return s.urlPrefix + "/" + ref
}

func (s *LocalStorage) resolve(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || ref == "." || ref == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, ref)
	}
	return filepath.Join(s.root, ref), nil
}

var _ Storage = (*LocalStorage)(nil)
