// Package objectstore stores uploaded study guide files and hands out the
// URLs they are served from.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var (
	// ErrInvalidKey is returned for keys that are empty, absolute or escape
	// the store root.
	ErrInvalidKey = errors.New("invalid object key")

	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")
)

// Driver stores objects by slash separated key.
type Driver interface {
	// Upload writes r under key, replacing any existing object.
	Upload(ctx context.Context, key string, r io.Reader) error

	// Open returns the object stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error

	// PublicURL returns the URL the object is served from.
	PublicURL(key string) string
}

// Store is a Driver over an afero filesystem. The serve command roots it in
// objects.root on disk and exposes it under objects.base_url.
type Store struct {
	fs      afero.Fs
	baseURL string
}

// New returns a Store writing into fs and publishing under baseURL.
func New(fs afero.Fs, baseURL string) *Store {
	return &Store{fs: fs, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// NewLocal returns a Store rooted at dir on the local disk.
func NewLocal(dir, baseURL string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("object store root is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating object store root: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), baseURL), nil
}

// CleanKey validates key and returns its canonical form.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func (s *Store) Upload(ctx context.Context, key string, r io.Reader) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := path.Dir(key); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	f, err := s.fs.OpenFile(key, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", key, err)
	}
	return nil
}

func (s *Store) Open(_ context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}

	f, err := s.fs.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}
	return f, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(key); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// PublicURL joins the base URL and the escaped key.
func (s *Store) PublicURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// KeyFromURL reverses PublicURL. It reports false for URLs outside the store.
func (s *Store) KeyFromURL(u string) (string, bool) {
	rest, ok := strings.CutPrefix(u, s.baseURL+"/")
	if !ok {
		return "", false
	}
	key, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	if _, err := CleanKey(key); err != nil {
		return "", false
	}
	return key, true
}

var _ Driver = (*Store)(nil)
