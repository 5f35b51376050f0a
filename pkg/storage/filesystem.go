package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/noah-isme/channel-account-api/internal/models"
)

// LocalStorage persists images on disk under a base directory and serves
// them from publicBaseURL. Intended for development and tests.
type LocalStorage struct {
	baseDir       string
	publicBaseURL string
	now           func() time.Time
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir, publicBaseURL string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./public/media"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, publicBaseURL: strings.TrimRight(publicBaseURL, "/"), now: time.Now}, nil
}

// Dir returns the directory served as static media.
func (s *LocalStorage) Dir() string {
	return s.baseDir
}

// Upload copies the file content under a fresh key.
func (s *LocalStorage) Upload(ctx context.Context, file models.MediaFile) (models.ImageRef, error) {
	if file.Content == nil {
		return models.ImageRef{}, fmt.Errorf("upload %s: empty content", file.Filename)
	}
	if err := ctx.Err(); err != nil {
		return models.ImageRef{}, err
	}

	key := objectKey("", file.Filename, file.ContentType, s.now().UTC())
	target := s.resolve(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return models.ImageRef{}, fmt.Errorf("prepare media directory: %w", err)
	}
	out, err := os.Create(target)
	if err != nil {
		return models.ImageRef{}, fmt.Errorf("create media file: %w", err)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, contextReader{ctx: ctx, r: file.Content}); err != nil {
		_ = os.Remove(target)
		return models.ImageRef{}, fmt.Errorf("write media file: %w", err)
	}

	return models.ImageRef{URL: s.publicBaseURL + "/" + key, PublicID: key}, nil
}

// Remove deletes the stored file. Unknown or empty ids are a no-op.
func (s *LocalStorage) Remove(ctx context.Context, publicID string) error {
	key, ok := cleanKey(publicID)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.resolve(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete media file: %w", err)
	}
	return nil
}

func (s *LocalStorage) resolve(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

// contextReader stops a copy once the context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
