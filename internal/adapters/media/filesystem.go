// Package media implements the durable local storage behind the image
// cache: asset downloads and the manifest record.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
)

type FilesystemStore struct {
	client       *http.Client
	manifestPath string
}

func NewFilesystemStore(manifestPath string, timeout time.Duration) *FilesystemStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FilesystemStore{
		client:       &http.Client{Timeout: timeout},
		manifestPath: manifestPath,
	}
}

// EnsureDir is idempotent: an existing directory is success.
func (s *FilesystemStore) EnsureDir(path string) error {
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("cache path %s exists and is not a directory", path)
		}
		return nil
	}
	return os.MkdirAll(path, 0o755)
}

// Download fetches a URL into destPath via a temp file and rename, so a
// partial download never shows up as a cache hit.
func (s *FilesystemStore) Download(ctx context.Context, url, destPath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDependencyUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", destPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	return destPath, nil
}

func (s *FilesystemStore) ReadManifest(_ context.Context) ([]byte, error) {
	raw, err := os.ReadFile(s.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

// WriteManifest replaces the manifest atomically.
func (s *FilesystemStore) WriteManifest(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.manifestPath)
	if err := s.EnsureDir(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.manifestPath)
}
