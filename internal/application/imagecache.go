package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
)

// ImageCache maps remote media URLs to durable local files. The manifest is
// a superset of the files actually on disk; readers tolerate entries whose
// file was evicted underneath them and fall back to the network.
type ImageCache struct {
	media  ports.MediaStore
	logger *slog.Logger
	dir    string

	mu       sync.Mutex
	entries  map[string]domain.CacheEntry
	inflight map[string]*inflightDownload
}

type inflightDownload struct {
	done chan struct{}
	err  error
}

type ImageCacheDeps struct {
	Media  ports.MediaStore
	Logger *slog.Logger
	Dir    string
}

func NewImageCache(deps ImageCacheDeps) *ImageCache {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := deps.Dir
	if dir == "" {
		dir = "media-cache"
	}
	return &ImageCache{
		media:    deps.Media,
		logger:   logger,
		dir:      dir,
		entries:  make(map[string]domain.CacheEntry),
		inflight: make(map[string]*inflightDownload),
	}
}

// Load hydrates the in-memory manifest from durable storage. A missing
// manifest is a fresh install, not an error.
func (c *ImageCache) Load(ctx context.Context) error {
	if err := c.media.EnsureDir(c.dir); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}
	raw, err := c.media.ReadManifest(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", domain.ErrManifestUnavailable, err)
	}
	flat := map[string]string{}
	if err := json.Unmarshal(raw, &flat); err != nil {
		c.logger.WarnContext(ctx, "manifest unreadable, starting empty", "error", err)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for url, localPath := range flat {
		c.entries[url] = domain.CacheEntry{
			SourceURL: url,
			CacheKey:  domain.CacheKey(url),
			LocalPath: localPath,
		}
	}
	return nil
}

// Resolve returns the local path for a cached URL, or the URL itself when
// nothing is cached yet. The hit is optimistic: the file is not stat'd; a
// later read failure falls back to the network.
func (c *ImageCache) Resolve(url string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[url]; ok {
		return entry.LocalPath
	}
	return url
}

func (c *ImageCache) Cached(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[url]
	return ok
}

// EnsureCached downloads a URL into the cache directory. It is idempotent:
// an entry that already exists or a download already in flight for the same
// URL results in no second download.
func (c *ImageCache) EnsureCached(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return domain.ErrInvalidInput
	}
	c.mu.Lock()
	if _, ok := c.entries[url]; ok {
		c.mu.Unlock()
		return nil
	}
	if fl, ok := c.inflight[url]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	fl := &inflightDownload{done: make(chan struct{})}
	c.inflight[url] = fl
	c.mu.Unlock()

	entry, err := c.download(ctx, url)

	c.mu.Lock()
	delete(c.inflight, url)
	if err == nil {
		c.entries[url] = entry
	}
	c.mu.Unlock()

	fl.err = err
	close(fl.done)
	return err
}

func (c *ImageCache) download(ctx context.Context, url string) (domain.CacheEntry, error) {
	key := domain.CacheKey(url)
	dest := filepath.Join(c.dir, key+fileExtension(url))
	localPath, err := c.media.Download(ctx, url, dest)
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("download %s: %w", url, err)
	}
	return domain.CacheEntry{SourceURL: url, CacheKey: key, LocalPath: localPath}, nil
}

// Preload caches a batch of URLs concurrently. Failures are isolated per
// URL; the batch always completes and the manifest is persisted once at the
// end, never per entry.
func (c *ImageCache) Preload(ctx context.Context, urls []string) (int, []string) {
	seen := make(map[string]struct{}, len(urls))
	unique := make([]string, 0, len(urls))
	for _, url := range urls {
		if strings.TrimSpace(url) == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		unique = append(unique, url)
	}

	var wg sync.WaitGroup
	var resMu sync.Mutex
	failed := make([]string, 0)
	for _, url := range unique {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			if err := c.EnsureCached(ctx, url); err != nil {
				c.logger.WarnContext(ctx, "media preload failed", "url", url, "error", err)
				resMu.Lock()
				failed = append(failed, url)
				resMu.Unlock()
			}
		}(url)
	}
	wg.Wait()

	if err := c.Flush(ctx); err != nil {
		c.logger.WarnContext(ctx, "manifest flush failed", "error", err)
	}
	return len(unique) - len(failed), failed
}

// Flush persists the manifest as a flat url->path record.
func (c *ImageCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	flat := make(map[string]string, len(c.entries))
	for url, entry := range c.entries {
		flat[url] = entry.LocalPath
	}
	c.mu.Unlock()

	raw, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	if err := c.media.WriteManifest(ctx, raw); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Clear drops every entry and persists the empty manifest. Used on logout.
func (c *ImageCache) Clear(ctx context.Context) (int, error) {
	c.mu.Lock()
	count := len(c.entries)
	c.entries = make(map[string]domain.CacheEntry)
	c.mu.Unlock()
	return count, c.Flush(ctx)
}

func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func fileExtension(url string) string {
	base := url
	if idx := strings.IndexAny(base, "?#"); idx >= 0 {
		base = base[:idx]
	}
	ext := path.Ext(base)
	if len(ext) > 8 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
