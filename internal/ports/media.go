package ports

import "context"

// MediaStore is the durable local storage used by the image cache: asset
// downloads plus the manifest record. ReadManifest returns domain.ErrNotFound
// when no manifest has been written yet.
type MediaStore interface {
	EnsureDir(path string) error
	Download(ctx context.Context, url, destPath string) (string, error)
	ReadManifest(ctx context.Context) ([]byte, error)
	WriteManifest(ctx context.Context, data []byte) error
}
