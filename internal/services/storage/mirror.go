package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Mirror copies stored files into an ObjectStore under a key prefix. A
// nil *Mirror is valid and does nothing.
type Mirror struct {
	store  ObjectStore
	prefix string
	expiry time.Duration
}

func NewMirror(store ObjectStore, prefix string, expiry time.Duration) *Mirror {
	if store == nil {
		return nil
	}
	return &Mirror{store: store, prefix: prefix, expiry: expiry}
}

func (m *Mirror) Enabled() bool {
	return m != nil
}

func (m *Mirror) Store() ObjectStore {
	if m == nil {
		return nil
	}
	return m.store
}

// Upload copies the local file at localPath to the key for name.
func (m *Mirror) Upload(ctx context.Context, name, localPath string) error {
	if m == nil {
		return nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %q for mirroring: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %q: %w", localPath, err)
	}

	return m.store.Upload(ctx, ObjectKey(m.prefix, name), f, info.Size(), ContentType(localPath))
}

// mime's built-in table has no media types and /etc/mime.types is often
// missing in containers.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".3gp":  "video/3gpp",
	".opus": "audio/ogg",
}

// ContentType guesses the MIME type of a stored file from its extension.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// URL returns a presigned download URL for name, with ok=false when the
// object is not in the store.
func (m *Mirror) URL(ctx context.Context, name string) (url string, ok bool, err error) {
	if m == nil {
		return "", false, nil
	}

	key := ObjectKey(m.prefix, name)
	exists, err := m.store.Exists(ctx, key)
	if err != nil || !exists {
		return "", false, err
	}

	url, err = m.store.GeneratePresignedURL(ctx, key, m.expiry)
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}
