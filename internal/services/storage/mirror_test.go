package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type memoryStore struct {
	objects     map[string][]byte
	contentType map[string]string
	uploadErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, contentType: map[string]string{}}
}

func (m *memoryStore) BucketName() string { return "test-bucket" }

func (m *memoryStore) Upload(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if int64(len(b)) != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = b
	m.contentType[key] = contentType
	return nil
}

func (m *memoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryStore) GeneratePresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://s3.example.com/test-bucket/" + key + "?X-Amz-Expires=" + expiry.String(), nil
}

func TestNilMirror(t *testing.T) {
	var m *Mirror
	if m.Enabled() {
		t.Error("nil mirror should be disabled")
	}
	if err := m.Upload(context.Background(), "a.mp4", "/nonexistent"); err != nil {
		t.Errorf("Upload() on nil mirror = %v", err)
	}
	if _, ok, err := m.URL(context.Background(), "a.mp4"); ok || err != nil {
		t.Errorf("URL() on nil mirror = %v, %v", ok, err)
	}
	if NewMirror(nil, "p/", time.Minute) != nil {
		t.Error("NewMirror(nil) should return nil")
	}
}

func TestMirrorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "Song.mp3")
	if err := os.WriteFile(local, []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := newMemoryStore()
	m := NewMirror(store, "downloads/", 10*time.Minute)
	ctx := context.Background()

	if err := m.Upload(ctx, "Song.mp3", local); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if got := string(store.objects["downloads/Song.mp3"]); got != "ID3" {
		t.Errorf("stored object = %q", got)
	}
	if got := store.contentType["downloads/Song.mp3"]; got != "audio/mpeg" {
		t.Errorf("content type = %q, want audio/mpeg", got)
	}

	url, ok, err := m.URL(ctx, "Song.mp3")
	if err != nil || !ok {
		t.Fatalf("URL() = %q, %v, %v", url, ok, err)
	}
	if url != "https://s3.example.com/test-bucket/downloads/Song.mp3?X-Amz-Expires=10m0s" {
		t.Errorf("URL() = %q", url)
	}

	if _, ok, _ := m.URL(ctx, "Other.mp3"); ok {
		t.Error("URL() for a missing object should report ok=false")
	}
}
