package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arkilian/cpkpack/internal/config"
	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.cpk")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func TestLocalStorage_UploadDownload(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	content := []byte("CPK archive bytes")
	srcPath := writeTempFile(t, content)
	ctx := context.Background()

	objectPath := "builds/2026/c0data.cpk"
	if err := storage.Upload(ctx, srcPath, objectPath); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := storage.Exists(ctx, objectPath)
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v", exists, err)
	}

	sum := md5.Sum(content)
	if etag, ok := storage.ETag(objectPath); !ok || etag != hex.EncodeToString(sum[:]) {
		t.Errorf("ETag = %q, %v", etag, ok)
	}

	dstPath := filepath.Join(t.TempDir(), "nested", "downloaded.cpk")
	if err := storage.Download(ctx, objectPath, dstPath); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	downloaded, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(downloaded) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", downloaded, content)
	}

	if err := storage.Delete(ctx, objectPath); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = storage.Exists(ctx, objectPath)
	if err != nil || exists {
		t.Errorf("object still exists after delete: %v, %v", exists, err)
	}
	if _, ok := storage.ETag(objectPath); ok {
		t.Error("ETag survived delete")
	}

	// Deleting again is a no-op.
	if err := storage.Delete(ctx, objectPath); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
}

func TestLocalStorage_UploadOverwrites(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, content := range []string{"first build", "second"} {
		if err := storage.Upload(ctx, writeTempFile(t, []byte(content)), "c0data.cpk"); err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
	}

	data, err := os.ReadFile(storage.fullPath("c0data.cpk"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("object = %q", data)
	}
	entries, _ := os.ReadDir(storage.basePath)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestLocalStorage_Errors(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	err = storage.Download(ctx, "missing.cpk", filepath.Join(t.TempDir(), "x"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}

	err = storage.Upload(ctx, filepath.Join(t.TempDir(), "absent"), "x.cpk")
	if !errors.Is(err, ErrUploadFailed) || !cpkerrors.IsRetryable(err) {
		t.Errorf("expected retryable upload failure, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := storage.Exists(cancelled, "x.cpk"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StorageConfig{Type: config.StorageNone})
	if err != nil || store != nil {
		t.Errorf("none: %v, %v", store, err)
	}

	dir := filepath.Join(t.TempDir(), "published")
	store, err = Open(ctx, config.StorageConfig{Type: config.StorageLocal, Path: dir})
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if _, ok := store.(*LocalStorage); !ok {
		t.Errorf("local: got %T", store)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("base directory not created: %v", err)
	}

	if _, err := Open(ctx, config.StorageConfig{Type: "ftp"}); cpkerrors.GetCode(err) != cpkerrors.CodeInvalidConfig {
		t.Errorf("unknown type: got %v", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	src := writeTempFile(t, []byte("x"))

	for _, key := range []string{"builds/a.cpk", "builds/nested/b.cpk", "other/c.cpk"} {
		if err := storage.Upload(ctx, src, key); err != nil {
			t.Fatal(err)
		}
	}

	objects, err := storage.ListObjects(ctx, "builds")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 2 || objects[0] != "builds/a.cpk" || objects[1] != "builds/nested/b.cpk" {
		t.Errorf("ListObjects = %v", objects)
	}

	objects, err = storage.ListObjects(ctx, "missing")
	if err != nil || len(objects) != 0 {
		t.Errorf("missing prefix: %v, %v", objects, err)
	}
}
