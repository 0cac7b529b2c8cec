package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/arkilian/cpkpack/internal/config"
	"github.com/arkilian/cpkpack/internal/storage"
)

// getBenchmarkStorage returns the store and key prefix to publish to.
// CPKPACK_STORAGE_TYPE=s3, from the environment or a .env file at the
// project root, selects S3; everything else uses a temp directory.
func getBenchmarkStorage(b *testing.B, benchName string) (storage.ObjectStorage, string) {
	b.Helper()
	_ = godotenv.Load("../../.env")

	if os.Getenv(config.EnvPrefix+"STORAGE_TYPE") == config.StorageS3 {
		if v := os.Getenv(config.EnvPrefix + "AWS_ACCESS_KEY_ID"); v != "" {
			os.Setenv("AWS_ACCESS_KEY_ID", v)
		}
		if v := os.Getenv(config.EnvPrefix + "AWS_SECRET_ACCESS_KEY"); v != "" {
			os.Setenv("AWS_SECRET_ACCESS_KEY", v)
		}

		bucket := os.Getenv(config.EnvPrefix + "S3_BUCKET")
		if bucket == "" {
			b.Fatal(config.EnvPrefix + "S3_BUCKET is required for the s3 benchmark")
		}
		cfg := storage.DefaultS3Config()
		if v := os.Getenv(config.EnvPrefix + "S3_REGION"); v != "" {
			cfg.Region = v
		}
		cfg.Endpoint = os.Getenv(config.EnvPrefix + "S3_ENDPOINT")

		st, err := storage.NewS3Storage(context.Background(), bucket, cfg)
		if err != nil {
			b.Fatalf("failed to initialize S3 storage: %v", err)
		}
		prefix := fmt.Sprintf("bench/%s/%d", benchName, time.Now().UnixNano())
		b.Logf("publishing to s3://%s/%s", bucket, prefix)
		return st, prefix
	}

	st, err := storage.NewLocalStorage(b.TempDir())
	if err != nil {
		b.Fatalf("failed to create local storage: %v", err)
	}
	return st, ""
}

// writeInputDir creates n files of size bytes and a manifest listing them.
func writeInputDir(b *testing.B, n, size int) (string, *config.Manifest) {
	b.Helper()
	dir := b.TempDir()
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i * 31)
	}

	m := &config.Manifest{}
	for i := 0; i < n; i++ {
		file := fmt.Sprintf("%05d.bin", i)
		if err := os.WriteFile(filepath.Join(dir, file), payload, 0644); err != nil {
			b.Fatal(err)
		}
		m.Entries = append(m.Entries, config.ManifestEntry{
			ID:   int64(i),
			Name: fmt.Sprintf("data/%05d.bin", n-i),
			Path: file,
		})
	}
	return dir, m
}
