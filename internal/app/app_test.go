package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arkilian/cpkpack/internal/config"
	"github.com/arkilian/cpkpack/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Catalog.Enabled = true
	cfg.Storage.Type = config.StorageLocal
	cfg.Storage.Prefix = "builds"
	return cfg
}

func TestApp_OpenPackClose(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()
	if err := a.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	if a.Catalog() == nil {
		t.Fatal("catalog not opened")
	}
	if _, ok := a.Storage().(*storage.LocalStorage); !ok {
		t.Fatalf("storage = %T", a.Storage())
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.bin"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	m := &config.Manifest{Entries: []config.ManifestEntry{{ID: 0, Name: "a.bin", Path: "a.bin"}}}

	report, err := a.Packer(true).Pack(ctx, m, dir, filepath.Join(t.TempDir(), "a.cpk"))
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if report.Record == nil || report.ObjectPath != "builds/a.cpk" {
		t.Errorf("unexpected report: %+v", report)
	}
	if _, err := os.Stat(filepath.Join(cfg.Storage.Path, "builds", "a.cpk")); err != nil {
		t.Errorf("published archive missing: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if a.Catalog() != nil {
		t.Error("catalog still set after Close")
	}
}

func TestApp_Disabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if a.Catalog() != nil || a.Storage() != nil {
		t.Error("resources opened although disabled")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Type = "tape"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for invalid storage type")
	}
}
