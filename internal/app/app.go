// Package app wires the configured catalog, object storage and logger
// into a packer, and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/arkilian/cpkpack/internal/catalog"
	"github.com/arkilian/cpkpack/internal/config"
	"github.com/arkilian/cpkpack/internal/pack"
	"github.com/arkilian/cpkpack/internal/storage"
)

// App holds the shared resources of one cpkpack invocation.
type App struct {
	cfg *config.Config
	log *logrus.Logger

	storage storage.ObjectStorage
	catalog *catalog.SQLiteCatalog

	mu   sync.Mutex
	open bool
}

// New validates cfg and prepares its directories. Resources are not opened
// until Open.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	logger := cfg.NewLogger()
	// Catalog and storage log through the standard logger.
	logrus.SetLevel(logger.GetLevel())
	logrus.SetFormatter(logger.Formatter)

	return &App{cfg: cfg, log: logger}, nil
}

// Open initializes storage and the catalog. It is a no-op on an open App.
func (a *App) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open {
		return nil
	}

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}
	a.open = true
	return nil
}

func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	a.storage, err = storage.Open(ctx, a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if a.storage != nil {
		a.log.WithField("type", a.cfg.Storage.Type).Debug("storage initialized")
		if a.cfg.Storage.Type == config.StorageS3 {
			a.log.WithFields(logrus.Fields{
				"bucket":   a.cfg.Storage.S3.Bucket,
				"region":   a.cfg.Storage.S3.Region,
				"endpoint": a.cfg.Storage.S3.Endpoint,
			}).Debug("S3 config")
		}
	}

	if a.cfg.Catalog.Enabled {
		a.catalog, err = catalog.NewCatalog(a.cfg.Catalog.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize catalog: %w", err)
		}
		a.log.WithField("path", a.cfg.Catalog.Path).Debug("catalog initialized")
	}
	return nil
}

// Logger returns the configured logger.
func (a *App) Logger() *logrus.Logger { return a.log }

// Catalog returns the catalog, or nil when it is disabled.
func (a *App) Catalog() catalog.Catalog {
	if a.catalog == nil {
		return nil
	}
	return a.catalog
}

// Storage returns the publish target, or nil when publishing is disabled.
func (a *App) Storage() storage.ObjectStorage { return a.storage }

// Packer returns a packer wired to the open resources.
func (a *App) Packer(verify bool) *pack.Packer {
	opts := []pack.Option{
		pack.WithLogger(logrus.NewEntry(a.log)),
		pack.WithVerify(verify),
	}
	if a.catalog != nil {
		opts = append(opts, pack.WithCatalog(a.catalog))
	}
	if a.storage != nil {
		opts = append(opts, pack.WithStorage(a.storage, a.cfg.Storage.Prefix))
	}
	return pack.NewPacker(a.cfg.Archive, opts...)
}

// Close releases the shared resources.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = false
	return a.cleanup()
}

func (a *App) cleanup() error {
	var err error
	if a.catalog != nil {
		err = a.catalog.Close()
		a.catalog = nil
	}
	a.storage = nil
	return err
}
