// Package storage publishes finished archives to object storage.
package storage

import (
	"context"

	"github.com/arkilian/cpkpack/internal/config"
	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = cpkerrors.New(cpkerrors.ErrCategoryStorage, cpkerrors.CodeObjectNotFound, "object not found")
	ErrUploadFailed   = cpkerrors.New(cpkerrors.ErrCategoryStorage, cpkerrors.CodeUploadFailed, "upload failed")
	ErrDownloadFailed = cpkerrors.New(cpkerrors.ErrCategoryStorage, cpkerrors.CodeDownloadFailed, "download failed")
)

// ObjectStorage abstracts the object store archives are published to.
type ObjectStorage interface {
	// Upload copies the local file at localPath to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies objectPath to localPath, creating parent directories.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists reports whether objectPath is present.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns every object path under prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

func uploadFailed(objectPath string, cause error) error {
	return cpkerrors.NewStorageError(cpkerrors.CodeUploadFailed, "upload of "+objectPath+" failed", cause)
}

func downloadFailed(objectPath string, cause error) error {
	return cpkerrors.NewStorageError(cpkerrors.CodeDownloadFailed, "download of "+objectPath+" failed", cause)
}

// Open returns the store described by cfg, or nil when publishing is
// disabled.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Type {
	case config.StorageNone, "":
		return nil, nil
	case config.StorageLocal:
		local, err := NewLocalStorage(cfg.Path)
		if err != nil {
			return nil, err
		}
		return local, nil
	case config.StorageS3:
		s3cfg := DefaultS3Config()
		if cfg.S3.Region != "" {
			s3cfg.Region = cfg.S3.Region
		}
		s3cfg.Endpoint = cfg.S3.Endpoint
		remote, err := NewS3Storage(ctx, cfg.S3.Bucket, s3cfg)
		if err != nil {
			return nil, err
		}
		return remote, nil
	default:
		return nil, cpkerrors.NewValidationError(cpkerrors.CodeInvalidConfig, "unknown storage type "+cfg.Type)
	}
}
