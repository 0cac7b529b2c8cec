package catalog

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/arkilian/cpkpack/internal/storage"
)

// ReconciliationReport contains the results of a catalog-storage
// reconciliation.
type ReconciliationReport struct {
	// MissingObjects are builds whose published object no longer exists.
	MissingObjects []DanglingBuild
	// MissingArchives are builds whose local archive file no longer exists.
	MissingArchives []DanglingBuild
	// OrphanedObjects are objects under the prefix no build refers to.
	OrphanedObjects []string

	TotalBuilds         int
	TotalStorageObjects int
	RunAt               time.Time
}

// DanglingBuild is a catalog record pointing at something that is gone.
type DanglingBuild struct {
	BuildID string
	Path    string
}

// HasIssues returns true if anything is missing or orphaned.
func (r *ReconciliationReport) HasIssues() bool {
	return len(r.MissingObjects) > 0 || len(r.MissingArchives) > 0 || len(r.OrphanedObjects) > 0
}

// Reconcile checks every build against the local filesystem and, if store
// is not nil, against the objects under prefix.
func Reconcile(ctx context.Context, catalog Catalog, store storage.ObjectStorage, prefix string) (*ReconciliationReport, error) {
	report := &ReconciliationReport{RunAt: time.Now()}

	builds, err := catalog.ListArchives(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconciliation: failed to list builds: %w", err)
	}
	report.TotalBuilds = len(builds)

	published := make(map[string]string)
	for _, b := range builds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := os.Stat(b.ArchivePath); os.IsNotExist(err) {
			report.MissingArchives = append(report.MissingArchives, DanglingBuild{BuildID: b.BuildID, Path: b.ArchivePath})
		}

		if b.ObjectPath == "" || store == nil {
			continue
		}
		published[b.ObjectPath] = b.BuildID
		exists, err := store.Exists(ctx, b.ObjectPath)
		if err != nil {
			return nil, fmt.Errorf("reconciliation: failed to check object %s: %w", b.ObjectPath, err)
		}
		if !exists {
			report.MissingObjects = append(report.MissingObjects, DanglingBuild{BuildID: b.BuildID, Path: b.ObjectPath})
		}
	}

	if store == nil {
		return report, nil
	}

	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("reconciliation: failed to list storage objects: %w", err)
	}
	report.TotalStorageObjects = len(objects)
	for _, objectPath := range objects {
		if _, tracked := published[objectPath]; !tracked {
			report.OrphanedObjects = append(report.OrphanedObjects, objectPath)
		}
	}
	return report, nil
}
