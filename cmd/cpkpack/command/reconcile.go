package command

import (
	"fmt"

	"github.com/arkilian/cpkpack/internal/app"
	"github.com/arkilian/cpkpack/internal/catalog"
)

const (
	ReconcileDescription = "Check the catalog against local archives and storage"
	ReconcileHelp        = ReconcileDescription + `.

Reports builds whose archive file or published object is gone, and objects
under the storage prefix that no build refers to. Exits with an error if
anything is reported.`
)

// Reconcile represents the `reconcile` command.
type Reconcile struct {
	configOptions
}

// Execute runs the reconciliation and prints its findings.
func (c *Reconcile) Execute(args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	cfg.Catalog.Enabled = true

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	if err := a.Open(ctx); err != nil {
		return err
	}
	defer a.Close()

	report, err := catalog.Reconcile(ctx, a.Catalog(), a.Storage(), cfg.Storage.Prefix)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%d builds, %d stored objects\n", report.TotalBuilds, report.TotalStorageObjects)
	for _, d := range report.MissingArchives {
		fmt.Fprintf(stdout, "missing archive: %s (build %s)\n", d.Path, d.BuildID)
	}
	for _, d := range report.MissingObjects {
		fmt.Fprintf(stdout, "missing object: %s (build %s)\n", d.Path, d.BuildID)
	}
	for _, o := range report.OrphanedObjects {
		fmt.Fprintf(stdout, "orphaned object: %s\n", o)
	}
	if report.HasIssues() {
		return fmt.Errorf("catalog and storage disagree")
	}
	return nil
}
