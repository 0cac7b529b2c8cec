// Package pack builds an archive from a manifest directory, then records
// and publishes it.
package pack

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/arkilian/cpkpack/internal/catalog"
	"github.com/arkilian/cpkpack/internal/config"
	"github.com/arkilian/cpkpack/internal/cpk"
	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
	"github.com/arkilian/cpkpack/internal/storage"
	"github.com/arkilian/cpkpack/internal/utf"
)

// Report describes one finished build.
type Report struct {
	ArchivePath string
	Config      cpk.Config
	Layout      *cpk.Layout

	// ObjectPath is where the archive was published, empty if it was not.
	ObjectPath string
	// Record is the catalog entry, nil without a catalog.
	Record *catalog.ArchiveRecord

	Duration time.Duration
}

// Option configures a Packer.
type Option func(*Packer)

// WithCatalog records every build in c.
func WithCatalog(c catalog.Catalog) Option {
	return func(p *Packer) {
		p.catalog = c
	}
}

// WithStorage publishes every build to store under prefix.
func WithStorage(store storage.ObjectStorage, prefix string) Option {
	return func(p *Packer) {
		p.store = store
		p.prefix = prefix
	}
}

// WithLogger sets the entry the packer and its writers log through.
func WithLogger(log *logrus.Entry) Option {
	return func(p *Packer) {
		p.log = log
	}
}

// WithVerify re-reads every archive after it is written and checks its file
// table against what was packed.
func WithVerify(verify bool) Option {
	return func(p *Packer) {
		p.verify = verify
	}
}

// Packer drives the archive writer over manifest entries. A Packer holds no
// per-build state and may run builds concurrently as long as their output
// paths differ.
type Packer struct {
	cfg     cpk.Config
	catalog catalog.Catalog
	store   storage.ObjectStorage
	prefix  string
	log     *logrus.Entry
	verify  bool
}

// NewPacker returns a packer whose builds start from cfg. Manifest options
// override it per build.
func NewPacker(cfg cpk.Config, opts ...Option) *Packer {
	p := &Packer{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return p
}

// Pack writes the files m names, resolved against baseDir, into a new
// archive at outPath. If building fails the partial output is removed.
// Verification, publishing and registration run on the complete archive;
// their failures are returned with the report and leave the archive in
// place.
func (p *Packer) Pack(ctx context.Context, m *config.Manifest, baseDir, outPath string) (*Report, error) {
	start := time.Now()
	cfg := m.ArchiveConfig(p.cfg)
	log := p.log.WithField("archive", outPath)

	layout, err := p.build(ctx, m, cfg, baseDir, outPath, log)
	if err != nil {
		if rmErr := os.Remove(outPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.WithError(rmErr).Warn("failed to remove partial archive")
		}
		return nil, err
	}

	report := &Report{ArchivePath: outPath, Config: cfg, Layout: layout}
	log.WithFields(logrus.Fields{
		"files":        len(layout.Entries),
		"content_size": layout.ContentSize,
		"size":         layout.End,
	}).Info("archive written")

	if p.verify {
		if err := Verify(outPath, layout); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		log.Debug("archive verified")
	}

	if p.store != nil {
		objectPath := path.Join(p.prefix, filepath.Base(outPath))
		if err := p.store.Upload(ctx, outPath, objectPath); err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		report.ObjectPath = objectPath
		log.WithField("object", objectPath).Info("archive published")
	}

	if p.catalog != nil {
		record, err := p.catalog.RegisterArchive(ctx, &catalog.Registration{
			ArchivePath: outPath,
			ObjectPath:  report.ObjectPath,
			Config:      cfg,
			Layout:      layout,
		})
		if err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
		report.Record = record
		log.WithField("build_id", record.BuildID).Info("archive registered")
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (p *Packer) build(ctx context.Context, m *config.Manifest, cfg cpk.Config, baseDir, outPath string, log *logrus.Entry) (*cpk.Layout, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	defer f.Close()

	w, err := cpk.NewWriter(f, cfg, cpk.WithLogger(log))
	if err != nil {
		return nil, err
	}

	for _, e := range m.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filepath.IsLocal(filepath.FromSlash(e.Path)) {
			return nil, cpkerrors.NewValidationError(cpkerrors.CodeInvalidManifest,
				fmt.Sprintf("manifest: path %q of %q leaves the input directory", e.Path, e.Name))
		}
		if err := acceptFile(w, e, filepath.Join(baseDir, filepath.FromSlash(e.Path))); err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"id": e.ID, "name": e.Name}).Info("packed file")
	}

	layout, err := w.Close()
	if err != nil {
		return nil, err
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync archive: %w", err)
	}
	return layout, f.Close()
}

func acceptFile(w *cpk.Writer, e config.ManifestEntry, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", e.Name, err)
	}
	defer src.Close()
	return w.Accept(e.ID, e.Name, src)
}

// Verify reopens the archive at archivePath and checks that its tables
// describe exactly the files in layout.
func Verify(archivePath string, layout *cpk.Layout) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	archive, err := cpk.Inspect(f)
	if err != nil {
		return err
	}
	if len(archive.Files) != len(layout.Entries) {
		return mismatch("archive lists %d files, wrote %d", len(archive.Files), len(layout.Entries))
	}
	for i, got := range archive.Files {
		want := layout.Entries[i]
		// Names are read back through the file table's declared encoding.
		if want.Name, err = utf.DecodeText(cpk.TOCSpec.Encoding, []byte(want.Name)); err != nil {
			return mismatch("file %d: name %q: %v", i, layout.Entries[i].Name, err)
		}
		if got != want {
			return mismatch("file %d: archive lists %+v, wrote %+v", i, got, want)
		}
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if end != layout.End {
		return mismatch("archive is %d bytes, expected %d", end, layout.End)
	}
	return nil
}

func mismatch(format string, args ...interface{}) error {
	return cpkerrors.New(cpkerrors.ErrCategoryFormat, cpkerrors.CodeCorruptionDetected, fmt.Sprintf("verify: "+format, args...))
}
