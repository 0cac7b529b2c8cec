package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/arkilian/cpkpack/internal/bloom"
	"github.com/arkilian/cpkpack/internal/cpk"
	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
	"github.com/arkilian/cpkpack/internal/utf"
	"github.com/arkilian/cpkpack/pkg/types"
)

// Catalog records archive builds.
type Catalog interface {
	// RegisterArchive records a finished archive and its files.
	RegisterArchive(ctx context.Context, reg *Registration) (*ArchiveRecord, error)

	// GetArchive retrieves a build by id.
	GetArchive(ctx context.Context, buildID string) (*ArchiveRecord, error)

	// ListArchives returns every build, newest first.
	ListArchives(ctx context.Context) ([]*ArchiveRecord, error)

	// ListFiles returns the files of a build in file table order.
	ListFiles(ctx context.Context, buildID string) ([]FileRecord, error)

	// FindArchivesByName returns the builds that contain a file named name,
	// newest first.
	FindArchivesByName(ctx context.Context, name string) ([]*ArchiveRecord, error)

	// TOCSnapshot decodes the file table stored for a build.
	TOCSnapshot(ctx context.Context, buildID string) (*types.Table, error)

	// DeleteArchive removes a build and its files.
	DeleteArchive(ctx context.Context, buildID string) error

	// Close closes the catalog database connection.
	Close() error
}

// Registration describes a finished archive to record.
type Registration struct {
	ArchivePath string
	ObjectPath  string
	Config      cpk.Config
	Layout      *cpk.Layout
}

// ArchiveRecord is one build in the catalog.
type ArchiveRecord struct {
	BuildID     string
	ArchivePath string
	ObjectPath  string
	Alignment   int
	Ciphered    bool
	FileCount   int
	ContentSize int64
	ArchiveSize int64
	CreatedAt   time.Time
}

// FileRecord is one file of a build.
type FileRecord struct {
	ID     uint32
	Name   string
	Offset int64
	Size   int64
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool
	dbPath string
	mu     sync.Mutex // Write-only lock

	insertArchiveStmt *sql.Stmt
}

// NewCatalog opens or creates the catalog at dbPath.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	catalog := &SQLiteCatalog{db: db, dbPath: dbPath}

	// Schema first, so the read-only pool opens an existing file
	if err := catalog.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to initialize schema: %w", err)
	}

	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	catalog.readDB = readDB

	insertStmt, err := db.Prepare(`
		INSERT INTO archives (
			build_id, archive_path, object_path,
			alignment, ciphered, file_count,
			content_size, archive_size,
			toc_snapshot, name_filter, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("catalog: failed to prepare insert statement: %w", err)
	}
	catalog.insertArchiveStmt = insertStmt

	return catalog, nil
}

// initSchema creates all required tables and indexes.
func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// RegisterArchive records a finished archive under a new build id.
func (c *SQLiteCatalog) RegisterArchive(ctx context.Context, reg *Registration) (*ArchiveRecord, error) {
	if reg == nil || reg.Layout == nil {
		return nil, cpkerrors.NewValidationError(cpkerrors.CodeInvalidConfig, "catalog: registration without layout")
	}
	l := reg.Layout

	names := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		names[i] = e.Name
	}
	filter := bloom.NewNameFilter(names).SerializeCompressed()
	snapshot := snappy.Encode(nil, l.TOC)

	record := &ArchiveRecord{
		BuildID:     uuid.NewString(),
		ArchivePath: reg.ArchivePath,
		ObjectPath:  reg.ObjectPath,
		Alignment:   reg.Config.Alignment,
		Ciphered:    reg.Config.CipherTables,
		FileCount:   len(l.Entries),
		ContentSize: l.ContentSize,
		ArchiveSize: l.End,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var objectPath *string
	if record.ObjectPath != "" {
		objectPath = &record.ObjectPath
	}
	_, err = tx.StmtContext(ctx, c.insertArchiveStmt).ExecContext(ctx,
		record.BuildID, record.ArchivePath, objectPath,
		record.Alignment, record.Ciphered, record.FileCount,
		record.ContentSize, record.ArchiveSize,
		snapshot, filter, record.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to insert archive: %w", err)
	}

	fileStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO archive_files (build_id, file_id, name, file_offset, file_size)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to prepare file insert: %w", err)
	}
	defer fileStmt.Close()

	for _, e := range l.Entries {
		if _, err := fileStmt.ExecContext(ctx, record.BuildID, e.ID, e.Name, e.Offset, e.Size); err != nil {
			return nil, fmt.Errorf("catalog: failed to insert file %q: %w", e.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: failed to commit archive: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"build_id": record.BuildID,
		"archive":  record.ArchivePath,
		"files":    record.FileCount,
	}).Debug("archive registered")
	return record, nil
}

const archiveColumns = `build_id, archive_path, object_path, alignment, ciphered,
	file_count, content_size, archive_size, created_at`

// GetArchive retrieves a build by id.
func (c *SQLiteCatalog) GetArchive(ctx context.Context, buildID string) (*ArchiveRecord, error) {
	row := c.readDB.QueryRowContext(ctx,
		`SELECT `+archiveColumns+` FROM archives WHERE build_id = ?`, buildID)
	record, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, archiveNotFound(buildID)
	}
	return record, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArchive(s scanner) (*ArchiveRecord, error) {
	var record ArchiveRecord
	var objectPath sql.NullString
	var createdAtUnix int64

	err := s.Scan(
		&record.BuildID, &record.ArchivePath, &objectPath,
		&record.Alignment, &record.Ciphered,
		&record.FileCount, &record.ContentSize, &record.ArchiveSize, &createdAtUnix,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("catalog: failed to scan archive: %w", err)
	}
	record.ObjectPath = objectPath.String
	record.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	return &record, nil
}

// ListArchives returns every build, newest first.
func (c *SQLiteCatalog) ListArchives(ctx context.Context) ([]*ArchiveRecord, error) {
	rows, err := c.readDB.QueryContext(ctx,
		`SELECT `+archiveColumns+` FROM archives ORDER BY created_at DESC, build_id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query archives: %w", err)
	}
	defer rows.Close()

	var records []*ArchiveRecord
	for rows.Next() {
		record, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating archives: %w", err)
	}
	return records, nil
}

// ListFiles returns the files of a build sorted by name, which is file
// table order.
func (c *SQLiteCatalog) ListFiles(ctx context.Context, buildID string) ([]FileRecord, error) {
	if _, err := c.GetArchive(ctx, buildID); err != nil {
		return nil, err
	}

	rows, err := c.readDB.QueryContext(ctx, `
		SELECT file_id, name, file_offset, file_size
		FROM archive_files
		WHERE build_id = ?
		ORDER BY name`, buildID)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.ID, &f.Name, &f.Offset, &f.Size); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating files: %w", err)
	}
	return files, nil
}

// FindArchivesByName prunes builds with their name filters, then confirms
// each candidate against its file list.
func (c *SQLiteCatalog) FindArchivesByName(ctx context.Context, name string) ([]*ArchiveRecord, error) {
	rows, err := c.readDB.QueryContext(ctx,
		`SELECT `+archiveColumns+`, name_filter FROM archives ORDER BY created_at DESC, build_id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query archives: %w", err)
	}

	var candidates []*ArchiveRecord
	scanned := 0
	for rows.Next() {
		var record ArchiveRecord
		var objectPath sql.NullString
		var createdAtUnix int64
		var filterData []byte
		if err := rows.Scan(
			&record.BuildID, &record.ArchivePath, &objectPath,
			&record.Alignment, &record.Ciphered,
			&record.FileCount, &record.ContentSize, &record.ArchiveSize, &createdAtUnix,
			&filterData,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("catalog: failed to scan archive: %w", err)
		}
		scanned++
		record.ObjectPath = objectPath.String
		record.CreatedAt = time.Unix(createdAtUnix, 0).UTC()

		filter, err := bloom.DeserializeCompressed(filterData)
		if err != nil {
			// A damaged filter cannot prune; check the build directly
			logrus.WithField("build_id", record.BuildID).WithError(err).Warn("unreadable name filter")
			candidates = append(candidates, &record)
			continue
		}
		if filter.ContainsString(name) {
			candidates = append(candidates, &record)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("catalog: error iterating archives: %w", err)
	}
	rows.Close()

	var matches []*ArchiveRecord
	for _, record := range candidates {
		var one int
		err := c.readDB.QueryRowContext(ctx,
			`SELECT 1 FROM archive_files WHERE build_id = ? AND name = ?`, record.BuildID, name,
		).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: failed to check %s: %w", record.BuildID, err)
		}
		matches = append(matches, record)
	}

	logrus.WithFields(logrus.Fields{
		"name":       name,
		"scanned":    scanned,
		"candidates": len(candidates),
		"matches":    len(matches),
	}).Debug("name lookup")
	return matches, nil
}

// TOCSnapshot decodes the file table recorded for a build.
func (c *SQLiteCatalog) TOCSnapshot(ctx context.Context, buildID string) (*types.Table, error) {
	var snapshot []byte
	err := c.readDB.QueryRowContext(ctx,
		`SELECT toc_snapshot FROM archives WHERE build_id = ?`, buildID,
	).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, archiveNotFound(buildID)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to read snapshot: %w", err)
	}

	raw, err := snappy.Decode(nil, snapshot)
	if err != nil {
		return nil, cpkerrors.NewCatalogError(cpkerrors.CodeCorruptionDetected,
			fmt.Sprintf("catalog: snapshot of %s is not valid snappy", buildID), err)
	}
	table, err := utf.Decode(raw)
	if err != nil {
		return nil, cpkerrors.NewCatalogError(cpkerrors.CodeCorruptionDetected,
			fmt.Sprintf("catalog: snapshot of %s is not a valid table", buildID), err)
	}
	return table, nil
}

// DeleteArchive removes a build and its files.
func (c *SQLiteCatalog) DeleteArchive(ctx context.Context, buildID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM archive_files WHERE build_id = ?`, buildID); err != nil {
		return fmt.Errorf("catalog: failed to delete files: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM archives WHERE build_id = ?`, buildID)
	if err != nil {
		return fmt.Errorf("catalog: failed to delete archive: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return archiveNotFound(buildID)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: failed to commit delete: %w", err)
	}
	return nil
}

// Close closes the catalog database connections.
func (c *SQLiteCatalog) Close() error {
	if c.insertArchiveStmt != nil {
		c.insertArchiveStmt.Close()
	}
	// Close read connection first, then write connection
	if err := c.readDB.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}

func archiveNotFound(buildID string) error {
	return cpkerrors.NewCatalogError(cpkerrors.CodeArchiveNotFound,
		fmt.Sprintf("catalog: archive %s not found", buildID), nil)
}
