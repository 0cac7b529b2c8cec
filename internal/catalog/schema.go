// Package catalog records built archives in a SQLite database so that files
// can be located across builds without opening the archives.
package catalog

// CreateArchivesTableSQL creates the archives table. One row per build.
// toc_snapshot holds the snappy-compressed file table exactly as it was
// encoded into the archive; name_filter the compressed bloom filter over
// its file names.
const CreateArchivesTableSQL = `
CREATE TABLE IF NOT EXISTS archives (
    build_id TEXT PRIMARY KEY,
    archive_path TEXT NOT NULL,
    object_path TEXT,
    alignment INTEGER NOT NULL,
    ciphered INTEGER NOT NULL,
    file_count INTEGER NOT NULL,
    content_size INTEGER NOT NULL,
    archive_size INTEGER NOT NULL,
    toc_snapshot BLOB NOT NULL,
    name_filter BLOB NOT NULL,
    created_at INTEGER NOT NULL
)`

// CreateArchiveFilesTableSQL creates the per-file table.
const CreateArchiveFilesTableSQL = `
CREATE TABLE IF NOT EXISTS archive_files (
    build_id TEXT NOT NULL,
    file_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    file_offset INTEGER NOT NULL,
    file_size INTEGER NOT NULL,
    PRIMARY KEY (build_id, file_id),
    FOREIGN KEY (build_id) REFERENCES archives(build_id) ON DELETE CASCADE
)`

// CreateIndexesSQL creates the lookup indexes.
var CreateIndexesSQL = []string{
	// Exact name lookups after bloom pruning
	`CREATE INDEX IF NOT EXISTS idx_archive_files_name ON archive_files(name, build_id)`,

	// Newest builds first
	`CREATE INDEX IF NOT EXISTS idx_archives_created ON archives(created_at)`,
}

// AllSchemaSQL returns all SQL statements needed to initialize the catalog.
func AllSchemaSQL() []string {
	statements := []string{
		CreateArchivesTableSQL,
		CreateArchiveFilesTableSQL,
	}
	return append(statements, CreateIndexesSQL...)
}
