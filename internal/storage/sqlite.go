package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/veridoc/veridoc-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Store interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Wait for locks instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Document operations

// createDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createDocumentWithQuerier(ctx context.Context, q querier, doc *types.Document) error {
	// A name may have at most one active revision; the partial unique
	// index enforces this, the explicit check gives a typed error.
	var existing string
	err := q.QueryRowContext(ctx,
		"SELECT id FROM documents WHERE name = ? AND superseded_at IS NULL", doc.Name,
	).Scan(&existing)
	if err == nil {
		return fmt.Errorf("active document %q: %w", doc.Name, ErrAlreadyExists)
	}
	if err != sql.ErrNoRows {
		return err
	}

	query := `
		INSERT INTO documents (id, name, path, pages, chunk_count, ingested_at, superseded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		doc.ID, doc.Name, doc.Path, doc.Pages, doc.ChunkCount,
		doc.IngestedAt, doc.SupersededAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *types.Document) error {
	return s.createDocumentWithQuerier(ctx, s.querier(), doc)
}

// getDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getDocumentWithQuerier(ctx context.Context, q querier, id string) (*types.Document, error) {
	query := `
		SELECT id, name, path, pages, chunk_count, ingested_at, superseded_at
		FROM documents
		WHERE id = ?
	`
	var doc types.Document
	var supersededAt sql.NullTime
	err := q.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Name, &doc.Path, &doc.Pages, &doc.ChunkCount,
		&doc.IngestedAt, &supersededAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if supersededAt.Valid {
		t := supersededAt.Time
		doc.SupersededAt = &t
	}
	return &doc, nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	return s.getDocumentWithQuerier(ctx, s.querier(), id)
}

// getDocumentByNameWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getDocumentByNameWithQuerier(ctx context.Context, q querier, name string) (*types.Document, error) {
	query := `
		SELECT id, name, path, pages, chunk_count, ingested_at, superseded_at
		FROM documents
		WHERE name = ? AND superseded_at IS NULL
	`
	var doc types.Document
	var supersededAt sql.NullTime
	err := q.QueryRowContext(ctx, query, name).Scan(
		&doc.ID, &doc.Name, &doc.Path, &doc.Pages, &doc.ChunkCount,
		&doc.IngestedAt, &supersededAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if supersededAt.Valid {
		t := supersededAt.Time
		doc.SupersededAt = &t
	}
	return &doc, nil
}

// GetDocumentByName returns the active revision for a document name.
func (s *SQLiteStorage) GetDocumentByName(ctx context.Context, name string) (*types.Document, error) {
	return s.getDocumentByNameWithQuerier(ctx, s.querier(), name)
}

// listDocumentsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listDocumentsWithQuerier(ctx context.Context, q querier) ([]*types.Document, error) {
	query := `
		SELECT id, name, path, pages, chunk_count, ingested_at, superseded_at
		FROM documents
		WHERE superseded_at IS NULL
		ORDER BY name
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*types.Document, 0)
	for rows.Next() {
		var doc types.Document
		var supersededAt sql.NullTime
		err := rows.Scan(
			&doc.ID, &doc.Name, &doc.Path, &doc.Pages, &doc.ChunkCount,
			&doc.IngestedAt, &supersededAt,
		)
		if err != nil {
			return nil, err
		}
		if supersededAt.Valid {
			t := supersededAt.Time
			doc.SupersededAt = &t
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// ListDocuments returns all active document revisions ordered by name.
func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	return s.listDocumentsWithQuerier(ctx, s.querier())
}

// supersedeDocumentsByNameWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) supersedeDocumentsByNameWithQuerier(ctx context.Context, q querier, name string) ([]string, error) {
	// Collect IDs first so the caller can restore or purge the
	// revisions later. Chunk rows are kept; restore depends on them.
	rows, err := q.QueryContext(ctx,
		"SELECT id FROM documents WHERE name = ? AND superseded_at IS NULL", name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := `UPDATE documents SET superseded_at = ? WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to supersede documents: %w", err)
	}
	return ids, nil
}

// SupersedeDocumentsByName marks every active revision of a name as
// superseded and returns their IDs. Superseding a name with no active
// revision is not an error; the returned slice is empty.
func (s *SQLiteStorage) SupersedeDocumentsByName(ctx context.Context, name string) ([]string, error) {
	return s.supersedeDocumentsByNameWithQuerier(ctx, s.querier(), name)
}

// restoreDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) restoreDocumentWithQuerier(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx,
		"UPDATE documents SET superseded_at = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to restore document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RestoreDocument clears a revision's superseded mark, making it the
// active revision for its name again.
func (s *SQLiteStorage) RestoreDocument(ctx context.Context, id string) error {
	return s.restoreDocumentWithQuerier(ctx, s.querier(), id)
}

// deleteDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteDocumentWithQuerier(ctx context.Context, q querier, id string) error {
	// Chunk rows go with the revision via the foreign key cascade.
	// Deleting a missing revision is a no-op.
	query := `DELETE FROM documents WHERE id = ?`
	_, err := q.ExecContext(ctx, query, id)
	return err
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	return s.deleteDocumentWithQuerier(ctx, s.querier(), id)
}

// Chunk operations

// createChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createChunksWithQuerier(ctx context.Context, q querier, chunks []*types.Chunk) error {
	query := `
		INSERT INTO chunks (
			id, document_id, chunk_index, kind, text, token_count,
			word_count, source_document, page_number, start_token, end_token
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, chunk := range chunks {
		_, err := q.ExecContext(ctx, query,
			chunk.ID, chunk.DocumentID, chunk.Index, string(chunk.Kind),
			chunk.Text, chunk.TokenCount, chunk.WordCount,
			chunk.SourceDocument, chunk.PageNumber,
			chunk.StartToken, chunk.EndToken)
		if err != nil {
			return fmt.Errorf("failed to create chunk %s: %w", chunk.ID, err)
		}
	}
	return nil
}

// CreateChunks inserts a batch of chunk rows. Callers persisting a full
// document should run this inside a transaction alongside CreateDocument.
func (s *SQLiteStorage) CreateChunks(ctx context.Context, chunks []*types.Chunk) error {
	return s.createChunksWithQuerier(ctx, s.querier(), chunks)
}

// getChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, id string) (*types.Chunk, error) {
	query := `
		SELECT id, document_id, chunk_index, kind, text, token_count,
		       word_count, source_document, page_number, start_token, end_token
		FROM chunks
		WHERE id = ?
	`
	var chunk types.Chunk
	var kind string
	err := q.QueryRowContext(ctx, query, id).Scan(
		&chunk.ID, &chunk.DocumentID, &chunk.Index, &kind,
		&chunk.Text, &chunk.TokenCount, &chunk.WordCount,
		&chunk.SourceDocument, &chunk.PageNumber,
		&chunk.StartToken, &chunk.EndToken,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	chunk.Kind = types.ChunkKind(kind)
	return &chunk, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*types.Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), id)
}

// scanChunks drains a chunk result set
func scanChunks(rows *sql.Rows) ([]*types.Chunk, error) {
	defer func() { _ = rows.Close() }()

	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		var chunk types.Chunk
		var kind string
		err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.Index, &kind,
			&chunk.Text, &chunk.TokenCount, &chunk.WordCount,
			&chunk.SourceDocument, &chunk.PageNumber,
			&chunk.StartToken, &chunk.EndToken,
		)
		if err != nil {
			return nil, err
		}
		chunk.Kind = types.ChunkKind(kind)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// getChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getChunksWithQuerier(ctx context.Context, q querier, ids []string) ([]*types.Chunk, error) {
	if len(ids) == 0 {
		return []*types.Chunk{}, nil
	}

	// Build parameterized IN clause
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `
		SELECT id, document_id, chunk_index, kind, text, token_count,
		       word_count, source_document, page_number, start_token, end_token
		FROM chunks
		WHERE id IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// GetChunks bulk-hydrates chunks by ID. IDs with no matching row are
// omitted from the result rather than reported as errors; retrieval
// treats them as stale references.
func (s *SQLiteStorage) GetChunks(ctx context.Context, ids []string) ([]*types.Chunk, error) {
	return s.getChunksWithQuerier(ctx, s.querier(), ids)
}

// listActiveChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listActiveChunksWithQuerier(ctx context.Context, q querier) ([]*types.Chunk, error) {
	// Deterministic order so index rebuilds see a stable corpus.
	query := `
		SELECT c.id, c.document_id, c.chunk_index, c.kind, c.text, c.token_count,
		       c.word_count, c.source_document, c.page_number, c.start_token, c.end_token
		FROM chunks c
		JOIN documents d ON c.document_id = d.id
		WHERE d.superseded_at IS NULL
		ORDER BY d.name, c.chunk_index
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// ListActiveChunks returns every chunk belonging to an active document
// revision, ordered by document name then chunk index.
func (s *SQLiteStorage) ListActiveChunks(ctx context.Context) ([]*types.Chunk, error) {
	return s.listActiveChunksWithQuerier(ctx, s.querier())
}

// countActiveChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) countActiveChunksWithQuerier(ctx context.Context, q querier) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM chunks c
		JOIN documents d ON c.document_id = d.id
		WHERE d.superseded_at IS NULL
	`
	var count int
	if err := q.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteStorage) CountActiveChunks(ctx context.Context) (int, error) {
	return s.countActiveChunksWithQuerier(ctx, s.querier())
}

// Status operations

// statsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) statsWithQuerier(ctx context.Context, q querier) (*Stats, error) {
	stats := &Stats{SchemaVersion: CurrentSchemaVersion}

	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE superseded_at IS NULL").Scan(&stats.ActiveDocuments)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&stats.TotalDocuments)
	if err != nil {
		return nil, err
	}

	stats.ActiveChunks, err = s.countActiveChunksWithQuerier(ctx, q)
	if err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	err = q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	var version string
	err = q.QueryRowContext(ctx,
		"SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&version)
	if err == nil && version != "" {
		stats.SchemaVersion = version
	}

	return stats, nil
}

func (s *SQLiteStorage) Stats(ctx context.Context) (*Stats, error) {
	return s.statsWithQuerier(ctx, s.querier())
}

// Transaction implementations

// Write operations use the internal helper that uses querier() so they
// run inside the transaction; reads do the same so a transaction sees
// its own uncommitted writes.

func (t *sqliteTx) CreateDocument(ctx context.Context, doc *types.Document) error {
	return t.storage.createDocumentWithQuerier(ctx, t.querier(), doc)
}

func (t *sqliteTx) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	return t.storage.getDocumentWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) GetDocumentByName(ctx context.Context, name string) (*types.Document, error) {
	return t.storage.getDocumentByNameWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	return t.storage.listDocumentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) SupersedeDocumentsByName(ctx context.Context, name string) ([]string, error) {
	return t.storage.supersedeDocumentsByNameWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) RestoreDocument(ctx context.Context, id string) error {
	return t.storage.restoreDocumentWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) DeleteDocument(ctx context.Context, id string) error {
	return t.storage.deleteDocumentWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) CreateChunks(ctx context.Context, chunks []*types.Chunk) error {
	return t.storage.createChunksWithQuerier(ctx, t.querier(), chunks)
}

func (t *sqliteTx) GetChunk(ctx context.Context, id string) (*types.Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) GetChunks(ctx context.Context, ids []string) ([]*types.Chunk, error) {
	return t.storage.getChunksWithQuerier(ctx, t.querier(), ids)
}

func (t *sqliteTx) ListActiveChunks(ctx context.Context) ([]*types.Chunk, error) {
	return t.storage.listActiveChunksWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) CountActiveChunks(ctx context.Context) (int, error) {
	return t.storage.countActiveChunksWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Stats(ctx context.Context) (*Stats, error) {
	return t.storage.statsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	// We return an error to prevent accidental misuse
	// If savepoints are needed in the future, implement here
	return nil, errors.New("nested transactions not supported")
}
