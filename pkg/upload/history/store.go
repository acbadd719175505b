package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// Entry states beyond the backend's ingestion states.
const (
	StateUploaded = "uploaded"
	StateTimeout  = "timeout"
	StateFailed   = "failed"
)

// ErrNotFound is returned when no entry has the requested ID.
var ErrNotFound = errors.New("history entry not found")

// Entry is one uploaded file.
type Entry struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	ObjectName   string    `json:"object_name"`
	Bucket       string    `json:"bucket"`
	SizeBytes    int64     `json:"size_bytes"`
	Status       string    `json:"status"`
	ChunkCount   int       `json:"chunk_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempts     int       `json:"attempts"`
	UploadedAt   time.Time `json:"uploaded_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Terminal reports whether the entry will not change again.
func (e Entry) Terminal() bool {
	return e.Status != StateUploaded && e.Status != "processing"
}

// Update is the result of following an upload's ingestion.
type Update struct {
	Status       string
	ChunkCount   int
	ErrorMessage string
	Attempts     int
}

// ListOptions filters List.
type ListOptions struct {
	// Limit caps the number of entries; zero means 50.
	Limit int
	// Status keeps only entries in this state when set.
	Status string
}

// Store persists entries in SQLite.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path cannot be empty")
	}

	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite only supports a single writer; one connection also keeps an
	// in-memory database alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "upload.history"),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		object_name TEXT NOT NULL,
		bucket TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		status TEXT NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		uploaded_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at);
	CREATE INDEX IF NOT EXISTS idx_uploads_object_name ON uploads(object_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts e, assigning an ID and timestamps when unset, and returns
// the stored entry.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = StateUploaded
	}
	now := s.now().UTC()
	if e.UploadedAt.IsZero() {
		e.UploadedAt = now
	}
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (id, file_name, object_name, bucket, size_bytes, status,
			chunk_count, error_message, attempts, uploaded_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FileName, e.ObjectName, e.Bucket, e.SizeBytes, e.Status,
		e.ChunkCount, e.ErrorMessage, e.Attempts, e.UploadedAt.UnixMilli(), e.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record upload: %w", err)
	}
	s.logger.Debug("upload recorded", "id", e.ID, "object", e.ObjectName)
	return e, nil
}

// Apply stores the outcome of following the upload with the given ID.
func (s *Store) Apply(ctx context.Context, id string, u Update) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE uploads SET status = ?, chunk_count = ?, error_message = ?, attempts = ?, updated_at = ?
		WHERE id = ?`,
		u.Status, u.ChunkCount, u.ErrorMessage, u.Attempts, s.now().UTC().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update upload %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get returns the entry with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = ?`, id)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to query upload %s: %w", id, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entries[0], nil
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(selectColumns)
	if opts.Status != "" {
		query.WriteString(" WHERE status = ?")
		args = append(args, opts.Status)
	}
	query.WriteString(" ORDER BY uploaded_at DESC, id LIMIT ?")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	return scanEntries(rows)
}

// DeleteTerminalBefore removes settled entries last updated before cutoff
// and returns how many were removed.
func (s *Store) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM uploads
		WHERE updated_at < ? AND status NOT IN (?, ?)`,
		cutoff.UTC().UnixMilli(), StateUploaded, "processing",
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune uploads: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `
	SELECT id, file_name, object_name, bucket, size_bytes, status,
		chunk_count, error_message, attempts, uploaded_at, updated_at
	FROM uploads`

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                   Entry
			uploadedAt, updated int64
		)
		if err := rows.Scan(&e.ID, &e.FileName, &e.ObjectName, &e.Bucket, &e.SizeBytes, &e.Status,
			&e.ChunkCount, &e.ErrorMessage, &e.Attempts, &uploadedAt, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		e.UploadedAt = time.UnixMilli(uploadedAt).UTC()
		e.UpdatedAt = time.UnixMilli(updated).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read uploads: %w", err)
	}
	return entries, nil
}
