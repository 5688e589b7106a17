package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/manifestkit/pkg/manifest"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store. A nil logger discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// NewSQLiteStoreWithDB wraps an existing connection. The schema is expected
// to be migrated already.
func NewSQLiteStoreWithDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	s := NewSQLiteStore(logger)
	s.db = db
	return s
}

// Open opens the database at path, creating parent directories as needed.
// Use MemoryPath for an in-memory database.
func (s *SQLiteStore) Open(ctx context.Context, path string) error {
	dsn := MemoryPath
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == MemoryPath {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.logger.Debug("opened template store", slog.String("path", path))
	s.db = db
	s.path = path
	return nil
}

// OpenSQLiteStore opens and migrates a store in one step.
func OpenSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(ctx, path); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

func validateTemplate(t *manifest.Template) error {
	var missing []string
	if strings.TrimSpace(t.Vendor) == "" {
		missing = append(missing, "vendor")
	}
	if strings.TrimSpace(t.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(t.HeaderSignature) == "" {
		missing = append(missing, "header_signature")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidTemplate, strings.Join(missing, ", "))
	}
	return nil
}

func encodeMappings(mappings []manifest.ColumnMapping) (string, error) {
	if mappings == nil {
		mappings = []manifest.ColumnMapping{}
	}
	b, err := json.Marshal(mappings)
	if err != nil {
		return "", fmt.Errorf("failed to encode column mappings: %w", err)
	}
	return string(b), nil
}

// --- Template operations ---

// CreateTemplate saves a new template.
func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *manifest.Template) error {
	if s.db == nil {
		return errNotOpened
	}
	if err := validateTemplate(t); err != nil {
		return err
	}

	mappings, err := encodeMappings(t.ColumnMappings)
	if err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = generateID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	s.logger.Debug("creating template",
		slog.String("id", t.ID),
		slog.String("vendor", t.Vendor),
		slog.String("signature", t.HeaderSignature),
		slog.Bool("default", t.IsDefault))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if t.IsDefault {
			if err := clearDefault(ctx, tx, t); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO templates (id, vendor, name, header_signature, column_mappings, is_default, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Vendor, t.Name, t.HeaderSignature, mappings, t.IsDefault, t.CreatedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("failed to create template: %w", err)
		}
		return nil
	})
}

// GetTemplate retrieves a template by ID.
func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*manifest.Template, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, vendor, name, header_signature, column_mappings, is_default, created_at
		 FROM templates WHERE id = ?`, id)

	t, err := s.scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// UpdateTemplate re-saves the vendor, name, signature, mappings and default
// flag of an existing template. CreatedAt is left unchanged.
func (s *SQLiteStore) UpdateTemplate(ctx context.Context, t *manifest.Template) error {
	if s.db == nil {
		return errNotOpened
	}
	if err := validateTemplate(t); err != nil {
		return err
	}

	mappings, err := encodeMappings(t.ColumnMappings)
	if err != nil {
		return err
	}

	s.logger.Debug("updating template", slog.String("id", t.ID), slog.Bool("default", t.IsDefault))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if t.IsDefault {
			if err := clearDefault(ctx, tx, t); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE templates
			 SET vendor = ?, name = ?, header_signature = ?, column_mappings = ?, is_default = ?
			 WHERE id = ?`,
			t.Vendor, t.Name, t.HeaderSignature, mappings, t.IsDefault, t.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update template: %w", err)
		}
		return expectAffected(res, t.ID)
	})
}

// DeleteTemplate removes a template by ID.
func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	if s.db == nil {
		return errNotOpened
	}

	s.logger.Debug("deleting template", slog.String("id", id))

	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return expectAffected(res, id)
}

// ListTemplates returns templates ordered by vendor, then default first,
// newest first.
func (s *SQLiteStore) ListTemplates(ctx context.Context, vendor string) ([]manifest.Template, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	query := `SELECT id, vendor, name, header_signature, column_mappings, is_default, created_at
		FROM templates`
	var args []any
	if vendor != "" {
		query += ` WHERE vendor = ?`
		args = append(args, vendor)
	}
	query += ` ORDER BY vendor, is_default DESC, created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var templates []manifest.Template
	for rows.Next() {
		t, err := s.scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanTemplate(row scanner) (*manifest.Template, error) {
	var (
		t         manifest.Template
		mappings  string
		createdAt string
	)
	if err := row.Scan(&t.ID, &t.Vendor, &t.Name, &t.HeaderSignature, &mappings, &t.IsDefault, &createdAt); err != nil {
		return nil, err
	}

	decoded, warnings, err := manifest.DecodeMappings([]byte(mappings))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", t.ID, err)
	}
	for _, w := range warnings {
		s.logger.Warn("stored template mapping skipped", slog.String("id", t.ID), slog.String("warning", w))
	}
	t.ColumnMappings = decoded

	created, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("template %s: invalid created_at %q: %w", t.ID, createdAt, err)
	}
	t.CreatedAt = created

	return &t, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// clearDefault drops the default flag from the vendor's other templates with
// the same signature.
func clearDefault(ctx context.Context, tx *sql.Tx, t *manifest.Template) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE templates SET is_default = 0
		 WHERE vendor = ? AND header_signature = ? AND id <> ?`,
		t.Vendor, t.HeaderSignature, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear default template: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return nil
}
