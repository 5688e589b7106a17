// Package state persists vendor mapping templates in SQLite.
package state

import (
	"context"
	"errors"

	"github.com/leapstack-labs/manifestkit/pkg/manifest"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidTemplate  = errors.New("invalid template")
)

var errNotOpened = errors.New("database not opened")

// Store is the template persistence contract used by the API and the CLI.
type Store interface {
	// CreateTemplate saves a new template. A missing ID or CreatedAt is
	// filled in on t.
	CreateTemplate(ctx context.Context, t *manifest.Template) error
	// GetTemplate loads one template by ID.
	GetTemplate(ctx context.Context, id string) (*manifest.Template, error)
	// UpdateTemplate re-saves an existing template.
	UpdateTemplate(ctx context.Context, t *manifest.Template) error
	// DeleteTemplate removes a template.
	DeleteTemplate(ctx context.Context, id string) error
	// ListTemplates returns a vendor's templates, or all templates when
	// vendor is empty.
	ListTemplates(ctx context.Context, vendor string) ([]manifest.Template, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
