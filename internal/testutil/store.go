package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/manifestkit/internal/state"
	"github.com/leapstack-labs/manifestkit/pkg/manifest"
	"github.com/stretchr/testify/require"
)

// NewTestStore returns a migrated in-memory template store that is closed
// when the test ends.
func NewTestStore(t testing.TB) *state.SQLiteStore {
	t.Helper()
	store, err := state.OpenSQLiteStore(context.Background(), state.MemoryPath, NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewFileStore returns a migrated store backed by a file in a temporary
// directory, along with its path.
func NewFileStore(t testing.TB) (*state.SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "templates.db")
	store, err := state.OpenSQLiteStore(context.Background(), path, NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

// SeedTemplate saves a template for vendor matching headers and returns it.
func SeedTemplate(t testing.TB, store state.Store, vendor, name string, headers []string, mappings []manifest.ColumnMapping) manifest.Template {
	t.Helper()
	tmpl := manifest.Template{
		Vendor:          vendor,
		Name:            name,
		HeaderSignature: manifest.HeaderSignature(headers),
		ColumnMappings:  mappings,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.CreateTemplate(context.Background(), &tmpl))
	return tmpl
}
