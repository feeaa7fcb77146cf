// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/JiscSD/ammolib/provider"
)

// Store opens a content store in a temporary directory that is closed when
// the test ends. The database file name is returned with it so a second
// resolver can share the same data.
func Store(t *testing.T, opts ...provider.Option) (*provider.SQLiteResolver, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ammolib.db")
	r, err := provider.NewSQLiteResolver(context.Background(), path, opts...)
	if err != nil {
		t.Fatalf("error opening store %s: %v", path, err)
	}
	t.Cleanup(func() { r.Close() })

	return r, path
}
