// Package iotesting provides shared test utilities.
// This is an internal package for test infrastructure only.
package iotesting

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gnames/gmlas/pkg/config"
)

const (
	// TestDatabaseName is the database name used for all integration tests.
	// This ensures tests never accidentally run against production databases.
	TestDatabaseName = "gmlas_test"
)

// GetTestConfig returns a configuration suitable for tests. Home directory
// points to a temporary directory and the database name is overridden to
// TestDatabaseName for safety. Connection settings can be changed with
// GMLAS_DATABASE_HOST, GMLAS_DATABASE_USER and GMLAS_DATABASE_PASSWORD.
func GetTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	opts := []config.Option{
		config.OptHomeDir(t.TempDir()),
		config.OptDatabaseDatabase(TestDatabaseName),
	}
	if s := os.Getenv("GMLAS_DATABASE_HOST"); s != "" {
		opts = append(opts, config.OptDatabaseHost(s))
	}
	if s := os.Getenv("GMLAS_DATABASE_USER"); s != "" {
		opts = append(opts, config.OptDatabaseUser(s))
	}
	if s := os.Getenv("GMLAS_DATABASE_PASSWORD"); s != "" {
		opts = append(opts, config.OptDatabasePassword(s))
	}
	cfg.Update(opts)
	return cfg
}

// GetTestDatabaseConfig returns only the database configuration for tests.
func GetTestDatabaseConfig(t *testing.T) *config.DatabaseConfig {
	cfg := GetTestConfig(t)
	return &cfg.Database
}

// MemLoader serves schemas and documents from memory. Keys are slash
// separated paths, relative references resolve against the directory of
// the referencing document.
//
// Usage:
//
//	res := iotesting.MemLoader{
//	    "a.xsd": `<xs:schema ...>`,
//	}
//	set, err := ioxsd.New(res).Load(ctx, schemas, "doc.gml")
type MemLoader map[string]string

// Open implements gmlas.ResourceLoader.
func (m MemLoader) Open(
	ctx context.Context,
	uri, basePath string,
) (io.ReadCloser, string, error) {
	loc := m.resolve(uri, basePath)
	s, ok := m[loc]
	if !ok {
		return nil, loc, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(s)), loc, nil
}

// Fetch implements gmlas.ResourceLoader.
func (m MemLoader) Fetch(ctx context.Context, url string) ([]byte, error) {
	s, ok := m[url]
	if !ok {
		return nil, errors.New("not found: " + url)
	}
	return bytes.Clone([]byte(s)), nil
}

func (m MemLoader) resolve(uri, basePath string) string {
	if strings.Contains(uri, "://") || basePath == "" || path.IsAbs(uri) {
		return uri
	}
	if strings.Contains(basePath, "://") {
		i := strings.LastIndex(basePath, "/")
		return basePath[:i+1] + uri
	}
	return path.Join(path.Dir(basePath), uri)
}

// WriteFiles writes files to dir and returns the path of the first
// one listed in names.
func WriteFiles(t *testing.T, dir string, files map[string]string, names ...string) string {
	t.Helper()
	for k, v := range files {
		p := filepath.Join(dir, filepath.FromSlash(k))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", p, err)
		}
		if err := os.WriteFile(p, []byte(v), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", p, err)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return filepath.Join(dir, filepath.FromSlash(names[0]))
}
