// Package gmlas declares interfaces shared by the converter layers:
// fetching schema and document resources, and running the conversion of
// a GML document into relational layers.
package gmlas

import (
	"context"
	"io"
	"time"

	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/sink"
)

// ResourceLoader opens schemas and linked documents.
type ResourceLoader interface {
	// Open resolves uri against basePath and returns its content together
	// with the resolved location, which serves as base for nested
	// references.
	Open(ctx context.Context, uri, basePath string) (io.ReadCloser, string, error)

	// Fetch downloads a remote resource, enforcing size limits and using
	// the cache when enabled.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Converter turns a GML document into relational layers.
type Converter interface {
	// Analyze loads the schemas referenced by the document (or given in
	// configuration) and builds layer definitions without reading
	// features.
	Analyze(ctx context.Context, src string) (*layer.Set, error)

	// Convert analyzes the schemas, reads the document and writes layer
	// definitions and features to the sink. The sink is closed before
	// Convert returns.
	Convert(ctx context.Context, src string, out sink.Sink) (*Stats, error)
}

// Stats summarize a conversion run.
type Stats struct {
	Layers       int
	Features     int
	PerLayer     map[string]int
	Warnings     int
	Duration     time.Duration
	SchemaFiles  []string
	RemovedLayer []string
}
