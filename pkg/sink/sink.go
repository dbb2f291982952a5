// Package sink declares the destination of converted features and
// provides an in-memory implementation together with helpers shared by
// database backed sinks.
package sink

import (
	"context"

	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/schema"
)

// LayerHandle identifies a layer created in a sink.
type LayerHandle int

// Sink receives layer definitions and features.
type Sink interface {
	// CreateLayer declares a new layer. Fields are added with AddField and
	// AddGeomField before the first feature of the layer is written.
	CreateLayer(ctx context.Context, name string) (LayerHandle, error)

	// AddField appends an attribute column and returns its index.
	AddField(h LayerHandle, def layer.FieldDef) (int, error)

	// AddGeomField appends a geometry column and returns its index.
	AddGeomField(h LayerHandle, def layer.GeomFieldDef) (int, error)

	// Write stores a feature in the layer with the name of its
	// layer definition.
	Write(ctx context.Context, f *layer.Feature) error

	// Close flushes pending features and releases resources.
	Close() error
}

// MetadataWriter is implemented by sinks that can store the metadata
// layers describing layers, fields and relationships.
type MetadataWriter interface {
	WriteMetadata(ctx context.Context, md schema.Metadata) error
}

// CreateLayers declares every layer of the set with all its columns.
func CreateLayers(ctx context.Context, s Sink, set *layer.Set) error {
	for _, l := range set.Layers {
		h, err := s.CreateLayer(ctx, l.Name)
		if err != nil {
			return err
		}
		for _, v := range l.Fields {
			if _, err = s.AddField(h, v); err != nil {
				return err
			}
		}
		for _, v := range l.GeomFields {
			if _, err = s.AddGeomField(h, v); err != nil {
				return err
			}
		}
	}
	return nil
}
