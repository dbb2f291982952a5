package sink

import (
	"context"

	"github.com/gnames/gmlas/pkg/layer"
)

// FlushFunc writes a batch of features of one layer.
type FlushFunc func(ctx context.Context, name string, fs []*layer.Feature) error

// Batcher groups features per layer and hands them to a FlushFunc once a
// layer accumulates size features.
type Batcher struct {
	size  int
	flush FlushFunc
	rows  map[string][]*layer.Feature
	order []string
}

// NewBatcher creates a Batcher. A size below 1 flushes every feature.
func NewBatcher(size int, flush FlushFunc) *Batcher {
	return &Batcher{
		size:  max(size, 1),
		flush: flush,
		rows:  make(map[string][]*layer.Feature),
	}
}

// Add queues a feature and flushes its layer when the batch is full.
func (b *Batcher) Add(ctx context.Context, f *layer.Feature) error {
	name := f.Layer.Name
	rows, ok := b.rows[name]
	if !ok {
		b.order = append(b.order, name)
	}
	rows = append(rows, f)
	if len(rows) < b.size {
		b.rows[name] = rows
		return nil
	}
	b.rows[name] = nil
	return b.flush(ctx, name, rows)
}

// Flush writes all pending features, layers in the order they were
// first seen.
func (b *Batcher) Flush(ctx context.Context) error {
	for _, name := range b.order {
		rows := b.rows[name]
		if len(rows) == 0 {
			continue
		}
		b.rows[name] = nil
		if err := b.flush(ctx, name, rows); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the number of queued features.
func (b *Batcher) Pending() int {
	var res int
	for _, v := range b.rows {
		res += len(v)
	}
	return res
}
