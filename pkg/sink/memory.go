package sink

import (
	"context"
	"strconv"
	"sync"

	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/schema"
)

// MemoryLayer is a layer stored by Memory.
type MemoryLayer struct {
	Name       string
	Fields     []layer.FieldDef
	GeomFields []layer.GeomFieldDef

	// Features are kept only when the sink was created with keep set.
	Features []*layer.Feature

	// Count is the number of written features.
	Count int
}

// Memory keeps layers and, optionally, features in memory. Without
// features it serves as a counting sink for summaries.
type Memory struct {
	mu       sync.Mutex
	keep     bool
	closed   bool
	layers   []*MemoryLayer
	byName   map[string]LayerHandle
	metadata *schema.Metadata
}

// NewMemory creates an in-memory sink. Features are retained if keep is
// true, otherwise only counted.
func NewMemory(keep bool) *Memory {
	return &Memory{
		keep:   keep,
		byName: make(map[string]LayerHandle),
	}
}

// CreateLayer implements Sink.
func (m *Memory) CreateLayer(_ context.Context, name string) (LayerHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ClosedError()
	}
	if _, ok := m.byName[name]; ok {
		return 0, LayerExistsError(name)
	}
	h := LayerHandle(len(m.layers))
	m.layers = append(m.layers, &MemoryLayer{Name: name})
	m.byName[name] = h
	return h, nil
}

func (m *Memory) layer(h LayerHandle) (*MemoryLayer, error) {
	if h < 0 || int(h) >= len(m.layers) {
		return nil, UnknownLayerError("#" + strconv.Itoa(int(h)))
	}
	return m.layers[h], nil
}

// AddField implements Sink.
func (m *Memory) AddField(h LayerHandle, def layer.FieldDef) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.layer(h)
	if err != nil {
		return 0, err
	}
	l.Fields = append(l.Fields, def)
	return len(l.Fields) - 1, nil
}

// AddGeomField implements Sink.
func (m *Memory) AddGeomField(h LayerHandle, def layer.GeomFieldDef) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.layer(h)
	if err != nil {
		return 0, err
	}
	l.GeomFields = append(l.GeomFields, def)
	return len(l.GeomFields) - 1, nil
}

// Write implements Sink.
func (m *Memory) Write(ctx context.Context, f *layer.Feature) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ClosedError()
	}
	h, ok := m.byName[f.Layer.Name]
	if !ok {
		return UnknownLayerError(f.Layer.Name)
	}
	l := m.layers[h]
	l.Count++
	if m.keep {
		l.Features = append(l.Features, f)
	}
	return nil
}

// WriteMetadata implements MetadataWriter.
func (m *Memory) WriteMetadata(_ context.Context, md schema.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata = &md
	return nil
}

// Close implements Sink.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Layers returns stored layers in creation order.
func (m *Memory) Layers() []*MemoryLayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MemoryLayer(nil), m.layers...)
}

// Layer returns a stored layer by name or nil.
func (m *Memory) Layer(name string) *MemoryLayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.byName[name]; ok {
		return m.layers[h]
	}
	return nil
}

// Metadata returns written metadata, or nil.
func (m *Memory) Metadata() *schema.Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metadata
}
