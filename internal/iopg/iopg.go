// Package iopg writes converted layers into PostgreSQL. Tables are created
// when the first batch of a layer is flushed, features are inserted with
// CopyFrom, geometries are stored as WKB.
package iopg

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gnames/gmlas/internal/iodb"
	"github.com/gnames/gmlas/pkg/db"
	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/schema"
	"github.com/gnames/gmlas/pkg/sink"
	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb/encoding/wkb"
)

type pgLayer struct {
	name    string
	fields  []layer.FieldDef
	geoms   []layer.GeomFieldDef
	created bool
	rows    int
}

// Sink implements sink.Sink and sink.MetadataWriter for PostgreSQL.
type Sink struct {
	mu      sync.Mutex
	op      db.Operator
	mgr     db.SchemaManager
	batcher *sink.Batcher
	layers  []*pgLayer
	byName  map[string]int
	closed  bool
}

// New creates a PostgreSQL sink on a connected operator. Features are
// flushed every batchSize rows per layer.
func New(op db.Operator, mgr db.SchemaManager, batchSize int) *Sink {
	res := &Sink{
		op:     op,
		mgr:    mgr,
		byName: make(map[string]int),
	}
	res.batcher = sink.NewBatcher(batchSize, res.flush)
	return res
}

// CreateLayer implements sink.Sink. A table of the same name left by a
// previous conversion is dropped.
func (s *Sink) CreateLayer(ctx context.Context, name string) (sink.LayerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, sink.ClosedError()
	}
	if _, ok := s.byName[name]; ok {
		return 0, sink.LayerExistsError(name)
	}
	exists, err := s.op.TableExists(ctx, name)
	if err != nil {
		return 0, err
	}
	if exists {
		slog.Info("Replacing table of a previous conversion", "table", name)
		if err = s.op.DropTables(ctx, name); err != nil {
			return 0, err
		}
	}
	h := len(s.layers)
	s.layers = append(s.layers, &pgLayer{name: name})
	s.byName[name] = h
	return sink.LayerHandle(h), nil
}

func (s *Sink) layer(h sink.LayerHandle) (*pgLayer, error) {
	if h < 0 || int(h) >= len(s.layers) {
		return nil, sink.UnknownLayerError(fmt.Sprintf("#%d", h))
	}
	return s.layers[h], nil
}

// AddField implements sink.Sink.
func (s *Sink) AddField(h sink.LayerHandle, def layer.FieldDef) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layer(h)
	if err != nil {
		return 0, err
	}
	l.fields = append(l.fields, def)
	return len(l.fields) - 1, nil
}

// AddGeomField implements sink.Sink.
func (s *Sink) AddGeomField(h sink.LayerHandle, def layer.GeomFieldDef) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layer(h)
	if err != nil {
		return 0, err
	}
	l.geoms = append(l.geoms, def)
	return len(l.geoms) - 1, nil
}

// Write implements sink.Sink.
func (s *Sink) Write(ctx context.Context, f *layer.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sink.ClosedError()
	}
	if _, ok := s.byName[f.Layer.Name]; !ok {
		return sink.UnknownLayerError(f.Layer.Name)
	}
	return s.batcher.Add(ctx, f)
}

// WriteMetadata implements sink.MetadataWriter.
func (s *Sink) WriteMetadata(ctx context.Context, md schema.Metadata) error {
	if err := s.mgr.Migrate(ctx); err != nil {
		return err
	}
	return s.mgr.Write(ctx, md)
}

// Close flushes pending features and creates tables of layers that
// received no features. The operator stays open.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	ctx := context.Background()
	if err := s.batcher.Flush(ctx); err != nil {
		return err
	}
	for _, l := range s.layers {
		if err := s.ensureTable(ctx, l); err != nil {
			return err
		}
		slog.Debug("Layer written", "layer", l.name, "rows", l.rows)
	}
	return nil
}

func (s *Sink) ensureTable(ctx context.Context, l *pgLayer) error {
	if l.created {
		return nil
	}
	pool := s.op.Pool()
	if pool == nil {
		return iodb.NotConnectedError()
	}
	for _, q := range createTableSQL(l) {
		if _, err := pool.Exec(ctx, q); err != nil {
			return iodb.CreateTableError(l.name, err)
		}
	}
	l.created = true
	return nil
}

func (s *Sink) flush(ctx context.Context, name string, fs []*layer.Feature) error {
	l := s.layers[s.byName[name]]
	if err := s.ensureTable(ctx, l); err != nil {
		return err
	}

	rows := make([][]any, 0, len(fs))
	for _, f := range fs {
		row, err := rowValues(l, f)
		if err != nil {
			return iodb.InsertError(l.name, len(fs), err)
		}
		rows = append(rows, row)
	}

	_, err := s.op.Pool().CopyFrom(
		ctx,
		pgx.Identifier{l.name},
		columns(l),
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return iodb.InsertError(l.name, len(rows), err)
	}
	l.rows += len(rows)
	return nil
}

func columns(l *pgLayer) []string {
	res := make([]string, 0, len(l.fields)+len(l.geoms))
	for _, v := range l.fields {
		res = append(res, v.Name)
	}
	for _, v := range l.geoms {
		res = append(res, v.Name)
	}
	return res
}

func rowValues(l *pgLayer, f *layer.Feature) ([]any, error) {
	res := make([]any, 0, len(l.fields)+len(l.geoms))
	for i, v := range l.fields {
		res = append(res, value(v.Type, f.Value(i)))
	}
	for i := range l.geoms {
		g := f.Geom(i)
		if g == nil {
			res = append(res, nil)
			continue
		}
		bs, err := wkb.Marshal(g)
		if err != nil {
			return nil, err
		}
		res = append(res, bs)
	}
	return res, nil
}

// value adapts a feature value to the column type.
func value(t layer.Type, v any) any {
	if v == nil {
		return nil
	}
	if t == layer.Time {
		return layer.FormatValue(t, v)
	}
	return v
}

func columnType(t layer.Type) string {
	switch t {
	case layer.Integer:
		return "INTEGER"
	case layer.Integer64:
		return "BIGINT"
	case layer.Real:
		return "DOUBLE PRECISION"
	case layer.Boolean:
		return "BOOLEAN"
	case layer.Date:
		return "DATE"
	case layer.DateTime:
		return "TIMESTAMPTZ"
	case layer.Binary:
		return "BYTEA"
	case layer.StringList:
		return "TEXT[]"
	case layer.IntegerList:
		return "INTEGER[]"
	case layer.Integer64List:
		return "BIGINT[]"
	case layer.RealList:
		return "DOUBLE PRECISION[]"
	case layer.BooleanList:
		return "BOOLEAN[]"
	default:
		return "TEXT"
	}
}

// createTableSQL returns the CREATE TABLE statement of a layer followed
// by comments that keep XPaths and SRS names of columns.
func createTableSQL(l *pgLayer) []string {
	table := pgx.Identifier{l.name}.Sanitize()
	var cols, comments []string
	for _, v := range l.fields {
		col := pgx.Identifier{v.Name}.Sanitize()
		cols = append(cols, "    "+col+" "+columnType(v.Type))
		if v.XPath != "" {
			comments = append(comments, commentSQL(table, col, v.XPath))
		}
	}
	for _, v := range l.geoms {
		col := pgx.Identifier{v.Name}.Sanitize()
		cols = append(cols, "    "+col+" BYTEA")
		note := v.GeomType.String()
		if v.SRSName != "" {
			note += " " + v.SRSName
		}
		comments = append(comments, commentSQL(table, col, note))
	}
	res := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)",
			table, strings.Join(cols, ",\n")),
	}
	return append(res, comments...)
}

func commentSQL(table, col, text string) string {
	text = strings.ReplaceAll(text, "'", "''")
	return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS '%s'", table, col, text)
}
