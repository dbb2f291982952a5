// Package iosqlite writes converted layers into a SQLite file with the
// pure Go modernc driver. Geometries are stored as WKT, list values as
// JSON arrays.
package iosqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/schema"
	"github.com/gnames/gmlas/pkg/sink"
	"github.com/paulmach/orb/encoding/wkt"
	_ "modernc.org/sqlite"
)

// GeometryColumnsTable lists geometry columns with their type and SRS.
const GeometryColumnsTable = "geometry_columns"

type sqlLayer struct {
	name    string
	fields  []layer.FieldDef
	geoms   []layer.GeomFieldDef
	created bool
}

// Sink implements sink.Sink and sink.MetadataWriter for SQLite.
type Sink struct {
	mu      sync.Mutex
	path    string
	db      *sql.DB
	batcher *sink.Batcher
	layers  []*sqlLayer
	byName  map[string]int
	closed  bool
}

// New creates the SQLite file at path, replacing an existing one.
func New(path string, batchSize int) (*Sink, error) {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, OpenError(path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, OpenError(path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = OFF",
		"PRAGMA synchronous = OFF",
	}
	for _, v := range pragmas {
		if _, err = db.Exec(v); err != nil {
			db.Close()
			return nil, OpenError(path, err)
		}
	}

	q := fmt.Sprintf(`CREATE TABLE %s (
    f_table_name TEXT NOT NULL,
    f_geometry_column TEXT NOT NULL,
    geometry_type TEXT,
    srs_name TEXT
)`, GeometryColumnsTable)
	if _, err = db.Exec(q); err != nil {
		db.Close()
		return nil, CreateTableError(GeometryColumnsTable, err)
	}

	res := &Sink{
		path:   path,
		db:     db,
		byName: make(map[string]int),
	}
	res.batcher = sink.NewBatcher(batchSize, res.flush)
	return res, nil
}

// CreateLayer implements sink.Sink.
func (s *Sink) CreateLayer(_ context.Context, name string) (sink.LayerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, sink.ClosedError()
	}
	if _, ok := s.byName[name]; ok {
		return 0, sink.LayerExistsError(name)
	}
	h := len(s.layers)
	s.layers = append(s.layers, &sqlLayer{name: name})
	s.byName[name] = h
	return sink.LayerHandle(h), nil
}

func (s *Sink) layer(h sink.LayerHandle) (*sqlLayer, error) {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range schema.AllGenerators() {
		stmts := append([]string{g.TableDDL()}, g.IndexDDL()...)
		for _, q := range stmts {
			if _, err := s.db.ExecContext(ctx, q); err != nil {
				return CreateTableError(g.TableName(), err)
			}
		}
	}

	if err := insertModels(ctx, s.db, md.Layers); err != nil {
		return err
	}
	if err := insertModels(ctx, s.db, md.Fields); err != nil {
		return err
	}
	if err := insertModels(ctx, s.db, md.Relationships); err != nil {
		return err
	}
	return insertModels(ctx, s.db, md.Other)
}

// Close flushes pending features, creates tables of layers without
// features and closes the file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	ctx := context.Background()
	err := s.batcher.Flush(ctx)
	for _, l := range s.layers {
		if err != nil {
			break
		}
		err = s.ensureTable(ctx, l)
	}
	if cerr := s.db.Close(); err == nil && cerr != nil {
		err = cerr
	}
	slog.Debug("SQLite output closed", "path", s.path, "layers", len(s.layers))
	return err
}

func (s *Sink) ensureTable(ctx context.Context, l *sqlLayer) error {
	if l.created {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, createTableSQL(l)); err != nil {
		return CreateTableError(l.name, err)
	}
	q := fmt.Sprintf("INSERT INTO %s VALUES (?, ?, ?, ?)", GeometryColumnsTable)
	for _, v := range l.geoms {
		_, err := s.db.ExecContext(ctx, q, l.name, v.Name, v.GeomType.String(), v.SRSName)
		if err != nil {
			return InsertError(GeometryColumnsTable, err)
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
	if len(l.fields)+len(l.geoms) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return InsertError(l.name, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL(l))
	if err != nil {
		return InsertError(l.name, err)
	}
	defer stmt.Close()

	for _, f := range fs {
		if _, err = stmt.ExecContext(ctx, rowValues(l, f)...); err != nil {
			return InsertError(l.name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return InsertError(l.name, err)
	}
	return nil
}

func insertModels[T schema.DDLGenerator](ctx context.Context, db *sql.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	table := rows[0].TableName()
	cols := schema.Columns(rows[0])
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders(len(cols)))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return InsertError(table, err)
	}
	defer tx.Rollback()
	for _, v := range rows {
		if _, err = tx.ExecContext(ctx, q, schema.Values(v)...); err != nil {
			return InsertError(table, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return InsertError(table, err)
	}
	return nil
}

func rowValues(l *sqlLayer, f *layer.Feature) []any {
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
		res = append(res, wkt.MarshalString(g))
	}
	return res
}

// value converts a feature value to a type stored by SQLite.
func value(t layer.Type, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, int32, int64, float64, []byte:
		return val
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return layer.FormatValue(t, v)
	}
}

func columnType(t layer.Type) string {
	switch t {
	case layer.Integer, layer.Integer64, layer.Boolean:
		return "INTEGER"
	case layer.Real:
		return "REAL"
	case layer.Binary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func createTableSQL(l *sqlLayer) string {
	var cols []string
	for _, v := range l.fields {
		cols = append(cols, "    "+quote(v.Name)+" "+columnType(v.Type))
	}
	for _, v := range l.geoms {
		cols = append(cols, "    "+quote(v.Name)+" TEXT")
	}
	if len(cols) == 0 {
		// SQLite does not allow tables without columns
		cols = append(cols, "    fid INTEGER")
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)",
		quote(l.name), strings.Join(cols, ",\n"))
}

func insertSQL(l *sqlLayer) string {
	var cols []string
	for _, v := range l.fields {
		cols = append(cols, quote(v.Name))
	}
	for _, v := range l.geoms {
		cols = append(cols, quote(v.Name))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(l.name), strings.Join(cols, ", "), placeholders(len(cols)))
}
