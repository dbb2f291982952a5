package iowriter

import (
	"context"
	"database/sql"
	"strings"

	"github.com/gnames/gmlas/internal/iosqlite"
	"github.com/gnames/gmlas/pkg/schema"
)

type fieldMeta struct {
	name      string
	xpath     string
	typ       string
	isList    bool
	maxOccurs int
	category  string
	related   string
	junction  string
}

// array tells if the field keeps repeated elements as a JSON array.
func (f *fieldMeta) array() bool {
	return f.isList && f.maxOccurs != 1
}

type layerMeta struct {
	name       string
	xpath      string
	category   string
	pkid       string
	parentPKID string
	fields     []fieldMeta
	// geoms maps geometry columns to their SRS name.
	geoms map[string]string
}

type metadata struct {
	layers []*layerMeta
	byName map[string]*layerMeta
	// namespaces maps prefixes to URIs.
	namespaces map[string]string
	// schemas maps namespace URIs to schema locations.
	schemas map[string]string
}

func hasTable(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	q := "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	if err := db.QueryRowContext(ctx, q, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// loadMetadata reads the metadata tables. Fields keep their insertion
// order, which is the order of elements in the documents.
func loadMetadata(ctx context.Context, db *sql.DB) (*metadata, error) {
	res := &metadata{
		byName:     make(map[string]*layerMeta),
		namespaces: make(map[string]string),
		schemas:    make(map[string]string),
	}

	lt := schema.LayerMetadata{}.TableName()
	rows, err := db.QueryContext(ctx, `SELECT layer_name, layer_xpath,
  layer_category, layer_pkid_name, layer_parent_pkid_name
FROM `+lt+` ORDER BY rowid`)
	if err != nil {
		return nil, QueryError(lt, err)
	}
	for rows.Next() {
		var xpath, pkid, parent sql.NullString
		l := &layerMeta{geoms: make(map[string]string)}
		err = rows.Scan(&l.name, &xpath, &l.category, &pkid, &parent)
		if err != nil {
			rows.Close()
			return nil, QueryError(lt, err)
		}
		l.xpath, l.pkid, l.parentPKID = xpath.String, pkid.String, parent.String
		res.layers = append(res.layers, l)
		res.byName[l.name] = l
	}
	if err = closeRows(rows); err != nil {
		return nil, QueryError(lt, err)
	}

	ft := schema.FieldMetadata{}.TableName()
	rows, err = db.QueryContext(ctx, `SELECT layer_name, field_name,
  field_xpath, field_type, field_is_list, field_max_occurs, field_category,
  field_related_layer, field_junction_layer
FROM `+ft+` ORDER BY rowid`)
	if err != nil {
		return nil, QueryError(ft, err)
	}
	for rows.Next() {
		var lname string
		var name, xpath, typ, cat, related, junction sql.NullString
		var isList sql.NullBool
		var maxOccurs sql.NullInt64
		err = rows.Scan(&lname, &name, &xpath, &typ, &isList, &maxOccurs,
			&cat, &related, &junction)
		if err != nil {
			rows.Close()
			return nil, QueryError(ft, err)
		}
		l, ok := res.byName[lname]
		if !ok {
			continue
		}
		l.fields = append(l.fields, fieldMeta{
			name:      name.String,
			xpath:     xpath.String,
			typ:       typ.String,
			isList:    isList.Bool,
			maxOccurs: int(maxOccurs.Int64),
			category:  cat.String,
			related:   related.String,
			junction:  junction.String,
		})
	}
	if err = closeRows(rows); err != nil {
		return nil, QueryError(ft, err)
	}

	if err = res.loadGeometryColumns(ctx, db); err != nil {
		return nil, err
	}
	if err = res.loadOther(ctx, db); err != nil {
		return nil, err
	}
	return res, nil
}

func (m *metadata) loadGeometryColumns(ctx context.Context, db *sql.DB) error {
	gt := iosqlite.GeometryColumnsTable
	ok, err := hasTable(ctx, db, gt)
	if err != nil {
		return QueryError(gt, err)
	}
	if !ok {
		return nil
	}

	rows, err := db.QueryContext(ctx,
		"SELECT f_table_name, f_geometry_column, srs_name FROM "+gt)
	if err != nil {
		return QueryError(gt, err)
	}
	for rows.Next() {
		var table, col string
		var srs sql.NullString
		if err = rows.Scan(&table, &col, &srs); err != nil {
			rows.Close()
			return QueryError(gt, err)
		}
		if l, ok := m.byName[table]; ok {
			l.geoms[col] = srs.String
		}
	}
	if err = closeRows(rows); err != nil {
		return QueryError(gt, err)
	}
	return nil
}

func (m *metadata) loadOther(ctx context.Context, db *sql.DB) error {
	ot := schema.OtherMetadata{}.TableName()
	rows, err := db.QueryContext(ctx, `SELECT "key", "value" FROM `+ot)
	if err != nil {
		return QueryError(ot, err)
	}
	for rows.Next() {
		var key string
		var val sql.NullString
		if err = rows.Scan(&key, &val); err != nil {
			rows.Close()
			return QueryError(ot, err)
		}
		if prefix, ok := strings.CutPrefix(key, "namespace:"); ok {
			if prefix != "" && prefix != "xml" && prefix != "xmlns" {
				m.namespaces[prefix] = val.String
			}
			continue
		}
		if uri, ok := strings.CutPrefix(key, "schema:"); ok && uri != "" && val.String != "" {
			m.schemas[uri] = val.String
		}
	}
	if err = closeRows(rows); err != nil {
		return QueryError(ot, err)
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}
