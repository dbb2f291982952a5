// Package iowriter rebuilds XML documents from a SQLite file converted
// with metadata tables. Every row of a top-level layer becomes a feature
// member of a collection. Nested layers, repeated groups, links and
// junction layers are written back into their parents following the
// XPaths of the fields metadata.
package iowriter

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/schema"
	"github.com/gnames/gmlas/pkg/xsd"
	"github.com/tidwall/gjson"
	_ "modernc.org/sqlite"
)

const (
	// NamespaceGMLAS is the namespace of the default feature collection.
	NamespaceGMLAS = "http://gdal.org/ogr/gmlas"
	// NamespaceWFS2 is the namespace of WFS 2.0 feature collections.
	NamespaceWFS2 = "http://www.opengis.net/wfs/2.0"

	wfs2Schema = "http://schemas.opengis.net/wfs/2.0/wfs.xsd"
	pageSize   = 1000
	maxDepth   = 64
)

var (
	catRegular  = model.Regular.String()
	catNoLink   = model.PathToChildElementNoLink.String()
	catWithLink = model.PathToChildElementWithLink.String()
	catJunction = model.PathToChildElementWithJunctionTable.String()
	catGroup    = model.Group.String()
)

type row map[string]any

// Option changes settings of Writer.
type Option func(*Writer)

// OptLayers limits written features to the given top-level layers.
func OptLayers(names []string) Option {
	return func(w *Writer) {
		w.layers = names
	}
}

// OptTimestamp sets the timeStamp of WFS 2.0 collections.
func OptTimestamp(ts string) Option {
	return func(w *Writer) {
		w.timestamp = ts
	}
}

// Writer writes features of a converted SQLite file as XML.
type Writer struct {
	cfg       config.WriterConfig
	path      string
	db        *sql.DB
	md        *metadata
	layers    []string
	timestamp string

	// ns holds prefixes declared on the collection element.
	ns          map[string]string
	gmlPrefix   string
	xlinkPrefix string
	geomID      int

	// referenced keeps, per layer, primary keys of rows written inside
	// other features.
	referenced map[string]map[string]bool
}

// Open opens a converted SQLite file read-only and loads its metadata.
func Open(
	ctx context.Context,
	cfg config.WriterConfig,
	path string,
	opts ...Option,
) (*Writer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, OpenError(path, err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, OpenError(path, err)
	}
	db.SetMaxOpenConns(1)

	ok, err := hasTable(ctx, db, schema.LayerMetadata{}.TableName())
	if err != nil {
		db.Close()
		return nil, OpenError(path, err)
	}
	if !ok {
		db.Close()
		return nil, NoMetadataError(path)
	}

	md, err := loadMetadata(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	res := &Writer{
		cfg:  cfg,
		path: path,
		db:   db,
		md:   md,
	}
	for _, opt := range opts {
		opt(res)
	}
	res.declareNamespaces()
	return res, nil
}

// Close closes the SQLite file.
func (w *Writer) Close() error {
	return w.db.Close()
}

// Write writes all features as one XML document and returns the number
// of written feature members.
func (w *Writer) Write(ctx context.Context, out io.Writer) (int, error) {
	tops := w.topLayers()
	if err := w.collectReferenced(ctx); err != nil {
		return 0, err
	}

	var count int
	if w.cfg.Wrapping == "wfs2" {
		for _, l := range tops {
			n, err := w.countFeatures(ctx, l)
			if err != nil {
				return 0, err
			}
			count += n
		}
	}

	if _, err := io.WriteString(out, w.header(count)); err != nil {
		return 0, OutputError(err)
	}

	var written int
	for _, l := range tops {
		n, err := w.writeLayer(ctx, out, l)
		written += n
		if err != nil {
			return written, err
		}
	}

	if _, err := fmt.Fprintf(out, "</%s>\n", w.collectionTag()); err != nil {
		return written, OutputError(err)
	}
	slog.Info("XML document is written",
		"source", w.path,
		"layers", len(tops),
		"features", written,
	)
	return written, nil
}

func (w *Writer) collectionTag() string {
	if w.cfg.Wrapping == "wfs2" {
		return "wfs:FeatureCollection"
	}
	return "ogr_gmlas:FeatureCollection"
}

func (w *Writer) memberTag() string {
	if w.cfg.Wrapping == "wfs2" {
		return "wfs:member"
	}
	return "ogr_gmlas:featureMember"
}

// declareNamespaces collects prefixes of the documents and adds the ones
// the writer needs itself.
func (w *Writer) declareNamespaces() {
	w.ns = make(map[string]string, len(w.md.namespaces)+4)
	for k, v := range w.md.namespaces {
		w.ns[k] = v
	}

	bind := func(prefix, uri string) string {
		for k, v := range w.ns {
			if v == uri {
				return k
			}
		}
		p := prefix
		for i := 2; w.ns[p] != ""; i++ {
			p = prefix + strconv.Itoa(i)
		}
		w.ns[p] = uri
		return p
	}

	if w.cfg.Wrapping == "wfs2" {
		w.ns["wfs"] = NamespaceWFS2
	} else {
		w.ns["ogr_gmlas"] = NamespaceGMLAS
	}
	bind("xsi", xsd.NamespaceXSI)
	w.xlinkPrefix = bind("xlink", xsd.NamespaceXLink)

	for k, v := range w.md.namespaces {
		if xsd.IsGMLNamespace(v) {
			w.gmlPrefix = k
			if v == xsd.NamespaceGML32 {
				break
			}
		}
	}
	if w.gmlPrefix == "" {
		w.gmlPrefix = bind("gml", xsd.NamespaceGML32)
	}
}

func (w *Writer) header(count int) string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	if c := w.cfg.Comment; c != "" {
		// "--" is not allowed inside comments
		c = strings.ReplaceAll(c, "--", "- -")
		fmt.Fprintf(&sb, "<!-- %s -->\n", c)
	}

	tag := w.collectionTag()
	sb.WriteString("<" + tag)
	attr := func(k, v string) {
		sb.WriteString("\n    " + k + `="`)
		xml.EscapeText(&sb, []byte(v))
		sb.WriteString(`"`)
	}
	for _, k := range slices.Sorted(maps.Keys(w.ns)) {
		attr("xmlns:"+k, w.ns[k])
	}

	var locs []string
	for _, uri := range slices.Sorted(maps.Keys(w.md.schemas)) {
		locs = append(locs, uri+" "+w.md.schemas[uri])
	}
	if w.cfg.Wrapping == "wfs2" {
		locs = append(locs, NamespaceWFS2+" "+wfs2Schema)
	}
	if len(locs) > 0 {
		attr(w.prefixOf(xsd.NamespaceXSI)+":schemaLocation", strings.Join(locs, " "))
	}

	if w.cfg.Wrapping == "wfs2" {
		ts := w.timestamp
		if ts == "" {
			ts = time.Now().UTC().Format("2006-01-02T15:04:05Z")
		}
		attr("timeStamp", ts)
		attr("numberMatched", "unknown")
		attr("numberReturned", strconv.Itoa(count))
	}
	sb.WriteString(">\n")
	return sb.String()
}

func (w *Writer) prefixOf(uri string) string {
	for k, v := range w.ns {
		if v == uri {
			return k
		}
	}
	return ""
}

// topLayers returns top-level layers to write, in the order of the
// metadata.
func (w *Writer) topLayers() []*layerMeta {
	var res []*layerMeta
	for _, l := range w.md.layers {
		if l.category != schema.CategoryTopLevel {
			continue
		}
		if len(w.layers) > 0 && !slices.Contains(w.layers, l.name) {
			continue
		}
		res = append(res, l)
	}
	for _, v := range w.layers {
		if l, ok := w.md.byName[v]; !ok || l.category != schema.CategoryTopLevel {
			slog.Warn("Not a top-level layer, skipped", "layer", v)
		}
	}
	return res
}

// collectReferenced finds rows of top-level layers that are written
// inline through links or junction layers.
func (w *Writer) collectReferenced(ctx context.Context) error {
	w.referenced = make(map[string]map[string]bool)
	add := func(layer string, ids []string) {
		if len(ids) == 0 {
			return
		}
		m, ok := w.referenced[layer]
		if !ok {
			m = make(map[string]bool)
			w.referenced[layer] = m
		}
		for _, v := range ids {
			m[v] = true
		}
	}

	for _, l := range w.md.layers {
		for i := range l.fields {
			f := &l.fields[i]
			target, ok := w.md.byName[f.related]
			if !ok || target.category != schema.CategoryTopLevel {
				continue
			}
			switch f.category {
			case catWithLink:
				ids, err := w.column(ctx, l.name, fmt.Sprintf(
					"SELECT %s FROM %s WHERE %s IS NOT NULL",
					quote(f.name), quote(l.name), quote(f.name)))
				if err != nil {
					return err
				}
				add(target.name, ids)
			case catJunction:
				if _, ok := w.md.byName[f.junction]; !ok {
					continue
				}
				ids, err := w.column(ctx, f.junction, fmt.Sprintf(
					"SELECT child_pkid FROM %s", quote(f.junction)))
				if err != nil {
					return err
				}
				add(target.name, ids)
			}
		}
	}
	return nil
}

func (w *Writer) countFeatures(ctx context.Context, l *layerMeta) (int, error) {
	ref := w.referenced[l.name]
	if len(ref) == 0 || l.pkid == "" {
		var n int
		q := "SELECT count(*) FROM " + quote(l.name)
		if err := w.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return 0, QueryError(l.name, err)
		}
		return n, nil
	}

	ids, err := w.column(ctx, l.name,
		fmt.Sprintf("SELECT %s FROM %s", quote(l.pkid), quote(l.name)))
	if err != nil {
		return 0, err
	}
	var n int
	for _, v := range ids {
		if !ref[v] {
			n++
		}
	}
	return n, nil
}

// writeLayer writes rows of a top-level layer page by page.
func (w *Writer) writeLayer(
	ctx context.Context,
	out io.Writer,
	l *layerMeta,
) (int, error) {
	q := fmt.Sprintf(`SELECT rowid AS "_rowid", * FROM %s
WHERE rowid > ? ORDER BY rowid LIMIT %d`, quote(l.name), pageSize)
	ref := w.referenced[l.name]

	var n int
	var last int64
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		rows, err := w.query(ctx, l.name, q, last)
		if err != nil {
			return n, err
		}
		for _, r := range rows {
			last = toInt64(r["_rowid"])
			if l.pkid != "" && ref[text(r[l.pkid])] {
				continue
			}
			if err = w.writeFeature(ctx, out, l, r); err != nil {
				return n, err
			}
			n++
		}
		if len(rows) < pageSize {
			return n, nil
		}
	}
}

func (w *Writer) writeFeature(
	ctx context.Context,
	out io.Writer,
	l *layerMeta,
	r row,
) error {
	doc := etree.NewDocument()
	root := doc.CreateElement(w.collectionTag())
	member := root.CreateElement(w.memberTag())
	e := member.CreateElement(lastStep(l.xpath))
	if err := w.writeRow(ctx, e, l.xpath, l, r, 0); err != nil {
		return err
	}

	if w.cfg.IndentSize > 0 {
		doc.Indent(w.cfg.IndentSize)
	} else {
		doc.Indent(etree.NoIndent)
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", w.cfg.IndentSize))
	member.WriteTo(&sb, &doc.WriteSettings)
	sb.WriteString("\n")
	if _, err := io.WriteString(out, sb.String()); err != nil {
		return OutputError(err)
	}
	return nil
}

// writeRow writes fields of a row into element e. The base is the XPath
// of e, field XPaths are resolved relative to it.
func (w *Writer) writeRow(
	ctx context.Context,
	e *etree.Element,
	base string,
	l *layerMeta,
	r row,
	depth int,
) error {
	if depth > maxDepth {
		slog.Warn("Nesting is too deep, content is skipped",
			"layer", l.name, "depth", depth)
		return nil
	}

	for i := range l.fields {
		f := &l.fields[i]
		if strings.HasPrefix(f.xpath, "{") {
			continue
		}
		steps, ok := relSteps(base, f.xpath)
		if !ok {
			slog.Debug("Field is outside of its layer element",
				"layer", l.name, "field", f.name, "xpath", f.xpath)
			continue
		}

		var err error
		switch f.category {
		case catRegular:
			if srs, ok := l.geoms[f.name]; ok {
				w.writeGeometry(e, steps, r[f.name], srs)
				continue
			}
			w.writeValue(e, steps, f, r[f.name])
		case catWithLink:
			err = w.writeLink(ctx, e, steps, f, r, depth)
		case catNoLink:
			err = w.writeChildren(ctx, e, steps, f, l, r, depth)
		case catGroup:
			err = w.writeGroup(ctx, e, base, f, l, r, depth)
		case catJunction:
			err = w.writeJunction(ctx, e, steps, f, l, r, depth)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// writeValue writes a value of a regular field as text, attribute or
// XML fragment.
func (w *Writer) writeValue(
	e *etree.Element,
	steps []string,
	f *fieldMeta,
	v any,
) {
	if v == nil {
		return
	}
	vals := values(f, v)
	if len(vals) == 0 {
		return
	}
	if len(steps) == 0 {
		if f.typ == "anyType" {
			appendXML(e, vals[0])
			return
		}
		e.SetText(strings.Join(vals, " "))
		return
	}

	parent := ensurePath(e, steps[:len(steps)-1])
	last := steps[len(steps)-1]
	switch {
	case last == "@*":
		res := gjson.Parse(vals[0])
		res.ForEach(func(k, v gjson.Result) bool {
			parent.CreateAttr(k.String(), v.String())
			return true
		})
	case strings.HasPrefix(last, "@"):
		name := last[1:]
		if w.isNil(name) {
			if vals[0] == "true" {
				parent.CreateAttr(name, "true")
			}
			return
		}
		parent.CreateAttr(name, strings.Join(vals, " "))
	case last == "*":
		appendXML(parent, vals[0])
	case f.typ == "anyType":
		appendXML(parent.CreateElement(last), vals[0])
	case f.array():
		for _, s := range vals {
			parent.CreateElement(last).SetText(s)
		}
	default:
		parent.CreateElement(last).SetText(strings.Join(vals, " "))
	}
}

// isNil tells if an attribute name is xsi:nil under any prefix.
func (w *Writer) isNil(name string) bool {
	prefix, local, ok := strings.Cut(name, ":")
	return ok && local == "nil" && w.ns[prefix] == xsd.NamespaceXSI
}

// writeLink writes the row targeted by a link column inside the element
// of the field.
func (w *Writer) writeLink(
	ctx context.Context,
	e *etree.Element,
	steps []string,
	f *fieldMeta,
	r row,
	depth int,
) error {
	id := text(r[f.name])
	if id == "" || len(steps) == 0 {
		return nil
	}
	parent := ensurePath(e, steps[:len(steps)-1])
	ce := parent.CreateElement(steps[len(steps)-1])

	target, ok := w.md.byName[f.related]
	if !ok || target.pkid == "" {
		ce.CreateAttr(w.xlinkPrefix+":href", "#"+id)
		return nil
	}
	rows, err := w.query(ctx, target.name, fmt.Sprintf(
		"SELECT * FROM %s WHERE %s = ? LIMIT 1",
		quote(target.name), quote(target.pkid)), id)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		ce.CreateAttr(w.xlinkPrefix+":href", "#"+id)
		return nil
	}
	child := ce.CreateElement(lastStep(target.xpath))
	return w.writeRow(ctx, child, target.xpath, target, rows[0], depth+1)
}

// writeChildren writes rows of a nested layer, one element per row.
func (w *Writer) writeChildren(
	ctx context.Context,
	e *etree.Element,
	steps []string,
	f *fieldMeta,
	l *layerMeta,
	r row,
	depth int,
) error {
	child, rows, err := w.childRows(ctx, f, l, r)
	if err != nil || child == nil || len(steps) == 0 {
		return err
	}
	parent := ensurePath(e, steps[:len(steps)-1])
	last := steps[len(steps)-1]
	for _, cr := range rows {
		ce := parent
		if last != "*" {
			ce = parent.CreateElement(last)
		}
		if err = w.writeRow(ctx, ce, child.xpath, child, cr, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// writeGroup writes occurrences of a repeated group into the element of
// the parent row.
func (w *Writer) writeGroup(
	ctx context.Context,
	e *etree.Element,
	base string,
	f *fieldMeta,
	l *layerMeta,
	r row,
	depth int,
) error {
	child, rows, err := w.childRows(ctx, f, l, r)
	if err != nil || child == nil {
		return err
	}
	for _, cr := range rows {
		if err = w.writeRow(ctx, e, base, child, cr, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) childRows(
	ctx context.Context,
	f *fieldMeta,
	l *layerMeta,
	r row,
) (*layerMeta, []row, error) {
	child, ok := w.md.byName[f.related]
	if !ok || child.parentPKID == "" || l.pkid == "" {
		return nil, nil, nil
	}
	id := r[l.pkid]
	if id == nil {
		return nil, nil, nil
	}
	rows, err := w.query(ctx, child.name, fmt.Sprintf(
		"SELECT * FROM %s WHERE %s = ? ORDER BY rowid",
		quote(child.name), quote(child.parentPKID)), id)
	return child, rows, err
}

// writeJunction writes rows linked through a junction layer in the order
// of their occurrence.
func (w *Writer) writeJunction(
	ctx context.Context,
	e *etree.Element,
	steps []string,
	f *fieldMeta,
	l *layerMeta,
	r row,
	depth int,
) error {
	target, ok := w.md.byName[f.related]
	_, jok := w.md.byName[f.junction]
	if !ok || !jok || l.pkid == "" || target.pkid == "" || len(steps) == 0 {
		return nil
	}
	id := text(r[l.pkid])
	if id == "" {
		return nil
	}
	ids, err := w.column(ctx, f.junction, fmt.Sprintf(
		"SELECT child_pkid FROM %s WHERE parent_pkid = ? ORDER BY occurrence",
		quote(f.junction)), id)
	if err != nil {
		return err
	}

	parent := ensurePath(e, steps[:len(steps)-1])
	last := steps[len(steps)-1]
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1",
		quote(target.name), quote(target.pkid))
	for _, cid := range ids {
		rows, err := w.query(ctx, target.name, q, cid)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			slog.Debug("Junction points to a missing row",
				"junction", f.junction, "child", cid)
			continue
		}
		ce := parent.CreateElement(last)
		if err = w.writeRow(ctx, ce, target.xpath, target, rows[0], depth+1); err != nil {
			return err
		}
	}
	return nil
}

// query reads all rows of a statement. Rows are read to the end before
// the caller runs other statements on the single connection.
func (w *Writer) query(
	ctx context.Context,
	table, q string,
	args ...any,
) ([]row, error) {
	rows, err := w.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, QueryError(table, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, QueryError(table, err)
	}

	var res []row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err = rows.Scan(ptrs...); err != nil {
			rows.Close()
			return nil, QueryError(table, err)
		}
		r := make(row, len(cols))
		for i, c := range cols {
			r[c] = vals[i]
		}
		res = append(res, r)
	}
	if err = closeRows(rows); err != nil {
		return nil, QueryError(table, err)
	}
	return res, nil
}

// column reads the single column of a statement as text.
func (w *Writer) column(
	ctx context.Context,
	table, q string,
	args ...any,
) ([]string, error) {
	rows, err := w.query(ctx, table, q, args...)
	if err != nil {
		return nil, err
	}
	res := make([]string, 0, len(rows))
	for _, r := range rows {
		for _, v := range r {
			res = append(res, text(v))
		}
	}
	return res, nil
}

// values formats a stored value as XML text. Lists give one string per
// item.
func values(f *fieldMeta, v any) []string {
	if f.isList {
		s := text(v)
		if !gjson.Valid(s) {
			return []string{s}
		}
		var res []string
		for _, item := range gjson.Parse(s).Array() {
			switch item.Type {
			case gjson.String:
				res = append(res, item.String())
			case gjson.Null:
			default:
				res = append(res, item.Raw)
			}
		}
		return res
	}

	switch val := v.(type) {
	case int64:
		if f.typ == "boolean" {
			return []string{strconv.FormatBool(val != 0)}
		}
		return []string{strconv.FormatInt(val, 10)}
	case float64:
		return []string{strconv.FormatFloat(val, 'f', -1, 64)}
	case bool:
		return []string{strconv.FormatBool(val)}
	case []byte:
		if f.typ == "hexBinary" {
			return []string{strings.ToUpper(fmt.Sprintf("%x", val))}
		}
		return []string{base64.StdEncoding.EncodeToString(val)}
	default:
		return []string{text(v)}
	}
}

// appendXML parses an XML fragment and appends its nodes to e. A
// fragment that does not parse is kept as text.
func appendXML(e *etree.Element, s string) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString("<fragment>" + s + "</fragment>"); err != nil {
		e.SetText(s)
		return
	}
	for _, v := range slices.Clone(doc.Root().Child) {
		e.AddChild(v)
	}
}

// ensurePath walks steps from e, reusing the last child with the same
// tag.
func ensurePath(e *etree.Element, steps []string) *etree.Element {
	for _, s := range steps {
		var next *etree.Element
		ch := e.ChildElements()
		for i := len(ch) - 1; i >= 0; i-- {
			if ch[i].FullTag() == s {
				next = ch[i]
				break
			}
		}
		if next == nil {
			next = e.CreateElement(s)
		}
		e = next
	}
	return e
}

// relSteps splits the part of xpath below base.
func relSteps(base, xpath string) ([]string, bool) {
	if xpath == base {
		return nil, true
	}
	rest, ok := strings.CutPrefix(xpath, base+"/")
	if !ok || rest == "" {
		return nil, false
	}
	return strings.Split(rest, "/"), true
}

func lastStep(xpath string) string {
	if i := strings.LastIndexByte(xpath, '/'); i >= 0 {
		return xpath[i+1:]
	}
	return xpath
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(v any) int64 {
	if n, ok := v.(int64); ok {
		return n
	}
	n, _ := strconv.ParseInt(text(v), 10, 64)
	return n
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

