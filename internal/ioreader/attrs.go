package ioreader

import (
	"encoding/xml"
	"log/slog"
	"strings"
	"time"

	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/xsd"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// processAttributes matches attributes of the current element with
// fields of the current layer.
func (r *Reader) processAttributes(attrs []xml.Attr) {
	f := r.cur.feature
	l := r.cur.layer
	if f == nil || l == nil {
		return
	}

	wildIdx := l.FieldIndex(r.curSubXPath + "/@*")
	var wildcard string
	var isNil bool

	for _, a := range attrs {
		name := r.attrName(a.Name)
		attrXPath := r.curSubXPath + "/@" + name

		if idx := l.FieldIndex(attrXPath); idx >= 0 {
			r.setField(f, idx, a.Value)
			if a.Name.Space == xsd.NamespaceXLink && a.Name.Local == "href" &&
				a.Value != "" {
				r.processXLinkHref(attrXPath, a.Value)
			}
			if isXSINil(a) {
				isNil = true
			}
			continue
		}

		if isXSINil(a) {
			isNil = true
			continue
		}
		if r.skipAttr(a) {
			continue
		}

		if wildIdx >= 0 {
			wildcard = r.addToJSON(wildcard, name, a.Value)
			continue
		}
		if r.cfg.Reader.Validate {
			if ci := l.ClassFieldIndex(attrXPath); ci >= 0 &&
				l.Class.Fields[ci].FixedValue != "" {
				continue
			}
		}
		if matched, ok := r.ignored.MatchesRefXPath(attrXPath); ok {
			msg := "Attribute found in document but ignored according to configuration"
			if r.ignoredWarn[matched] {
				r.warn(msg, "xpath", attrXPath)
			} else {
				slog.Debug(msg, "xpath", attrXPath)
			}
			continue
		}
		r.unexpected("Unexpected attribute found", "xpath", attrXPath)
	}

	if wildcard != "" {
		r.setWildcard(f, wildIdx, wildcard)
	}
	if isNil {
		r.setNil()
	}

	if r.firstPass {
		return
	}
	for i := range l.Fields {
		cf := l.ClassField(i)
		if cf == nil || !strings.Contains(cf.XPath, "@") || f.IsSet(i) {
			continue
		}
		val := cf.FixedValue
		if val == "" {
			val = cf.DefaultValue
		}
		if val != "" {
			r.setField(f, i, val)
		}
	}
}

func (r *Reader) skipAttr(a xml.Attr) bool {
	switch {
	case isNamespaceDecl(a.Name):
		return true
	case a.Name.Space == xsd.NamespaceXSI &&
		(a.Name.Local == "schemaLocation" ||
			a.Name.Local == "noNamespaceSchemaLocation"):
		return true
	case r.curGeomField >= 0 &&
		((a.Name.Space == xsd.NamespaceXLink && a.Name.Local == "type") ||
			(a.Name.Space == "" && a.Name.Local == "owns")):
		return true
	}
	return false
}

// setNil applies xsi:nil="true" to the field of the current element, or
// when the element has no column, to the column of its xlink:href.
func (r *Reader) setNil() {
	f := r.cur.feature
	l := r.cur.layer
	if idx := l.FieldIndex(r.curSubXPath); idx >= 0 {
		f.SetNull(idx)
		return
	}
	href := r.attrName(xml.Name{Space: xsd.NamespaceXLink, Local: "href"})
	if idx := l.FieldIndex(r.curSubXPath + "/@" + href); idx >= 0 {
		f.SetNull(idx)
	}
}

func isXSINil(a xml.Attr) bool {
	return a.Name.Space == xsd.NamespaceXSI && a.Name.Local == "nil" &&
		(a.Value == "true" || a.Value == "1")
}

// attrName returns the prefixed name of an attribute as it appears in
// XPaths.
func (r *Reader) attrName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	prefix := r.uriToPrefix[n.Space]
	if prefix == "" {
		return n.Local
	}
	return prefix + ":" + n.Local
}

// addToJSON adds a key to the JSON object holding attributes matched by
// an attribute wildcard.
func (r *Reader) addToJSON(obj, key, val string) string {
	if obj == "" {
		obj = "{}"
	}
	res, err := sjson.Set(obj, escapeJSONKey(key), val)
	if err != nil {
		slog.Debug("Cannot store attribute", "key", key, "error", err)
		return obj
	}
	return res
}

// setWildcard stores a JSON object of attributes, merging it with
// attributes already stored for the field.
func (r *Reader) setWildcard(f *layer.Feature, idx int, obj string) {
	if prev := f.Text(idx); prev != "" && gjson.Valid(prev) {
		merged := prev
		gjson.Parse(obj).ForEach(func(k, v gjson.Result) bool {
			merged = r.addToJSON(merged, k.String(), v.String())
			return true
		})
		obj = merged
	}
	r.setField(f, idx, obj)
}

func escapeJSONKey(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}

// setField assigns a textual value. During the first pass only the fact
// that the field is set matters, so values that may fail conversion are
// replaced with placeholders.
func (r *Reader) setField(f *layer.Feature, idx int, val string) {
	if f == nil || idx < 0 || idx >= f.Len() {
		return
	}
	if r.firstPass && val != "" {
		switch f.Layer.Fields[idx].Type {
		case layer.Date, layer.Time, layer.DateTime:
			f.Set(idx, time.Unix(0, 0))
			return
		case layer.Binary:
			f.Set(idx, []byte("X"))
			return
		}
	}
	f.SetString(idx, val)
}
