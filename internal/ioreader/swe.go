package ioreader

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/model"
)

// pendingField is a column discovered in the first pass. It goes right
// after the column holding the content it was found in.
type pendingField struct {
	layer      *layer.Layer
	afterXPath string
	def        layer.FieldDef
}

// pending collects layer set changes found during the first pass. They
// are applied together once the pass is over.
type pending struct {
	fields []pendingField
	layers []*layer.Layer
	seen   map[string]bool
}

func newPending() *pending {
	return &pending{seen: make(map[string]bool)}
}

func (p *pending) addField(l *layer.Layer, afterXPath string, def layer.FieldDef) {
	key := l.Name + "\x00" + def.XPath
	if p.seen[key] || l.FieldIndex(def.XPath) >= 0 {
		return
	}
	p.seen[key] = true
	p.fields = append(p.fields, pendingField{layer: l, afterXPath: afterXPath, def: def})
}

func (p *pending) addLayer(l *layer.Layer) {
	key := "\x00" + l.Class.XPath
	if p.seen[key] {
		return
	}
	p.seen[key] = true
	p.layers = append(p.layers, l)
}

// processSWE inspects content captured for field idx. A swe:DataRecord
// gives one column per record field, a swe:DataArray gives a child layer
// with one feature per block of values.
func (r *Reader) processSWE(f *layer.Feature, idx int) {
	root := firstElement(r.blobRoot)
	if root == nil || root.Space != r.swePrefix {
		return
	}
	switch root.Tag {
	case "DataRecord":
		if r.cfg.Reader.SWEProcessDataRecord {
			r.sweDataRecord(f, idx, root)
		}
	case "DataArray":
		if r.cfg.Reader.SWEProcessDataArray {
			r.sweDataArray(f, idx, root)
		}
	}
}

// sweComponent is a field of a swe:DataRecord.
type sweComponent struct {
	name  string
	typ   layer.Type
	value string
}

func (r *Reader) sweComponents(record *etree.Element) []sweComponent {
	var res []sweComponent
	for _, fld := range record.ChildElements() {
		if fld.Space != r.swePrefix || fld.Tag != "field" {
			continue
		}
		name := fld.SelectAttrValue("name", "")
		comp := firstElement(fld)
		if name == "" || comp == nil {
			continue
		}
		c := sweComponent{name: name, typ: sweType(comp.Tag)}
		if v := comp.SelectElement("value"); v != nil {
			c.value = strings.TrimSpace(v.Text())
		}
		res = append(res, c)
	}
	return res
}

func sweType(tag string) layer.Type {
	switch tag {
	case "Quantity":
		return layer.Real
	case "Count":
		return layer.Integer
	case "Boolean":
		return layer.Boolean
	case "Time":
		return layer.DateTime
	default:
		return layer.String
	}
}

func (r *Reader) sweDataRecord(f *layer.Feature, idx int, record *etree.Element) {
	l := f.Layer
	blobXPath := l.Fields[idx].XPath
	for _, c := range r.sweComponents(record) {
		xpath := model.SWEFieldXPath(blobXPath, c.name)
		if r.firstPass {
			r.pending.addField(l, blobXPath, layer.FieldDef{
				Name:     strings.ToLower(c.name) + "_value",
				Type:     c.typ,
				Nullable: true,
				XPath:    xpath,
			})
			continue
		}
		if i := l.FieldIndex(xpath); i >= 0 {
			r.setField(f, i, c.value)
		}
	}
}

func (r *Reader) sweDataArray(f *layer.Feature, idx int, array *etree.Element) {
	l := f.Layer
	blobXPath := l.Fields[idx].XPath
	var record *etree.Element
	if et := array.SelectElement("elementType"); et != nil {
		record = et.SelectElement("DataRecord")
	}
	if record == nil {
		return
	}
	comps := r.sweComponents(record)
	if len(comps) == 0 {
		return
	}

	xpath := model.SWEArrayXPath(blobXPath)
	if r.firstPass {
		if r.set.LayerByXPath(xpath) != nil {
			return
		}
		fields := make([]layer.FieldDef, len(comps))
		for i, c := range comps {
			fields[i] = layer.FieldDef{
				Name:     c.name,
				Type:     c.typ,
				Nullable: true,
				XPath:    model.SWEFieldXPath(xpath, c.name),
			}
		}
		name := l.Name + "_" + strings.ToLower(l.Fields[idx].Name)
		r.pending.addLayer(layer.NewChildLayer(name, xpath, l, fields))
		return
	}

	child := r.set.LayerByXPath(xpath)
	if child == nil {
		return
	}
	tokenSep, blockSep := ",", " "
	if enc := array.SelectElement("encoding"); enc != nil {
		if te := enc.SelectElement("TextEncoding"); te != nil {
			tokenSep = te.SelectAttrValue("tokenSeparator", tokenSep)
			blockSep = te.SelectAttrValue("blockSeparator", blockSep)
		}
	}
	var values string
	if v := array.SelectElement("values"); v != nil {
		values = v.Text()
	}
	parentID := f.Text(l.IDField())

	for _, block := range strings.Split(values, blockSep) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		r.fids[child]++
		n := r.fids[child]
		cf := child.NewFeature(n)
		cf.SetString(child.IDField(), fmt.Sprintf("%s_%s_%d", parentID, child.Name, n))
		cf.SetString(child.ParentIDField(), parentID)
		for i, tok := range strings.Split(block, tokenSep) {
			if i >= len(comps) {
				break
			}
			fi := child.FieldIndex(model.SWEFieldXPath(xpath, comps[i].name))
			if fi >= 0 {
				cf.SetString(fi, tok)
			}
		}
		r.pushReady(cf)
	}
}
