package ioreader

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/xsd"
)

// frame is the reading context of a feature being built. Frames are
// saved on a stack when the reader descends into a nested layer.
type frame struct {
	// level of the element that opened the frame, -1 for a saved group
	// context.
	level   int
	feature *layer.Feature
	layer   *layer.Layer

	groupLayer     *layer.Layer
	groupLevel     int
	lastGroupField int

	// counters of junction occurrences per junction layer.
	counters map[*layer.Layer]int

	// subXPath to restore when the frame is popped. It is set when the
	// reader jumps into a top-level layer through a link or a junction.
	subXPath string
}

func newFrame() frame {
	return frame{
		level:          -1,
		groupLevel:     -1,
		lastGroupField: -1,
		counters:       make(map[*layer.Layer]int),
	}
}

func (f frame) clone() frame {
	f.counters = maps.Clone(f.counters)
	if f.counters == nil {
		f.counters = make(map[*layer.Layer]int)
	}
	return f
}

func (r *Reader) push(f frame) {
	r.stack = append(r.stack, f)
}

func (r *Reader) pop() {
	r.stack = r.stack[:len(r.stack)-1]
}

func (r *Reader) top() *frame {
	return &r.stack[len(r.stack)-1]
}

func (r *Reader) startElement(t xml.StartElement) {
	local := t.Name.Local
	xpath := r.qualified(t.Name)

	r.xpathLens = append(r.xpathLens, len(xpath))
	if r.curXPath != "" {
		r.curXPath += "/"
	}
	r.curXPath += xpath
	if r.curSubXPath != "" {
		r.curSubXPath += "/" + xpath
	}

	if r.blob {
		r.blobStart(xpath, t.Attr)
		r.level++
		return
	}

	if r.level == r.maxLevel {
		r.err = TooDeepError(r.curXPath, r.maxLevel)
		return
	}

	for _, l := range r.set.Layers {
		if r.matchLayer(l, xpath) {
			r.enterLayer(l, xpath, local)
			break
		}
	}

	if r.cur.layer == nil {
		r.curField, r.curGeomField = -1, -1
		r.level++
		return
	}

	l := r.cur.layer
	attrsDone := false
	idx := l.FieldIndex(r.curSubXPath)
	geomIdx := l.GeomFieldIndex(r.curSubXPath)
	if idx < 0 && geomIdx < 0 {
		idx = r.wildcardField(l)
	}

	switch {
	case idx >= 0 || geomIdx >= 0:
		var cf *model.Field
		if idx >= 0 {
			cf = l.ClassField(idx)
		} else {
			cf = l.ClassGeomField(geomIdx)
		}

		newFeature := false
		if idx >= 0 && idx < r.curField {
			newFeature = true
		} else if idx >= 0 && idx == r.curField &&
			!l.Fields[idx].Type.IsList() &&
			!(geomIdx >= 0 && cf != nil && cf.MaxOccurs > 1) {
			newFeature = true
		}
		if newFeature && !l.Class.IsRepeatedSequence {
			newFeature = false
			r.warn("Unexpected element", "xpath", r.curSubXPath)
		}
		if newFeature {
			r.pushReady(r.cur.feature)
			saved := *r.top()
			r.pop()
			r.createNewFeature(local)
			saved.feature = r.cur.feature
			r.push(saved)
			r.cur.counters = make(map[*layer.Layer]int)
		}

		if r.curField != idx {
			r.textList = nil
			r.textListSize = 0
		}
		r.curField = idx
		r.curGeomField = geomIdx
		r.curFieldLevel = r.level + 1
		r.text = r.text[:0]
		r.blob, r.blobUpper = false, false

		if cf != nil {
			r.blob = cf.Type == model.FieldTypeAnyType || geomIdx >= 0
			r.blobUpper = r.blob && cf.IncludeThisEltInBlob
			if r.blob {
				r.resetBlob()
			}
			if r.blobUpper {
				r.blobStart(xpath, t.Attr)
				r.level++
				return
			}
			if cf.Category == model.PathToChildElementWithLink {
				attrsDone = r.enterLinked(cf, idx, local, t.Attr)
			}
		}

	case len(r.stack) > 0 && r.level > r.top().level:
		folded := r.enterJunction(local, t.Attr)
		attrsDone = folded
		r.curField, r.curGeomField = -1, -1
		if !folded && r.silentLevel < 0 && !r.isNilOnly(l, t.Attr) &&
			!r.isKnownXPath(l) {
			r.reportElement()
		}

	default:
		r.curField, r.curGeomField = -1, -1
	}

	if !attrsDone {
		r.processAttributes(t.Attr)
	}
	r.level++
}

// matchLayer tells if the element entered at xpath starts or continues a
// feature of l.
func (r *Reader) matchLayer(l *layer.Layer, xpath string) bool {
	lxpath := l.MatchXPath()
	isGroup := l.Class.IsGroup

	if isGroup && l.FieldIndex(r.curSubXPath) != -1 {
		return true
	}
	if l.Class.IsRepeatedSequence && r.cur.layer != nil && r.cur.layer != l &&
		r.cur.layer.Class.XPath == lxpath &&
		l.FieldIndex(r.curSubXPath) >= 0 {
		return true
	}
	if !isGroup {
		if r.curSubXPath == "" && lxpath == xpath {
			return true
		}
		if r.curSubXPath != "" && lxpath == r.curSubXPath {
			return true
		}
		// layer of repeated xs:any content
		if r.curSubXPath != "" && r.cur.layer != l &&
			strings.HasSuffix(lxpath, "/*") &&
			parentXPath(r.curSubXPath)+"/*" == lxpath &&
			r.cur.layer != nil && !r.isKnownXPath(r.cur.layer) {
			return true
		}
	}
	return r.cur.groupLayer != nil && l.FieldIndex(r.curSubXPath) >= 0
}

func (r *Reader) enterLayer(l *layer.Layer, xpath, local string) {
	if l.Parent != nil && l.Parent.Class.IsRepeatedSequence &&
		r.cur.groupLayer != l.Parent {
		// The document jumps directly into a nested class of a group:
		// simulate the element of the group.
		r.cur.layer = l.Parent
		r.cur.groupLayer = l.Parent
		r.cur.level = r.level
		r.cur.lastGroupField = -1
		r.createNewFeature(l.Parent.Name)
	}

	pushState := true
	if l.Class.IsGroup && l.FieldIndex(r.curSubXPath) != -1 {
		idx := l.FieldIndex(r.curSubXPath)
		newFeature := false
		switch {
		case r.cur.groupLayer == nil:
			r.cur.feature = nil
		case r.cur.groupLevel == r.level && r.cur.groupLayer != l:
			newFeature = true
		case r.cur.groupLevel == r.level && r.cur.groupLayer == l &&
			idx == r.cur.lastGroupField && !l.Fields[idx].Type.IsList():
			newFeature = true
		case r.cur.groupLevel == r.level && idx < r.cur.lastGroupField:
			newFeature = true
		case r.cur.groupLevel == r.level+1 && r.cur.groupLayer == l:
			newFeature = true
		}
		if newFeature {
			r.pushReady(r.cur.feature)
			r.cur.feature = nil
			r.curField = -1
		}
		r.cur.layer = l
		r.cur.groupLayer = l
		r.cur.groupLevel = r.level
		r.cur.lastGroupField = idx
	} else if r.cur.groupLevel == r.level && len(r.stack) > 0 &&
		l == r.top().layer {
		// back from a group element to a regular element of the same
		// level
		r.pushReady(r.cur.feature)
		r.cur = r.top().clone()
		pushState = false
	} else {
		if r.cur.groupLayer != nil {
			saved := r.cur.clone()
			saved.level = -1
			r.push(saved)
		}
		r.cur.feature = nil
		r.cur.groupLayer = nil
		r.cur.groupLevel = -1
		r.cur.lastGroupField = -1
		r.cur.layer = l
		if len(r.stack) == 0 {
			r.curSubXPath = xpath
		}
	}

	if r.cur.feature == nil {
		r.createNewFeature(local)
	}

	if pushState {
		saved := r.cur.clone()
		saved.level = r.level
		r.push(saved)
		r.cur.counters = make(map[*layer.Layer]int)
	}
}

// wildcardField returns the xs:any field capturing the current element,
// if the element is not described otherwise.
func (r *Reader) wildcardField(l *layer.Layer) int {
	if r.curSubXPath == "" || r.isKnownXPath(l) {
		return -1
	}
	return l.FieldIndex(parentXPath(r.curSubXPath) + "/*")
}

// isKnownXPath tells if the current element is declared in the class of
// l, as a field or as a container of fields.
func (r *Reader) isKnownXPath(l *layer.Layer) bool {
	if l.ClassFieldIndex(r.curSubXPath) >= 0 {
		return true
	}
	prefix := r.curSubXPath + "/"
	for i := range l.Class.Fields {
		if strings.HasPrefix(l.Class.Fields[i].XPath, prefix) {
			return true
		}
	}
	return false
}

func (r *Reader) enterLinked(
	cf *model.Field,
	idx int,
	local string,
	attrs []xml.Attr,
) bool {
	sub := r.set.LayerByXPath(cf.RelatedClassXPath)
	if sub == nil || idx < 0 {
		return false
	}
	owner := r.cur.feature
	r.cur.layer = sub
	r.createNewFeature(local)

	saved := r.cur.clone()
	saved.level = r.level
	saved.subXPath = r.curSubXPath
	r.push(saved)
	r.curSubXPath = cf.RelatedClassXPath
	r.cur.counters = make(map[*layer.Layer]int)

	// attributes may hold the id of the child
	r.processAttributes(attrs)
	if owner != nil {
		r.setField(owner, idx, r.cur.feature.Text(sub.IDField()))
	}
	return true
}

// enterJunction handles an element that realizes an abstract element
// linked through a junction layer. It returns true if the current element
// is such a realization.
func (r *Reader) enterJunction(local string, attrs []xml.Attr) bool {
	l := r.cur.layer
	for i := range l.Class.Fields {
		cf := &l.Class.Fields[i]
		if cf.Category != model.PathToChildElementWithJunctionTable ||
			cf.XPath != r.curSubXPath {
			continue
		}

		jl := r.set.LayerByXPath(cf.AbstractElementXPath + "|" + cf.RelatedClassXPath)
		sub := r.set.LayerByXPath(cf.RelatedClassXPath)
		if jl == nil || sub == nil {
			return true
		}

		parentID := r.cur.feature.Text(l.IDField())
		r.cur.layer = sub
		r.createNewFeature(local)

		r.fids[jl]++
		fid := r.fids[jl]
		r.cur.counters[jl]++
		occurrence := r.cur.counters[jl]

		saved := r.cur.clone()
		saved.level = r.level
		saved.subXPath = r.curSubXPath
		r.push(saved)
		r.curSubXPath = cf.RelatedClassXPath
		r.cur.counters = make(map[*layer.Layer]int)

		r.processAttributes(attrs)
		childID := r.cur.feature.Text(sub.IDField())

		jf := jl.NewFeature(fid)
		jf.Set(0, int32(occurrence))
		jf.SetString(1, parentID)
		jf.SetString(2, childID)
		r.pushReady(jf)
		return true
	}
	return false
}

// isNilOnly detects elements like <foo xsi:nil="true"/> whose column was
// removed as unused.
func (r *Reader) isNilOnly(l *layer.Layer, attrs []xml.Attr) bool {
	if l.ClassFieldIndex(r.curSubXPath) < 0 {
		return false
	}
	var n int
	var isNil bool
	for _, a := range attrs {
		if isNamespaceDecl(a.Name) {
			continue
		}
		n++
		isNil = a.Name.Space == xsd.NamespaceXSI && a.Name.Local == "nil"
	}
	return n == 1 && isNil
}

func (r *Reader) reportElement() {
	if matched, ok := r.ignored.MatchesRefXPath(r.curSubXPath); ok {
		msg := "Element found in document but ignored according to configuration"
		if r.ignoredWarn[matched] {
			r.warn(msg, "xpath", r.curSubXPath)
		} else {
			slog.Debug(msg, "xpath", r.curSubXPath)
		}
		r.silentLevel = r.level
		return
	}
	r.unexpected("Unexpected element found",
		"xpath", r.curXPath, "subxpath", r.curSubXPath)
}

func (r *Reader) createNewFeature(local string) {
	l := r.cur.layer
	r.fids[l]++
	n := r.fids[l]
	f := l.NewFeature(n)

	var parentID string
	if len(r.stack) > 0 && l.ParentIDField() >= 0 {
		if top := r.top(); top.feature != nil && top.layer != nil {
			parentID = top.feature.Text(top.layer.IDField())
			f.SetString(l.ParentIDField(), parentID)
		}
	}

	if l.IsGeneratedID() {
		prefix := parentID
		if prefix == "" {
			prefix = r.hash
		}
		f.SetString(l.IDField(), fmt.Sprintf("%s_%s_%d", prefix, local, n))
	}

	r.cur.feature = f
	r.curField = -1
}

func (r *Reader) pushReady(f *layer.Feature) {
	if f == nil {
		return
	}
	if r.cfg.Reader.Validate && !r.firstPass {
		r.checkMandatory(f)
	}
	r.ready = append(r.ready, f)
}

func (r *Reader) checkMandatory(f *layer.Feature) {
	for i, def := range f.Layer.Fields {
		cf := f.Layer.ClassField(i)
		if cf == nil || !cf.NotNullable || def.Default != "" || f.IsSet(i) {
			continue
		}
		r.validationError("Missing mandatory field",
			"layer", f.Layer.Name, "field", def.Name, "fid", f.FID)
	}
}

func (r *Reader) endElement() {
	r.level--
	if r.silentLevel == r.level {
		r.silentLevel = -1
	}

	atField := r.level == r.curFieldLevel-1
	if r.curField >= 0 && atField {
		r.endField()
	}
	if r.curGeomField >= 0 && atField {
		if root := firstElement(r.blobRoot); root != nil {
			r.processGeometry(root)
		}
	}
	if (r.curField >= 0 || r.curGeomField >= 0) && atField {
		r.blob, r.blobUpper = false, false
	}

	if r.blob {
		if n := len(r.blobStack); n > 0 {
			r.blobStack = r.blobStack[:n-1]
		}
	} else {
		r.text = r.text[:0]
	}

	if len(r.stack) > 0 && r.top().level == r.level {
		counters := maps.Clone(r.top().counters)
		if s := r.top().subXPath; s != "" {
			r.curSubXPath = s
		}

		if r.cur.groupLayer == r.cur.layer {
			r.pop()
			if len(r.stack) > 0 {
				r.cur.layer = r.top().layer
			}
		} else {
			if r.cur.groupLayer != nil {
				r.pushReady(r.cur.feature)
				r.pushReady(r.top().feature)
			} else {
				r.pushReady(r.cur.feature)
			}
			r.pop()
			if len(r.stack) > 0 {
				r.cur = r.top().clone()
				r.cur.subXPath = ""
				if r.cur.level < 0 {
					r.pop()
					if len(r.stack) > 0 {
						r.cur.layer = r.top().layer
					}
				}
			} else {
				r.cur = newFrame()
			}
			r.curField = -1
		}
		if counters == nil {
			counters = make(map[*layer.Layer]int)
		}
		r.cur.counters = counters
	}

	if len(r.xpathLens) == 0 {
		return
	}
	n := r.xpathLens[len(r.xpathLens)-1]
	r.xpathLens = r.xpathLens[:len(r.xpathLens)-1]
	if len(r.xpathLens) == 0 {
		r.curXPath = ""
	} else if len(r.curXPath) >= n+1 {
		r.curXPath = r.curXPath[:len(r.curXPath)-1-n]
	}
	if len(r.curSubXPath) >= n+1 {
		r.curSubXPath = r.curSubXPath[:len(r.curSubXPath)-1-n]
	} else if len(r.curSubXPath) == n {
		r.curSubXPath = ""
	}
}

// endField assigns the collected content to the current field.
func (r *Reader) endField() {
	f := r.cur.feature
	idx := r.curField
	if f == nil || idx >= f.Len() {
		return
	}

	if f.Layer.Fields[idx].Type.IsList() {
		if cf := f.Layer.ClassField(idx); cf != nil && cf.List {
			r.setField(f, idx, string(r.text))
			return
		}
		if r.textListSize > r.maxContent {
			r.err = RepeatedTooLargeError(r.curSubXPath, r.maxContent)
			return
		}
		s := string(r.text)
		r.textList = append(r.textList, s)
		r.textListSize += 16 + len(s)
		f.SetStrings(idx, r.textList)
		return
	}

	var val string
	if r.blob {
		val = r.blobContent()
		r.processSWE(f, idx)
	} else {
		val = string(r.text)
	}
	if val == "" && f.IsNull(idx) {
		return
	}
	r.setField(f, idx, val)
}

func (r *Reader) characters(data xml.CharData) {
	if r.blob {
		r.blobText(string(data))
	} else if r.level == r.curFieldLevel {
		r.text = append(r.text, data...)
	}
	if r.err == nil && (len(r.text) > r.maxContent || r.blobSize > r.maxContent) {
		r.err = ContentTooLargeError(r.curXPath, r.maxContent)
	}
}

func parentXPath(xpath string) string {
	i := strings.LastIndexByte(xpath, '/')
	if i < 0 {
		return ""
	}
	return xpath[:i]
}

func isNamespaceDecl(n xml.Name) bool {
	return n.Space == "xmlns" || (n.Space == "" && n.Local == "xmlns")
}
