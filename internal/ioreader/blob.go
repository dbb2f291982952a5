package ioreader

import (
	"encoding/xml"
	"strings"

	"github.com/beevik/etree"
)

// blobTag is the tag of the container holding captured content. It never
// appears in serialized values.
const blobTag = "blob"

func (r *Reader) resetBlob() {
	r.blobRoot = etree.NewElement(blobTag)
	r.blobStack = r.blobStack[:0]
	r.blobSize = 0
}

func (r *Reader) blobParent() *etree.Element {
	if n := len(r.blobStack); n > 0 {
		return r.blobStack[n-1]
	}
	return r.blobRoot
}

// blobStart appends an element to the captured content. Namespace
// declarations are dropped, names use the prefixes of the layer set.
func (r *Reader) blobStart(xpath string, attrs []xml.Attr) {
	if r.blobRoot == nil {
		r.resetBlob()
	}
	e := r.blobParent().CreateElement(xpath)
	r.blobSize += 2*len(xpath) + 5
	for _, a := range attrs {
		if isNamespaceDecl(a.Name) {
			continue
		}
		key := r.attrName(a.Name)
		e.CreateAttr(key, a.Value)
		r.blobSize += len(key) + len(a.Value) + 4
	}
	r.blobStack = append(r.blobStack, e)
	if r.err == nil && r.blobSize > r.maxContent {
		r.err = ContentTooLargeError(r.curXPath, r.maxContent)
	}
}

// blobText adds character data to the innermost open element, merging it
// with preceding text.
func (r *Reader) blobText(s string) {
	if r.blobRoot == nil {
		return
	}
	parent := r.blobParent()
	r.blobSize += len(s)
	if n := len(parent.Child); n > 0 {
		if cd, ok := parent.Child[n-1].(*etree.CharData); ok && !cd.IsCData() {
			cd.SetData(cd.Data + s)
			return
		}
	}
	parent.CreateText(s)
}

// blobContent serializes the captured content.
func (r *Reader) blobContent() string {
	if r.blobRoot == nil || r.firstPass {
		if r.blobRoot != nil && len(r.blobRoot.Child) > 0 {
			// content exists, its value does not matter yet
			return "1"
		}
		return ""
	}
	var sb strings.Builder
	ws := &etree.WriteSettings{CanonicalEndTags: true}
	for _, v := range r.blobRoot.Child {
		v.WriteTo(&sb, ws)
	}
	return sb.String()
}

func firstElement(e *etree.Element) *etree.Element {
	if e == nil {
		return nil
	}
	for _, v := range e.Child {
		if c, ok := v.(*etree.Element); ok {
			return c
		}
	}
	return nil
}
