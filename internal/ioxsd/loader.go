// Package ioxsd loads XML Schema documents into the xsd component model.
//
// Documents are parsed with aqwari.net/xml/xmltree, which keeps namespace
// scopes so QNames in attribute values (type, ref, base,
// substitutionGroup) resolve against the declarations in effect where
// they appear. Includes and imports are followed through a
// gmlas.ResourceLoader.
package ioxsd

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"aqwari.net/xml/xmltree"
	"github.com/gnames/gmlas/pkg/gmlas"
	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/xsd"
)

// schemaDoc keeps per-document settings needed to name local
// declarations.
type schemaDoc struct {
	location      string
	targetNS      string
	chameleon     bool
	qualifiedElts bool
	qualifiedAtts bool
}

type decl struct {
	el  *xmltree.Element
	doc *schemaDoc
}

// ctInfo holds the declared parts of a complex type until effective
// content is computed.
type ctInfo struct {
	base        xsd.Type
	extension   bool
	simple      bool
	mixed       bool
	particle    *xsd.Particle
	uses        []*xsd.AttributeUse
	prohibited  []xml.Name
	wildcard    *xsd.Wildcard
	facetLength int
	done        bool
}

// Loader reads schemas and the schemas they include or import.
type Loader struct {
	res gmlas.ResourceLoader

	set       *xsd.Set
	locations []string
	loaded    map[string]string

	rawElts       map[xml.Name]decl
	rawTypes      map[xml.Name]decl
	rawGroups     map[xml.Name]decl
	rawAttrs      map[xml.Name]decl
	rawAttrGroups map[xml.Name]decl
	eltOrder      []xml.Name
	typeOrder     []xml.Name

	elements   map[xml.Name]*xsd.Element
	types      map[xml.Name]xsd.Type
	groups     map[xml.Name]*xsd.ModelGroup
	attrs      map[xml.Name]*xsd.Attribute
	attrGroups map[xml.Name]*attrGroup
	pending    map[*xsd.ComplexType]*ctInfo
	builtins   map[string]*xsd.SimpleType
	anyType    *xsd.ComplexType
}

type attrGroup struct {
	uses     []*xsd.AttributeUse
	wildcard *xsd.Wildcard
	building bool
}

// New creates a Loader that fetches documents with res.
func New(res gmlas.ResourceLoader) *Loader {
	return &Loader{
		res:           res,
		set:           xsd.NewSet(),
		loaded:        make(map[string]string),
		rawElts:       make(map[xml.Name]decl),
		rawTypes:      make(map[xml.Name]decl),
		rawGroups:     make(map[xml.Name]decl),
		rawAttrs:      make(map[xml.Name]decl),
		rawAttrGroups: make(map[xml.Name]decl),
		elements:      make(map[xml.Name]*xsd.Element),
		types:         make(map[xml.Name]xsd.Type),
		groups:        make(map[xml.Name]*xsd.ModelGroup),
		attrs:         make(map[xml.Name]*xsd.Attribute),
		attrGroups:    make(map[xml.Name]*attrGroup),
		pending:       make(map[*xsd.ComplexType]*ctInfo),
		builtins:      make(map[string]*xsd.SimpleType),
	}
}

// Locations returns resolved locations of every loaded document.
func (l *Loader) Locations() []string {
	return l.locations
}

// Load reads the given schemas, resolving relative locations against
// basePath, and builds the component set.
func (l *Loader) Load(
	ctx context.Context,
	schemas []model.URIFilename,
	basePath string,
) (*xsd.Set, error) {
	if len(schemas) == 0 {
		return nil, SchemaNoSchemasError(basePath)
	}
	for _, v := range schemas {
		tns, err := l.loadDoc(ctx, v.Location, basePath, "", false)
		if err != nil {
			return nil, err
		}
		if tns == "" {
			tns = v.URI
		}
		l.set.AddRootNamespace(tns)
	}

	for _, name := range l.typeOrder {
		t, err := l.typeByName(name, l.rawTypes[name].doc.location)
		if err != nil {
			return nil, err
		}
		l.set.AddType(t)
	}
	for _, name := range l.eltOrder {
		e, err := l.globalElement(name, l.rawElts[name].doc.location)
		if err != nil {
			return nil, err
		}
		l.set.AddElement(e)
	}
	for ct := range l.pending {
		l.finalize(ct)
	}
	for _, e := range l.elements {
		l.fixElementType(e, 0)
	}

	slog.Info("Schemas loaded",
		"documents", len(l.locations),
		"elements", len(l.set.Elements),
	)
	return l.set, nil
}

func (l *Loader) loadDoc(
	ctx context.Context,
	uri, basePath, includerNS string,
	include bool,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rc, loc, err := l.res.Open(ctx, uri, basePath)
	if err != nil {
		return "", SchemaLocationError(uri, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return "", SchemaLocationError(loc, err)
	}

	key := loc
	if include {
		key = loc + "#" + includerNS
	}
	if tns, ok := l.loaded[key]; ok {
		return tns, nil
	}
	l.loaded[key] = ""
	l.locations = append(l.locations, loc)
	slog.Debug("Loading schema", "location", loc)

	root, err := xmltree.Parse(data)
	if err != nil {
		return "", SchemaParseError(loc, err)
	}
	if !isXS(root, "schema") {
		return "", SchemaParseError(loc, errNotSchema(root.Name))
	}

	doc := &schemaDoc{
		location:      loc,
		targetNS:      root.Attr("", "targetNamespace"),
		qualifiedElts: root.Attr("", "elementFormDefault") == "qualified",
		qualifiedAtts: root.Attr("", "attributeFormDefault") == "qualified",
	}
	if include && doc.targetNS == "" && includerNS != "" {
		doc.targetNS = includerNS
		doc.chameleon = true
	}
	l.loaded[key] = doc.targetNS
	l.set.AddNamespace(doc.targetNS)
	l.collectPrefixes(data)

	for i := range root.Children {
		child := &root.Children[i]
		if child.Name.Space != xsd.NamespaceXS {
			continue
		}
		var name xml.Name
		if n := child.Attr("", "name"); n != "" {
			name = xml.Name{Space: doc.targetNS, Local: n}
		}
		switch child.Name.Local {
		case "include", "redefine", "override":
			sl := child.Attr("", "schemaLocation")
			if sl == "" {
				continue
			}
			if _, err = l.loadDoc(ctx, sl, loc, doc.targetNS, true); err != nil {
				return "", err
			}
		case "import":
			sl := child.Attr("", "schemaLocation")
			if sl == "" {
				slog.Debug("Import without schemaLocation",
					"namespace", child.Attr("", "namespace"),
					"schema", loc,
				)
				continue
			}
			if _, err = l.loadDoc(ctx, sl, loc, "", false); err != nil {
				return "", err
			}
		case "element":
			if _, ok := l.rawElts[name]; !ok {
				l.rawElts[name] = decl{el: child, doc: doc}
				l.eltOrder = append(l.eltOrder, name)
			}
		case "complexType", "simpleType":
			if _, ok := l.rawTypes[name]; !ok {
				l.rawTypes[name] = decl{el: child, doc: doc}
				l.typeOrder = append(l.typeOrder, name)
			}
		case "group":
			if _, ok := l.rawGroups[name]; !ok {
				l.rawGroups[name] = decl{el: child, doc: doc}
			}
		case "attribute":
			if _, ok := l.rawAttrs[name]; !ok {
				l.rawAttrs[name] = decl{el: child, doc: doc}
			}
		case "attributeGroup":
			if _, ok := l.rawAttrGroups[name]; !ok {
				l.rawAttrGroups[name] = decl{el: child, doc: doc}
			}
		}
	}
	return doc.targetNS, nil
}

// collectPrefixes registers prefixes declared anywhere in a schema
// document. xmltree moves xmlns attributes into its private scope, so the
// raw tokens are scanned instead. The first prefix seen for a URI wins.
func (l *Loader) collectPrefixes(data []byte) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	for {
		tok, err := d.RawToken()
		if err != nil {
			return
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, v := range start.Attr {
			if v.Name.Space != "xmlns" || v.Name.Local == "" || v.Value == "" {
				continue
			}
			if prev, ok := l.set.Prefixes[v.Value]; ok {
				if prev != v.Name.Local {
					slog.Debug("Prefix is already registered",
						"uri", v.Value, "prefix", prev, "ignored", v.Name.Local)
				}
				continue
			}
			l.set.Prefixes[v.Value] = v.Name.Local
		}
	}
}

// resolve turns a QName from an attribute value into an expanded name.
func resolve(el *xmltree.Element, doc *schemaDoc, qname string) xml.Name {
	qname = strings.TrimSpace(qname)
	name, ok := el.ResolveNS(qname)
	if !ok {
		if strings.Contains(qname, ":") {
			return name
		}
		name.Space = ""
	}
	if name.Space == "" && doc.chameleon {
		name.Space = doc.targetNS
	}
	return name
}

func (l *Loader) globalElement(name xml.Name, from string) (*xsd.Element, error) {
	if e, ok := l.elements[name]; ok {
		return e, nil
	}
	d, ok := l.rawElts[name]
	if !ok {
		return nil, SchemaReferenceError("element", qname(name), from)
	}
	e := &xsd.Element{Name: name, Global: true}
	l.elements[name] = e
	if err := l.fillElement(e, d.el, d.doc); err != nil {
		return nil, err
	}
	return e, nil
}

func (l *Loader) fillElement(e *xsd.Element, x *xmltree.Element, doc *schemaDoc) error {
	e.Abstract = isTrue(x.Attr("", "abstract"))
	e.Nillable = isTrue(x.Attr("", "nillable"))
	e.Fixed = x.Attr("", "fixed")
	e.Default = x.Attr("", "default")
	e.Annotation = annotation(x, doc)

	if sg := x.Attr("", "substitutionGroup"); sg != "" && e.Global {
		// XSD 1.1 allows a list of heads, the first one is used.
		if fields := strings.Fields(sg); len(fields) > 0 {
			head, err := l.globalElement(resolve(x, doc, fields[0]), doc.location)
			if err != nil {
				return err
			}
			e.SubstitutionGroup = head
		}
	}

	if tn := x.Attr("", "type"); tn != "" {
		t, err := l.typeByName(resolve(x, doc, tn), doc.location)
		if err != nil {
			return err
		}
		e.Type = t
		return nil
	}
	for i := range x.Children {
		child := &x.Children[i]
		switch {
		case isXS(child, "complexType"):
			ct := &xsd.ComplexType{}
			if err := l.buildComplex(ct, child, doc); err != nil {
				return err
			}
			e.Type = ct
			return nil
		case isXS(child, "simpleType"):
			st := &xsd.SimpleType{}
			if err := l.buildSimple(st, child, doc); err != nil {
				return err
			}
			e.Type = st
			return nil
		}
	}
	// type comes from the substitution group head, see fixElementType
	return nil
}

// fixElementType assigns types of elements declared without one.
func (l *Loader) fixElementType(e *xsd.Element, depth int) {
	if e.Type != nil {
		return
	}
	if e.SubstitutionGroup != nil && depth < 100 {
		l.fixElementType(e.SubstitutionGroup, depth+1)
		e.Type = e.SubstitutionGroup.Type
	}
	if e.Type == nil {
		e.Type = l.anyTypeDef()
	}
}

func (l *Loader) typeByName(name xml.Name, from string) (xsd.Type, error) {
	if name.Space == xsd.NamespaceXS {
		if name.Local == "anyType" {
			return l.anyTypeDef(), nil
		}
		return l.builtin(name.Local), nil
	}
	if t, ok := l.types[name]; ok {
		return t, nil
	}
	d, ok := l.rawTypes[name]
	if !ok {
		return nil, SchemaReferenceError("type", qname(name), from)
	}
	if isXS(d.el, "simpleType") {
		st := &xsd.SimpleType{Name: name}
		l.types[name] = st
		if err := l.buildSimple(st, d.el, d.doc); err != nil {
			return nil, err
		}
		return st, nil
	}
	ct := &xsd.ComplexType{Name: name}
	l.types[name] = ct
	if err := l.buildComplex(ct, d.el, d.doc); err != nil {
		return nil, err
	}
	return ct, nil
}

func (l *Loader) simpleTypeByName(name xml.Name, from string) (*xsd.SimpleType, error) {
	t, err := l.typeByName(name, from)
	if err != nil {
		return nil, err
	}
	st, ok := t.(*xsd.SimpleType)
	if !ok {
		return nil, SchemaReferenceError("simple type", qname(name), from)
	}
	return st, nil
}

func (l *Loader) builtin(local string) *xsd.SimpleType {
	if st, ok := l.builtins[local]; ok {
		return st
	}
	st := &xsd.SimpleType{
		Name:    xml.Name{Space: xsd.NamespaceXS, Local: local},
		Builtin: true,
	}
	switch local {
	case "NMTOKENS", "IDREFS", "ENTITIES":
		st.Variety = xsd.List
		st.ItemType = l.builtin(strings.TrimSuffix(local, "S"))
	}
	l.builtins[local] = st
	return st
}

func (l *Loader) anyTypeDef() *xsd.ComplexType {
	if l.anyType != nil {
		return l.anyType
	}
	wc := &xsd.Wildcard{Namespace: "##any", ProcessContents: "lax"}
	l.anyType = &xsd.ComplexType{
		Name:        xsd.AnyTypeName,
		ContentType: xsd.ContentMixed,
		Particle: &xsd.Particle{
			MinOccurs: 1,
			MaxOccurs: 1,
			Term: &xsd.ModelGroup{
				Compositor: xsd.Sequence,
				Particles: []*xsd.Particle{
					{MinOccurs: 0, MaxOccurs: xsd.Unbounded, Term: wc},
				},
			},
		},
		AttributeWildcard: wc,
	}
	return l.anyType
}

func (l *Loader) buildComplex(ct *xsd.ComplexType, x *xmltree.Element, doc *schemaDoc) error {
	info := &ctInfo{
		base:  l.anyTypeDef(),
		mixed: isTrue(x.Attr("", "mixed")),
	}
	l.pending[ct] = info
	ct.Abstract = isTrue(x.Attr("", "abstract"))
	ct.Annotation = annotation(x, doc)

	for i := range x.Children {
		child := &x.Children[i]
		if child.Name.Space != xsd.NamespaceXS {
			continue
		}
		switch child.Name.Local {
		case "simpleContent", "complexContent":
			info.simple = child.Name.Local == "simpleContent"
			if m := child.Attr("", "mixed"); m != "" {
				info.mixed = isTrue(m)
			}
			if err := l.derivation(info, child, doc); err != nil {
				return err
			}
		default:
			if err := l.contentChild(info, child, doc); err != nil {
				return err
			}
		}
	}
	ct.Base = info.base
	if info.extension {
		ct.Derivation = xsd.Extension
	}
	return nil
}

func (l *Loader) derivation(info *ctInfo, x *xmltree.Element, doc *schemaDoc) error {
	for i := range x.Children {
		child := &x.Children[i]
		if !isXS(child, "extension") && !isXS(child, "restriction") {
			continue
		}
		info.extension = child.Name.Local == "extension"
		if b := child.Attr("", "base"); b != "" {
			base, err := l.typeByName(resolve(child, doc, b), doc.location)
			if err != nil {
				return err
			}
			info.base = base
		}
		for j := range child.Children {
			cc := &child.Children[j]
			if cc.Name.Space != xsd.NamespaceXS {
				continue
			}
			switch cc.Name.Local {
			case "length", "maxLength":
				if n, err := strconv.Atoi(cc.Attr("", "value")); err == nil {
					info.facetLength = n
				}
			case "simpleType":
				st := &xsd.SimpleType{}
				if err := l.buildSimple(st, cc, doc); err != nil {
					return err
				}
				info.base = st
			default:
				if err := l.contentChild(info, cc, doc); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// contentChild handles model groups and attribute declarations found in
// a complex type or in its derivation element.
func (l *Loader) contentChild(info *ctInfo, x *xmltree.Element, doc *schemaDoc) error {
	switch x.Name.Local {
	case "sequence", "choice", "all", "group":
		p, err := l.particle(x, doc)
		if err != nil {
			return err
		}
		info.particle = p
	case "attribute":
		use, prohibited, err := l.attributeUse(x, doc)
		if err != nil {
			return err
		}
		if prohibited {
			info.prohibited = append(info.prohibited, use.Attribute.Name)
			return nil
		}
		info.uses = append(info.uses, use)
	case "attributeGroup":
		name := resolve(x, doc, x.Attr("", "ref"))
		ag, err := l.attributeGroup(name, doc.location)
		if err != nil {
			return err
		}
		info.uses = append(info.uses, ag.uses...)
		if ag.wildcard != nil {
			info.wildcard = ag.wildcard
		}
	case "anyAttribute":
		info.wildcard = wildcard(x)
	}
	return nil
}

func (l *Loader) particle(x *xmltree.Element, doc *schemaDoc) (*xsd.Particle, error) {
	p := &xsd.Particle{
		MinOccurs: occurs(x.Attr("", "minOccurs"), 1),
		MaxOccurs: occurs(x.Attr("", "maxOccurs"), 1),
	}
	switch x.Name.Local {
	case "element":
		if ref := x.Attr("", "ref"); ref != "" {
			e, err := l.globalElement(resolve(x, doc, ref), doc.location)
			if err != nil {
				return nil, err
			}
			p.Term = e
			return p, nil
		}
		name := xml.Name{Local: x.Attr("", "name")}
		form := x.Attr("", "form")
		if form == "qualified" || (form == "" && doc.qualifiedElts) {
			name.Space = doc.targetNS
		}
		e := &xsd.Element{Name: name}
		if err := l.fillElement(e, x, doc); err != nil {
			return nil, err
		}
		if e.Type == nil {
			e.Type = l.anyTypeDef()
		}
		p.Term = e
	case "group":
		mg, err := l.group(resolve(x, doc, x.Attr("", "ref")), doc.location)
		if err != nil {
			return nil, err
		}
		p.Term = mg
	case "sequence", "choice", "all":
		mg := &xsd.ModelGroup{Compositor: compositor(x.Name.Local)}
		if err := l.fillGroup(mg, x, doc); err != nil {
			return nil, err
		}
		p.Term = mg
	case "any":
		p.Term = wildcard(x)
	default:
		return nil, nil
	}
	return p, nil
}

func (l *Loader) fillGroup(mg *xsd.ModelGroup, x *xmltree.Element, doc *schemaDoc) error {
	for i := range x.Children {
		child := &x.Children[i]
		if child.Name.Space != xsd.NamespaceXS || child.Name.Local == "annotation" {
			continue
		}
		p, err := l.particle(child, doc)
		if err != nil {
			return err
		}
		if p != nil {
			mg.Particles = append(mg.Particles, p)
		}
	}
	return nil
}

func (l *Loader) group(name xml.Name, from string) (*xsd.ModelGroup, error) {
	if mg, ok := l.groups[name]; ok {
		return mg, nil
	}
	d, ok := l.rawGroups[name]
	if !ok {
		return nil, SchemaReferenceError("group", qname(name), from)
	}
	mg := &xsd.ModelGroup{Name: name}
	l.groups[name] = mg
	for i := range d.el.Children {
		child := &d.el.Children[i]
		if isXS(child, "sequence") || isXS(child, "choice") || isXS(child, "all") {
			mg.Compositor = compositor(child.Name.Local)
			if err := l.fillGroup(mg, child, d.doc); err != nil {
				return nil, err
			}
			break
		}
	}
	return mg, nil
}

func (l *Loader) attributeUse(
	x *xmltree.Element,
	doc *schemaDoc,
) (*xsd.AttributeUse, bool, error) {
	use := &xsd.AttributeUse{Required: x.Attr("", "use") == "required"}
	prohibited := x.Attr("", "use") == "prohibited"

	if ref := x.Attr("", "ref"); ref != "" {
		a, err := l.globalAttribute(resolve(x, doc, ref), doc.location)
		if err != nil {
			return nil, false, err
		}
		use.Attribute = a
		use.Fixed = x.Attr("", "fixed")
		use.Default = x.Attr("", "default")
		return use, prohibited, nil
	}

	name := xml.Name{Local: x.Attr("", "name")}
	form := x.Attr("", "form")
	if form == "qualified" || (form == "" && doc.qualifiedAtts) {
		name.Space = doc.targetNS
	}
	a := &xsd.Attribute{Name: name}
	if err := l.fillAttribute(a, x, doc); err != nil {
		return nil, false, err
	}
	use.Attribute = a
	return use, prohibited, nil
}

func (l *Loader) globalAttribute(name xml.Name, from string) (*xsd.Attribute, error) {
	if a, ok := l.attrs[name]; ok {
		return a, nil
	}
	d, ok := l.rawAttrs[name]
	if !ok {
		if name.Space == xsd.NamespaceXML {
			a := &xsd.Attribute{Name: name, Type: l.builtin("string")}
			l.attrs[name] = a
			return a, nil
		}
		return nil, SchemaReferenceError("attribute", qname(name), from)
	}
	a := &xsd.Attribute{Name: name}
	l.attrs[name] = a
	if err := l.fillAttribute(a, d.el, d.doc); err != nil {
		return nil, err
	}
	return a, nil
}

func (l *Loader) fillAttribute(a *xsd.Attribute, x *xmltree.Element, doc *schemaDoc) error {
	a.Fixed = x.Attr("", "fixed")
	a.Default = x.Attr("", "default")
	a.Annotation = annotation(x, doc)
	if tn := x.Attr("", "type"); tn != "" {
		st, err := l.simpleTypeByName(resolve(x, doc, tn), doc.location)
		if err != nil {
			return err
		}
		a.Type = st
		return nil
	}
	for i := range x.Children {
		child := &x.Children[i]
		if isXS(child, "simpleType") {
			st := &xsd.SimpleType{}
			if err := l.buildSimple(st, child, doc); err != nil {
				return err
			}
			a.Type = st
			return nil
		}
	}
	a.Type = l.builtin("anySimpleType")
	return nil
}

func (l *Loader) attributeGroup(name xml.Name, from string) (*attrGroup, error) {
	if ag, ok := l.attrGroups[name]; ok {
		if ag.building {
			return &attrGroup{}, nil
		}
		return ag, nil
	}
	d, ok := l.rawAttrGroups[name]
	if !ok {
		return nil, SchemaReferenceError("attribute group", qname(name), from)
	}
	ag := &attrGroup{building: true}
	l.attrGroups[name] = ag
	info := &ctInfo{}
	for i := range d.el.Children {
		child := &d.el.Children[i]
		if child.Name.Space != xsd.NamespaceXS {
			continue
		}
		if err := l.contentChild(info, child, d.doc); err != nil {
			return nil, err
		}
	}
	ag.uses = info.uses
	ag.wildcard = info.wildcard
	ag.building = false
	return ag, nil
}

func (l *Loader) buildSimple(st *xsd.SimpleType, x *xmltree.Element, doc *schemaDoc) error {
	for i := range x.Children {
		child := &x.Children[i]
		if child.Name.Space != xsd.NamespaceXS {
			continue
		}
		switch child.Name.Local {
		case "restriction":
			if b := child.Attr("", "base"); b != "" {
				base, err := l.simpleTypeByName(resolve(child, doc, b), doc.location)
				if err != nil {
					return err
				}
				st.Base = base
			}
			for j := range child.Children {
				cc := &child.Children[j]
				switch {
				case isXS(cc, "simpleType"):
					base := &xsd.SimpleType{}
					if err := l.buildSimple(base, cc, doc); err != nil {
						return err
					}
					st.Base = base
				case isXS(cc, "length"), isXS(cc, "maxLength"):
					if n, err := strconv.Atoi(cc.Attr("", "value")); err == nil {
						st.MaxLength = n
					}
				}
			}
			if st.Base != nil {
				st.Variety = st.Base.Variety
				st.ItemType = st.Base.ItemType
			}
		case "list":
			st.Variety = xsd.List
			st.Base = l.builtin("anySimpleType")
			if it := child.Attr("", "itemType"); it != "" {
				item, err := l.simpleTypeByName(resolve(child, doc, it), doc.location)
				if err != nil {
					return err
				}
				st.ItemType = item
			}
			for j := range child.Children {
				if isXS(&child.Children[j], "simpleType") {
					item := &xsd.SimpleType{}
					if err := l.buildSimple(item, &child.Children[j], doc); err != nil {
						return err
					}
					st.ItemType = item
				}
			}
		case "union":
			st.Variety = xsd.Union
			st.Base = l.builtin("anySimpleType")
		}
	}
	if st.Base == nil && !st.Builtin {
		st.Base = l.builtin("anySimpleType")
	}
	return nil
}

// finalize computes effective content and attributes of a complex type
// once its base type is final.
func (l *Loader) finalize(ct *xsd.ComplexType) {
	info, ok := l.pending[ct]
	if !ok || info.done {
		return
	}
	info.done = true
	baseCT, _ := info.base.(*xsd.ComplexType)
	if baseCT != nil {
		l.finalize(baseCT)
	}

	var baseUses []*xsd.AttributeUse
	if baseCT != nil && baseCT != l.anyType {
		baseUses = baseCT.AttributeUses
	}
	ct.AttributeUses = mergeUses(baseUses, info.uses, info.prohibited)
	ct.AttributeWildcard = info.wildcard
	if ct.AttributeWildcard == nil && info.extension && baseCT != nil &&
		baseCT != l.anyType {
		ct.AttributeWildcard = baseCT.AttributeWildcard
	}

	if info.simple {
		ct.ContentType = xsd.ContentSimple
		var st *xsd.SimpleType
		switch b := info.base.(type) {
		case *xsd.SimpleType:
			st = b
		case *xsd.ComplexType:
			st = b.SimpleContent
		}
		if st == nil {
			st = l.builtin("string")
		}
		if info.facetLength > 0 {
			st = &xsd.SimpleType{Base: st, MaxLength: info.facetLength,
				Variety: st.Variety, ItemType: st.ItemType}
		}
		ct.SimpleContent = st
		return
	}

	p := info.particle
	if info.extension && baseCT != nil && baseCT != l.anyType {
		p = combine(baseCT.Particle, p)
		if baseCT.ContentType == xsd.ContentMixed {
			info.mixed = true
		}
	}
	ct.Particle = p
	switch {
	case !isEmptyParticle(p) && info.mixed:
		ct.ContentType = xsd.ContentMixed
	case !isEmptyParticle(p):
		ct.ContentType = xsd.ContentElementOnly
	case info.mixed:
		// text only content
		ct.ContentType = xsd.ContentSimple
		ct.SimpleContent = l.builtin("string")
	default:
		ct.ContentType = xsd.ContentEmpty
	}
}

func combine(base, own *xsd.Particle) *xsd.Particle {
	if isEmptyParticle(base) {
		return own
	}
	if isEmptyParticle(own) {
		return base
	}
	return &xsd.Particle{
		MinOccurs: 1,
		MaxOccurs: 1,
		Term: &xsd.ModelGroup{
			Compositor: xsd.Sequence,
			Particles:  []*xsd.Particle{base, own},
		},
	}
}

func isEmptyParticle(p *xsd.Particle) bool {
	if p == nil || p.MaxOccurs == 0 {
		return true
	}
	mg, ok := p.Term.(*xsd.ModelGroup)
	if !ok {
		return false
	}
	for _, v := range mg.Particles {
		if !isEmptyParticle(v) {
			return false
		}
	}
	return true
}

func mergeUses(base, own []*xsd.AttributeUse, prohibited []xml.Name) []*xsd.AttributeUse {
	res := make([]*xsd.AttributeUse, 0, len(base)+len(own))
	skip := make(map[xml.Name]bool)
	for _, v := range prohibited {
		skip[v] = true
	}
	for _, v := range own {
		skip[v.Attribute.Name] = true
	}
	for _, v := range base {
		if !skip[v.Attribute.Name] {
			res = append(res, v)
		}
	}
	seen := make(map[xml.Name]bool)
	for _, v := range own {
		if seen[v.Attribute.Name] {
			continue
		}
		seen[v.Attribute.Name] = true
		res = append(res, v)
	}
	return res
}

func annotation(x *xmltree.Element, doc *schemaDoc) xsd.Annotation {
	var res xsd.Annotation
	for i := range x.Children {
		ann := &x.Children[i]
		if !isXS(ann, "annotation") {
			continue
		}
		var docs []string
		for j := range ann.Children {
			child := &ann.Children[j]
			switch {
			case isXS(child, "documentation"):
				if s := strings.TrimSpace(string(child.Content)); s != "" {
					docs = append(docs, s)
				}
			case isXS(child, "appinfo"):
				for k := range child.Children {
					ai := &child.Children[k]
					if ai.Name.Local != "targetElement" {
						continue
					}
					res.TargetElement = resolve(ai, doc, string(ai.Content))
				}
			}
		}
		res.Documentation = strings.Join(docs, "\n")
	}
	return res
}

func wildcard(x *xmltree.Element) *xsd.Wildcard {
	res := &xsd.Wildcard{
		Namespace:       x.Attr("", "namespace"),
		ProcessContents: x.Attr("", "processContents"),
	}
	if res.Namespace == "" {
		res.Namespace = "##any"
	}
	if res.ProcessContents == "" {
		res.ProcessContents = "strict"
	}
	return res
}

func compositor(local string) xsd.Compositor {
	switch local {
	case "choice":
		return xsd.Choice
	case "all":
		return xsd.All
	default:
		return xsd.Sequence
	}
}

func occurs(s string, dflt int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return dflt
	}
	if s == "unbounded" {
		return xsd.Unbounded
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return dflt
	}
	return n
}

func isXS(x *xmltree.Element, local string) bool {
	return x.Name.Space == xsd.NamespaceXS && x.Name.Local == local
}

func isTrue(s string) bool {
	s = strings.TrimSpace(s)
	return s == "true" || s == "1"
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}
