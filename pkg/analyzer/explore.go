package analyzer

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/xsd"
)

// instantiate creates the class of a top-level element. It returns false
// when the element cannot be mapped to a class.
func (a *Analyzer) instantiate(e *xsd.Element) (*model.FeatureClass, bool, error) {
	ct := e.ComplexType()
	if ct == nil || e.Abstract || !isFCCompatible(e) {
		return nil, false, nil
	}
	xpath := a.xpathOf(e)
	if a.isIgnored(xpath) {
		return nil, true, nil
	}

	fc := &model.FeatureClass{
		Name:          e.Name.Local,
		XPath:         xpath,
		IsTopLevelElt: a.set.Element(e.Name) == e,
	}
	if a.nameCount[e.Name.Local] > 1 {
		fc.Name = strings.ReplaceAll(xpath, ":", "_")
	}
	if a.cfg.IncludeDocumentation {
		fc.Documentation = documentation(e.Annotation, ct.Annotation)
	}

	mg := ct.ModelGroup()
	counts := make(map[string]int)
	if mg != nil {
		countSameName(mg, counts, 0)
	} else {
		mg = &xsd.ModelGroup{}
	}
	err := a.exploreModelGroup(
		mg, ct.AttributeUses, fc, 0, make(map[*xsd.ModelGroup]bool), counts,
	)
	if err != nil {
		return nil, true, err
	}
	a.launderFieldNames(fc)
	return fc, true, nil
}

func countSameName(mg *xsd.ModelGroup, counts map[string]int, depth int) {
	if depth > maxDepth {
		return
	}
	for _, p := range mg.Particles {
		switch term := p.Term.(type) {
		case *xsd.Element:
			counts[term.Name.Local]++
		case *xsd.ModelGroup:
			countSameName(term, counts, depth+1)
		}
	}
}

func documentation(anns ...xsd.Annotation) string {
	for _, v := range anns {
		if v.Documentation != "" {
			return v.Documentation
		}
	}
	return ""
}

// prefixedName returns local, or prefix_local when the local name is
// used by several elements of the same content model.
func (a *Analyzer) prefixedName(
	e *xsd.Element,
	counts map[string]int,
) string {
	if counts[e.Name.Local] > 1 {
		if prefix := a.reg.Prefix(e.Name.Space); prefix != "" {
			return prefix + "_" + e.Name.Local
		}
	}
	return e.Name.Local
}

// typeOf returns the field type, the builtin type name and the maximum
// length of a simple type.
func typeOf(st *xsd.SimpleType) (model.FieldType, string, int) {
	if st == nil {
		return model.FieldTypeString, "string", 0
	}
	name, width := st.BuiltinName()
	return model.FieldTypeFromXSD(name), name, width
}

// setFieldFromAttribute fills field from an attribute use. prefix is the
// XPath of the owning element, namePrefix is prepended to the field name.
func (a *Analyzer) setFieldFromAttribute(
	f *model.Field,
	use *xsd.AttributeUse,
	prefix, namePrefix string,
) {
	attr := use.Attribute
	st := attr.Type
	if st != nil && st.Variety == xsd.List && st.ItemType != nil {
		t, name, width := typeOf(st.ItemType)
		if a.cfg.UseArrays && t.IsArrayCompatible() {
			f.SetType(t, name)
			f.List = true
			f.Array = true
		} else {
			f.SetType(model.FieldTypeString, name)
		}
		f.Width = width
	} else {
		t, name, width := typeOf(st)
		f.SetType(t, name)
		f.Width = width
	}

	f.Name = attr.Name.Local
	if namePrefix != "" {
		f.Name = namePrefix + "_" + attr.Name.Local
	}
	f.XPath = prefix + "/@" + a.reg.XPath(attr.Name.Space, attr.Name.Local)
	f.NotNullable = use.Required
	f.MinOccurs = 0
	if use.Required {
		f.MinOccurs = 1
	}
	f.MaxOccurs = 1
	f.FixedValue = use.FixedValue()
	f.DefaultValue = use.DefaultValue()
	if a.cfg.IncludeDocumentation {
		f.Documentation = attr.Annotation.Documentation
	}
}

// attributeFields converts attribute uses. Ignored attributes are kept
// only when they carry a fixed or default value.
func (a *Analyzer) attributeFields(
	uses []*xsd.AttributeUse,
	prefix, namePrefix string,
) []model.Field {
	var res []model.Field
	for _, use := range uses {
		f := model.NewField()
		a.setFieldFromAttribute(&f, use, prefix, namePrefix)
		if a.isIgnored(f.XPath) {
			if f.FixedValue == "" && f.DefaultValue == "" {
				slog.Debug("Attribute is in ignored XPaths", "xpath", f.XPath)
				continue
			}
			f.Ignored = true
		}
		res = append(res, f)
	}
	return res
}

// nestedName returns the name of a class nested into fc for element e.
func (a *Analyzer) nestedName(
	fc *model.FeatureClass,
	e *xsd.Element,
) string {
	if a.nameCount[e.Name.Local] > 1 {
		return fc.Name + "_" +
			strings.ReplaceAll(a.xpathOf(e), ":", "_")
	}
	return fc.Name + "_" + e.Name.Local
}

// linkToChild creates a field pointing to a nested class stored in its
// own layer.
func linkToChild(name, xpath string, min, max int) model.Field {
	f := model.NewField()
	f.Name = name
	f.XPath = xpath
	f.MinOccurs = min
	f.MaxOccurs = max
	f.Category = model.PathToChildElementNoLink
	f.RelatedClassXPath = xpath
	return f
}

// createNonNestedRelationship links fc to top-level classes of e and of
// the members of its substitution group. A single occurrence is stored
// as a foreign key column, repeated ones go to junction classes.
func (a *Analyzer) createNonNestedRelationship(
	e *xsd.Element,
	impls []*xsd.Element,
	fc *model.FeatureClass,
	maxOccurs int,
	forceJunction bool,
) {
	if !e.Abstract {
		impls = append([]*xsd.Element{e}, impls...)
	}
	seen := make(map[string]bool)
	var subs []*xsd.Element
	for _, v := range impls {
		xpath := a.xpathOf(v)
		if seen[xpath] {
			continue
		}
		seen[xpath] = true
		subs = append(subs, v)
	}

	eltName := e.Name.Local
	eltXPath := a.xpathOf(e)

	if maxOccurs == 1 && !forceJunction {
		for _, sub := range subs {
			subXPath := a.xpathOf(sub)
			fullXPath := fc.XPath + "/" + subXPath
			if a.isIgnored(fullXPath) {
				continue
			}
			f := model.NewField()
			switch {
			case len(subs) == 1:
				f.Name = eltName + "_pkid"
			case a.nameCount[sub.Name.Local] > 1:
				f.Name = eltName + "_" +
					strings.ReplaceAll(subXPath, ":", "_") + "_pkid"
			default:
				f.Name = eltName + "_" + sub.Name.Local + "_pkid"
			}
			f.XPath = fullXPath
			f.MinOccurs = 0
			f.MaxOccurs = maxOccurs
			f.Category = model.PathToChildElementWithLink
			f.RelatedClassXPath = subXPath
			f.SetType(model.FieldTypeString, "string")
			fc.AddField(f)
		}
		return
	}

	for _, sub := range subs {
		subXPath := a.xpathOf(sub)
		fullXPath := fc.XPath + "/" + subXPath
		if a.isIgnored(fullXPath) {
			continue
		}
		junction := &model.FeatureClass{
			XPath:       fc.XPath + "/" + eltXPath + "|" + subXPath,
			ParentXPath: fc.XPath,
			ChildXPath:  subXPath,
		}
		if a.nameCount[sub.Name.Local] > 1 {
			junction.Name = fc.Name + "_" + eltName + "_" +
				strings.ReplaceAll(subXPath, ":", "_")
		} else {
			junction.Name = fc.Name + "_" + eltName + "_" + sub.Name.Local
		}
		a.classes = append(a.classes, junction)

		f := model.NewField()
		f.Name = eltName + "_" + sub.Name.Local
		f.XPath = fullXPath
		f.MinOccurs = 0
		f.MaxOccurs = maxOccurs
		f.AbstractElementXPath = fc.XPath + "/" + eltXPath
		f.RelatedClassXPath = subXPath
		f.Category = model.PathToChildElementWithJunctionTable
		fc.AddField(f)
	}
}

// exploreModelGroup maps the content of a model group to fields and
// nested classes of fc.
func (a *Analyzer) exploreModelGroup(
	mg *xsd.ModelGroup,
	attrs []*xsd.AttributeUse,
	fc *model.FeatureClass,
	depth int,
	visitedMG map[*xsd.ModelGroup]bool,
	counts map[string]int,
) error {
	if visitedMG[mg] {
		return AnalyzerCycleError(fc.XPath)
	}
	visitedMG[mg] = true
	if depth >= maxDepth {
		return AnalyzerTooDeepError(fc.XPath)
	}

	fc.AppendFields(a.attributeFields(attrs, fc.XPath, ""))

	if a.isMetaDataProperty(fc, mg) {
		return nil
	}

	start := len(fc.Fields)
	var groupIdx int
	for _, p := range mg.Particles {
		var err error
		switch term := p.Term.(type) {
		case *xsd.Element:
			err = a.exploreElement(p, term, mg.Compositor == xsd.Choice,
				fc, depth, visitedMG, counts)
		case *xsd.ModelGroup:
			groupIdx++
			err = a.exploreGroup(p, term, groupIdx, fc, depth, visitedMG, counts)
		case *xsd.Wildcard:
			a.exploreWildcard(p, fc)
		}
		if err != nil {
			return err
		}
	}

	if mg.Compositor == xsd.All {
		for i := start; i < len(fc.Fields); i++ {
			fc.Fields[i].MayAppearOutOfOrder = true
		}
	}
	return nil
}

// isMetaDataProperty handles gml:metaDataProperty, whose content is a
// wildcard standing for gml:_MetaData realizations.
func (a *Analyzer) isMetaDataProperty(
	fc *model.FeatureClass,
	mg *xsd.ModelGroup,
) bool {
	if fc.XPath != "gml:metaDataProperty" || mg.Compositor != xsd.Sequence ||
		len(mg.Particles) != 1 {
		return false
	}
	if _, ok := mg.Particles[0].Term.(*xsd.Wildcard); !ok {
		return false
	}
	uri, ok := a.reg.URI("gml")
	if !ok {
		return false
	}
	e := a.set.Element(xml.Name{Space: uri, Local: "_MetaData"})
	if e == nil {
		return false
	}
	impls := a.implementations(e, fc.XPath+"/"+a.xpathOf(e))
	a.createNonNestedRelationship(e, impls, fc, 1, true)
	return true
}

func (a *Analyzer) exploreGroup(
	p *xsd.Particle,
	mg *xsd.ModelGroup,
	groupIdx int,
	fc *model.FeatureClass,
	depth int,
	visitedMG map[*xsd.ModelGroup]bool,
	counts map[string]int,
) error {
	if !p.IsRepeated() {
		return a.exploreModelGroup(
			mg, nil, fc, depth+1, maps.Clone(visitedMG), counts,
		)
	}

	groupName := mg.Name.Local
	if groupName == "" {
		groupName = fmt.Sprintf("_group%d", groupIdx)
	}
	nested := &model.FeatureClass{
		Name:               fc.Name + "_" + groupName,
		XPath:              fc.XPath,
		IsGroup:            true,
		IsRepeatedSequence: true,
	}
	err := a.exploreModelGroup(
		mg, nil, nested, depth+1, maps.Clone(visitedMG), counts,
	)
	if err != nil {
		return err
	}
	nested.XPath = fc.XPath + ";extra=" + groupName

	if a.cfg.UseArrays && len(nested.Fields) == 1 && len(nested.Nested) == 0 &&
		nested.Fields[0].Category == model.Regular &&
		nested.Fields[0].Type.IsArrayCompatible() {
		f := nested.Fields[0]
		f.Array = true
		f.MinOccurs = p.MinOccurs
		f.MaxOccurs = p.MaxOccurs
		f.RepetitionOnSequence = true
		fc.AddField(f)
		return nil
	}

	fc.AddNested(nested)
	f := model.NewField()
	f.Name = groupName
	f.MinOccurs = p.MinOccurs
	f.MaxOccurs = p.MaxOccurs
	f.Category = model.Group
	f.RelatedClassXPath = nested.XPath
	fc.AddField(f)
	return nil
}

// exploreWildcard maps xs:any content to XML captured as text.
func (a *Analyzer) exploreWildcard(p *xsd.Particle, fc *model.FeatureClass) {
	xpath := fc.XPath + "/*"
	f := model.NewField()
	f.Name = "value"
	f.XPath = xpath
	f.SetType(model.FieldTypeAnyType, "anyType")
	f.IncludeThisEltInBlob = true
	f.MinOccurs = 1
	f.MaxOccurs = 1

	if !p.IsRepeated() {
		f.MinOccurs = p.MinOccurs
		fc.AddField(f)
		return
	}

	nested := &model.FeatureClass{
		Name:  fc.Name + "_any",
		XPath: xpath,
	}
	nested.AddField(f)
	fc.AddNested(nested)
	fc.AddField(linkToChild("any", xpath, p.MinOccurs, p.MaxOccurs))
}

func (a *Analyzer) exploreElement(
	p *xsd.Particle,
	e *xsd.Element,
	isChoice bool,
	fc *model.FeatureClass,
	depth int,
	visitedMG map[*xsd.ModelGroup]bool,
	counts map[string]int,
) error {
	minOccurs, maxOccurs := p.MinOccurs, p.MaxOccurs
	repeated := p.IsRepeated()
	eltName := a.prefixedName(e, counts)
	eltXPath := fc.XPath + "/" + a.xpathOf(e)
	if a.isIgnored(eltXPath) {
		slog.Debug("Element is in ignored XPaths", "xpath", eltXPath)
		return nil
	}

	var doc string
	if a.cfg.IncludeDocumentation {
		doc = documentation(e.Annotation)
	}

	impls := a.implementations(e, eltXPath)

	if gt, ok := a.geometryType(e.Type); ok {
		f := model.NewField()
		f.Name = eltName
		f.XPath = eltXPath
		f.SetType(model.FieldTypeGeometry, e.Type.TypeName().Local)
		f.GeomType = gt
		if repeated {
			f.GeomType = model.GeometryUnknown
			f.Array = true
		}
		f.MinOccurs = minOccurs
		f.MaxOccurs = maxOccurs
		f.Documentation = doc
		fc.AddField(f)
		return nil
	}

	if e.Abstract && a.reg.IsGMLNamespace(e.Name.Space) &&
		!a.isGMLFeatureElement(e) {
		f := model.NewField()
		f.Name = eltName
		if e.Name.Local == "AbstractGeometry" || e.Name.Local == "_Geometry" {
			f.SetType(model.FieldTypeGeometry, "geometry")
			f.GeomType = model.GeometryUnknown
			f.Array = repeated
		} else {
			f.SetType(model.FieldTypeAnyType, "anyType")
		}
		f.IncludeThisEltInBlob = true
		f.MinOccurs = minOccurs
		f.MaxOccurs = maxOccurs
		f.Documentation = doc
		for _, sub := range impls {
			f.AlternateXPaths = append(
				f.AlternateXPaths, fc.XPath+"/"+a.xpathOf(sub),
			)
		}
		fc.AddField(f)
		return nil
	}

	if len(impls) > 0 || a.top[e] {
		a.createNonNestedRelationship(e, impls, fc, maxOccurs, false)
		return nil
	}
	if e.Abstract {
		return nil
	}

	if st := e.SimpleType(); st != nil {
		a.exploreSimpleElement(p, e, st, isChoice, eltName, eltXPath, doc, fc)
		return nil
	}

	ct := e.ComplexType()
	if ct == nil {
		return nil
	}
	return a.exploreComplexElement(
		p, e, ct, impls, eltName, eltXPath, doc, fc, depth, visitedMG,
	)
}

func (a *Analyzer) exploreSimpleElement(
	p *xsd.Particle,
	e *xsd.Element,
	st *xsd.SimpleType,
	isChoice bool,
	eltName, eltXPath, doc string,
	fc *model.FeatureClass,
) {
	repeated := p.IsRepeated()
	t, typeName, width := typeOf(st)
	var isList, isArray bool
	if st.Variety == xsd.List && st.ItemType != nil {
		t, typeName, width = typeOf(st.ItemType)
		if repeated || !a.cfg.UseArrays || !t.IsArrayCompatible() {
			t = model.FieldTypeString
		} else {
			isList = true
			isArray = true
		}
	}

	f := model.NewField()
	f.SetType(t, typeName)
	f.Width = width
	f.List = isList
	f.Array = isArray
	f.FixedValue = e.Fixed
	f.DefaultValue = e.Default
	f.Documentation = doc

	if repeated && a.cfg.UseArrays && t.IsArrayCompatible() {
		f.Name = eltName
		f.XPath = eltXPath
		f.Array = true
		f.MinOccurs = p.MinOccurs
		f.MaxOccurs = p.MaxOccurs
		fc.AddField(f)
	} else if repeated {
		nested := &model.FeatureClass{
			Name:  fc.Name + "_" + eltName,
			XPath: eltXPath,
		}
		f.Name = "value"
		f.XPath = eltXPath
		f.MinOccurs = 1
		f.MaxOccurs = 1
		f.NotNullable = true
		nested.AddField(f)
		fc.AddNested(nested)
		fc.AddField(linkToChild(eltName, eltXPath, p.MinOccurs, p.MaxOccurs))
	} else {
		f.Name = eltName
		f.XPath = eltXPath
		f.MinOccurs = p.MinOccurs
		f.MaxOccurs = p.MaxOccurs
		f.NotNullable = !isChoice && p.MinOccurs > 0 && !e.Nillable
		fc.AddField(f)
	}

	a.addNilField(p, e, eltName, eltXPath, fc)
}

// addNilField creates the <elt>_nil indicator of a nillable element.
func (a *Analyzer) addNilField(
	p *xsd.Particle,
	e *xsd.Element,
	eltName, eltXPath string,
	fc *model.FeatureClass,
) {
	if !e.Nillable || (p.MinOccurs > 0 && !a.cfg.UseNullState) {
		return
	}
	f := model.NewField()
	f.Name = eltName + "_nil"
	f.XPath = eltXPath + "/@" + a.reg.XPath(xsd.NamespaceXSI, "nil")
	f.SetType(model.FieldTypeBoolean, "boolean")
	f.MinOccurs = 0
	f.MaxOccurs = 1
	fc.AddField(f)
}

func (a *Analyzer) exploreComplexElement(
	p *xsd.Particle,
	e *xsd.Element,
	ct *xsd.ComplexType,
	impls []*xsd.Element,
	eltName, eltXPath, doc string,
	fc *model.FeatureClass,
	depth int,
	visitedMG map[*xsd.ModelGroup]bool,
) error {
	repeated := p.IsRepeated()
	eltRepeated := ct.Particle != nil && ct.Particle.IsRepeated()
	moveToTop := !repeated && !eltRepeated

	var namePrefix string
	if moveToTop {
		namePrefix = eltName
	}
	fields := a.attributeFields(ct.AttributeUses, eltXPath, namePrefix)
	if p.MinOccurs == 0 {
		for i := range fields {
			fields[i].MinOccurs = 0
			fields[i].NotNullable = false
		}
	}

	if ct.AttributeWildcard != nil {
		f := model.NewField()
		f.Name = "anyAttributes"
		if moveToTop {
			f.Name = eltName + "_anyAttributes"
		}
		f.XPath = eltXPath + "/@*"
		f.SetType(model.FieldTypeString, "json_dict")
		f.MinOccurs = 0
		f.MaxOccurs = 1
		fields = append(fields, f)
	}

	valueField := func(t model.FieldType, typeName string, width int) bool {
		f := model.NewField()
		f.SetType(t, typeName)
		f.Width = width
		f.XPath = eltXPath
		f.Documentation = doc
		if repeated && len(fields) == 0 && a.cfg.UseArrays &&
			t.IsArrayCompatible() {
			f.Name = eltName
			f.Array = true
			f.MinOccurs = p.MinOccurs
			f.MaxOccurs = p.MaxOccurs
			fc.AddField(f)
			return true
		}
		if repeated {
			f.Name = "value"
			f.MinOccurs = 1
			f.MaxOccurs = 1
			f.NotNullable = true
		} else {
			f.Name = eltName
			f.MinOccurs = p.MinOccurs
			f.MaxOccurs = p.MaxOccurs
		}
		fields = append(fields, f)
		return false
	}

	switch {
	case ct.ContentType == xsd.ContentSimple:
		st := ct.SimpleContent
		t, typeName, width := typeOf(st)
		if st != nil && st.Variety == xsd.List {
			t = model.FieldTypeString
		}
		if valueField(t, typeName, width) {
			return nil
		}
	case ct.IsAnyType():
		if valueField(model.FieldTypeAnyType, "anyType", 0) {
			return nil
		}
	case ct.ModelGroup() != nil:
		mg := ct.ModelGroup()
		if visitedMG[mg] {
			// recursive content gets its own class
			if xpath := a.xpathOf(e); !a.top[e] && !a.topXPaths[xpath] {
				a.promote(e, xpath)
			}
			max := model.Unbounded
			if moveToTop {
				max = 1
			}
			a.createNonNestedRelationship(e, impls, fc, max, true)
			return nil
		}
		return a.exploreNestedContent(
			p, e, ct, eltName, eltXPath, doc, moveToTop, eltRepeated,
			fields, fc, depth, visitedMG,
		)
	}

	if repeated {
		child := &model.FeatureClass{
			Name:  a.nestedName(fc, e),
			XPath: eltXPath,
		}
		child.AppendFields(fields)
		child.Documentation = doc
		fc.AddNested(child)
		fc.AddField(linkToChild(eltName, eltXPath, p.MinOccurs, p.MaxOccurs))
		return nil
	}
	fc.AppendFields(fields)
	a.addNilField(p, e, eltName, eltXPath, fc)
	return nil
}

// exploreNestedContent maps element-only content of a nested element.
// The content is either flattened into fc, when the element occurs at
// most once, or stored in a nested class.
func (a *Analyzer) exploreNestedContent(
	p *xsd.Particle,
	e *xsd.Element,
	ct *xsd.ComplexType,
	eltName, eltXPath, doc string,
	moveToTop, eltRepeated bool,
	fields []model.Field,
	fc *model.FeatureClass,
	depth int,
	visitedMG map[*xsd.ModelGroup]bool,
) error {
	nested := &model.FeatureClass{
		Name:          a.nestedName(fc, e),
		XPath:         eltXPath,
		Documentation: doc,
	}
	counts := make(map[string]int)
	countSameName(ct.ModelGroup(), counts, 0)
	err := a.exploreModelGroup(
		ct.ModelGroup(), nil, nested, depth+1, maps.Clone(visitedMG), counts,
	)
	if err != nil {
		return err
	}

	if target := a.referencedElement(e); target != nil {
		if !target.Abstract {
			f := model.NewField()
			f.Name = eltName + "_pkid"
			f.XPath = model.PKIDXPath(eltXPath + "/@xlink:href")
			f.MinOccurs = 0
			f.MaxOccurs = 1
			f.Category = model.PathToChildElementWithLink
			f.RelatedClassXPath = a.xpathOf(target)
			f.SetType(model.FieldTypeString, "string")
			fields = append(fields, f)
		} else {
			slog.Debug("Target element of reference is abstract",
				"xpath", eltXPath, "target", a.xpathOf(target),
			)
		}
	} else if t := e.Annotation.TargetElement; t.Local != "" &&
		a.isGMLReferenceType(e.Type) {
		slog.Debug("Cannot find target element of reference",
			"xpath", eltXPath, "target", t.Local,
		)
	}

	if moveToTop {
		nullable := p.MinOccurs == 0 ||
			(ct.Particle != nil && ct.Particle.MinOccurs == 0)
		for _, f := range nested.Fields {
			f.Name = eltName + "_" + f.Name
			if nullable {
				f.NotNullable = false
			}
			fields = append(fields, f)
		}
		fc.AppendFields(fields)
		for _, v := range nested.Nested {
			fc.AddNested(v)
		}
		a.addNilField(p, e, eltName, eltXPath, fc)
		return nil
	}

	if a.cfg.UseArrays && len(fields) == 0 && len(nested.Nested) == 0 &&
		len(nested.Fields) == 1 && nested.Fields[0].Category == model.Regular &&
		!nested.Fields[0].Array && nested.Fields[0].Type.IsArrayCompatible() {
		f := nested.Fields[0]
		f.Name = eltName + "_" + f.Name
		f.Array = true
		if eltRepeated {
			f.MinOccurs = ct.Particle.MinOccurs
			f.MaxOccurs = ct.Particle.MaxOccurs
			f.RepetitionOnSequence = true
		} else {
			f.MinOccurs = p.MinOccurs
			f.MaxOccurs = p.MaxOccurs
		}
		fc.AddField(f)
		return nil
	}

	if len(fields) > 0 && eltRepeated {
		inter := &model.FeatureClass{
			Name:          nested.Name,
			XPath:         eltXPath,
			Documentation: doc,
		}
		inter.PrependFields(fields)
		nested.Name += "_sequence"
		nested.XPath += ";extra=sequence"
		nested.IsRepeatedSequence = true
		inter.AddNested(nested)
		inter.AddField(linkToChild("sequence", nested.XPath,
			ct.Particle.MinOccurs, ct.Particle.MaxOccurs))
		fc.AddNested(inter)
	} else {
		nested.IsRepeatedSequence = eltRepeated
		nested.PrependFields(fields)
		fc.AddNested(nested)
	}
	fc.AddField(linkToChild(eltName, eltXPath, p.MinOccurs, p.MaxOccurs))
	return nil
}
