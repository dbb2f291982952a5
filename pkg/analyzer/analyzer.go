// Package analyzer turns loaded XML schemas into feature classes: the
// tables and columns an instance document is mapped to.
//
// Analysis runs in two steps. The first step decides which element
// declarations become top-level classes: global feature-like elements,
// and elements that are reached from several places or are too complex
// to be flattened into their parent. The second step explores the
// content model of every top-level element, flattening simple nested
// content into columns and creating nested classes, link fields and
// junction classes for the rest.
package analyzer

import (
	"encoding/xml"
	"log/slog"
	"strings"

	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/xpathmatch"
	"github.com/gnames/gmlas/pkg/xsd"
)

// maxDepth limits the nesting of model groups.
const maxDepth = 100

// Analyzer builds feature classes from a schema set.
type Analyzer struct {
	cfg config.AnalyzerConfig
	set *xsd.Set
	reg *Registry

	ignored         *xpathmatch.Matcher
	forcedFlatten   *xpathmatch.Matcher
	disabledFlatten *xpathmatch.Matcher
	constraints     *xpathmatch.Matcher
	constraintsIdx  map[string][]string

	substitutions map[*xsd.Element][]*xsd.Element

	featuresOnly bool

	visited   map[*xsd.Element]bool
	simple    map[*xsd.Element]bool
	top       map[*xsd.Element]bool
	topOrder  []*xsd.Element
	topXPaths map[string]bool
	nameCount map[string]int

	classes []*model.FeatureClass
}

// New creates an Analyzer for a loaded schema set.
func New(cfg config.AnalyzerConfig, set *xsd.Set) *Analyzer {
	res := &Analyzer{
		cfg:           cfg,
		set:           set,
		reg:           NewRegistry(set.Prefixes),
		substitutions: make(map[*xsd.Element][]*xsd.Element),
		visited:       make(map[*xsd.Element]bool),
		simple:        make(map[*xsd.Element]bool),
		top:           make(map[*xsd.Element]bool),
		topXPaths:     make(map[string]bool),
		nameCount:     make(map[string]int),
	}

	ignored := make([]string, len(cfg.IgnoredXPaths))
	for i, v := range cfg.IgnoredXPaths {
		ignored[i] = v.XPath
	}
	res.ignored = xpathmatch.New(cfg.Namespaces, ignored)
	res.forcedFlatten = xpathmatch.New(cfg.Namespaces, cfg.ForcedFlattenedXPaths)
	res.disabledFlatten = xpathmatch.New(
		cfg.Namespaces, cfg.DisabledFlattenedXPaths,
	)

	cons := make([]string, len(cfg.ChildrenConstraints))
	res.constraintsIdx = make(map[string][]string)
	for i, v := range cfg.ChildrenConstraints {
		cons[i] = v.XPath
	}
	res.constraints = xpathmatch.New(cfg.Namespaces, cons)
	return res
}

// Registry returns the namespace prefixes used in XPaths of the result.
func (a *Analyzer) Registry() *Registry {
	return a.reg
}

// Analyze returns top-level feature classes. Nested classes are
// reachable through FeatureClass.Nested.
func (a *Analyzer) Analyze() ([]*model.FeatureClass, error) {
	a.discover()
	a.compileMatchers()

	var err error
	for pass := 0; pass < 2; pass++ {
		for _, ns := range a.set.RootNamespaces {
			for _, e := range a.set.ElementsOf(ns) {
				if err = a.considerTopLevel(e, pass); err != nil {
					return nil, err
				}
			}
		}
	}

	for e := range a.top {
		a.nameCount[e.Name.Local]++
	}

	// instantiation may promote recursive elements, extending topOrder
	for i := 0; i < len(a.topOrder); i++ {
		e := a.topOrder[i]
		fc, ok, err := a.instantiate(e)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, AnalyzerUnresolvedError(a.xpathOf(e))
		}
		if fc != nil {
			a.classes = append(a.classes, fc)
		}
	}

	a.launderClassNames()

	slog.Info("Schemas analyzed",
		"top-elements", len(a.topOrder),
		"classes", len(a.classes),
	)
	return a.classes, nil
}

func (a *Analyzer) discover() {
	for _, e := range a.set.Elements {
		switch e.Name.Space {
		case xsd.NamespaceXS, xsd.NamespaceXSI, xsd.NamespaceXMLNS,
			xsd.NamespaceXLink:
			continue
		}
		a.reg.Prefix(e.Name.Space)
		if head := e.SubstitutionGroup; head != nil {
			a.substitutions[head] = append(a.substitutions[head], e)
		}
	}

	// Only elements deriving from a GML feature become top-level classes
	// when the schemas define such elements outside of GML itself.
	if !a.cfg.InstantiateGMLFeaturesOnly {
		return
	}
	for _, e := range a.set.Elements {
		if !a.reg.IsGMLNamespace(e.Name.Space) && a.derivesFromGMLFeature(e) {
			a.featuresOnly = true
			return
		}
	}
}

// compileMatchers rewrites pattern prefixes once every namespace used by
// global elements got its prefix.
func (a *Analyzer) compileMatchers() {
	uriToPrefix := a.reg.URIToPrefix()
	a.ignored.SetDocumentMapURIToPrefix(uriToPrefix)
	a.forcedFlatten.SetDocumentMapURIToPrefix(uriToPrefix)
	a.disabledFlatten.SetDocumentMapURIToPrefix(uriToPrefix)
	a.constraints.SetDocumentMapURIToPrefix(uriToPrefix)
	for _, v := range a.cfg.ChildrenConstraints {
		children := make([]string, 0, len(v.Children))
		for _, c := range v.Children {
			children = append(children, a.rewriteXPath(c))
		}
		a.constraintsIdx[v.XPath] = children
	}
}

// rewriteXPath converts a prefix:name using configured prefixes to the
// prefixes of analyzed documents.
func (a *Analyzer) rewriteXPath(s string) string {
	prefix, local, ok := strings.Cut(s, ":")
	if !ok {
		return s
	}
	uri, ok := a.cfg.Namespaces[prefix]
	if !ok {
		return s
	}
	return a.reg.XPath(uri, local)
}

func (a *Analyzer) considerTopLevel(e *xsd.Element, pass int) error {
	if e.Abstract || !isFCCompatible(e) {
		return nil
	}
	xpath := a.xpathOf(e)
	if a.isIgnored(xpath) {
		slog.Debug("Element is in ignored XPaths", "xpath", xpath)
		return nil
	}
	if a.featuresOnly && !a.derivesFromGMLFeature(e) {
		return nil
	}

	if pass == 0 {
		if a.topXPaths[xpath] {
			return nil
		}
		a.visited[e] = true
		a.promote(e, xpath)
		return nil
	}

	mg := e.ComplexType().ModelGroup()
	if mg == nil {
		return nil
	}
	simpleEnough := true
	return a.findTopLevel(xpath, mg, 0, make(map[*xsd.ModelGroup]bool), &simpleEnough)
}

func (a *Analyzer) promote(e *xsd.Element, xpath string) {
	a.top[e] = true
	a.topOrder = append(a.topOrder, e)
	a.topXPaths[xpath] = true
}

// derivesFromGMLFeature walks substitution group heads looking for
// gml:AbstractFeature or gml:_Feature.
func (a *Analyzer) derivesFromGMLFeature(e *xsd.Element) bool {
	cur := e.SubstitutionGroup
	for i := 0; cur != nil && i < maxDepth; i++ {
		if a.isGMLFeatureElement(cur) {
			return true
		}
		cur = cur.SubstitutionGroup
	}
	return false
}

func (a *Analyzer) isGMLFeatureElement(e *xsd.Element) bool {
	return a.reg.IsGMLNamespace(e.Name.Space) &&
		(e.Name.Local == "AbstractFeature" || e.Name.Local == "_Feature")
}

// isFCCompatible tells if an element may be mapped to a feature class.
func isFCCompatible(e *xsd.Element) bool {
	ct := e.ComplexType()
	if ct == nil || e.Name.Local == "FeatureCollection" {
		return false
	}
	return ct.ContentType == xsd.ContentElementOnly ||
		ct.ContentType == xsd.ContentMixed
}

func (a *Analyzer) xpathOf(e *xsd.Element) string {
	return a.reg.XPath(e.Name.Space, e.Name.Local)
}

func (a *Analyzer) isIgnored(xpath string) bool {
	_, ok := a.ignored.MatchesRefXPath(xpath)
	return ok
}

// implementations returns non-abstract, feature compatible members of
// the substitution group of e, recursively. When a children constraint
// matches xpath, only the listed members are kept.
func (a *Analyzer) implementations(
	e *xsd.Element,
	xpath string,
) []*xsd.Element {
	var res []*xsd.Element
	seen := make(map[*xsd.Element]bool)
	var collect func(*xsd.Element, int)
	collect = func(head *xsd.Element, depth int) {
		if depth > maxDepth {
			return
		}
		for _, sub := range a.substitutions[head] {
			if seen[sub] {
				continue
			}
			seen[sub] = true
			if !sub.Abstract && isFCCompatible(sub) {
				res = append(res, sub)
			}
			collect(sub, depth+1)
		}
	}
	collect(e, 0)

	pattern, ok := a.constraints.MatchesRefXPath(xpath)
	if !ok {
		return res
	}
	allowed := make(map[string]bool)
	for _, v := range a.constraintsIdx[pattern] {
		allowed[v] = true
	}
	filtered := res[:0]
	for _, v := range res {
		if allowed[a.xpathOf(v)] {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// geometryType tells if a GML type is a geometry property type.
func (a *Analyzer) geometryType(t xsd.Type) (model.GeometryType, bool) {
	if t == nil {
		return 0, false
	}
	name := t.TypeName()
	if !a.reg.IsGMLNamespace(name.Space) {
		return 0, false
	}
	switch name.Local {
	case "GeometryPropertyType", "MultiSolidPropertyType",
		"CompositeSolidPropertyType", "GeometricComplexPropertyType",
		"SolidPropertyType":
		return model.GeometryUnknown, true
	case "PointPropertyType":
		return model.GeometryPoint, true
	case "PolygonPropertyType", "SurfacePropertyType",
		"CompositeSurfacePropertyType":
		return model.GeometryPolygon, true
	case "LineStringPropertyType", "CurvePropertyType",
		"CompositeCurvePropertyType":
		return model.GeometryLineString, true
	case "MultiPointPropertyType":
		return model.GeometryMultiPoint, true
	case "MultiPolygonPropertyType", "MultiSurfacePropertyType":
		return model.GeometryMultiPolygon, true
	case "MultiLineStringPropertyType", "MultiCurvePropertyType":
		return model.GeometryMultiLineString, true
	case "MultiGeometryPropertyType":
		return model.GeometryCollection, true
	}
	return 0, false
}

func (a *Analyzer) isGMLReferenceType(t xsd.Type) bool {
	if t == nil {
		return false
	}
	name := t.TypeName()
	return a.reg.IsGMLNamespace(name.Space) && name.Local == "ReferenceType"
}

// referencedElement returns the element named by a gml targetElement
// annotation of e.
func (a *Analyzer) referencedElement(e *xsd.Element) *xsd.Element {
	target := e.Annotation.TargetElement
	if target == (xml.Name{}) || !a.isGMLReferenceType(e.Type) {
		return nil
	}
	return a.set.Element(target)
}

// findTopLevel explores the content of parentXPath and promotes elements
// that must become top-level classes: elements met more than once whose
// content is not simple enough to be flattened, and realizations of
// substitution groups.
func (a *Analyzer) findTopLevel(
	parentXPath string,
	mg *xsd.ModelGroup,
	depth int,
	visitedMG map[*xsd.ModelGroup]bool,
	simpleEnough *bool,
) error {
	alreadyVisited := visitedMG[mg]
	visitedMG[mg] = true
	if depth == maxDepth {
		return AnalyzerTooDeepError(parentXPath)
	}

	for _, p := range mg.Particles {
		if p.IsRepeated() {
			*simpleEnough = false
		}
		switch term := p.Term.(type) {
		case *xsd.Element:
			if err := a.findTopLevelElement(
				parentXPath, term, depth, visitedMG, simpleEnough,
			); err != nil {
				return err
			}
		case *xsd.ModelGroup:
			if alreadyVisited {
				continue
			}
			if err := a.findTopLevel(
				parentXPath, term, depth+1, visitedMG, simpleEnough,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Analyzer) findTopLevelElement(
	parentXPath string,
	e *xsd.Element,
	depth int,
	visitedMG map[*xsd.ModelGroup]bool,
	simpleEnough *bool,
) error {
	xpath := a.xpathOf(e)
	fullXPath := parentXPath + "/" + xpath
	if a.isIgnored(fullXPath) {
		return nil
	}

	ct := e.ComplexType()
	var eltMG *xsd.ModelGroup
	if ct != nil {
		eltMG = ct.ModelGroup()
		if eltMG != nil && countSubElements(eltMG, 0) >
			a.cfg.MaximumFieldsForFlattening {
			*simpleEnough = false
		}
	}

	impls := a.implementations(e, fullXPath)

	if _, ok := a.geometryType(e.Type); ok {
		return nil
	}
	if e.Abstract && a.reg.IsGMLNamespace(e.Name.Space) &&
		!a.isGMLFeatureElement(e) {
		return nil
	}

	if len(impls) > 0 {
		if !e.Abstract {
			impls = append([]*xsd.Element{e}, impls...)
		}
		for _, sub := range impls {
			subXPath := a.xpathOf(sub)
			if a.isIgnored(parentXPath + "/" + subXPath) {
				continue
			}
			if a.top[sub] || a.topXPaths[subXPath] {
				continue
			}
			a.visited[sub] = true
			a.promote(sub, subXPath)
			subMG := sub.ComplexType().ModelGroup()
			if subMG == nil || visitedMG[subMG] {
				continue
			}
			subSimple := true
			if err := a.findTopLevel(
				subXPath, subMG, depth+1, visitedMG, &subSimple,
			); err != nil {
				return err
			}
		}
		return nil
	}

	if e.Abstract || ct == nil {
		return nil
	}

	if isFCCompatible(e) {
		*simpleEnough = false
	}
	_, disabled := a.disabledFlatten.MatchesRefXPath(fullXPath)
	switch {
	case disabled && isFCCompatible(e) && !a.top[e] && !a.topXPaths[xpath]:
		a.visited[e] = true
		a.promote(e, xpath)
		if eltMG != nil && !visitedMG[eltMG] {
			subSimple := true
			if err := a.findTopLevel(
				xpath, eltMG, depth+1, visitedMG, &subSimple,
			); err != nil {
				return err
			}
		}
	case a.visited[e]:
		if !a.top[e] && !a.simpleEnoughElt(e, fullXPath) &&
			!a.topXPaths[xpath] {
			a.promote(e, xpath)
		}
	default:
		a.visited[e] = true
		if eltMG != nil && !visitedMG[eltMG] {
			subSimple := true
			if err := a.findTopLevel(
				fullXPath, eltMG, depth+1, visitedMG, &subSimple,
			); err != nil {
				return err
			}
			if subSimple {
				a.simple[e] = true
			} else {
				*simpleEnough = false
			}
		}
	}

	target := a.referencedElement(e)
	if target == nil || target.Abstract || !isFCCompatible(target) {
		return nil
	}
	targetXPath := a.xpathOf(target)
	if a.isIgnored(targetXPath) {
		return nil
	}
	if !a.top[target] && !a.topXPaths[targetXPath] {
		a.visited[target] = true
		a.promote(target, targetXPath)
	}
	targetMG := target.ComplexType().ModelGroup()
	if targetMG == nil || visitedMG[targetMG] {
		return nil
	}
	subSimple := true
	return a.findTopLevel(
		targetXPath, targetMG, depth+1, visitedMG, &subSimple,
	)
}

// simpleEnoughElt tells if a complex element met more than once can still
// be flattened into every parent.
func (a *Analyzer) simpleEnoughElt(e *xsd.Element, fullXPath string) bool {
	if _, ok := a.forcedFlatten.MatchesRefXPath(fullXPath); ok {
		return true
	}
	return a.simple[e]
}

// countSubElements counts element particles of a model group, nested
// groups included.
func countSubElements(mg *xsd.ModelGroup, depth int) int {
	if depth > maxDepth {
		return 0
	}
	var res int
	for _, p := range mg.Particles {
		switch term := p.Term.(type) {
		case *xsd.Element:
			res++
		case *xsd.ModelGroup:
			res += countSubElements(term, depth+1)
		}
	}
	return res
}
