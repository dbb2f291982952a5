// Package xsd is an in-memory model of XML Schema components: element
// declarations, type definitions, model groups, particles, attributes and
// wildcards.
//
// The model keeps the particle structure of content models (sequences,
// choices, nested groups, occurrence bounds), which the schema analyzer
// needs to decide how elements are mapped to tables. Named model groups,
// global element declarations and named types are shared pointers, so
// identity comparison detects reuse and recursion.
package xsd

import (
	"encoding/xml"
	"math"
	"strings"
)

// Unbounded is the value of MaxOccurs for maxOccurs="unbounded".
const Unbounded = math.MaxInt32

// Well known namespaces.
const (
	NamespaceXS    = "http://www.w3.org/2001/XMLSchema"
	NamespaceXSI   = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceXMLNS = "http://www.w3.org/2000/xmlns/"
	NamespaceXML   = "http://www.w3.org/XML/1998/namespace"
	NamespaceXLink = "http://www.w3.org/1999/xlink"
	NamespaceGML   = "http://www.opengis.net/gml"
	NamespaceGML32 = "http://www.opengis.net/gml/3.2"
	NamespaceSWE   = "http://www.opengis.net/swe/2.0"
)

// IsGMLNamespace tells if uri is one of GML namespaces.
func IsGMLNamespace(uri string) bool {
	return strings.HasPrefix(uri, NamespaceGML)
}

// Compositor of a model group.
type Compositor int

const (
	Sequence Compositor = iota
	Choice
	All
)

// ContentType of a complex type.
type ContentType int

const (
	ContentEmpty ContentType = iota
	ContentSimple
	ContentElementOnly
	ContentMixed
)

// Variety of a simple type.
type Variety int

const (
	Atomic Variety = iota
	List
	Union
)

// Term is the content of a particle: *Element, *ModelGroup or *Wildcard.
type Term interface {
	isTerm()
}

// Particle is a term with occurrence bounds.
type Particle struct {
	MinOccurs int
	MaxOccurs int
	Term      Term
}

// IsRepeated tells if the particle may occur more than once.
func (p *Particle) IsRepeated() bool {
	return p.MaxOccurs > 1
}

// ModelGroup is a sequence, choice or all group.
type ModelGroup struct {
	Compositor Compositor
	Particles  []*Particle
	// Name is set for groups coming from a named xs:group definition.
	Name xml.Name
}

func (*ModelGroup) isTerm() {}

// Wildcard is xs:any or xs:anyAttribute.
type Wildcard struct {
	Namespace       string
	ProcessContents string
}

func (*Wildcard) isTerm() {}

// Annotation holds documentation and GML specific application information.
type Annotation struct {
	Documentation string
	// TargetElement is the resolved content of a gml targetElement appinfo.
	TargetElement xml.Name
}

// Element is an element declaration.
type Element struct {
	Name     xml.Name
	Type     Type
	Abstract bool
	Nillable bool
	// Global is true for top-level declarations.
	Global bool
	// SubstitutionGroup is the head of the substitution group.
	SubstitutionGroup *Element
	Fixed             string
	Default           string
	Annotation        Annotation
}

func (*Element) isTerm() {}

// ComplexType returns the complex type of the element or nil.
func (e *Element) ComplexType() *ComplexType {
	if ct, ok := e.Type.(*ComplexType); ok {
		return ct
	}
	return nil
}

// SimpleType returns the simple type of the element or nil.
func (e *Element) SimpleType() *SimpleType {
	if st, ok := e.Type.(*SimpleType); ok {
		return st
	}
	return nil
}

// Type is *ComplexType or *SimpleType.
type Type interface {
	TypeName() xml.Name
	isType()
}

// Derivation method of a complex type.
type Derivation int

const (
	Restriction Derivation = iota
	Extension
)

// ComplexType is a complex type definition. Particle and AttributeUses
// describe the effective content, inherited parts included.
type ComplexType struct {
	Name       xml.Name
	Abstract   bool
	Base       Type
	Derivation Derivation

	ContentType ContentType
	Particle    *Particle

	AttributeUses     []*AttributeUse
	AttributeWildcard *Wildcard

	// SimpleContent is the value type for ContentSimple.
	SimpleContent *SimpleType

	Annotation Annotation
}

func (t *ComplexType) TypeName() xml.Name { return t.Name }
func (*ComplexType) isType()              {}

// DerivesFrom tells if the type or one of its ancestors has the name.
func (t *ComplexType) DerivesFrom(name xml.Name) bool {
	var cur Type = t
	for i := 0; cur != nil && i < 100; i++ {
		if cur.TypeName() == name {
			return true
		}
		ct, ok := cur.(*ComplexType)
		if !ok || ct.Base == cur {
			return false
		}
		cur = ct.Base
	}
	return false
}

// IsAnyType tells if the type is xs:anyType or behaves like it: derived
// from anyType with a single wildcard as content.
func (t *ComplexType) IsAnyType() bool {
	if t.Name == AnyTypeName {
		return true
	}
	if t.Base == nil || t.Base.TypeName() != AnyTypeName {
		return false
	}
	if t.Particle == nil {
		return false
	}
	mg, ok := t.Particle.Term.(*ModelGroup)
	if !ok || len(mg.Particles) != 1 {
		return false
	}
	_, ok = mg.Particles[0].Term.(*Wildcard)
	return ok
}

// ModelGroup returns the top model group of the content or nil.
func (t *ComplexType) ModelGroup() *ModelGroup {
	if t.Particle == nil {
		return nil
	}
	mg, _ := t.Particle.Term.(*ModelGroup)
	return mg
}

// AnyTypeName is the name of xs:anyType.
var AnyTypeName = xml.Name{Space: NamespaceXS, Local: "anyType"}

// SimpleType is a simple type definition.
type SimpleType struct {
	Name     xml.Name
	Base     *SimpleType
	Variety  Variety
	ItemType *SimpleType
	// MaxLength comes from length or maxLength facets, 0 if absent.
	MaxLength int
	// Builtin is true for types of the XML Schema namespace.
	Builtin bool
}

func (t *SimpleType) TypeName() xml.Name { return t.Name }
func (*SimpleType) isType()              {}

// BuiltinName climbs the derivation chain to the first builtin type and
// returns its local name, together with the largest length facet found
// on the way.
func (t *SimpleType) BuiltinName() (string, int) {
	var width int
	cur := t
	for i := 0; cur != nil && i < 100; i++ {
		if cur.MaxLength > width {
			width = cur.MaxLength
		}
		if cur.Builtin {
			return cur.Name.Local, width
		}
		if cur.Variety == Union {
			return "string", width
		}
		cur = cur.Base
	}
	return "string", width
}

// Attribute is an attribute declaration.
type Attribute struct {
	Name       xml.Name
	Type       *SimpleType
	Fixed      string
	Default    string
	Annotation Annotation
}

// AttributeUse binds an attribute declaration to a complex type.
type AttributeUse struct {
	Attribute *Attribute
	Required  bool
	Fixed     string
	Default   string
}

// FixedValue returns the fixed value of the use or of the declaration.
func (u *AttributeUse) FixedValue() string {
	if u.Fixed != "" {
		return u.Fixed
	}
	return u.Attribute.Fixed
}

// DefaultValue returns the default value of the use or of the declaration.
func (u *AttributeUse) DefaultValue() string {
	if u.Default != "" {
		return u.Default
	}
	return u.Attribute.Default
}

// Set is a collection of loaded schemas.
type Set struct {
	// Namespaces lists target namespaces in load order.
	Namespaces []string
	// RootNamespaces lists target namespaces of the schemas that were
	// requested explicitly, as opposed to imported ones.
	RootNamespaces []string
	// Elements lists global element declarations in document order.
	Elements []*Element
	// Prefixes maps namespace URIs to prefixes declared in schema
	// documents.
	Prefixes map[string]string

	elementIdx map[xml.Name]*Element
	types      map[xml.Name]Type
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{
		Prefixes:   make(map[string]string),
		elementIdx: make(map[xml.Name]*Element),
		types:      make(map[xml.Name]Type),
	}
}

// AddElement registers a global element declaration.
func (s *Set) AddElement(e *Element) {
	if _, ok := s.elementIdx[e.Name]; ok {
		return
	}
	s.elementIdx[e.Name] = e
	s.Elements = append(s.Elements, e)
}

// AddType registers a named type definition.
func (s *Set) AddType(t Type) {
	s.types[t.TypeName()] = t
}

// AddNamespace registers a target namespace once.
func (s *Set) AddNamespace(ns string) {
	for _, v := range s.Namespaces {
		if v == ns {
			return
		}
	}
	s.Namespaces = append(s.Namespaces, ns)
}

// AddRootNamespace registers the namespace of a requested schema once.
func (s *Set) AddRootNamespace(ns string) {
	for _, v := range s.RootNamespaces {
		if v == ns {
			return
		}
	}
	s.RootNamespaces = append(s.RootNamespaces, ns)
}

// Element finds a global element declaration.
func (s *Set) Element(name xml.Name) *Element {
	return s.elementIdx[name]
}

// Type finds a named type definition.
func (s *Set) Type(name xml.Name) Type {
	return s.types[name]
}

// ElementsOf returns global elements of a namespace in document order.
func (s *Set) ElementsOf(ns string) []*Element {
	var res []*Element
	for _, v := range s.Elements {
		if v.Name.Space == ns {
			res = append(res, v)
		}
	}
	return res
}
