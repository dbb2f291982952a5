package layer

import (
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/gnames/gmlas/pkg/config"
	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/schema"
)

// Set holds all layers of a conversion in creation order: every class
// is followed by its nested classes, depth first.
type Set struct {
	Layers []*Layer

	// URIToPrefix maps namespace URIs to prefixes used in XPaths.
	URIToPrefix map[string]string

	// Schemas lists the analyzed schema locations.
	Schemas []model.URIFilename

	byXPath map[string]*Layer
	byName  map[string]*Layer
}

// NewSet materializes classes into layers.
func NewSet(
	cfg *config.Config,
	classes []*model.FeatureClass,
	uriToPrefix map[string]string,
) *Set {
	res := &Set{
		URIToPrefix: uriToPrefix,
	}
	var add func(fc *model.FeatureClass, parent *Layer)
	add = func(fc *model.FeatureClass, parent *Layer) {
		l := newLayer(fc, parent, cfg.Analyzer.AlwaysGenerateOGRID)
		res.Layers = append(res.Layers, l)
		for _, v := range fc.Nested {
			add(v, l)
		}
	}
	for _, v := range classes {
		add(v, nil)
	}

	rawContent := cfg.XLink.ResolutionEnabled
	for _, l := range res.Layers {
		l.postInit(rawContent)
	}
	res.reindex()

	for _, l := range res.Layers {
		for i := range l.Class.Fields {
			f := &l.Class.Fields[i]
			if f.RelatedClassXPath != "" && res.LayerByXPath(f.RelatedClassXPath) == nil {
				slog.Debug("Cannot find layer of related class",
					"layer", l.Name, "xpath", f.RelatedClassXPath,
				)
			}
		}
	}
	return res
}

func (s *Set) reindex() {
	s.byXPath = make(map[string]*Layer, len(s.Layers))
	s.byName = make(map[string]*Layer, len(s.Layers))
	for _, l := range s.Layers {
		if _, ok := s.byXPath[l.Class.XPath]; !ok {
			s.byXPath[l.Class.XPath] = l
		}
		s.byName[l.Name] = l
	}
}

// LayerByXPath returns the layer of the class with the given XPath.
func (s *Set) LayerByXPath(xpath string) *Layer {
	return s.byXPath[xpath]
}

// LayerByName returns a layer by its name.
func (s *Set) LayerByName(name string) *Layer {
	return s.byName[name]
}

// Remove deletes layers from the set.
func (s *Set) Remove(layers ...*Layer) {
	s.Layers = slices.DeleteFunc(s.Layers, func(l *Layer) bool {
		return slices.Contains(layers, l)
	})
	s.reindex()
}

// Add appends a layer created after analysis, such as a layer of SWE
// array values.
func (s *Set) Add(l *Layer) {
	s.Layers = append(s.Layers, l)
	s.reindex()
}

// NewChildLayer creates a layer for dynamic content of parent. It has a
// generated primary key and a parent key.
func NewChildLayer(name, xpath string, parent *Layer, fields []FieldDef) *Layer {
	res := newLayer(&model.FeatureClass{Name: name, XPath: xpath}, parent, false)
	res.postInit(false)
	for _, v := range fields {
		v.ClassField = -1
		res.Fields = append(res.Fields, v)
	}
	res.reindex()
	return res
}

// Metadata describes layers, fields and relationships of the set.
func (s *Set) Metadata() schema.Metadata {
	var res schema.Metadata
	for _, l := range s.Layers {
		res.Layers = append(res.Layers, s.layerMetadata(l))
		if l.Class.IsJunction() {
			continue
		}
		res.Fields = append(res.Fields, s.fieldsMetadata(l)...)
		res.Relationships = append(res.Relationships, s.relationships(l)...)
	}
	for _, v := range s.Schemas {
		res.Other = append(res.Other, schema.OtherMetadata{
			Key:   "schema:" + v.URI,
			Value: v.Location,
		})
	}
	for _, uri := range slices.Sorted(maps.Keys(s.URIToPrefix)) {
		res.Other = append(res.Other, schema.OtherMetadata{
			Key:   "namespace:" + s.URIToPrefix[uri],
			Value: uri,
		})
	}
	return res
}

func (s *Set) layerMetadata(l *Layer) schema.LayerMetadata {
	res := schema.LayerMetadata{
		LayerName:          l.Name,
		LayerXPath:         l.Class.XPath,
		LayerCategory:      l.Category(),
		LayerDocumentation: l.Class.Documentation,
	}
	if l.idField >= 0 {
		res.LayerPKIDName = l.Fields[l.idField].Name
	}
	if l.parentIDField >= 0 {
		res.LayerParentPKIDName = l.Fields[l.parentIDField].Name
	}
	return res
}

func (s *Set) fieldsMetadata(l *Layer) []schema.FieldMetadata {
	var res []schema.FieldMetadata
	colOf := make(map[int]int)
	for i, v := range l.Fields {
		if v.ClassField >= 0 {
			colOf[v.ClassField] = i
		}
	}
	next := len(l.Fields)

	for i := range l.Class.Fields {
		f := &l.Class.Fields[i]
		if f.Ignored {
			continue
		}
		m := schema.FieldMetadata{
			LayerName:                 l.Name,
			FieldName:                 f.Name,
			FieldXPath:                f.XPath,
			FieldAlternativeXPath:     strings.Join(f.AlternateXPaths, ","),
			FieldType:                 f.TypeName,
			FieldIsList:               f.Array || f.List,
			FieldMinOccurs:            f.MinOccurs,
			FieldMaxOccurs:            f.MaxOccurs,
			FieldRepetitionOnSequence: f.RepetitionOnSequence,
			FieldDefaultValue:         f.DefaultValue,
			FieldFixedValue:           f.FixedValue,
			FieldCategory:             f.Category.String(),
			FieldDocumentation:        f.Documentation,
		}
		if idx, ok := colOf[i]; ok {
			m.FieldIndex = idx
			m.FieldName = l.Fields[idx].Name
		} else {
			m.FieldIndex = next
			next++
		}
		if f.RelatedClassXPath != "" {
			if rl := s.LayerByXPath(f.RelatedClassXPath); rl != nil {
				m.FieldRelatedLayer = rl.Name
			}
		}
		if f.Category == model.PathToChildElementWithJunctionTable {
			jxpath := f.AbstractElementXPath + "|" + f.RelatedClassXPath
			if jl := s.LayerByXPath(jxpath); jl != nil {
				m.FieldJunctionLayer = jl.Name
			}
		}
		res = append(res, m)
	}
	return res
}

func (s *Set) relationships(l *Layer) []schema.LayerRelationship {
	var res []schema.LayerRelationship
	if l.idField < 0 {
		return nil
	}
	pkid := l.Fields[l.idField].Name
	for i := range l.Class.Fields {
		f := &l.Class.Fields[i]
		if f.RelatedClassXPath == "" || f.Ignored {
			continue
		}
		rl := s.LayerByXPath(f.RelatedClassXPath)
		if rl == nil {
			continue
		}
		rel := schema.LayerRelationship{
			ParentLayer:       l.Name,
			ParentPKID:        pkid,
			ParentElementName: f.Name,
			ChildLayer:        rl.Name,
		}
		switch f.Category {
		case model.PathToChildElementNoLink, model.Group:
			if rl.parentIDField >= 0 {
				rel.ChildPKID = rl.Fields[rl.parentIDField].Name
			}
		default:
			if rl.idField >= 0 {
				rel.ChildPKID = rl.Fields[rl.idField].Name
			}
		}
		res = append(res, rel)
	}
	return res
}
