package ioreader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/gnames/gmlas/pkg/layer"
	"github.com/gnames/gmlas/pkg/model"
	"github.com/gnames/gmlas/pkg/xsd"
)

// FirstPassResult describes what the first pass learned and changed.
type FirstPassResult struct {
	// Done is false when nothing required reading the document.
	Done bool

	// Features is the number of features seen.
	Features int

	RemovedLayers []string
	RemovedFields int
	AddedFields   int
	AddedLayers   []string
}

type fieldUsage struct {
	fields []bool
	geoms  []bool
}

// RunFirstPass reads the whole document without emitting values and
// adjusts the layer set: unused layers and fields are removed, geometry
// columns get the SRS of their first geometry, columns derived from
// xlink:href rules and SWE content are added. The reader is spent
// afterwards, a new one must be created for the second pass.
func (r *Reader) RunFirstPass(ctx context.Context) (*FirstPassResult, error) {
	res := &FirstPassResult{}
	for _, l := range r.set.Layers {
		for i, v := range l.GeomFields {
			if v.SRSName == "" {
				r.unknownSRS[geomKey{l.Name, i}] = true
			}
		}
	}
	if !r.needFirstPass() {
		return res, nil
	}
	res.Done = true
	r.firstPass = true

	usage := make(map[*layer.Layer]*fieldUsage)
	for {
		f, err := r.NextFeature(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}
		res.Features++
		u := usage[f.Layer]
		if u == nil {
			u = &fieldUsage{
				fields: make([]bool, len(f.Layer.Fields)),
				geoms:  make([]bool, len(f.Layer.GeomFields)),
			}
			usage[f.Layer] = u
		}
		for i := range u.fields {
			if f.IsSet(i) {
				u.fields[i] = true
			}
		}
		for i := range u.geoms {
			if f.Geom(i) != nil {
				u.geoms[i] = true
			}
		}
	}

	if r.cfg.Reader.RemoveUnusedLayers {
		r.removeUnusedLayers(usage, res)
	}
	if r.cfg.Reader.RemoveUnusedFields {
		r.removeUnusedFields(usage, res)
	}
	r.addXLinkFields(res)
	r.applyPending(res)

	slog.Info("First pass is done",
		"document", r.name,
		"features", res.Features,
		"removed-layers", len(res.RemovedLayers),
		"removed-fields", res.RemovedFields,
		"added-fields", res.AddedFields,
	)
	return res, nil
}

func (r *Reader) needFirstPass() bool {
	rc := r.cfg.Reader
	switch {
	case rc.RemoveUnusedLayers, rc.RemoveUnusedFields:
		return true
	case len(r.unknownSRS) > 0:
		return true
	case len(r.cfg.XLink.Rules) > 0:
		return true
	}
	_, hasSWE := r.set.URIToPrefix[xsd.NamespaceSWE]
	return hasSWE && (rc.SWEProcessDataRecord || rc.SWEProcessDataArray)
}

func (r *Reader) removeUnusedLayers(
	usage map[*layer.Layer]*fieldUsage,
	res *FirstPassResult,
) {
	var unused []*layer.Layer
	for _, l := range r.set.Layers {
		if usage[l] == nil {
			unused = append(unused, l)
			res.RemovedLayers = append(res.RemovedLayers, l.Name)
		}
	}
	if len(unused) == 0 {
		return
	}
	slog.Debug("Removing unused layers", "layers", res.RemovedLayers)
	r.set.Remove(unused...)
}

func (r *Reader) removeUnusedFields(
	usage map[*layer.Layer]*fieldUsage,
	res *FirstPassResult,
) {
	for _, l := range r.set.Layers {
		u := usage[l]
		if u == nil || l.Class.IsJunction() {
			continue
		}
		for i := len(u.fields) - 1; i >= 0; i-- {
			if u.fields[i] || i == l.IDField() || i == l.ParentIDField() {
				continue
			}
			if l.RemoveField(i) {
				res.RemovedFields++
			}
		}
		for i := len(u.geoms) - 1; i >= 0; i-- {
			if !u.geoms[i] && l.RemoveGeomField(i) {
				res.RemovedFields++
			}
		}
	}
}

// addXLinkFields creates columns for hrefs that matched URL rules. They
// follow the href column in rule order.
func (r *Reader) addXLinkFields(res *FirstPassResult) {
	for _, l := range r.set.Layers {
		byXPath := r.xlinkFields[l]
		if byXPath == nil {
			continue
		}
		for _, attrXPath := range slices.Sorted(maps.Keys(byXPath)) {
			hrefIdx := l.FieldIndex(attrXPath)
			if hrefIdx < 0 {
				continue
			}
			hrefName := l.Fields[hrefIdx].Name
			pos := hrefIdx + 1
			for _, ri := range slices.Sorted(maps.Keys(byXPath[attrXPath])) {
				rule := r.cfg.XLink.Rules[ri]
				var defs []layer.FieldDef
				switch rule.ResolutionMode {
				case modeRawContent:
					defs = append(defs, layer.FieldDef{
						Name:     layer.DerivedName(hrefName, "rawcontent"),
						Type:     layer.String,
						Nullable: true,
						XPath:    model.RawContentXPath(attrXPath),
					})
				case modeFieldsFromXPath:
					for _, v := range rule.Fields {
						defs = append(defs, layer.FieldDef{
							Name:     layer.DerivedName(hrefName, v.Name),
							Type:     xlinkFieldType(v.Type),
							Nullable: true,
							XPath:    model.DerivedXPath(attrXPath, v.Name),
						})
					}
				}
				for _, def := range defs {
					if l.FieldIndex(def.XPath) >= 0 {
						continue
					}
					def.ClassField = -1
					l.InsertField(pos, def)
					pos++
					res.AddedFields++
				}
			}
		}
	}
}

// applyPending adds SWE columns and layers found in the first pass.
func (r *Reader) applyPending(res *FirstPassResult) {
	offsets := make(map[string]int)
	for _, v := range r.pending.fields {
		l := v.layer
		if !slices.Contains(r.set.Layers, l) {
			continue
		}
		after := l.FieldIndex(v.afterXPath)
		if after < 0 {
			continue
		}
		key := l.Name + "\x00" + v.afterXPath
		offsets[key]++
		v.def.ClassField = -1
		l.InsertField(after+offsets[key], v.def)
		res.AddedFields++
	}
	for _, l := range r.pending.layers {
		if l.Parent != nil && !slices.Contains(r.set.Layers, l.Parent) {
			continue
		}
		r.set.Add(l)
		res.AddedLayers = append(res.AddedLayers, l.Name)
	}
}
