package iowriter

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/gnames/gmlas/internal/ioreader"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/project"
)

// writeGeometry writes a WKT value as a GML 3.2 geometry. Coordinates go
// back to latitude first for SRS names that imply this order.
func (w *Writer) writeGeometry(
	e *etree.Element,
	steps []string,
	v any,
	srs string,
) {
	s := text(v)
	if s == "" || len(steps) == 0 {
		return
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		slog.Warn("Cannot parse stored geometry", "value", s, "error", err)
		return
	}
	if ioreader.LatLongOrder(srs) {
		g = project.Geometry(g, func(p orb.Point) orb.Point {
			return orb.Point{p[1], p[0]}
		})
	}

	parent := ensurePath(e, steps[:len(steps)-1])
	pe := parent.CreateElement(steps[len(steps)-1])
	if ge := w.gmlGeometry(pe, g); ge != nil && srs != "" {
		ge.CreateAttr("srsName", srs)
	}
}

// gmlGeometry appends the GML element of g to parent.
func (w *Writer) gmlGeometry(parent *etree.Element, g orb.Geometry) *etree.Element {
	var e *etree.Element
	create := func(name string) {
		e = parent.CreateElement(w.gmlPrefix + ":" + name)
		w.geomID++
		e.CreateAttr(w.gmlPrefix+":id", "geom."+strconv.Itoa(w.geomID))
	}

	switch val := g.(type) {
	case orb.Point:
		create("Point")
		w.gml(e, "pos").SetText(posList([]orb.Point{val}))
	case orb.LineString:
		create("LineString")
		w.gml(e, "posList").SetText(posList(val))
	case orb.Ring:
		create("LinearRing")
		w.gml(e, "posList").SetText(posList(val))
	case orb.Polygon:
		create("Polygon")
		for i, r := range val {
			boundary := "interior"
			if i == 0 {
				boundary = "exterior"
			}
			ring := w.gml(w.gml(e, boundary), "LinearRing")
			w.gml(ring, "posList").SetText(posList(r))
		}
	case orb.MultiPoint:
		create("MultiPoint")
		for _, p := range val {
			w.gmlGeometry(w.gml(e, "pointMember"), p)
		}
	case orb.MultiLineString:
		create("MultiCurve")
		for _, ls := range val {
			w.gmlGeometry(w.gml(e, "curveMember"), ls)
		}
	case orb.MultiPolygon:
		create("MultiSurface")
		for _, p := range val {
			w.gmlGeometry(w.gml(e, "surfaceMember"), p)
		}
	case orb.Collection:
		create("MultiGeometry")
		for _, v := range val {
			w.gmlGeometry(w.gml(e, "geometryMember"), v)
		}
	default:
		slog.Warn("Geometry type is not supported", "type", g.GeoJSONType())
	}
	return e
}

func (w *Writer) gml(parent *etree.Element, name string) *etree.Element {
	return parent.CreateElement(w.gmlPrefix + ":" + name)
}

func posList(ps []orb.Point) string {
	res := make([]string, 0, 2*len(ps))
	for _, p := range ps {
		res = append(res,
			strconv.FormatFloat(p[0], 'f', -1, 64),
			strconv.FormatFloat(p[1], 'f', -1, 64),
		)
	}
	return strings.Join(res, " ")
}
