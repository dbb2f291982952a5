package ioreader

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// geomKey identifies a geometry column.
type geomKey struct {
	layer string
	idx   int
}

func (r *Reader) processGeometry(root *etree.Element) {
	f := r.cur.feature
	idx := r.curGeomField
	if f == nil || idx < 0 || idx >= len(f.Layer.GeomFields) {
		return
	}
	def := &f.Layer.GeomFields[idx]
	srsName := root.SelectAttrValue("srsName", "")

	if r.firstPass {
		key := geomKey{f.Layer.Name, idx}
		if srsName != "" && r.unknownSRS[key] {
			def.SRSName = srsName
			delete(r.unknownSRS, key)
		}
		// marks the column as used
		f.SetGeom(idx, orb.Point{})
		return
	}

	g, err := parseGML(root)
	if err != nil {
		slog.Debug("Non-recognized geometry",
			"layer", f.Layer.Name, "field", def.Name, "error", err)
		return
	}

	switch r.cfg.Reader.SwapCoordinates {
	case "yes":
		g = project.Geometry(g, swapXY)
	case "auto":
		if srsName != "" && r.isLatLong(srsName) {
			g = project.Geometry(g, swapXY)
		}
	}

	if srsName != "" && def.SRSName != "" && def.SRSName != srsName {
		var ok bool
		g, ok = reproject(g, srsName, def.SRSName)
		if !ok {
			r.warn("Reprojection failed", "from", srsName, "to", def.SRSName)
			return
		}
	}

	// repeated geometries accumulate in a collection
	if prev := f.Geom(idx); prev != nil {
		if c, ok := prev.(orb.Collection); ok {
			g = append(c, g)
		} else {
			g = orb.Collection{prev, g}
		}
	}
	f.SetGeom(idx, g)
}

func swapXY(p orb.Point) orb.Point {
	return orb.Point{p[1], p[0]}
}

// isLatLong tells if the CRS named srsName has latitude (or northing)
// first in its authority axis order.
func (r *Reader) isLatLong(srsName string) bool {
	if v, ok := r.swapAxes[srsName]; ok {
		return v
	}
	res := LatLongOrder(srsName)
	r.swapAxes[srsName] = res
	return res
}

// LatLongOrder tells if coordinates of srsName are written with latitude
// (or northing) first. Only URN and http URI forms of lat/long EPSG codes
// imply that order.
func LatLongOrder(srsName string) bool {
	code, authorityOrder := epsgCode(srsName)
	return authorityOrder && isLatLongCode(code)
}

// epsgCode extracts the EPSG code from common srsName forms. The second
// value tells if the form implies the axis order of the EPSG registry
// (URN and http URI forms) instead of the traditional x/y order.
func epsgCode(srsName string) (int, bool) {
	s := strings.TrimSpace(srsName)
	lower := strings.ToLower(s)

	var num string
	authority := false
	switch {
	case strings.HasPrefix(lower, "urn:ogc:def:crs:epsg:"),
		strings.HasPrefix(lower, "urn:x-ogc:def:crs:epsg:"):
		num = s[strings.LastIndexByte(s, ':')+1:]
		authority = true
	case strings.HasPrefix(lower, "http://www.opengis.net/def/crs/epsg/"):
		num = s[strings.LastIndexByte(s, '/')+1:]
		authority = true
	case strings.Contains(lower, "epsg.xml#"):
		num = s[strings.LastIndexByte(s, '#')+1:]
	case strings.HasPrefix(lower, "epsg:"):
		num = s[len("epsg:"):]
	default:
		return 0, false
	}
	code, err := strconv.Atoi(num)
	if err != nil {
		return 0, false
	}
	return code, authority
}

func isLatLongCode(code int) bool {
	switch {
	case code >= 4000 && code < 5000:
		return true
	case code == 3034, code == 3035, code == 2180, code == 3006:
		return true
	case code >= 31466 && code <= 31469:
		return true
	}
	return false
}

// normalizeCode maps aliases of Web Mercator to 3857.
func normalizeCode(code int) int {
	switch code {
	case 900913, 3785:
		return 3857
	}
	return code
}

// reproject supports transformations between WGS84 and Web Mercator.
func reproject(g orb.Geometry, from, to string) (orb.Geometry, bool) {
	fromCode, _ := epsgCode(from)
	toCode, _ := epsgCode(to)
	fromCode, toCode = normalizeCode(fromCode), normalizeCode(toCode)
	if fromCode == 0 || toCode == 0 {
		return nil, false
	}
	switch {
	case fromCode == toCode:
		return g, true
	case fromCode == 4326 && toCode == 3857:
		return project.Geometry(g, project.WGS84.ToMercator), true
	case fromCode == 3857 && toCode == 4326:
		return project.Geometry(g, project.Mercator.ToWGS84), true
	}
	return nil, false
}

var errNoCoordinates = errors.New("no coordinates")

// parseGML converts a GML 2 or 3 geometry element.
func parseGML(e *etree.Element) (orb.Geometry, error) {
	switch e.Tag {
	case "Point":
		pts, err := points(e)
		if err != nil {
			return nil, err
		}
		return pts[0], nil

	case "LineString", "LineStringSegment", "Curve", "OrientableCurve":
		return curve(e)

	case "LinearRing", "Ring":
		return ring(e)

	case "Polygon", "PolygonPatch", "Rectangle", "Triangle":
		return polygon(e)

	case "Surface", "PolyhedralSurface", "TriangulatedSurface":
		var res orb.MultiPolygon
		for _, patches := range e.ChildElements() {
			for _, p := range patches.ChildElements() {
				poly, err := polygon(p)
				if err != nil {
					return nil, err
				}
				res = append(res, poly)
			}
		}
		if len(res) == 1 {
			return res[0], nil
		}
		return res, nil

	case "MultiPoint":
		var res orb.MultiPoint
		for _, m := range members(e) {
			g, err := parseGML(m)
			if err != nil {
				return nil, err
			}
			if p, ok := g.(orb.Point); ok {
				res = append(res, p)
			}
		}
		return res, nil

	case "MultiCurve", "MultiLineString", "CompositeCurve":
		var res orb.MultiLineString
		for _, m := range members(e) {
			g, err := parseGML(m)
			if err != nil {
				return nil, err
			}
			switch v := g.(type) {
			case orb.LineString:
				res = append(res, v)
			case orb.MultiLineString:
				res = append(res, v...)
			}
		}
		return res, nil

	case "MultiSurface", "MultiPolygon", "CompositeSurface", "Shell":
		var res orb.MultiPolygon
		for _, m := range members(e) {
			g, err := parseGML(m)
			if err != nil {
				return nil, err
			}
			switch v := g.(type) {
			case orb.Polygon:
				res = append(res, v)
			case orb.MultiPolygon:
				res = append(res, v...)
			}
		}
		return res, nil

	case "MultiGeometry", "GeometricComplex":
		var res orb.Collection
		for _, m := range members(e) {
			g, err := parseGML(m)
			if err != nil {
				return nil, err
			}
			res = append(res, g)
		}
		return res, nil

	case "Envelope", "Box":
		pts, err := envelopeCorners(e)
		if err != nil {
			return nil, err
		}
		return orb.MultiPoint(pts).Bound().ToPolygon(), nil
	}
	return nil, fmt.Errorf("unsupported geometry %s", e.FullTag())
}

// members returns geometries held by member properties of a collection.
func members(e *etree.Element) []*etree.Element {
	var res []*etree.Element
	for _, c := range e.ChildElements() {
		if !strings.HasSuffix(c.Tag, "Member") &&
			!strings.HasSuffix(c.Tag, "Members") {
			continue
		}
		res = append(res, c.ChildElements()...)
	}
	return res
}

func curve(e *etree.Element) (orb.LineString, error) {
	switch e.Tag {
	case "Curve":
		var res orb.LineString
		segs := e.SelectElement("segments")
		if segs == nil {
			return nil, errNoCoordinates
		}
		for _, s := range segs.ChildElements() {
			pts, err := points(s)
			if err != nil {
				return nil, err
			}
			if len(res) > 0 && len(pts) > 0 && res[len(res)-1] == pts[0] {
				pts = pts[1:]
			}
			res = append(res, pts...)
		}
		return res, nil
	case "OrientableCurve":
		base := e.SelectElement("baseCurve")
		inner := firstElement(base)
		if inner == nil {
			return nil, errNoCoordinates
		}
		res, err := curve(inner)
		if err != nil {
			return nil, err
		}
		if e.SelectAttrValue("orientation", "+") == "-" {
			res.Reverse()
		}
		return res, nil
	}
	pts, err := points(e)
	if err != nil {
		return nil, err
	}
	return orb.LineString(pts), nil
}

func ring(e *etree.Element) (orb.Ring, error) {
	if e.Tag != "Ring" {
		pts, err := points(e)
		if err != nil {
			return nil, err
		}
		return orb.Ring(pts), nil
	}
	var res orb.Ring
	for _, m := range members(e) {
		ls, err := curve(m)
		if err != nil {
			return nil, err
		}
		if len(res) > 0 && len(ls) > 0 && res[len(res)-1] == ls[0] {
			ls = ls[1:]
		}
		res = append(res, ls...)
	}
	return res, nil
}

func polygon(e *etree.Element) (orb.Polygon, error) {
	var res orb.Polygon
	for _, c := range e.ChildElements() {
		switch c.Tag {
		case "exterior", "outerBoundaryIs", "interior", "innerBoundaryIs":
		default:
			continue
		}
		inner := firstElement(c)
		if inner == nil {
			continue
		}
		r, err := ring(inner)
		if err != nil {
			return nil, err
		}
		if c.Tag == "exterior" || c.Tag == "outerBoundaryIs" {
			res = append(orb.Polygon{r}, res...)
			continue
		}
		res = append(res, r)
	}
	if len(res) == 0 {
		return nil, errNoCoordinates
	}
	return res, nil
}

func envelopeCorners(e *etree.Element) ([]orb.Point, error) {
	lower, upper := e.SelectElement("lowerCorner"), e.SelectElement("upperCorner")
	if lower != nil && upper != nil {
		lo, err := parsePos(lower.Text())
		if err != nil {
			return nil, err
		}
		hi, err := parsePos(upper.Text())
		if err != nil {
			return nil, err
		}
		return []orb.Point{lo, hi}, nil
	}
	pts, err := points(e)
	if err != nil {
		return nil, err
	}
	if len(pts) < 2 {
		return nil, errNoCoordinates
	}
	return pts, nil
}

// points collects coordinates of a simple geometry element.
func points(e *etree.Element) ([]orb.Point, error) {
	var res []orb.Point
	for _, c := range e.ChildElements() {
		switch c.Tag {
		case "posList":
			pts, err := parsePosList(c.Text(), srsDimension(c))
			if err != nil {
				return nil, err
			}
			res = append(res, pts...)
		case "pos":
			p, err := parsePos(c.Text())
			if err != nil {
				return nil, err
			}
			res = append(res, p)
		case "coordinates":
			pts, err := parseCoordinates(c)
			if err != nil {
				return nil, err
			}
			res = append(res, pts...)
		case "coord":
			p, err := parseCoord(c)
			if err != nil {
				return nil, err
			}
			res = append(res, p)
		case "pointProperty", "pointRep":
			if pt := firstElement(c); pt != nil {
				pts, err := points(pt)
				if err != nil {
					return nil, err
				}
				res = append(res, pts...)
			}
		}
	}
	if len(res) == 0 {
		return nil, errNoCoordinates
	}
	return res, nil
}

// srsDimension looks for the dimension on the element and its ancestors.
func srsDimension(e *etree.Element) int {
	for p := e; p != nil; p = p.Parent() {
		if s := p.SelectAttrValue("srsDimension", ""); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				return n
			}
		}
	}
	return 2
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	res := make([]float64, len(fields))
	for i, v := range fields {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		res[i] = f
	}
	return res, nil
}

func parsePos(s string) (orb.Point, error) {
	vals, err := parseFloats(s)
	if err != nil {
		return orb.Point{}, err
	}
	if len(vals) < 2 {
		return orb.Point{}, errNoCoordinates
	}
	return orb.Point{vals[0], vals[1]}, nil
}

func parsePosList(s string, dim int) ([]orb.Point, error) {
	vals, err := parseFloats(s)
	if err != nil {
		return nil, err
	}
	if dim < 2 || len(vals)%dim != 0 {
		return nil, fmt.Errorf("posList of %d values for dimension %d", len(vals), dim)
	}
	res := make([]orb.Point, 0, len(vals)/dim)
	for i := 0; i < len(vals); i += dim {
		res = append(res, orb.Point{vals[i], vals[i+1]})
	}
	return res, nil
}

// parseCoordinates reads the GML 2 gml:coordinates encoding.
func parseCoordinates(e *etree.Element) ([]orb.Point, error) {
	cs := e.SelectAttrValue("cs", ",")
	ts := e.SelectAttrValue("ts", " ")
	dec := e.SelectAttrValue("decimal", ".")
	text := strings.TrimSpace(e.Text())

	var tuples []string
	if strings.TrimSpace(ts) == "" {
		tuples = strings.Fields(text)
	} else {
		tuples = strings.Split(text, ts)
	}

	var res []orb.Point
	for _, t := range tuples {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if dec != "." {
			t = strings.ReplaceAll(t, dec, ".")
		}
		parts := strings.Split(t, cs)
		if len(parts) < 2 {
			return nil, fmt.Errorf("bad coordinate tuple %q", t)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, err
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, err
		}
		res = append(res, orb.Point{x, y})
	}
	return res, nil
}

func parseCoord(e *etree.Element) (orb.Point, error) {
	xe, ye := e.SelectElement("X"), e.SelectElement("Y")
	if xe == nil || ye == nil {
		return orb.Point{}, errNoCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xe.Text()), 64)
	if err != nil {
		return orb.Point{}, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ye.Text()), 64)
	if err != nil {
		return orb.Point{}, err
	}
	return orb.Point{x, y}, nil
}
