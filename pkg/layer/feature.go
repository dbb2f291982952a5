package layer

import (
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gnames/gmlas/pkg/model"
	"github.com/paulmach/orb"
	"github.com/tidwall/sjson"
)

// nullValue marks a field explicitly set to null, as opposed to a field
// that was never set.
type nullValue struct{}

// Feature is one row of a layer. Values are nil when unset, otherwise
// one of string, int32, int64, float64, bool, time.Time, []byte or a
// slice of the scalar types.
type Feature struct {
	Layer *Layer
	FID   int64

	values []any
	geoms  []orb.Geometry
}

// NewFeature creates an empty feature of the layer.
func (l *Layer) NewFeature(fid int64) *Feature {
	return &Feature{
		Layer:  l,
		FID:    fid,
		values: make([]any, len(l.Fields)),
		geoms:  make([]orb.Geometry, len(l.GeomFields)),
	}
}

// Len returns the number of attribute values.
func (f *Feature) Len() int {
	return len(f.values)
}

// IsSet tells if field i received a value, null included.
func (f *Feature) IsSet(i int) bool {
	return i >= 0 && i < len(f.values) && f.values[i] != nil
}

// IsNull tells if field i was explicitly set to null.
func (f *Feature) IsNull(i int) bool {
	if !f.IsSet(i) {
		return false
	}
	_, ok := f.values[i].(nullValue)
	return ok
}

// Value returns the value of field i, nil when unset or null.
func (f *Feature) Value(i int) any {
	if !f.IsSet(i) || f.IsNull(i) {
		return nil
	}
	return f.values[i]
}

// Set stores a typed value in field i.
func (f *Feature) Set(i int, v any) {
	if i >= 0 && i < len(f.values) {
		f.values[i] = v
	}
}

// SetNull marks field i as null.
func (f *Feature) SetNull(i int) {
	f.Set(i, nullValue{})
}

// Geom returns geometry i.
func (f *Feature) Geom(i int) orb.Geometry {
	if i < 0 || i >= len(f.geoms) {
		return nil
	}
	return f.geoms[i]
}

// SetGeom stores geometry i.
func (f *Feature) SetGeom(i int, g orb.Geometry) {
	if i >= 0 && i < len(f.geoms) {
		f.geoms[i] = g
	}
}

// SetString converts s to the type of field i and stores it. Values that
// cannot be converted leave the field unset. An empty string sets only
// mandatory string fields.
func (f *Feature) SetString(i int, s string) {
	if i < 0 || i >= len(f.values) {
		return
	}
	def := &f.Layer.Fields[i]
	if s == "" {
		if def.Type == String && !def.Nullable {
			f.values[i] = ""
		}
		return
	}

	if def.Type.IsList() {
		if cf := f.Layer.ClassField(i); cf != nil && cf.List {
			f.SetStrings(i, strings.Fields(s))
			return
		}
		f.SetStrings(i, []string{s})
		return
	}

	if def.Type == Binary {
		v, err := f.decodeBinary(i, s)
		if err != nil {
			slog.Debug("Cannot decode binary value",
				"field", def.Name, "error", err)
			return
		}
		f.values[i] = v
		return
	}

	v, ok := convert(def.Type, s)
	if !ok {
		slog.Debug("Cannot convert value",
			"field", def.Name, "type", def.Type.String(), "value", s)
		return
	}
	f.values[i] = v
}

func (f *Feature) decodeBinary(i int, s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if cf := f.Layer.ClassField(i); cf != nil &&
		cf.Type == model.FieldTypeHexBinary {
		return hex.DecodeString(s)
	}
	return base64.StdEncoding.DecodeString(s)
}

// SetStrings converts values to the list type of field i and stores
// them.
func (f *Feature) SetStrings(i int, vals []string) {
	if i < 0 || i >= len(f.values) {
		return
	}
	name := f.Layer.Fields[i].Name
	switch f.Layer.Fields[i].Type {
	case IntegerList:
		f.values[i] = convertList[int32](name, Integer, vals)
	case Integer64List:
		f.values[i] = convertList[int64](name, Integer64, vals)
	case RealList:
		f.values[i] = convertList[float64](name, Real, vals)
	case BooleanList:
		f.values[i] = convertList[bool](name, Boolean, vals)
	default:
		f.values[i] = append([]string(nil), vals...)
	}
}

// convertList keeps the values that convert to t, others are dropped.
func convertList[T any](name string, t Type, vals []string) []T {
	res := make([]T, 0, len(vals))
	for _, v := range vals {
		c, ok := convert(t, v)
		if !ok {
			slog.Debug("Cannot convert list value",
				"field", name, "type", t.String(), "value", v)
			continue
		}
		res = append(res, c.(T))
	}
	return res
}

var (
	dateLayouts = []string{"2006-01-02", "2006-01-02Z07:00"}
	timeLayouts = []string{
		"15:04:05", "15:04:05.999999999", "15:04:05Z07:00",
		"15:04:05.999999999Z07:00",
	}
	dateTimeLayouts = []string{
		time.RFC3339Nano, "2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999999", "2006-01-02",
	}
)

func parseTime(layouts []string, s string) (time.Time, bool) {
	for _, v := range layouts {
		if t, err := time.Parse(v, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func convert(t Type, s string) (any, bool) {
	s = strings.TrimSpace(s)
	switch t {
	case Integer:
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, false
		}
		return int32(v), true
	case Integer64:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case Real:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case Boolean:
		return s == "true" || s == "1", true
	case Date:
		v, ok := parseTime(dateLayouts, s)
		return v, ok
	case Time:
		v, ok := parseTime(timeLayouts, s)
		return v, ok
	case DateTime:
		v, ok := parseTime(dateTimeLayouts, s)
		return v, ok
	default:
		return s, true
	}
}

// Text returns the value of field i as text, empty for unset or null
// values. Lists are rendered as JSON arrays.
func (f *Feature) Text(i int) string {
	v := f.Value(i)
	if v == nil {
		return ""
	}
	return FormatValue(f.Layer.Fields[i].Type, v)
}

// FormatValue renders a value of type t as text.
func FormatValue(t Type, v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		switch t {
		case Date:
			return val.Format("2006-01-02")
		case Time:
			return val.Format("15:04:05.999999999")
		default:
			return val.Format(time.RFC3339Nano)
		}
	case []byte:
		return hex.EncodeToString(val)
	case []string:
		return jsonArray(val)
	case []int32:
		return jsonArray(val)
	case []int64:
		return jsonArray(val)
	case []float64:
		return jsonArray(val)
	case []bool:
		return jsonArray(val)
	default:
		return ""
	}
}

func jsonArray[T any](vals []T) string {
	res := "[]"
	for _, v := range vals {
		res, _ = sjson.Set(res, "-1", v)
	}
	return res
}
