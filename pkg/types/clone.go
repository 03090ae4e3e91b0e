package types

import (
	"encoding/json"

	"github.com/twpayne/go-geom/encoding/geojson"
)

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneFloats(f []float64) []float64 {
	if f == nil {
		return nil
	}
	return append([]float64(nil), f...)
}

func cloneLinks(links []Link) []Link {
	if links == nil {
		return nil
	}
	return append([]Link(nil), links...)
}

func cloneGeometry(g *geojson.Geometry) *geojson.Geometry {
	if g == nil {
		return nil
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return g
	}
	cp := &geojson.Geometry{}
	if err := json.Unmarshal(raw, cp); err != nil {
		return g
	}
	return cp
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the value shapes found in STAC documents.
// Unknown types are copied through a JSON round trip.
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, bool, string, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return t
	case map[string]interface{}:
		return cloneMap(t)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return cloneStrings(t)
	case []float64:
		return cloneFloats(t)
	case []Column:
		return cloneColumns(t)
	case []TableDescriptor:
		return append([]TableDescriptor(nil), t...)
	case *geojson.Geometry:
		return cloneGeometry(t)
	case json.RawMessage:
		return append(json.RawMessage(nil), t...)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return t
		}
		var out interface{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return t
		}
		return out
	}
}
