package spatial

import (
	"encoding/json"
	"strings"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// GeoMetadataKey is the Parquet file metadata key of GeoParquet.
const GeoMetadataKey = "geo"

// EncodingWKB is the only geometry encoding read.
const EncodingWKB = "WKB"

// GeoMetadata is the decoded GeoParquet "geo" file metadata.
type GeoMetadata struct {
	Version       string                    `json:"version"`
	PrimaryColumn string                    `json:"primary_column"`
	Columns       map[string]GeoColumnMeta `json:"columns"`
}

// GeoColumnMeta describes one geometry column.
type GeoColumnMeta struct {
	Encoding      string          `json:"encoding"`
	GeometryTypes []string        `json:"geometry_types,omitempty"`
	CRS           json.RawMessage `json:"crs,omitempty"`
	BBox          []float64       `json:"bbox,omitempty"`
}

// ParseGeoMetadata decodes and checks a "geo" metadata value.
func ParseGeoMetadata(value string) (*GeoMetadata, error) {
	var md GeoMetadata
	if err := json.Unmarshal([]byte(value), &md); err != nil {
		return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeMissingGeoMetadata,
			"malformed geo metadata", err)
	}
	if md.PrimaryColumn == "" {
		return nil, stacerrors.NewInvalidArgument(stacerrors.CodeMissingGeoMetadata,
			"geo metadata has no primary_column")
	}
	if _, ok := md.Columns[md.PrimaryColumn]; !ok {
		return nil, stacerrors.NewInvalidArgumentf(stacerrors.CodeMissingGeoMetadata,
			"geo metadata does not describe primary column %q", md.PrimaryColumn)
	}
	for name, col := range md.Columns {
		if col.Encoding != "" && !strings.EqualFold(col.Encoding, EncodingWKB) {
			return nil, stacerrors.NewInvalidArgumentf(stacerrors.CodeUnsupportedType,
				"geometry column %q has unsupported encoding %q", name, col.Encoding)
		}
	}
	return &md, nil
}

// ColumnBBox returns the bbox recorded for a column, when present and well formed.
func (m *GeoMetadata) ColumnBBox(column string) (Box, bool) {
	col, ok := m.Columns[column]
	if !ok {
		return Box{}, false
	}
	return BoxFromSlice(col.BBox)
}

// ColumnCRS returns the CRS of a geometry column.
func (m *GeoMetadata) ColumnCRS(column string) (CRS, error) {
	col, ok := m.Columns[column]
	if !ok {
		return CRS{}, stacerrors.NewNotFound(stacerrors.CodeColumnNotFound,
			"column "+column+" is not a geometry column")
	}
	return ParseCRS(col.CRS)
}
