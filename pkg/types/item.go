// Package types defines the STAC documents produced by stac-table.
package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const (
	// StacVersion is the STAC specification version written into documents.
	StacVersion = "1.0.0"

	// ParquetMediaType is the media type of parquet assets.
	// https://issues.apache.org/jira/browse/PARQUET-1889: parquet doesn't
	// officially have a type yet.
	ParquetMediaType = "application/x-parquet"

	// TableSchemaURI identifies the table extension.
	TableSchemaURI = "https://stac-extensions.github.io/table/v1.2.0/schema.json"

	// ProjectionSchemaURI identifies the projection extension.
	ProjectionSchemaURI = "https://stac-extensions.github.io/projection/v1.1.0/schema.json"

	// ItemAssetsSchemaURI identifies the item-assets extension.
	ItemAssetsSchemaURI = "https://stac-extensions.github.io/item-assets/v1.0.0/schema.json"

	// ItemSchemaURI is the core STAC item JSON schema.
	ItemSchemaURI = "https://schemas.stacspec.org/v1.0.0/item-spec/json-schema/item.json"

	// CollectionSchemaURI is the core STAC collection JSON schema.
	CollectionSchemaURI = "https://schemas.stacspec.org/v1.0.0/collection-spec/json-schema/collection.json"
)

// Property keys written by the generator.
const (
	PropDatetime      = "datetime"
	PropStartDatetime = "start_datetime"
	PropEndDatetime   = "end_datetime"
	PropTableColumns  = "table:columns"
	PropTableRowCount = "table:row_count"
	PropTableTables   = "table:tables"
	PropProjEPSG      = "proj:epsg"
	PropProjJSON      = "proj:projjson"
	PropProjBBox      = "proj:bbox"
	PropProjGeometry  = "proj:geometry"
)

// Item is a STAC Item: a GeoJSON feature describing a single dataset.
type Item struct {
	ID             string
	StacVersion    string
	StacExtensions []string
	Geometry       *geojson.Geometry
	BBox           []float64
	Datetime       *time.Time
	Properties     map[string]interface{}
	Links          []Link
	Assets         map[string]*Asset
	Collection     string

	// ExtraFields holds top-level fields not modelled above.
	ExtraFields map[string]interface{}
}

// NewItem creates an item with the given id, datetime and empty properties.
func NewItem(id string, datetime *time.Time) *Item {
	return &Item{
		ID:          id,
		StacVersion: StacVersion,
		Datetime:    datetime,
		Properties:  make(map[string]interface{}),
		Assets:      make(map[string]*Asset),
	}
}

// SetGeometry encodes g as the item's GeoJSON geometry.
func (it *Item) SetGeometry(g geom.T) error {
	if g == nil {
		it.Geometry = nil
		return nil
	}
	enc, err := geojson.Encode(g)
	if err != nil {
		return fmt.Errorf("failed to encode geometry: %w", err)
	}
	it.Geometry = enc
	return nil
}

// DecodeGeometry returns the item's geometry, or nil when unset.
func (it *Item) DecodeGeometry() (geom.T, error) {
	if it.Geometry == nil {
		return nil, nil
	}
	return it.Geometry.Decode()
}

// HasExtension reports whether uri is listed in stac_extensions.
func (it *Item) HasExtension(uri string) bool {
	return containsString(it.StacExtensions, uri)
}

// AddExtension appends uri to stac_extensions if it is not present yet.
func (it *Item) AddExtension(uri string) {
	if !it.HasExtension(uri) {
		it.StacExtensions = append(it.StacExtensions, uri)
	}
}

// AddAsset sets the asset under key, replacing any existing asset.
func (it *Item) AddAsset(key string, asset *Asset) {
	if it.Assets == nil {
		it.Assets = make(map[string]*Asset)
	}
	it.Assets[key] = asset
}

// Columns returns the item's table:columns property.
func (it *Item) Columns() []Column {
	switch v := it.Properties[PropTableColumns].(type) {
	case []Column:
		return v
	case []interface{}:
		// Decoded from JSON.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var cols []Column
		if err := json.Unmarshal(raw, &cols); err != nil {
			return nil
		}
		return cols
	default:
		return nil
	}
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	cp := &Item{
		ID:             it.ID,
		StacVersion:    it.StacVersion,
		StacExtensions: cloneStrings(it.StacExtensions),
		Geometry:       cloneGeometry(it.Geometry),
		BBox:           cloneFloats(it.BBox),
		Properties:     cloneMap(it.Properties),
		Links:          cloneLinks(it.Links),
		Collection:     it.Collection,
		ExtraFields:    cloneMap(it.ExtraFields),
	}
	if it.Datetime != nil {
		dt := *it.Datetime
		cp.Datetime = &dt
	}
	if it.Assets != nil {
		cp.Assets = make(map[string]*Asset, len(it.Assets))
		for k, a := range it.Assets {
			cp.Assets[k] = a.Clone()
		}
	}
	return cp
}

// MarshalJSON encodes the item as a GeoJSON feature.
func (it Item) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(it.ExtraFields)+9)
	for k, v := range it.ExtraFields {
		doc[k] = v
	}

	props := make(map[string]interface{}, len(it.Properties)+1)
	for k, v := range it.Properties {
		props[k] = v
	}
	if it.Datetime != nil {
		props[PropDatetime] = FormatDatetime(*it.Datetime)
	} else {
		props[PropDatetime] = nil
	}

	version := it.StacVersion
	if version == "" {
		version = StacVersion
	}
	extensions := it.StacExtensions
	if extensions == nil {
		extensions = []string{}
	}
	links := it.Links
	if links == nil {
		links = []Link{}
	}
	assets := it.Assets
	if assets == nil {
		assets = map[string]*Asset{}
	}

	doc["type"] = "Feature"
	doc["stac_version"] = version
	doc["stac_extensions"] = extensions
	doc["id"] = it.ID
	if it.Geometry != nil {
		doc["geometry"] = it.Geometry
	} else {
		doc["geometry"] = nil
	}
	if it.BBox != nil {
		doc["bbox"] = it.BBox
	}
	doc["properties"] = props
	doc["links"] = links
	doc["assets"] = assets
	if it.Collection != "" {
		doc["collection"] = it.Collection
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a GeoJSON feature into the item.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*it = Item{}
	for key, value := range raw {
		var err error
		switch key {
		case "type":
			// Always "Feature".
		case "stac_version":
			err = json.Unmarshal(value, &it.StacVersion)
		case "stac_extensions":
			err = json.Unmarshal(value, &it.StacExtensions)
		case "id":
			err = json.Unmarshal(value, &it.ID)
		case "geometry":
			if string(value) != "null" {
				it.Geometry = &geojson.Geometry{}
				err = json.Unmarshal(value, it.Geometry)
			}
		case "bbox":
			err = json.Unmarshal(value, &it.BBox)
		case "properties":
			err = json.Unmarshal(value, &it.Properties)
		case "links":
			err = json.Unmarshal(value, &it.Links)
		case "assets":
			err = json.Unmarshal(value, &it.Assets)
		case "collection":
			err = json.Unmarshal(value, &it.Collection)
		default:
			var v interface{}
			err = json.Unmarshal(value, &v)
			if it.ExtraFields == nil {
				it.ExtraFields = make(map[string]interface{})
			}
			it.ExtraFields[key] = v
		}
		if err != nil {
			return fmt.Errorf("decoding item field %q: %w", key, err)
		}
	}

	if it.Properties == nil {
		it.Properties = make(map[string]interface{})
	}
	if dt, ok := it.Properties[PropDatetime]; ok {
		delete(it.Properties, PropDatetime)
		if s, ok := dt.(string); ok {
			parsed, err := ParseDatetime(s)
			if err != nil {
				return fmt.Errorf("decoding item datetime: %w", err)
			}
			it.Datetime = &parsed
		}
	}
	return nil
}

// FormatDatetime formats t as an RFC 3339 UTC timestamp with a "Z" suffix.
func FormatDatetime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseDatetime parses an RFC 3339 timestamp.
func ParseDatetime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
