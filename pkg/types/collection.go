package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Provider roles.
const (
	ProviderRoleProducer  = "producer"
	ProviderRoleLicensor  = "licensor"
	ProviderRoleProcessor = "processor"
	ProviderRoleHost      = "host"
)

// Provider describes an organization that captures, processes or hosts data.
type Provider struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Roles       []string `json:"roles,omitempty" yaml:"roles"`
	URL         string   `json:"url,omitempty" yaml:"url"`
}

// SpatialExtent holds one or more bounding boxes; the first covers all others.
type SpatialExtent struct {
	BBox [][]float64 `json:"bbox"`
}

// TemporalExtent holds one or more time intervals. A nil bound is open.
type TemporalExtent struct {
	Interval [][2]*time.Time
}

// MarshalJSON encodes intervals as pairs of RFC 3339 strings or nulls.
func (t TemporalExtent) MarshalJSON() ([]byte, error) {
	intervals := make([][2]interface{}, len(t.Interval))
	for i, iv := range t.Interval {
		for j, bound := range iv {
			if bound != nil {
				intervals[i][j] = FormatDatetime(*bound)
			}
		}
	}
	return json.Marshal(map[string]interface{}{"interval": intervals})
}

// UnmarshalJSON decodes intervals of RFC 3339 strings or nulls.
func (t *TemporalExtent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Interval [][2]*string `json:"interval"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Interval = make([][2]*time.Time, len(raw.Interval))
	for i, iv := range raw.Interval {
		for j, bound := range iv {
			if bound == nil {
				continue
			}
			parsed, err := ParseDatetime(*bound)
			if err != nil {
				return fmt.Errorf("decoding temporal extent: %w", err)
			}
			t.Interval[i][j] = &parsed
		}
	}
	return nil
}

// Extent is the spatial and temporal extent of a collection.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

// Collection is a STAC Collection grouping related items.
type Collection struct {
	ID             string
	StacVersion    string
	StacExtensions []string
	Title          string
	Description    string
	Keywords       []string
	License        string
	Providers      []Provider
	Extent         Extent
	Links          []Link
	Assets         map[string]*Asset
	ItemAssets     map[string]*ItemAsset

	// ExtraFields holds top-level fields such as "table:columns",
	// "table:tables" and "msft:*".
	ExtraFields map[string]interface{}
}

// NewCollection creates a collection with the given id, description and extent.
func NewCollection(id, description string, extent Extent) *Collection {
	return &Collection{
		ID:          id,
		StacVersion: StacVersion,
		Description: description,
		License:     "proprietary",
		Extent:      extent,
		ExtraFields: make(map[string]interface{}),
	}
}

// AddExtension appends uri to stac_extensions if it is not present yet.
func (c *Collection) AddExtension(uri string) {
	if !containsString(c.StacExtensions, uri) {
		c.StacExtensions = append(c.StacExtensions, uri)
	}
}

// MarshalJSON encodes the collection.
func (c Collection) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(c.ExtraFields)+12)
	for k, v := range c.ExtraFields {
		doc[k] = v
	}

	version := c.StacVersion
	if version == "" {
		version = StacVersion
	}
	extensions := c.StacExtensions
	if extensions == nil {
		extensions = []string{}
	}
	links := c.Links
	if links == nil {
		links = []Link{}
	}

	doc["type"] = "Collection"
	doc["stac_version"] = version
	doc["stac_extensions"] = extensions
	doc["id"] = c.ID
	doc["description"] = c.Description
	doc["license"] = c.License
	doc["extent"] = c.Extent
	doc["links"] = links
	if c.Title != "" {
		doc["title"] = c.Title
	}
	if len(c.Keywords) > 0 {
		doc["keywords"] = c.Keywords
	}
	if len(c.Providers) > 0 {
		doc["providers"] = c.Providers
	}
	if len(c.Assets) > 0 {
		doc["assets"] = c.Assets
	}
	if len(c.ItemAssets) > 0 {
		doc["item_assets"] = c.ItemAssets
	}
	return json.Marshal(doc)
}
