// Package catalog assembles STAC Collections around generated items and
// writes items and collections to a local directory or object storage.
package catalog

import (
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/spatial"
	"github.com/stactable/stac-table/pkg/types"
)

// CollectionSpec describes a collection. It is usually read from the
// collection section of a batch manifest or a standalone YAML file.
type CollectionSpec struct {
	ID          string           `yaml:"id"`
	Title       string           `yaml:"title"`
	Description string           `yaml:"description"`
	Keywords    []string         `yaml:"keywords"`
	License     string           `yaml:"license"`
	Providers   []types.Provider `yaml:"providers"`
	Extent      ExtentSpec       `yaml:"extent"`

	// LicenseLink adds a link with rel=license.
	LicenseLink *LinkSpec `yaml:"license_link"`

	// Thumbnail adds a "thumbnail" asset.
	Thumbnail *ThumbnailSpec `yaml:"thumbnail"`

	// ExtraFields are copied to the top level of the collection,
	// e.g. msft:short_description or msft:container.
	ExtraFields map[string]interface{} `yaml:"extra_fields"`

	// AssetKey names the item asset describing every item's data asset.
	AssetKey string `yaml:"asset_key"`

	// AssetExtraFields are inlined in the item asset, e.g. table:storage_options.
	AssetExtraFields map[string]interface{} `yaml:"asset_extra_fields"`

	// Tables lists the tables of a multi-table collection.
	Tables []types.TableDescriptor `yaml:"tables"`
}

// ExtentSpec is the spatial and temporal extent of a collection. Interval
// bounds are RFC 3339 timestamps or dates; an empty bound, "null" or ".."
// leaves the interval open.
type ExtentSpec struct {
	BBox     [][]float64 `yaml:"bbox"`
	Interval [][]string  `yaml:"interval"`
}

// LinkSpec is a link to a document.
type LinkSpec struct {
	Href      string `yaml:"href"`
	Title     string `yaml:"title"`
	MediaType string `yaml:"type"`
}

// ThumbnailSpec is the collection's preview image.
type ThumbnailSpec struct {
	Href      string `yaml:"href"`
	Title     string `yaml:"title"`
	MediaType string `yaml:"type"`
}

// LoadCollectionSpec reads a collection spec from a YAML or JSON file.
func LoadCollectionSpec(path string) (CollectionSpec, error) {
	var spec CollectionSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, readError("collection spec", path, err)
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidDocument,
			"parse collection spec "+path, err)
	}
	return spec, nil
}

// BuildCollection creates the collection described by spec. Columns, when
// given, are recorded as table:columns.
func BuildCollection(spec CollectionSpec, columns []types.Column) (*types.Collection, error) {
	return buildCollection(spec, columns, nil)
}

// buildCollection takes the extent parts left unset in spec from fallback.
func buildCollection(spec CollectionSpec, columns []types.Column, fallback *types.Extent) (*types.Collection, error) {
	if spec.ID == "" {
		return nil, stacerrors.NewInvalidArgument(stacerrors.CodeMissingOption, "collection id is required")
	}
	if spec.Description == "" {
		return nil, stacerrors.NewInvalidArgumentf(stacerrors.CodeMissingOption,
			"collection %q has no description", spec.ID)
	}

	extent, err := spec.Extent.toExtent()
	if err != nil {
		return nil, err
	}
	if fallback != nil {
		if len(extent.Spatial.BBox) == 0 {
			extent.Spatial = fallback.Spatial
		}
		if len(extent.Temporal.Interval) == 0 {
			extent.Temporal = fallback.Temporal
		}
	}
	if len(extent.Spatial.BBox) == 0 {
		extent.Spatial.BBox = [][]float64{{-180, -90, 180, 90}}
	}
	if len(extent.Temporal.Interval) == 0 {
		extent.Temporal.Interval = [][2]*time.Time{{nil, nil}}
	}

	c := types.NewCollection(spec.ID, spec.Description, extent)
	c.Title = spec.Title
	c.Keywords = append([]string(nil), spec.Keywords...)
	if spec.License != "" {
		c.License = spec.License
	}
	c.Providers = append([]types.Provider(nil), spec.Providers...)

	for k, v := range spec.ExtraFields {
		c.ExtraFields[k] = v
	}
	if len(columns) > 0 {
		c.ExtraFields[types.PropTableColumns] = columns
	}
	if len(spec.Tables) > 0 {
		c.ExtraFields[types.PropTableTables] = spec.Tables
	}

	if l := spec.LicenseLink; l != nil && l.Href != "" {
		mediaType := l.MediaType
		if mediaType == "" {
			mediaType = "text/html"
		}
		c.Links = append(c.Links, types.Link{Rel: types.RelLicense, Href: l.Href, Type: mediaType, Title: l.Title})
	}
	if t := spec.Thumbnail; t != nil && t.Href != "" {
		mediaType := t.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		c.Assets = map[string]*types.Asset{
			"thumbnail": {Href: t.Href, Title: t.Title, MediaType: mediaType, Roles: []string{"thumbnail"}},
		}
	}

	key := spec.AssetKey
	if key == "" {
		key = "data"
	}
	c.ItemAssets = map[string]*types.ItemAsset{
		key: {
			Title:       "Dataset root",
			MediaType:   types.ParquetMediaType,
			Roles:       []string{"data"},
			ExtraFields: spec.AssetExtraFields,
		},
	}

	c.AddExtension(types.TableSchemaURI)
	c.AddExtension(types.ItemAssetsSchemaURI)
	return c, nil
}

func (e ExtentSpec) toExtent() (types.Extent, error) {
	var out types.Extent
	for _, b := range e.BBox {
		if _, ok := spatial.BoxFromSlice(b); !ok {
			return out, stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidOption,
				"collection bbox must have 4 or 6 values, got %d", len(b))
		}
		out.Spatial.BBox = append(out.Spatial.BBox, append([]float64(nil), b...))
	}
	for _, iv := range e.Interval {
		if len(iv) != 2 {
			return out, stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidOption,
				"collection interval must have a start and an end, got %d values", len(iv))
		}
		var bounds [2]*time.Time
		for i, s := range iv {
			t, err := parseBound(s)
			if err != nil {
				return out, err
			}
			bounds[i] = t
		}
		if bounds[0] != nil && bounds[1] != nil && bounds[1].Before(*bounds[0]) {
			return out, stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidOption,
				"collection interval ends before it starts: %v", iv)
		}
		out.Temporal.Interval = append(out.Temporal.Interval, bounds)
	}
	return out, nil
}

// parseBound parses an interval bound. Plain dates are read as midnight UTC.
func parseBound(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "null", "..":
		return nil, nil
	}
	if t, err := types.ParseDatetime(s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidOption,
			"invalid interval bound %q", s)
	}
	return &t, nil
}

// ExtentOf returns the extent covering items: the union of their bboxes
// and the span of their datetimes or start/end datetimes. Parts no item
// contributes to are left empty.
func ExtentOf(items []*types.Item) types.Extent {
	var out types.Extent
	box := spatial.EmptyBox()
	var times []time.Time
	for _, it := range items {
		if b, ok := spatial.BoxFromSlice(it.BBox); ok {
			box = box.Union(b)
		}
		if it.Datetime != nil {
			times = append(times, *it.Datetime)
		}
		for _, key := range []string{types.PropStartDatetime, types.PropEndDatetime} {
			if s, ok := it.Properties[key].(string); ok {
				if t, err := types.ParseDatetime(s); err == nil {
					times = append(times, t)
				}
			}
		}
	}
	if !box.IsEmpty() {
		out.Spatial.BBox = [][]float64{box.Slice()}
	}
	if len(times) > 0 {
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		start, end := times[0].UTC(), times[len(times)-1].UTC()
		out.Temporal.Interval = [][2]*time.Time{{&start, &end}}
	}
	return out
}

func readError(what, path string, err error) error {
	if os.IsNotExist(err) {
		return stacerrors.Wrap(stacerrors.ErrCategoryNotFound, stacerrors.CodeObjectNotFound, what+" not found: "+path, err)
	}
	return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidOption, "read "+what+" "+path, err)
}
