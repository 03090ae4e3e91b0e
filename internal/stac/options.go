package stac

import (
	"github.com/stactable/stac-table/internal/config"
	"github.com/stactable/stac-table/internal/temporal"
)

// DefaultAssetKey is the key of the data asset.
const DefaultAssetKey = "data"

type projMode int

const (
	projAuto projMode = iota
	projOff
	projExplicit
)

// ProjOption controls the projection extension fields. The zero value
// extracts the CRS from the dataset.
type ProjOption struct {
	mode   projMode
	values map[string]interface{}
}

var (
	// ProjAuto extracts proj:epsg (or proj:projjson) from the GeoParquet metadata.
	ProjAuto = ProjOption{mode: projAuto}
	// ProjOff writes no proj:* fields at all.
	ProjOff = ProjOption{mode: projOff}
)

// ProjValues writes the given proj:* fields instead of extracting them.
// Inferred proj:bbox and proj:geometry are still added.
func ProjValues(values map[string]interface{}) ProjOption {
	return ProjOption{mode: projExplicit, values: values}
}

// Enabled reports whether any proj:* field may be written.
func (p ProjOption) Enabled() bool { return p.mode != projOff }

func (p ProjOption) auto() bool { return p.mode == projAuto }

// Options configures a generation run.
type Options struct {
	// InferBBox sets bbox (EPSG:4326) and proj:bbox (native CRS) from the
	// bounds of the geometry column.
	InferBBox bool
	// BBoxColumn is the geometry column; empty means the primary column.
	BBoxColumn string
	// InferGeometry sets geometry and proj:geometry to the union of every geometry.
	InferGeometry bool

	DatetimeColumn string
	InferDatetime  temporal.Strategy

	// CountRows sets table:row_count.
	CountRows bool

	// AssetKey is the data asset key; empty means DefaultAssetKey.
	AssetKey string
	// SkipAsset omits the data asset.
	SkipAsset        bool
	AssetExtraFields map[string]interface{}

	Proj ProjOption

	// StorageOptions configure the storage backend of the dataset URI.
	StorageOptions map[string]string

	// Validate checks the result against the item schema and every
	// declared extension schema.
	Validate bool
}

// DefaultOptions returns the default options: rows are counted, the CRS
// is extracted and the result is validated.
func DefaultOptions() Options {
	return Options{
		InferDatetime: temporal.No,
		CountRows:     true,
		AssetKey:      DefaultAssetKey,
		Proj:          ProjAuto,
		Validate:      true,
	}
}

// OptionsFromConfig builds options from the configured generation defaults.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	g := cfg.Generate

	strategy, err := temporal.ParseStrategy(g.InferDatetime)
	if err != nil {
		return Options{}, err
	}
	opts.InferBBox = g.InferBBox
	opts.BBoxColumn = g.BBoxColumn
	opts.InferGeometry = g.InferGeometry
	opts.DatetimeColumn = g.DatetimeColumn
	opts.InferDatetime = strategy
	opts.CountRows = g.CountRows
	if g.AssetKey != "" {
		opts.AssetKey = g.AssetKey
	}
	if !g.Proj {
		opts.Proj = ProjOff
	}
	opts.Validate = g.Validate

	opts.StorageOptions = make(map[string]string, len(cfg.Storage.Options))
	for k, v := range cfg.Storage.Options {
		opts.StorageOptions[k] = v
	}
	return opts, nil
}

func (o Options) assetKey() string {
	if o.AssetKey == "" {
		return DefaultAssetKey
	}
	return o.AssetKey
}
