// Package stac generates STAC Items describing Parquet datasets.
//
// Generate fills a copy of a template item with the dataset's column
// schema, row count, projection, spatial and temporal extent, and a data
// asset pointing at the dataset root.
package stac

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/stactable/stac-table/internal/dataset"
	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/schema"
	"github.com/stactable/stac-table/internal/spatial"
	"github.com/stactable/stac-table/internal/temporal"
	"github.com/stactable/stac-table/pkg/types"
)

// Generator generates items. The zero value is not usable; use NewGenerator.
type Generator struct {
	logger    *slog.Logger
	validator Validator
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithValidator sets the validator used when Options.Validate is true.
func WithValidator(v Validator) GeneratorOption {
	return func(g *Generator) { g.validator = v }
}

// NewGenerator returns a generator validating with a JSONSchemaValidator
// unless another validator is given.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	if g.validator == nil {
		g.validator = NewJSONSchemaValidator(WithValidatorLogger(g.logger))
	}
	return g
}

// Generate is a convenience wrapper around a default Generator.
func Generate(ctx context.Context, uri string, template *types.Item, opts Options) (*types.Item, error) {
	return NewGenerator().Generate(ctx, uri, template, opts)
}

// Generate returns a copy of template describing the dataset at uri. The
// template itself is never modified.
func (g *Generator) Generate(ctx context.Context, uri string, template *types.Item, opts Options) (*types.Item, error) {
	if template == nil {
		return nil, stacerrors.NewInvalidArgument(stacerrors.CodeMissingOption, "template item is required")
	}
	item := template.Clone()
	if item.Properties == nil {
		item.Properties = make(map[string]interface{})
	}
	logger := g.logger.With(slog.String("item", item.ID), slog.String("uri", uri))

	ds, err := dataset.Open(ctx, uri, opts.StorageOptions, dataset.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	columns, err := schema.Columns(ds)
	if err != nil {
		return nil, err
	}
	item.Properties[types.PropTableColumns] = columns

	frame, err := g.loadFrame(ctx, ds, opts, logger)
	if err != nil {
		return nil, err
	}

	proj := projFields(frame, opts.Proj)

	var transformer spatial.Transformer
	if opts.InferBBox || opts.InferGeometry {
		if transformer, err = spatial.NewTransformer(frame.CRS()); err != nil {
			return nil, err
		}
	}

	if opts.InferBBox {
		native, err := frame.Bounds(ctx)
		if err != nil {
			return nil, err
		}
		// ProjOff drops proj:bbox along with the other proj:* fields.
		if opts.Proj.Enabled() {
			proj[types.PropProjBBox] = native.Slice()
		}
		wgs84, err := spatial.ReprojectBox(native, transformer)
		if err != nil {
			return nil, err
		}
		item.BBox = wgs84.Slice()
	}

	var geometry geom.T
	if opts.InferGeometry {
		native, err := frame.UnaryUnion(ctx)
		if err != nil {
			return nil, err
		}
		// ProjOff drops proj:geometry along with the other proj:* fields.
		if opts.Proj.Enabled() {
			enc, err := geojson.Encode(native)
			if err != nil {
				return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidGeometry,
					"encode native geometry", err)
			}
			proj[types.PropProjGeometry] = enc
		}
		if geometry, err = spatial.Reproject(native, transformer); err != nil {
			return nil, err
		}
		if err := item.SetGeometry(geometry); err != nil {
			return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidGeometry,
				"encode geometry", err)
		}
	}

	if err := backfillExtent(item, opts, geometry); err != nil {
		return nil, err
	}

	for k, v := range proj {
		item.Properties[k] = v
	}
	item.AddExtension(types.TableSchemaURI)
	if len(proj) > 0 {
		item.AddExtension(types.ProjectionSchemaURI)
	}

	if err := g.inferDatetime(ctx, ds, item, opts); err != nil {
		return nil, err
	}

	if opts.CountRows {
		n, err := ds.CountRows(ctx)
		if err != nil {
			return nil, err
		}
		item.Properties[types.PropTableRowCount] = n
	}

	if !opts.SkipAsset {
		item.AddAsset(opts.assetKey(), types.NewDataAsset(uri, opts.AssetExtraFields))
	}

	if opts.Validate && g.validator != nil {
		schemas := append([]string{types.ItemSchemaURI}, item.StacExtensions...)
		if err := g.validator.Validate(ctx, item, schemas); err != nil {
			return nil, err
		}
	}

	logger.Info("generated item",
		slog.Int("columns", len(columns)),
		slog.Bool("bbox", item.BBox != nil),
		slog.Bool("geometry", item.Geometry != nil))
	return item, nil
}

// loadFrame loads the spatial view when any spatial output is requested.
// Without GeoParquet metadata, automatic projection is skipped while
// explicit bbox or geometry inference fails.
func (g *Generator) loadFrame(ctx context.Context, ds *dataset.Dataset, opts Options, logger *slog.Logger) (*spatial.Frame, error) {
	explicit := opts.InferBBox || opts.InferGeometry
	if !explicit && !opts.Proj.auto() {
		return nil, nil
	}
	frame, err := spatial.Load(ctx, ds, spatial.WithColumn(opts.BBoxColumn), spatial.WithLogger(logger))
	if err != nil {
		if !explicit && stacerrors.GetCode(err) == stacerrors.CodeMissingGeoMetadata {
			logger.Debug("dataset has no GeoParquet metadata, skipping projection")
			return nil, nil
		}
		return nil, err
	}
	return frame, nil
}

// projFields returns the proj:* fields describing the frame's CRS.
func projFields(frame *spatial.Frame, opt ProjOption) map[string]interface{} {
	fields := make(map[string]interface{})
	switch opt.mode {
	case projExplicit:
		for k, v := range opt.values {
			fields[k] = v
		}
	case projAuto:
		if frame == nil {
			break
		}
		crs := frame.CRS()
		switch {
		case crs.EPSG != 0:
			fields[types.PropProjEPSG] = crs.EPSG
		case len(crs.PROJJSON) > 0:
			fields[types.PropProjJSON] = json.RawMessage(crs.PROJJSON)
		}
	}
	return fields
}

// backfillExtent keeps bbox and geometry paired: an inferred bbox without
// geometry yields the bbox polygon, an inferred geometry without bbox its
// bounds.
func backfillExtent(item *types.Item, opts Options, geometry geom.T) error {
	if opts.InferBBox && item.Geometry == nil {
		b, ok := spatial.BoxFromSlice(item.BBox)
		if !ok {
			return stacerrors.NewInternalError("inferred bbox is malformed", nil)
		}
		if err := item.SetGeometry(b.Polygon()); err != nil {
			return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidGeometry,
				"encode bbox polygon", err)
		}
	}
	if opts.InferGeometry && item.BBox == nil {
		item.BBox = spatial.BoxOf(geometry).Slice()
	}
	return nil
}

func (g *Generator) inferDatetime(ctx context.Context, ds *dataset.Dataset, item *types.Item, opts Options) error {
	if err := temporal.CheckOptions(opts.DatetimeColumn, opts.InferDatetime); err != nil {
		return err
	}
	ext, err := temporal.Summarize(ctx, ds, opts.DatetimeColumn, opts.InferDatetime)
	if err != nil {
		return err
	}
	if ext.Datetime != nil {
		item.Datetime = ext.Datetime
	}
	if ext.Start != nil && ext.End != nil {
		item.Properties[types.PropStartDatetime] = temporal.Format(*ext.Start)
		item.Properties[types.PropEndDatetime] = temporal.Format(*ext.End)
	}
	return nil
}
