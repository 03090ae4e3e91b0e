package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/twpayne/go-geom/encoding/geojson"
	"gopkg.in/yaml.v3"

	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/observability"
	"github.com/stactable/stac-table/internal/stac"
	"github.com/stactable/stac-table/internal/storage"
	"github.com/stactable/stac-table/internal/temporal"
	"github.com/stactable/stac-table/pkg/types"
)

// Manifest describes a batch of items sharing storage options and
// generation defaults, and optionally the collection grouping them.
type Manifest struct {
	StorageOptions   map[string]string      `yaml:"storage_options"`
	AssetExtraFields map[string]interface{} `yaml:"asset_extra_fields"`
	Defaults         OptionOverrides        `yaml:"defaults"`

	// Descriptions is the column description file used by items that
	// name none of their own.
	Descriptions string `yaml:"descriptions"`

	Items      []ItemSpec      `yaml:"items"`
	Collection *CollectionSpec `yaml:"collection"`

	dir string
}

// ItemSpec is the template of one item and the dataset it describes.
type ItemSpec struct {
	ID           string                 `yaml:"id"`
	URI          string                 `yaml:"uri"`
	Datetime     string                 `yaml:"datetime"`
	BBox         []float64              `yaml:"bbox"`
	Geometry     map[string]interface{} `yaml:"geometry"`
	Properties   map[string]interface{} `yaml:"properties"`
	Options      OptionOverrides        `yaml:"options"`
	Descriptions string                 `yaml:"descriptions"`
}

// OptionOverrides replaces the generation options it sets. Proj is either
// a boolean or a mapping of explicit proj:* values.
type OptionOverrides struct {
	InferBBox      *bool       `yaml:"infer_bbox"`
	BBoxColumn     *string     `yaml:"bbox_column"`
	InferGeometry  *bool       `yaml:"infer_geometry"`
	DatetimeColumn *string     `yaml:"datetime_column"`
	InferDatetime  *string     `yaml:"infer_datetime"`
	CountRows      *bool       `yaml:"count_rows"`
	AssetKey       *string     `yaml:"asset_key"`
	SkipAsset      *bool       `yaml:"skip_asset"`
	Proj           interface{} `yaml:"proj"`
	Validate       *bool       `yaml:"validate"`
}

// Apply returns opts with the overrides applied.
func (o OptionOverrides) Apply(opts stac.Options) (stac.Options, error) {
	if o.InferBBox != nil {
		opts.InferBBox = *o.InferBBox
	}
	if o.BBoxColumn != nil {
		opts.BBoxColumn = *o.BBoxColumn
	}
	if o.InferGeometry != nil {
		opts.InferGeometry = *o.InferGeometry
	}
	if o.DatetimeColumn != nil {
		opts.DatetimeColumn = *o.DatetimeColumn
	}
	if o.InferDatetime != nil {
		s, err := temporal.ParseStrategy(*o.InferDatetime)
		if err != nil {
			return opts, err
		}
		opts.InferDatetime = s
	}
	if o.CountRows != nil {
		opts.CountRows = *o.CountRows
	}
	if o.AssetKey != nil {
		opts.AssetKey = *o.AssetKey
	}
	if o.SkipAsset != nil {
		opts.SkipAsset = *o.SkipAsset
	}
	if o.Validate != nil {
		opts.Validate = *o.Validate
	}
	switch p := o.Proj.(type) {
	case nil:
	case bool:
		if p {
			opts.Proj = stac.ProjAuto
		} else {
			opts.Proj = stac.ProjOff
		}
	case map[string]interface{}:
		opts.Proj = stac.ProjValues(p)
	default:
		return opts, stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidOption,
			"proj must be a boolean or a mapping, got %T", p)
	}
	return opts, nil
}

// LoadManifest reads a batch manifest. Relative local paths in the
// manifest are resolved against its directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, readError("manifest", path, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// ParseManifest decodes a YAML manifest and checks that every item has an
// id and a dataset URI, and that ids are unique.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidDocument,
			"parse manifest", err)
	}
	if len(m.Items) == 0 {
		return nil, stacerrors.NewInvalidArgument(stacerrors.CodeMissingOption, "manifest lists no items")
	}
	seen := make(map[string]bool, len(m.Items))
	for i, it := range m.Items {
		if it.ID == "" || it.URI == "" {
			return nil, stacerrors.NewInvalidArgumentf(stacerrors.CodeMissingOption,
				"manifest item %d needs an id and a uri", i)
		}
		if seen[it.ID] {
			return nil, stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidOption,
				"duplicate item id %q", it.ID)
		}
		seen[it.ID] = true
	}
	return m, nil
}

// localPath resolves a relative local path against the manifest directory.
func (m *Manifest) localPath(p string) string {
	if p == "" || m.dir == "" || filepath.IsAbs(p) {
		return p
	}
	loc, err := storage.ParseURI(p)
	if err != nil || loc.Scheme != storage.SchemeFile || loc.Path != p {
		return p
	}
	return filepath.Join(m.dir, p)
}

// template builds the item template of spec.
func (s ItemSpec) template() (*types.Item, error) {
	item := types.NewItem(s.ID, nil)
	if s.Datetime != "" {
		t, err := parseBound(s.Datetime)
		if err != nil {
			return nil, err
		}
		item.Datetime = t
	}
	if s.BBox != nil {
		item.BBox = append([]float64(nil), s.BBox...)
	}
	if s.Geometry != nil {
		raw, err := json.Marshal(s.Geometry)
		if err != nil {
			return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidGeometry,
				"encode template geometry of "+s.ID, err)
		}
		item.Geometry = &geojson.Geometry{}
		if err := json.Unmarshal(raw, item.Geometry); err != nil {
			return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidGeometry,
				"decode template geometry of "+s.ID, err)
		}
	}
	for k, v := range s.Properties {
		item.Properties[k] = v
	}
	return item, nil
}

// Result is the outcome of a batch run.
type Result struct {
	RunID          string
	Items          []*types.Item
	ItemPaths      []string
	Collection     *types.Collection
	CollectionPath string

	// Undescribed lists, per item id, the columns left without a description.
	Undescribed map[string][]string

	Stats *observability.RunStats
}

// Batch generates and writes the items of a manifest one after another.
type Batch struct {
	generator *stac.Generator
	writer    *Writer
	validator stac.Validator
	logger    *slog.Logger
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *Batch) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithCollectionValidator validates the collection before it is written.
func WithCollectionValidator(v stac.Validator) BatchOption {
	return func(b *Batch) { b.validator = v }
}

// NewBatch returns a batch runner generating with gen and writing with w.
func NewBatch(gen *stac.Generator, w *Writer, opts ...BatchOption) *Batch {
	b := &Batch{generator: gen, writer: w, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// itemOutcome is the result of generating one manifest item.
type itemOutcome struct {
	item    *types.Item
	path    string
	missing []string
}

// Run generates every item of m in manifest order, writes each one, then
// builds and writes the collection when m has one. The first failure
// stops the run; items written before it are kept.
func (b *Batch) Run(ctx context.Context, m *Manifest, base stac.Options) (*Result, error) {
	res := &Result{
		RunID:       uuid.NewString(),
		Undescribed: make(map[string][]string),
		Stats:       observability.NewRunStats(),
	}
	logger := b.logger.With(slog.String("run_id", res.RunID))
	logger.Info("starting batch", slog.Int("items", len(m.Items)))

	defaults, err := m.Defaults.Apply(base)
	if err != nil {
		return res, errors.Wrap(err, "manifest defaults")
	}
	defaults.StorageOptions = mergeOptions(base.StorageOptions, m.StorageOptions)
	if m.AssetExtraFields != nil {
		defaults.AssetExtraFields = m.AssetExtraFields
	}

	descriptions := descriptionCache{}
	for i, spec := range m.Items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		start := time.Now()
		out, err := b.runItem(ctx, m, spec, defaults, descriptions, logger)
		if err != nil {
			return res, errors.Wrapf(err, "item %d (%s)", i, spec.ID)
		}
		res.Stats.RecordItem(out.item.ID, time.Since(start), len(out.item.Columns()), out.missing)
		res.Items = append(res.Items, out.item)
		res.ItemPaths = append(res.ItemPaths, out.path)
		if len(out.missing) > 0 {
			res.Undescribed[out.item.ID] = out.missing
		}
	}

	if m.Collection != nil {
		if err := b.runCollection(ctx, m, defaults, res, logger); err != nil {
			return res, errors.Wrap(err, "collection")
		}
	}
	logger.Info("finished batch",
		slog.Int("items", res.Stats.Items()),
		slog.Duration("elapsed", res.Stats.Total()),
		slog.Bool("collection", res.Collection != nil))
	for _, s := range res.Stats.Slowest(3) {
		logger.Debug("slow item", slog.String("item", s.ID), slog.Duration("elapsed", s.Duration))
	}
	for _, c := range res.Stats.TopUndescribed(5) {
		logger.Warn("column undescribed", slog.String("column", c.Column), slog.Int64("items", c.Frequency))
	}
	return res, nil
}

// descriptionCache holds the description files already loaded in a run.
type descriptionCache map[string]map[string]string

func (c descriptionCache) load(path string) (map[string]string, error) {
	if desc, ok := c[path]; ok {
		return desc, nil
	}
	desc, err := LoadDescriptions(path)
	if err != nil {
		return nil, err
	}
	c[path] = desc
	return desc, nil
}

func (b *Batch) runItem(ctx context.Context, m *Manifest, spec ItemSpec, defaults stac.Options,
	descriptions descriptionCache, logger *slog.Logger) (*itemOutcome, error) {
	opts, err := spec.Options.Apply(defaults)
	if err != nil {
		return nil, err
	}
	tmpl, err := spec.template()
	if err != nil {
		return nil, err
	}

	logger = logger.With(slog.String("item", spec.ID))
	logger.Info("generating item", slog.String("uri", spec.URI))
	item, err := b.generator.Generate(ctx, m.localPath(spec.URI), tmpl, opts)
	if err != nil {
		return nil, err
	}

	out := &itemOutcome{item: item}
	descPath := spec.Descriptions
	if descPath == "" {
		descPath = m.Descriptions
	}
	if descPath != "" {
		desc, err := descriptions.load(m.localPath(descPath))
		if err != nil {
			return nil, err
		}
		var columns []types.Column
		columns, out.missing = ApplyDescriptions(item.Columns(), desc, logger)
		item.Properties[types.PropTableColumns] = columns
	}

	if out.path, err = b.writer.WriteItem(ctx, item); err != nil {
		return nil, err
	}
	return out, nil
}

// runCollection records the columns of the last item unless the collection
// lists several tables.
func (b *Batch) runCollection(ctx context.Context, m *Manifest, defaults stac.Options, res *Result, logger *slog.Logger) error {
	spec := *m.Collection
	if spec.AssetKey == "" {
		spec.AssetKey = defaults.AssetKey
	}
	if spec.AssetExtraFields == nil {
		spec.AssetExtraFields = defaults.AssetExtraFields
	}

	var columns []types.Column
	if len(spec.Tables) == 0 && len(res.Items) > 0 {
		columns = res.Items[len(res.Items)-1].Columns()
	}
	extent := ExtentOf(res.Items)
	c, err := buildCollection(spec, columns, &extent)
	if err != nil {
		return err
	}
	for _, it := range res.Items {
		c.Links = append(c.Links, types.Link{Rel: types.RelItem, Href: "./items/" + it.ID + ".json", Type: "application/json"})
	}

	if defaults.Validate && b.validator != nil {
		schemas := append([]string{types.CollectionSchemaURI}, c.StacExtensions...)
		if err := b.validator.Validate(ctx, c, schemas); err != nil {
			return err
		}
	}
	path, err := b.writer.WriteCollection(ctx, c)
	if err != nil {
		return err
	}
	res.Collection = c
	res.CollectionPath = path
	logger.Info("wrote collection", slog.String("collection", c.ID), slog.String("path", path))
	return nil
}

func mergeOptions(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
