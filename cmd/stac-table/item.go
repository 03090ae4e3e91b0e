package main

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stactable/stac-table/internal/catalog"
	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/stac"
	"github.com/stactable/stac-table/internal/temporal"
	"github.com/stactable/stac-table/pkg/types"
)

type itemFlags struct {
	template string
	id       string
	datetime string

	inferBBox      bool
	bboxColumn     string
	inferGeometry  bool
	datetimeColumn string
	inferDatetime  temporal.Strategy
	countRows      bool
	noCountRows    bool

	assetKey         string
	skipAsset        bool
	assetExtraFields string

	noProj     bool
	projValues []string

	noValidate   bool
	descriptions string
	output       string
	compact      bool
}

func newItemCommand(cc *cliContext) *cobra.Command {
	f := &itemFlags{}
	cmd := &cobra.Command{
		Use:   "item <dataset-uri>",
		Short: "generate a STAC Item for a Parquet dataset",
		Long: `
Generate a STAC Item describing the Parquet dataset at <dataset-uri>: a local
path or an s3://, gs://, abfs:// or https:// URI naming a file or a directory
of partitions.

The item starts from --template (an item JSON document) or an empty item named
by --id. Spatial and temporal fields are inferred only when requested.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItem(cmd, cc, f, args[0])
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.template, "template", "", "template item document (path or URI)")
	fl.StringVar(&f.id, "id", "", "item id when no template is given (default: dataset name)")
	fl.StringVar(&f.datetime, "datetime", "", "item datetime when no template is given")
	fl.BoolVar(&f.inferBBox, "infer-bbox", false, "infer bbox and proj:bbox from the geometry column")
	fl.StringVar(&f.bboxColumn, "bbox-column", "", "geometry column (default: primary column)")
	fl.BoolVar(&f.inferGeometry, "infer-geometry", false, "infer geometry as the union of all geometries")
	fl.StringVar(&f.datetimeColumn, "datetime-column", "", "column to infer datetimes from")
	fl.Var(&f.inferDatetime, "infer-datetime", "datetime inference: no, midpoint, unique, range")
	fl.BoolVar(&f.countRows, "count-rows", true, "set table:row_count")
	fl.BoolVar(&f.noCountRows, "no-count-rows", false, "do not set table:row_count")
	fl.StringVar(&f.assetKey, "asset-key", "", "key of the data asset")
	fl.BoolVar(&f.skipAsset, "skip-asset", false, "do not add a data asset")
	fl.StringVar(&f.assetExtraFields, "asset-extra-fields", "", "JSON object inlined in the data asset")
	fl.BoolVar(&f.noProj, "no-proj", false, "write no proj:* fields")
	fl.StringArrayVar(&f.projValues, "proj", nil, "explicit proj:* field as key=json (repeatable)")
	fl.BoolVar(&f.noValidate, "no-validate", false, "skip JSON schema validation")
	fl.StringVar(&f.descriptions, "descriptions", "", "column description file (.md, .txt, .yaml, .json)")
	fl.StringVarP(&f.output, "output", "o", "", "output path or URI (default: stdout)")
	fl.BoolVar(&f.compact, "compact", false, "write compact JSON")
	return cmd
}

// applyGenerateFlags layers the generation flags that were set over the
// configuration.
func applyGenerateFlags(cmd *cobra.Command, cc *cliContext, f *itemFlags) {
	g := &cc.cfg.Generate
	fl := cmd.Flags()
	if fl.Changed("infer-bbox") {
		g.InferBBox = f.inferBBox
	}
	if fl.Changed("bbox-column") {
		g.BBoxColumn = f.bboxColumn
	}
	if fl.Changed("infer-geometry") {
		g.InferGeometry = f.inferGeometry
	}
	if fl.Changed("datetime-column") {
		g.DatetimeColumn = f.datetimeColumn
	}
	if fl.Changed("infer-datetime") {
		g.InferDatetime = f.inferDatetime.String()
	}
	if fl.Changed("count-rows") {
		g.CountRows = f.countRows
	}
	if f.noCountRows {
		g.CountRows = false
	}
	if fl.Changed("asset-key") {
		g.AssetKey = f.assetKey
	}
	if f.noProj {
		g.Proj = false
	}
	if f.noValidate {
		g.Validate = false
	}
	if fl.Changed("compact") {
		cc.cfg.Output.Indent = !f.compact
	}
}

func runItem(cmd *cobra.Command, cc *cliContext, f *itemFlags, uri string) error {
	ctx := cmd.Context()
	applyGenerateFlags(cmd, cc, f)
	if err := cc.validate(); err != nil {
		return err
	}

	opts, err := stac.OptionsFromConfig(cc.cfg)
	if err != nil {
		return err
	}
	opts.SkipAsset = f.skipAsset
	if f.assetExtraFields != "" {
		if err := json.Unmarshal([]byte(f.assetExtraFields), &opts.AssetExtraFields); err != nil {
			return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidOption,
				"--asset-extra-fields must be a JSON object", err)
		}
	}
	if len(f.projValues) > 0 {
		if f.noProj {
			return stacerrors.NewInvalidArgument(stacerrors.CodeInvalidOption, "--proj and --no-proj are exclusive")
		}
		values, err := parseJSONValues(f.projValues)
		if err != nil {
			return err
		}
		opts.Proj = stac.ProjValues(values)
	}

	template, err := loadTemplate(cmd, cc, f, uri)
	if err != nil {
		return err
	}

	var genOpts []stac.GeneratorOption
	genOpts = append(genOpts, stac.WithLogger(cc.logger))
	if opts.Validate {
		v, err := cc.validator()
		if err != nil {
			return err
		}
		genOpts = append(genOpts, stac.WithValidator(v))
	}
	item, err := stac.NewGenerator(genOpts...).Generate(ctx, uri, template, opts)
	if err != nil {
		return err
	}

	if f.descriptions != "" {
		desc, err := catalog.LoadDescriptions(f.descriptions)
		if err != nil {
			return err
		}
		columns, _ := catalog.ApplyDescriptions(item.Columns(), desc, cc.logger)
		item.Properties[types.PropTableColumns] = columns
	}

	return writeOutput(ctx, cmd.OutOrStdout(), item, f.output, cc.cfg.Output.Indent, cc.cfg.Storage.Options)
}

// loadTemplate reads --template, or builds an empty item named after the
// dataset.
func loadTemplate(cmd *cobra.Command, cc *cliContext, f *itemFlags, uri string) (*types.Item, error) {
	if f.template != "" {
		if f.id != "" || f.datetime != "" {
			return nil, stacerrors.NewInvalidArgument(stacerrors.CodeInvalidOption,
				"--id and --datetime cannot be combined with --template")
		}
		return catalog.ReadItem(cmd.Context(), f.template, cc.cfg.Storage.Options)
	}

	id := f.id
	if id == "" {
		id = strings.TrimSuffix(path.Base(strings.TrimSuffix(uri, "/")), ".parquet")
	}
	item := types.NewItem(id, nil)
	if f.datetime != "" {
		t, err := types.ParseDatetime(f.datetime)
		if err != nil {
			return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidOption,
				"--datetime must be an RFC 3339 timestamp", err)
		}
		item.Datetime = &t
	}
	return item, nil
}
