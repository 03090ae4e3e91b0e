package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stactable/stac-table/internal/catalog"
	"github.com/stactable/stac-table/internal/stac"
)

func newBatchCommand(cc *cliContext) *cobra.Command {
	var (
		output     string
		compact    bool
		noValidate bool
	)
	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "generate the items and collection listed in a manifest",
		Long: `
Generate every item listed in a batch manifest, in order, and write them to
<output>/items/<id>.json, followed by <output>/collection.json when the
manifest has a collection section. The first failure stops the run.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("output") {
				cc.cfg.Output.Dir = output
			}
			if compact {
				cc.cfg.Output.Indent = false
			}
			if noValidate {
				cc.cfg.Generate.Validate = false
			}
			if err := cc.validate(); err != nil {
				return err
			}

			m, err := catalog.LoadManifest(args[0])
			if err != nil {
				return err
			}
			opts, err := stac.OptionsFromConfig(cc.cfg)
			if err != nil {
				return err
			}

			v, err := cc.validator()
			if err != nil {
				return err
			}
			w, err := catalog.NewWriter(ctx, cc.cfg.Output.Dir, cc.cfg.Storage.Options,
				catalog.WithIndent(cc.cfg.Output.Indent), catalog.WithWriterLogger(cc.logger))
			if err != nil {
				return err
			}
			gen := stac.NewGenerator(stac.WithLogger(cc.logger), stac.WithValidator(v))
			res, err := catalog.NewBatch(gen, w,
				catalog.WithBatchLogger(cc.logger), catalog.WithCollectionValidator(v)).Run(ctx, m, opts)
			if err != nil {
				return err
			}
			for id, missing := range res.Undescribed {
				cc.logger.Warn("item has undescribed columns", slog.String("item", id), slog.Int("columns", len(missing)))
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&output, "output", "o", "", "output directory or URI (default: output.dir)")
	fl.BoolVar(&compact, "compact", false, "write compact JSON")
	fl.BoolVar(&noValidate, "no-validate", false, "skip JSON schema validation")
	return cmd
}
