package main

import (
	"github.com/spf13/cobra"

	"github.com/stactable/stac-table/internal/catalog"
	"github.com/stactable/stac-table/pkg/types"
)

func newCollectionCommand(cc *cliContext) *cobra.Command {
	var (
		columnsFrom  string
		descriptions string
		output       string
		noValidate   bool
	)
	cmd := &cobra.Command{
		Use:   "collection <spec.yaml>",
		Short: "generate a STAC Collection from a collection spec",
		Long: `
Generate a STAC Collection from a YAML or JSON collection spec. With
--columns-from, the table:columns of a generated item are copied to the
collection, optionally completed by --descriptions.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if noValidate {
				cc.cfg.Generate.Validate = false
			}
			if err := cc.validate(); err != nil {
				return err
			}

			spec, err := catalog.LoadCollectionSpec(args[0])
			if err != nil {
				return err
			}

			var columns []types.Column
			if columnsFrom != "" {
				item, err := catalog.ReadItem(ctx, columnsFrom, cc.cfg.Storage.Options)
				if err != nil {
					return err
				}
				columns = item.Columns()
			}
			if descriptions != "" {
				desc, err := catalog.LoadDescriptions(descriptions)
				if err != nil {
					return err
				}
				columns, _ = catalog.ApplyDescriptions(columns, desc, cc.logger)
			}

			c, err := catalog.BuildCollection(spec, columns)
			if err != nil {
				return err
			}
			if cc.cfg.Generate.Validate {
				v, err := cc.validator()
				if err != nil {
					return err
				}
				if err := v.Validate(ctx, c, append([]string{types.CollectionSchemaURI}, c.StacExtensions...)); err != nil {
					return err
				}
			}
			return writeOutput(ctx, cmd.OutOrStdout(), c, output, cc.cfg.Output.Indent, cc.cfg.Storage.Options)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&columnsFrom, "columns-from", "", "item document whose table:columns are copied")
	fl.StringVar(&descriptions, "descriptions", "", "column description file (.md, .txt, .yaml, .json)")
	fl.StringVarP(&output, "output", "o", "", "output path or URI (default: stdout)")
	fl.BoolVar(&noValidate, "no-validate", false, "skip JSON schema validation")
	return cmd
}
