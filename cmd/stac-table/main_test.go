package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/testutil"
	"github.com/stactable/stac-table/pkg/types"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "visits.parquet")
	testutil.NewTable().
		String("site", "a", "b").
		Timestamp("when", arrow.Second, "UTC",
			testutil.Time("2000-01-01T00:00:00Z"),
			testutil.Time("2000-01-03T00:00:00Z")).
		Write(t, path)
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "stac-table version dev")
}

func TestItemCommand(t *testing.T) {
	path := writeDataset(t)
	out, err := run(t, "item", path, "--no-validate", "--compact",
		"--datetime-column", "when", "--infer-datetime", "range",
		"--asset-extra-fields", `{"table:storage_options": {"anon": true}}`)
	require.NoError(t, err)

	var item types.Item
	require.NoError(t, json.Unmarshal([]byte(out), &item))
	assert.Equal(t, "visits", item.ID)
	assert.Equal(t, []string{"site", "when"}, types.ColumnNames(item.Columns()))
	assert.Equal(t, "2000-01-01T00:00:00Z", item.Properties[types.PropStartDatetime])
	assert.Equal(t, "2000-01-03T00:00:00Z", item.Properties[types.PropEndDatetime])
	assert.EqualValues(t, 2, item.Properties[types.PropTableRowCount])
	assert.Equal(t, map[string]interface{}{"anon": true}, item.Assets["data"].ExtraFields["table:storage_options"])
}

func TestItemCommand_TemplateAndOutput(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.json")
	require.NoError(t, os.WriteFile(tmpl, []byte(`{
		"type": "Feature", "stac_version": "1.0.0", "id": "visits-2000",
		"geometry": null, "properties": {"datetime": "2000-01-01T00:00:00Z"},
		"links": [], "assets": {}
	}`), 0644))
	descriptions := filepath.Join(dir, "columns.yaml")
	require.NoError(t, os.WriteFile(descriptions, []byte("site: Site code\n"), 0644))
	out := filepath.Join(dir, "out", "item.json")

	_, err := run(t, "item", writeDataset(t), "--no-validate", "--no-count-rows",
		"--template", tmpl, "--descriptions", descriptions, "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var item types.Item
	require.NoError(t, json.Unmarshal(data, &item))
	assert.Equal(t, "visits-2000", item.ID)
	assert.NotContains(t, item.Properties, types.PropTableRowCount)
	assert.Equal(t, "Site code", item.Columns()[0].Description)
}

func TestItemCommand_Errors(t *testing.T) {
	path := writeDataset(t)

	_, err := run(t, "item", path, "--no-validate", "--infer-datetime", "midpoint")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))

	_, err = run(t, "item", path, "--infer-datetime", "sometimes")
	require.Error(t, err)

	_, err = run(t, "--storage-option", "novalue", "item", path)
	assert.Equal(t, stacerrors.CodeInvalidOption, stacerrors.GetCode(err))

	_, err = run(t, "item", filepath.Join(t.TempDir(), "missing.parquet"), "--no-validate")
	assert.Equal(t, 3, exitCode(err))

	_, err = run(t, "item", path, "--no-validate", "--asset-extra-fields", "[1, 2]")
	assert.True(t, stacerrors.IsInvalidArgument(err))
}

func TestCollectionCommand(t *testing.T) {
	dir := t.TempDir()
	itemPath := filepath.Join(dir, "item.json")
	_, err := run(t, "item", writeDataset(t), "--no-validate", "-o", itemPath)
	require.NoError(t, err)

	spec := filepath.Join(dir, "collection.yaml")
	require.NoError(t, os.WriteFile(spec, []byte("id: visits\ndescription: Site visits.\n"), 0644))

	out, err := run(t, "collection", spec, "--no-validate", "--columns-from", itemPath)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "visits", doc["id"])
	assert.Len(t, doc[types.PropTableColumns], 2)
	assert.Contains(t, doc["stac_extensions"], types.ItemAssetsSchemaURI)
}

func TestParseKeyValues(t *testing.T) {
	got, err := parseKeyValues([]string{"Account_Name=ai4edataeuwest", "credential=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"account_name": "ai4edataeuwest", "credential": "a=b"}, got)

	values, err := parseJSONValues([]string{"proj:epsg=32631", "proj:wkt2=PROJCS"})
	require.NoError(t, err)
	assert.Equal(t, float64(32631), values["proj:epsg"])
	assert.Equal(t, "PROJCS", values["proj:wkt2"])

	_, err = parseKeyValues([]string{"=x"})
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(stacerrors.NewInvalidArgument(stacerrors.CodeMissingOption, "x")))
	assert.Equal(t, 3, exitCode(stacerrors.NewNotFound(stacerrors.CodeEmptyColumn, "x")))
	assert.Equal(t, 4, exitCode(stacerrors.NewConnectionError(stacerrors.CodeReadFailed, "x", nil)))
	assert.Equal(t, 5, exitCode(stacerrors.NewValidationError(stacerrors.CodeDocumentFailed, "x", nil)))
	assert.Equal(t, 1, exitCode(assert.AnError))
}
