package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/pkg/types"
)

const gbifSpec = `
id: gbif
title: Global Biodiversity Information Facility (GBIF)
description: "{{ collection.description }}"
keywords: [GBIF, Biodiversity, Species]
license: proprietary
providers:
  - name: Global Biodiversity Information Facility
    roles: [producer, licensor, processor]
    url: https://www.gbif.org/
  - name: Microsoft
    roles: [host]
    url: https://planetarycomputer.microsoft.com
extent:
  bbox: [[-180, -90, 180, 90]]
  interval: [["2021-04-13", null]]
license_link:
  href: https://www.gbif.org/terms
  title: Terms of use
thumbnail:
  href: https://example.com/gbif.png
  title: GBIF
extra_fields:
  msft:container: gbif
  msft:storage_account: ai4edataeuwest
asset_extra_fields:
  table:storage_options:
    account_name: ai4edataeuwest
`

func decodeDoc(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestBuildCollection(t *testing.T) {
	var spec CollectionSpec
	require.NoError(t, yaml.Unmarshal([]byte(gbifSpec), &spec))

	columns := []types.Column{{Name: "gbifid", Type: "byte_array"}, {Name: "year", Type: "int32"}}
	c, err := BuildCollection(spec, columns)
	require.NoError(t, err)

	assert.Equal(t, []string{types.TableSchemaURI, types.ItemAssetsSchemaURI}, c.StacExtensions)
	assert.Equal(t, "Global Biodiversity Information Facility (GBIF)", c.Title)
	assert.Len(t, c.Providers, 2)
	assert.Equal(t, []string{types.ProviderRoleHost}, c.Providers[1].Roles)

	doc := decodeDoc(t, c)
	assert.Equal(t, "Collection", doc["type"])
	assert.Equal(t, "gbif", doc["msft:container"])

	extent := doc["extent"].(map[string]interface{})
	interval := extent["temporal"].(map[string]interface{})["interval"].([]interface{})[0].([]interface{})
	assert.Equal(t, "2021-04-13T00:00:00Z", interval[0])
	assert.Nil(t, interval[1])

	links := doc["links"].([]interface{})
	require.Len(t, links, 1)
	license := links[0].(map[string]interface{})
	assert.Equal(t, "license", license["rel"])
	assert.Equal(t, "text/html", license["type"])

	thumb := doc["assets"].(map[string]interface{})["thumbnail"].(map[string]interface{})
	assert.Equal(t, "image/png", thumb["type"])

	data := doc["item_assets"].(map[string]interface{})["data"].(map[string]interface{})
	assert.Equal(t, types.ParquetMediaType, data["type"])
	assert.Equal(t, "Dataset root", data["title"])
	assert.Equal(t, map[string]interface{}{"account_name": "ai4edataeuwest"}, data["table:storage_options"])

	cols := doc[types.PropTableColumns].([]interface{})
	require.Len(t, cols, 2)
	assert.Equal(t, "gbifid", cols[0].(map[string]interface{})["name"])
}

func TestBuildCollection_Tables(t *testing.T) {
	spec := CollectionSpec{
		ID:          "us-census",
		Description: "US population counts by various geographic boundaries.",
		Tables: []types.TableDescriptor{
			{Name: "Counties (COUNTY)", Description: "Counties and equivalent entities.", ItemName: "cb_2020_us_county_500k"},
		},
	}
	c, err := BuildCollection(spec, nil)
	require.NoError(t, err)

	doc := decodeDoc(t, c)
	_, hasColumns := doc[types.PropTableColumns]
	assert.False(t, hasColumns)
	tables := doc[types.PropTableTables].([]interface{})
	assert.Equal(t, "cb_2020_us_county_500k", tables[0].(map[string]interface{})["msft:item_name"])

	assert.Equal(t, [][]float64{{-180, -90, 180, 90}}, c.Extent.Spatial.BBox)
	require.Len(t, c.Extent.Temporal.Interval, 1)
	assert.Nil(t, c.Extent.Temporal.Interval[0][0])
	assert.Nil(t, c.Extent.Temporal.Interval[0][1])
}

func TestBuildCollection_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec CollectionSpec
		code string
	}{
		{"no id", CollectionSpec{Description: "d"}, stacerrors.CodeMissingOption},
		{"no description", CollectionSpec{ID: "c"}, stacerrors.CodeMissingOption},
		{"short bbox", CollectionSpec{ID: "c", Description: "d", Extent: ExtentSpec{BBox: [][]float64{{1, 2, 3}}}}, stacerrors.CodeInvalidOption},
		{"one bound", CollectionSpec{ID: "c", Description: "d", Extent: ExtentSpec{Interval: [][]string{{"2020-01-01"}}}}, stacerrors.CodeInvalidOption},
		{"bad bound", CollectionSpec{ID: "c", Description: "d", Extent: ExtentSpec{Interval: [][]string{{"yesterday", ""}}}}, stacerrors.CodeInvalidOption},
		{"reversed", CollectionSpec{ID: "c", Description: "d", Extent: ExtentSpec{Interval: [][]string{{"2021-01-01", "2020-01-01"}}}}, stacerrors.CodeInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCollection(tt.spec, nil)
			require.Error(t, err)
			assert.True(t, stacerrors.IsInvalidArgument(err))
			assert.Equal(t, tt.code, stacerrors.GetCode(err))
		})
	}
}

func TestLoadCollectionSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "collection.yaml")
	require.NoError(t, os.WriteFile(path, []byte(gbifSpec), 0644))

	spec, err := LoadCollectionSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "gbif", spec.ID)
	assert.Equal(t, "https://www.gbif.org/terms", spec.LicenseLink.Href)

	_, err = LoadCollectionSpec(filepath.Join(dir, "missing.yaml"))
	assert.True(t, stacerrors.IsNotFound(err))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("id: [unterminated"), 0644))
	_, err = LoadCollectionSpec(bad)
	assert.True(t, stacerrors.IsInvalidArgument(err))
}

func TestExtentOf(t *testing.T) {
	d1 := time.Date(2021, 4, 13, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

	a := types.NewItem("a", &d2)
	a.BBox = []float64{0, 0, 10, 10}
	b := types.NewItem("b", nil)
	b.BBox = []float64{-5, 2, 3, 20}
	b.Properties[types.PropStartDatetime] = "2021-04-13T00:00:00Z"
	b.Properties[types.PropEndDatetime] = "2021-05-01T00:00:00Z"

	ext := ExtentOf([]*types.Item{a, b})
	assert.Equal(t, [][]float64{{-5, 0, 10, 20}}, ext.Spatial.BBox)
	require.Len(t, ext.Temporal.Interval, 1)
	assert.True(t, ext.Temporal.Interval[0][0].Equal(d1))
	assert.True(t, ext.Temporal.Interval[0][1].Equal(d2))

	empty := ExtentOf([]*types.Item{types.NewItem("c", nil)})
	assert.Empty(t, empty.Spatial.BBox)
	assert.Empty(t, empty.Temporal.Interval)
}
