package stac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/storage"
	"github.com/stactable/stac-table/pkg/types"
)

type countingFetcher struct {
	docs  map[string]string
	calls int
}

func (f *countingFetcher) Get(_ context.Context, url string) ([]byte, error) {
	f.calls++
	doc, ok := f.docs[url]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return []byte(doc), nil
}

func TestJSONSchemaValidator_RemoteRefsAreCached(t *testing.T) {
	fetcher := &countingFetcher{docs: map[string]string{
		"https://example.com/item.json": `{
			"type": "object",
			"required": ["id"],
			"properties": {"geometry": {"$ref": "https://example.com/geometry.json"}}
		}`,
		"https://example.com/geometry.json": `{"type": ["object", "null"]}`,
	}}
	v := NewJSONSchemaValidator(WithFetcher(fetcher))

	ok := map[string]interface{}{"id": "a", "geometry": nil}
	require.NoError(t, v.Validate(context.Background(), ok, []string{"https://example.com/item.json"}))
	assert.Equal(t, 2, fetcher.calls)

	bad := map[string]interface{}{"id": "a", "geometry": 5}
	err := v.Validate(context.Background(), bad, []string{"https://example.com/item.json"})
	require.Error(t, err)
	assert.True(t, stacerrors.IsValidation(err))
	assert.Equal(t, stacerrors.CodeDocumentFailed, stacerrors.GetCode(err))
	assert.Equal(t, 2, fetcher.calls)
}

func TestJSONSchemaValidator_FetchFailure(t *testing.T) {
	v := NewJSONSchemaValidator(WithFetcher(&countingFetcher{}))
	err := v.Validate(context.Background(), map[string]interface{}{}, []string{"https://example.com/missing.json"})
	require.Error(t, err)
	assert.True(t, stacerrors.IsConnection(err))
	assert.Equal(t, stacerrors.CodeSchemaFetch, stacerrors.GetCode(err))

	v = NewJSONSchemaValidator(WithFetcher(nil))
	err = v.Validate(context.Background(), map[string]interface{}{}, []string{"https://example.com/missing.json"})
	assert.True(t, stacerrors.IsConnection(err))
}

func TestJSONSchemaValidator_InvalidSchema(t *testing.T) {
	v := NewJSONSchemaValidator(WithFetcher(nil))
	err := v.AddSchema("https://example.com/broken.json", []byte(`{"type":`))
	assert.True(t, stacerrors.IsInvalidArgument(err))

	require.NoError(t, v.AddSchema("https://example.com/odd.json", []byte(`{"type": 12}`)))
	err = v.Validate(context.Background(), map[string]interface{}{}, []string{"https://example.com/odd.json"})
	assert.True(t, stacerrors.IsValidation(err))
	assert.Equal(t, stacerrors.CodeSchemaInvalid, stacerrors.GetCode(err))
}

func TestJSONSchemaValidator_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schema.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"type":"object","required":["stac_version"]}`))
	}))
	defer srv.Close()

	v := NewJSONSchemaValidator(WithFetcher(storage.NewHTTPStorage(srv.Client(), nil)))
	item := types.NewItem("x", nil)
	require.NoError(t, v.Validate(context.Background(), item, []string{srv.URL + "/schema.json"}))

	err := v.Validate(context.Background(), item, []string{srv.URL + "/other.json"})
	assert.True(t, stacerrors.IsConnection(err))
}

func TestJSONSchemaValidator_LoadSchemaDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schemas.stacspec.org", "v1.0.0", "item-spec", "json-schema", "item.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(itemSchema), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a schema"), 0644))

	v := NewJSONSchemaValidator(WithFetcher(nil))
	require.NoError(t, v.LoadSchemaDir(dir))

	item := types.NewItem("x", nil)
	require.NoError(t, v.Validate(context.Background(), item, []string{types.ItemSchemaURI}))
}
