package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"

	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/storage"
)

// Validator checks a document against a set of JSON schemas.
type Validator interface {
	Validate(ctx context.Context, doc interface{}, schemaURIs []string) error
}

// SchemaFetcher retrieves a schema document by URL.
type SchemaFetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// JSONSchemaValidator validates documents with compiled JSON schemas.
// Schemas are fetched on first use and cached by URI; AddSchema registers
// offline copies.
type JSONSchemaValidator struct {
	mu       sync.Mutex
	compiler *jsonschema.Compiler
	compiled map[string]*jsonschema.Schema
	fetcher  SchemaFetcher
	logger   *slog.Logger
}

// ValidatorOption configures a JSONSchemaValidator.
type ValidatorOption func(*JSONSchemaValidator)

// WithFetcher sets how remote schemas are retrieved. A nil fetcher
// disables remote loading.
func WithFetcher(f SchemaFetcher) ValidatorOption {
	return func(v *JSONSchemaValidator) { v.fetcher = f }
}

// WithValidatorLogger sets the logger.
func WithValidatorLogger(logger *slog.Logger) ValidatorOption {
	return func(v *JSONSchemaValidator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewJSONSchemaValidator returns a validator that loads remote schemas
// over HTTP.
func NewJSONSchemaValidator(opts ...ValidatorOption) *JSONSchemaValidator {
	v := &JSONSchemaValidator{
		compiler: jsonschema.NewCompiler(),
		compiled: make(map[string]*jsonschema.Schema),
		fetcher:  storage.NewHTTPStorage(http.DefaultClient, nil),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// AddSchema registers the body of the schema identified by uri.
func (v *JSONSchemaValidator) AddSchema(uri string, body []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.compiler.AddResource(uri, bytes.NewReader(body)); err != nil {
		return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidDocument,
			"invalid schema "+uri, err)
	}
	return nil
}

// LoadSchemaDir registers every .json file below dir. A file's URI is
// https:// followed by its path relative to dir, so
// dir/schemas.stacspec.org/v1.0.0/item-spec/json-schema/item.json serves
// https://schemas.stacspec.org/v1.0.0/item-spec/json-schema/item.json.
func (v *JSONSchemaValidator) LoadSchemaDir(dir string) error {
	var count int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		count++
		return v.AddSchema("https://"+filepath.ToSlash(rel), body)
	})
	if err != nil {
		if stacerrors.GetCategory(err) != "" {
			return err
		}
		return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidOption,
			"load schema directory "+dir, err)
	}
	v.logger.Debug("loaded offline schemas", slog.String("dir", dir), slog.Int("count", count))
	return nil
}

// Validate checks doc against every schema in schemaURIs, in order, and
// returns the first violation as a ValidationFailure.
func (v *JSONSchemaValidator) Validate(ctx context.Context, doc interface{}, schemaURIs []string) error {
	instance, err := toJSONValue(doc)
	if err != nil {
		return err
	}
	for _, uri := range schemaURIs {
		sch, err := v.schema(ctx, uri)
		if err != nil {
			return err
		}
		if err := sch.Validate(instance); err != nil {
			return stacerrors.NewValidationError(stacerrors.CodeDocumentFailed,
				"document does not validate against "+uri, err)
		}
	}
	return nil
}

func (v *JSONSchemaValidator) schema(ctx context.Context, uri string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if sch, ok := v.compiled[uri]; ok {
		return sch, nil
	}

	var fetchErr error
	v.compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if v.fetcher == nil {
			fetchErr = errors.Newf("remote schema loading disabled: %s", url)
			return nil, fetchErr
		}
		v.logger.Debug("fetching schema", slog.String("url", url))
		body, err := v.fetcher.Get(ctx, url)
		if err != nil {
			fetchErr = err
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	defer func() { v.compiler.LoadURL = nil }()

	sch, err := v.compiler.Compile(uri)
	if err != nil {
		if fetchErr != nil {
			return nil, stacerrors.NewConnectionError(stacerrors.CodeSchemaFetch, "fetch schema "+uri, fetchErr)
		}
		return nil, stacerrors.NewValidationError(stacerrors.CodeSchemaInvalid, "compile schema "+uri, err)
	}
	v.compiled[uri] = sch
	return sch, nil
}

// toJSONValue converts doc to the generic JSON form the validator walks.
func toJSONValue(doc interface{}) (interface{}, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, stacerrors.NewInternalError("encode document", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, stacerrors.NewInternalError("decode document", err)
	}
	return out, nil
}

var _ Validator = (*JSONSchemaValidator)(nil)
