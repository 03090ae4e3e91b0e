package catalog

import (
	"context"
	"encoding/json"
	"log/slog"

	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/internal/storage"
	"github.com/stactable/stac-table/pkg/types"
)

const (
	itemsDir       = "items"
	collectionFile = "collection.json"
)

// Writer writes items and collections below an output location, a local
// directory or an object storage prefix:
//
//	<out>/collection.json
//	<out>/items/<id>.json
type Writer struct {
	store  storage.ObjectStorage
	base   string
	indent bool
	logger *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithIndent pretty-prints written documents.
func WithIndent(indent bool) WriterOption {
	return func(w *Writer) { w.indent = indent }
}

// WithWriterLogger sets the logger.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWriter returns a writer for the output location uri.
func NewWriter(ctx context.Context, uri string, storageOpts map[string]string, opts ...WriterOption) (*Writer, error) {
	store, base, err := storage.Resolve(ctx, uri, storageOpts)
	if err != nil {
		return nil, err
	}
	return NewStorageWriter(store, base, opts...), nil
}

// NewStorageWriter returns a writer putting documents below base in store.
func NewStorageWriter(store storage.ObjectStorage, base string, opts ...WriterOption) *Writer {
	w := &Writer{store: store, base: base, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ItemPath returns the object path an item is written to.
func (w *Writer) ItemPath(id string) string {
	return storage.JoinPath(w.base, itemsDir, id+".json")
}

// CollectionPath returns the object path the collection is written to.
func (w *Writer) CollectionPath() string {
	return storage.JoinPath(w.base, collectionFile)
}

// WriteItem writes item to items/<id>.json and returns the object path.
func (w *Writer) WriteItem(ctx context.Context, item *types.Item) (string, error) {
	if item == nil || item.ID == "" {
		return "", stacerrors.NewInvalidArgument(stacerrors.CodeMissingOption, "item id is required")
	}
	path := w.ItemPath(item.ID)
	return path, w.put(ctx, path, item)
}

// WriteCollection writes c to collection.json and returns the object path.
func (w *Writer) WriteCollection(ctx context.Context, c *types.Collection) (string, error) {
	if c == nil {
		return "", stacerrors.NewInvalidArgument(stacerrors.CodeMissingOption, "collection is required")
	}
	path := w.CollectionPath()
	return path, w.put(ctx, path, c)
}

func (w *Writer) put(ctx context.Context, path string, doc interface{}) error {
	data, err := Encode(doc, w.indent)
	if err != nil {
		return err
	}
	if err := w.store.Put(ctx, path, data); err != nil {
		return err
	}
	w.logger.Debug("wrote document", slog.String("path", path), slog.Int("bytes", len(data)))
	return nil
}

// Encode marshals doc as JSON followed by a newline.
func Encode(doc interface{}, indent bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return nil, stacerrors.NewInternalError("encode document", err)
	}
	return append(data, '\n'), nil
}

// ReadItem reads an item document from uri.
func ReadItem(ctx context.Context, uri string, storageOpts map[string]string) (*types.Item, error) {
	store, path, err := storage.Resolve(ctx, uri, storageOpts)
	if err != nil {
		return nil, err
	}
	data, err := storage.ReadAll(ctx, store, path)
	if err != nil {
		return nil, err
	}
	item := &types.Item{}
	if err := json.Unmarshal(data, item); err != nil {
		return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidDocument,
			"decode item "+uri, err)
	}
	return item, nil
}
