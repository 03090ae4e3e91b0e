package types

// Column describes a single column of a table, as recorded under the
// table extension's "table:columns" field.
type Column struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the lowercased parquet physical type (double, byte_array, int64, ...)
	Type string `json:"type,omitempty"`

	// Description is a human readable description of the column
	Description string `json:"description,omitempty"`

	// Metadata holds the field's key/value metadata, if any
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TableDescriptor describes one table of a multi-table collection, as
// recorded under the collection's "table:tables" field.
type TableDescriptor struct {
	// Name is the display name of the table
	Name string `json:"name" yaml:"name"`

	// Description is a human readable description of the table
	Description string `json:"description,omitempty" yaml:"description"`

	// ItemName is the id of the item describing this table
	ItemName string `json:"msft:item_name,omitempty" yaml:"item_name"`
}

// ColumnNames returns the names of the columns in order.
func ColumnNames(columns []Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

func cloneColumns(columns []Column) []Column {
	if columns == nil {
		return nil
	}
	out := make([]Column, len(columns))
	for i, c := range columns {
		out[i] = c
		if c.Metadata != nil {
			out[i].Metadata = make(map[string]string, len(c.Metadata))
			for k, v := range c.Metadata {
				out[i].Metadata[k] = v
			}
		}
	}
	return out
}
