package types

import (
	"encoding/json"
	"fmt"
)

// Asset points at a file or dataset described by an Item or Collection.
type Asset struct {
	Href        string
	Title       string
	Description string
	MediaType   string
	Roles       []string

	// ExtraFields are inlined next to the standard asset fields,
	// e.g. "table:storage_options".
	ExtraFields map[string]interface{}
}

// NewDataAsset creates the asset describing the root of a parquet dataset.
func NewDataAsset(href string, extraFields map[string]interface{}) *Asset {
	return &Asset{
		Href:        href,
		Title:       "Dataset root",
		MediaType:   ParquetMediaType,
		Roles:       []string{"data"},
		ExtraFields: cloneMap(extraFields),
	}
}

// Clone returns a deep copy of the asset.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Roles = cloneStrings(a.Roles)
	cp.ExtraFields = cloneMap(a.ExtraFields)
	return &cp
}

// MarshalJSON encodes the asset with its extra fields inlined.
func (a Asset) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(a.ExtraFields)+5)
	for k, v := range a.ExtraFields {
		doc[k] = v
	}
	doc["href"] = a.Href
	if a.Title != "" {
		doc["title"] = a.Title
	}
	if a.Description != "" {
		doc["description"] = a.Description
	}
	if a.MediaType != "" {
		doc["type"] = a.MediaType
	}
	if len(a.Roles) > 0 {
		doc["roles"] = a.Roles
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes an asset, collecting unknown fields into ExtraFields.
func (a *Asset) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Asset{}
	for key, value := range raw {
		var err error
		switch key {
		case "href":
			err = json.Unmarshal(value, &a.Href)
		case "title":
			err = json.Unmarshal(value, &a.Title)
		case "description":
			err = json.Unmarshal(value, &a.Description)
		case "type":
			err = json.Unmarshal(value, &a.MediaType)
		case "roles":
			err = json.Unmarshal(value, &a.Roles)
		default:
			var v interface{}
			err = json.Unmarshal(value, &v)
			if a.ExtraFields == nil {
				a.ExtraFields = make(map[string]interface{})
			}
			a.ExtraFields[key] = v
		}
		if err != nil {
			return fmt.Errorf("decoding asset field %q: %w", key, err)
		}
	}
	return nil
}

// ItemAsset describes the assets common to every item of a collection
// (the item-assets extension). It is an Asset without an href.
type ItemAsset struct {
	Title       string
	Description string
	MediaType   string
	Roles       []string
	ExtraFields map[string]interface{}
}

// MarshalJSON encodes the item asset with its extra fields inlined.
func (a ItemAsset) MarshalJSON() ([]byte, error) {
	doc := make(map[string]interface{}, len(a.ExtraFields)+4)
	for k, v := range a.ExtraFields {
		doc[k] = v
	}
	if a.Title != "" {
		doc["title"] = a.Title
	}
	if a.Description != "" {
		doc["description"] = a.Description
	}
	if a.MediaType != "" {
		doc["type"] = a.MediaType
	}
	if len(a.Roles) > 0 {
		doc["roles"] = a.Roles
	}
	return json.Marshal(doc)
}

// Link is a STAC link object.
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Common link relation types.
const (
	RelLicense = "license"
	RelSelf    = "self"
	RelRoot    = "root"
	RelItem    = "item"
	RelParent  = "parent"
)
