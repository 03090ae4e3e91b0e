package storage

import (
	"context"
	"testing"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri  string
		want Location
	}{
		{"/data/gbif", Location{Scheme: SchemeFile, Path: "/data/gbif"}},
		{"file:///data/gbif", Location{Scheme: SchemeFile, Path: "/data/gbif"}},
		{"s3://bucket/occurrence/2021-04-13/", Location{Scheme: SchemeS3, Container: "bucket", Path: "occurrence/2021-04-13"}},
		{"gs://bucket/a/b.parquet", Location{Scheme: SchemeGCS, Container: "bucket", Path: "a/b.parquet"}},
		{"gcs://bucket", Location{Scheme: SchemeGCS, Container: "bucket", Path: ""}},
		{"abfs://cpdata/raw/fia/tree.parquet", Location{Scheme: SchemeAzure, Container: "cpdata", Path: "raw/fia/tree.parquet"}},
		{"az://gbif/occurrence", Location{Scheme: SchemeAzure, Container: "gbif", Path: "occurrence"}},
		{
			"abfss://us-census@ai4edataeuwest.dfs.core.windows.net/2020/cb_2020_us_state_500k.parquet",
			Location{Scheme: SchemeAzure, Container: "us-census", Account: "ai4edataeuwest", Path: "2020/cb_2020_us_state_500k.parquet"},
		},
		{"https://example.com/data.parquet", Location{Scheme: SchemeHTTP, Path: "https://example.com/data.parquet"}},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			if err != nil {
				t.Fatalf("ParseURI(%q) failed: %v", tt.uri, err)
			}
			if got != tt.want {
				t.Errorf("ParseURI(%q) = %+v, want %+v", tt.uri, got, tt.want)
			}
		})
	}
}

func TestParseURI_Errors(t *testing.T) {
	_, err := ParseURI("ftp://host/file.parquet")
	if !stacerrors.IsConnection(err) {
		t.Errorf("expected connection error for unknown scheme, got %v", err)
	}
	if stacerrors.GetCode(err) != stacerrors.CodeUnsupportedScheme {
		t.Errorf("expected code %s, got %s", stacerrors.CodeUnsupportedScheme, stacerrors.GetCode(err))
	}

	_, err = ParseURI("")
	if !stacerrors.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument for empty URI, got %v", err)
	}
}

func TestResolve_Local(t *testing.T) {
	dir := t.TempDir()
	store, path, err := Resolve(context.Background(), "file://"+dir, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, ok := store.(*LocalStorage); !ok {
		t.Errorf("expected *LocalStorage, got %T", store)
	}
	if path != dir {
		t.Errorf("expected path %q, got %q", dir, path)
	}
}

func TestResolve_AzureRequiresAccount(t *testing.T) {
	_, _, err := Resolve(context.Background(), "abfs://container/path", nil)
	if !stacerrors.IsConnection(err) {
		t.Errorf("expected connection error without account_name, got %v", err)
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		base string
		elem []string
		want string
	}{
		{"", []string{"items", "a.json"}, "items/a.json"},
		{"stac/", []string{"items", "a.json"}, "stac/items/a.json"},
		{"/tmp/out", []string{"collection.json"}, "/tmp/out/collection.json"},
		{"https://example.com/stac", []string{"/items/"}, "https://example.com/stac/items"},
	}
	for _, tt := range tests {
		if got := JoinPath(tt.base, tt.elem...); got != tt.want {
			t.Errorf("JoinPath(%q, %v) = %q, want %q", tt.base, tt.elem, got, tt.want)
		}
	}
}

func TestS3ConfigFromOptions(t *testing.T) {
	cfg := S3ConfigFromOptions(map[string]string{
		"region":       "eu-west-1",
		"endpoint_url": "http://localhost:9000",
		"anon":         "true",
		"path_style":   "1",
	})
	if cfg.Region != "eu-west-1" || cfg.Endpoint != "http://localhost:9000" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.Anonymous || !cfg.UsePathStyle {
		t.Errorf("expected anonymous path-style config, got %+v", cfg)
	}

	if def := S3ConfigFromOptions(nil); def.Region != "us-east-1" {
		t.Errorf("expected default region, got %q", def.Region)
	}
}
