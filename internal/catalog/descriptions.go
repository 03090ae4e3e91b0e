package catalog

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	stacerrors "github.com/stactable/stac-table/internal/errors"
	"github.com/stactable/stac-table/pkg/types"
)

var (
	// | name | type | nullable | description |
	markdownRow = regexp.MustCompile(`^\|\s*(\w*?)\s*\|\s*\w.*?\|.*?\|\s*(.*?)\s*\|$`)

	// * NAME = description
	definitionLine = regexp.MustCompile(`^\S\s+(\S+) = (.*)$`)
)

// ApplyDescriptions returns a copy of columns with descriptions set from
// descriptions. Columns still lacking a description are logged and
// returned by name.
func ApplyDescriptions(columns []types.Column, descriptions map[string]string, logger *slog.Logger) ([]types.Column, []string) {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]types.Column, len(columns))
	var missing []string
	for i, c := range columns {
		out[i] = c
		if d, ok := descriptions[c.Name]; ok && d != "" {
			out[i].Description = d
		}
		if out[i].Description == "" {
			missing = append(missing, c.Name)
			logger.Warn("column has no description", slog.String("column", c.Name))
		}
	}
	return out, missing
}

// ParseMarkdownTable reads column descriptions from markdown tables whose
// first column is the column name and fourth column the description.
// Header and separator rows are skipped.
func ParseMarkdownTable(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	header := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "|") {
			header = true
			continue
		}
		m := markdownRow.FindStringSubmatch(line)
		if m == nil || m[1] == "" {
			continue
		}
		if header {
			header = false
			continue
		}
		out[m[1]] = m[2]
	}
	if err := sc.Err(); err != nil {
		return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidDocument,
			"read markdown descriptions", err)
	}
	return out, nil
}

// ParseDefinitionList reads column descriptions from list items of the
// form "* NAME = description".
func ParseDefinitionList(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m := definitionLine.FindStringSubmatch(strings.TrimRight(sc.Text(), " \t\r"))
		if m == nil {
			continue
		}
		out[m[1]] = strings.TrimSpace(m[2])
	}
	if err := sc.Err(); err != nil {
		return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidDocument,
			"read definition list", err)
	}
	return out, nil
}

// LoadDescriptions reads a column description file. The format follows the
// extension: .md markdown tables, .txt definition lists, .yaml/.yml and
// .json name to description mappings.
func LoadDescriptions(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, readError("descriptions", path, err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".md", ".markdown":
		return ParseMarkdownTable(f)
	case ".txt":
		return ParseDefinitionList(f)
	case ".yaml", ".yml":
		out := make(map[string]string)
		if err := yaml.NewDecoder(f).Decode(&out); err != nil && err != io.EOF {
			return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidDocument,
				"parse descriptions "+path, err)
		}
		return out, nil
	case ".json":
		out := make(map[string]string)
		if err := json.NewDecoder(f).Decode(&out); err != nil {
			return nil, stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeInvalidDocument,
				"parse descriptions "+path, err)
		}
		return out, nil
	default:
		return nil, stacerrors.NewInvalidArgumentf(stacerrors.CodeInvalidOption,
			"unsupported descriptions format %q", ext)
	}
}
