package spatial

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

// EPSG codes with special handling.
const (
	EPSGWGS84       = 4326
	EPSGNAD83       = 4269
	EPSGWebMercator = 3857
)

// CRS identifies a coordinate reference system. EPSG is zero when the
// system has no EPSG identifier; PROJJSON then describes it.
type CRS struct {
	EPSG     int
	PROJJSON json.RawMessage
}

// WGS84 is the default GeoParquet CRS (OGC:CRS84, axis order lon/lat).
var WGS84 = CRS{EPSG: EPSGWGS84}

// Known reports whether the CRS is identified at all.
func (c CRS) Known() bool {
	return c.EPSG != 0 || len(c.PROJJSON) > 0
}

// IsWGS84 reports whether coordinates are already longitude/latitude.
func (c CRS) IsWGS84() bool {
	return c.EPSG == EPSGWGS84
}

func (c CRS) String() string {
	switch {
	case c.EPSG != 0:
		return "EPSG:" + strconv.Itoa(c.EPSG)
	case len(c.PROJJSON) > 0:
		var doc struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(c.PROJJSON, &doc) == nil && doc.Name != "" {
			return doc.Name
		}
		return "PROJJSON"
	default:
		return "undefined"
	}
}

type projID struct {
	Authority string          `json:"authority"`
	Code      json.RawMessage `json:"code"`
}

// ParseCRS interprets the "crs" member of a GeoParquet column. A missing
// member means OGC:CRS84; an explicit null means an undefined CRS.
// PROJJSON objects are identified by their id (or first ids entry);
// "AUTHORITY:CODE" strings are accepted as well.
func ParseCRS(raw json.RawMessage) (CRS, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return WGS84, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return CRS{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return CRS{}, invalidCRS(err)
		}
		authority, code, ok := strings.Cut(s, ":")
		if !ok {
			return CRS{}, stacerrors.NewInvalidArgumentf(stacerrors.CodeUnsupportedCRS, "unsupported CRS %q", s)
		}
		epsg, err := authorityCode(authority, []byte(strconv.Quote(code)))
		if err != nil {
			return CRS{}, err
		}
		return CRS{EPSG: epsg}, nil
	}

	var doc struct {
		ID  *projID  `json:"id"`
		IDs []projID `json:"ids"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return CRS{}, invalidCRS(err)
	}

	compact := &bytes.Buffer{}
	if err := json.Compact(compact, raw); err != nil {
		return CRS{}, invalidCRS(err)
	}
	crs := CRS{PROJJSON: compact.Bytes()}

	id := doc.ID
	if id == nil && len(doc.IDs) > 0 {
		id = &doc.IDs[0]
	}
	if id != nil {
		epsg, err := authorityCode(id.Authority, id.Code)
		if err != nil {
			return CRS{}, err
		}
		crs.EPSG = epsg
	}
	return crs, nil
}

// authorityCode maps an authority/code pair to an EPSG code, or zero when
// the pair names a CRS outside the EPSG registry.
func authorityCode(authority string, code json.RawMessage) (int, error) {
	var s string
	if err := json.Unmarshal(code, &s); err != nil {
		var n int
		if err := json.Unmarshal(code, &n); err != nil {
			return 0, invalidCRS(err)
		}
		s = strconv.Itoa(n)
	}

	switch strings.ToUpper(authority) {
	case "EPSG":
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, invalidCRS(err)
		}
		return n, nil
	case "OGC":
		if strings.EqualFold(s, "CRS84") {
			return EPSGWGS84, nil
		}
		if strings.EqualFold(s, "CRS83") {
			return EPSGNAD83, nil
		}
	}
	return 0, nil
}

func invalidCRS(err error) error {
	return stacerrors.Wrap(stacerrors.ErrCategoryInvalidArgument, stacerrors.CodeUnsupportedCRS,
		"malformed crs", err)
}
