package postgres

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// flexStrings accepts a JSON array of strings or a single string. Any other
// shape decodes to an empty list.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		*f = out
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil && strings.TrimSpace(single) != "" {
		*f = flexStrings{single}
		return nil
	}
	*f = flexStrings{}
	return nil
}

// flexFloat accepts a JSON number or a numeric string. It stays nil for
// anything else.
type flexFloat struct {
	value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.value = &n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
			f.value = &parsed
		}
	}
	return nil
}

// flexInt accepts a JSON number or a numeric string, truncating fractions.
type flexInt struct {
	value *int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var ff flexFloat
	_ = ff.UnmarshalJSON(data)
	if ff.value != nil {
		n := int(*ff.value)
		f.value = &n
	}
	return nil
}

// flexBool accepts true/false or the strings "true"/"false".
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, _ := strconv.ParseBool(strings.TrimSpace(s))
		*f = flexBool(parsed)
	}
	return nil
}

// flexString accepts a JSON string and ignores any other shape.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
	}
	return nil
}

// decodeMetadata fills out from a JSONB column. A column that is not a JSON
// object leaves out untouched and reports false.
func decodeMetadata(raw []byte, out any) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
	}
	return json.Unmarshal(raw, out) == nil
}

// nullableVector scans a vector column that may be NULL.
type nullableVector struct {
	vec []float32
}

func (v *nullableVector) Scan(src any) error {
	if src == nil {
		v.vec = nil
		return nil
	}
	var parsed pgvector.Vector
	if err := parsed.Scan(src); err != nil {
		return err
	}
	v.vec = parsed.Slice()
	return nil
}

func (v nullableVector) Value() (driver.Value, error) {
	if len(v.vec) == 0 {
		return nil, nil
	}
	return pgvector.NewVector(v.vec).Value()
}
