package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is one remote result, reduced to its attribute bag.
type Record struct {
	Attributes map[string]string
}

// UnmarshalJSON decodes {"@attributes": {...}}. Non-string attribute values
// are rendered to their JSON text; nulls are dropped.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Attributes map[string]any `json:"@attributes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Attributes = make(map[string]string, len(raw.Attributes))
	for k, v := range raw.Attributes {
		switch val := v.(type) {
		case nil:
		case string:
			r.Attributes[k] = val
		case float64:
			r.Attributes[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			r.Attributes[k] = strconv.FormatBool(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return fmt.Errorf("attribute %q: %w", k, err)
			}
			r.Attributes[k] = string(b)
		}
	}
	return nil
}

// With returns a copy of r with extra attributes set.
func (r Record) With(extra map[string]string) Record {
	attrs := make(map[string]string, len(r.Attributes)+len(extra))
	for k, v := range r.Attributes {
		attrs[k] = v
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return Record{Attributes: attrs}
}

// Records decodes either a single record object or an array of records; the
// upstream API returns the bare object when there is exactly one result.
type Records []Record

func (rs *Records) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*rs = nil
		return nil
	case data[0] == '[':
		var list []Record
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*rs = list
		return nil
	default:
		var one Record
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*rs = Records{one}
		return nil
	}
}

// Project maps a record onto schema: attributes outside the schema are
// dropped and schema columns the record lacks become null.
func Project(rec Record, schema Schema) Row {
	row := make(Row, len(schema.Columns))
	for i, col := range schema.Columns {
		if v, ok := rec.Attributes[col]; ok {
			row[i] = Cell(v)
		}
	}
	return row
}
