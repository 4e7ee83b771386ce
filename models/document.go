package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// FileRefs is an ordered list of opaque file reference URLs. Legacy rows
// persisted either a bare path string or a JSON-encoded array; Scan accepts
// both and normalizes to a list, Value always writes a JSON array.
type FileRefs []string

func (f *FileRefs) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*f = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into FileRefs", value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		*f = nil
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var refs []string
		if err := json.Unmarshal([]byte(raw), &refs); err != nil {
			return fmt.Errorf("malformed file reference list: %w", err)
		}
		*f = refs
		return nil
	}
	// Legacy single-path representation.
	*f = FileRefs{raw}
	return nil
}

func (f FileRefs) Value() (driver.Value, error) {
	if f == nil {
		f = FileRefs{}
	}
	b, err := json.Marshal([]string(f))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f FileRefs) First() string {
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
