package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is a map of key-value pairs attached to a domain object,
// persisted as a jsonb column.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for metadata: %T", value)
	}
	return json.Unmarshal(b, m)
}
