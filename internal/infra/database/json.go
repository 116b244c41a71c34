package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSON is a raw JSON column value.
type JSON json.RawMessage

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, errors.New("empty JSON value")
	}
	return string(j), nil
}

func (j *JSON) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = JSON(v)
	default:
		return errors.New("failed to scan JSON value")
	}
	return nil
}
