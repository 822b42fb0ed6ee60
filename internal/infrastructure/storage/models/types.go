// Package models holds the bun-tagged row shapes for the rule-engine schema
// (§3, §5): rulesets, rules, mapping tables, maintenance windows, correlation
// rules, plus the poller's dedupe and cursor tables.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringArray is a custom type for PostgreSQL TEXT[] columns.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	bytes, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	s := string(bytes)
	if len(s) >= 2 {
		return "{" + s[1:len(s)-1] + "}", nil
	}
	return "{}", nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = make(StringArray, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan StringArray: unexpected type")
	}

	if len(bytes) == 0 || string(bytes) == "{}" {
		*a = make(StringArray, 0)
		return nil
	}

	s := string(bytes)
	if len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}' {
		jsonStr := "[" + s[1:len(s)-1] + "]"
		return json.Unmarshal([]byte(jsonStr), a)
	}

	return errors.New("invalid PostgreSQL array format")
}
