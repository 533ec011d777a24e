package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is an ordered list of strings stored as JSON text in SQL
// and as an array in Mongo.
type StringList []string

// GormDataType tells gorm which column type to migrate to.
func (StringList) GormDataType() string { return "text" }

func (l StringList) Value() (driver.Value, error) {
	return encodeStrings(l)
}

func (l *StringList) Scan(src interface{}) error {
	return decodeStrings((*[]string)(l), src)
}

func (l StringList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// StringSet is a StringList without duplicates, kept in insertion order.
type StringSet []string

func (StringSet) GormDataType() string { return "text" }

func (s StringSet) Value() (driver.Value, error) {
	return encodeStrings(s)
}

func (s *StringSet) Scan(src interface{}) error {
	return decodeStrings((*[]string)(s), src)
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// Contains reports whether v is in the set.
func (s StringSet) Contains(v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// Toggle returns a new set with v removed if present, appended otherwise.
// The second result is true when v was added.
func (s StringSet) Toggle(v string) (StringSet, bool) {
	out := make(StringSet, 0, len(s)+1)
	found := false
	for _, e := range s {
		if e == v {
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		out = append(out, v)
	}
	return out, !found
}

func encodeStrings(v []string) (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeStrings(dst *[]string, src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*dst = []string{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into string list", src)
	}
	if len(raw) == 0 {
		*dst = []string{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	*dst = out
	return nil
}
