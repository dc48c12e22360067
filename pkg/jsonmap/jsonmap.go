package jsonmap

import (
	"fmt"
	"sort"

	"gorm.io/datatypes"
)

// FromStringMap converts a string map into a GORM JSON map value.
func FromStringMap(values map[string]string) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}

// ToStringMap converts a JSON map into a string map. Non-string
// values are rendered with fmt.
func ToStringMap(values datatypes.JSONMap) map[string]string {
	out := make(map[string]string, len(values))
	for key, value := range values {
		switch v := value.(type) {
		case string:
			out[key] = v
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out
}

// Clone copies a JSON map so a snapshot can outlive later edits of
// the source.
func Clone(values datatypes.JSONMap) datatypes.JSONMap {
	if values == nil {
		return nil
	}
	out := make(datatypes.JSONMap, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}

// SortedKeys returns the keys of a JSON map in lexical order.
func SortedKeys(values datatypes.JSONMap) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
