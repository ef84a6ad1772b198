// Package dotpath resolves dot-separated paths into nested JSON-like data.
package dotpath

import (
	"strconv"
	"strings"
)

// Resolve walks a dot-separated path into data and returns the value found
// and whether the full path resolved. Missing intermediate keys resolve to
// (nil, false) rather than raising. Numeric segments index into slices.
//
//	Resolve("order.items.0.sku", data)
func Resolve(path string, data map[string]any) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = data

	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}

			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}

			current = node[index]
		default:
			return nil, false
		}
	}

	return current, true
}

// Exists reports whether the path resolves to a non-nil value. Empty strings
// and zero values count as existing; only nil (or an unresolvable path) does
// not.
func Exists(path string, data map[string]any) bool {
	value, ok := Resolve(path, data)

	return ok && value != nil
}
