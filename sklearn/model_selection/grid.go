package model_selection

import (
	"sort"

	"github.com/YuminosukeSato/craftcans/pkg/errors"
)

// ParameterGrid expands a grid into every combination of its values. Keys
// are iterated in sorted order with the last key varying fastest, so the
// candidate order is deterministic.
func ParameterGrid(grid map[string][]interface{}) ([]map[string]interface{}, error) {
	if len(grid) == 0 {
		return []map[string]interface{}{{}}, nil
	}

	keys := make([]string, 0, len(grid))
	for k, values := range grid {
		if len(values) == 0 {
			return nil, errors.NewValidationError(k, "parameter grid values must be non-empty", values)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]interface{}{{}}
	for _, k := range keys {
		next := make([]map[string]interface{}, 0, len(combos)*len(grid[k]))
		for _, base := range combos {
			for _, v := range grid[k] {
				m := make(map[string]interface{}, len(base)+1)
				for bk, bv := range base {
					m[bk] = bv
				}
				m[k] = v
				next = append(next, m)
			}
		}
		combos = next
	}
	return combos, nil
}
