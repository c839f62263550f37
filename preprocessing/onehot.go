package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/craftcans/core/model"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// HandleUnknown options for OneHotEncoder.
const (
	HandleUnknownError  = "error"
	HandleUnknownIgnore = "ignore"
)

// OneHotEncoder expands one string column into indicator columns, one per
// category seen during Fit. Categories are sorted lexically, which matches
// the column order produced by pandas.get_dummies.
type OneHotEncoder struct {
	State *model.StateManager

	// HandleUnknown decides what Transform does with a category not seen
	// during Fit: "error" fails, "ignore" emits an all-zero row.
	HandleUnknown string

	// Categories holds the sorted categories learned by Fit.
	Categories []string

	index map[string]int
}

// NewOneHotEncoder creates an encoder that rejects unknown categories.
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{
		State:         model.NewStateManager(),
		HandleUnknown: HandleUnknownError,
	}
}

// Fit learns the category set.
func (e *OneHotEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	seen := make(map[string]struct{})
	for _, v := range values {
		seen[v] = struct{}{}
	}
	e.Categories = make([]string, 0, len(seen))
	for v := range seen {
		e.Categories = append(e.Categories, v)
	}
	sort.Strings(e.Categories)
	e.buildIndex()

	e.State.SetDimensions(1, len(values))
	e.State.SetFitted()
	return nil
}

func (e *OneHotEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Categories))
	for i, c := range e.Categories {
		e.index[c] = i
	}
}

// Transform returns a len(values)×len(Categories) 0/1 matrix.
func (e *OneHotEncoder) Transform(values []string) (*mat.Dense, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}
	if e.index == nil {
		// gob does not carry the lookup map
		e.buildIndex()
	}

	out := mat.NewDense(len(values), len(e.Categories), nil)
	for i, v := range values {
		j, ok := e.index[v]
		if !ok {
			if e.HandleUnknown == HandleUnknownIgnore {
				continue
			}
			return nil, errors.NewValueError("OneHotEncoder.Transform", "unknown category "+v)
		}
		out.Set(i, j, 1)
	}
	return out, nil
}

// FitTransform fits the encoder and encodes the same values.
func (e *OneHotEncoder) FitTransform(values []string) (*mat.Dense, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// FeatureNames returns "<prefix>_<category>" for every learned category.
func (e *OneHotEncoder) FeatureNames(prefix string) []string {
	names := make([]string, len(e.Categories))
	for i, c := range e.Categories {
		names[i] = prefix + "_" + c
	}
	return names
}
