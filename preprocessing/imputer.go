package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/craftcans/core/model"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Imputation strategies understood by SimpleImputer.
const (
	StrategyMedian   = "median"
	StrategyMean     = "mean"
	StrategyConstant = "constant"
)

// SimpleImputer はNaNを列ごとの統計量で置き換える
type SimpleImputer struct {
	State *model.StateManager

	// Strategy は "median"、"mean"、"constant" のいずれか
	Strategy string

	// FillValue は Strategy が "constant" の場合に使う値
	FillValue float64

	// Statistics は学習した列ごとの置換値
	Statistics []float64
}

// NewSimpleImputer は指定した戦略のSimpleImputerを作成する
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{
		State:    model.NewStateManager(),
		Strategy: strategy,
	}
}

// Fit は各列の非欠損値から置換値を計算する
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Statistics = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		switch s.Strategy {
		case StrategyMedian:
			s.Statistics[j] = Median(col)
		case StrategyMean:
			present := dropNaN(col)
			if len(present) == 0 {
				s.Statistics[j] = math.NaN()
			} else {
				s.Statistics[j] = stat.Mean(present, nil)
			}
		case StrategyConstant:
			s.Statistics[j] = s.FillValue
		default:
			return errors.NewValidationError("strategy", "must be median, mean or constant", s.Strategy)
		}
		if math.IsNaN(s.Statistics[j]) {
			return errors.NewValueError("SimpleImputer.Fit", fmt.Sprintf("column %d has no observed values", j))
		}
	}

	s.State.SetDimensions(c, r)
	s.State.SetFitted()
	return nil
}

// Transform はNaNを学習済みの置換値で埋めたコピーを返す
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.State.CheckFeatures("SimpleImputer.Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return s.Statistics[j]
		}
		return v
	}, X)
	return result, nil
}

// FitTransform は学習と変換を同時に実行する
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// GetParams は strategy と fill_value を返す
func (s *SimpleImputer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"strategy":   s.Strategy,
		"fill_value": s.FillValue,
	}
}

// SetParams は strategy / fill_value を設定する
func (s *SimpleImputer) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "strategy":
			str, err := model.StringParam(k, v)
			if err != nil {
				return err
			}
			s.Strategy = str
		case "fill_value":
			f, err := model.FloatParam(k, v)
			if err != nil {
				return err
			}
			s.FillValue = f
		default:
			return errors.NewValidationError(k, "unknown SimpleImputer parameter", v)
		}
	}
	s.State.Reset()
	return nil
}

// Clone は同じ設定の未学習インスタンスを返す
func (s *SimpleImputer) Clone() model.Component {
	c := NewSimpleImputer(s.Strategy)
	c.FillValue = s.FillValue
	return c
}

func (s *SimpleImputer) String() string {
	return fmt.Sprintf("SimpleImputer(strategy='%s')", s.Strategy)
}

// Median はNaNを除いた値の中央値を返す。偶数個の場合は中央2値の平均。
// 値が1つもなければNaN。
func Median(values []float64) float64 {
	present := dropNaN(values)
	n := len(present)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(present)
	if n%2 == 1 {
		return present[n/2]
	}
	return (present[n/2-1] + present[n/2]) / 2
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
