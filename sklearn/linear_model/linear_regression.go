// Package linear_model provides ordinary least squares regression, used as
// the baseline the forest is compared against.
package linear_model

import (
	"encoding/gob"
	"math"

	"github.com/YuminosukeSato/craftcans/core/model"
	"github.com/YuminosukeSato/craftcans/metrics"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&LinearRegression{})
}

// LinearRegression は最小二乗法による線形回帰
//
// 係数は特異値分解による最小ノルム解で求めるため、one-hot列のように
// 線形従属な特徴量を含んでも学習できる。
type LinearRegression struct {
	State *model.StateManager

	FitIntercept bool

	// 学習済みパラメータ
	Coef      []float64
	Intercept float64
	Rank      int
}

// Option configures a LinearRegression.
type Option func(*LinearRegression)

// WithFitIntercept は切片の学習有無を設定
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) { lr.FitIntercept = fit }
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return errors.NewDimensionError("LinearRegression.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LinearRegression.Fit", 1, yCols, 1)
	}
	if rows == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}

	XWork := mat.DenseCopyOf(X)
	yWork := mat.NewDense(rows, 1, nil)
	yWork.Copy(y)

	// 切片ありの場合は中心化してから解く
	xMean := make([]float64, cols)
	var yMean float64
	if lr.FitIntercept {
		for j := 0; j < cols; j++ {
			xMean[j] = mat.Sum(XWork.ColView(j)) / float64(rows)
		}
		yMean = mat.Sum(yWork) / float64(rows)
		XWork.Apply(func(_, j int, v float64) float64 { return v - xMean[j] }, XWork)
		yWork.Apply(func(_, _ int, v float64) float64 { return v - yMean }, yWork)
	}

	var svd mat.SVD
	if ok := svd.Factorize(XWork, mat.SVDThin); !ok {
		return errors.NewNumericalInstabilityError("LinearRegression.Fit", nil, 0)
	}
	// numpy.linalg.lstsq と同じ rcond
	rcond := math.Nextafter(1, 2) - 1
	rcond *= float64(max(rows, cols))
	rank := svd.Rank(rcond)
	if rank == 0 {
		// 全特徴量が定数: 係数0、切片は平均
		lr.Coef = make([]float64, cols)
	} else {
		var coef mat.Dense
		svd.SolveTo(&coef, yWork, rank)
		lr.Coef = mat.Col(nil, 0, &coef)
	}
	lr.Rank = rank
	if err := errors.CheckNumericalStability("LinearRegression.Fit", lr.Coef, 0); err != nil {
		return err
	}

	lr.Intercept = 0
	if lr.FitIntercept {
		lr.Intercept = yMean
		for j, c := range lr.Coef {
			lr.Intercept -= xMean[j] * c
		}
	}
	if err := errors.CheckScalar("LinearRegression.Fit", lr.Intercept, 0); err != nil {
		return err
	}

	lr.State.SetFitted()
	lr.State.SetDimensions(cols, rows)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := lr.State.CheckFeatures("LinearRegression.Predict", cols); err != nil {
		return nil, err
	}

	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred := lr.Intercept
		for j := 0; j < cols; j++ {
			pred += X.At(i, j) * lr.Coef[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetParams returns the hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{"fit_intercept": lr.FitIntercept}
}

// SetParams updates hyperparameters and discards the fitted coefficients.
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "fit_intercept":
			b, err := model.BoolParam(k, v)
			if err != nil {
				return err
			}
			lr.FitIntercept = b
		default:
			return errors.NewValidationError(k, "unknown LinearRegression parameter", v)
		}
	}
	lr.Coef = nil
	lr.Intercept = 0
	lr.State.Reset()
	return nil
}

// Clone はモデルの新しいインスタンスを作成（同じハイパーパラメータ）
func (lr *LinearRegression) Clone() model.Component {
	return NewLinearRegression(WithFitIntercept(lr.FitIntercept))
}

func (lr *LinearRegression) String() string {
	if !lr.FitIntercept {
		return "LinearRegression(fit_intercept=False)"
	}
	return "LinearRegression()"
}
