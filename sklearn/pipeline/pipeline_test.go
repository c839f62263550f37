package pipeline

import (
	"bytes"
	"testing"

	"github.com/YuminosukeSato/craftcans/core/model"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/YuminosukeSato/craftcans/preprocessing"
	"github.com/YuminosukeSato/craftcans/sklearn/ensemble"
	"github.com/YuminosukeSato/craftcans/sklearn/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newScaledForest() *Pipeline {
	return MustNew(
		Step{Name: "scaler", Estimator: preprocessing.NewStandardScalerDefault()},
		Step{Name: "rfreg", Estimator: ensemble.NewRandomForestRegressor(ensemble.WithRandomState(42))},
	)
}

func sample(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b := float64(i), float64((i*7)%13)
		X.SetRow(i, []float64{a * 100, b})
		y.Set(i, 0, 0.02*a+b)
	}
	return X, y
}

func TestPipeline_FitPredictScore(t *testing.T) {
	X, y := sample(60)
	p := newScaledForest()
	require.NoError(t, p.SetParams(map[string]interface{}{"rfreg__n_estimators": 10}))
	require.NoError(t, p.Fit(X, y))

	scaler := p.NamedSteps()["scaler"].(*preprocessing.StandardScaler)
	assert.True(t, scaler.State.IsFitted())

	pred, err := p.Predict(X)
	require.NoError(t, err)
	r, c := pred.Dims()
	assert.Equal(t, 60, r)
	assert.Equal(t, 1, c)

	score, err := p.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.8)
}

func TestPipeline_Params(t *testing.T) {
	p := newScaledForest()

	params := p.GetParams()
	assert.Equal(t, 100, params["rfreg__n_estimators"])
	assert.Equal(t, true, params["scaler__with_mean"])
	assert.Contains(t, p.ParamNames(), "rfreg__random_state")

	require.NoError(t, p.SetParams(map[string]interface{}{
		"rfreg__n_estimators": 15,
		"scaler__with_std":    false,
	}))
	rf, ok := p.Step("rfreg")
	require.True(t, ok)
	assert.Equal(t, 15, rf.(*ensemble.RandomForestRegressor).NEstimators)

	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{"missing separator", map[string]interface{}{"n_estimators": 10}},
		{"unknown step", map[string]interface{}{"svr__C": 1.0}},
		{"unknown param", map[string]interface{}{"rfreg__loss": "huber"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *errors.ValidationError
			assert.True(t, errors.As(p.SetParams(tt.params), &ve))
		})
	}
}

func TestPipeline_CloneAndString(t *testing.T) {
	p := newScaledForest()
	assert.Equal(t,
		"Pipeline(steps=[('scaler', StandardScaler()), ('rfreg', RandomForestRegressor(random_state=42))])",
		p.String())

	X, y := sample(30)
	require.NoError(t, p.SetParams(map[string]interface{}{"rfreg__n_estimators": 5}))
	require.NoError(t, p.Fit(X, y))

	c := p.Clone().(*Pipeline)
	assert.False(t, c.State.IsFitted())
	assert.Equal(t, p.GetParams(), c.GetParams())
	// 元のステップとは別インスタンス
	assert.NotSame(t, p.Steps[1].Estimator, c.Steps[1].Estimator)

	_, err := c.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestNewPipeline_Validation(t *testing.T) {
	scaler := preprocessing.NewStandardScalerDefault()
	dt := tree.NewDecisionTreeRegressor()

	tests := []struct {
		name  string
		steps []Step
	}{
		{"empty", nil},
		{"duplicate", []Step{{"a", scaler}, {"a", dt}}},
		{"bad name", []Step{{"a__b", scaler}, {"c", dt}}},
		{"estimator in the middle", []Step{{"dt", dt}, {"dt2", tree.NewDecisionTreeRegressor()}, {"x", scaler}}},
		{"transformer last", []Step{{"scaler", scaler}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(tt.steps...)
			assert.Error(t, err)
		})
	}

	_, err := NewPipeline(Step{"dt", dt})
	assert.NoError(t, err)
}

func TestPipeline_Persistence(t *testing.T) {
	X, y := sample(40)
	p := newScaledForest()
	require.NoError(t, p.SetParams(map[string]interface{}{"rfreg__n_estimators": 3}))
	require.NoError(t, p.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(p, &buf))
	var loaded Pipeline
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	a, _ := p.Predict(X)
	b, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
}
