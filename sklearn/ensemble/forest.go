// Package ensemble implements bagged tree ensembles.
package ensemble

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"strings"

	"github.com/YuminosukeSato/craftcans/core/model"
	"github.com/YuminosukeSato/craftcans/core/parallel"
	"github.com/YuminosukeSato/craftcans/metrics"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/YuminosukeSato/craftcans/pkg/log"
	"github.com/YuminosukeSato/craftcans/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&RandomForestRegressor{})
}

// RandomForestRegressor はブートストラップ標本で学習した回帰木の平均を予測する
type RandomForestRegressor struct {
	State *model.StateManager

	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	RandomState     int64
	NJobs           int

	Estimators  []*tree.DecisionTreeRegressor
	Importances []float64
}

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(f *RandomForestRegressor) { f.NEstimators = n }
}

// WithMaxDepth limits every tree's depth. 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(f *RandomForestRegressor) { f.MaxDepth = d }
}

// WithMinSamplesSplit sets min_samples_split for every tree.
func WithMinSamplesSplit(n int) Option {
	return func(f *RandomForestRegressor) { f.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets min_samples_leaf for every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForestRegressor) { f.MinSamplesLeaf = n }
}

// WithMaxFeatures sets the features drawn per split. 0 means all.
func WithMaxFeatures(k int) Option {
	return func(f *RandomForestRegressor) { f.MaxFeatures = k }
}

// WithBootstrap toggles bootstrap sampling of rows.
func WithBootstrap(b bool) Option {
	return func(f *RandomForestRegressor) { f.Bootstrap = b }
}

// WithRandomState seeds tree construction.
func WithRandomState(seed int64) Option {
	return func(f *RandomForestRegressor) { f.RandomState = seed }
}

// WithNJobs sets how many trees are grown concurrently. -1 uses every core.
func WithNJobs(n int) Option {
	return func(f *RandomForestRegressor) { f.NJobs = n }
}

// NewRandomForestRegressor creates a forest with scikit-learn defaults
// (100 trees, bootstrap, all features, one job).
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		State:           model.NewStateManager(),
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		NJobs:           1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit grows NEstimators trees. Tree i is seeded with the i-th draw from a
// generator seeded by RandomState, so results do not depend on NJobs.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", f.NEstimators)
	}
	ds, err := tree.NewDataset(X, y)
	if err != nil {
		return errors.Wrap(err, "RandomForestRegressor.Fit")
	}
	n := ds.NSamples()

	master := rand.New(rand.NewSource(f.RandomState))
	seeds := make([]int64, f.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*tree.DecisionTreeRegressor, f.NEstimators)
	errs := make([]error, f.NEstimators)

	parallel.ParallelizeN(f.NEstimators, f.NJobs, func(start, end int) {
		for i := start; i < end; i++ {
			errs[i] = f.fitTree(ds, n, seeds[i], &trees[i])
		}
	})
	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "RandomForestRegressor.Fit: tree %d", i)
		}
	}

	f.Estimators = trees
	f.Importances = averageImportances(trees, ds.NFeatures())
	f.State.SetDimensions(ds.NFeatures(), n)
	f.State.SetFitted()

	log.Component("ensemble").Debug("forest fitted",
		log.ModelNameKey, "RandomForestRegressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, ds.NFeatures(),
		"n_estimators", f.NEstimators,
	)
	return nil
}

func (f *RandomForestRegressor) fitTree(ds *tree.Dataset, n int, seed int64, out **tree.DecisionTreeRegressor) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.fitTree")

	var indices []int
	if f.Bootstrap {
		r := rand.New(rand.NewSource(seed))
		indices = make([]int, n)
		for j := range indices {
			indices[j] = r.Intn(n)
		}
	}

	t := tree.NewDecisionTreeRegressor(
		tree.WithMaxDepth(f.MaxDepth),
		tree.WithMinSamplesSplit(f.MinSamplesSplit),
		tree.WithMinSamplesLeaf(f.MinSamplesLeaf),
		tree.WithMaxFeatures(f.MaxFeatures),
		tree.WithRandomState(seed),
	)
	if err := t.FitDataset(ds, indices); err != nil {
		return err
	}
	*out = t
	return nil
}

// averageImportances averages per-tree importances over trees that split at
// least once and renormalizes. A forest of stumps reports all zeros.
func averageImportances(trees []*tree.DecisionTreeRegressor, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	used := 0
	for _, t := range trees {
		if t.NodeCount() <= 1 {
			continue
		}
		used++
		for j, v := range t.Importances {
			out[j] += v
		}
	}
	var total float64
	for j := range out {
		out[j] = errors.SafeDivide(out[j], float64(used))
		total += out[j]
	}
	for j := range out {
		out[j] = errors.SafeDivide(out[j], total)
	}
	return out
}

// Predict returns the mean of the tree predictions as an n×1 matrix.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.State.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := f.State.CheckFeatures("RandomForestRegressor.Predict", c); err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix("RandomForestRegressor.Predict", X, r, c); err != nil {
		return nil, err
	}

	out := mat.NewDense(r, 1, nil)
	parallel.ParallelizeN(r, f.NJobs, func(start, end int) {
		for i := start; i < end; i++ {
			var sum float64
			for _, t := range f.Estimators {
				sum += t.PredictRow(X, i)
			}
			out.Set(i, 0, sum/float64(len(f.Estimators)))
		}
	})
	return out, nil
}

// Score returns R² of the predictions against y.
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// FeatureImportances returns the impurity-based importances, summing to 1.
func (f *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := f.State.RequireFitted("RandomForestRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), f.Importances...), nil
}

// GetParams returns the hyperparameters using scikit-learn names.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.NEstimators,
		"max_depth":         f.MaxDepth,
		"min_samples_split": f.MinSamplesSplit,
		"min_samples_leaf":  f.MinSamplesLeaf,
		"max_features":      f.MaxFeatures,
		"bootstrap":         f.Bootstrap,
		"random_state":      f.RandomState,
		"n_jobs":            f.NJobs,
	}
}

// SetParams updates hyperparameters and discards fitted trees.
func (f *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			f.NEstimators, err = model.IntParam(k, v)
		case "max_depth":
			f.MaxDepth, err = model.IntParam(k, v)
		case "min_samples_split":
			f.MinSamplesSplit, err = model.IntParam(k, v)
		case "min_samples_leaf":
			f.MinSamplesLeaf, err = model.IntParam(k, v)
		case "max_features":
			f.MaxFeatures, err = model.IntParam(k, v)
		case "bootstrap":
			f.Bootstrap, err = model.BoolParam(k, v)
		case "random_state":
			f.RandomState, err = model.Int64Param(k, v)
		case "n_jobs":
			f.NJobs, err = model.IntParam(k, v)
		default:
			err = errors.NewValidationError(k, "unknown RandomForestRegressor parameter", v)
		}
		if err != nil {
			return err
		}
	}
	f.Estimators = nil
	f.Importances = nil
	f.State.Reset()
	return nil
}

// Clone returns an unfitted forest with the same hyperparameters.
func (f *RandomForestRegressor) Clone() model.Component {
	return NewRandomForestRegressor(
		WithNEstimators(f.NEstimators),
		WithMaxDepth(f.MaxDepth),
		WithMinSamplesSplit(f.MinSamplesSplit),
		WithMinSamplesLeaf(f.MinSamplesLeaf),
		WithMaxFeatures(f.MaxFeatures),
		WithBootstrap(f.Bootstrap),
		WithRandomState(f.RandomState),
		WithNJobs(f.NJobs),
	)
}

// String prints the parameters that differ from the defaults, e.g.
// RandomForestRegressor(n_estimators=20, random_state=42).
func (f *RandomForestRegressor) String() string {
	var args []string
	if f.MaxDepth != 0 {
		args = append(args, fmt.Sprintf("max_depth=%d", f.MaxDepth))
	}
	if f.MaxFeatures != 0 {
		args = append(args, fmt.Sprintf("max_features=%d", f.MaxFeatures))
	}
	if f.MinSamplesLeaf != 1 {
		args = append(args, fmt.Sprintf("min_samples_leaf=%d", f.MinSamplesLeaf))
	}
	if f.MinSamplesSplit != 2 {
		args = append(args, fmt.Sprintf("min_samples_split=%d", f.MinSamplesSplit))
	}
	if !f.Bootstrap {
		args = append(args, "bootstrap=False")
	}
	if f.NEstimators != 100 {
		args = append(args, fmt.Sprintf("n_estimators=%d", f.NEstimators))
	}
	if f.NJobs != 1 {
		args = append(args, fmt.Sprintf("n_jobs=%d", f.NJobs))
	}
	if f.RandomState != 0 {
		args = append(args, fmt.Sprintf("random_state=%d", f.RandomState))
	}
	return "RandomForestRegressor(" + strings.Join(args, ", ") + ")"
}
