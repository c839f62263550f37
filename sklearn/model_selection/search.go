package model_selection

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/YuminosukeSato/craftcans/core/model"
	"github.com/YuminosukeSato/craftcans/core/parallel"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/YuminosukeSato/craftcans/pkg/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CVResults is the per-candidate table produced by GridSearchCV, laid out
// like scikit-learn's cv_results_ dictionary.
type CVResults struct {
	Params []map[string]interface{}

	// SplitTestScores[candidate][fold]
	SplitTestScores [][]float64
	MeanTestScore   []float64
	StdTestScore    []float64
	RankTestScore   []int

	// 秒単位
	MeanFitTime   []float64
	StdFitTime    []float64
	MeanScoreTime []float64
	StdScoreTime  []float64
}

// ParamNames returns the sorted union of parameter names across candidates.
func (r *CVResults) ParamNames() []string {
	seen := make(map[string]bool)
	for _, p := range r.Params {
		for k := range p {
			seen[k] = true
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NCandidates returns the number of parameter combinations evaluated.
func (r *CVResults) NCandidates() int { return len(r.Params) }

// SearchOption configures a GridSearchCV.
type SearchOption func(*GridSearchCV)

// WithCV sets the number of folds.
func WithCV(k int) SearchOption {
	return func(g *GridSearchCV) { g.CV = k }
}

// WithNJobs sets the number of concurrent fits. -1 uses every core.
func WithNJobs(n int) SearchOption {
	return func(g *GridSearchCV) { g.NJobs = n }
}

// WithRefit controls whether the best candidate is refit on all the data.
func WithRefit(refit bool) SearchOption {
	return func(g *GridSearchCV) { g.Refit = refit }
}

// GridSearchCV evaluates every combination in ParamGrid with k-fold
// cross-validation and keeps the candidate with the highest mean R².
type GridSearchCV struct {
	Estimator model.Regressor
	ParamGrid map[string][]interface{}
	CV        int
	NJobs     int
	Refit     bool

	CVResults     *CVResults
	BestIndex     int
	BestScore     float64
	BestParams    map[string]interface{}
	BestEstimator model.Regressor
	RefitTime     time.Duration
	NSplits       int
}

// NewGridSearchCV creates a search with 5 folds, one job and refit enabled.
func NewGridSearchCV(estimator model.Regressor, grid map[string][]interface{}, opts ...SearchOption) *GridSearchCV {
	g := &GridSearchCV{
		Estimator: estimator,
		ParamGrid: grid,
		CV:        5,
		NJobs:     1,
		Refit:     true,
		BestIndex: -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type cvTask struct {
	candidate int
	fold      int
}

type cvOutcome struct {
	score     float64
	fitTime   float64
	scoreTime float64
	err       error
}

type foldData struct {
	XTrain, YTrain, XTest, YTest *mat.Dense
}

// Fit runs the search without a deadline.
func (g *GridSearchCV) Fit(X, y mat.Matrix) error {
	return g.FitContext(context.Background(), X, y)
}

// FitContext runs every candidate × fold fit, fanning out over NJobs
// goroutines. A failing fit scores NaN and raises a FitFailedWarning; the
// search fails only when every fit fails or ctx is cancelled.
func (g *GridSearchCV) FitContext(ctx context.Context, X, y mat.Matrix) error {
	logger := log.Component("model_selection")
	start := time.Now()

	candidates, err := ParameterGrid(g.ParamGrid)
	if err != nil {
		return err
	}
	n, _ := X.Dims()
	yn, _ := y.Dims()
	if n != yn {
		return errors.NewDimensionError("GridSearchCV.Fit", n, yn, 0)
	}
	folds, err := NewKFold(g.CV, false, 0).Split(n)
	if err != nil {
		return err
	}

	data := make([]foldData, len(folds))
	for i, f := range folds {
		data[i] = foldData{
			XTrain: SelectRows(X, f.TrainIndices),
			YTrain: SelectRows(y, f.TrainIndices),
			XTest:  SelectRows(X, f.TestIndices),
			YTest:  SelectRows(y, f.TestIndices),
		}
	}

	tasks := make([]cvTask, 0, len(candidates)*len(folds))
	for c := range candidates {
		for f := range folds {
			tasks = append(tasks, cvTask{candidate: c, fold: f})
		}
	}

	logger.Info("fitting grid search",
		log.ModelNameKey, "GridSearchCV",
		log.OperationKey, log.OperationSearch,
		"n_candidates", len(candidates),
		"n_splits", len(folds),
		log.WorkersKey, parallel.Workers(g.NJobs),
	)

	outcomes := make([]cvOutcome, len(tasks))
	parallel.ParallelizeN(len(tasks), g.NJobs, func(s, e int) {
		for i := s; i < e; i++ {
			if ctx.Err() != nil {
				outcomes[i] = cvOutcome{score: math.NaN(), err: ctx.Err()}
				continue
			}
			t := tasks[i]
			outcomes[i] = g.evaluate(candidates[t.candidate], data[t.fold])
		}
	})
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "grid search cancelled")
	}

	results := &CVResults{Params: candidates}
	failed := 0
	for c := range candidates {
		scores := make([]float64, len(folds))
		fitTimes := make([]float64, len(folds))
		scoreTimes := make([]float64, len(folds))
		for f := range folds {
			o := outcomes[c*len(folds)+f]
			scores[f], fitTimes[f], scoreTimes[f] = o.score, o.fitTime, o.scoreTime
			if o.err != nil {
				failed++
				errors.Warn(errors.NewFitFailedWarning(candidates[c], f, o.err))
				logger.Warn("candidate fit failed",
					log.CandidateKey, c,
					log.FoldKey, f,
					log.ErrAttr(o.err),
				)
			}
		}
		results.SplitTestScores = append(results.SplitTestScores, scores)
		mean, std := meanStd(scores)
		results.MeanTestScore = append(results.MeanTestScore, mean)
		results.StdTestScore = append(results.StdTestScore, std)
		mean, std = meanStd(fitTimes)
		results.MeanFitTime = append(results.MeanFitTime, mean)
		results.StdFitTime = append(results.StdFitTime, std)
		mean, std = meanStd(scoreTimes)
		results.MeanScoreTime = append(results.MeanScoreTime, mean)
		results.StdScoreTime = append(results.StdScoreTime, std)
	}
	if failed == len(tasks) {
		return errors.Wrapf(errors.ErrAllFitsFailed, "all %d fits failed; last error: %v",
			len(tasks), outcomes[len(outcomes)-1].err)
	}

	results.RankTestScore = rankScores(results.MeanTestScore)
	g.CVResults = results
	g.NSplits = len(folds)
	g.BestIndex = -1
	for i, r := range results.RankTestScore {
		if r == 1 {
			g.BestIndex = i
			break
		}
	}
	if g.BestIndex < 0 || math.IsNaN(results.MeanTestScore[g.BestIndex]) {
		return errors.Wrap(errors.ErrAllFitsFailed, "no candidate has a finite mean score")
	}
	g.BestScore = results.MeanTestScore[g.BestIndex]
	g.BestParams = candidates[g.BestIndex]

	if g.Refit {
		refitStart := time.Now()
		best, err := g.build(g.BestParams)
		if err != nil {
			return err
		}
		if err := best.Fit(X, y); err != nil {
			return errors.Wrap(err, "GridSearchCV refit")
		}
		g.BestEstimator = best
		g.RefitTime = time.Since(refitStart)
	}

	logger.Info("grid search finished",
		log.ModelNameKey, "GridSearchCV",
		log.OperationKey, log.OperationSearch,
		log.R2ScoreKey, g.BestScore,
		log.HyperParamsKey, g.BestParams,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (g *GridSearchCV) build(params map[string]interface{}) (model.Regressor, error) {
	est, ok := g.Estimator.Clone().(model.Regressor)
	if !ok {
		return nil, errors.NewValueError("GridSearchCV", "estimator clone is not a regressor")
	}
	if err := est.SetParams(params); err != nil {
		return nil, err
	}
	return est, nil
}

func (g *GridSearchCV) evaluate(params map[string]interface{}, d foldData) (out cvOutcome) {
	out.score = math.NaN()
	out.err = errors.SafeExecute("GridSearchCV.evaluate", func() error {
		est, err := g.build(params)
		if err != nil {
			return err
		}

		t0 := time.Now()
		err = est.Fit(d.XTrain, d.YTrain)
		out.fitTime = time.Since(t0).Seconds()
		if err != nil {
			return err
		}

		t1 := time.Now()
		score, err := est.Score(d.XTest, d.YTest)
		out.scoreTime = time.Since(t1).Seconds()
		if err != nil {
			return err
		}
		out.score = score
		return nil
	})
	return out
}

// meanStd returns the mean and population standard deviation. Any NaN makes
// both NaN.
func meanStd(values []float64) (float64, float64) {
	for _, v := range values {
		if math.IsNaN(v) {
			return math.NaN(), math.NaN()
		}
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	return mean, math.Sqrt(variance)
}

// rankScores ranks descending with ties sharing the lowest rank ("min"
// method). NaN scores rank after every finite score.
func rankScores(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	key := func(i int) float64 {
		if math.IsNaN(scores[i]) {
			return math.Inf(-1)
		}
		return scores[i]
	}
	sort.SliceStable(order, func(a, b int) bool { return key(order[a]) > key(order[b]) })

	ranks := make([]int, len(scores))
	for pos, idx := range order {
		if pos > 0 && key(idx) == key(order[pos-1]) && !math.IsNaN(scores[idx]) {
			ranks[idx] = ranks[order[pos-1]]
			continue
		}
		ranks[idx] = pos + 1
	}
	return ranks
}

// Predict uses the refit best estimator.
func (g *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if g.BestEstimator == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "Predict")
	}
	return g.BestEstimator.Predict(X)
}

// Score returns the best estimator's R² on X, y.
func (g *GridSearchCV) Score(X, y mat.Matrix) (float64, error) {
	if g.BestEstimator == nil {
		return 0, errors.NewNotFittedError("GridSearchCV", "Score")
	}
	return g.BestEstimator.Score(X, y)
}

// String renders the search like scikit-learn's repr, e.g.
// GridSearchCV(cv=5, estimator=Pipeline(...), n_jobs=-1, param_grid={'rfreg__n_estimators': [10, 15, 20]}).
func (g *GridSearchCV) String() string {
	args := []string{fmt.Sprintf("cv=%d", g.CV), fmt.Sprintf("estimator=%v", g.Estimator)}
	if g.NJobs != 1 {
		args = append(args, fmt.Sprintf("n_jobs=%d", g.NJobs))
	}

	keys := make([]string, 0, len(g.ParamGrid))
	for k := range g.ParamGrid {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]string, len(keys))
	for i, k := range keys {
		vals := make([]string, len(g.ParamGrid[k]))
		for j, v := range g.ParamGrid[k] {
			vals[j] = FormatParam(v)
		}
		entries[i] = fmt.Sprintf("'%s': [%s]", k, strings.Join(vals, ", "))
	}
	args = append(args, "param_grid={"+strings.Join(entries, ", ")+"}")
	if !g.Refit {
		args = append(args, "refit=False")
	}
	return "GridSearchCV(" + strings.Join(args, ", ") + ")"
}

// FormatParam prints a hyperparameter value the way Python would.
func FormatParam(v interface{}) string {
	switch x := v.(type) {
	case string:
		return "'" + x + "'"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case nil:
		return "None"
	}
	return fmt.Sprint(v)
}

// FormatParams prints a parameter map as a sorted Python dict literal.
func FormatParams(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("'%s': %s", k, FormatParam(params[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
