package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/craftcans/core/model"
	"github.com/YuminosukeSato/craftcans/frame"
	"github.com/YuminosukeSato/craftcans/internal/config"
	"github.com/YuminosukeSato/craftcans/internal/report"
	"github.com/YuminosukeSato/craftcans/internal/store"
	"github.com/YuminosukeSato/craftcans/metrics"
	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"github.com/YuminosukeSato/craftcans/pkg/log"
	"github.com/YuminosukeSato/craftcans/preprocessing"
	"github.com/YuminosukeSato/craftcans/sklearn/ensemble"
	"github.com/YuminosukeSato/craftcans/sklearn/linear_model"
	"github.com/YuminosukeSato/craftcans/sklearn/model_selection"
	"github.com/YuminosukeSato/craftcans/sklearn/pipeline"
)

const (
	scalerStep = "scaler"
	forestStep = "rfreg"
	linearStep = "linreg"

	// headRows is the number of rows shown by the head() step.
	headRows = 5
)

// Walkthrough runs the craft-cans analysis and prints each step's output.
type Walkthrough struct {
	Config *config.Config
	Out    io.Writer

	logger log.Logger
}

// Tables holds the two raw tables after loading.
type Tables struct {
	Beers     *frame.Frame
	Breweries *frame.Frame
	Extracted []string
}

// Result is everything a run produced.
type Result struct {
	Dataset      string
	CleanRows    int
	FeatureNames []string
	Split        *model_selection.TrainTest
	Search       *model_selection.GridSearchCV
	Importances  []report.Importance
	TestR2       float64
	TestMSE      float64
	BaselineR2   float64
	BaselineMSE  float64
	RunID        string
	Duration     time.Duration
}

// NewWalkthrough creates a walkthrough writing its report to out and its
// log records to the "app" logger of logs.
func NewWalkthrough(cfg *config.Config, out io.Writer, logs log.LoggerProvider) *Walkthrough {
	return &Walkthrough{Config: cfg, Out: out, logger: logs.GetLoggerWithName("app")}
}

func (w *Walkthrough) printf(format string, args ...any) {
	fmt.Fprintf(w.Out, format, args...)
}

func (w *Walkthrough) section(title, body string) {
	fmt.Fprint(w.Out, report.Section(title))
	fmt.Fprint(w.Out, body)
}

// Run executes the full sequence: extract, load, inspect, clean, encode,
// split, grid search and report.
func (w *Walkthrough) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	tables, err := w.Load(ctx)
	if err != nil {
		return nil, err
	}
	w.Inspect(tables)

	beers, err := w.Clean(tables.Beers)
	if err != nil {
		return nil, err
	}
	X, y, names, err := beers.XY(w.Config.Model.Target)
	if err != nil {
		return nil, errors.Wrap(err, "separate target")
	}

	res, err := w.Model(ctx, "craft-cans", X, y, names)
	if err != nil {
		return nil, err
	}
	res.CleanRows, _ = beers.Shape()
	res.Duration = time.Since(start)

	if err := w.persist(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Load extracts the archive and reads both tables.
func (w *Walkthrough) Load(ctx context.Context) (*Tables, error) {
	cfg := w.Config
	extracted, err := frame.ExtractArchive(ctx, cfg.Data.Archive, cfg.Data.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "extract %s", cfg.Data.Archive)
	}

	beers, err := frame.ReadCSV(cfg.BeersPath(), frame.ReadOptions{})
	if err != nil {
		return nil, err
	}
	breweries, err := frame.ReadCSV(cfg.BreweriesPath(), frame.ReadOptions{})
	if err != nil {
		return nil, err
	}
	return &Tables{Beers: beers, Breweries: breweries, Extracted: extracted}, nil
}

// Inspect prints the descriptive views of the raw tables.
func (w *Walkthrough) Inspect(t *Tables) {
	w.section("Extracted files", "")
	for _, p := range t.Extracted {
		w.printf("%s\n", p)
	}

	w.section("Beers: dtypes and null counts", report.RenderInfo(t.Beers.Info()))
	w.section("Beers: head", report.RenderFrame(t.Beers.Head(headRows)))
	w.section("Beers: summary statistics", report.RenderDescribe(t.Beers.Describe()))
	w.section("Breweries: dtypes and null counts", report.RenderInfo(t.Breweries.Info()))
	w.section("Breweries: head", report.RenderFrame(t.Breweries.Head(headRows)))
}

// Clean turns the raw beers table into a fully numeric frame: the stray
// index column is dropped, median columns filled, remaining incomplete rows
// dropped, identifier columns removed and categoricals one-hot encoded.
func (w *Walkthrough) Clean(beers *frame.Frame) (*frame.Frame, error) {
	cc := w.Config.Clean
	var err error

	if cc.IndexColumn != "" && beers.HasColumn(cc.IndexColumn) {
		if beers, err = beers.DropColumns(cc.IndexColumn); err != nil {
			return nil, err
		}
	}

	for _, col := range cc.Categorical {
		counts, err := beers.ValueCounts(col)
		if err != nil {
			return nil, err
		}
		w.section(fmt.Sprintf("Top %d %s values", cc.TopStyles, col),
			report.RenderValueCounts(col, counts, cc.TopStyles))
	}

	var fills string
	for _, col := range cc.MedianColumns {
		var median float64
		beers, median, err = beers.FillNAMedian(col)
		if err != nil {
			return nil, err
		}
		fills += fmt.Sprintf("%s: filled with median %s\n", col, report.FormatFloat(median))
	}
	beers, dropped, err := beers.DropNA()
	if err != nil {
		return nil, err
	}
	rows, _ := beers.Shape()
	fills += fmt.Sprintf("dropped %d incomplete rows, %d remain, %d nulls left\n",
		dropped, rows, beers.TotalNulls())
	w.section("Missing values", fills)
	w.logger.Info("missing values handled",
		log.PhaseKey, log.PhasePreprocessing,
		log.DroppedRowsKey, dropped,
		log.SamplesKey, rows,
	)

	if len(cc.DropColumns) > 0 {
		if beers, err = beers.DropColumns(cc.DropColumns...); err != nil {
			return nil, err
		}
	}
	if len(cc.Categorical) > 0 {
		if beers, err = beers.GetDummies(cc.Categorical...); err != nil {
			return nil, err
		}
	}
	_, cols := beers.Shape()
	w.section("Encoded features", fmt.Sprintf("%d rows, %d columns\n", rows, cols)+
		report.RenderFrame(beers.Head(headRows)))
	return beers, nil
}

// newPipeline builds the scaler → random forest pipeline.
func (w *Walkthrough) newPipeline() (*pipeline.Pipeline, error) {
	return pipeline.NewPipeline(
		pipeline.Step{Name: scalerStep, Estimator: preprocessing.NewStandardScalerDefault()},
		pipeline.Step{Name: forestStep, Estimator: ensemble.NewRandomForestRegressor(
			ensemble.WithRandomState(w.Config.Model.RandomState),
		)},
	)
}

// Model splits X and y, grid-searches the pipeline on the training rows
// and reports on the held-out rows.
func (w *Walkthrough) Model(ctx context.Context, dataset string, X *mat.Dense, y *mat.VecDense, names []string) (*Result, error) {
	mc := w.Config.Model

	split, err := model_selection.TrainTestSplit(X, y, model_selection.SplitOptions{
		TestSize:    mc.TestSize,
		RandomState: mc.RandomState,
	})
	if err != nil {
		return nil, errors.Wrap(err, "train/test split")
	}
	w.section("Train/test split", report.RenderShapes(split))

	pipe, err := w.newPipeline()
	if err != nil {
		return nil, err
	}
	candidates := make([]interface{}, len(mc.NEstimatorsGrid))
	for i, n := range mc.NEstimatorsGrid {
		candidates[i] = n
	}
	search := model_selection.NewGridSearchCV(pipe,
		map[string][]interface{}{forestStep + pipeline.ParamSep + "n_estimators": candidates},
		model_selection.WithCV(mc.CV),
		model_selection.WithNJobs(mc.NJobs),
	)

	start := time.Now()
	if err := search.FitContext(ctx, split.XTrain, split.YTrain); err != nil {
		return nil, errors.Wrap(err, "grid search")
	}
	w.logger.Info("grid search finished",
		log.OperationKey, log.OperationSearch,
		log.SamplesKey, len(split.TrainIndices),
		log.FeaturesKey, len(names),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	w.section("Grid search", report.RenderSearch(search))
	best, ok := search.BestEstimator.(*pipeline.Pipeline)
	if !ok {
		return nil, errors.Newf("unexpected best estimator type %T", search.BestEstimator)
	}
	w.section("Named steps", report.RenderNamedSteps(best))
	w.section("Cross-validation results", report.RenderCVResults(search.CVResults))

	res := &Result{
		Dataset:      dataset,
		FeatureNames: names,
		Split:        split,
		Search:       search,
	}

	if step, ok := best.Step(forestStep); ok {
		if fi, ok := step.(model.FeatureImportancer); ok {
			values, err := fi.FeatureImportances()
			if err != nil {
				return nil, err
			}
			res.Importances = report.TopImportances(names, values, w.Config.Report.TopK)
			w.section(fmt.Sprintf("Top %d feature importances", len(res.Importances)),
				report.RenderImportances(res.Importances))
		}
	}

	res.TestR2, err = search.Score(split.XTest, split.YTest)
	if err != nil {
		return nil, errors.Wrap(err, "score held-out rows")
	}
	pred, err := search.Predict(split.XTest)
	if err != nil {
		return nil, errors.Wrap(err, "predict held-out rows")
	}
	res.TestMSE, err = metrics.MSEMatrix(split.YTest, pred)
	if err != nil {
		return nil, err
	}
	if res.BaselineR2, res.BaselineMSE, err = w.baseline(split); err != nil {
		return nil, err
	}
	w.section("Held-out score", report.RenderScores([]report.ModelScore{
		{Model: "best estimator", R2: res.TestR2, MSE: res.TestMSE},
		{Model: "linear baseline", R2: res.BaselineR2, MSE: res.BaselineMSE},
	}))
	w.logger.Info("held-out evaluation",
		log.PhaseKey, log.PhaseTesting,
		log.R2ScoreKey, res.TestR2,
		log.MSEKey, res.TestMSE,
	)
	return res, nil
}

// baseline fits scaler → LinearRegression on the training rows and scores
// it on the held-out rows.
func (w *Walkthrough) baseline(split *model_selection.TrainTest) (r2, mse float64, err error) {
	pipe, err := pipeline.NewPipeline(
		pipeline.Step{Name: scalerStep, Estimator: preprocessing.NewStandardScalerDefault()},
		pipeline.Step{Name: linearStep, Estimator: linear_model.NewLinearRegression()},
	)
	if err != nil {
		return 0, 0, err
	}
	if err := pipe.Fit(split.XTrain, split.YTrain); err != nil {
		return 0, 0, errors.Wrap(err, "fit linear baseline")
	}
	pred, err := pipe.Predict(split.XTest)
	if err != nil {
		return 0, 0, err
	}
	if r2, err = metrics.R2ScoreMatrix(split.YTest, pred); err != nil {
		return 0, 0, err
	}
	if mse, err = metrics.MSEMatrix(split.YTest, pred); err != nil {
		return 0, 0, err
	}
	return r2, mse, nil
}

// persist writes the optional artifacts: importance chart, fitted model and
// a history row.
func (w *Walkthrough) persist(res *Result) error {
	rc := w.Config.Report
	if rc.Plot != "" && len(res.Importances) > 0 {
		if err := report.PlotImportances(rc.Plot, res.Importances); err != nil {
			return err
		}
		w.printf("importance chart written to %s\n", rc.Plot)
	}
	if rc.ModelOut != "" {
		if err := model.SaveModel(res.Search.BestEstimator, rc.ModelOut); err != nil {
			return err
		}
		w.printf("best estimator written to %s\n", rc.ModelOut)
	}

	if w.Config.Store.Path == "" {
		return nil
	}
	s, err := store.New(w.Config.Store.Path)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.CreateSchema(); err != nil {
		return err
	}
	trainRows, nFeatures := res.Split.XTrain.Dims()
	res.RunID, err = s.InsertRun(&store.Run{
		Dataset:     res.Dataset,
		BestParams:  res.Search.BestParams,
		BestCVScore: res.Search.BestScore,
		TestR2:      res.TestR2,
		TestMSE:     res.TestMSE,
		TrainRows:   trainRows,
		TestRows:    len(res.Split.TestIndices),
		NFeatures:   nFeatures,
		Duration:    res.Duration,
	})
	if err != nil {
		return err
	}
	w.printf("run %s recorded in %s\n", res.RunID, w.Config.Store.Path)
	w.logger.Info("run recorded", log.RunIDKey, res.RunID)
	return nil
}
