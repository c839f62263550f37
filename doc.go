// Package craftcans is a small scikit-learn style regression toolkit and
// the walkthrough built on it: predicting a beer's alcohol by volume from
// its bitterness, can size and style in the craft-cans dataset.
//
// # Quick Start
//
//	go run ./cmd/craftcans run --archive data/craft-cans.zip
//
// The run command extracts the archive, prints null counts, head rows and
// summary statistics, fills abv and ibu with their medians, drops the
// remaining incomplete rows, one-hot encodes style and grid-searches a
// StandardScaler → RandomForestRegressor pipeline over n_estimators with
// 5-fold cross-validation.
//
// The same pieces are usable as a library:
//
//	pipe, _ := pipeline.NewPipeline(
//	    pipeline.Step{Name: "scaler", Estimator: preprocessing.NewStandardScalerDefault()},
//	    pipeline.Step{Name: "rfreg", Estimator: ensemble.NewRandomForestRegressor(ensemble.WithRandomState(42))},
//	)
//	search := model_selection.NewGridSearchCV(pipe,
//	    map[string][]interface{}{"rfreg__n_estimators": {10, 15, 20}},
//	    model_selection.WithNJobs(-1),
//	)
//	if err := search.Fit(XTrain, yTrain); err != nil {
//	    log.Fatal(err)
//	}
//
// # Packages
//
//   - frame: CSV loading, inspection and cleaning on top of gota
//   - preprocessing: StandardScaler, SimpleImputer, OneHotEncoder
//   - sklearn/tree, sklearn/ensemble: CART regression trees and random forests
//   - sklearn/linear_model: least squares baseline
//   - sklearn/pipeline: chained transformers and a final estimator
//   - sklearn/model_selection: train/test split, KFold, ParameterGrid, GridSearchCV
//   - metrics: MSE, RMSE, MAE, R²
//   - datasets: generated regression benchmarks
//   - core/model: interfaces, fitted state and gob persistence
//   - core/parallel: goroutine fan-out with n_jobs semantics
package craftcans
