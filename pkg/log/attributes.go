// Standard attribute keys for structured log records.
//
// Keys follow a dotted hierarchy ("model.name", "data.samples") so records
// from the loader, the preprocessors and the model selection code can be
// filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator or transformer type.
	// Examples: "RandomForestRegressor", "StandardScaler", "Pipeline"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score", "load", "extract"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the walkthrough.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// PathKey is the file being read or written.
	PathKey = "data.path"

	// ColumnKey names the column an operation applies to.
	ColumnKey = "data.column"

	// DroppedRowsKey counts rows removed by a cleaning step.
	DroppedRowsKey = "data.dropped_rows"

	// FillValueKey records the statistic used for imputation.
	FillValueKey = "data.fill_value"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// MSEKey records the mean squared error.
	MSEKey = "metrics.mse"

	// FoldKey records the cross-validation fold index.
	FoldKey = "cv.fold"

	// CandidateKey records the grid search candidate index.
	CandidateKey = "cv.candidate"
)

// Error and Configuration Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// WorkersKey records the number of goroutines used.
	WorkersKey = "infra.workers"

	// RunIDKey identifies a walkthrough run in the history store.
	RunIDKey = "run.id"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"
	OperationLoad         = "load"
	OperationExtract      = "extract"
	OperationSearch       = "search"

	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
)
