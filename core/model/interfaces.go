package model

// ParameterGetter is the interface for models that expose their hyperparameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters keyed by their
	// scikit-learn names ("n_estimators", "with_mean", ...).
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets hyperparameters by name. Unknown names are an error.
	SetParams(params map[string]interface{}) error
}

// Component is anything with scikit-learn style hyperparameters that can be
// copied for cross-validation.
type Component interface {
	ParameterGetter
	ParameterSetter

	// Clone returns an unfitted copy carrying the same hyperparameters.
	Clone() Component
}

// Regressor combines interfaces for regression models usable in a
// Pipeline's final step or in GridSearchCV.
type Regressor interface {
	Component
	Estimator
	Scorer
}

// TransformerComponent is a Transformer usable as an intermediate Pipeline step.
type TransformerComponent interface {
	Component
	Transformer
}

// FeatureImportancer is implemented by models that report impurity-based
// feature importances.
type FeatureImportancer interface {
	FeatureImportances() ([]float64, error)
}
