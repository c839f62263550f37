package model

import (
	"math"

	"github.com/YuminosukeSato/craftcans/pkg/errors"
)

// IntParam coerces a hyperparameter value to int. Config files decoded as
// JSON deliver numbers as float64, so integral floats are accepted.
func IntParam(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(name, "must be an integer", v)
}

// Int64Param is IntParam for seeds.
func Int64Param(name string, v interface{}) (int64, error) {
	if x, ok := v.(int64); ok {
		return x, nil
	}
	i, err := IntParam(name, v)
	return int64(i), err
}

// FloatParam coerces a numeric hyperparameter value to float64.
func FloatParam(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "must be numeric", v)
}

// BoolParam checks that a hyperparameter value is a bool.
func BoolParam(name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidationError(name, "must be a bool", v)
	}
	return b, nil
}

// StringParam checks that a hyperparameter value is a string.
func StringParam(name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(name, "must be a string", v)
	}
	return s, nil
}
