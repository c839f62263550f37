// Package datasets generates the toy regression benchmarks used to smoke
// test the modelling pipeline without any files on disk.
package datasets

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Bunch is a generated dataset.
type Bunch struct {
	Data         *mat.Dense
	Target       *mat.VecDense
	FeatureNames []string
	Description  string

	// Coef holds the true coefficients for MakeRegression, nil otherwise.
	Coef []float64
}

func newRand(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

func featureNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("x%d", i)
	}
	return names
}

// MakeFriedman1 draws nSamples rows of 10 features uniform on [0, 1) with
//
//	y = 10 sin(π x0 x1) + 20 (x2 − 0.5)² + 10 x3 + 5 x4 + noise·N(0, 1)
//
// Features x5..x9 do not influence y.
func MakeFriedman1(nSamples int, noise float64, seed int64) (*Bunch, error) {
	const nFeatures = 10
	if nSamples < 1 {
		return nil, errors.NewValidationError("n_samples", "must be >= 1", nSamples)
	}
	if noise < 0 {
		return nil, errors.NewValidationError("noise", "must be >= 0", noise)
	}

	r := newRand(seed)
	X := mat.NewDense(nSamples, nFeatures, nil)
	y := mat.NewVecDense(nSamples, nil)
	row := make([]float64, nFeatures)
	for i := 0; i < nSamples; i++ {
		for j := range row {
			row[j] = r.Float64()
		}
		X.SetRow(i, row)
		v := 10*math.Sin(math.Pi*row[0]*row[1]) +
			20*(row[2]-0.5)*(row[2]-0.5) +
			10*row[3] + 5*row[4]
		y.SetVec(i, v+noise*r.NormFloat64())
	}

	desc := fmt.Sprintf("Friedman #1 regression problem: %d samples, 10 features "+
		"(5 informative), noise=%g, seed=%d", nSamples, noise, seed)
	return &Bunch{
		Data:         X,
		Target:       y,
		FeatureNames: featureNames(nFeatures),
		Description:  desc,
	}, nil
}

// MakeRegression draws standard normal features and a linear target over
// nInformative randomly chosen features with coefficients uniform on [0, 100),
// plus noise·N(0, 1).
func MakeRegression(nSamples, nFeatures, nInformative int, noise float64, seed int64) (*Bunch, error) {
	switch {
	case nSamples < 1:
		return nil, errors.NewValidationError("n_samples", "must be >= 1", nSamples)
	case nFeatures < 1:
		return nil, errors.NewValidationError("n_features", "must be >= 1", nFeatures)
	case nInformative < 0 || nInformative > nFeatures:
		return nil, errors.NewValidationError("n_informative", "must be in [0, n_features]", nInformative)
	case noise < 0:
		return nil, errors.NewValidationError("noise", "must be >= 0", noise)
	}

	r := newRand(seed)
	X := mat.NewDense(nSamples, nFeatures, nil)
	for i := 0; i < nSamples; i++ {
		for j := 0; j < nFeatures; j++ {
			X.Set(i, j, r.NormFloat64())
		}
	}

	informative := r.Perm(nFeatures)[:nInformative]
	sort.Ints(informative)
	coef := make([]float64, nFeatures)
	for _, j := range informative {
		coef[j] = 100 * r.Float64()
	}

	y := mat.NewVecDense(nSamples, nil)
	y.MulVec(X, mat.NewVecDense(nFeatures, coef))
	for i := 0; i < nSamples; i++ {
		y.SetVec(i, y.AtVec(i)+noise*r.NormFloat64())
	}

	desc := fmt.Sprintf("Linear regression problem: %d samples, %d features "+
		"(%d informative), noise=%g, seed=%d", nSamples, nFeatures, nInformative, noise, seed)
	return &Bunch{
		Data:         X,
		Target:       y,
		FeatureNames: featureNames(nFeatures),
		Description:  desc,
		Coef:         coef,
	}, nil
}

// Names lists the generators accepted by Load.
func Names() []string { return []string{"friedman1", "regression"} }

// Load builds a named benchmark with nSamples rows.
func Load(name string, nSamples int, noise float64, seed int64) (*Bunch, error) {
	switch name {
	case "friedman1":
		return MakeFriedman1(nSamples, noise, seed)
	case "regression":
		return MakeRegression(nSamples, 10, 5, noise, seed)
	}
	return nil, errors.NewValidationError("dataset", fmt.Sprintf("must be one of %v", Names()), name)
}
