// Package model_selection provides train/test splitting, k-fold
// cross-validation and exhaustive grid search over hyperparameters.
package model_selection

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/craftcans/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DefaultTestSize is the held-out fraction when none is given.
const DefaultTestSize = 0.25

// SplitOptions configures TrainTestSplit.
type SplitOptions struct {
	// TestSize は (0, 1) のテスト比率。0 の場合は DefaultTestSize
	TestSize    float64
	RandomState int64
	// NoShuffle keeps the original row order: the last rows form the test set.
	NoShuffle bool
}

// TrainTest holds both halves of a split along with the source row indices.
type TrainTest struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense

	TrainIndices []int
	TestIndices  []int
}

// TrainTestSplit partitions the rows of X and y. The test set receives
// ceil(TestSize*n) rows and the train set the rest, so the two always sum to n.
func TrainTestSplit(X, y mat.Matrix, opts SplitOptions) (*TrainTest, error) {
	n, _ := X.Dims()
	yn, _ := y.Dims()
	if n != yn {
		return nil, errors.NewDimensionError("TrainTestSplit", n, yn, 0)
	}
	if n == 0 {
		return nil, errors.NewModelError("TrainTestSplit", "empty data", errors.ErrEmptyData)
	}

	testSize := opts.TestSize
	if testSize == 0 {
		testSize = DefaultTestSize
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return nil, errors.NewValidationError("test_size",
			"leaves an empty train or test set", testSize)
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	var testIdx, trainIdx []int
	if opts.NoShuffle {
		trainIdx, testIdx = perm[:nTrain], perm[nTrain:]
	} else {
		seed := uint64(opts.RandomState)
		r := rand.New(rand.NewPCG(seed, seed))
		r.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		testIdx, trainIdx = perm[:nTest], perm[nTest:]
	}

	return &TrainTest{
		XTrain:       SelectRows(X, trainIdx),
		XTest:        SelectRows(X, testIdx),
		YTrain:       SelectRows(y, trainIdx),
		YTest:        SelectRows(y, testIdx),
		TrainIndices: trainIdx,
		TestIndices:  testIdx,
	}, nil
}

// SelectRows copies the listed rows of m into a new matrix.
func SelectRows(m mat.Matrix, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, src := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(src, j))
		}
	}
	return out
}
